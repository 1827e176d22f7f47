package benchmark

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type resultsFile struct {
	Timestamp string  `json:"timestamp"`
	Results   Results `json:"results"`
}

// WriteResults persists a run's measurements as a timestamped JSON file under
// outDir, creating the directory if needed, and returns the written path.
func WriteResults(results Results, outDir string) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create results dir: %w", err)
	}
	now := time.Now()
	payload := resultsFile{
		Timestamp: now.Format(time.RFC3339),
		Results:   results,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(outDir, fmt.Sprintf("benchmark_results_%s.json", now.Format("20060102_150405")))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write results: %w", err)
	}
	return path, nil
}
