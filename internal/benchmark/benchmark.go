// Package benchmark drives write/read performance runs against a bootstrapped
// cluster: individual and pipelined SET/GET matrices plus a large-object
// transfer, with cleanup of everything it wrote.
package benchmark

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/georgekhananaev/valkey-cluster/internal/probe"
)

// Client is the subset of the engine client the benchmarks exercise. Both
// the cluster client and a single-node client satisfy it, so tests can run
// against one in-process node.
type Client interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Pipeline() redis.Pipeliner
	ClusterInfo(ctx context.Context) *redis.StringCmd
}

// Options sizes a benchmark run. Zero fields take the reference defaults.
type Options struct {
	KeyPrefix     string        // prefix for every benchmark key
	SingleOps     int           // ops for the individual SET/GET runs
	PipelineOps   int           // ops for the pipelined runs
	BatchSize     int           // commands per pipeline batch
	LargeObjectMB int           // large-object size in MiB
	LargeChunks   int           // chunk count for the chunked variant
	Expiry        time.Duration // per-key expiry, a safety net if cleanup dies
	OutDir        string        // where the results JSON lands
}

func (o Options) withDefaults() Options {
	if o.KeyPrefix == "" {
		o.KeyPrefix = "benchmark:test:"
	}
	if o.SingleOps == 0 {
		o.SingleOps = 1000
	}
	if o.PipelineOps == 0 {
		o.PipelineOps = 5000
	}
	if o.BatchSize == 0 {
		o.BatchSize = 100
	}
	if o.LargeObjectMB == 0 {
		o.LargeObjectMB = 50
	}
	if o.LargeChunks == 0 {
		o.LargeChunks = 5
	}
	if o.Expiry == 0 {
		o.Expiry = 5 * time.Minute
	}
	if o.OutDir == "" {
		o.OutDir = "benchmarks"
	}
	return o
}

// Results maps benchmark names to their measured rate: ops/sec for the
// operation matrix, MB/sec for the large-object entries.
type Results map[string]float64

// Connect retry bounds: exponential backoff starting at connectBaseDelay,
// capped at connectMaxDelay, for at most connectAttempts health checks.
const (
	connectAttempts  = 8
	connectBaseDelay = 250 * time.Millisecond
	connectMaxDelay  = 8 * time.Second
)

// connectSleep pauses between connection attempts; swapped for a recording
// stub in tests so retry behavior is checked without real backoff.
var connectSleep = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connect builds a cluster client over the configured endpoints and verifies
// the cluster is healthy and fully slotted before any benchmark runs. A
// cluster that was bootstrapped moments ago may still refuse connections or
// report a partial slot map, so the health check retries with exponential
// backoff before giving up.
func Connect(ctx context.Context, addrs []string) (*redis.ClusterClient, error) {
	rc := redis.NewClusterClient(&redis.ClusterOptions{
		Addrs:        addrs,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		PoolSize:     100,
	})

	delay := connectBaseDelay
	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		lastErr = checkClusterHealth(ctx, rc)
		if lastErr == nil {
			return rc, nil
		}
		log.Printf("benchmark: connect attempt %d/%d: %v", attempt, connectAttempts, lastErr)
		if attempt < connectAttempts {
			if err := connectSleep(ctx, delay); err != nil {
				rc.Close() //nolint:errcheck
				return nil, err
			}
			if delay *= 2; delay > connectMaxDelay {
				delay = connectMaxDelay
			}
		}
	}
	rc.Close() //nolint:errcheck
	return nil, fmt.Errorf("connect to cluster: %w", lastErr)
}

// checkClusterHealth queries the cluster's topology status once and reports
// nil only for a healthy, fully slotted cluster.
func checkClusterHealth(ctx context.Context, rc *redis.ClusterClient) error {
	text, err := rc.ClusterInfo(ctx).Result()
	if err != nil {
		return err
	}
	sample, err := probe.ParseClusterInfo(text)
	if err != nil {
		return err
	}
	if !sample.Ready() {
		return fmt.Errorf("cluster not healthy for benchmarking: state=%s slots=%d",
			sample.State, sample.SlotsAssigned)
	}
	return nil
}

// Run executes the full benchmark matrix and cleans up afterwards. Partial
// results are returned alongside the first error so an aborted run still
// reports what it measured.
func Run(ctx context.Context, client Client, opts Options) (Results, error) {
	opts = opts.withDefaults()
	results := Results{}

	steps := []struct {
		name string
		fn   func() (float64, error)
	}{
		{"SET (single)", func() (float64, error) { return singleWrites(ctx, client, opts) }},
		{"SET (pipeline)", func() (float64, error) { return pipelineWrites(ctx, client, opts) }},
		{"GET (single)", func() (float64, error) { return singleReads(ctx, client, opts) }},
		{"GET (pipeline)", func() (float64, error) { return pipelineReads(ctx, client, opts) }},
	}
	for _, step := range steps {
		rate, err := step.fn()
		if err != nil {
			cleanupQuietly(client, opts)
			return results, fmt.Errorf("%s: %w", step.name, err)
		}
		results[step.name] = rate
		log.Printf("benchmark: %s: %.2f ops/sec", step.name, rate)
	}

	writeMB, readMB, err := largeObject(ctx, client, opts)
	if err != nil {
		// The large-object run is best-effort, like the original harness:
		// its failure does not void the operation matrix.
		log.Printf("benchmark: large object benchmark failed: %v", err)
	} else {
		results["Large Write (MB/s)"] = writeMB
		results["Large Read (MB/s)"] = readMB
		log.Printf("benchmark: large write %.2f MB/s, large read %.2f MB/s", writeMB, readMB)
	}

	deleted, err := Cleanup(ctx, client, opts)
	if err != nil {
		return results, fmt.Errorf("cleanup: %w", err)
	}
	log.Printf("benchmark: cleanup deleted %d keys", deleted)
	return results, nil
}

func singleWrites(ctx context.Context, client Client, opts Options) (float64, error) {
	start := time.Now()
	for i := 0; i < opts.SingleOps; i++ {
		key := fmt.Sprintf("%ssingle:%d", opts.KeyPrefix, i)
		value := fmt.Sprintf("test-value-%d-%d", i, rand.Intn(9000)+1000)
		if err := client.Set(ctx, key, value, opts.Expiry).Err(); err != nil {
			return 0, err
		}
	}
	return opsPerSec(opts.SingleOps, time.Since(start)), nil
}

func pipelineWrites(ctx context.Context, client Client, opts Options) (float64, error) {
	start := time.Now()
	for base := 0; base < opts.PipelineOps; base += opts.BatchSize {
		pipe := client.Pipeline()
		for i := base; i < min(base+opts.BatchSize, opts.PipelineOps); i++ {
			key := fmt.Sprintf("%sbatch:%d", opts.KeyPrefix, i)
			value := fmt.Sprintf("test-batch-value-%d-%d", i, rand.Intn(9000)+1000)
			pipe.Set(ctx, key, value, opts.Expiry)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return 0, err
		}
	}
	return opsPerSec(opts.PipelineOps, time.Since(start)), nil
}

func singleReads(ctx context.Context, client Client, opts Options) (float64, error) {
	// Seed the keys first; only the reads are timed.
	for i := 0; i < opts.SingleOps; i++ {
		key := fmt.Sprintf("%sread:%d", opts.KeyPrefix, i)
		if err := client.Set(ctx, key, fmt.Sprintf("read-value-%d", i), opts.Expiry).Err(); err != nil {
			return 0, err
		}
	}
	start := time.Now()
	for i := 0; i < opts.SingleOps; i++ {
		key := fmt.Sprintf("%sread:%d", opts.KeyPrefix, i)
		if err := client.Get(ctx, key).Err(); err != nil {
			return 0, fmt.Errorf("read %s: %w", key, err)
		}
	}
	return opsPerSec(opts.SingleOps, time.Since(start)), nil
}

func pipelineReads(ctx context.Context, client Client, opts Options) (float64, error) {
	pipe := client.Pipeline()
	for i := 0; i < opts.PipelineOps; i++ {
		key := fmt.Sprintf("%sbatch-read:%d", opts.KeyPrefix, i)
		pipe.Set(ctx, key, fmt.Sprintf("batch-read-value-%d", i), opts.Expiry)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}

	start := time.Now()
	for base := 0; base < opts.PipelineOps; base += opts.BatchSize {
		pipe := client.Pipeline()
		for i := base; i < min(base+opts.BatchSize, opts.PipelineOps); i++ {
			pipe.Get(ctx, fmt.Sprintf("%sbatch-read:%d", opts.KeyPrefix, i))
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return 0, err
		}
	}
	return opsPerSec(opts.PipelineOps, time.Since(start)), nil
}

// largeObject measures storing and retrieving one large value, both as a
// single key and split into pipelined chunks, returning the best write and
// read rates in MB/sec.
func largeObject(ctx context.Context, client Client, opts Options) (writeMB, readMB float64, err error) {
	payload := largePayload(opts.LargeObjectMB)
	sizeMB := float64(opts.LargeObjectMB)
	singleKey := opts.KeyPrefix + "large_object:single"

	start := time.Now()
	if err := client.Set(ctx, singleKey, payload, opts.Expiry).Err(); err != nil {
		return 0, 0, err
	}
	singleWrite := sizeMB / time.Since(start).Seconds()

	chunkSize := len(payload) / opts.LargeChunks
	start = time.Now()
	pipe := client.Pipeline()
	for i := 0; i < opts.LargeChunks; i++ {
		lo := i * chunkSize
		hi := lo + chunkSize
		if i == opts.LargeChunks-1 {
			hi = len(payload)
		}
		pipe.Set(ctx, fmt.Sprintf("%slarge_object:chunk:%d", opts.KeyPrefix, i), payload[lo:hi], opts.Expiry)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}
	chunkedWrite := sizeMB / time.Since(start).Seconds()

	start = time.Now()
	got, err := client.Get(ctx, singleKey).Result()
	if err != nil {
		return 0, 0, err
	}
	singleRead := sizeMB / time.Since(start).Seconds()
	if len(got) != len(payload) {
		return 0, 0, fmt.Errorf("single read size mismatch: want %d got %d", len(payload), len(got))
	}

	start = time.Now()
	pipe = client.Pipeline()
	cmds := make([]*redis.StringCmd, opts.LargeChunks)
	for i := 0; i < opts.LargeChunks; i++ {
		cmds[i] = pipe.Get(ctx, fmt.Sprintf("%slarge_object:chunk:%d", opts.KeyPrefix, i))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}
	chunkedRead := sizeMB / time.Since(start).Seconds()

	total := 0
	for _, cmd := range cmds {
		total += len(cmd.Val())
	}
	if total != len(payload) {
		return 0, 0, fmt.Errorf("chunked read size mismatch: want %d got %d", len(payload), total)
	}

	return max(singleWrite, chunkedWrite), max(singleRead, chunkedRead), nil
}

// largePayload builds a value of roughly sizeMB mebibytes with enough
// variation that it does not compress to nothing.
func largePayload(sizeMB int) string {
	sizeBytes := sizeMB * 1024 * 1024
	var pattern strings.Builder
	for i := 0; i < 1000; i++ {
		fmt.Fprintf(&pattern, "data-block-%d-%d-", i, rand.Intn(9000)+1000)
	}
	base := pattern.String()
	repeats := sizeBytes/len(base) + 1
	return strings.Repeat(base, repeats)[:sizeBytes]
}

// Cleanup deletes every key a run with these options can have written. The
// key set is fully deterministic, so deletion enumerates it directly instead
// of scanning the keyspace.
func Cleanup(ctx context.Context, client Client, opts Options) (int, error) {
	opts = opts.withDefaults()
	var keys []string
	for i := 0; i < opts.SingleOps; i++ {
		keys = append(keys,
			fmt.Sprintf("%ssingle:%d", opts.KeyPrefix, i),
			fmt.Sprintf("%sread:%d", opts.KeyPrefix, i))
	}
	for i := 0; i < opts.PipelineOps; i++ {
		keys = append(keys,
			fmt.Sprintf("%sbatch:%d", opts.KeyPrefix, i),
			fmt.Sprintf("%sbatch-read:%d", opts.KeyPrefix, i))
	}
	keys = append(keys, opts.KeyPrefix+"large_object:single")
	for i := 0; i < opts.LargeChunks; i++ {
		keys = append(keys, fmt.Sprintf("%slarge_object:chunk:%d", opts.KeyPrefix, i))
	}

	deleted := 0
	for base := 0; base < len(keys); base += opts.BatchSize {
		batch := keys[base:min(base+opts.BatchSize, len(keys))]
		pipe := client.Pipeline()
		cmds := make([]*redis.IntCmd, len(batch))
		for i, key := range batch {
			cmds[i] = pipe.Del(ctx, key)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return deleted, err
		}
		for _, cmd := range cmds {
			deleted += int(cmd.Val())
		}
	}
	return deleted, nil
}

func cleanupQuietly(client Client, opts Options) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := Cleanup(ctx, client, opts); err != nil {
		log.Printf("benchmark: cleanup after failure: %v", err)
	}
}

func opsPerSec(ops int, elapsed time.Duration) float64 {
	secs := elapsed.Seconds()
	if secs <= 0 {
		secs = 1e-9
	}
	return float64(ops) / secs
}
