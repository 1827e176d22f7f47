package cluster

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePorts(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []int
		wantErr bool
	}{
		{"comma list", "6000,6001,6002", []int{6000, 6001, 6002}, false},
		{"single port", "7000", []int{7000}, false},
		{"inclusive range", "6000-6005", []int{6000, 6001, 6002, 6003, 6004, 6005}, false},
		{"range with spaces", " 6000 - 6002 ", []int{6000, 6001, 6002}, false},
		{"reversed range", "6005-6000", nil, true},
		{"garbage", "six thousand", nil, true},
		{"empty", "", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePorts(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	// The default configuration must be valid as-is.
	assert.NoError(t, DefaultConfig().Validate())

	mutate := func(fn func(*Config)) Config {
		cfg := DefaultConfig()
		fn(&cfg)
		return cfg
	}

	tests := []struct {
		name string
		cfg  Config
	}{
		{"no ports", mutate(func(c *Config) { c.Ports = nil })},
		{"duplicate ports", mutate(func(c *Config) { c.Ports = []int{6000, 6001, 6000} })},
		{"port out of range", mutate(func(c *Config) { c.Ports = []int{70000} })},
		{"negative replicas", mutate(func(c *Config) { c.Replicas = -1 })},
		{"too few nodes for replicas", mutate(func(c *Config) { c.Replicas = 6 })},
		{"zero poll interval", mutate(func(c *Config) { c.PollInterval = 0 })},
		{"zero poll attempts", mutate(func(c *Config) { c.PollAttempts = 0 })},
		{"no base dir", mutate(func(c *Config) { c.BaseDir = "" })},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.cfg.Validate())
		})
	}

	// N == R+1 is the minimum legal topology.
	cfg := mutate(func(c *Config) {
		c.Ports = []int{6000, 6001}
		c.Replicas = 1
	})
	assert.NoError(t, cfg.Validate())
}

// TestConfigNodes verifies the persisted layout contract: one directory per
// node under the base directory, named after the port, holding the
// topology-config file and the log file.
func TestConfigNodes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Ports = []int{6000, 6001}
	cfg.BaseDir = "/var/lib/valkey"

	specs := cfg.Nodes()
	require.Len(t, specs, 2)

	assert.Equal(t, 6000, specs[0].Port)
	assert.Equal(t, filepath.Join("/var/lib/valkey", "6000"), specs[0].DataDir)
	assert.Equal(t, filepath.Join("/var/lib/valkey", "6000", "nodes.conf"), specs[0].ConfigFile)
	assert.Equal(t, filepath.Join("/var/lib/valkey", "6000", "valkey.log"), specs[0].LogFile)
	assert.Equal(t, RoleUnassigned, specs[0].Role)

	assert.Equal(t, 6001, specs[1].Port)
	assert.Equal(t, filepath.Join("/var/lib/valkey", "6001"), specs[1].DataDir)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cluster.yaml")
	content := `
ports: [7000, 7001, 7002]
base_dir: /tmp/vk
replicas: 0
poll_interval: 500ms
poll_attempts: 10
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []int{7000, 7001, 7002}, cfg.Ports)
	assert.Equal(t, "/tmp/vk", cfg.BaseDir)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 10, cfg.PollAttempts)
	// Fields absent from the file keep their defaults.
	assert.Equal(t, "valkey-server", cfg.ServerBin)
	assert.Equal(t, 5000*time.Millisecond, cfg.NodeTimeout)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
