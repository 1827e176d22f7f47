package cluster

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

// Config carries every externally supplied knob for a bootstrap run. Nothing
// here is hardcoded inside the core logic; defaults mirror the reference
// environment (six masters on ports 6000-6005, no replicas).
type Config struct {
	// Ports lists the ports to run one engine process on, one node per port.
	Ports []int

	// BaseDir is the parent of the per-node data directories.
	BaseDir string

	// ServerBin and CLIBin locate the engine binary and its bundled CLI.
	ServerBin string
	CLIBin    string

	// NodeTimeout is the engine's cluster node timeout, passed through as
	// milliseconds.
	NodeTimeout time.Duration

	// Replicas is the replica-per-master count handed to topology creation.
	// 0 means a pure-sharding topology.
	Replicas int

	// SettleDelay is the pause between spawning the node processes and the
	// first topology probe.
	SettleDelay time.Duration

	// PollInterval and PollAttempts bound the convergence loop: one probe per
	// interval, up to the attempt count.
	PollInterval time.Duration
	PollAttempts int

	// FatalPortConflict makes a bound port abort the run instead of being
	// treated as an already-running node from a prior invocation.
	FatalPortConflict bool
}

// DefaultConfig returns the reference configuration.
func DefaultConfig() Config {
	return Config{
		Ports:        []int{6000, 6001, 6002, 6003, 6004, 6005},
		BaseDir:      "data",
		ServerBin:    "valkey-server",
		CLIBin:       "valkey-cli",
		NodeTimeout:  5000 * time.Millisecond,
		Replicas:     0,
		SettleDelay:  3 * time.Second,
		PollInterval: 2 * time.Second,
		PollAttempts: 30,
	}
}

// fileConfig is the YAML shape of Config. Durations are strings in Go
// duration notation ("2s", "500ms"); pointers distinguish absent fields so
// they keep their defaults.
type fileConfig struct {
	Ports             []int   `yaml:"ports"`
	BaseDir           *string `yaml:"base_dir"`
	ServerBin         *string `yaml:"server_bin"`
	CLIBin            *string `yaml:"cli_bin"`
	NodeTimeout       *string `yaml:"node_timeout"`
	Replicas          *int    `yaml:"replicas"`
	SettleDelay       *string `yaml:"settle_delay"`
	PollInterval      *string `yaml:"poll_interval"`
	PollAttempts      *int    `yaml:"poll_attempts"`
	FatalPortConflict *bool   `yaml:"fatal_port_conflict"`
}

// LoadFile reads a YAML config file over the defaults. Fields absent from the
// file keep their default values.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if fc.Ports != nil {
		cfg.Ports = fc.Ports
	}
	if fc.BaseDir != nil {
		cfg.BaseDir = *fc.BaseDir
	}
	if fc.ServerBin != nil {
		cfg.ServerBin = *fc.ServerBin
	}
	if fc.CLIBin != nil {
		cfg.CLIBin = *fc.CLIBin
	}
	if fc.Replicas != nil {
		cfg.Replicas = *fc.Replicas
	}
	if fc.PollAttempts != nil {
		cfg.PollAttempts = *fc.PollAttempts
	}
	if fc.FatalPortConflict != nil {
		cfg.FatalPortConflict = *fc.FatalPortConflict
	}
	for _, d := range []struct {
		raw  *string
		dst  *time.Duration
		name string
	}{
		{fc.NodeTimeout, &cfg.NodeTimeout, "node_timeout"},
		{fc.SettleDelay, &cfg.SettleDelay, "settle_delay"},
		{fc.PollInterval, &cfg.PollInterval, "poll_interval"},
	} {
		if d.raw == nil {
			continue
		}
		parsed, err := time.ParseDuration(*d.raw)
		if err != nil {
			return cfg, fmt.Errorf("parse config %s: %s: %w", path, d.name, err)
		}
		*d.dst = parsed
	}
	return cfg, nil
}

// ParsePorts parses a port list given either as a comma-separated list
// ("6000,6001,6002") or an inclusive range ("6000-6005").
func ParsePorts(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty port list")
	}
	if lo, hi, ok := strings.Cut(s, "-"); ok {
		first, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("bad port range %q: %w", s, err)
		}
		last, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			return nil, fmt.Errorf("bad port range %q: %w", s, err)
		}
		if last < first {
			return nil, fmt.Errorf("bad port range %q: end before start", s)
		}
		ports := make([]int, 0, last-first+1)
		for p := first; p <= last; p++ {
			ports = append(ports, p)
		}
		return ports, nil
	}
	var ports []int
	for _, part := range strings.Split(s, ",") {
		p, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("bad port %q: %w", part, err)
		}
		ports = append(ports, p)
	}
	return ports, nil
}

// Validate checks the invariants the bootstrap sequence relies on: at least
// one distinct valid port, enough masters to carry the replica count, and a
// positive poll budget.
func (c Config) Validate() error {
	if len(c.Ports) == 0 {
		return fmt.Errorf("no ports configured")
	}
	sorted := slices.Clone(c.Ports)
	slices.Sort(sorted)
	if len(slices.Compact(sorted)) != len(c.Ports) {
		return fmt.Errorf("duplicate ports in %v", c.Ports)
	}
	for _, p := range c.Ports {
		if p < 1 || p > 65535 {
			return fmt.Errorf("port %d out of range", p)
		}
	}
	if c.Replicas < 0 {
		return fmt.Errorf("replicas must be >= 0, got %d", c.Replicas)
	}
	// The engine requires at least replicas+1 nodes per replication group.
	if len(c.Ports) < c.Replicas+1 {
		return fmt.Errorf("%d nodes cannot carry %d replicas per master", len(c.Ports), c.Replicas)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", c.PollInterval)
	}
	if c.PollAttempts <= 0 {
		return fmt.Errorf("poll attempts must be positive, got %d", c.PollAttempts)
	}
	if c.BaseDir == "" {
		return fmt.Errorf("base directory not set")
	}
	return nil
}

// Nodes derives the per-node specs from the configured ports. The layout is
// the durable contract that makes restarts idempotent: one directory per
// node under BaseDir, named after the port, holding the topology-config
// file, the append-log and snapshots, and the node's log.
func (c Config) Nodes() []NodeSpec {
	specs := make([]NodeSpec, 0, len(c.Ports))
	for _, port := range c.Ports {
		dir := filepath.Join(c.BaseDir, strconv.Itoa(port))
		specs = append(specs, NodeSpec{
			Port:       port,
			DataDir:    dir,
			ConfigFile: filepath.Join(dir, "nodes.conf"),
			LogFile:    filepath.Join(dir, "valkey.log"),
			Role:       RoleUnassigned,
		})
	}
	return specs
}
