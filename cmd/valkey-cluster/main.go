// Command valkey-cluster bootstraps and inspects a fixed-size sharded
// cluster on the local host.
//
// Subcommands:
//
//	cluster    launch the node processes, create the topology if absent, and
//	           wait for convergence (the default)
//	status     print the topology status of the first reachable node
//	benchmark  run the performance matrix against the bootstrapped cluster
//	bash       drop into a shell with the same environment, for debugging
//
// Configuration comes from the environment, with an optional YAML file via
// VALKEY_CLUSTER_CONFIG layered underneath.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/georgekhananaev/valkey-cluster/internal/benchmark"
	"github.com/georgekhananaev/valkey-cluster/internal/bootstrap"
	"github.com/georgekhananaev/valkey-cluster/internal/cluster"
	"github.com/georgekhananaev/valkey-cluster/internal/probe"
)

// logFatal is indirected so tests could intercept fatal exits.
var logFatal = log.Fatalf

func main() {
	cmd := "cluster"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "cluster":
		runCluster(ctx)
	case "status":
		runStatus(ctx)
	case "benchmark":
		runBenchmark(ctx)
	case "bash":
		runShell()
	case "help", "-h", "--help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage(os.Stderr)
		os.Exit(2)
	}
}

func usage(w *os.File) {
	fmt.Fprint(w, `usage: valkey-cluster [cluster|status|benchmark|bash]

  cluster    bootstrap the cluster: launch nodes, create the topology if
             absent, wait until healthy (default)
  status     print topology state and node listing from a reachable node
  benchmark  run SET/GET and large-object benchmarks, write results JSON
  bash       start a shell (for container debugging)

environment:
  VALKEY_CLUSTER_CONFIG               path to a YAML config file
  VALKEY_CLUSTER_PORTS                port list "6000,6001" or range "6000-6005"
  VALKEY_CLUSTER_BASE_DIR             parent of per-node data directories
  VALKEY_CLUSTER_SERVER_BIN           engine server binary
  VALKEY_CLUSTER_CLI_BIN              engine CLI binary
  VALKEY_CLUSTER_REPLICAS             replicas per master
  VALKEY_CLUSTER_NODE_TIMEOUT         engine cluster node timeout ("5s")
  VALKEY_CLUSTER_SETTLE_DELAY         pause between spawn and first probe
  VALKEY_CLUSTER_POLL_INTERVAL        delay between convergence probes
  VALKEY_CLUSTER_POLL_ATTEMPTS        convergence probe budget
  VALKEY_CLUSTER_FATAL_PORT_CONFLICT  treat bound ports as fatal ("true")
  VALKEY_CLUSTER_BENCH_OUT            benchmark results directory
`)
}

func runCluster(ctx context.Context) {
	cfg := loadConfig()
	report := bootstrap.NewWithDefaults(cfg).Run(ctx)

	switch report.State {
	case bootstrap.StateReady:
		if report.Created {
			log.Printf("cluster ready: topology created, %d/%d slots assigned",
				report.Sample.SlotsAssigned, cluster.TotalSlots)
		} else {
			log.Printf("cluster ready: existing topology reused, %d/%d slots assigned",
				report.Sample.SlotsAssigned, cluster.TotalSlots)
		}
		fmt.Println(report.Sample.Raw)
	case bootstrap.StateTimedOut:
		log.Printf("cluster did not converge within %d attempts: state=%s slots=%d",
			cfg.PollAttempts, report.Sample.State, report.Sample.SlotsAssigned)
		os.Exit(1)
	default:
		log.Printf("bootstrap failed: %v", report.Err)
		os.Exit(1)
	}
}

// runStatus probes each configured port in order and prints the first
// reachable node's topology view.
func runStatus(ctx context.Context) {
	cfg := loadConfig()
	prober := &probe.RESPProber{}

	var lastErr error
	for _, spec := range cfg.Nodes() {
		sample, err := prober.Sample(ctx, spec.Addr())
		if err != nil {
			lastErr = err
			continue
		}
		fmt.Printf("node %s:\n%s\n", spec.Addr(), sample.Raw)
		if nodes, err := prober.Nodes(ctx, spec.Addr()); err == nil {
			fmt.Println(nodes)
		}
		if !sample.Ready() {
			os.Exit(1)
		}
		return
	}
	logFatal("no reachable node on ports %v: %v", cfg.Ports, lastErr)
}

func runBenchmark(ctx context.Context) {
	cfg := loadConfig()
	client, err := benchmark.Connect(ctx, cluster.Addrs(cfg.Nodes()))
	if err != nil {
		logFatal("benchmark: %v", err)
	}
	defer client.Close() //nolint:errcheck

	results, err := benchmark.Run(ctx, client, benchmark.Options{
		OutDir: getenv("VALKEY_CLUSTER_BENCH_OUT", "benchmarks"),
	})
	if err != nil {
		logFatal("benchmark: %v", err)
	}

	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Println("benchmark results:")
	for _, name := range names {
		fmt.Printf("  %-22s %12.2f\n", name, results[name])
	}

	path, err := benchmark.WriteResults(results, getenv("VALKEY_CLUSTER_BENCH_OUT", "benchmarks"))
	if err != nil {
		logFatal("benchmark: %v", err)
	}
	log.Printf("benchmark: results written to %s", path)
}

// runShell hands the terminal to an interactive shell, mirroring the
// container debug entrypoint.
func runShell() {
	shell := getenv("SHELL", "/bin/bash")
	cmd := exec.Command(shell)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		var exit *exec.ExitError
		if errors.As(err, &exit) {
			os.Exit(exit.ExitCode())
		}
		logFatal("shell: %v", err)
	}
}

// loadConfig layers, lowest to highest precedence: defaults, the optional
// YAML file, then individual environment variables.
func loadConfig() cluster.Config {
	cfg := cluster.DefaultConfig()
	if path := os.Getenv("VALKEY_CLUSTER_CONFIG"); path != "" {
		loaded, err := cluster.LoadFile(path)
		if err != nil {
			logFatal("config: %v", err)
		}
		cfg = loaded
	}
	if v := os.Getenv("VALKEY_CLUSTER_PORTS"); v != "" {
		ports, err := cluster.ParsePorts(v)
		if err != nil {
			logFatal("config: %v", err)
		}
		cfg.Ports = ports
	}
	cfg.BaseDir = getenv("VALKEY_CLUSTER_BASE_DIR", cfg.BaseDir)
	cfg.ServerBin = getenv("VALKEY_CLUSTER_SERVER_BIN", cfg.ServerBin)
	cfg.CLIBin = getenv("VALKEY_CLUSTER_CLI_BIN", cfg.CLIBin)
	if v := os.Getenv("VALKEY_CLUSTER_REPLICAS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			logFatal("config: bad VALKEY_CLUSTER_REPLICAS %q: %v", v, err)
		}
		cfg.Replicas = n
	}
	if v := os.Getenv("VALKEY_CLUSTER_POLL_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			logFatal("config: bad VALKEY_CLUSTER_POLL_ATTEMPTS %q: %v", v, err)
		}
		cfg.PollAttempts = n
	}
	if v := os.Getenv("VALKEY_CLUSTER_FATAL_PORT_CONFLICT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			logFatal("config: bad VALKEY_CLUSTER_FATAL_PORT_CONFLICT %q: %v", v, err)
		}
		cfg.FatalPortConflict = b
	}
	for _, d := range []struct {
		env string
		dst *time.Duration
	}{
		{"VALKEY_CLUSTER_NODE_TIMEOUT", &cfg.NodeTimeout},
		{"VALKEY_CLUSTER_SETTLE_DELAY", &cfg.SettleDelay},
		{"VALKEY_CLUSTER_POLL_INTERVAL", &cfg.PollInterval},
	} {
		v := os.Getenv(d.env)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			logFatal("config: bad %s %q: %v", d.env, v, err)
		}
		*d.dst = parsed
	}
	return cfg
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
