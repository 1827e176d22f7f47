// Package launcher starts the per-node engine processes. It owns nothing
// beyond process spawn: readiness is the convergence poller's job, and
// teardown belongs to whatever supervises the host.
package launcher

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"github.com/georgekhananaev/valkey-cluster/internal/cluster"
)

// PortConflictError reports the configured ports that were already bound
// when the launcher ran. It wraps cluster.ErrPortConflict so callers can
// classify it; the orchestrator decides whether a conflict is fatal or an
// already-running node from a prior invocation.
type PortConflictError struct {
	Ports []int
}

func (e *PortConflictError) Error() string {
	return fmt.Sprintf("%v: ports %v", cluster.ErrPortConflict, e.Ports)
}

func (e *PortConflictError) Unwrap() error {
	return cluster.ErrPortConflict
}

// Launcher spawns one engine process per node spec.
type Launcher struct {
	// ServerBin is the engine binary to exec.
	ServerBin string

	// NodeTimeout is passed through as the engine's cluster node timeout.
	NodeTimeout time.Duration

	// start spawns one engine process. Replaceable in tests so launch
	// behavior can be exercised without a real binary.
	start func(ctx context.Context, spec cluster.NodeSpec) error
}

// New returns a launcher that execs cfg.ServerBin for each node.
func New(cfg cluster.Config) *Launcher {
	l := &Launcher{
		ServerBin:   cfg.ServerBin,
		NodeTimeout: cfg.NodeTimeout,
	}
	l.start = l.startProcess
	return l
}

// SetStartFunc overrides the process-spawn function, for tests.
func (l *Launcher) SetStartFunc(start func(ctx context.Context, spec cluster.NodeSpec) error) {
	l.start = start
}

// Launch prepares and starts every node. All per-node directories are
// created before any process start is attempted, so a slow filesystem
// cannot cause a partial launch race. Ports are then checked in one pass;
// processes are spawned fire-and-forget on the free ports only, and the
// bound ports are reported via PortConflictError. Any spawn failure is
// returned immediately: a partially-launched set is an error state, not a
// valid topology.
func (l *Launcher) Launch(ctx context.Context, specs []cluster.NodeSpec) error {
	for _, spec := range specs {
		if err := os.MkdirAll(spec.DataDir, 0o755); err != nil {
			return fmt.Errorf("create data dir for node %d: %w", spec.Port, err)
		}
	}

	var conflicts []int
	var free []cluster.NodeSpec
	for _, spec := range specs {
		if portBound(spec.Port) {
			conflicts = append(conflicts, spec.Port)
			continue
		}
		free = append(free, spec)
	}

	for _, spec := range free {
		if err := l.start(ctx, spec); err != nil {
			return fmt.Errorf("start node %d: %w", spec.Port, err)
		}
		log.Printf("launcher: started node on port %d (data %s)", spec.Port, spec.DataDir)
	}

	if len(conflicts) > 0 {
		return &PortConflictError{Ports: conflicts}
	}
	return nil
}

// portBound reports whether the port is already taken, by briefly binding
// it. The listener is released immediately; the engine process binds for
// real moments later.
func portBound(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return true
	}
	ln.Close()
	return false
}

// startProcess execs the engine for one node with cluster mode enabled and
// the node's own topology-config, data directory and log file. The child
// runs in its own session: cancelling the orchestrator must leave already
// spawned nodes running so a later re-run can attach to them.
func (l *Launcher) startProcess(ctx context.Context, spec cluster.NodeSpec) error {
	timeoutMS := strconv.FormatInt(l.NodeTimeout.Milliseconds(), 10)
	cmd := exec.Command(l.ServerBin,
		"--port", strconv.Itoa(spec.Port),
		"--cluster-enabled", "yes",
		"--cluster-config-file", spec.ConfigFile,
		"--cluster-node-timeout", timeoutMS,
		"--dir", spec.DataDir,
		"--logfile", spec.LogFile,
		"--appendonly", "yes",
		"--protected-mode", "no",
	)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return err
	}
	// Reap the child if it exits while we are still around; ownership
	// otherwise passes to the external supervisor when we do.
	go cmd.Wait() //nolint:errcheck
	return nil
}
