package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/georgekhananaev/valkey-cluster/internal/cluster"
	"github.com/georgekhananaev/valkey-cluster/internal/launcher"
	"github.com/georgekhananaev/valkey-cluster/internal/probe"
)

// State is the orchestrator's position in the bootstrap sequence.
type State string

const (
	StateStart            State = "start"
	StateLaunching        State = "launching"
	StateProbingExisting  State = "probing-existing"
	StateCreatingTopology State = "creating-topology"
	StateConverging       State = "converging"
	StateReady            State = "ready"
	StateTimedOut         State = "timed-out"
	StateFailed           State = "failed"
)

// Report is the outcome of one bootstrap run.
type Report struct {
	State   State
	Sample  cluster.HealthSample // last observed sample, zero if none was taken
	Created bool                 // whether topology creation ran this invocation
	Err     error
}

// Ok reports whether the run ended in the Ready state. TimedOut is not ok —
// but it is distinguished from Failed because the node processes remain
// running and a retry against them is legitimate.
func (r Report) Ok() bool {
	return r.State == StateReady
}

// NodeLauncher is the slice of the launcher the orchestrator drives.
type NodeLauncher interface {
	Launch(ctx context.Context, specs []cluster.NodeSpec) error
}

// Orchestrator sequences the full bootstrap: launch the node processes,
// decide whether a topology must be created, then poll until the cluster
// converges. Exactly one initializer invocation happens per run, guarded by
// the idempotence pre-check.
type Orchestrator struct {
	cfg      cluster.Config
	launcher NodeLauncher
	init     *Initializer
	poller   *Poller
	sleep    sleepFunc
	state    State
}

// New wires an orchestrator from its collaborators. prober and creator are
// interfaces so tests substitute stubs for the engine.
func New(cfg cluster.Config, l NodeLauncher, p probe.Prober, c Creator) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		launcher: l,
		init:     &Initializer{Prober: p, Creator: c, Replicas: cfg.Replicas},
		poller:   NewPoller(p, cfg.PollInterval, cfg.PollAttempts),
		sleep:    sleepCtx,
		state:    StateStart,
	}
}

// NewWithDefaults builds the production wiring from config alone.
func NewWithDefaults(cfg cluster.Config) *Orchestrator {
	prober := &probe.RESPProber{Timeout: 2 * time.Second}
	return New(cfg, launcher.New(cfg), prober, &CLICreator{Bin: cfg.CLIBin})
}

// State returns the orchestrator's current position in the sequence.
func (o *Orchestrator) State() State {
	return o.state
}

func (o *Orchestrator) transition(s State) {
	log.Printf("orchestrator: %s -> %s", o.state, s)
	o.state = s
}

func (o *Orchestrator) fail(err error) Report {
	o.transition(StateFailed)
	return Report{State: StateFailed, Err: err}
}

// Run executes the bootstrap sequence and reports the final state. The
// sequence is interruptible through ctx at any point before Ready; on
// interruption, already-spawned node processes are deliberately left
// running so a later re-run can attach to them.
func (o *Orchestrator) Run(ctx context.Context) Report {
	if err := o.cfg.Validate(); err != nil {
		return o.fail(fmt.Errorf("invalid configuration: %w", err))
	}
	specs := o.cfg.Nodes()
	refAddr := specs[0].Addr()

	o.transition(StateLaunching)
	if err := o.launcher.Launch(ctx, specs); err != nil {
		if errors.Is(err, cluster.ErrPortConflict) && !o.cfg.FatalPortConflict {
			// Idempotent restart path: bound ports mean nodes from a prior
			// run are still up, and we attach to them.
			log.Printf("orchestrator: %v (treating as already-running nodes)", err)
		} else {
			return o.fail(err)
		}
	}

	// Settle before the first probe: probing immediately after spawn would
	// spuriously classify a healthy-but-slow-starting node as unreachable.
	if err := o.sleep(ctx, o.cfg.SettleDelay); err != nil {
		return o.fail(err)
	}

	o.transition(StateProbingExisting)
	created := false
	if o.init.ShouldCreate(ctx, refAddr) {
		if err := ctx.Err(); err != nil {
			return o.fail(err)
		}
		o.transition(StateCreatingTopology)
		if err := o.init.Create(ctx, specs); err != nil {
			return o.fail(err)
		}
		created = true
	}

	o.transition(StateConverging)
	sample, err := o.poller.Wait(ctx, refAddr)
	if err != nil {
		if errors.Is(err, cluster.ErrConvergenceTimeout) {
			o.transition(StateTimedOut)
			return Report{State: StateTimedOut, Sample: sample, Created: created, Err: err}
		}
		report := o.fail(err)
		report.Sample = sample
		report.Created = created
		return report
	}

	o.transition(StateReady)
	return Report{State: StateReady, Sample: sample, Created: created}
}
