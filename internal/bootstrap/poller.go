package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/georgekhananaev/valkey-cluster/internal/cluster"
	"github.com/georgekhananaev/valkey-cluster/internal/probe"
)

// sleepFunc pauses for d or returns early with the context's error. Injected
// so tests drive the timing contract with a recording stub instead of real
// sleeps.
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Poller drives the convergence loop: probe one reference node on a fixed
// interval until it reports healthy and fully slotted, bounded by an attempt
// count rather than a wall-clock deadline — a slow individual probe simply
// consumes one attempt.
//
// The loop polls a single reference node, one probe in flight at a time.
// That keeps ordering trivial, at the cost that a reference-node-specific
// failure can mask true cluster health.
type Poller struct {
	Prober   probe.Prober
	Interval time.Duration
	Attempts int

	sleep sleepFunc
}

// NewPoller returns a poller with real sleeping between probes.
func NewPoller(p probe.Prober, interval time.Duration, attempts int) *Poller {
	return &Poller{
		Prober:   p,
		Interval: interval,
		Attempts: attempts,
		sleep:    sleepCtx,
	}
}

// Wait polls addr until a sample satisfies the readiness invariant or the
// attempt budget runs out. Unreachable and malformed-response probe failures
// fold into "not ready yet"; any other probe error aborts the loop.
//
// On exhaustion the last observed sample is returned together with an error
// wrapping cluster.ErrConvergenceTimeout, so the caller can report what the
// cluster looked like when time ran out.
func (p *Poller) Wait(ctx context.Context, addr string) (cluster.HealthSample, error) {
	// Starts as unknown so diagnostics stay meaningful when every probe
	// fails and no sample is ever taken.
	last := cluster.HealthSample{State: cluster.StateUnknown}
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		sample, err := p.Prober.Sample(ctx, addr)
		switch {
		case err == nil:
			last = sample
			if sample.Ready() {
				log.Printf("poller: converged on attempt %d/%d", attempt, p.Attempts)
				return sample, nil
			}
			log.Printf("poller: attempt %d/%d: state=%s slots=%d/%d",
				attempt, p.Attempts, sample.State, sample.SlotsAssigned, cluster.TotalSlots)
		case cluster.IsNotReady(err):
			log.Printf("poller: attempt %d/%d: %v", attempt, p.Attempts, err)
		default:
			return last, err
		}

		if attempt < p.Attempts {
			if err := p.sleep(ctx, p.Interval); err != nil {
				return last, err
			}
		}
	}
	return last, fmt.Errorf("%w: %d attempts, last state=%s slots=%d",
		cluster.ErrConvergenceTimeout, p.Attempts, last.State, last.SlotsAssigned)
}
