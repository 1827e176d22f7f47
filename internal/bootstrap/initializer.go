package bootstrap

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"strconv"
	"strings"

	"github.com/georgekhananaev/valkey-cluster/internal/cluster"
	"github.com/georgekhananaev/valkey-cluster/internal/probe"
)

// Creator invokes the engine's cluster-creation operation against the full
// set of node endpoints. It returns the operation's output for the report.
type Creator interface {
	Create(ctx context.Context, addrs []string, replicas int) (string, error)
}

// CLICreator shells out to the engine's bundled CLI:
//
//	<cli> --cluster create host:port... --cluster-replicas R --cluster-yes
//
// The --cluster-yes flag makes the invocation non-interactive; for CLI
// builds that predate it, a single deterministic "yes" is supplied on stdin.
// The answer is never repeated: re-answering after a partial failure could
// double-apply slot assignment.
type CLICreator struct {
	Bin string
}

func (c *CLICreator) Create(ctx context.Context, addrs []string, replicas int) (string, error) {
	args := []string{"--cluster", "create"}
	args = append(args, addrs...)
	args = append(args, "--cluster-replicas", strconv.Itoa(replicas), "--cluster-yes")

	cmd := exec.CommandContext(ctx, c.Bin, args...)
	cmd.Stdin = strings.NewReader("yes\n")
	out, err := cmd.CombinedOutput()
	output := string(out)
	if err != nil {
		return output, fmt.Errorf("%w: %v: %s", cluster.ErrTopologyCreationFailed, err, lastLine(output))
	}
	// The CLI exits zero even on some slot-coverage failures; require its
	// all-slots-covered marker.
	marker := fmt.Sprintf("[OK] All %d slots covered", cluster.TotalSlots)
	if !strings.Contains(output, marker) {
		return output, fmt.Errorf("%w: missing %q in output: %s", cluster.ErrTopologyCreationFailed, marker, lastLine(output))
	}
	return output, nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}

// Initializer decides whether a brand-new topology must be created or an
// existing one should simply be left to re-converge. The pre-check is the
// single most important correctness property of the bootstrap: topology
// creation must never re-run against a healthy existing cluster, since that
// can corrupt slot ownership.
type Initializer struct {
	Prober   probe.Prober
	Creator  Creator
	Replicas int
}

// ShouldCreate probes the reference node once. A sample with state ok means
// the topology already exists and creation must be skipped. Probe failures
// are surfaced in the log — not swallowed — and then treated as "no healthy
// topology": the node was only just launched, and the creation command
// itself fails cleanly if nodes are genuinely absent.
func (i *Initializer) ShouldCreate(ctx context.Context, refAddr string) bool {
	sample, err := i.Prober.Sample(ctx, refAddr)
	if err != nil {
		log.Printf("initializer: pre-check probe of %s failed: %v", refAddr, err)
		return true
	}
	if sample.State == cluster.StateOK {
		log.Printf("initializer: existing healthy topology on %s (%d/%d slots), skipping creation",
			refAddr, sample.SlotsAssigned, cluster.TotalSlots)
		return false
	}
	log.Printf("initializer: no healthy topology on %s (state=%s), creating", refAddr, sample.State)
	return true
}

// Create triggers the engine's cluster-creation operation for the given
// nodes. Slot distribution is delegated to the engine's own deterministic
// split; the expected ranges are logged for the operator, not pushed.
func (i *Initializer) Create(ctx context.Context, specs []cluster.NodeSpec) error {
	addrs := cluster.Addrs(specs)
	masters := len(specs) / (i.Replicas + 1)
	log.Printf("initializer: creating topology across %d nodes (%d masters, %d replicas each)",
		len(specs), masters, i.Replicas)
	for idx, r := range cluster.PlanSlots(masters) {
		log.Printf("initializer: expecting slots %d-%d on master %d (%s)", r.Start, r.End, idx, addrs[idx])
	}

	out, err := i.Creator.Create(ctx, addrs, i.Replicas)
	if err != nil {
		return err
	}
	log.Printf("initializer: creation output:\n%s", strings.TrimSpace(out))
	return nil
}
