package cluster

import "fmt"

// TotalSlots is the size of the engine's hash-slot space. Every slot must be
// owned by exactly one master before the cluster counts as ready.
const TotalSlots = 16384

// Role is a node's place in the cluster topology. A node never decides its
// own role; it is assigned cluster-wide when the topology is created.
type Role string

const (
	RoleUnassigned Role = "unassigned"
	RoleMaster     Role = "master"
	RoleReplica    Role = "replica"
)

// State is the overall cluster state as reported by a node's topology query.
type State string

const (
	StateUnknown State = "unknown"
	StateOK      State = "ok"
	StateFail    State = "fail"
)

// NodeSpec describes one engine process: where it listens and where its
// durable per-node files live. The data directory and topology-config file
// are the node's cluster identity across restarts.
type NodeSpec struct {
	DataDir    string // Per-node data directory (append-log, snapshots)
	ConfigFile string // Engine-owned topology-config file path
	LogFile    string // Engine log file path
	Role       Role   // Topology role, unassigned until the cluster forms
	Port       int    // Listening port
}

// Addr returns the node's loopback address in host:port form.
func (n NodeSpec) Addr() string {
	return fmt.Sprintf("127.0.0.1:%d", n.Port)
}

// Addrs returns the host:port endpoints for a set of node specs, in order.
func Addrs(specs []NodeSpec) []string {
	addrs := make([]string, 0, len(specs))
	for _, s := range specs {
		addrs = append(addrs, s.Addr())
	}
	return addrs
}

// HealthSample is a point-in-time read of a node's view of cluster health.
// It is ephemeral: produced by a probe, consumed by the convergence loop,
// never persisted.
type HealthSample struct {
	Raw           string // Raw topology-status text, printed in the final report
	State         State
	SlotsAssigned int
}

// Ready reports whether the sample satisfies the readiness invariant:
// the cluster is ok and every hash slot is assigned.
func (s HealthSample) Ready() bool {
	return s.State == StateOK && s.SlotsAssigned == TotalSlots
}
