// Package cluster holds the shared vocabulary of the bootstrap orchestrator:
// node specs, health samples, the error taxonomy, configuration, and the
// expected slot distribution.
//
// # Data model
//
// A NodeSpec describes one engine process and its durable on-disk identity
// (data directory, topology-config file, log file). The cluster topology
// itself — which node owns which slots — is persisted by the engine in its
// own topology files, one per node. This package deliberately does not model
// that topology as mutable in-process state: the engine owns it, and the
// orchestrator only observes it through the query protocol and triggers the
// engine's own creation command.
//
// # Readiness
//
// A HealthSample is one observation of a node's view of the cluster. The
// cluster is ready iff the state is ok and all TotalSlots hash slots are
// assigned:
//
//	sample, err := prober.Sample(ctx, addr)
//	if err == nil && sample.Ready() {
//	    // converged
//	}
//
// # Error taxonomy
//
// The sentinel errors here are the orchestrator's boundary language.
// ErrUnreachable and ErrMalformedResponse are transient (a just-started node
// refuses connections briefly); ErrPortConflict is recoverable only when the
// caller opts to attach to already-running nodes; ErrTopologyCreationFailed
// is always fatal; ErrConvergenceTimeout fails the invocation but leaves the
// node processes running for a retry.
package cluster
