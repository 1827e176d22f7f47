package cluster

import "errors"

// Error kinds surfaced at the orchestrator boundary. Component-local errors
// are translated into these with %w wrapping so callers can classify them
// with errors.Is.
var (
	// ErrPortConflict means a configured port is already bound. Recoverable
	// when the caller treats it as "node already running", fatal otherwise.
	ErrPortConflict = errors.New("port already in use")

	// ErrUnreachable means a node refused or timed out on a topology query.
	// During polling this folds into "not ready yet".
	ErrUnreachable = errors.New("node unreachable")

	// ErrMalformedResponse means a topology query returned a reply whose
	// shape could not be parsed.
	ErrMalformedResponse = errors.New("malformed topology response")

	// ErrTopologyCreationFailed means the engine's cluster-create operation
	// errored or returned unexpected output. Always fatal.
	ErrTopologyCreationFailed = errors.New("topology creation failed")

	// ErrConvergenceTimeout means the poll budget ran out before the cluster
	// reported healthy and fully slotted. The node processes keep running, so
	// a later invocation may still succeed.
	ErrConvergenceTimeout = errors.New("cluster did not converge before deadline")
)

// IsNotReady reports whether err is one of the transient probe failures that
// a just-started node legitimately produces.
func IsNotReady(err error) bool {
	return errors.Is(err, ErrUnreachable) || errors.Is(err, ErrMalformedResponse)
}
