// Package probe implements the topology prober: a one-shot query of a
// running node's cluster state and slot-assignment count over the engine's
// wire protocol.
package probe

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/georgekhananaev/valkey-cluster/internal/cluster"
)

// Prober queries one reachable node for its view of the cluster topology.
// Implementations return cluster.ErrUnreachable for connection refusal or
// timeout and cluster.ErrMalformedResponse for an unexpected reply shape;
// callers treat both as "not ready yet" during polling.
type Prober interface {
	Sample(ctx context.Context, addr string) (cluster.HealthSample, error)
}

// RESPProber issues CLUSTER INFO over the node's port. Each call dials a
// fresh single connection and closes it, so a probe never pins a connection
// to a node that is about to change state.
type RESPProber struct {
	// Timeout bounds dial, read and write per probe. Zero means 2s.
	Timeout time.Duration
}

func (p *RESPProber) timeout() time.Duration {
	if p.Timeout > 0 {
		return p.Timeout
	}
	return 2 * time.Second
}

func (p *RESPProber) client(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:             addr,
		DialTimeout:      p.timeout(),
		ReadTimeout:      p.timeout(),
		WriteTimeout:     p.timeout(),
		PoolSize:         1,
		MaxRetries:       -1, // retrying is the poller's job, not the probe's
		DisableIndentity: true,
	})
}

// Sample queries addr for its topology status and parses the cluster state
// and assigned-slot count out of the reply.
func (p *RESPProber) Sample(ctx context.Context, addr string) (cluster.HealthSample, error) {
	client := p.client(addr)
	defer client.Close()

	text, err := client.ClusterInfo(ctx).Result()
	if err != nil {
		return cluster.HealthSample{}, fmt.Errorf("%w: %s: %v", cluster.ErrUnreachable, addr, err)
	}
	return ParseClusterInfo(text)
}

// Nodes returns the raw node listing from addr, used by the one-shot status
// report. Unparsed: the listing is operator-facing output.
func (p *RESPProber) Nodes(ctx context.Context, addr string) (string, error) {
	client := p.client(addr)
	defer client.Close()

	text, err := client.ClusterNodes(ctx).Result()
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", cluster.ErrUnreachable, addr, err)
	}
	return text, nil
}

// ParseClusterInfo extracts cluster_state and cluster_slots_assigned from the
// engine's line-oriented topology-status text. Both fields must be present
// and well-formed; anything else is a malformed response.
func ParseClusterInfo(text string) (cluster.HealthSample, error) {
	sample := cluster.HealthSample{Raw: text, State: cluster.StateUnknown, SlotsAssigned: -1}
	for _, line := range strings.Split(text, "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok {
			continue
		}
		switch key {
		case "cluster_state":
			switch value {
			case "ok":
				sample.State = cluster.StateOK
			case "fail":
				sample.State = cluster.StateFail
			default:
				return sample, fmt.Errorf("%w: unknown cluster_state %q", cluster.ErrMalformedResponse, value)
			}
		case "cluster_slots_assigned":
			n, err := strconv.Atoi(value)
			if err != nil {
				return sample, fmt.Errorf("%w: bad cluster_slots_assigned %q", cluster.ErrMalformedResponse, value)
			}
			sample.SlotsAssigned = n
		}
	}
	if sample.State == cluster.StateUnknown || sample.SlotsAssigned < 0 {
		return sample, fmt.Errorf("%w: missing cluster_state or cluster_slots_assigned", cluster.ErrMalformedResponse)
	}
	return sample, nil
}
