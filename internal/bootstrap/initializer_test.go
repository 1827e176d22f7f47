package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/georgekhananaev/valkey-cluster/internal/cluster"
)

// stubCreator records creation calls and returns a canned result.
type stubCreator struct {
	calls    int
	addrs    []string
	replicas int
	out      string
	err      error
}

func (s *stubCreator) Create(_ context.Context, addrs []string, replicas int) (string, error) {
	s.calls++
	s.addrs = addrs
	s.replicas = replicas
	return s.out, s.err
}

func sixNodeSpecs() []cluster.NodeSpec {
	cfg := cluster.DefaultConfig()
	return cfg.Nodes()
}

// TestInitializerSkipsHealthyTopology is the idempotence property: a prober
// reporting ok on the very first call means the creation command must never
// run.
func TestInitializerSkipsHealthyTopology(t *testing.T) {
	prober := &stubProber{script: []func() (cluster.HealthSample, error){ready}}
	creator := &stubCreator{}
	init := &Initializer{Prober: prober, Creator: creator}

	assert.False(t, init.ShouldCreate(context.Background(), "127.0.0.1:6000"))
	assert.Equal(t, 1, prober.calls)
	assert.Zero(t, creator.calls, "creation must not run against a healthy cluster")
}

func TestInitializerCreatesWhenUnhealthy(t *testing.T) {
	prober := &stubProber{script: []func() (cluster.HealthSample, error){notReady}}
	init := &Initializer{Prober: prober}
	assert.True(t, init.ShouldCreate(context.Background(), "127.0.0.1:6000"))
}

// A pre-check probe failure is surfaced but still leads to creation: the
// node was only just launched and the create command fails cleanly if nodes
// are genuinely absent.
func TestInitializerCreatesOnPrecheckFailure(t *testing.T) {
	prober := &stubProber{script: []func() (cluster.HealthSample, error){unreachable}}
	init := &Initializer{Prober: prober}
	assert.True(t, init.ShouldCreate(context.Background(), "127.0.0.1:6000"))
}

func TestInitializerCreatePassesEndpoints(t *testing.T) {
	creator := &stubCreator{out: "[OK] All 16384 slots covered"}
	init := &Initializer{Creator: creator, Replicas: 1}

	specs := sixNodeSpecs()
	require.NoError(t, init.Create(context.Background(), specs))
	assert.Equal(t, 1, creator.calls)
	assert.Equal(t, cluster.Addrs(specs), creator.addrs)
	assert.Equal(t, 1, creator.replicas)
}

func TestInitializerCreateFailure(t *testing.T) {
	creator := &stubCreator{err: cluster.ErrTopologyCreationFailed}
	init := &Initializer{Creator: creator}

	err := init.Create(context.Background(), sixNodeSpecs())
	assert.ErrorIs(t, err, cluster.ErrTopologyCreationFailed)
}

func TestLastLine(t *testing.T) {
	assert.Equal(t, "final", lastLine("first\nsecond\nfinal\n"))
	assert.Equal(t, "only", lastLine("only"))
	assert.Equal(t, "", lastLine(""))
}
