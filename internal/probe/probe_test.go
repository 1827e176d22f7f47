package probe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/georgekhananaev/valkey-cluster/internal/cluster"
	"github.com/georgekhananaev/valkey-cluster/internal/enginetest"
)

func TestParseClusterInfo(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantState cluster.State
		wantSlots int
		wantErr   error
	}{
		{
			name:      "healthy",
			text:      "cluster_enabled:1\r\ncluster_state:ok\r\ncluster_slots_assigned:16384\r\ncluster_known_nodes:6\r\n",
			wantState: cluster.StateOK,
			wantSlots: 16384,
		},
		{
			name:      "failed with no slots",
			text:      "cluster_state:fail\r\ncluster_slots_assigned:0\r\n",
			wantState: cluster.StateFail,
			wantSlots: 0,
		},
		{
			name:    "missing slot count",
			text:    "cluster_state:ok\r\n",
			wantErr: cluster.ErrMalformedResponse,
		},
		{
			name:    "missing state",
			text:    "cluster_slots_assigned:16384\r\n",
			wantErr: cluster.ErrMalformedResponse,
		},
		{
			name:    "unknown state token",
			text:    "cluster_state:wedged\r\ncluster_slots_assigned:0\r\n",
			wantErr: cluster.ErrMalformedResponse,
		},
		{
			name:    "unparsable slot count",
			text:    "cluster_state:ok\r\ncluster_slots_assigned:lots\r\n",
			wantErr: cluster.ErrMalformedResponse,
		},
		{
			name:    "empty reply",
			text:    "",
			wantErr: cluster.ErrMalformedResponse,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sample, err := ParseClusterInfo(tt.text)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantState, sample.State)
			assert.Equal(t, tt.wantSlots, sample.SlotsAssigned)
			assert.Equal(t, tt.text, sample.Raw)
		})
	}
}

// TestRESPProberSample exercises the prober against an in-process engine
// speaking the real wire protocol.
func TestRESPProberSample(t *testing.T) {
	engine, err := enginetest.Start()
	require.NoError(t, err)
	defer engine.Close()

	prober := &RESPProber{Timeout: time.Second}

	sample, err := prober.Sample(context.Background(), engine.Addr())
	require.NoError(t, err)
	assert.Equal(t, cluster.StateOK, sample.State)
	assert.Equal(t, cluster.TotalSlots, sample.SlotsAssigned)
	assert.True(t, sample.Ready())

	// A degraded node reports fail with partial slots.
	engine.SetTopology("fail", 42)
	sample, err = prober.Sample(context.Background(), engine.Addr())
	require.NoError(t, err)
	assert.Equal(t, cluster.StateFail, sample.State)
	assert.Equal(t, 42, sample.SlotsAssigned)
	assert.False(t, sample.Ready())
}

func TestRESPProberUnreachable(t *testing.T) {
	// Nothing listens here: the engine is started then immediately stopped.
	engine, err := enginetest.Start()
	require.NoError(t, err)
	addr := engine.Addr()
	engine.Close()

	prober := &RESPProber{Timeout: 200 * time.Millisecond}
	_, err = prober.Sample(context.Background(), addr)
	assert.ErrorIs(t, err, cluster.ErrUnreachable)
	assert.True(t, cluster.IsNotReady(err))
}

func TestRESPProberNodes(t *testing.T) {
	engine, err := enginetest.Start()
	require.NoError(t, err)
	defer engine.Close()
	engine.SetNodeLines("abc 127.0.0.1:6000@16000 myself,master - 0 0 0 connected 0-16383\n")

	prober := &RESPProber{Timeout: time.Second}
	nodes, err := prober.Nodes(context.Background(), engine.Addr())
	require.NoError(t, err)
	assert.Contains(t, nodes, "myself,master")
}
