package launcher

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/georgekhananaev/valkey-cluster/internal/cluster"
)

func specsFor(t *testing.T, ports ...int) []cluster.NodeSpec {
	t.Helper()
	cfg := cluster.DefaultConfig()
	cfg.Ports = ports
	cfg.BaseDir = t.TempDir()
	return cfg.Nodes()
}

// freePort reserves an ephemeral port and releases it, so the test can use a
// port number nothing is listening on.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

// TestLaunchCreatesDirsBeforeSpawn verifies that every per-node directory
// exists before the first process start is attempted.
func TestLaunchCreatesDirsBeforeSpawn(t *testing.T) {
	specs := specsFor(t, freePort(t), freePort(t), freePort(t))

	l := New(cluster.DefaultConfig())
	var started []int
	l.SetStartFunc(func(_ context.Context, spec cluster.NodeSpec) error {
		// All directories must already exist, not just this node's.
		for _, other := range specs {
			info, err := os.Stat(other.DataDir)
			require.NoError(t, err, "dir for port %d missing at spawn time", other.Port)
			require.True(t, info.IsDir())
		}
		started = append(started, spec.Port)
		return nil
	})

	require.NoError(t, l.Launch(context.Background(), specs))
	assert.Len(t, started, len(specs))
}

// TestLaunchPortConflict verifies that a bound port is reported via the
// PortConflict kind while nodes on free ports are still spawned, so a
// partially stale cluster can be re-attached.
func TestLaunchPortConflict(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	boundPort := ln.Addr().(*net.TCPAddr).Port

	okPort := freePort(t)
	specs := specsFor(t, boundPort, okPort)

	l := New(cluster.DefaultConfig())
	var started []int
	l.SetStartFunc(func(_ context.Context, spec cluster.NodeSpec) error {
		started = append(started, spec.Port)
		return nil
	})

	err = l.Launch(context.Background(), specs)
	require.Error(t, err)
	assert.ErrorIs(t, err, cluster.ErrPortConflict)

	var conflict *PortConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []int{boundPort}, conflict.Ports)
	assert.Equal(t, []int{okPort}, started)
}

func TestLaunchSpawnFailure(t *testing.T) {
	specs := specsFor(t, freePort(t))

	l := New(cluster.DefaultConfig())
	l.SetStartFunc(func(_ context.Context, spec cluster.NodeSpec) error {
		return fmt.Errorf("exec: no such binary")
	})

	err := l.Launch(context.Background(), specs)
	require.Error(t, err)
	assert.NotErrorIs(t, err, cluster.ErrPortConflict)
	assert.Contains(t, err.Error(), strconv.Itoa(specs[0].Port))
}

func TestLaunchDirCreationFailure(t *testing.T) {
	// A file where the base directory should be makes MkdirAll fail.
	base := filepath.Join(t.TempDir(), "blocked")
	require.NoError(t, os.WriteFile(base, []byte("x"), 0o644))

	cfg := cluster.DefaultConfig()
	cfg.Ports = []int{freePort(t)}
	cfg.BaseDir = base

	l := New(cfg)
	l.SetStartFunc(func(_ context.Context, _ cluster.NodeSpec) error {
		t.Fatal("spawn attempted despite dir failure")
		return nil
	})
	assert.Error(t, l.Launch(context.Background(), cfg.Nodes()))
}
