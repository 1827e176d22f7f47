// Package enginetest provides an in-process stand-in for a valkey node,
// speaking just enough of the engine's wire protocol for the bootstrap and
// benchmark tests: topology-status queries with scriptable state, plus the
// handful of data commands the benchmark exercises.
package enginetest

import (
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/tidwall/match"
	"github.com/tidwall/redcon"

	"github.com/georgekhananaev/valkey-cluster/internal/cluster"
)

// Topology is one scripted topology-status reply.
type Topology struct {
	State string // "ok" or "fail"
	Slots int    // value reported as cluster_slots_assigned
}

// FakeEngine is a loopback RESP server posing as one cluster node. Topology
// state is mutable so tests can model a cluster that converges (or never
// does); data commands operate on an in-memory map.
type FakeEngine struct {
	ln  net.Listener
	srv *redcon.Server

	mu        sync.Mutex
	topology  Topology
	script    []Topology // consumed one per CLUSTER INFO call, last sticks
	nodeLines string
	data      map[string]string
	infoCalls int
}

// Start listens on an ephemeral loopback port and serves until Close. The
// engine starts healthy with all slots assigned; use SetTopology or
// ScriptTopology to change that.
func Start() (*FakeEngine, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	f := &FakeEngine{
		ln:       ln,
		topology: Topology{State: "ok", Slots: cluster.TotalSlots},
		data:     make(map[string]string),
	}
	f.srv = redcon.NewServer(ln.Addr().String(), f.handleCommand, nil, nil)
	go f.srv.Serve(ln) //nolint:errcheck // closed listener ends Serve
	return f, nil
}

// Addr returns the host:port the fake engine is listening on.
func (f *FakeEngine) Addr() string {
	return f.ln.Addr().String()
}

// Port returns the bound port.
func (f *FakeEngine) Port() int {
	return f.ln.Addr().(*net.TCPAddr).Port
}

func (f *FakeEngine) Close() {
	// srv.Close only closes the listener once Serve (running in its own
	// goroutine) has registered it; close the listener directly too so a
	// Close racing Start still stops the engine accepting connections.
	f.srv.Close() //nolint:errcheck
	f.ln.Close()  //nolint:errcheck
}

// SetTopology fixes the topology-status reply.
func (f *FakeEngine) SetTopology(state string, slots int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topology = Topology{State: state, Slots: slots}
	f.script = nil
}

// ScriptTopology queues one reply per CLUSTER INFO call; the final entry
// keeps answering once the script runs out.
func (f *FakeEngine) ScriptTopology(seq ...Topology) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.script = seq
}

// SetNodeLines overrides the CLUSTER NODES listing.
func (f *FakeEngine) SetNodeLines(lines string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nodeLines = lines
}

// InfoCalls returns how many CLUSTER INFO queries the engine has answered.
func (f *FakeEngine) InfoCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.infoCalls
}

func (f *FakeEngine) nextTopology() Topology {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.infoCalls++
	if len(f.script) > 0 {
		t := f.script[0]
		if len(f.script) > 1 {
			f.script = f.script[1:]
		}
		f.topology = t
		return t
	}
	return f.topology
}

func (f *FakeEngine) handleCommand(conn redcon.Conn, cmd redcon.Command) {
	if len(cmd.Args) == 0 {
		conn.WriteError("ERR empty command")
		return
	}
	name := strings.ToUpper(string(cmd.Args[0]))
	args := cmd.Args[1:]
	switch name {
	case "PING":
		conn.WriteString("PONG")
	case "QUIT":
		conn.WriteString("OK")
		conn.Close()
	case "CLIENT":
		conn.WriteString("OK")
	case "COMMAND":
		conn.WriteArray(0)
	case "CLUSTER":
		f.handleCluster(conn, args)
	case "SET":
		f.handleSet(conn, args)
	case "GET":
		f.handleGet(conn, args)
	case "DEL":
		f.handleDel(conn, args)
	case "SCAN":
		f.handleScan(conn, args)
	default:
		// Unknown commands include HELLO, which makes the client fall back
		// to the plain protocol, same as a pre-RESP3 engine would.
		conn.WriteError(fmt.Sprintf("ERR unknown command '%s'", strings.ToLower(name)))
	}
}

func (f *FakeEngine) handleCluster(conn redcon.Conn, args [][]byte) {
	if len(args) == 0 {
		conn.WriteError("ERR wrong number of arguments for 'cluster' command")
		return
	}
	switch strings.ToUpper(string(args[0])) {
	case "INFO":
		t := f.nextTopology()
		info := fmt.Sprintf(
			"cluster_enabled:1\r\ncluster_state:%s\r\ncluster_slots_assigned:%d\r\ncluster_slots_ok:%d\r\ncluster_known_nodes:1\r\ncluster_size:1\r\n",
			t.State, t.Slots, t.Slots)
		conn.WriteBulkString(info)
	case "NODES":
		f.mu.Lock()
		lines := f.nodeLines
		f.mu.Unlock()
		if lines == "" {
			lines = fmt.Sprintf("0000000000000000000000000000000000000000 %s@%d myself,master - 0 0 0 connected 0-%d\n",
				f.Addr(), f.Port()+10000, cluster.TotalSlots-1)
		}
		conn.WriteBulkString(lines)
	case "SLOTS":
		// One node owning the whole slot space, so a cluster-aware client
		// can discover this engine and route everything to it.
		conn.WriteArray(1)
		conn.WriteArray(3)
		conn.WriteInt(0)
		conn.WriteInt(cluster.TotalSlots - 1)
		conn.WriteArray(3)
		conn.WriteBulkString("127.0.0.1")
		conn.WriteInt(f.Port())
		conn.WriteBulkString("0000000000000000000000000000000000000000")
	default:
		conn.WriteError(fmt.Sprintf("ERR unknown subcommand '%s'", string(args[0])))
	}
}

func (f *FakeEngine) handleSet(conn redcon.Conn, args [][]byte) {
	if len(args) < 2 {
		conn.WriteError("ERR wrong number of arguments for 'set' command")
		return
	}
	// Expiry options (EX etc.) are accepted and ignored.
	f.mu.Lock()
	f.data[string(args[0])] = string(args[1])
	f.mu.Unlock()
	conn.WriteString("OK")
}

func (f *FakeEngine) handleGet(conn redcon.Conn, args [][]byte) {
	if len(args) != 1 {
		conn.WriteError("ERR wrong number of arguments for 'get' command")
		return
	}
	f.mu.Lock()
	value, ok := f.data[string(args[0])]
	f.mu.Unlock()
	if !ok {
		conn.WriteNull()
		return
	}
	conn.WriteBulkString(value)
}

func (f *FakeEngine) handleDel(conn redcon.Conn, args [][]byte) {
	if len(args) == 0 {
		conn.WriteError("ERR wrong number of arguments for 'del' command")
		return
	}
	deleted := 0
	f.mu.Lock()
	for _, key := range args {
		if _, ok := f.data[string(key)]; ok {
			delete(f.data, string(key))
			deleted++
		}
	}
	f.mu.Unlock()
	conn.WriteInt(deleted)
}

func (f *FakeEngine) handleScan(conn redcon.Conn, args [][]byte) {
	if len(args) == 0 {
		conn.WriteError("ERR wrong number of arguments for 'scan' command")
		return
	}
	pattern := "*"
	for i := 1; i < len(args)-1; i++ {
		if strings.ToUpper(string(args[i])) == "MATCH" {
			pattern = string(args[i+1])
		}
	}
	f.mu.Lock()
	var keys []string
	for key := range f.data {
		if match.Match(key, pattern) {
			keys = append(keys, key)
		}
	}
	f.mu.Unlock()
	// Single-pass cursor: everything in one reply.
	conn.WriteArray(2)
	conn.WriteBulkString("0")
	conn.WriteArray(len(keys))
	for _, key := range keys {
		conn.WriteBulkString(key)
	}
}

// Keys returns a snapshot of the stored key set, for benchmark assertions.
func (f *FakeEngine) Keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.data))
	for key := range f.data {
		keys = append(keys, key)
	}
	return keys
}
