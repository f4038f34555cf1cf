package integration

import (
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"MeshChain/client"
	"MeshChain/internal/api"
	"MeshChain/internal/config"
	"MeshChain/internal/ledger"
	"MeshChain/internal/miner"
	"MeshChain/internal/peer"
)

// TestNode is an in-process node listening on a loopback port.
type TestNode struct {
	index  int              // index is the node's position in the cluster
	addr   config.Node      // addr is the node's endpoint
	chain  *ledger.Chain    // chain is the node's ledger
	peers  *peer.Client     // peers broadcasts to the rest of the cluster
	miner  *miner.Miner     // miner runs mining requests
	server *httptest.Server // server serves the node's HTTP API
	api    *client.Client   // api is an operator client for this node
}

// listenLoopback reserves a loopback port.
func listenLoopback(t *testing.T) (net.Listener, config.Node) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	_, port, _ := net.SplitHostPort(ln.Addr().String())
	p, _ := strconv.Atoi(port)

	return ln, config.Node{Host: "127.0.0.1", Port: p}
}

// nodeOf converts an httptest URL into a directory entry.
func nodeOf(t *testing.T, url string) config.Node {
	t.Helper()

	host, port, err := net.SplitHostPort(strings.TrimPrefix(url, "http://"))
	if err != nil {
		t.Fatalf("split %s: %v", url, err)
	}

	p, _ := strconv.Atoi(port)

	return config.Node{Host: host, Port: p}
}

// startCluster starts n fully meshed nodes, all sending checkouts to tools.
func startCluster(t *testing.T, n int, tools []config.Node) []*TestNode {
	t.Helper()

	listeners := make([]net.Listener, n)
	addrs := make([]config.Node, n)
	for i := range listeners {
		listeners[i], addrs[i] = listenLoopback(t)
	}

	nodes := make([]*TestNode, n)
	for i := range nodes {
		var others []config.Node
		for j, a := range addrs {
			if j != i {
				others = append(others, a)
			}
		}

		nodes[i] = startNode(t, i, listeners[i], addrs[i], others, tools)
	}

	return nodes
}

// startNode wires a node the way cmd/node does, minus storage.
func startNode(t *testing.T, index int, ln net.Listener, addr config.Node, peers, tools []config.Node) *TestNode {
	t.Helper()

	node := &TestNode{
		index: index,
		addr:  addr,
		peers: peer.New(peers, tools, peer.WithTimeout(5*time.Second)),
	}

	chain, err := ledger.NewChain(ledger.WithObserver(ledger.ObserverFuncs{
		Mine: node.peers.BroadcastBlock,
	}))
	if err != nil {
		t.Fatalf("node %d: NewChain failed: %v", index, err)
	}

	node.chain = chain
	node.miner = miner.New(chain, 0)
	node.miner.Start()

	srv := api.New(addr.Addr(), "node-"+strconv.Itoa(index), chain, node.peers, api.WithMiner(node.miner))

	node.server = httptest.NewUnstartedServer(srv.Handler())
	node.server.Listener.Close()
	node.server.Listener = ln
	node.server.Start()

	node.api = client.NewClient(addr.Addr(), 5*time.Second)

	return node
}

// stop shuts the node down.
func (n *TestNode) stop() {
	n.server.Close()
	n.miner.Stop()
	n.peers.Wait()
}

// stopAllNodes stops every node in the cluster.
func stopAllNodes(nodes []*TestNode) {
	for _, n := range nodes {
		n.stop()
	}
}

// eventually polls cond until it holds or the timeout expires.
func eventually(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("timed out waiting for %s", what)
}

// toolRecorder is a fake modeling tool capturing pushed models.
type toolRecorder struct {
	mu     sync.Mutex
	bodies [][]byte
}

func (r *toolRecorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	body, _ := io.ReadAll(req.Body)

	r.mu.Lock()
	r.bodies = append(r.bodies, body)
	r.mu.Unlock()

	w.WriteHeader(http.StatusOK)
}

func (r *toolRecorder) received() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([][]byte(nil), r.bodies...)
}
