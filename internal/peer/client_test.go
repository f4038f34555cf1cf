package peer

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"MeshChain/internal/api"
	"MeshChain/internal/config"
	"MeshChain/internal/ledger"
	"MeshChain/internal/mesh"
)

// recorder is a fake node that records every request.
type recorder struct {
	mu     sync.Mutex
	paths  []string
	bodies [][]byte
}

func (r *recorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	body, _ := io.ReadAll(req.Body)

	r.mu.Lock()
	r.paths = append(r.paths, req.URL.Path)
	r.bodies = append(r.bodies, body)
	r.mu.Unlock()

	w.WriteHeader(http.StatusOK)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.paths)
}

// nodeOf converts an httptest URL into a directory entry.
func nodeOf(t *testing.T, url string) config.Node {
	t.Helper()

	host, port, err := net.SplitHostPort(strings.TrimPrefix(url, "http://"))
	if err != nil {
		t.Fatalf("split %s: %v", url, err)
	}

	p, err := strconv.Atoi(port)
	if err != nil {
		t.Fatalf("port %s: %v", port, err)
	}

	return config.Node{Host: host, Port: p}
}

// deadNode returns an address nothing listens on.
func deadNode(t *testing.T) config.Node {
	t.Helper()

	srv := httptest.NewServer(http.NotFoundHandler())
	n := nodeOf(t, srv.URL)
	srv.Close()

	return n
}

func newTestChain(t *testing.T, now int64) *ledger.Chain {
	t.Helper()

	c, err := ledger.NewChain(ledger.WithClock(func() int64 { return now }))
	if err != nil {
		t.Fatalf("NewChain failed: %v", err)
	}

	return c
}

func TestBroadcastTransaction(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	sa, sb := httptest.NewServer(a), httptest.NewServer(b)
	defer sa.Close()
	defer sb.Close()

	c := New([]config.Node{nodeOf(t, sa.URL), nodeOf(t, sb.URL)}, nil)

	tx := ledger.NewTransaction("lab", 9, "", mesh.Empty(), mesh.Empty())
	c.BroadcastTransaction(tx)
	c.Wait()

	for name, r := range map[string]*recorder{"a": a, "b": b} {
		if r.count() != 1 || r.paths[0] != "/transaction" {
			t.Fatalf("peer %s got %v", name, r.paths)
		}

		var got ledger.Transaction
		if err := json.Unmarshal(r.bodies[0], &got); err != nil {
			t.Fatalf("peer %s: decode failed: %v", name, err)
		}
		if got.Hash() != tx.Hash() {
			t.Errorf("peer %s received a different transaction", name)
		}
	}
}

func TestBroadcastRoutes(t *testing.T) {
	peerRec, toolRec := &recorder{}, &recorder{}
	sp, st := httptest.NewServer(peerRec), httptest.NewServer(toolRec)
	defer sp.Close()
	defer st.Close()

	c := New([]config.Node{nodeOf(t, sp.URL)}, []config.Node{nodeOf(t, st.URL)})

	c.BroadcastBlock(ledger.GenesisBlock())
	c.BroadcastModel(mesh.Empty())
	c.Wait()

	if peerRec.count() != 1 || peerRec.paths[0] != "/block" {
		t.Errorf("peer got %v, want [/block]", peerRec.paths)
	}

	if toolRec.count() != 1 || toolRec.paths[0] != "/model" {
		t.Errorf("tool got %v, want [/model]", toolRec.paths)
	}
}

func TestBroadcastToDeadPeer(t *testing.T) {
	live := &recorder{}
	srv := httptest.NewServer(live)
	defer srv.Close()

	c := New([]config.Node{deadNode(t), nodeOf(t, srv.URL)}, nil, WithTimeout(2*time.Second))

	c.BroadcastBlock(ledger.GenesisBlock())

	done := make(chan struct{})
	go func() {
		c.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return")
	}

	if live.count() != 1 {
		t.Errorf("live peer got %d deliveries, want 1", live.count())
	}
}

func TestDownloadChainFallsThrough(t *testing.T) {
	source := newTestChain(t, 5000)
	source.MineBlock()
	source.MineBlock()

	good := httptest.NewServer(api.New(":0", "source", source, nil).Handler())
	defer good.Close()

	unused := &recorder{}
	late := httptest.NewServer(unused)
	defer late.Close()

	c := New([]config.Node{deadNode(t), nodeOf(t, good.URL), nodeOf(t, late.URL)}, nil)

	target := newTestChain(t, 1)
	added := c.DownloadChain(context.Background(), target)

	if added != 2 {
		t.Errorf("added %d blocks, want 2", added)
	}

	if target.Height() != 3 || target.LastBlock().Hash() != source.LastBlock().Hash() {
		t.Errorf("target height %d does not match source", target.Height())
	}

	if unused.count() != 0 {
		t.Error("download continued after the first success")
	}
}

func TestDownloadChainAllFail(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer broken.Close()

	c := New([]config.Node{deadNode(t), nodeOf(t, broken.URL)}, nil)

	target := newTestChain(t, 1)
	if added := c.DownloadChain(context.Background(), target); added != 0 {
		t.Errorf("added %d blocks, want 0", added)
	}

	if target.Height() != 1 {
		t.Errorf("height = %d, want 1", target.Height())
	}
}

func TestDownloadChainCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &recorder{}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	c := New([]config.Node{nodeOf(t, srv.URL), nodeOf(t, srv.URL)}, nil)

	if added := c.DownloadChain(ctx, newTestChain(t, 1)); added != 0 {
		t.Errorf("added %d blocks, want 0", added)
	}

	if rec.count() != 0 {
		t.Errorf("canceled download reached %d peers", rec.count())
	}
}

// cancelingAdder cancels the download after its first accepted block.
type cancelingAdder struct {
	chain  *ledger.Chain
	cancel context.CancelFunc
	calls  int
}

func (a *cancelingAdder) AddBlock(b ledger.Block) bool {
	a.calls++
	ok := a.chain.AddBlock(b)
	a.cancel()
	return ok
}

func TestDownloadChainStopsApplyingOnCancel(t *testing.T) {
	source := newTestChain(t, 5000)
	source.MineBlock()
	source.MineBlock()
	source.MineBlock()

	srv := httptest.NewServer(api.New(":0", "source", source, nil).Handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	adder := &cancelingAdder{chain: newTestChain(t, 1), cancel: cancel}
	c := New([]config.Node{nodeOf(t, srv.URL)}, nil)

	if added := c.DownloadChain(ctx, adder); added != 0 {
		t.Errorf("added %d blocks, want 0 (genesis is a duplicate)", added)
	}

	if adder.calls != 1 {
		t.Errorf("AddBlock called %d times after cancel, want 1", adder.calls)
	}
}
