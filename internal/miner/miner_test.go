package miner

import (
	"sync"
	"testing"
	"time"

	"MeshChain/internal/ledger"
	"MeshChain/internal/mesh"
)

// countingChain wraps a chain and signals every mined block.
type countingChain struct {
	*ledger.Chain

	mu    sync.Mutex
	mined int
	done  chan struct{}
}

func newCountingChain(t *testing.T) *countingChain {
	t.Helper()

	c, err := ledger.NewChain(ledger.WithClock(func() int64 { return 77 }))
	if err != nil {
		t.Fatalf("NewChain failed: %v", err)
	}

	return &countingChain{Chain: c, done: make(chan struct{}, 16)}
}

func (c *countingChain) MineBlock() ledger.Block {
	b := c.Chain.MineBlock()

	c.mu.Lock()
	c.mined++
	c.mu.Unlock()

	c.done <- struct{}{}

	return b
}

func (c *countingChain) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mined
}

func waitMined(t *testing.T, c *countingChain) {
	t.Helper()

	select {
	case <-c.done:
	case <-time.After(5 * time.Second):
		t.Fatal("no block mined")
	}
}

func TestRequestMines(t *testing.T) {
	chain := newCountingChain(t)
	m := New(chain, 0)
	m.Start()
	defer m.Stop()

	if !m.Request() {
		t.Fatal("first request was not queued")
	}

	waitMined(t, chain)

	if chain.Height() != 2 {
		t.Errorf("height = %d, want 2", chain.Height())
	}
}

func TestRequestsCollapse(t *testing.T) {
	chain := newCountingChain(t)
	m := New(chain, 0)

	// Not started: the first request fills the queue.
	if !m.Request() {
		t.Fatal("first request was not queued")
	}
	if m.Request() {
		t.Error("second request should collapse into the queued one")
	}

	m.Start()
	waitMined(t, chain)
	m.Stop()

	if chain.count() != 1 {
		t.Errorf("mined %d blocks, want 1", chain.count())
	}
}

func TestScheduleSkipsEmptyPool(t *testing.T) {
	chain := newCountingChain(t)
	m := New(chain, 10*time.Millisecond)
	m.Start()

	time.Sleep(50 * time.Millisecond)

	if chain.count() != 0 {
		t.Errorf("mined %d blocks from an empty pool", chain.count())
	}

	chain.AddTransaction(ledger.NewTransaction("lab", 1, "", mesh.Empty(), mesh.Empty()))
	waitMined(t, chain)
	m.Stop()

	if len(chain.Pool()) != 0 {
		t.Error("pool not cleared by scheduled run")
	}
}

func TestStopIdempotent(t *testing.T) {
	m := New(newCountingChain(t), 0)
	m.Start()
	m.Stop()
	m.Stop()
}
