// Package miner runs block mining on a dedicated goroutine so request
// handlers never spin on proof of work.
package miner

import (
	"sync"
	"time"

	"MeshChain/internal/hash"
	"MeshChain/internal/ledger"
	"MeshChain/internal/logger"
)

// BlockMiner mines the pending pool into a block.
type BlockMiner interface {
	MineBlock() ledger.Block

	// Pool returns the pending transactions.
	Pool() []ledger.Transaction
}

// Miner serves on-demand mining requests and an optional schedule.
type Miner struct {
	chain    BlockMiner
	interval time.Duration // interval between scheduled runs, zero disables

	requests chan struct{} // requests holds at most one queued run
	stop     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// New creates a miner. A positive interval mines the pool on a schedule
// whenever it holds transactions.
func New(chain BlockMiner, interval time.Duration) *Miner {
	return &Miner{
		chain:    chain,
		interval: interval,
		requests: make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
}

// Start begins the mining loop.
func (m *Miner) Start() {
	m.wg.Add(1)
	go m.loop()
}

// Stop stops the loop and waits for a run in progress to finish.
func (m *Miner) Stop() {
	m.once.Do(func() { close(m.stop) })
	m.wg.Wait()
}

// Request queues a mining run. Requests made while one is already queued
// collapse into it; the return value reports whether a new run was queued.
func (m *Miner) Request() bool {
	select {
	case m.requests <- struct{}{}:
		return true
	default:
		return false
	}
}

// loop mines on request and on the schedule.
func (m *Miner) loop() {
	defer m.wg.Done()

	var tick <-chan time.Time
	if m.interval > 0 {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-m.stop:
			return
		case <-m.requests:
			m.mine()
		case <-tick:
			if len(m.chain.Pool()) == 0 {
				continue
			}
			m.mine()
		}
	}
}

// mine runs one mining pass.
func (m *Miner) mine() {
	start := time.Now()
	block := m.chain.MineBlock()

	logger.Info("block mined",
		"hash", hash.Short(block.Hash()),
		"txs", len(block.Transactions()),
		"nonce", block.Nonce(),
		logger.Timed(start),
	)
}
