// Package ledger implements the mesh edit ledger: transactions, blocks,
// proof-of-work mining and the chain that holds them.
package ledger

import (
	"fmt"
	"sync"
	"time"

	"MeshChain/internal/hash"
	"MeshChain/internal/logger"
	"MeshChain/internal/mesh"
)

// BlockStore persists the block list.
type BlockStore interface {
	// SaveBlock stores the block at the given height.
	SaveBlock(height int, block Block) error

	// LoadBlocks returns all stored blocks ordered by height.
	LoadBlocks() ([]Block, error)
}

// Chain is the append-only block list plus the pool of pending
// transactions. All methods are safe for concurrent use; mutations are
// serialized by a single mutex.
type Chain struct {
	mu     sync.Mutex
	blocks []Block
	pool   []Transaction

	blockSet map[string]struct{}    // blockSet holds every block hash in blocks
	minedTxs map[string]Transaction // minedTxs maps tx hash to its first mined occurrence
	poolSet  map[string]struct{}    // poolSet holds every tx hash in pool

	store     BlockStore
	now       func() int64
	observers []Observer
}

// Option configures the chain during creation.
type Option func(*Chain)

// WithStore persists blocks to s and loads any stored chain at creation.
func WithStore(s BlockStore) Option {
	return func(c *Chain) {
		c.store = s
	}
}

// WithClock replaces the millisecond clock used for mined blocks and
// snapshot transactions.
func WithClock(now func() int64) Option {
	return func(c *Chain) {
		c.now = now
	}
}

// WithObserver registers an observer before any block is loaded.
func WithObserver(o Observer) Option {
	return func(c *Chain) {
		c.observers = append(c.observers, o)
	}
}

// NewChain creates a chain holding only the genesis block, or the stored
// chain when a store with blocks is configured.
func NewChain(opts ...Option) (*Chain, error) {
	c := &Chain{
		blockSet: make(map[string]struct{}),
		minedTxs: make(map[string]Transaction),
		poolSet:  make(map[string]struct{}),
		now:      func() int64 { return time.Now().UnixMilli() },
	}

	for _, opt := range opts {
		opt(c)
	}

	if err := c.load(); err != nil {
		return nil, err
	}

	return c, nil
}

// load fills the chain from the store, seeding it with genesis when empty.
func (c *Chain) load() error {
	genesis := GenesisBlock()

	if c.store == nil {
		c.indexBlock(genesis)
		return nil
	}

	stored, err := c.store.LoadBlocks()
	if err != nil {
		return fmt.Errorf("load blocks:\n%w", err)
	}

	if len(stored) == 0 {
		c.indexBlock(genesis)
		if err := c.store.SaveBlock(0, genesis); err != nil {
			return fmt.Errorf("save genesis:\n%w", err)
		}
		return nil
	}

	if stored[0].Hash() != genesis.Hash() {
		return ErrGenesisMismatch
	}

	for _, b := range stored {
		c.indexBlock(b)
	}

	logger.Info("chain loaded", "blocks", len(c.blocks), "head", hash.Short(c.blocks[len(c.blocks)-1].Hash()))

	return nil
}

// Observe registers an observer for future notifications.
func (c *Chain) Observe(o Observer) {
	c.mu.Lock()
	c.observers = append(c.observers, o)
	c.mu.Unlock()
}

// MineBlock packages every pooled transaction that is not already in a
// block into a new block, appends it and clears the pool.
func (c *Chain) MineBlock() Block {
	c.mu.Lock()

	var notes []notification
	survivors := make([]Transaction, 0, len(c.pool))

	for _, tx := range c.pool {
		if _, mined := c.minedTxs[tx.Hash()]; mined {
			notes = append(notes, c.logf("Chain: Transaction %s already exists in the chain!", tx.Hash()))
			continue
		}
		survivors = append(survivors, tx)
	}

	block := MineNextBlock(c.blocks[len(c.blocks)-1], survivors, c.now())

	_, added := c.addBlockLocked(block)
	notes = append(notes, added...)

	c.pool = nil
	c.poolSet = make(map[string]struct{})
	notes = append(notes, c.poolChanged())

	notes = append(notes,
		c.logf("Chain: Mined a block! (Hash: %s)", block.Hash()),
		func(o Observer) { o.OnMine(block) },
	)

	c.mu.Unlock()
	c.notify(notes)

	return block
}

// AddBlock appends block unless a block with the same hash is already
// present. It reports whether the block was accepted.
func (c *Chain) AddBlock(block Block) bool {
	c.mu.Lock()
	ok, notes := c.addBlockLocked(block)
	c.mu.Unlock()

	c.notify(notes)

	return ok
}

// addBlockLocked appends a block. Callers hold c.mu.
func (c *Chain) addBlockLocked(block Block) (bool, []notification) {
	if _, dup := c.blockSet[block.Hash()]; dup {
		return false, []notification{c.logf("Chain: Block %s already exists in the chain!", block.Hash())}
	}

	c.indexBlock(block)

	if c.store != nil {
		if err := c.store.SaveBlock(len(c.blocks)-1, block); err != nil {
			logger.Error("persist block", "hash", hash.Short(block.Hash()), "error", err)
		}
	}

	if len(c.observers) == 0 {
		return true, nil
	}

	blocks := c.blocksView()

	return true, []notification{func(o Observer) { o.OnBlocks(blocks) }}
}

// indexBlock appends block and records its hashes. Callers hold c.mu or
// own c exclusively.
func (c *Chain) indexBlock(block Block) {
	c.blocks = append(c.blocks, block)
	c.blockSet[block.Hash()] = struct{}{}

	for _, tx := range block.transactions {
		if _, ok := c.minedTxs[tx.Hash()]; !ok {
			c.minedTxs[tx.Hash()] = tx
		}
	}
}

// AddTransaction pools tx unless a transaction with the same hash is
// already pooled. Mined blocks are not consulted here; a transaction that
// is already mined is accepted and later dropped by MineBlock.
func (c *Chain) AddTransaction(tx Transaction) bool {
	c.mu.Lock()
	ok, notes := c.addTransactionLocked(tx)
	c.mu.Unlock()

	c.notify(notes)

	return ok
}

// addTransactionLocked pools a transaction. Callers hold c.mu.
func (c *Chain) addTransactionLocked(tx Transaction) (bool, []notification) {
	if _, dup := c.poolSet[tx.Hash()]; dup {
		return false, []notification{c.logf("Chain: Transaction %s already exists in the mempool!", tx.Hash())}
	}

	c.pool = append(c.pool, tx)
	c.poolSet[tx.Hash()] = struct{}{}

	return true, []notification{c.poolChanged()}
}

// ApplySnapshot turns a full mesh pushed by a tool into a transaction: it
// reconstructs the mesh at the last mined transaction, diffs it against
// model and pools the result. The whole sequence runs under one lock hold.
// The returned bool reports whether the transaction entered the pool.
func (c *Chain) ApplySnapshot(author string, model mesh.Model) (Transaction, bool, error) {
	c.mu.Lock()

	last := c.lastTransactionLocked()

	current, err := Reconstruct(last, lockedFinder{c})
	if err != nil {
		c.mu.Unlock()
		return Transaction{}, false, fmt.Errorf("reconstruct %s:\n%w", hash.Short(last.Hash()), err)
	}

	added, removed := mesh.Diff(current, model)
	tx := NewTransaction(author, c.now(), last.Hash(), added, removed)

	ok, notes := c.addTransactionLocked(tx)

	c.mu.Unlock()
	c.notify(notes)

	return tx, ok, nil
}

// Model reconstructs the mesh described by tx against this chain.
func (c *Chain) Model(tx Transaction) (mesh.Model, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Reconstruct(tx, lockedFinder{c})
}

// FindBlock returns the block with the given hash.
func (c *Chain) FindBlock(h string) (Block, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.blockSet[h]; !ok {
		return Block{}, false
	}

	for _, b := range c.blocks {
		if b.Hash() == h {
			return b, true
		}
	}

	return Block{}, false
}

// FindTransaction returns the first mined transaction with the given hash.
// Pooled transactions are not searched.
func (c *Chain) FindTransaction(h string) (Transaction, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.findTransactionLocked(h)
}

func (c *Chain) findTransactionLocked(h string) (Transaction, bool) {
	tx, ok := c.minedTxs[h]
	return tx, ok
}

// LastTransaction returns the newest transaction of the newest block that
// has any, falling back to the genesis transaction.
func (c *Chain) LastTransaction() Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lastTransactionLocked()
}

func (c *Chain) lastTransactionLocked() Transaction {
	for i := len(c.blocks) - 1; i >= 0; i-- {
		if txs := c.blocks[i].transactions; len(txs) > 0 {
			return txs[len(txs)-1]
		}
	}

	return GenesisTransaction()
}

// LastBlock returns the newest block.
func (c *Chain) LastBlock() Block {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.blocks[len(c.blocks)-1]
}

// Blocks returns a copy of the block list.
func (c *Chain) Blocks() []Block {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.copyBlocks()
}

// Pool returns a copy of the pending transactions.
func (c *Chain) Pool() []Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]Transaction(nil), c.pool...)
}

// Height returns the number of blocks, genesis included.
func (c *Chain) Height() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.blocks)
}

func (c *Chain) copyBlocks() []Block {
	return append([]Block(nil), c.blocks...)
}

// blocksView returns the current block list without copying. Blocks are
// append-only and the capacity is capped, so the view never changes under
// a reader and appending to it reallocates. Callers hold c.mu.
func (c *Chain) blocksView() []Block {
	n := len(c.blocks)
	return c.blocks[:n:n]
}

// poolChanged snapshots the pool for observers. Callers hold c.mu.
func (c *Chain) poolChanged() notification {
	pool := append([]Transaction(nil), c.pool...)
	return func(o Observer) { o.OnPool(pool) }
}

// logf logs a chain message and returns its observer notification.
func (c *Chain) logf(format string, args ...any) notification {
	msg := fmt.Sprintf(format, args...)
	logger.Debug(msg)

	return func(o Observer) { o.OnLog(msg) }
}

// notify delivers notifications to every observer. Callers must not hold
// c.mu.
func (c *Chain) notify(notes []notification) {
	if len(notes) == 0 {
		return
	}

	c.mu.Lock()
	observers := append([]Observer(nil), c.observers...)
	c.mu.Unlock()

	for _, n := range notes {
		for _, o := range observers {
			n(o)
		}
	}
}

// lockedFinder resolves transactions while the caller holds c.mu.
type lockedFinder struct {
	c *Chain
}

func (f lockedFinder) FindTransaction(h string) (Transaction, bool) {
	return f.c.findTransactionLocked(h)
}
