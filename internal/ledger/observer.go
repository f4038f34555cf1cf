package ledger

// Observer receives chain notifications. Calls happen after the chain lock
// is released, on the goroutine that performed the mutation, so observers
// may read the chain but should hand slow work to another goroutine.
type Observer interface {
	// OnMine is called with each block mined locally.
	OnMine(block Block)

	// OnBlocks is called with the full block list after it grows. The
	// slice is shared with the chain and must not be modified.
	OnBlocks(blocks []Block)

	// OnPool is called with the pending pool after it changes.
	OnPool(pool []Transaction)

	// OnLog is called with human-readable progress messages.
	OnLog(message string)
}

// ObserverFuncs adapts optional functions to the Observer interface.
// Nil fields are skipped.
type ObserverFuncs struct {
	Mine   func(Block)
	Blocks func([]Block)
	Pool   func([]Transaction)
	Log    func(string)
}

func (f ObserverFuncs) OnMine(b Block) {
	if f.Mine != nil {
		f.Mine(b)
	}
}

func (f ObserverFuncs) OnBlocks(bs []Block) {
	if f.Blocks != nil {
		f.Blocks(bs)
	}
}

func (f ObserverFuncs) OnPool(p []Transaction) {
	if f.Pool != nil {
		f.Pool(p)
	}
}

func (f ObserverFuncs) OnLog(msg string) {
	if f.Log != nil {
		f.Log(msg)
	}
}

// notification is a deferred observer call.
type notification func(Observer)
