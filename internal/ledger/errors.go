package ledger

import (
	"errors"
	"fmt"

	"MeshChain/internal/hash"
)

var (
	// ErrBrokenHistory is matched by every failure to resolve a
	// transaction's ancestry.
	ErrBrokenHistory = errors.New("broken transaction history")

	// ErrGenesisMismatch is returned when a persisted chain does not start
	// with the shared genesis block.
	ErrGenesisMismatch = errors.New("stored chain does not start with the genesis block")
)

// BrokenHistoryError reports the link that could not be followed while
// replaying a transaction's ancestry.
type BrokenHistoryError struct {
	From    string // From is the transaction whose previous hash failed to resolve
	Missing string // Missing is the unresolved previous hash
	Cycle   bool   // Cycle is set when the walk revisited a transaction
}

func (e *BrokenHistoryError) Error() string {
	if e.Cycle {
		return fmt.Sprintf("%v: cycle at %s", ErrBrokenHistory, hash.Short(e.Missing))
	}
	return fmt.Sprintf("%v: %s references unknown transaction %s",
		ErrBrokenHistory, hash.Short(e.From), hash.Short(e.Missing))
}

// Is makes errors.Is(err, ErrBrokenHistory) succeed.
func (e *BrokenHistoryError) Is(target error) bool {
	return target == ErrBrokenHistory
}
