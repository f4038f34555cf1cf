package ledger

import (
	"strconv"
	"strings"

	"MeshChain/internal/hash"
)

// workPrefix is the fixed proof-of-work target.
const workPrefix = "00"

// ValidNonce reports whether nonce satisfies the proof of work for a child
// of parent.
func ValidNonce(parent Block, nonce int64) bool {
	digest := hash.Concat(
		strconv.FormatInt(parent.nonce, 10),
		strconv.FormatInt(nonce, 10),
		parent.Hash(),
	)
	return strings.HasPrefix(digest, workPrefix)
}

// MineNextBlock searches nonces from zero until one satisfies ValidNonce,
// then returns the child block carrying transactions. It blocks the calling
// goroutine for the whole search.
func MineNextBlock(parent Block, transactions []Transaction, timestamp int64) Block {
	var nonce int64
	for !ValidNonce(parent, nonce) {
		nonce++
	}

	return NewBlock(timestamp, parent.Hash(), transactions, nonce)
}
