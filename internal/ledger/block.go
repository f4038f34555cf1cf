package ledger

import (
	"encoding/json"
	"strconv"
	"strings"

	"MeshChain/internal/hash"
)

// Block is an immutable, mined batch of transactions linked to its parent
// block by hash.
type Block struct {
	timestamp    int64 // unix milliseconds
	previousHash string
	transactions []Transaction
	nonce        int64
	hash         string
}

// NewBlock builds a block and computes its digest.
func NewBlock(timestamp int64, previousHash string, transactions []Transaction, nonce int64) Block {
	b := Block{
		timestamp:    timestamp,
		previousHash: previousHash,
		transactions: append([]Transaction(nil), transactions...),
		nonce:        nonce,
	}
	b.hash = b.computeHash()

	return b
}

// GenesisBlock returns the fixed first block shared by every node.
func GenesisBlock() Block {
	return NewBlock(0, "", []Transaction{GenesisTransaction()}, 0)
}

// computeHash digests timestamp ‖ previousHash ‖ tx hashes ‖ nonce.
// Transaction hashes are joined with ", " to stay compatible with chains
// produced by the JVM desktop client.
func (b Block) computeHash() string {
	hashes := make([]string, len(b.transactions))
	for i, tx := range b.transactions {
		hashes[i] = tx.Hash()
	}

	return hash.Concat(
		strconv.FormatInt(b.timestamp, 10),
		b.previousHash,
		strings.Join(hashes, ", "),
		strconv.FormatInt(b.nonce, 10),
	)
}

func (b Block) Timestamp() int64     { return b.timestamp }
func (b Block) PreviousHash() string { return b.previousHash }
func (b Block) Nonce() int64         { return b.nonce }

// Transactions returns a copy of the block's transactions in order.
func (b Block) Transactions() []Transaction {
	return append([]Transaction(nil), b.transactions...)
}

// Hash returns the block digest.
func (b Block) Hash() string {
	if b.hash == "" {
		return b.computeHash()
	}
	return b.hash
}

// FindTransaction returns the block's transaction with the given hash.
func (b Block) FindTransaction(h string) (Transaction, bool) {
	for _, tx := range b.transactions {
		if tx.Hash() == h {
			return tx, true
		}
	}
	return Transaction{}, false
}

// blockJSON is the wire shape. The digest is recomputed on receipt.
type blockJSON struct {
	Timestamp    int64         `json:"timestamp"`
	PreviousHash string        `json:"previousHash"`
	Transactions []Transaction `json:"transactions"`
	Nonce        int64         `json:"nonce"`
}

// MarshalJSON encodes the wire shape.
func (b Block) MarshalJSON() ([]byte, error) {
	txs := b.transactions
	if txs == nil {
		txs = []Transaction{}
	}

	return json.Marshal(blockJSON{
		Timestamp:    b.timestamp,
		PreviousHash: b.previousHash,
		Transactions: txs,
		Nonce:        b.nonce,
	})
}

// UnmarshalJSON decodes the wire shape and recomputes the digest.
func (b *Block) UnmarshalJSON(data []byte) error {
	var raw blockJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*b = NewBlock(raw.Timestamp, raw.PreviousHash, raw.Transactions, raw.Nonce)

	return nil
}

// BlockList is the /download response body.
type BlockList struct {
	Blocks []Block `json:"blocks"`
}
