package ledger

import (
	"encoding/json"
	"strconv"

	"MeshChain/internal/hash"
	"MeshChain/internal/mesh"
)

// Transaction records one mesh edit: the faces added and removed relative
// to the transaction named by PreviousHash. An empty PreviousHash marks the
// root of the history.
type Transaction struct {
	author       string
	timestamp    int64 // unix milliseconds
	previousHash string
	added        mesh.Model
	removed      mesh.Model
	hash         string
}

// NewTransaction builds a transaction and computes its digest.
func NewTransaction(author string, timestamp int64, previousHash string, added, removed mesh.Model) Transaction {
	tx := Transaction{
		author:       author,
		timestamp:    timestamp,
		previousHash: previousHash,
		added:        added,
		removed:      removed,
	}
	tx.hash = tx.computeHash()

	return tx
}

// GenesisTransaction returns the placeholder transaction at the root of
// every history.
func GenesisTransaction() Transaction {
	return NewTransaction("", 0, "", mesh.Empty(), mesh.Empty())
}

// computeHash digests author ‖ timestamp ‖ added.hash ‖ removed.hash.
// PreviousHash is not an input, matching nodes running the JVM desktop
// client compute the same value.
func (t Transaction) computeHash() string {
	return hash.Concat(
		t.author,
		strconv.FormatInt(t.timestamp, 10),
		t.added.Hash(),
		t.removed.Hash(),
	)
}

func (t Transaction) Author() string       { return t.author }
func (t Transaction) Timestamp() int64     { return t.timestamp }
func (t Transaction) PreviousHash() string { return t.previousHash }
func (t Transaction) Added() mesh.Model    { return t.added }
func (t Transaction) Removed() mesh.Model  { return t.removed }

// IsRoot reports whether the transaction starts a history.
func (t Transaction) IsRoot() bool {
	return t.previousHash == ""
}

// Hash returns the transaction digest.
func (t Transaction) Hash() string {
	if t.hash == "" {
		return t.computeHash()
	}
	return t.hash
}

// transactionJSON is the wire shape. The digest is never sent; receivers
// recompute it.
type transactionJSON struct {
	Author       string     `json:"author"`
	Timestamp    int64      `json:"timestamp"`
	PreviousHash string     `json:"previousHash"`
	AddedModel   mesh.Model `json:"addedModel"`
	RemovedModel mesh.Model `json:"removedModel"`
}

// MarshalJSON encodes the wire shape.
func (t Transaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(transactionJSON{
		Author:       t.author,
		Timestamp:    t.timestamp,
		PreviousHash: t.previousHash,
		AddedModel:   t.added,
		RemovedModel: t.removed,
	})
}

// UnmarshalJSON decodes the wire shape and recomputes the digest.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	raw := transactionJSON{AddedModel: mesh.Empty(), RemovedModel: mesh.Empty()}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*t = NewTransaction(raw.Author, raw.Timestamp, raw.PreviousHash, raw.AddedModel, raw.RemovedModel)

	return nil
}
