package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"MeshChain/internal/codec"
	"MeshChain/internal/ledger"
)

// blockPrefix namespaces block records: "b:" + big-endian height.
var blockPrefix = []byte("b:")

// BlockStore keeps the block list as zstd-compressed JSON records keyed by
// height. It implements ledger.BlockStore.
type BlockStore struct {
	db *Storage
}

// NewBlockStore returns a block store over db.
func NewBlockStore(db *Storage) *BlockStore {
	return &BlockStore{db: db}
}

// SaveBlock stores block at height.
func (s *BlockStore) SaveBlock(height int, block ledger.Block) error {
	data, err := json.Marshal(block)
	if err != nil {
		return fmt.Errorf("encode block:\n%w", err)
	}

	packed, err := codec.Compress(data)
	if err != nil {
		return fmt.Errorf("compress block:\n%w", err)
	}

	return s.db.Set(blockKey(height), packed)
}

// LoadBlocks returns every stored block in height order. Loading stops
// with an error at the first gap so a damaged store is never silently
// truncated.
func (s *BlockStore) LoadBlocks() ([]ledger.Block, error) {
	var blocks []ledger.Block

	err := s.db.IteratePrefix(blockPrefix, func(key, value []byte) error {
		height, ok := parseBlockKey(key)
		if !ok {
			return fmt.Errorf("malformed block key %x", key)
		}

		if height != uint64(len(blocks)) {
			return fmt.Errorf("missing block at height %d", len(blocks))
		}

		data, err := codec.Decompress(value)
		if err != nil {
			return fmt.Errorf("decompress block %d:\n%w", height, err)
		}

		var b ledger.Block
		if err := json.Unmarshal(data, &b); err != nil {
			return fmt.Errorf("decode block %d:\n%w", height, err)
		}

		blocks = append(blocks, b)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return blocks, nil
}

func blockKey(height int) []byte {
	key := make([]byte, len(blockPrefix)+8)
	copy(key, blockPrefix)
	binary.BigEndian.PutUint64(key[len(blockPrefix):], uint64(height))
	return key
}

func parseBlockKey(key []byte) (uint64, bool) {
	if len(key) != len(blockPrefix)+8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(key[len(blockPrefix):]), true
}
