package api

import (
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/zeebo/blake3"
)

const (
	// defaultDedupTTL is how long a delivered body is remembered.
	defaultDedupTTL = 5 * time.Second

	// cleanupInterval is the interval between expiry sweeps.
	cleanupInterval = 1 * time.Second
)

// Dedup suppresses byte-identical deliveries that arrive within a TTL,
// which is what broadcast fan-out produces when peers relay the same
// block or transaction.
type Dedup struct {
	seen *cache.Cache // seen maps body digest to an empty marker
}

// NewDedup creates a tracker that forgets bodies after ttl.
// A zero ttl uses the default.
func NewDedup(ttl time.Duration) *Dedup {
	if ttl <= 0 {
		ttl = defaultDedupTTL
	}

	return &Dedup{seen: cache.New(ttl, cleanupInterval)}
}

// Check returns true if the body is new and records it.
func (d *Dedup) Check(route string, body []byte) bool {
	sum := blake3.Sum256(body)
	key := route + string(sum[:])

	// Add fails when an unexpired entry exists.
	return d.seen.Add(key, struct{}{}, cache.DefaultExpiration) == nil
}

// Len returns the number of remembered bodies, expired ones included
// until the next sweep.
func (d *Dedup) Len() int {
	return d.seen.ItemCount()
}

// Close drops every entry.
func (d *Dedup) Close() {
	d.seen.Flush()
}
