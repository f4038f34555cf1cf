// Package hash computes the content digests that identify models,
// transactions and blocks.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Size is the length of a rendered digest in hex characters.
const Size = sha256.Size * 2

// Sum returns the lowercase hex SHA-256 digest of data.
func Sum(data string) string {
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// Concat hashes the concatenation of parts in order.
func Concat(parts ...string) string {
	return Sum(strings.Join(parts, ""))
}

// Short returns the first 8 characters of a digest for log output.
func Short(h string) string {
	if len(h) <= 8 {
		return h
	}
	return h[:8]
}
