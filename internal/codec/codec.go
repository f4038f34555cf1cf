// Package codec wraps zstd compression for stored records and chain
// transfers.
package codec

import (
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Encoding is the HTTP content-coding token for zstd.
const Encoding = "zstd"

var (
	initOnce sync.Once
	encoder  *zstd.Encoder
	decoder  *zstd.Decoder
	initErr  error
)

// setup creates the shared encoder and decoder. EncodeAll and DecodeAll
// are safe for concurrent use.
func setup() error {
	initOnce.Do(func() {
		encoder, initErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if initErr != nil {
			initErr = fmt.Errorf("create encoder:\n%w", initErr)
			return
		}

		decoder, initErr = zstd.NewReader(nil)
		if initErr != nil {
			initErr = fmt.Errorf("create decoder:\n%w", initErr)
		}
	})

	return initErr
}

// Compress compresses data using zstd.
func Compress(data []byte) ([]byte, error) {
	if err := setup(); err != nil {
		return nil, err
	}

	return encoder.EncodeAll(data, nil), nil
}

// Decompress decompresses zstd-compressed data.
func Decompress(data []byte) ([]byte, error) {
	if err := setup(); err != nil {
		return nil, err
	}

	out, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decode:\n%w", err)
	}

	return out, nil
}

// NewWriter returns a streaming zstd writer over w. Callers must Close it
// to flush the final frame.
func NewWriter(w io.Writer) (io.WriteCloser, error) {
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return nil, fmt.Errorf("create stream encoder:\n%w", err)
	}

	return enc, nil
}

// NewReader returns a streaming zstd reader over r.
func NewReader(r io.Reader) (io.ReadCloser, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("create stream decoder:\n%w", err)
	}

	return dec.IOReadCloser(), nil
}
