// Package peer sends a node's results to the rest of the network:
// fire-and-forget broadcasts to peers and tools, and chain download.
package peer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"MeshChain/internal/codec"
	"MeshChain/internal/config"
	"MeshChain/internal/hash"
	"MeshChain/internal/ledger"
	"MeshChain/internal/logger"
	"MeshChain/internal/mesh"
)

// BlockAdder receives downloaded blocks.
type BlockAdder interface {
	AddBlock(block ledger.Block) bool
}

// Client broadcasts to the peers and tools of the node directory.
type Client struct {
	peers []config.Node  // peers receive transactions and blocks
	tools []config.Node  // tools receive checked-out models
	http  *http.Client   // http performs every request
	wg    sync.WaitGroup // wg tracks in-flight broadcasts
}

// Option configures the client during creation.
type Option func(*Client)

// WithTimeout bounds every request. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New creates a client for the given peers and tools.
func New(peers, tools []config.Node, opts ...Option) *Client {
	c := &Client{
		peers: append([]config.Node(nil), peers...),
		tools: append([]config.Node(nil), tools...),
		http:  &http.Client{},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BroadcastTransaction sends tx to every peer.
func (c *Client) BroadcastTransaction(tx ledger.Transaction) {
	logger.Info("Client: Broadcasting the transaction to the peers...", "tx", hash.Short(tx.Hash()), "peers", len(c.peers))
	c.broadcast(c.peers, "/transaction", tx)
}

// BroadcastBlock sends block to every peer.
func (c *Client) BroadcastBlock(block ledger.Block) {
	logger.Info("Client: Broadcasting the block to the peers...", "block", hash.Short(block.Hash()), "peers", len(c.peers))
	c.broadcast(c.peers, "/block", block)
}

// BroadcastModel sends model to every modeling tool.
func (c *Client) BroadcastModel(model mesh.Model) {
	logger.Info("Client: Broadcasting the snapshot to the modeling tools...", "faces", model.Len(), "tools", len(c.tools))
	c.broadcast(c.tools, "/model", model)
}

// Wait blocks until every started broadcast has finished.
func (c *Client) Wait() {
	c.wg.Wait()
}

// broadcast posts v to path on every node, one goroutine per node.
// Failures are logged and dropped.
func (c *Client) broadcast(nodes []config.Node, path string, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		logger.Error("encode broadcast", "path", path, "error", err)
		return
	}

	for _, n := range nodes {
		c.wg.Add(1)

		go func(n config.Node) {
			defer c.wg.Done()

			if err := c.post(context.Background(), n.URL()+path, body); err != nil {
				logger.Warn("broadcast failed", "node", n.Addr(), "path", path, "error", err)
			}
		}(n)
	}
}

// post sends a JSON body and discards the reply.
func (c *Client) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request:\n%w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s:\n%w", url, err)
	}
	defer func() { io.Copy(io.Discard, resp.Body); resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("POST %s: status %d", url, resp.StatusCode)
	}

	return nil
}

// DownloadChain asks the peers in order for their block list and feeds the
// first successful answer into chain. It returns the number of blocks that
// were appended; zero when every peer failed.
func (c *Client) DownloadChain(ctx context.Context, chain BlockAdder) int {
	for i, n := range c.peers {
		logger.Info(fmt.Sprintf("Client: Trying to download the chain from %dth node...", i), "node", n.Addr())

		blocks, err := c.download(ctx, n)
		if err != nil {
			logger.Warn("download failed", "node", n.Addr(), "error", err)

			if ctx.Err() != nil {
				return 0
			}
			continue
		}

		added := 0
		for _, b := range blocks {
			if ctx.Err() != nil {
				logger.Warn("download interrupted", "node", n.Addr(), "added", added)
				return added
			}

			if chain.AddBlock(b) {
				added++
			}
		}

		logger.Info("chain downloaded", "node", n.Addr(), "blocks", len(blocks), "added", added)

		return added
	}

	return 0
}

// download fetches one peer's block list.
func (c *Client) download(ctx context.Context, n config.Node) ([]ledger.Block, error) {
	url := n.URL() + "/download"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request:\n%w", err)
	}
	req.Header.Set("Accept-Encoding", codec.Encoding)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s:\n%w", url, err)
	}
	defer func() { io.Copy(io.Discard, resp.Body); resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("POST %s: status %d", url, resp.StatusCode)
	}

	var body io.Reader = resp.Body

	if strings.EqualFold(resp.Header.Get("Content-Encoding"), codec.Encoding) {
		zr, err := codec.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("zstd reader:\n%w", err)
		}
		defer zr.Close()

		body = zr
	}

	var list ledger.BlockList
	if err := json.NewDecoder(body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode blocks:\n%w", err)
	}

	return list.Blocks, nil
}
