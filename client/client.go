// Package client talks to a MeshChain node's HTTP API on behalf of
// operators and modeling tools.
package client

import (
	"net/http"
	"strings"
	"time"

	"MeshChain/internal/ledger"
	"MeshChain/internal/mesh"
)

// Client connects to a MeshChain node via HTTP.
type Client struct {
	baseURL string       // baseURL is e.g. "http://127.0.0.1:8000"
	http    *http.Client // http performs every request
}

// Status is the node summary returned by GET /status.
type Status struct {
	Name            string `json:"name"`            // Name is the node's author name
	Height          int    `json:"height"`          // Height counts blocks, genesis included
	Head            string `json:"head"`            // Head is the newest block hash
	Pool            int    `json:"pool"`            // Pool is the number of pending transactions
	LastTransaction string `json:"lastTransaction"` // LastTransaction is the newest mined transaction hash
	Subscribers     int    `json:"subscribers"`     // Subscribers counts event feed connections
}

// BlockInfo is one row of GET /blocks.
type BlockInfo struct {
	Hash         string   `json:"hash"`
	PreviousHash string   `json:"previousHash"`
	Timestamp    int64    `json:"timestamp"`
	Nonce        int64    `json:"nonce"`
	Transactions []string `json:"transactions"`
}

// Applied is the reply of POST /apply/{hash}.
type Applied struct {
	Hash  string `json:"hash"`  // Hash is the checked-out transaction
	Faces int    `json:"faces"` // Faces is the size of the model sent to tools
}

// NewClient creates a client for the node at nodeAddr ("host:port" or a
// full URL). A zero timeout means none.
func NewClient(nodeAddr string, timeout time.Duration) *Client {
	base := strings.TrimRight(nodeAddr, "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}

	return &Client{
		baseURL: base,
		http:    &http.Client{Timeout: timeout},
	}
}

// Status fetches the node summary.
func (c *Client) Status() (*Status, error) {
	var s Status
	if err := c.httpGet("/status", &s); err != nil {
		return nil, err
	}

	return &s, nil
}

// Blocks lists the chain, newest first.
func (c *Client) Blocks() ([]BlockInfo, error) {
	var blocks []BlockInfo
	if err := c.httpGet("/blocks", &blocks); err != nil {
		return nil, err
	}

	return blocks, nil
}

// Block fetches a full block by hash.
func (c *Client) Block(hash string) (ledger.Block, error) {
	var b ledger.Block
	err := c.httpGet("/block/"+hash, &b)

	return b, err
}

// Model fetches the mesh a mined transaction reconstructs to.
func (c *Client) Model(txHash string) (mesh.Model, error) {
	var m mesh.Model
	err := c.httpGet("/transaction/"+txHash+"/model", &m)

	return m, err
}

// Mesh fetches the triangulated mesh of a mined transaction.
func (c *Client) Mesh(txHash string) (mesh.Triangles, error) {
	var t mesh.Triangles
	err := c.httpGet("/transaction/"+txHash+"/mesh", &t)

	return t, err
}

// Mine asks the node to mine its pool. It reports whether a new run was
// queued rather than merged into a pending one.
func (c *Client) Mine() (bool, error) {
	var resp struct {
		Queued bool `json:"queued"`
	}

	if err := c.httpPostJSON("/mine", nil, &resp); err != nil {
		return false, err
	}

	return resp.Queued, nil
}

// Apply sends a mined transaction's model to the node's modeling tools.
func (c *Client) Apply(txHash string) (*Applied, error) {
	var a Applied
	if err := c.httpPostJSON("/apply/"+txHash, nil, &a); err != nil {
		return nil, err
	}

	return &a, nil
}

// PushModel submits a full snapshot as a modeling tool would.
func (c *Client) PushModel(m mesh.Model) error {
	return c.httpPostJSON("/model", m, nil)
}
