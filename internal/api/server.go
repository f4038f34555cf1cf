// Package api serves the node's HTTP interface: gossip endpoints for peers,
// the snapshot endpoint for modeling tools and operator endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"MeshChain/internal/codec"
	"MeshChain/internal/hash"
	"MeshChain/internal/ledger"
	"MeshChain/internal/logger"
	"MeshChain/internal/mesh"
)

const (
	// maxBodySize is the largest accepted request body.
	maxBodySize = 32 << 20 // 32 MB

	// defaultDownloadRate is the sustained /download rate per node.
	defaultDownloadRate = rate.Limit(5)

	// defaultDownloadBurst is the /download burst size.
	defaultDownloadBurst = 10
)

// Broadcaster forwards local results to peers and tools.
type Broadcaster interface {
	BroadcastTransaction(tx ledger.Transaction)
	BroadcastModel(model mesh.Model)
}

// MineRequester queues a mining run.
type MineRequester interface {
	// Request returns false when a run is already queued.
	Request() bool
}

// Server is the HTTP API server.
type Server struct {
	addr    string         // addr is the HTTP listen address
	name    string         // name is the author of snapshot transactions
	chain   *ledger.Chain  // chain is the shared ledger
	bcast   Broadcaster    // bcast forwards transactions and models
	miner   MineRequester  // miner runs mining off the request goroutine
	dedup   *Dedup         // dedup drops repeated gossip bodies, nil disables
	hub     *Hub           // hub streams chain events, nil disables /events
	limiter *rate.Limiter  // limiter throttles /download
	server  *http.Server   // server is the underlying HTTP server
	mux     *http.ServeMux // mux routes requests
}

// Option configures the server during creation.
type Option func(*Server)

// WithMiner enables POST /mine.
func WithMiner(m MineRequester) Option {
	return func(s *Server) {
		s.miner = m
	}
}

// WithDedup drops byte-identical /block and /transaction bodies.
func WithDedup(d *Dedup) Option {
	return func(s *Server) {
		s.dedup = d
	}
}

// WithHub enables GET /events.
func WithHub(h *Hub) Option {
	return func(s *Server) {
		s.hub = h
	}
}

// WithDownloadLimit overrides the /download rate limit.
func WithDownloadLimit(l rate.Limit, burst int) Option {
	return func(s *Server) {
		s.limiter = rate.NewLimiter(l, burst)
	}
}

// New creates a new HTTP API server.
func New(addr, name string, chain *ledger.Chain, bcast Broadcaster, opts ...Option) *Server {
	s := &Server{
		addr:    addr,
		name:    name,
		chain:   chain,
		bcast:   bcast,
		limiter: rate.NewLimiter(defaultDownloadRate, defaultDownloadBurst),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.mux = s.routes()

	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /block", s.handleBlock)
	mux.HandleFunc("POST /transaction", s.handleTransaction)
	mux.HandleFunc("POST /model", s.handleModel)
	mux.HandleFunc("POST /download", s.handleDownload)
	mux.HandleFunc("POST /mine", s.handleMine)
	mux.HandleFunc("POST /apply/{hash}", s.handleApply)

	mux.HandleFunc("GET /blocks", s.handleBlocks)
	mux.HandleFunc("GET /block/{hash}", s.handleGetBlock)
	mux.HandleFunc("GET /transaction/{hash}/model", s.handleTxModel)
	mux.HandleFunc("GET /transaction/{hash}/mesh", s.handleTxMesh)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /health", s.handleHealth)

	if s.hub != nil {
		mux.Handle("GET /events", s.hub)
	}

	return mux
}

// Handler returns the request router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start starts the HTTP server in a goroutine.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        s.addr,
		Handler:     s.mux,
		ReadTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("http api started", "addr", s.addr)

		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	if s.hub != nil {
		s.hub.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// handleBlock handles POST /block from peers.
func (s *Server) handleBlock(w http.ResponseWriter, r *http.Request) {
	s.logf("Server: Received a block from one of the peers!")

	var block ledger.Block
	body, ok := s.readGossip(w, r, &block)
	if !ok {
		return
	}

	ack(w)

	if body == nil {
		return
	}

	s.chain.AddBlock(block)
}

// handleTransaction handles POST /transaction from peers.
func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	s.logf("Server: Received a transaction from one of the peers!")

	var tx ledger.Transaction
	body, ok := s.readGossip(w, r, &tx)
	if !ok {
		return
	}

	ack(w)

	if body == nil {
		return
	}

	s.chain.AddTransaction(tx)
}

// handleModel handles POST /model from modeling tools. The snapshot is
// diffed against the newest mined state and pooled as a transaction.
func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	s.logf("Server: Received a model from one of the modeling tools!")

	var model mesh.Model
	if _, err := decodeBody(r, &model); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid model: %v", err))
		return
	}

	ack(w)

	tx, added, err := s.chain.ApplySnapshot(s.name, model)
	if err != nil {
		logger.Warn("dropping snapshot", "faces", model.Len(), "error", err)
		return
	}

	if !added {
		return
	}

	logger.Debug("snapshot pooled", "tx", hash.Short(tx.Hash()),
		"added", tx.Added().Len(), "removed", tx.Removed().Len())

	if s.bcast != nil {
		s.bcast.BroadcastTransaction(tx)
	}
}

// handleDownload handles POST /download with the full block list.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	s.logf("Server: Got a download request from one of the peers!")

	if !s.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "download rate exceeded")
		return
	}

	io.Copy(io.Discard, io.LimitReader(r.Body, maxBodySize))

	list := ledger.BlockList{Blocks: s.chain.Blocks()}

	if !acceptsZstd(r) {
		writeJSON(w, http.StatusOK, list)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Encoding", codec.Encoding)
	w.WriteHeader(http.StatusOK)

	zw, err := codec.NewWriter(w)
	if err != nil {
		logger.Error("zstd writer", "error", err)
		return
	}

	if err := json.NewEncoder(zw).Encode(list); err != nil {
		logger.Warn("write download", "error", err)
	}

	if err := zw.Close(); err != nil {
		logger.Warn("flush download", "error", err)
	}
}

// handleMine handles POST /mine by queueing a run on the miner.
func (s *Server) handleMine(w http.ResponseWriter, r *http.Request) {
	if s.miner == nil {
		writeError(w, http.StatusServiceUnavailable, "mining not available")
		return
	}

	queued := s.miner.Request()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"queued": queued,
	})
}

// handleApply handles POST /apply/{hash}: the transaction's model is sent
// to every modeling tool.
func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	tx, model, ok := s.resolveModel(w, r)
	if !ok {
		return
	}

	if s.bcast != nil {
		s.bcast.BroadcastModel(model)
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"hash":  tx.Hash(),
		"faces": model.Len(),
	})
}

// handleTxModel handles GET /transaction/{hash}/model.
func (s *Server) handleTxModel(w http.ResponseWriter, r *http.Request) {
	_, model, ok := s.resolveModel(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, model)
}

// handleTxMesh handles GET /transaction/{hash}/mesh.
func (s *Server) handleTxMesh(w http.ResponseWriter, r *http.Request) {
	_, model, ok := s.resolveModel(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, mesh.Triangulate(model))
}

// blockSummary is one row of GET /blocks.
type blockSummary struct {
	Hash         string   `json:"hash"`
	PreviousHash string   `json:"previousHash"`
	Timestamp    int64    `json:"timestamp"`
	Nonce        int64    `json:"nonce"`
	Transactions []string `json:"transactions"`
}

// handleBlocks handles GET /blocks, newest first.
func (s *Server) handleBlocks(w http.ResponseWriter, r *http.Request) {
	blocks := s.chain.Blocks()
	out := make([]blockSummary, 0, len(blocks))

	for i := len(blocks) - 1; i >= 0; i-- {
		b := blocks[i]
		txs := b.Transactions()

		sum := blockSummary{
			Hash:         b.Hash(),
			PreviousHash: b.PreviousHash(),
			Timestamp:    b.Timestamp(),
			Nonce:        b.Nonce(),
			Transactions: make([]string, len(txs)),
		}
		for j, tx := range txs {
			sum.Transactions[j] = tx.Hash()
		}

		out = append(out, sum)
	}

	writeJSON(w, http.StatusOK, out)
}

// handleGetBlock handles GET /block/{hash}.
func (s *Server) handleGetBlock(w http.ResponseWriter, r *http.Request) {
	block, ok := s.chain.FindBlock(r.PathValue("hash"))
	if !ok {
		writeError(w, http.StatusNotFound, "block not found")
		return
	}

	writeJSON(w, http.StatusOK, block)
}

// handleHealth handles GET /health requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// handleStatus handles GET /status requests.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	head := s.chain.LastBlock()

	status := map[string]any{
		"name":            s.name,
		"height":          s.chain.Height(),
		"head":            head.Hash(),
		"pool":            len(s.chain.Pool()),
		"lastTransaction": s.chain.LastTransaction().Hash(),
	}

	if s.hub != nil {
		status["subscribers"] = s.hub.Subscribers()
	}

	writeJSON(w, http.StatusOK, status)
}

// resolveModel finds the mined transaction named in the path and replays
// it. It writes the error response itself.
func (s *Server) resolveModel(w http.ResponseWriter, r *http.Request) (ledger.Transaction, mesh.Model, bool) {
	h := r.PathValue("hash")

	tx, ok := s.chain.FindTransaction(h)
	if !ok {
		writeError(w, http.StatusNotFound, "transaction not found")
		return ledger.Transaction{}, mesh.Model{}, false
	}

	model, err := s.chain.Model(tx)
	if errors.Is(err, ledger.ErrBrokenHistory) {
		writeError(w, http.StatusConflict, err.Error())
		return ledger.Transaction{}, mesh.Model{}, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return ledger.Transaction{}, mesh.Model{}, false
	}

	return tx, model, true
}

// readGossip decodes a peer delivery into v. It returns a nil body when
// the delivery is a recent duplicate, and false after writing a 400.
func (s *Server) readGossip(w http.ResponseWriter, r *http.Request, v any) ([]byte, bool) {
	body, err := decodeBody(r, v)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
		return nil, false
	}

	if s.dedup != nil && !s.dedup.Check(r.URL.Path, body) {
		logger.Debug("duplicate delivery", "route", r.URL.Path)
		return nil, true
	}

	return body, true
}

// decodeBody reads the request body and unmarshals it into v.
func decodeBody(r *http.Request, v any) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body:\n%w", err)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return nil, err
	}

	return body, nil
}

// logf logs a server progress line and mirrors it to event subscribers.
func (s *Server) logf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	logger.Debug(msg)

	if s.hub != nil {
		s.hub.OnLog(msg)
	}
}

// acceptsZstd reports whether the client advertised zstd.
func acceptsZstd(r *http.Request) bool {
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		if strings.EqualFold(strings.TrimSpace(strings.Split(enc, ";")[0]), codec.Encoding) {
			return true
		}
	}

	return false
}

// ack writes the empty 200 acknowledgment and flushes it so the sender is
// released before the delivery is processed.
func ack(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}
