package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"MeshChain/internal/ledger"
	"MeshChain/internal/logger"
)

const (
	// eventBuffer is the number of queued events per subscriber before it
	// is dropped as too slow.
	eventBuffer = 64

	// writeWait bounds a single websocket write.
	writeWait = 5 * time.Second
)

// Event is one chain notification sent to websocket subscribers.
type Event struct {
	Type string `json:"type"` // Type is mine, blocks, pool or log
	Data any    `json:"data"` // Data is the event payload
}

// chainHead summarizes the block list after an append.
type chainHead struct {
	Height int    `json:"height"`
	Head   string `json:"head"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub fans chain notifications out to websocket subscribers. It implements
// ledger.Observer.
type Hub struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[*subscriber]struct{})}
}

// OnMine publishes the mined block.
func (h *Hub) OnMine(b ledger.Block) {
	h.publish(Event{Type: "mine", Data: b})
}

// OnBlocks publishes the new chain height and head.
func (h *Hub) OnBlocks(bs []ledger.Block) {
	if len(bs) == 0 {
		return
	}
	h.publish(Event{Type: "blocks", Data: chainHead{Height: len(bs), Head: bs[len(bs)-1].Hash()}})
}

// OnPool publishes the hashes of the pooled transactions.
func (h *Hub) OnPool(pool []ledger.Transaction) {
	hashes := make([]string, len(pool))
	for i, tx := range pool {
		hashes[i] = tx.Hash()
	}
	h.publish(Event{Type: "pool", Data: hashes})
}

// OnLog publishes a chain log line.
func (h *Hub) OnLog(msg string) {
	h.publish(Event{Type: "log", Data: msg})
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.subs)
}

// publish queues an event for every subscriber. Subscribers whose queue is
// full are disconnected.
func (h *Hub) publish(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		logger.Warn("encode event", "type", e.Type, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for s := range h.subs {
		select {
		case s.send <- data:
		default:
			logger.Warn("dropping slow event subscriber", "remote", s.conn.RemoteAddr())
			h.removeLocked(s)
		}
	}
}

// ServeHTTP upgrades the request and streams events until the peer leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade", "error", err)
		return
	}

	// Clear any deadline inherited from the HTTP server.
	conn.SetReadDeadline(time.Time{})

	s := &subscriber{conn: conn, send: make(chan []byte, eventBuffer)}

	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()

	logger.Debug("event subscriber joined", "remote", conn.RemoteAddr())

	go s.writeLoop()

	// Incoming frames are ignored; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	h.removeLocked(s)
	h.mu.Unlock()
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for s := range h.subs {
		h.removeLocked(s)
	}
}

// removeLocked unregisters s and stops its writer. Callers hold h.mu.
func (h *Hub) removeLocked(s *subscriber) {
	if _, ok := h.subs[s]; !ok {
		return
	}

	delete(h.subs, s)
	s.once.Do(func() { close(s.send) })
}

func (s *subscriber) writeLoop() {
	defer s.conn.Close()

	for data := range s.send {
		s.conn.SetWriteDeadline(time.Now().Add(writeWait))

		if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}

	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
