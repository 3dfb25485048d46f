package api

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/FocuswithJustin/QuranScope/core/keyword"
	"github.com/FocuswithJustin/QuranScope/core/search"
	"github.com/FocuswithJustin/QuranScope/internal/logging"
	"github.com/FocuswithJustin/QuranScope/internal/metrics"
)

// Message types sent to search sockets.
const (
	MsgBatch    = "batch"    // new results of one chapter
	MsgProgress = "progress" // a chapter finished without new results
	MsgComplete = "complete" // the search scanned every chapter
	MsgError    = "error"    // the last client message was rejected
	MsgReload   = "reload"   // the data root changed; new sessions see new indexes
)

// Message is a frame sent to a search socket.
type Message struct {
	Type      string            `json:"type"`
	Query     string            `json:"query,omitempty"`
	Match     string            `json:"match,omitempty"`
	Results   []search.Result   `json:"results,omitempty"`
	Progress  *keyword.Progress `json:"progress,omitempty"`
	Total     int               `json:"total,omitempty"`
	Duration  string            `json:"duration,omitempty"`
	Message   string            `json:"message,omitempty"`
	Timestamp string            `json:"timestamp"`
}

// ClientMessage is a frame received from a search socket.
type ClientMessage struct {
	Type  string `json:"type"` // "search" or "cancel"
	Query string `json:"q"`
	Match string `json:"match"`
}

// Hub tracks connected sockets and broadcasts notices to all of them.
type Hub struct {
	metrics *metrics.Recorder

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}

	mu      sync.RWMutex
	clients map[*Client]bool
}

// NewHub creates a hub. m may be nil.
func NewHub(m *metrics.Recorder) *Hub {
	return &Hub{
		metrics:    m,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 16),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
	}
}

// Run handles registration and broadcasting until ctx ends, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				c.conn.Close()
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.gauge(1)
			logging.WebSocketEvent("client_connected", n)

		case c := <-h.unregister:
			h.mu.Lock()
			_, ok := h.clients[c]
			delete(h.clients, c)
			n := len(h.clients)
			h.mu.Unlock()
			if ok {
				h.gauge(-1)
				logging.WebSocketEvent("client_disconnected", n)
			}

		case data := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- data:
				default:
					// Notices are advisory; a full client just misses one.
				}
			}
			h.mu.RUnlock()
		}
	}
}

// join registers c. It reports false once the hub has stopped.
func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) gauge(delta int) {
	if h.metrics != nil {
		h.metrics.WebSocketConnected(delta)
	}
}

// Broadcast queues msg for every connected client.
func (h *Hub) Broadcast(msg Message) {
	data, err := encode(msg)
	if err != nil {
		logging.Error("failed to marshal socket message", "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		logging.Warn("broadcast channel full, dropping message", "type", msg.Type)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func encode(msg Message) ([]byte, error) {
	if msg.Timestamp == "" {
		msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	return json.Marshal(msg)
}

// Client is one connected search socket. Its searches run in the reader
// session it was opened with.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	search searcher
	limit  *tokenBucket

	ctx    context.Context
	cancel context.CancelFunc

	searchMu   sync.Mutex
	stopSearch context.CancelFunc
}

// searcher is the part of a reader session a socket drives.
type searcher interface {
	KeywordSearch(ctx context.Context, query string, mode keyword.Mode, opts ...keyword.RunOption) (*keyword.Run, error)
	CancelSearch()
}

// enqueue hands msg to the write pump, waiting while the send buffer is
// full. It gives up once the client has disconnected.
func (c *Client) enqueue(msg Message) {
	c.enqueueCtx(c.ctx, msg)
}

// enqueueCtx is enqueue bounded by ctx, which for search frames is the
// search's own context: frames of a superseded search are dropped.
func (c *Client) enqueueCtx(ctx context.Context, msg Message) {
	if ctx.Err() != nil {
		return
	}
	data, err := encode(msg)
	if err != nil {
		logging.Error("failed to marshal socket message", "error", err)
		return
	}
	select {
	case c.send <- data:
	case <-ctx.Done():
	}
}

// nextSearch ends the socket's current search and returns the context of
// the next one.
func (c *Client) nextSearch() context.Context {
	c.searchMu.Lock()
	defer c.searchMu.Unlock()
	if c.stopSearch != nil {
		c.stopSearch()
	}
	ctx, cancel := context.WithCancel(c.ctx)
	c.stopSearch = cancel
	return ctx
}

// endSearch cancels the socket's current search, if any.
func (c *Client) endSearch() {
	c.searchMu.Lock()
	defer c.searchMu.Unlock()
	if c.stopSearch != nil {
		c.stopSearch()
		c.stopSearch = nil
	}
	c.search.CancelSearch()
}

// startSearch runs a keyword search and streams its batches. A search
// superseded by a newer one ends without a complete message.
func (c *Client) startSearch(query, match string) {
	mode, err := keyword.ParseMode(match)
	if err != nil {
		c.enqueue(Message{Type: MsgError, Message: err.Error()})
		return
	}
	sctx := c.nextSearch()
	run, err := c.search.KeywordSearch(sctx, query, mode, keyword.OnBatch(func(batch []search.Result, p keyword.Progress) {
		typ := MsgProgress
		if len(batch) > 0 {
			typ = MsgBatch
		}
		c.enqueueCtx(sctx, Message{Type: typ, Query: query, Match: mode.String(), Results: batch, Progress: &p})
	}))
	if err != nil {
		c.enqueue(Message{Type: MsgError, Message: err.Error()})
		return
	}
	go func() {
		<-run.Done()
		if run.Cancelled() {
			return
		}
		p := run.Progress()
		c.enqueueCtx(sctx, Message{
			Type:     MsgComplete,
			Query:    run.Query,
			Match:    mode.String(),
			Progress: &p,
			Total:    len(run.Results()),
			Duration: run.Duration().Round(time.Millisecond).String(),
		})
	}()
}

// readPump reads client messages until the connection fails.
func (c *Client) readPump() {
	defer func() {
		c.cancel()
		c.endSearch()
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Warn("websocket unexpected close", "error", err)
			}
			return
		}
		if ok, _, _ := c.limit.take(); !ok {
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "Rate limit exceeded"),
				time.Now().Add(time.Second))
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.enqueue(Message{Type: MsgError, Message: "invalid JSON message"})
			continue
		}
		switch msg.Type {
		case "search":
			c.startSearch(msg.Query, msg.Match)
		case "cancel":
			c.endSearch()
		default:
			c.enqueue(Message{Type: MsgError, Message: "unknown message type " + msg.Type})
		}
	}
}

// writePump writes queued messages, one per frame, and keeps the
// connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return

		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
