package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/FocuswithJustin/QuranScope/internal/logging"
)

const (
	// maxSocketMessage bounds a client frame in bytes.
	maxSocketMessage = 4096
	// socketMessageRate is the sustained client message rate per second;
	// bursts of twice that are allowed.
	socketMessageRate = 10
)

// isOriginAllowed checks origin against the allowed list. An empty list
// allows everything, "*" matches any origin and "*.example.com" matches
// subdomains of example.com on any scheme.
func isOriginAllowed(origin string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	if origin == "" {
		return false
	}
	for _, pattern := range allowed {
		switch {
		case pattern == "*":
			return true
		case pattern == origin:
			return true
		case strings.HasPrefix(pattern, "*."):
			domain := pattern[1:] // ".example.com"
			host := origin
			if i := strings.Index(host, "://"); i >= 0 {
				host = host[i+3:]
			}
			if j := strings.IndexByte(host, ':'); j >= 0 {
				host = host[:j]
			}
			if strings.HasSuffix(host, domain) {
				return true
			}
		}
	}
	return false
}

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if !isOriginAllowed(origin, s.cfg.AllowedOrigins) {
				logging.WarnContext(r.Context(), "websocket origin rejected", "origin", origin)
				return false
			}
			return true
		},
	}
}

// handleSearchSocket upgrades to a WebSocket that streams keyword search
// batches for the caller's session. ?q= and ?match= start a search at once;
// later searches and cancellations arrive as client messages.
func (s *Server) handleSearchSocket(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	conn, err := s.upgrader().Upgrade(w, r, http.Header{SessionHeader: {sess.ID}})
	if err != nil {
		// Upgrade has already replied.
		logging.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(maxSocketMessage)

	ctx, cancel := context.WithCancel(logging.WithSessionID(context.WithoutCancel(r.Context()), sess.ID))
	c := &Client{
		hub:    s.hub,
		conn:   conn,
		send:   make(chan []byte, 64),
		search: sess,
		limit:  newTokenBucket(2*socketMessageRate, socketMessageRate),
		ctx:    ctx,
		cancel: cancel,
	}
	if !s.hub.join(c) {
		cancel()
		conn.Close()
		return
	}

	go c.writePump()
	if q := r.URL.Query(); q.Has("q") {
		c.startSearch(q.Get("q"), q.Get("match"))
	}
	go c.readPump()
}
