package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"

	qerrors "github.com/FocuswithJustin/QuranScope/core/errors"
	"github.com/FocuswithJustin/QuranScope/core/explain"
	"github.com/FocuswithJustin/QuranScope/internal/logging"
)

// ExplainRequest is the body of POST /api/explain.
type ExplainRequest struct {
	Ref        string `json:"ref"`
	Style      string `json:"style"`
	Length     string `json:"length"`
	Regenerate bool   `json:"regenerate"`
}

// handleExplain streams an explanation as text/plain. The session's
// explanation slot is used, so a newer request on the same session ends
// this response early. X-Cache and X-Cache-Key are forwarded from the
// service; a service error is relayed with its status and text.
func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	var body ExplainRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 16<<10)).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid JSON body")
		return
	}
	ref, err := parseRef(body.Ref)
	if err != nil {
		respondErr(w, err)
		return
	}
	sess := s.session(w, r)
	ex := sess.Explanation()

	events := newEventQueue()
	unsubscribe := ex.Subscribe(events.push)
	defer unsubscribe()

	opts := explain.Options{Style: explain.Style(body.Style), Length: explain.Length(body.Length)}
	if err := sess.Explain(r.Context(), ref, opts, body.Regenerate); err != nil {
		respondErr(w, err)
		return
	}

	flusher, _ := w.(http.Flusher)
	var written strings.Builder
	headerSent := false
	sendHeader := func(status int) {
		if headerSent {
			return
		}
		headerSent = true
		snap := ex.Snapshot()
		h := w.Header()
		h.Set("Content-Type", "text/plain; charset=utf-8")
		h.Set("Cache-Control", "no-cache")
		h.Set("X-Accel-Buffering", "no")
		if c := snap.Cache.String(); c != "" {
			h.Set("X-Cache", c)
		}
		if snap.Request != nil {
			h.Set("X-Cache-Key", snap.Request.CacheKey())
		}
		w.WriteHeader(status)
	}

	started := false
	for {
		var batch []explain.Event
		select {
		case <-events.ready:
			batch = events.drain()
		case <-r.Context().Done():
			return
		}

		for _, ev := range batch {
			if !started {
				// Events from an earlier stream of this session precede ours.
				started = ev.State == explain.Requesting
				continue
			}
			switch ev.State {
			case explain.Requesting, explain.Idle, explain.Stopped:
				// Superseded, cleared or stopped.
				sendHeader(http.StatusOK)
				return
			case explain.Streaming:
				sendHeader(http.StatusOK)
				io.WriteString(w, ev.Chunk)
				written.WriteString(ev.Chunk)
				continue
			}
			finishExplain(w, ex, ev.State, written.String(), headerSent, sendHeader)
			logging.StreamEvent(logging.WithSessionID(r.Context(), sess.ID), ev.State.String(), ref.String(),
				"bytes", written.Len())
			return
		}
		if flusher != nil && headerSent {
			flusher.Flush()
		}
	}
}

// finishExplain writes the tail of a Completed or Errored stream: the
// service's status and text when it refused the request, otherwise whatever
// the session appended after the last chunk (such as the interruption
// notice).
func finishExplain(w http.ResponseWriter, ex *explain.Session, state explain.State, written string,
	headerSent bool, sendHeader func(int)) {
	snap := ex.Snapshot()
	var se *qerrors.StatusError
	if state == explain.Errored && !headerSent && qerrors.As(snap.Err, &se) {
		sendHeader(se.Code)
		io.WriteString(w, snap.Text)
		return
	}
	sendHeader(http.StatusOK)
	if rest, ok := strings.CutPrefix(snap.Text, written); ok {
		io.WriteString(w, rest)
	}
}

// eventQueue buffers session events without ever blocking the publisher.
type eventQueue struct {
	mu    sync.Mutex
	items []explain.Event
	ready chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{ready: make(chan struct{}, 1)}
}

func (q *eventQueue) push(ev explain.Event) {
	q.mu.Lock()
	q.items = append(q.items, ev)
	q.mu.Unlock()
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *eventQueue) drain() []explain.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

