package api

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/QuranScope/core/corpus"
	"github.com/FocuswithJustin/QuranScope/core/reader"
	"github.com/FocuswithJustin/QuranScope/core/themes"
	"github.com/FocuswithJustin/QuranScope/internal/logging"
)

// SessionHeader carries the reader session ID in requests and responses.
const SessionHeader = "X-Session-ID"

// SessionFactory creates a reader session over the current shared data.
type SessionFactory func(ctx context.Context, shared *reader.Shared) *reader.Session

// SessionStore keeps one reader session per client. Sessions are created on
// demand and dropped after ttl of inactivity.
type SessionStore struct {
	factory  SessionFactory
	ttl      time.Duration
	onChange func(n int)

	shared atomic.Pointer[reader.Shared]

	mu       sync.Mutex
	sessions map[string]*reader.Session
}

// NewSessionStore creates a store. onChange, if set, is told the session
// count after every change.
func NewSessionStore(factory SessionFactory, ttl time.Duration, onChange func(n int)) *SessionStore {
	return &SessionStore{
		factory:  factory,
		ttl:      ttl,
		onChange: onChange,
		sessions: make(map[string]*reader.Session),
	}
}

// LoadShared reads the theme index and chapter metadata from src for use by
// sessions created from now on.
func (st *SessionStore) LoadShared(ctx context.Context, src corpus.Source) {
	idx, err := themes.LoadIndex(ctx, src)
	if err != nil {
		logging.Warn("theme index unavailable", "error", err)
	}
	meta, err := corpus.NewLoader(src).Chapters(ctx)
	if err != nil {
		logging.Warn("chapter index unavailable", "error", err)
	}
	st.shared.Store(&reader.Shared{Index: idx, Chapters: meta})
	logging.Info("shared indexes loaded", "themes", idx.Len(), "dropped_refs", idx.Dropped(), "chapters", len(meta))
}

// Shared returns the data handed to new sessions, or nil before LoadShared.
func (st *SessionStore) Shared() *reader.Shared {
	return st.shared.Load()
}

// Get returns the session with id, creating a new one when id is empty,
// malformed or unknown. created reports whether a session was created.
func (st *SessionStore) Get(ctx context.Context, id string) (s *reader.Session, created bool) {
	if _, err := uuid.Parse(id); err == nil {
		st.mu.Lock()
		s = st.sessions[id]
		st.mu.Unlock()
		if s != nil {
			s.Touch()
			return s, false
		}
	}

	s = st.factory(context.WithoutCancel(ctx), st.shared.Load())
	st.mu.Lock()
	st.sessions[s.ID] = s
	n := len(st.sessions)
	st.mu.Unlock()
	st.changed(n)
	logging.DebugContext(logging.WithSessionID(ctx, s.ID), "session created")
	return s, true
}

// Len returns the number of live sessions.
func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Sweep closes and drops sessions idle since before now-ttl. It returns
// the number dropped.
func (st *SessionStore) Sweep(now time.Time) int {
	if st.ttl <= 0 {
		return 0
	}
	var stale []*reader.Session
	st.mu.Lock()
	for id, s := range st.sessions {
		if now.Sub(s.LastUsed()) > st.ttl {
			stale = append(stale, s)
			delete(st.sessions, id)
		}
	}
	n := len(st.sessions)
	st.mu.Unlock()

	for _, s := range stale {
		s.Close()
	}
	if len(stale) > 0 {
		st.changed(n)
	}
	return len(stale)
}

// Run sweeps idle sessions periodically until ctx ends.
func (st *SessionStore) Run(ctx context.Context) {
	if st.ttl <= 0 {
		return
	}
	ticker := time.NewTicker(max(st.ttl/4, time.Second))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := st.Sweep(now); n > 0 {
				logging.Debug("idle sessions dropped", "count", n)
			}
		}
	}
}

// Close closes every session.
func (st *SessionStore) Close() {
	st.mu.Lock()
	all := st.sessions
	st.sessions = make(map[string]*reader.Session)
	st.mu.Unlock()
	for _, s := range all {
		s.Close()
	}
	st.changed(0)
}

func (st *SessionStore) changed(n int) {
	if st.onChange != nil {
		st.onChange(n)
	}
}
