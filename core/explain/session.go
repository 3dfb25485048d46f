package explain

import (
	"context"
	"errors"
	"io"
	"sync"

	qerrors "github.com/FocuswithJustin/QuranScope/core/errors"
)

// State is the lifecycle state of an explanation in a Session.
type State int

const (
	// Idle means nothing was requested since creation or Clear.
	Idle State = iota
	// Requesting means the request is sent and no text has arrived yet.
	Requesting
	// Streaming means text is arriving.
	Streaming
	// Completed means the stream ended normally.
	Completed
	// Stopped means the stream was cancelled; text received so far is kept.
	Stopped
	// Errored means the service refused the request or the stream failed.
	Errored
)

var stateNames = [...]string{"idle", "requesting", "streaming", "completed", "stopped", "errored"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Active reports whether a stream is in flight.
func (s State) Active() bool {
	return s == Requesting || s == Streaming
}

// Snapshot is a consistent view of a Session.
type Snapshot struct {
	State        State      `json:"state"`
	Text         string     `json:"text"`
	Cache        CacheState `json:"cache"`
	HasGenerated bool       `json:"has_generated"`
	Err          error      `json:"-"`
	Request      *Request   `json:"request,omitempty"`
}

// Event is delivered to subscribers for every chunk and state change.
type Event struct {
	Chunk string
	State State
}

// FinishFunc observes a stream that reached a terminal state.
type FinishFunc func(req Request, snap Snapshot, bytes int64)

// Session holds the single active explanation stream of a verse view.
// Starting a new stream cancels the previous one, which then ends silently;
// nothing from a superseded stream is ever applied.
type Session struct {
	client   *Client
	onFinish FinishFunc

	mu       sync.Mutex
	gen      uint64
	state    State
	text     []byte
	cache    CacheState
	err      error
	produced bool
	last     *Request
	cancel   context.CancelFunc
	done     chan struct{}
	subs     map[int]func(Event)
	nextSub  int
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithFinish registers a callback for streams reaching a terminal state.
func WithFinish(fn FinishFunc) SessionOption {
	return func(s *Session) { s.onFinish = fn }
}

// NewSession creates an idle Session using client.
func NewSession(client *Client, opts ...SessionOption) *Session {
	done := make(chan struct{})
	close(done)
	s := &Session{client: client, done: done, subs: make(map[int]func(Event))}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate cancels any active stream and starts req. It returns an error
// only when req is invalid; stream outcomes are reported through Snapshot.
func (s *Session) Generate(ctx context.Context, req Request) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if s.client == nil {
		return qerrors.Wrap(qerrors.ErrUnsupported, "no explanation service configured")
	}

	streamCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	gen := s.gen
	s.state = Requesting
	s.text = s.text[:0]
	s.cache = CacheUnknown
	s.err = nil
	r := req
	s.last = &r
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	s.notify(Event{State: Requesting})
	go s.run(streamCtx, cancel, gen, req, done)
	return nil
}

// Regenerate repeats the last request with regenerate set, bypassing the
// service cache.
func (s *Session) Regenerate(ctx context.Context) error {
	s.mu.Lock()
	last := s.last
	s.mu.Unlock()
	if last == nil {
		return qerrors.NewValidation("regenerate", "nothing to regenerate")
	}
	req := *last
	req.Regenerate = true
	return s.Generate(ctx, req)
}

// Stop cancels the active stream. The text received so far is kept.
func (s *Session) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Clear stops any stream and resets the session to Idle.
func (s *Session) Clear() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
	s.state = Idle
	s.text = nil
	s.cache = CacheUnknown
	s.err = nil
	s.produced = false
	s.last = nil
	s.mu.Unlock()
	s.notify(Event{State: Idle})
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		State:        s.state,
		Text:         string(s.text),
		Cache:        s.cache,
		HasGenerated: s.produced,
		Err:          s.err,
	}
	if s.last != nil {
		r := *s.last
		snap.Request = &r
	}
	return snap
}

// Wait blocks until the latest stream has stopped or ctx ends.
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers fn for chunk and state events and returns a function
// that removes it. Events are delivered on the streaming goroutine.
func (s *Session) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Session) notify(ev Event) {
	s.mu.Lock()
	subs := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

// apply runs fn under the lock if gen is still current.
func (s *Session) apply(gen uint64, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return false
	}
	fn()
	return true
}

func (s *Session) run(ctx context.Context, cancel context.CancelFunc, gen uint64, req Request, done chan struct{}) {
	defer close(done)
	defer cancel()

	st, resp, err := s.client.Open(ctx, req)
	s.apply(gen, func() { s.cache = resp.Cache })
	if err != nil {
		s.end(gen, req, err, resp.Text, 0)
		return
	}
	defer st.Close()

	for {
		chunk, err := st.Recv()
		if chunk != "" {
			if s.apply(gen, func() {
				s.text = append(s.text, chunk...)
				s.state = Streaming
				s.produced = true
			}) {
				s.notify(Event{Chunk: chunk, State: Streaming})
			}
		}
		if err == io.EOF {
			s.end(gen, req, nil, "", st.Bytes())
			return
		}
		if err != nil {
			s.end(gen, req, err, "", st.Bytes())
			return
		}
	}
}

// end moves the session to its terminal state for err.
func (s *Session) end(gen uint64, req Request, err error, serviceText string, n int64) {
	var state State
	ok := s.apply(gen, func() {
		var se *qerrors.StatusError
		switch {
		case err == nil:
			state = Completed
		case qerrors.IsCancelled(err):
			state = Stopped
		case errors.As(err, &se):
			state = Errored
			s.text = []byte(serviceText)
			s.err = err
		default:
			state = Errored
			s.err = err
			if len(s.text) == 0 {
				s.text = []byte(InterruptedNotice)
			} else {
				s.text = append(s.text, "\n\n"+InterruptedNotice...)
			}
		}
		s.state = state
		s.cancel = nil
	})
	if !ok {
		return
	}
	s.notify(Event{State: state})
	if s.onFinish != nil {
		s.onFinish(req, s.Snapshot(), n)
	}
}
