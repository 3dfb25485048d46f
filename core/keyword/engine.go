// Package keyword implements keyword search: a concurrent scan of every
// chapter for verses whose original text or translation contains the query.
//
// Results stream in as chapters finish. A session owns one Engine, and a new
// search on the Engine cancels the one before it.
package keyword

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/FocuswithJustin/QuranScope/core/corpus"
	"github.com/FocuswithJustin/QuranScope/core/search"
)

// ThemeLookup returns the themes attached to a verse ref.
type ThemeLookup func(ref string) []string

// Progress counts the chapters of a run.
type Progress struct {
	Total     int `json:"total"`
	Claimed   int `json:"claimed"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Matched   int `json:"matched"`
}

// BatchFunc receives the new, deduplicated results of one chapter together
// with the progress after merging them. It is called once per scanned chapter
// (batch may be empty), never concurrently, in merge order.
type BatchFunc func(batch []search.Result, p Progress)

// FinishFunc is called once when a run ends, completed or cancelled.
type FinishFunc func(r *Run)

// Engine runs keyword searches for one session.
type Engine struct {
	loader   *corpus.Loader
	themes   ThemeLookup
	lanes    int
	onFinish FinishFunc

	mu      sync.Mutex
	current *Run
}

// Option configures an Engine.
type Option func(*Engine)

// WithLanes sets the number of chapters scanned concurrently.
func WithLanes(n int) Option {
	return func(e *Engine) { e.lanes = n }
}

// WithFinish registers a callback for finished runs.
func WithFinish(fn FinishFunc) Option {
	return func(e *Engine) { e.onFinish = fn }
}

// NewEngine creates an Engine scanning through loader and tagging results
// through themes (which may be nil).
func NewEngine(loader *corpus.Loader, themes ThemeLookup, opts ...Option) *Engine {
	if themes == nil {
		themes = func(string) []string { return nil }
	}
	e := &Engine{loader: loader, themes: themes, lanes: DefaultLanes}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunOption configures a single run.
type RunOption func(*Run)

// OnBatch registers a callback for merged chapter batches.
func OnBatch(fn BatchFunc) RunOption {
	return func(r *Run) { r.onBatch = fn }
}

// Search cancels the engine's previous run, if any, and starts scanning for
// query. The returned Run is already started; an empty query yields a run
// that is complete with no results.
func (e *Engine) Search(ctx context.Context, query string, mode Mode, opts ...RunOption) *Run {
	q := strings.TrimSpace(query)
	runCtx, cancel := context.WithCancel(ctx)
	r := &Run{
		Query:   q,
		Mode:    mode,
		ctx:     runCtx,
		cancel:  cancel,
		seen:    make(map[string]bool),
		results: []search.Result{},
		done:    make(chan struct{}),
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(r)
	}

	e.mu.Lock()
	prev := e.current
	e.current = r
	e.mu.Unlock()
	if prev != nil {
		prev.Cancel()
	}

	if q == "" {
		r.finish()
		e.finished(r)
		return r
	}

	go func() {
		e.scan(r)
		r.finish()
		e.finished(r)
	}()
	return r
}

// Cancel cancels the current run, if any.
func (e *Engine) Cancel() {
	e.mu.Lock()
	r := e.current
	e.mu.Unlock()
	if r != nil {
		r.Cancel()
	}
}

// Current returns the most recently started run, or nil.
func (e *Engine) Current() *Run {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

func (e *Engine) finished(r *Run) {
	if e.onFinish != nil {
		e.onFinish(r)
	}
}

func (e *Engine) scan(r *Run) {
	ids := e.loader.ChapterIDs(r.ctx)
	r.mu.Lock()
	r.progress.Total = len(ids)
	r.mu.Unlock()

	matcher := NewMatcher(r.Query, r.Mode)
	pool := newLanePool(e.lanes, ids)
	pool.Run(r.ctx, func(ctx context.Context, chapter int) {
		r.mu.Lock()
		r.progress.Claimed++
		r.mu.Unlock()

		verses, err := e.loader.LoadChapter(ctx, chapter)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			r.merge(nil, true)
			return
		}

		var found []search.Result
		for _, v := range verses {
			if matcher.Match(v) {
				found = append(found, search.FromVerse(v, e.themes(v.Ref)))
			}
		}
		r.merge(found, false)
	})
}

// Run is one keyword search. Its methods are safe for concurrent use.
type Run struct {
	Query string
	Mode  Mode

	ctx     context.Context
	cancel  context.CancelFunc
	onBatch BatchFunc
	done    chan struct{}
	started time.Time

	emitMu   sync.Mutex
	mu       sync.Mutex
	seen     map[string]bool
	results  []search.Result
	progress Progress
	complete bool
	ended    time.Time
}

// merge appends the unseen results of one chapter in a single step and
// reports the batch. Nothing is merged once the run is cancelled.
func (r *Run) merge(found []search.Result, failed bool) {
	r.emitMu.Lock()
	defer r.emitMu.Unlock()

	r.mu.Lock()
	if r.ctx.Err() != nil {
		r.mu.Unlock()
		return
	}
	var batch []search.Result
	for _, res := range found {
		if r.seen[res.Ref] {
			continue
		}
		r.seen[res.Ref] = true
		batch = append(batch, res)
	}
	r.results = append(r.results, batch...)
	if failed {
		r.progress.Failed++
	} else {
		r.progress.Completed++
	}
	r.progress.Matched = len(r.results)
	p := r.progress
	r.mu.Unlock()

	if r.onBatch != nil {
		r.onBatch(batch, p)
	}
}

func (r *Run) finish() {
	r.mu.Lock()
	r.complete = r.ctx.Err() == nil
	r.ended = time.Now()
	r.cancel()
	r.mu.Unlock()
	close(r.done)
}

// Results returns a snapshot of the results merged so far, in merge order.
func (r *Run) Results() []search.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]search.Result(nil), r.results...)
}

// Progress returns the current chapter counters.
func (r *Run) Progress() Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.progress
}

// Done is closed when the run has stopped, completed or cancelled.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run stops or ctx ends. It returns ctx's error in the
// latter case; a cancelled run is not an error.
func (r *Run) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel stops the run. Results merged before the call are kept.
func (r *Run) Cancel() {
	r.mu.Lock()
	r.cancel()
	r.mu.Unlock()
}

// Cancelled reports whether the run was cancelled before completing.
func (r *Run) Cancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ctx.Err() != nil && !r.complete
}

// Duration returns how long the run took, or has taken so far.
func (r *Run) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ended.IsZero() {
		return time.Since(r.started)
	}
	return r.ended.Sub(r.started)
}
