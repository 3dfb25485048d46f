// Package themes implements theme search over the inverse theme index:
// exact resolution of a theme name to its verses and fuzzy suggestions when
// no theme matches.
package themes

import (
	"context"
	"strings"
	"sync"

	"github.com/FocuswithJustin/QuranScope/core/corpus"
	"github.com/FocuswithJustin/QuranScope/core/search"
)

// Outcome is the result of a theme search. Theme is empty when the query did
// not name a theme; Suggestions is then filled when anything is close.
type Outcome struct {
	Query       string          `json:"query"`
	Theme       string          `json:"theme,omitempty"`
	Results     []search.Result `json:"results"`
	Suggestions []string        `json:"suggestions"`
}

// Engine answers theme searches for one session.
type Engine struct {
	index     *Index
	loader    *corpus.Loader
	limit     int
	threshold float64
}

// Option configures an Engine.
type Option func(*Engine)

// WithSuggestionLimit caps the number of suggestions.
func WithSuggestionLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.limit = n
		}
	}
}

// WithThreshold sets the maximum accepted suggestion score.
func WithThreshold(t float64) Option {
	return func(e *Engine) {
		if t > 0 {
			e.threshold = t
		}
	}
}

// NewEngine creates an Engine over index, resolving verses through loader.
func NewEngine(index *Index, loader *corpus.Loader, opts ...Option) *Engine {
	if index == nil {
		index = EmptyIndex()
	}
	e := &Engine{
		index:     index,
		loader:    loader,
		limit:     DefaultSuggestionLimit,
		threshold: DefaultThreshold,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Index returns the engine's theme index.
func (e *Engine) Index() *Index {
	return e.index
}

// Search resolves query to a theme and its verses, or to suggestions.
// An empty query yields an empty outcome. The only error returned is the
// context's.
func (e *Engine) Search(ctx context.Context, query string) (Outcome, error) {
	q := strings.TrimSpace(query)
	out := Outcome{Query: q, Results: []search.Result{}, Suggestions: []string{}}
	if q == "" {
		return out, nil
	}

	name, ok := e.index.Exact(q)
	if !ok {
		for _, s := range e.index.Suggest(q, e.limit, e.threshold) {
			out.Suggestions = append(out.Suggestions, s.Name)
		}
		return out, nil
	}

	results, err := e.Resolve(ctx, name)
	if err != nil {
		return out, err
	}
	out.Theme = name
	out.Results = results
	return out, nil
}

// Open resolves name the way a theme page does, through Index.Lookup, so a
// partial name opens the first theme containing it. When nothing matches the
// outcome carries suggestions as Search would.
func (e *Engine) Open(ctx context.Context, name string) (Outcome, error) {
	q := strings.TrimSpace(name)
	theme, ok := e.index.Lookup(q)
	if !ok {
		return e.Search(ctx, q)
	}
	results, err := e.Resolve(ctx, theme)
	if err != nil {
		return Outcome{Query: q, Results: []search.Result{}, Suggestions: []string{}}, err
	}
	return Outcome{Query: q, Theme: theme, Results: results, Suggestions: []string{}}, nil
}

// Resolve loads the verses of theme name. Each distinct chapter is loaded
// once; results follow the index's ref order and carry the single theme
// name. Refs whose verse is absent or whose chapter fails to load are skipped.
func (e *Engine) Resolve(ctx context.Context, name string) ([]search.Result, error) {
	refs := e.index.Refs(name)

	var chapters []int
	seen := make(map[int]bool)
	for _, ref := range refs {
		c, _ := corpus.SplitRef(ref)
		if !seen[c] {
			seen[c] = true
			chapters = append(chapters, c)
		}
	}

	loaded := make(map[int][]corpus.Verse, len(chapters))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, c := range chapters {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			verses, _ := e.loader.LoadChapter(ctx, c)
			mu.Lock()
			loaded[c] = verses
			mu.Unlock()
		}(c)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := make([]search.Result, 0, len(refs))
	for _, ref := range refs {
		c, v := corpus.SplitRef(ref)
		verse, ok := corpus.FindVerse(loaded[c], v)
		if !ok {
			continue
		}
		results = append(results, search.FromVerse(verse, []string{name}))
	}
	return results, nil
}
