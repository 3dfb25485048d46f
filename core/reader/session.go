// Package reader ties the corpus, search engines, tafsir resolver and
// explanation stream together into one per-user session.
//
// Everything a session caches (chapter arrays, tafsir entries) lives as long
// as the session. Sessions share nothing mutable except the read-only theme
// index and chapter metadata they may be handed at creation.
package reader

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/QuranScope/core/corpus"
	qerrors "github.com/FocuswithJustin/QuranScope/core/errors"
	"github.com/FocuswithJustin/QuranScope/core/explain"
	"github.com/FocuswithJustin/QuranScope/core/keyword"
	"github.com/FocuswithJustin/QuranScope/core/search"
	"github.com/FocuswithJustin/QuranScope/core/tafsir"
	"github.com/FocuswithJustin/QuranScope/core/themes"
	"github.com/FocuswithJustin/QuranScope/internal/logging"
	"github.com/FocuswithJustin/QuranScope/internal/validation"
)

// Config holds the tunables of a session.
type Config struct {
	Lanes               int
	PerPage             int
	SuggestionLimit     int
	SuggestionThreshold float64
	TafsirEdition       string
	Explain             explain.Options
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Lanes:               keyword.DefaultLanes,
		PerPage:             search.DefaultPerPage,
		SuggestionLimit:     themes.DefaultSuggestionLimit,
		SuggestionThreshold: themes.DefaultThreshold,
		TafsirEdition:       corpus.DefaultTafsirName,
		Explain:             explain.DefaultOptions(),
	}
}

// Observer receives session activity, typically to record metrics.
type Observer interface {
	ChapterLoaded(chapter int, err error)
	ThemeSearched(out themes.Outcome, d time.Duration)
	KeywordFinished(r *keyword.Run)
	ExplainFinished(req explain.Request, snap explain.Snapshot, bytes int64)
}

// Shared is the read-only data a server loads once and hands to new sessions.
type Shared struct {
	Index    *themes.Index
	Chapters []corpus.ChapterMeta
}

// Option configures a Session.
type Option func(*options)

type options struct {
	observer Observer
	shared   *Shared
}

// WithObserver registers an Observer.
func WithObserver(o Observer) Option {
	return func(opts *options) { opts.observer = o }
}

// WithShared reuses a preloaded theme index and chapter list instead of
// loading them from the source.
func WithShared(s *Shared) Option {
	return func(opts *options) { opts.shared = s }
}

// Session is one reader's state.
type Session struct {
	ID      string
	Created time.Time

	cfg      Config
	loader   *corpus.Loader
	index    *themes.Index
	chapters []corpus.ChapterMeta
	themes   *themes.Engine
	keywords *keyword.Engine
	tafsir   *tafsir.Resolver
	explain  *explain.Session
	observer Observer

	mu       sync.Mutex
	lastUsed time.Time
}

// VerseView is a verse together with its forward themes and chapter.
type VerseView struct {
	Verse   corpus.Verse       `json:"verse"`
	Themes  []string           `json:"themes"`
	Chapter corpus.ChapterMeta `json:"chapter"`
}

// ChapterView is a chapter's metadata and verses.
type ChapterView struct {
	Meta   corpus.ChapterMeta `json:"meta"`
	Verses []corpus.Verse     `json:"verses"`
}

// NewSession creates a session over src. The chapter metadata and theme
// index are loaded once unless shared copies are supplied; a missing or
// malformed resource leaves the session with an empty index or the default
// chapter list and is logged, not returned. client may be nil, in which case
// Explain reports ErrUnsupported.
func NewSession(ctx context.Context, cfg Config, src corpus.Source, client *explain.Client, opts ...Option) *Session {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	def := DefaultConfig()
	if cfg.Lanes <= 0 {
		cfg.Lanes = def.Lanes
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = def.PerPage
	}
	if cfg.SuggestionLimit <= 0 {
		cfg.SuggestionLimit = def.SuggestionLimit
	}
	if cfg.SuggestionThreshold <= 0 {
		cfg.SuggestionThreshold = def.SuggestionThreshold
	}

	s := &Session{
		ID:       uuid.NewString(),
		Created:  time.Now(),
		cfg:      cfg,
		observer: o.observer,
	}
	s.lastUsed = s.Created
	ctx = logging.WithSessionID(ctx, s.ID)

	var loaderOpts []corpus.LoaderOption
	if s.observer != nil {
		loaderOpts = append(loaderOpts, corpus.WithLoadObserver(s.observer.ChapterLoaded))
	}
	s.loader = corpus.NewLoader(src, loaderOpts...)

	if o.shared != nil {
		s.index = o.shared.Index
		s.chapters = o.shared.Chapters
	}
	if s.index == nil {
		idx, err := themes.LoadIndex(ctx, src)
		if err != nil {
			logging.WarnContext(ctx, "theme index unavailable", "error", err)
		}
		s.index = idx
	}
	if s.chapters == nil {
		meta, err := s.loader.Chapters(ctx)
		if err != nil {
			logging.WarnContext(ctx, "chapter index unavailable", "error", err)
		}
		s.chapters = meta
	}

	s.themes = themes.NewEngine(s.index, s.loader,
		themes.WithSuggestionLimit(cfg.SuggestionLimit),
		themes.WithThreshold(cfg.SuggestionThreshold))

	kwOpts := []keyword.Option{keyword.WithLanes(cfg.Lanes)}
	if s.observer != nil {
		kwOpts = append(kwOpts, keyword.WithFinish(s.observer.KeywordFinished))
	}
	s.keywords = keyword.NewEngine(s.loader, s.index.ThemesFor, kwOpts...)

	s.tafsir = tafsir.NewResolver(src, cfg.TafsirEdition)

	var exOpts []explain.SessionOption
	if s.observer != nil {
		exOpts = append(exOpts, explain.WithFinish(s.observer.ExplainFinished))
	}
	s.explain = explain.NewSession(client, exOpts...)
	return s
}

// Config returns the session's effective settings.
func (s *Session) Config() Config {
	return s.cfg
}

// Loader returns the session's chapter loader.
func (s *Session) Loader() *corpus.Loader {
	return s.loader
}

// Index returns the theme index.
func (s *Session) Index() *themes.Index {
	return s.index
}

// Chapters returns the chapter metadata list.
func (s *Session) Chapters() []corpus.ChapterMeta {
	return s.chapters
}

// Explanation returns the session's explanation stream.
func (s *Session) Explanation() *explain.Session {
	return s.explain
}

// Touch records activity on the session.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastUsed = time.Now()
	s.mu.Unlock()
}

// LastUsed returns the time of the last recorded activity.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// ThemeSearch resolves a theme query to verses or suggestions.
func (s *Session) ThemeSearch(ctx context.Context, query string) (themes.Outcome, error) {
	q, err := validation.Query(query)
	if err != nil {
		return themes.Outcome{}, qerrors.NewValidation("q", err.Error())
	}
	start := time.Now()
	out, err := s.themes.Search(ctx, q)
	if err != nil {
		return out, err
	}
	if s.observer != nil && q != "" {
		s.observer.ThemeSearched(out, time.Since(start))
	}
	logging.SearchEvent(logging.WithSessionID(ctx, s.ID), "theme", q, len(out.Results),
		"suggestions", len(out.Suggestions))
	return out, nil
}

// Theme opens a theme by name, accepting a partial name as the theme page
// does. ThemeSearch is the exact-name search.
func (s *Session) Theme(ctx context.Context, name string) (themes.Outcome, error) {
	q, err := validation.Query(name)
	if err != nil {
		return themes.Outcome{}, qerrors.NewValidation("name", err.Error())
	}
	out, err := s.themes.Open(ctx, q)
	if err != nil {
		return out, err
	}
	logging.SearchEvent(logging.WithSessionID(ctx, s.ID), "theme_page", q, len(out.Results),
		"theme", out.Theme)
	return out, nil
}

// KeywordSearch starts a keyword scan, cancelling the previous one.
func (s *Session) KeywordSearch(ctx context.Context, query string, mode keyword.Mode, opts ...keyword.RunOption) (*keyword.Run, error) {
	q, err := validation.Query(query)
	if err != nil {
		return nil, qerrors.NewValidation("q", err.Error())
	}
	return s.keywords.Search(ctx, q, mode, opts...), nil
}

// CancelSearch stops the active keyword scan, if any.
func (s *Session) CancelSearch() {
	s.keywords.Cancel()
}

// Verse returns one verse with its forward themes. Themes come from the
// chapter's theme file, falling back to the inverse index when that file
// is absent.
func (s *Session) Verse(ctx context.Context, ref corpus.Ref) (VerseView, error) {
	v, err := s.loader.Verse(ctx, ref)
	if err != nil {
		return VerseView{}, err
	}
	view := VerseView{Verse: v, Themes: []string{}, Chapter: s.meta(ref.Chapter)}

	rows, err := s.loader.ChapterThemes(ctx, ref.Chapter)
	if err != nil {
		view.Themes = append(view.Themes, s.index.ThemesFor(v.Ref)...)
		return view, nil
	}
	for _, row := range rows {
		if row.Ref == v.Ref {
			view.Themes = append(view.Themes, row.Themes...)
			break
		}
	}
	return view, nil
}

// Chapter returns a chapter's metadata and verses. A missing chapter file
// yields no verses and the loader's NotFoundError.
func (s *Session) Chapter(ctx context.Context, n int) (ChapterView, error) {
	verses, err := s.loader.LoadChapter(ctx, n)
	return ChapterView{Meta: s.meta(n), Verses: verses}, err
}

// Tafsir returns the commentary of a verse.
func (s *Session) Tafsir(ctx context.Context, ref corpus.Ref) (tafsir.Entry, error) {
	return s.tafsir.Resolve(ctx, ref)
}

// Explain loads the verse and starts an explanation stream for it,
// cancelling any active one. Zero options take the configured defaults.
func (s *Session) Explain(ctx context.Context, ref corpus.Ref, opts explain.Options, regenerate bool) error {
	v, err := s.loader.Verse(ctx, ref)
	if err != nil {
		return err
	}
	if opts.Style == "" {
		opts.Style = s.cfg.Explain.Style
	}
	if opts.Length == "" {
		opts.Length = s.cfg.Explain.Length
	}
	req := explain.NewRequest(v, opts)
	req.Regenerate = regenerate
	logging.StreamEvent(logging.WithSessionID(ctx, s.ID), "start", v.Ref,
		"style", req.Options.Normalize().Style, "regenerate", regenerate)
	return s.explain.Generate(ctx, req)
}

// Close cancels the active keyword scan and explanation stream.
func (s *Session) Close() {
	s.keywords.Cancel()
	s.explain.Stop()
}

func (s *Session) meta(n int) corpus.ChapterMeta {
	for _, m := range s.chapters {
		if m.ID == n {
			return m
		}
	}
	return corpus.ChapterMeta{ID: n}
}
