package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/FocuswithJustin/QuranScope/core/cache"
	qerrors "github.com/FocuswithJustin/QuranScope/core/errors"
)

// LoadObserver is notified after every chapter fetch that actually ran
// (cache hits are not reported).
type LoadObserver func(chapter int, err error)

// Loader fetches per-chapter resources on demand and caches them for the
// lifetime of its session. Each session owns its own Loader.
type Loader struct {
	src      Source
	chapters *cache.Memo[int, []Verse]
	themes   *cache.Memo[int, []ThemeRow]
	meta     *cache.Memo[string, []ChapterMeta]
	observer LoadObserver
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLoadObserver registers a callback for completed chapter fetches.
func WithLoadObserver(fn LoadObserver) LoaderOption {
	return func(l *Loader) { l.observer = fn }
}

// NewLoader creates a Loader reading from src.
func NewLoader(src Source, opts ...LoaderOption) *Loader {
	l := &Loader{
		src:      src,
		chapters: cache.NewMemo[int, []Verse](),
		themes:   cache.NewMemo[int, []ThemeRow](),
		meta:     cache.NewMemo[string, []ChapterMeta](),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Source returns the underlying resource source.
func (l *Loader) Source() Source {
	return l.src
}

// LoadChapter returns the verses of chapter n. A missing or malformed chapter
// file yields an empty slice together with a NotFoundError or ParseError;
// callers that only need best-effort data can ignore the error.
func (l *Loader) LoadChapter(ctx context.Context, n int) ([]Verse, error) {
	if !ValidChapter(n) {
		return nil, qerrors.NewValidation("chapter", fmt.Sprintf("must be between 1 and %d, got %d", ChapterCount, n))
	}
	verses, err := l.chapters.GetOrLoad(ctx, n, func(ctx context.Context) ([]Verse, error) {
		v, err := l.fetchChapter(ctx, n)
		if l.observer != nil {
			l.observer(n, err)
		}
		return v, err
	})
	if err != nil {
		return []Verse{}, err
	}
	return verses, nil
}

func (l *Loader) fetchChapter(ctx context.Context, n int) ([]Verse, error) {
	path := ChapterPath(n)
	data, err := l.src.Open(ctx, path)
	if err != nil {
		if qerrors.IsNotFound(err) {
			return nil, &qerrors.NotFoundError{Resource: "chapter", ID: strconv.Itoa(n), Err: err}
		}
		return nil, err
	}

	var verses []Verse
	if err := json.Unmarshal(data, &verses); err != nil {
		return nil, qerrors.NewParse("JSON", path, err)
	}
	for i := range verses {
		verses[i].normalize()
	}
	return verses, nil
}

// Verse returns a single verse. The chapter is loaded (and cached) as a whole.
func (l *Loader) Verse(ctx context.Context, ref Ref) (Verse, error) {
	if ref.IsChapter() {
		return Verse{}, qerrors.NewValidation("ref", "verse number required")
	}
	verses, err := l.LoadChapter(ctx, ref.Chapter)
	if err != nil {
		return Verse{}, err
	}
	v, ok := FindVerse(verses, ref.Verse)
	if !ok {
		return Verse{}, qerrors.NewNotFound("verse", ref.String())
	}
	return v, nil
}

// ChapterThemes returns the forward theme rows of chapter n. A missing file
// yields no rows and a NotFoundError.
func (l *Loader) ChapterThemes(ctx context.Context, n int) ([]ThemeRow, error) {
	if !ValidChapter(n) {
		return nil, qerrors.NewValidation("chapter", fmt.Sprintf("must be between 1 and %d, got %d", ChapterCount, n))
	}
	rows, err := l.themes.GetOrLoad(ctx, n, func(ctx context.Context) ([]ThemeRow, error) {
		path := ChapterThemesPath(n)
		data, err := l.src.Open(ctx, path)
		if err != nil {
			return nil, err
		}
		var rows []ThemeRow
		if err := json.Unmarshal(data, &rows); err != nil {
			return nil, qerrors.NewParse("JSON", path, err)
		}
		return rows, nil
	})
	if err != nil {
		return []ThemeRow{}, err
	}
	return rows, nil
}

// Chapters returns the chapter metadata index. When the index is missing or
// malformed it falls back to bare rows for chapters 1..ChapterCount and
// returns the error alongside.
func (l *Loader) Chapters(ctx context.Context) ([]ChapterMeta, error) {
	meta, err := l.meta.GetOrLoad(ctx, ChapterIndexPath, func(ctx context.Context) ([]ChapterMeta, error) {
		data, err := l.src.Open(ctx, ChapterIndexPath)
		if err != nil {
			return nil, err
		}
		var rows []ChapterMeta
		if err := json.Unmarshal(data, &rows); err != nil {
			return nil, qerrors.NewParse("JSON", ChapterIndexPath, err)
		}
		return rows, nil
	})
	if err != nil || len(meta) == 0 {
		fallback := make([]ChapterMeta, 0, ChapterCount)
		for _, id := range AllChapterIDs() {
			fallback = append(fallback, ChapterMeta{ID: id})
		}
		return fallback, err
	}
	return meta, nil
}

// ChapterIDs returns the chapter numbers to scan, in index order, restricted
// to valid chapter numbers.
func (l *Loader) ChapterIDs(ctx context.Context) []int {
	meta, _ := l.Chapters(ctx)
	ids := make([]int, 0, len(meta))
	for _, m := range meta {
		if ValidChapter(m.ID) {
			ids = append(ids, m.ID)
		}
	}
	if len(ids) == 0 {
		return AllChapterIDs()
	}
	return ids
}

// CachedChapters reports how many chapters are held in the session cache.
func (l *Loader) CachedChapters() int {
	return l.chapters.Len()
}
