package corpus_test

import (
	"context"
	"sync"
	"testing"

	"github.com/FocuswithJustin/QuranScope/core/corpus"
	"github.com/FocuswithJustin/QuranScope/core/corpus/corpustest"
	qerrors "github.com/FocuswithJustin/QuranScope/core/errors"
)

func TestLoadChapter(t *testing.T) {
	ctx := context.Background()
	loader := corpus.NewLoader(corpustest.NewSource())

	verses, err := loader.LoadChapter(ctx, 112)
	if err != nil {
		t.Fatalf("LoadChapter failed: %v", err)
	}
	if len(verses) != 4 {
		t.Fatalf("len(verses) = %d, want 4", len(verses))
	}
	if verses[0].Ref != "112:1" || verses[0].Chapter != 112 || verses[0].Verse != 1 {
		t.Errorf("verses[0] = %+v", verses[0])
	}
	if verses[3].Translated != "" {
		t.Errorf("null translation decoded as %q, want empty", verses[3].Translated)
	}
}

func TestLoadChapterCachesAndCoalesces(t *testing.T) {
	ctx := context.Background()
	src := corpustest.NewSource()
	var loads int
	var mu sync.Mutex
	loader := corpus.NewLoader(src, corpus.WithLoadObserver(func(int, error) {
		mu.Lock()
		loads++
		mu.Unlock()
	}))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := loader.LoadChapter(ctx, 2); err != nil {
				t.Errorf("LoadChapter failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := src.Opens(corpus.ChapterPath(2)); got != 1 {
		t.Errorf("chapter fetched %d times, want 1", got)
	}
	if loads != 1 {
		t.Errorf("observer called %d times, want 1", loads)
	}
	if loader.CachedChapters() != 1 {
		t.Errorf("CachedChapters() = %d, want 1", loader.CachedChapters())
	}
}

func TestLoadChapterMissingAndMalformed(t *testing.T) {
	ctx := context.Background()
	src := corpustest.NewSource()
	src.Set(corpus.ChapterPath(3), []byte(`{not json`))
	loader := corpus.NewLoader(src)

	verses, err := loader.LoadChapter(ctx, 50)
	if !qerrors.IsNotFound(err) {
		t.Errorf("missing chapter error = %v, want not found", err)
	}
	if verses == nil || len(verses) != 0 {
		t.Errorf("missing chapter verses = %v, want empty slice", verses)
	}

	_, err = loader.LoadChapter(ctx, 3)
	var pe *qerrors.ParseError
	if !qerrors.As(err, &pe) {
		t.Errorf("malformed chapter error = %v, want ParseError", err)
	}

	// Failures are not cached: a fixed resource loads on the next attempt.
	src.Set(corpus.ChapterPath(3), []byte(`[{"ref":"3:1","surah":3,"ayah":1,"arabic":"الم","english":"Alif, Lam, Meem."}]`))
	verses, err = loader.LoadChapter(ctx, 3)
	if err != nil || len(verses) != 1 {
		t.Errorf("retry after fix = %v, %v", verses, err)
	}

	for _, n := range []int{0, 115, -1} {
		if _, err := loader.LoadChapter(ctx, n); !qerrors.Is(err, qerrors.ErrInvalidInput) {
			t.Errorf("LoadChapter(%d) error = %v, want invalid input", n, err)
		}
	}
}

func TestLoaderVerse(t *testing.T) {
	ctx := context.Background()
	loader := corpus.NewLoader(corpustest.NewSource())

	v, err := loader.Verse(ctx, corpus.MustParseRef("2:255"))
	if err != nil {
		t.Fatalf("Verse failed: %v", err)
	}
	if v.Ref != "2:255" {
		t.Errorf("Verse ref = %q", v.Ref)
	}
	if _, err := loader.Verse(ctx, corpus.MustParseRef("2:256")); !qerrors.IsNotFound(err) {
		t.Errorf("absent verse error = %v", err)
	}
	if _, err := loader.Verse(ctx, corpus.MustParseRef("2")); err == nil {
		t.Error("expected error for whole-chapter ref")
	}
}

func TestLoaderChapters(t *testing.T) {
	ctx := context.Background()
	loader := corpus.NewLoader(corpustest.NewSource())

	meta, err := loader.Chapters(ctx)
	if err != nil {
		t.Fatalf("Chapters failed: %v", err)
	}
	if len(meta) != 3 || meta[2].ID != 112 || meta[2].Label() != "Al-Ikhlas" {
		t.Errorf("Chapters = %+v", meta)
	}
	ids := loader.ChapterIDs(ctx)
	if len(ids) != 3 || ids[0] != 1 || ids[1] != 2 || ids[2] != 112 {
		t.Errorf("ChapterIDs = %v", ids)
	}

	empty := corpus.NewLoader(corpus.NewMapSource(nil))
	meta, err = empty.Chapters(ctx)
	if !qerrors.IsNotFound(err) {
		t.Errorf("missing index error = %v", err)
	}
	if len(meta) != corpus.ChapterCount {
		t.Errorf("fallback len = %d, want %d", len(meta), corpus.ChapterCount)
	}
	if ids := empty.ChapterIDs(ctx); len(ids) != corpus.ChapterCount {
		t.Errorf("fallback ids len = %d", len(ids))
	}
}

func TestLoaderChapterThemes(t *testing.T) {
	ctx := context.Background()
	loader := corpus.NewLoader(corpustest.NewSource())

	rows, err := loader.ChapterThemes(ctx, 1)
	if err != nil {
		t.Fatalf("ChapterThemes failed: %v", err)
	}
	if len(rows) != 4 || rows[1].Ref != "1:3" || len(rows[1].Themes) != 2 {
		t.Errorf("rows = %+v", rows)
	}
	rows, err = loader.ChapterThemes(ctx, 112)
	if !qerrors.IsNotFound(err) || len(rows) != 0 {
		t.Errorf("missing themes = %v, %v", rows, err)
	}
}
