package api

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/FocuswithJustin/QuranScope/core/corpus"
	"github.com/FocuswithJustin/QuranScope/core/corpus/corpustest"
	"github.com/FocuswithJustin/QuranScope/core/reader"
)

func TestIsIndexFile(t *testing.T) {
	tests := []struct {
		rel  string
		want bool
	}{
		{"meta/inverse_themes.json", true},
		{"meta/inverse_themes.json.xz", true},
		{"meta/surah-index.json", true},
		{"meta/other.json", false},
		{"inverse_themes.json", false},
		{"surah/1.json", false},
	}
	for _, tt := range tests {
		if got := isIndexFile(tt.rel); got != tt.want {
			t.Errorf("isIndexFile(%q) = %v, want %v", tt.rel, got, tt.want)
		}
	}
}

func TestWatcherReloadsThemeIndex(t *testing.T) {
	dir := t.TempDir()
	corpustest.WriteDir(t, dir, false)
	src := corpus.NewDirSource(dir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := NewSessionStore(func(ctx context.Context, shared *reader.Shared) *reader.Session {
		return reader.NewSession(ctx, reader.DefaultConfig(), src, nil, reader.WithShared(shared))
	}, 0, nil)
	st.LoadShared(ctx, src)
	defer st.Close()
	if n := st.Shared().Index.Len(); n != 6 {
		t.Fatalf("initial themes = %d", n)
	}

	hub := NewHub(nil)
	go hub.Run(ctx)

	w, err := NewWatcher(dir, src, st, hub)
	if err != nil {
		t.Fatal(err)
	}
	w.debounce = 20 * time.Millisecond
	w.reloaded = make(chan struct{}, 1)
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	name := filepath.Join(dir, filepath.FromSlash(corpus.ThemeIndexPath))
	if err := os.WriteFile(name, []byte(`{"Mercy":["1:1"]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-w.reloaded:
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after index change")
	}
	if n := st.Shared().Index.Len(); n != 1 {
		t.Errorf("themes after reload = %d, want 1", n)
	}
	s, _ := st.Get(ctx, "")
	if n := s.Index().Len(); n != 1 {
		t.Errorf("new session themes = %d, want 1", n)
	}
}

func TestWatcherIgnoresChapterFiles(t *testing.T) {
	dir := t.TempDir()
	corpustest.WriteDir(t, dir, false)
	src := corpus.NewDirSource(dir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := NewSessionStore(func(ctx context.Context, shared *reader.Shared) *reader.Session {
		return reader.NewSession(ctx, reader.DefaultConfig(), src, nil, reader.WithShared(shared))
	}, 0, nil)
	hub := NewHub(nil)
	go hub.Run(ctx)

	w, err := NewWatcher(dir, src, st, hub)
	if err != nil {
		t.Fatal(err)
	}
	w.debounce = 20 * time.Millisecond
	w.reloaded = make(chan struct{}, 1)
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-w.reloaded:
		t.Error("reloaded after an unrelated change")
	case <-time.After(200 * time.Millisecond):
	}
}
