package api

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/FocuswithJustin/QuranScope/core/corpus"
	"github.com/FocuswithJustin/QuranScope/internal/logging"
)

// DefaultDebounce is how long the watcher waits for more changes before
// reloading.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reloads the shared indexes when the theme index or chapter
// metadata of a directory source changes, and tells connected sockets.
// Sessions created afterwards see the new data; existing ones keep theirs.
type Watcher struct {
	dir      string
	src      corpus.Source
	sessions *SessionStore
	hub      *Hub
	debounce time.Duration
	fsw      *fsnotify.Watcher

	pendingMu sync.Mutex
	pending   map[string]fsnotify.Op

	reloaded chan struct{} // signalled after each reload; nil outside tests
}

// NewWatcher creates a watcher over dir, the root of src.
func NewWatcher(dir string, src corpus.Source, sessions *SessionStore, hub *Hub) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		dir:      dir,
		src:      src,
		sessions: sessions,
		hub:      hub,
		debounce: DefaultDebounce,
		fsw:      fsw,
		pending:  make(map[string]fsnotify.Op),
	}, nil
}

// Start watches the data root and its meta directory until ctx ends or Stop
// is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.fsw.Add(w.dir); err != nil {
		return err
	}
	meta := filepath.Join(w.dir, filepath.Dir(filepath.FromSlash(corpus.ThemeIndexPath)))
	if info, err := os.Stat(meta); err == nil && info.IsDir() {
		if err := w.fsw.Add(meta); err != nil {
			logging.Warn("failed to watch directory", "path", meta, "error", err)
		}
	}
	go w.processEvents(ctx)
	logging.Info("data watcher started", "dir", w.dir, "debounce", w.debounce)
	return nil
}

// Stop stops watching.
func (w *Watcher) Stop() error {
	return w.fsw.Close()
}

func (w *Watcher) processEvents(ctx context.Context) {
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleFSEvent(ev)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.Error("watcher error", "error", err)

		case <-ticker.C:
			w.flushPending(ctx)
		}
	}
}

func (w *Watcher) handleFSEvent(ev fsnotify.Event) {
	rel, err := filepath.Rel(w.dir, ev.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	// The meta directory may appear after start.
	if ev.Has(fsnotify.Create) && rel+"/" == metaPrefix() {
		if err := w.fsw.Add(ev.Name); err != nil {
			logging.Warn("failed to watch new directory", "path", ev.Name, "error", err)
		}
		w.mark(rel, ev.Op)
		return
	}
	if !isIndexFile(rel) {
		return
	}
	w.mark(rel, ev.Op)
	logging.Debug("index change detected", "path", rel, "op", ev.Op.String())
}

func (w *Watcher) mark(rel string, op fsnotify.Op) {
	w.pendingMu.Lock()
	w.pending[rel] |= op
	w.pendingMu.Unlock()
}

func metaPrefix() string {
	return corpus.ThemeIndexPath[:strings.IndexByte(corpus.ThemeIndexPath, '/')+1]
}

// isIndexFile reports whether rel is one of the shared indexes, plain or
// compressed.
func isIndexFile(rel string) bool {
	for _, p := range []string{corpus.ThemeIndexPath, corpus.ChapterIndexPath} {
		if rel == p || rel == p+".xz" {
			return true
		}
	}
	return false
}

func (w *Watcher) flushPending(ctx context.Context) {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	changed := make([]string, 0, len(w.pending))
	for p := range w.pending {
		changed = append(changed, p)
	}
	w.pending = make(map[string]fsnotify.Op)
	w.pendingMu.Unlock()

	if ctx.Err() != nil {
		return
	}
	w.sessions.LoadShared(ctx, w.src)
	w.hub.Broadcast(Message{Type: MsgReload, Message: strings.Join(changed, ", ")})
	logging.Info("shared indexes reloaded", "changed", changed)

	if w.reloaded != nil {
		select {
		case w.reloaded <- struct{}{}:
		default:
		}
	}
}
