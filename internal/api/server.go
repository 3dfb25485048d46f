// Package api provides the QuranScope HTTP and WebSocket server.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/FocuswithJustin/QuranScope/core/corpus"
	"github.com/FocuswithJustin/QuranScope/core/explain"
	"github.com/FocuswithJustin/QuranScope/core/reader"
	"github.com/FocuswithJustin/QuranScope/internal/logging"
	"github.com/FocuswithJustin/QuranScope/internal/metrics"
)

// Version is reported by the root endpoint.
const Version = "0.3.0"

// Options carries the server's collaborators.
type Options struct {
	Reader  reader.Config
	Client  *explain.Client   // nil disables /api/explain
	Metrics *metrics.Recorder // nil creates a private recorder
}

// Server serves reader sessions over HTTP.
type Server struct {
	cfg      Config
	src      corpus.Source
	opts     Options
	metrics  *metrics.Recorder
	sessions *SessionStore
	hub      *Hub
	started  time.Time
}

// NewServer creates a server over src and loads the shared indexes.
func NewServer(ctx context.Context, cfg Config, src corpus.Source, opts Options) (*Server, error) {
	if err := ValidateAuthConfig(cfg.Auth); err != nil {
		return nil, fmt.Errorf("invalid auth config: %w", err)
	}
	if cfg.TLS.Enabled {
		if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
			return nil, errors.New("TLS enabled but cert or key file not specified")
		}
		for _, f := range []string{cfg.TLS.CertFile, cfg.TLS.KeyFile} {
			if _, err := os.Stat(f); err != nil {
				return nil, fmt.Errorf("TLS file not found: %w", err)
			}
		}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}

	s := &Server{
		cfg:     cfg,
		src:     src,
		opts:    opts,
		metrics: opts.Metrics,
		hub:     NewHub(opts.Metrics),
		started: time.Now(),
	}
	s.sessions = NewSessionStore(s.newSession, cfg.SessionTTL, opts.Metrics.SetSessions)
	s.sessions.LoadShared(ctx, src)
	return s, nil
}

func (s *Server) newSession(ctx context.Context, shared *reader.Shared) *reader.Session {
	opts := []reader.Option{reader.WithObserver(s.metrics)}
	if shared != nil {
		opts = append(opts, reader.WithShared(shared))
	}
	return reader.NewSession(ctx, s.opts.Reader, s.src, s.opts.Client, opts...)
}

// Sessions returns the session store.
func (s *Server) Sessions() *SessionStore {
	return s.sessions
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the routed handler wrapped in the middleware chain.
// Rate limiting state lives until ctx ends.
func (s *Server) Handler(ctx context.Context) http.Handler {
	var handler http.Handler = SecurityHeaders(s.routes())

	if s.cfg.Auth.Enabled {
		handler = AuthMiddleware(s.cfg.Auth, handler)
	}
	if s.cfg.RateLimitRequests > 0 {
		rl := NewRateLimiter(ctx, RateLimiterConfig{
			RequestsPerMinute: s.cfg.RateLimitRequests,
			BurstSize:         s.cfg.RateLimitBurst,
		})
		handler = rl.Middleware(handler)
	}
	handler = CORSMiddleware(CORSConfig{AllowedOrigins: s.cfg.AllowedOrigins}, handler)
	return logging.CombinedMiddleware(handler)
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())

	mux.HandleFunc("GET /api/chapters", s.handleChapters)
	mux.HandleFunc("GET /api/chapters/{n}", s.handleChapter)
	mux.HandleFunc("GET /api/verses/{ref}", s.handleVerse)
	mux.HandleFunc("GET /api/themes", s.handleThemes)
	mux.HandleFunc("GET /api/themes/{name}", s.handleTheme)
	mux.HandleFunc("GET /api/search/themes", s.handleThemeSearch)
	mux.HandleFunc("GET /api/search/keywords", s.handleKeywordSearch)
	mux.HandleFunc("GET /api/tafsir/{ref}", s.handleTafsir)
	mux.HandleFunc("POST /api/explain", s.handleExplain)
	mux.HandleFunc("GET /ws/search", s.handleSearchSocket)
	return mux
}

// Run serves until ctx ends, then shuts down gracefully. It also runs the
// WebSocket hub, the idle session sweeper and, when configured, the data
// directory watcher.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.hub.Run(ctx)
	go s.sessions.Run(ctx)
	defer s.sessions.Close()

	if s.cfg.WatchDir != "" {
		w, err := NewWatcher(s.cfg.WatchDir, s.src, s.sessions, s.hub)
		if err != nil {
			return fmt.Errorf("watch %s: %w", s.cfg.WatchDir, err)
		}
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer w.Stop()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	protocol := "http"
	if s.cfg.TLS.Enabled {
		protocol = "https"
	} else {
		logging.Warn("TLS disabled - using plain HTTP",
			"recommendation", "consider using TLS or reverse proxy for production")
	}
	logging.ServerStartup("rest_api", protocol, s.cfg.Port,
		"explain", s.opts.Client != nil,
		"watch", s.cfg.WatchDir != "",
		"rate_limit", s.cfg.RateLimitRequests)

	errCh := make(chan error, 1)
	go func() {
		if s.cfg.TLS.Enabled {
			errCh <- srv.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			errCh <- srv.ListenAndServe()
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
