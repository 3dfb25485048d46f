package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/FocuswithJustin/QuranScope/core/corpus"
	qerrors "github.com/FocuswithJustin/QuranScope/core/errors"
	"github.com/FocuswithJustin/QuranScope/core/keyword"
	"github.com/FocuswithJustin/QuranScope/core/reader"
	"github.com/FocuswithJustin/QuranScope/core/search"
	"github.com/FocuswithJustin/QuranScope/core/tafsir"
	"github.com/FocuswithJustin/QuranScope/internal/logging"
)

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *APIMeta    `json:"meta,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIMeta contains response metadata.
type APIMeta struct {
	Timestamp string `json:"timestamp"`
	Session   string `json:"session,omitempty"`
}

// ThemeSearchResponse is the body of /api/search/themes.
type ThemeSearchResponse struct {
	Query       string      `json:"query"`
	Theme       string      `json:"theme,omitempty"`
	Suggestions []string    `json:"suggestions"`
	Chapters    []int       `json:"chapters"`
	Page        search.Page `json:"page"`
}

// KeywordSearchResponse is the body of /api/search/keywords.
type KeywordSearchResponse struct {
	Query    string           `json:"query"`
	Match    keyword.Mode     `json:"match"`
	Progress keyword.Progress `json:"progress"`
	Chapters []int            `json:"chapters"`
	Page     search.Page      `json:"page"`
	Duration string           `json:"duration"`
}

// TafsirResponse is the body of /api/tafsir/{ref}.
type TafsirResponse struct {
	tafsir.Entry
	Markdown string `json:"markdown,omitempty"`
}

// session returns the caller's reader session, creating one if needed, and
// echoes its ID in the response.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *reader.Session {
	id := r.Header.Get(SessionHeader)
	if id == "" {
		id = r.URL.Query().Get("session")
	}
	sess, _ := s.sessions.Get(r.Context(), id)
	w.Header().Set(SessionHeader, sess.ID)
	return sess
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]interface{}{
		"name":    "QuranScope API",
		"version": Version,
		"endpoints": []string{
			"GET /api/chapters", "GET /api/chapters/{n}", "GET /api/verses/{ref}",
			"GET /api/themes", "GET /api/themes/{name}",
			"GET /api/search/themes?q=", "GET /api/search/keywords?q=&match=",
			"GET /api/tafsir/{ref}", "POST /api/explain", "GET /ws/search",
			"GET /metrics", "GET /healthz",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	themes := 0
	if sh := s.sessions.Shared(); sh != nil && sh.Index != nil {
		themes = sh.Index.Len()
	}
	respond(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"sessions": s.sessions.Len(),
		"clients":  s.hub.ClientCount(),
		"themes":   themes,
		"uptime":   time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleChapters(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, s.session(w, r).Chapters())
}

func (s *Server) handleChapter(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil || !corpus.ValidChapter(n) {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT",
			fmt.Sprintf("chapter must be between 1 and %d", corpus.ChapterCount))
		return
	}
	view, err := s.session(w, r).Chapter(r.Context(), n)
	if err != nil {
		respondErr(w, err)
		return
	}

	body, err := json.Marshal(view)
	if err != nil {
		respondErr(w, err)
		return
	}
	etag := `"` + corpus.Hash(body)[:32] + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if match := r.Header.Get("If-None-Match"); match != "" && etagMatches(match, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	respond(w, http.StatusOK, json.RawMessage(body))
}

func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		c := strings.TrimSpace(candidate)
		if c == "*" || strings.TrimPrefix(c, "W/") == etag {
			return true
		}
	}
	return false
}

func (s *Server) handleVerse(w http.ResponseWriter, r *http.Request) {
	ref, err := parseRef(r.PathValue("ref"))
	if err != nil {
		respondErr(w, err)
		return
	}
	view, err := s.session(w, r).Verse(r.Context(), ref)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, view)
}

// parseRef parses a reference from the request. A malformed reference is
// the caller's mistake, so it is reported as invalid input.
func parseRef(raw string) (corpus.Ref, error) {
	ref, err := corpus.ParseRef(raw)
	var pe *qerrors.ParseError
	if errors.As(err, &pe) {
		return ref, qerrors.NewValidation("ref", pe.Message)
	}
	return ref, err
}

func (s *Server) handleThemes(w http.ResponseWriter, r *http.Request) {
	idx := s.session(w, r).Index()
	respond(w, http.StatusOK, map[string]interface{}{
		"count":  idx.Len(),
		"themes": idx.SortedNames(),
	})
}

func (s *Server) handleTheme(w http.ResponseWriter, r *http.Request) {
	out, err := s.session(w, r).Theme(r.Context(), r.PathValue("name"))
	if err != nil {
		respondErr(w, err)
		return
	}
	if out.Theme == "" {
		msg := fmt.Sprintf("no theme named %q", out.Query)
		if len(out.Suggestions) > 0 {
			msg += "; did you mean " + strings.Join(out.Suggestions, ", ") + "?"
		}
		respondError(w, http.StatusNotFound, "NOT_FOUND", msg)
		return
	}
	respond(w, http.StatusOK, out)
}

// view reads chapter, order, page and per_page.
func view(r *http.Request, perPage int) (search.View, error) {
	q := r.URL.Query()
	v := search.View{Order: search.ParseOrder(q.Get("order")), Page: 1, PerPage: perPage}
	for _, p := range []struct {
		name string
		dst  *int
	}{{"chapter", &v.Chapter}, {"page", &v.Page}, {"per_page", &v.PerPage}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return v, qerrors.NewValidation(p.name, fmt.Sprintf("not a non-negative integer: %q", raw))
		}
		*p.dst = n
	}
	if v.PerPage > 200 {
		v.PerPage = 200
	}
	return v, nil
}

func (s *Server) handleThemeSearch(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	v, err := view(r, sess.Config().PerPage)
	if err != nil {
		respondErr(w, err)
		return
	}
	out, err := sess.ThemeSearch(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, ThemeSearchResponse{
		Query:       out.Query,
		Theme:       out.Theme,
		Suggestions: out.Suggestions,
		Chapters:    chapters(out.Results),
		Page:        search.Apply(out.Results, v),
	})
}

func (s *Server) handleKeywordSearch(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	v, err := view(r, sess.Config().PerPage)
	if err != nil {
		respondErr(w, err)
		return
	}
	mode, err := keyword.ParseMode(r.URL.Query().Get("match"))
	if err != nil {
		respondErr(w, err)
		return
	}
	run, err := sess.KeywordSearch(r.Context(), r.URL.Query().Get("q"), mode)
	if err != nil {
		respondErr(w, err)
		return
	}
	if err := run.Wait(r.Context()); err != nil {
		run.Cancel()
		return
	}
	if run.Cancelled() {
		respondError(w, http.StatusConflict, "CANCELLED", "search superseded by a newer search in this session")
		return
	}
	results := run.Results()
	respond(w, http.StatusOK, KeywordSearchResponse{
		Query:    run.Query,
		Match:    run.Mode,
		Progress: run.Progress(),
		Chapters: chapters(results),
		Page:     search.Apply(results, v),
		Duration: run.Duration().Round(time.Millisecond).String(),
	})
}

func chapters(results []search.Result) []int {
	cs := search.AvailableChapters(results)
	if cs == nil {
		cs = []int{}
	}
	return cs
}

func (s *Server) handleTafsir(w http.ResponseWriter, r *http.Request) {
	ref, err := parseRef(r.PathValue("ref"))
	if err != nil {
		respondErr(w, err)
		return
	}
	entry, err := s.session(w, r).Tafsir(r.Context(), ref)
	if err != nil {
		if qerrors.IsNotFound(err) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", tafsir.Message(err))
			return
		}
		respondErr(w, err)
		return
	}
	resp := TafsirResponse{Entry: entry}
	if r.URL.Query().Get("format") == "markdown" {
		md, err := entry.Markdown()
		if err != nil {
			respondErr(w, err)
			return
		}
		resp.Markdown = md
	}
	respond(w, http.StatusOK, resp)
}

// respondErr maps the error taxonomy to HTTP statuses.
func respondErr(w http.ResponseWriter, err error) {
	var se *qerrors.StatusError
	switch {
	case qerrors.Is(err, qerrors.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
	case qerrors.IsNotFound(err):
		respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case qerrors.Is(err, qerrors.ErrUnsupported):
		respondError(w, http.StatusNotImplemented, "UNSUPPORTED", err.Error())
	case errors.As(err, &se):
		respondError(w, http.StatusBadGateway, "UPSTREAM_ERROR", err.Error())
	default:
		logging.Error("request failed", "error", err)
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
	}
}

func respond(w http.ResponseWriter, status int, data interface{}) {
	response := APIResponse{
		Success: true,
		Data:    data,
		Meta: &APIMeta{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Session:   w.Header().Get(SessionHeader),
		},
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	response := APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
		},
		Meta: &APIMeta{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Session:   w.Header().Get(SessionHeader),
		},
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}
