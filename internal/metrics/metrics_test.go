package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/FocuswithJustin/QuranScope/core/corpus"
	"github.com/FocuswithJustin/QuranScope/core/corpus/corpustest"
	qerrors "github.com/FocuswithJustin/QuranScope/core/errors"
	"github.com/FocuswithJustin/QuranScope/core/explain"
	"github.com/FocuswithJustin/QuranScope/core/keyword"
	"github.com/FocuswithJustin/QuranScope/core/themes"
)

func scrape(t *testing.T, r *Recorder) string {
	t.Helper()
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func wantLine(t *testing.T, body, line string) {
	t.Helper()
	for _, l := range strings.Split(body, "\n") {
		if l == line {
			return
		}
	}
	t.Errorf("missing metric line %q", line)
}

func TestChapterLoads(t *testing.T) {
	r := New()
	r.ChapterLoaded(1, nil)
	r.ChapterLoaded(2, nil)
	r.ChapterLoaded(3, &qerrors.NotFoundError{Resource: "chapter"})
	r.ChapterLoaded(4, errors.New("boom"))

	body := scrape(t, r)
	wantLine(t, body, `quranscope_chapter_loads_total{result="ok"} 2`)
	wantLine(t, body, `quranscope_chapter_loads_total{result="missing"} 1`)
	wantLine(t, body, `quranscope_chapter_loads_total{result="error"} 1`)
}

func TestThemeSearched(t *testing.T) {
	r := New()
	r.ThemeSearched(themes.Outcome{Theme: "Mercy"}, time.Millisecond)
	r.ThemeSearched(themes.Outcome{Suggestions: []string{"Mercy"}}, time.Millisecond)
	r.ThemeSearched(themes.Outcome{}, time.Millisecond)

	body := scrape(t, r)
	wantLine(t, body, `quranscope_searches_total{kind="theme",outcome="matched"} 1`)
	wantLine(t, body, `quranscope_searches_total{kind="theme",outcome="suggested"} 1`)
	wantLine(t, body, `quranscope_searches_total{kind="theme",outcome="empty"} 1`)
	wantLine(t, body, `quranscope_theme_search_duration_seconds_count 3`)
}

func TestKeywordFinished(t *testing.T) {
	r := New()
	loader := corpus.NewLoader(corpustest.NewSource())
	engine := keyword.NewEngine(loader, nil, keyword.WithFinish(r.KeywordFinished))

	run := engine.Search(context.Background(), "mercy", keyword.Partial)
	if err := run.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	engine.Search(context.Background(), "   ", keyword.Word) // ignored

	body := scrape(t, r)
	wantLine(t, body, `quranscope_searches_total{kind="keyword",outcome="completed"} 1`)
	wantLine(t, body, `quranscope_keyword_search_duration_seconds_count 1`)
}

func TestExplainFinished(t *testing.T) {
	r := New()
	r.ExplainFinished(explain.Request{}, explain.Snapshot{State: explain.Completed, Cache: explain.CacheHit}, 120)
	r.ExplainFinished(explain.Request{}, explain.Snapshot{State: explain.Stopped}, 30)

	body := scrape(t, r)
	wantLine(t, body, `quranscope_explain_streams_total{cache="HIT",state="completed"} 1`)
	wantLine(t, body, `quranscope_explain_streams_total{cache="unknown",state="stopped"} 1`)
	wantLine(t, body, `quranscope_explain_stream_bytes_total 150`)
}

func TestGauges(t *testing.T) {
	r := New()
	r.WebSocketConnected(1)
	r.WebSocketConnected(1)
	r.WebSocketConnected(-1)
	r.SetSessions(3)

	body := scrape(t, r)
	wantLine(t, body, `quranscope_websocket_clients 1`)
	wantLine(t, body, `quranscope_sessions 3`)
	if !strings.Contains(body, "go_goroutines") {
		t.Error("runtime collector not registered")
	}
}

func TestRegistriesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.SetSessions(5)
	wantLine(t, scrape(t, b), `quranscope_sessions 0`)
}
