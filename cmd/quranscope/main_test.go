package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	prompt "github.com/c-bata/go-prompt"

	"github.com/FocuswithJustin/QuranScope/core/corpus"
	"github.com/FocuswithJustin/QuranScope/core/corpus/corpustest"
	"github.com/FocuswithJustin/QuranScope/core/tafsir"
	"github.com/FocuswithJustin/QuranScope/internal/config"
)

type testApp struct {
	*App
	out, err *bytes.Buffer
}

// newTestApp returns an App over a fixture directory that ignores the
// environment and any config files on the machine.
func newTestApp(t *testing.T, g Globals) *testApp {
	t.Helper()
	if g.Data == "" {
		dir := t.TempDir()
		corpustest.WriteDir(t, dir, false)
		g.Data = dir
	}
	if g.APIOrigin == "" {
		g.APIOrigin = "none"
	}
	var out, errOut bytes.Buffer
	app := newApp(context.Background(), &g, &out, &errOut)

	loader := config.NewLoader(nil)
	loader.Getenv = func(string) string { return "" }
	loader.Home = t.TempDir()
	loader.WorkDir = t.TempDir()
	app.loader = loader

	t.Cleanup(func() { app.Close() })
	return &testApp{App: app, out: &out, err: &errOut}
}

func (a *testApp) run(t *testing.T, cmd interface{ Run(*App) error }) string {
	t.Helper()
	a.out.Reset()
	if err := cmd.Run(a.App); err != nil {
		t.Fatalf("Run: %v (stderr %q)", err, a.err.String())
	}
	return a.out.String()
}

func assertContains(t *testing.T, got string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(got, w) {
			t.Errorf("output missing %q:\n%s", w, got)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	app := newTestApp(t, Globals{})
	got := app.run(t, &VersionCmd{})
	if got != "quranscope version "+version+"\n" {
		t.Errorf("got %q", got)
	}
}

func TestSearchThemesCmd(t *testing.T) {
	app := newTestApp(t, Globals{})

	got := app.run(t, &SearchThemesCmd{Query: "mercy", ViewFlags: ViewFlags{Page: 1, Order: "asc"}})
	assertContains(t, got, "Theme: Mercy", "1:1", "1:3", "2:143", "Page 1 of 1 (3 results)", "chapters 1, 2")

	got = app.run(t, &SearchThemesCmd{Query: "mercy", ViewFlags: ViewFlags{Chapter: 2, Page: 1, Order: "asc"}})
	if strings.Contains(got, "1:1") || !strings.Contains(got, "2:143") {
		t.Errorf("chapter filter not applied:\n%s", got)
	}

	got = app.run(t, &SearchThemesCmd{Query: "Mercey", ViewFlags: ViewFlags{Page: 1, Order: "asc"}})
	assertContains(t, got, `No theme named "Mercey".`)

	if app.err.Len() > 0 {
		t.Errorf("searches logged at the default level: %s", app.err.String())
	}
}

func TestSearchKeywordsCmd(t *testing.T) {
	app := newTestApp(t, Globals{})

	got := app.run(t, &SearchKeywordsCmd{Query: "believe", Match: "word", ViewFlags: ViewFlags{Page: 1, Order: "asc"}})
	assertContains(t, got, `2 matches for "believe" (word) in 3 chapters`, "2:3", "2:8")
	if strings.Contains(got, "2:285") {
		t.Errorf("whole-word search matched believed:\n%s", got)
	}

	got = app.run(t, &SearchKeywordsCmd{Query: "believe", Match: "partial", ViewFlags: ViewFlags{Page: 1, Order: "asc"}})
	assertContains(t, got, "(partial)", "2:285")

	if app.err.Len() > 0 {
		t.Errorf("searches logged at the default level: %s", app.err.String())
	}

	cmd := &SearchKeywordsCmd{Query: "believe", Match: "fuzzy"}
	if err := cmd.Run(app.App); err == nil {
		t.Error("expected error for unknown match mode")
	}
}

func TestThemesListCmd(t *testing.T) {
	app := newTestApp(t, Globals{})
	got := app.run(t, &ThemesListCmd{Counts: true})
	assertContains(t, got, "Mercy (3)", "Worship (1)")
	if lines := strings.Count(got, "\n"); lines != 6 {
		t.Errorf("listed %d themes, want 6", lines)
	}
}

func TestChapterCmd(t *testing.T) {
	app := newTestApp(t, Globals{})
	got := app.run(t, &ChapterCmd{Number: 112})
	assertContains(t, got, "112. Al-Ikhlas", "Allah, the Eternal Refuge.")

	for _, n := range []int{0, 115} {
		if err := (&ChapterCmd{Number: n}).Run(app.App); err == nil {
			t.Errorf("chapter %d: expected error", n)
		}
	}
}

func TestVerseCmd(t *testing.T) {
	app := newTestApp(t, Globals{})
	got := app.run(t, &VerseCmd{Ref: "1:3"})
	assertContains(t, got, "1:3", "Al-Fatihah", "Themes: Mercy, Merciful Names")

	got = app.run(t, &VerseCmd{Ref: "1-3"})
	assertContains(t, got, "1:3", "Themes: Mercy, Merciful Names")

	for _, ref := range []string{"1:x", "115:1", "1:0"} {
		if err := (&VerseCmd{Ref: ref}).Run(app.App); err == nil {
			t.Errorf("%q: expected error for malformed ref", ref)
		}
	}
}

func TestTafsirCmd(t *testing.T) {
	app := newTestApp(t, Globals{})

	got := app.run(t, &TafsirCmd{Ref: "1:1"})
	assertContains(t, got, "**basmalah**")

	got = app.run(t, &TafsirCmd{Ref: "1:1", HTML: true})
	assertContains(t, got, "<strong>basmalah</strong>")

	got = app.run(t, &TafsirCmd{Ref: "1:4"})
	if strings.TrimSpace(got) != tafsir.MsgVerseUnavailable {
		t.Errorf("got %q, want %q", got, tafsir.MsgVerseUnavailable)
	}
}

func TestDataFingerprintCmd(t *testing.T) {
	app := newTestApp(t, Globals{})

	got := app.run(t, &DataFingerprintCmd{})
	assertContains(t, got, "7 resources")

	got = app.run(t, &DataFingerprintCmd{JSON: true})
	var m corpus.Manifest
	if err := json.Unmarshal([]byte(got), &m); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	if len(m.Resources) != 7 || len(m.Combined) != 64 {
		t.Errorf("manifest = %d resources, combined %q", len(m.Resources), m.Combined)
	}
}

func TestDataImportCmd(t *testing.T) {
	app := newTestApp(t, Globals{})
	db := filepath.Join(t.TempDir(), "quran.db")

	got := app.run(t, &DataImportCmd{DB: db, Tafsir: true})
	assertContains(t, got, "Imported ", db)

	// The imported database serves the same corpus.
	fromDB := newTestApp(t, Globals{Data: db, Source: config.SourceSQLite})
	got = fromDB.run(t, &VerseCmd{Ref: "2:255"})
	assertContains(t, got, "Ever-Living", "Themes: Oneness of God")

	got = fromDB.run(t, &TafsirCmd{Ref: "1:1"})
	assertContains(t, got, "**basmalah**")
}

func TestImportBatches(t *testing.T) {
	plain := importBatches(false)
	if len(plain) != corpus.ChapterCount+1 {
		t.Fatalf("batches = %d, want %d", len(plain), corpus.ChapterCount+1)
	}
	if plain[0][0] != corpus.ChapterIndexPath || plain[0][1] != corpus.ThemeIndexPath {
		t.Errorf("first batch = %v", plain[0])
	}
	if len(importBatches(true)[1]) <= len(plain[1]) {
		t.Error("tafsir paths not added")
	}
}

func TestServerConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Data.Location = "/srv/quran"
	cfg.Server.APIKey = "0123456789abcdef"

	sc := (&ServeCmd{Port: 9090, Watch: true}).serverConfig(cfg)
	if sc.Port != 9090 {
		t.Errorf("Port = %d", sc.Port)
	}
	if !sc.Auth.Enabled || sc.Auth.APIKey != cfg.Server.APIKey {
		t.Errorf("Auth = %+v", sc.Auth)
	}
	if sc.WatchDir != "/srv/quran" {
		t.Errorf("WatchDir = %q", sc.WatchDir)
	}
	if sc.TLS.Enabled {
		t.Error("TLS enabled without flags")
	}

	cfg.Data.Source = config.SourceHTTP
	sc = (&ServeCmd{Watch: true, TLSCert: "c.pem", TLSKey: "k.pem"}).serverConfig(cfg)
	if sc.WatchDir != "" {
		t.Errorf("WatchDir = %q for an http source", sc.WatchDir)
	}
	if sc.Port != cfg.Server.Port {
		t.Errorf("Port = %d, want config %d", sc.Port, cfg.Server.Port)
	}
	if !sc.TLS.Enabled || sc.TLS.CertFile != "c.pem" {
		t.Errorf("TLS = %+v", sc.TLS)
	}
}

func TestConfigFlagsOverride(t *testing.T) {
	app := newTestApp(t, Globals{LogLevel: "debug"})
	cfg, err := app.Config()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Explain.Origin != "" {
		t.Errorf("Origin = %q, want disabled", cfg.Explain.Origin)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Level = %q", cfg.Log.Level)
	}

	bad := newTestApp(t, Globals{LogLevel: "loud"})
	if _, err := bad.Config(); err == nil {
		t.Error("expected validation error")
	}
}

func newExplainUpstream(t *testing.T, h http.HandlerFunc) string {
	t.Helper()
	up := httptest.NewServer(h)
	t.Cleanup(up.Close)
	return up.URL
}

func TestExplainCmd(t *testing.T) {
	var body struct {
		Options struct {
			Style string `json:"style"`
		} `json:"options"`
	}
	origin := newExplainUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		io.WriteString(w, "The Throne ")
		w.(http.Flusher).Flush()
		io.WriteString(w, "Verse.")
	})
	app := newTestApp(t, Globals{APIOrigin: origin})

	got := app.run(t, &ExplainCmd{Ref: "2:255", Style: "tldr"})
	if got != "The Throne Verse.\n" {
		t.Errorf("got %q", got)
	}
	if body.Options.Style != "tldr" {
		t.Errorf("request style = %q", body.Options.Style)
	}
}

func TestExplainCmdServiceError(t *testing.T) {
	origin := newExplainUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, "Slow down.")
	})
	app := newTestApp(t, Globals{APIOrigin: origin})

	err := (&ExplainCmd{Ref: "1:1"}).Run(app.App)
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Errorf("err = %v, want a 429 error", err)
	}
}

func TestExplainCmdWithoutService(t *testing.T) {
	app := newTestApp(t, Globals{})
	if err := (&ExplainCmd{Ref: "1:1"}).Run(app.App); err == nil {
		t.Error("expected error without an explanation service")
	}
}

func newTestShell(t *testing.T) (*shell, *testApp) {
	t.Helper()
	app := newTestApp(t, Globals{})
	sess, err := app.Session()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(sess.Close)
	return newShell(app.App, sess), app
}

func TestShellExec(t *testing.T) {
	sh, app := newTestShell(t)
	ctx := context.Background()

	tests := []struct {
		line string
		want string
	}{
		{"help", "keyword, k"},
		{"themes", "Day of Judgement"},
		{"t oneness of god", "Theme: Oneness of God"},
		{"theme judgement", "Theme: Day of Judgement"},
		{"k believe", "2:8"},
		{"p merci", "2:143"},
		{"v 112:2", "Eternal Refuge"},
		{"c 1", "Lord of the worlds"},
		{"f 1:2", "Praise belongs to Allah."},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			app.out.Reset()
			app.err.Reset()
			if sh.exec(ctx, tt.line) {
				t.Fatal("exec reported quit")
			}
			if app.err.Len() > 0 {
				t.Fatalf("stderr: %s", app.err.String())
			}
			assertContains(t, app.out.String(), tt.want)
		})
	}

	app.err.Reset()
	sh.exec(ctx, "frobnicate")
	assertContains(t, app.err.String(), "unknown command")

	app.err.Reset()
	sh.exec(ctx, "c 200")
	assertContains(t, app.err.String(), "error:")

	for _, q := range []string{"quit", "q", "exit"} {
		if !sh.exec(ctx, q) {
			t.Errorf("%s did not quit", q)
		}
	}
}

func suggestions(sh *shell, text string) []string {
	b := prompt.NewBuffer()
	b.InsertText(text, false, true)
	var out []string
	for _, s := range sh.complete(*b.Document()) {
		out = append(out, s.Text)
	}
	return out
}

func TestShellComplete(t *testing.T) {
	sh, _ := newTestShell(t)

	tests := []struct {
		text string
		want []string
	}{
		{"", nil},
		{"th", []string{"theme", "themes"}},
		{"theme merc", []string{"Merciful Names", "Mercy"}},
		{"t Merciful N", []string{"Names"}},
		{"verse 1", nil},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := suggestions(sh, tt.text)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("suggestions(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}
