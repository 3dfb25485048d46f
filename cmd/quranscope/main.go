// Command quranscope searches, reads and explains the Quran from a local or
// remote data root.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/QuranScope/core/corpus"
	"github.com/FocuswithJustin/QuranScope/core/reader"
	"github.com/FocuswithJustin/QuranScope/internal/config"
	"github.com/FocuswithJustin/QuranScope/internal/logging"
)

const version = "0.3.0"

// Globals are the flags shared by every command. Set flags override the
// config file and the environment.
type Globals struct {
	Config    string `help:"Config file (default: quranscope.yaml in this or a parent directory)" type:"path"`
	Data      string `help:"Data location: a directory, base URL or database file"`
	Source    string `help:"Data source kind" enum:"dir,http,sqlite," default:""`
	APIOrigin string `name:"api-origin" help:"Explanation service origin (\"none\" disables explanations)"`
	LogLevel  string `name:"log-level" help:"Log level (debug, info, warn, error)"`
	LogFormat string `name:"log-format" help:"Log format (text, json)"`
}

// CLI defines the command-line interface for quranscope.
var CLI struct {
	Globals

	// Command groups (noun-first organization)
	Search  SearchGroup `cmd:"" help:"Theme and keyword search"`
	Themes  ThemesGroup `cmd:"" help:"Theme index operations"`
	Chapter ChapterCmd  `cmd:"" help:"Print a chapter"`
	Verse   VerseCmd    `cmd:"" help:"Print a verse with its themes"`
	Tafsir  TafsirCmd   `cmd:"" help:"Print the commentary of a verse"`
	Explain ExplainCmd  `cmd:"" help:"Stream an explanation of a verse"`
	Data    DataGroup   `cmd:"" help:"Data root maintenance"`
	Serve   ServeCmd    `cmd:"" help:"Start the HTTP and WebSocket server"`
	Shell   ShellCmd    `cmd:"" help:"Interactive reader"`
	Version VersionCmd  `cmd:"" help:"Print version information"`
}

// SearchGroup contains the search commands.
type SearchGroup struct {
	Themes   SearchThemesCmd   `cmd:"" help:"Search by theme name"`
	Keywords SearchKeywordsCmd `cmd:"" help:"Search verse text for a keyword"`
}

// ThemesGroup contains theme index commands.
type ThemesGroup struct {
	List ThemesListCmd `cmd:"" help:"List every theme"`
}

// DataGroup contains data root commands.
type DataGroup struct {
	Import      DataImportCmd      `cmd:"" help:"Copy the configured data root into a SQLite database"`
	Fingerprint DataFingerprintCmd `cmd:"" help:"Print BLAKE3 digests of the data root"`
}

// App is the state handed to every command.
type App struct {
	Globals *Globals
	Out     io.Writer
	Err     io.Writer

	ctx    context.Context
	loader *config.Loader
	cfg    *config.Config
	src    corpus.Source
	close  func() error
}

func newApp(ctx context.Context, g *Globals, out, errOut io.Writer) *App {
	return &App{Globals: g, Out: out, Err: errOut, ctx: ctx}
}

// Context is cancelled on interrupt.
func (a *App) Context() context.Context {
	return a.ctx
}

// Config loads the layered configuration once, applies the global flags and
// initialises logging.
func (a *App) Config() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	if a.loader == nil {
		a.loader = config.NewLoader(logging.GetLogger())
	}
	cfg, err := a.loader.Load(a.Globals.Config)
	if err != nil {
		return nil, err
	}

	g := a.Globals
	if g.Data != "" {
		cfg.Data.Location = g.Data
	}
	if g.Source != "" {
		cfg.Data.Source = g.Source
	}
	if g.APIOrigin != "" {
		cfg.Explain.Origin = g.APIOrigin
		if g.APIOrigin == "none" {
			cfg.Explain.Origin = ""
		}
	}
	if g.LogLevel != "" {
		cfg.Log.Level = g.LogLevel
	}
	if g.LogFormat != "" {
		cfg.Log.Format = g.LogFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level, _ := logging.ParseLevel(cfg.Log.Level)
	format, _ := logging.ParseFormat(cfg.Log.Format)
	logging.InitLoggerTo(a.Err, level, format)

	a.cfg = cfg
	return cfg, nil
}

// Source opens the configured data source once.
func (a *App) Source() (corpus.Source, error) {
	if a.src != nil {
		return a.src, nil
	}
	cfg, err := a.Config()
	if err != nil {
		return nil, err
	}
	src, closeFn, err := config.OpenSource(cfg)
	if err != nil {
		return nil, err
	}
	a.src, a.close = src, closeFn
	return src, nil
}

// Session opens a reader session over the configured source.
func (a *App) Session() (*reader.Session, error) {
	cfg, err := a.Config()
	if err != nil {
		return nil, err
	}
	src, err := a.Source()
	if err != nil {
		return nil, err
	}
	client, err := cfg.ExplainClient()
	if err != nil {
		return nil, err
	}
	return reader.NewSession(a.ctx, cfg.Reader(), src, client), nil
}

// Close releases the data source.
func (a *App) Close() error {
	if a.close != nil {
		return a.close()
	}
	return nil
}

type VersionCmd struct{}

func (c *VersionCmd) Run(app *App) error {
	fmt.Fprintf(app.Out, "quranscope version %s\n", version)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kctx := kong.Parse(&CLI,
		kong.Name("quranscope"),
		kong.Description("QuranScope - theme and keyword search with streamed explanations"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	app := newApp(ctx, &CLI.Globals, os.Stdout, os.Stderr)
	err := kctx.Run(app)
	if cerr := app.Close(); err == nil {
		err = cerr
	}
	kctx.FatalIfErrorf(err)
}
