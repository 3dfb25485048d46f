package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	prompt "github.com/c-bata/go-prompt"

	"github.com/FocuswithJustin/QuranScope/core/corpus"
	qerrors "github.com/FocuswithJustin/QuranScope/core/errors"
	"github.com/FocuswithJustin/QuranScope/core/explain"
	"github.com/FocuswithJustin/QuranScope/core/keyword"
	"github.com/FocuswithJustin/QuranScope/core/reader"
	"github.com/FocuswithJustin/QuranScope/core/search"
	"github.com/FocuswithJustin/QuranScope/core/tafsir"
)

// ShellCmd runs an interactive reader with theme completion. Ctrl-C stops
// the running search or explanation and returns to the prompt.
type ShellCmd struct{}

func (c *ShellCmd) Run(app *App) error {
	// An interrupt ends only the running command, so the session outlives
	// the process-wide signal context.
	app.ctx = context.WithoutCancel(app.ctx)
	sess, err := app.Session()
	if err != nil {
		return err
	}
	defer sess.Close()

	sh := newShell(app, sess)
	fmt.Fprintln(app.Out, "QuranScope shell. Type help for commands, quit to leave.")
	var history []string
	for {
		in := prompt.Input("quranscope> ", sh.complete,
			prompt.OptionTitle("quranscope"),
			prompt.OptionPrefixTextColor(prompt.Yellow),
			prompt.OptionPreviewSuggestionTextColor(prompt.Blue),
			prompt.OptionSelectedSuggestionBGColor(prompt.LightGray),
			prompt.OptionSuggestionBGColor(prompt.DarkGray),
			prompt.OptionMaxSuggestion(12),
			prompt.OptionHistory(history),
		)
		line := strings.TrimSpace(in)
		if line == "" {
			continue
		}
		history = append(history, line)

		ctx, stop := signal.NotifyContext(app.Context(), os.Interrupt)
		quit := sh.exec(ctx, line)
		stop()
		if quit {
			return nil
		}
	}
}

type shellCommand struct {
	name, alias, args, help string
}

var shellCommands = []shellCommand{
	{"theme", "t", "<name>", "verses of a theme"},
	{"keyword", "k", "<text>", "whole-word keyword search"},
	{"partial", "p", "<text>", "substring keyword search"},
	{"verse", "v", "<ref>", "a verse and its themes"},
	{"chapter", "c", "<n>", "a whole chapter"},
	{"tafsir", "f", "<ref>", "commentary of a verse"},
	{"explain", "x", "<ref> [style]", "stream an explanation"},
	{"themes", "", "", "list every theme"},
	{"help", "h", "", "this list"},
	{"quit", "q", "", "leave the shell"},
}

type shell struct {
	app    *App
	sess   *reader.Session
	themes []string
}

func newShell(app *App, sess *reader.Session) *shell {
	return &shell{app: app, sess: sess, themes: sess.Index().SortedNames()}
}

// complete suggests commands for the first word and theme names after
// "theme". Theme names may contain spaces, so a suggestion replaces only the
// part of the name after the last typed space.
func (sh *shell) complete(d prompt.Document) []prompt.Suggest {
	before := d.TextBeforeCursor()
	if before == "" {
		return nil
	}
	cmd, rest, found := strings.Cut(before, " ")
	if !found {
		var s []prompt.Suggest
		for _, c := range shellCommands {
			s = append(s, prompt.Suggest{Text: c.name, Description: c.help})
		}
		return prompt.FilterHasPrefix(s, cmd, true)
	}
	if cmd != "theme" && cmd != "t" {
		return nil
	}

	word := d.GetWordBeforeCursor()
	lower := strings.ToLower(rest)
	var s []prompt.Suggest
	for _, name := range sh.themes {
		if !strings.HasPrefix(strings.ToLower(name), lower) {
			continue
		}
		text := name[len(rest)-len(word):]
		s = append(s, prompt.Suggest{Text: text, Description: fmt.Sprintf("%d verses", len(sh.sess.Index().Refs(name)))})
	}
	return s
}

// exec runs one command line and reports whether the shell should exit.
func (sh *shell) exec(ctx context.Context, line string) bool {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)
	out := sh.app.Out

	var err error
	switch strings.ToLower(cmd) {
	case "quit", "q", "exit":
		return true
	case "help", "h", "?":
		for _, c := range shellCommands {
			name := c.name
			if c.alias != "" {
				name += ", " + c.alias
			}
			fmt.Fprintf(out, "  %-12s %-14s %s\n", name, c.args, c.help)
		}
	case "themes":
		for _, name := range sh.themes {
			fmt.Fprintln(out, name)
		}
	case "theme", "t":
		err = sh.theme(ctx, arg)
	case "keyword", "k":
		err = sh.keyword(ctx, arg, keyword.Word)
	case "partial", "p":
		err = sh.keyword(ctx, arg, keyword.Partial)
	case "verse", "v":
		err = sh.verse(ctx, arg)
	case "chapter", "c":
		err = sh.chapter(ctx, arg)
	case "tafsir", "f":
		err = sh.tafsir(ctx, arg)
	case "explain", "x":
		err = sh.explain(ctx, arg)
	default:
		fmt.Fprintf(sh.app.Err, "unknown command %q; type help\n", cmd)
	}
	if err != nil {
		fmt.Fprintf(sh.app.Err, "error: %v\n", err)
	}
	return false
}

func (sh *shell) theme(ctx context.Context, name string) error {
	out, err := sh.sess.Theme(ctx, name)
	if err != nil {
		return err
	}
	if out.Theme == "" {
		if out.Query == "" {
			return nil
		}
		fmt.Fprintf(sh.app.Out, "No theme named %q.", out.Query)
		if len(out.Suggestions) > 0 {
			fmt.Fprintf(sh.app.Out, " Did you mean: %s?", strings.Join(out.Suggestions, ", "))
		}
		fmt.Fprintln(sh.app.Out)
		return nil
	}
	fmt.Fprintf(sh.app.Out, "Theme: %s\n", out.Theme)
	printPage(sh.app.Out, search.Apply(out.Results, search.View{Page: 1, PerPage: sh.sess.Config().PerPage}), out.Results)
	return nil
}

func (sh *shell) keyword(ctx context.Context, query string, mode keyword.Mode) error {
	run, err := sh.sess.KeywordSearch(ctx, query, mode)
	if err != nil {
		return err
	}
	if err := run.Wait(ctx); err != nil || run.Cancelled() {
		run.Cancel()
		fmt.Fprintln(sh.app.Out, "Search stopped.")
		return nil
	}
	results := run.Results()
	printPage(sh.app.Out, search.Apply(results, search.View{Page: 1, PerPage: sh.sess.Config().PerPage}), results)
	return nil
}

func (sh *shell) verse(ctx context.Context, raw string) error {
	ref, err := corpus.ParseRef(raw)
	if err != nil {
		return err
	}
	view, err := sh.sess.Verse(ctx, ref)
	if err != nil {
		return err
	}
	fmt.Fprintf(sh.app.Out, "%s  %s\n  %s\n", view.Verse.Ref, view.Chapter.Label(), view.Verse.Original)
	if view.Verse.Translated != "" {
		fmt.Fprintf(sh.app.Out, "  %s\n", view.Verse.Translated)
	}
	if len(view.Themes) > 0 {
		fmt.Fprintf(sh.app.Out, "Themes: %s\n", strings.Join(view.Themes, ", "))
	}
	return nil
}

func (sh *shell) chapter(ctx context.Context, raw string) error {
	n, err := strconv.Atoi(raw)
	if err != nil || !corpus.ValidChapter(n) {
		return qerrors.NewValidation("chapter", fmt.Sprintf("must be between 1 and %d", corpus.ChapterCount))
	}
	view, err := sh.sess.Chapter(ctx, n)
	if err != nil {
		return err
	}
	fmt.Fprintf(sh.app.Out, "%d. %s\n", view.Meta.ID, view.Meta.Label())
	for _, v := range view.Verses {
		fmt.Fprintf(sh.app.Out, "%d  %s\n", v.Verse, v.Translated)
	}
	return nil
}

func (sh *shell) tafsir(ctx context.Context, raw string) error {
	ref, err := corpus.ParseRef(raw)
	if err != nil {
		return err
	}
	entry, err := sh.sess.Tafsir(ctx, ref)
	if qerrors.IsNotFound(err) {
		fmt.Fprintln(sh.app.Out, tafsir.Message(err))
		return nil
	}
	if err != nil {
		return err
	}
	text, err := entry.Markdown()
	if err != nil {
		return err
	}
	fmt.Fprintln(sh.app.Out, text)
	return nil
}

func (sh *shell) explain(ctx context.Context, arg string) error {
	raw, style, _ := strings.Cut(arg, " ")
	ref, err := corpus.ParseRef(raw)
	if err != nil {
		return err
	}
	opts := explain.Options{Style: explain.Style(strings.TrimSpace(style))}
	return streamExplanation(ctx, sh.app.Out, sh.sess, ref, opts, false)
}
