package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gosuri/uiprogress"

	"github.com/FocuswithJustin/QuranScope/core/keyword"
	"github.com/FocuswithJustin/QuranScope/core/search"
)

// ViewFlags select the page of results to print.
type ViewFlags struct {
	Chapter int    `help:"Only show results from this chapter"`
	Order   string `help:"Sort order" enum:"asc,desc" default:"asc"`
	Page    int    `help:"Page number" default:"1"`
	PerPage int    `name:"per-page" help:"Results per page (default from config)"`
}

func (f ViewFlags) view(defaultPerPage int) search.View {
	v := search.View{Chapter: f.Chapter, Order: search.ParseOrder(f.Order), Page: f.Page, PerPage: f.PerPage}
	if v.PerPage <= 0 {
		v.PerPage = defaultPerPage
	}
	return v
}

// SearchThemesCmd searches by theme name.
type SearchThemesCmd struct {
	Query string `arg:"" help:"Theme name (case-insensitive)"`
	ViewFlags
}

func (c *SearchThemesCmd) Run(app *App) error {
	sess, err := app.Session()
	if err != nil {
		return err
	}
	defer sess.Close()

	out, err := sess.ThemeSearch(app.Context(), c.Query)
	if err != nil {
		return err
	}
	if out.Theme == "" {
		fmt.Fprintf(app.Out, "No theme named %q.\n", out.Query)
		if len(out.Suggestions) > 0 {
			fmt.Fprintf(app.Out, "Did you mean: %s?\n", strings.Join(out.Suggestions, ", "))
		}
		return nil
	}
	fmt.Fprintf(app.Out, "Theme: %s\n", out.Theme)
	printPage(app.Out, search.Apply(out.Results, c.view(sess.Config().PerPage)), out.Results)
	return nil
}

// SearchKeywordsCmd scans every chapter for a keyword.
type SearchKeywordsCmd struct {
	Query      string `arg:"" help:"Keyword or phrase"`
	Match      string `help:"Match whole words or any substring" enum:"word,partial" default:"word"`
	NoProgress bool   `name:"no-progress" help:"Do not draw a progress bar"`
	ViewFlags
}

func (c *SearchKeywordsCmd) Run(app *App) error {
	mode, err := keyword.ParseMode(c.Match)
	if err != nil {
		return err
	}
	sess, err := app.Session()
	if err != nil {
		return err
	}
	defer sess.Close()

	var opts []keyword.RunOption
	var prog *uiprogress.Progress
	if !c.NoProgress && isTerminal(app.Out) {
		prog = uiprogress.New()
		prog.Start()
		var bar *uiprogress.Bar
		opts = append(opts, keyword.OnBatch(func(_ []search.Result, p keyword.Progress) {
			if bar == nil {
				bar = prog.AddBar(p.Total)
				bar.AppendCompleted()
				bar.PrependElapsed()
			}
			bar.Incr()
		}))
	}

	run, err := sess.KeywordSearch(app.Context(), c.Query, mode, opts...)
	if err != nil {
		if prog != nil {
			prog.Stop()
		}
		return err
	}
	waitErr := run.Wait(app.Context())
	if prog != nil {
		prog.Stop()
	}
	if waitErr != nil || run.Cancelled() {
		// Interrupted: nothing to report.
		return nil
	}

	results := run.Results()
	p := run.Progress()
	fmt.Fprintf(app.Out, "%d matches for %q (%s) in %d chapters", len(results), run.Query, run.Mode, p.Completed)
	if p.Failed > 0 {
		fmt.Fprintf(app.Out, ", %d unavailable", p.Failed)
	}
	fmt.Fprintln(app.Out)
	printPage(app.Out, search.Apply(results, c.view(sess.Config().PerPage)), results)
	return nil
}

// printPage prints one page of results and the chapters present in all.
func printPage(w io.Writer, page search.Page, all []search.Result) {
	if page.Total == 0 {
		fmt.Fprintln(w, "No results.")
		return
	}
	for _, r := range page.Items {
		fmt.Fprintf(w, "\n%s", r.Ref)
		if len(r.Themes) > 0 {
			fmt.Fprintf(w, "  [%s]", strings.Join(r.Themes, ", "))
		}
		fmt.Fprintf(w, "\n  %s\n", r.Original)
		if r.Translated != "" {
			fmt.Fprintf(w, "  %s\n", r.Translated)
		}
	}
	fmt.Fprintf(w, "\nPage %d of %d (%d results)", page.Page, page.Pages, page.Total)
	if cs := search.AvailableChapters(all); len(cs) > 1 {
		parts := make([]string, len(cs))
		for i, c := range cs {
			parts[i] = fmt.Sprint(c)
		}
		fmt.Fprintf(w, "; chapters %s", strings.Join(parts, ", "))
	}
	fmt.Fprintln(w)
}

// isTerminal reports whether w is a character device.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}
