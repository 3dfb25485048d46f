package main

import (
	"fmt"
	"strings"

	"github.com/FocuswithJustin/QuranScope/core/corpus"
	qerrors "github.com/FocuswithJustin/QuranScope/core/errors"
	"github.com/FocuswithJustin/QuranScope/core/tafsir"
)

// ThemesListCmd lists the theme index.
type ThemesListCmd struct {
	Counts bool `help:"Show the number of verses per theme"`
}

func (c *ThemesListCmd) Run(app *App) error {
	sess, err := app.Session()
	if err != nil {
		return err
	}
	defer sess.Close()

	idx := sess.Index()
	for _, name := range idx.SortedNames() {
		if c.Counts {
			fmt.Fprintf(app.Out, "%s (%d)\n", name, len(idx.Refs(name)))
			continue
		}
		fmt.Fprintln(app.Out, name)
	}
	if idx.Len() == 0 {
		fmt.Fprintln(app.Err, "Theme index unavailable.")
	}
	return nil
}

// ChapterCmd prints a chapter.
type ChapterCmd struct {
	Number int `arg:"" help:"Chapter number (1-114)"`
}

func (c *ChapterCmd) Run(app *App) error {
	if !corpus.ValidChapter(c.Number) {
		return qerrors.NewValidation("chapter", fmt.Sprintf("must be between 1 and %d", corpus.ChapterCount))
	}
	sess, err := app.Session()
	if err != nil {
		return err
	}
	defer sess.Close()

	view, err := sess.Chapter(app.Context(), c.Number)
	if err != nil {
		return err
	}
	fmt.Fprintf(app.Out, "%d. %s", view.Meta.ID, view.Meta.Label())
	if view.Meta.Name != "" && view.Meta.Name != view.Meta.Label() {
		fmt.Fprintf(app.Out, " (%s)", view.Meta.Name)
	}
	fmt.Fprintln(app.Out)
	for _, v := range view.Verses {
		fmt.Fprintf(app.Out, "\n%d  %s\n", v.Verse, v.Original)
		if v.Translated != "" {
			fmt.Fprintf(app.Out, "   %s\n", v.Translated)
		}
	}
	return nil
}

// VerseCmd prints a verse with its themes.
type VerseCmd struct {
	Ref string `arg:"" help:"Verse reference, e.g. 2:255"`
}

func (c *VerseCmd) Run(app *App) error {
	ref, err := corpus.ParseRef(c.Ref)
	if err != nil {
		return err
	}
	sess, err := app.Session()
	if err != nil {
		return err
	}
	defer sess.Close()

	view, err := sess.Verse(app.Context(), ref)
	if err != nil {
		return err
	}
	fmt.Fprintf(app.Out, "%s  %s\n", view.Verse.Ref, view.Chapter.Label())
	fmt.Fprintf(app.Out, "  %s\n", view.Verse.Original)
	if view.Verse.Translated != "" {
		fmt.Fprintf(app.Out, "  %s\n", view.Verse.Translated)
	}
	if len(view.Themes) > 0 {
		fmt.Fprintf(app.Out, "Themes: %s\n", strings.Join(view.Themes, ", "))
	}
	return nil
}

// TafsirCmd prints the commentary of a verse, as Markdown unless --html.
type TafsirCmd struct {
	Ref  string `arg:"" help:"Verse reference, e.g. 1:1"`
	HTML bool   `name:"html" help:"Print the raw HTML"`
}

func (c *TafsirCmd) Run(app *App) error {
	ref, err := corpus.ParseRef(c.Ref)
	if err != nil {
		return err
	}
	sess, err := app.Session()
	if err != nil {
		return err
	}
	defer sess.Close()

	entry, err := sess.Tafsir(app.Context(), ref)
	if qerrors.IsNotFound(err) {
		fmt.Fprintln(app.Out, tafsir.Message(err))
		return nil
	}
	if err != nil {
		return err
	}
	if c.HTML {
		fmt.Fprintln(app.Out, entry.HTML)
		return nil
	}
	text, err := entry.Markdown()
	if err != nil {
		return err
	}
	fmt.Fprintln(app.Out, text)
	return nil
}
