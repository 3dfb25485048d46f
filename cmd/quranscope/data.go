package main

import (
	"encoding/json"
	"fmt"

	"github.com/gosuri/uiprogress"

	"github.com/FocuswithJustin/QuranScope/core/corpus"
	"github.com/FocuswithJustin/QuranScope/core/sqlite"
	"github.com/FocuswithJustin/QuranScope/core/tafsir"
)

// DataImportCmd copies the standard resources of the configured source into
// a SQLite database that `--source sqlite` can then serve.
type DataImportCmd struct {
	DB     string `arg:"" help:"Destination database file" type:"path"`
	Tafsir bool   `help:"Also import consolidated tafsir files"`
}

func (c *DataImportCmd) Run(app *App) error {
	src, err := app.Source()
	if err != nil {
		return err
	}
	store, err := sqlite.OpenStore(c.DB)
	if err != nil {
		return err
	}
	defer store.Close()

	batches := importBatches(c.Tafsir)
	var bar *uiprogress.Bar
	if isTerminal(app.Out) {
		uiprogress.Start()
		bar = uiprogress.AddBar(len(batches))
		bar.AppendCompleted()
		bar.PrependElapsed()
	}

	var total sqlite.ImportReport
	for _, paths := range batches {
		report, err := store.Import(app.Context(), src, paths)
		if err != nil {
			if bar != nil {
				uiprogress.Stop()
			}
			return err
		}
		total.Imported += report.Imported
		total.Bytes += report.Bytes
		total.Missing = append(total.Missing, report.Missing...)
		if bar != nil {
			bar.Incr()
		}
	}
	if bar != nil {
		uiprogress.Stop()
	}

	fmt.Fprintf(app.Out, "Imported %d resources (%d bytes) into %s using %s\n",
		total.Imported, total.Bytes, c.DB, sqlite.DriverName())
	if n := len(total.Missing); n > 0 {
		fmt.Fprintf(app.Out, "%d resources were not present in the source\n", n)
	}
	return nil
}

// importBatches groups the resources to import: the two indexes, then one
// batch per chapter.
func importBatches(withTafsir bool) [][]string {
	batches := [][]string{{corpus.ChapterIndexPath, corpus.ThemeIndexPath}}
	for _, n := range corpus.AllChapterIDs() {
		b := []string{corpus.ChapterPath(n), corpus.ChapterThemesPath(n)}
		if withTafsir {
			b = append(b, tafsir.CandidatePaths(n)...)
		}
		batches = append(batches, b)
	}
	return batches
}

// DataFingerprintCmd prints a BLAKE3 manifest of the data root.
type DataFingerprintCmd struct {
	JSON bool `name:"json" help:"Print the full manifest as JSON"`
}

func (c *DataFingerprintCmd) Run(app *App) error {
	src, err := app.Source()
	if err != nil {
		return err
	}
	m, err := corpus.Fingerprint(app.Context(), src, corpus.StandardPaths(corpus.AllChapterIDs()))
	if err != nil {
		return err
	}
	if c.JSON {
		enc := json.NewEncoder(app.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	}
	fmt.Fprintf(app.Out, "%s  %d resources, %d missing\n", m.Combined, len(m.Resources), len(m.Missing))
	return nil
}
