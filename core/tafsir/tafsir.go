// Package tafsir resolves commentary for a verse from the data root.
//
// A chapter's commentary is looked up in a consolidated file under one of
// four names; when none is usable a legacy per-verse file of the configured
// edition is tried. Resolved entries are cached for the session.
package tafsir

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"

	"github.com/FocuswithJustin/QuranScope/core/cache"
	"github.com/FocuswithJustin/QuranScope/core/corpus"
	qerrors "github.com/FocuswithJustin/QuranScope/core/errors"
)

// User-facing messages for the two not-found cases.
const (
	MsgChapterUnavailable = "Couldn’t load tafsir for this surah."
	MsgVerseUnavailable   = "No tafsir available for this ayah."
)

// Entry is the commentary of one verse as HTML.
type Entry struct {
	Ref    string `json:"ref"`
	HTML   string `json:"html"`
	Source string `json:"source"`
}

var converter = func() *md.Converter {
	c := md.NewConverter("", true, nil)
	c.Use(plugin.GitHubFlavored())
	return c
}()

// Markdown renders the entry for terminal output.
func (e Entry) Markdown() (string, error) {
	out, err := converter.ConvertString(e.HTML)
	if err != nil {
		return "", qerrors.NewParse("HTML", e.Source, err)
	}
	return strings.TrimSpace(out), nil
}

// ayahNumber accepts a JSON number or numeric string. Null or anything
// non-numeric decodes to 0, which matches no verse, so one bad row leaves the
// rest of the file usable.
type ayahNumber int

func (n *ayahNumber) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(bytes.Trim(b, `"`)))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v != float64(int(v)) {
		*n = 0
		return nil
	}
	*n = ayahNumber(v)
	return nil
}

type consolidated struct {
	Ayahs *[]struct {
		Ayah ayahNumber `json:"ayah"`
		HTML *string    `json:"html"`
		Text *string    `json:"text"`
	} `json:"ayahs"`
}

type payload struct {
	HTML *string `json:"html"`
	Text *string `json:"text"`
}

// toHTML returns the trimmed HTML of a payload, converting plain text line
// breaks when no HTML is present.
func toHTML(html, text *string) string {
	if html != nil {
		return strings.TrimSpace(*html)
	}
	if text != nil {
		return strings.ReplaceAll(strings.TrimSpace(*text), "\n", "<br/>")
	}
	return ""
}

// CandidatePaths lists the consolidated files tried for chapter n, in order.
func CandidatePaths(n int) []string {
	s, p := strconv.Itoa(n), corpus.Pad3(n)
	return []string{
		"tafsir/" + s + ".json",
		"tafsir/" + p + ".json",
		"tafsir/" + s + "/index.json",
		"tafsir/" + p + "/index.json",
	}
}

// LegacyPath is the per-verse file of an edition.
func LegacyPath(edition string, ref corpus.Ref) string {
	return fmt.Sprintf("tafsir/%s/%d/%d.json", edition, ref.Chapter, ref.Verse)
}

// Resolver finds commentary through a Source.
type Resolver struct {
	src     corpus.Source
	edition string
	entries *cache.Memo[corpus.Ref, Entry]
}

// NewResolver creates a Resolver. An empty edition selects
// corpus.DefaultTafsirName for the legacy layout.
func NewResolver(src corpus.Source, edition string) *Resolver {
	if edition == "" {
		edition = corpus.DefaultTafsirName
	}
	return &Resolver{src: src, edition: edition, entries: cache.NewMemo[corpus.Ref, Entry]()}
}

// Resolve returns the commentary of ref. When no consolidated file of the
// chapter is usable and the legacy file is blank or missing, the error is a
// NotFoundError for resource "tafsir"; when the chapter file lacks the verse
// (or its text is blank) it is one for "tafsir verse".
func (r *Resolver) Resolve(ctx context.Context, ref corpus.Ref) (Entry, error) {
	if !ref.Valid() || ref.IsChapter() {
		return Entry{}, qerrors.NewValidation("ref", fmt.Sprintf("invalid verse reference %q", ref))
	}
	return r.entries.GetOrLoad(ctx, ref, func(ctx context.Context) (Entry, error) {
		return r.resolve(ctx, ref)
	})
}

func (r *Resolver) resolve(ctx context.Context, ref corpus.Ref) (Entry, error) {
	for _, p := range CandidatePaths(ref.Chapter) {
		data, err := r.src.Open(ctx, p)
		if err != nil {
			if qerrors.IsCancelled(err) || ctx.Err() != nil {
				return Entry{}, err
			}
			continue
		}
		var doc consolidated
		if json.Unmarshal(data, &doc) != nil || doc.Ayahs == nil {
			continue
		}
		for _, a := range *doc.Ayahs {
			if int(a.Ayah) != ref.Verse {
				continue
			}
			if html := toHTML(a.HTML, a.Text); html != "" {
				return Entry{Ref: ref.String(), HTML: html, Source: p}, nil
			}
			break
		}
		return Entry{}, &qerrors.NotFoundError{Resource: "tafsir verse", ID: ref.String()}
	}

	legacy := LegacyPath(r.edition, ref)
	data, err := r.src.Open(ctx, legacy)
	if err == nil {
		var doc payload
		if json.Unmarshal(data, &doc) == nil {
			if html := toHTML(doc.HTML, doc.Text); html != "" {
				return Entry{Ref: ref.String(), HTML: html, Source: legacy}, nil
			}
		}
	} else if ctx.Err() != nil {
		return Entry{}, ctx.Err()
	}
	return Entry{}, &qerrors.NotFoundError{Resource: "tafsir", ID: strconv.Itoa(ref.Chapter)}
}

// Message returns the user-facing message for a Resolve error.
func Message(err error) string {
	var nf *qerrors.NotFoundError
	if qerrors.As(err, &nf) && nf.Resource == "tafsir verse" {
		return MsgVerseUnavailable
	}
	if qerrors.IsNotFound(err) {
		return MsgChapterUnavailable
	}
	return "Could not load tafsir. Check your file path."
}
