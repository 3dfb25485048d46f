// Package search holds the result type shared by theme and keyword search and
// the presentation adapter that filters, orders and pages a result list.
package search

import (
	"sort"
	"strings"

	"github.com/FocuswithJustin/QuranScope/core/corpus"
)

// DefaultPerPage is the page size used when a View leaves PerPage unset.
const DefaultPerPage = 25

// Result is one verse returned by a search, tagged with the themes that
// justify or annotate it.
type Result struct {
	Ref        string   `json:"ref"`
	Original   string   `json:"arabic"`
	Translated string   `json:"english"`
	Themes     []string `json:"themes"`
}

// FromVerse builds a Result from a loaded verse.
func FromVerse(v corpus.Verse, themes []string) Result {
	if themes == nil {
		themes = []string{}
	}
	return Result{Ref: v.Ref, Original: v.Original, Translated: v.Translated, Themes: themes}
}

// Chapter returns the chapter number encoded in the result's ref.
func (r Result) Chapter() int {
	c, _ := corpus.SplitRef(r.Ref)
	return c
}

func (r Result) key() (int, int) {
	return corpus.SplitRef(r.Ref)
}

// Order is the sort direction of a View.
type Order int

const (
	// Asc sorts by (chapter, verse) ascending.
	Asc Order = iota
	// Desc sorts by (chapter, verse) descending.
	Desc
)

// ParseOrder maps "asc"/"desc" (case-insensitive) to an Order. Anything else
// is Asc.
func ParseOrder(s string) Order {
	if strings.EqualFold(strings.TrimSpace(s), "desc") {
		return Desc
	}
	return Asc
}

func (o Order) String() string {
	if o == Desc {
		return "desc"
	}
	return "asc"
}

// View selects the slice of a result list to present. Chapter 0 means all
// chapters; Page is 1-based.
type View struct {
	Chapter int
	Order   Order
	Page    int
	PerPage int
}

// Page is one page of presented results. Pages is always at least 1.
type Page struct {
	Items []Result `json:"items"`
	Page  int      `json:"page"`
	Pages int      `json:"pages"`
	Total int      `json:"total"`
}

// Apply filters results by chapter, sorts them by (chapter, verse) in the
// requested order and returns the requested page, clamped to [1, pages].
// The input slice is not modified.
func Apply(results []Result, v View) Page {
	perPage := v.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}

	filtered := make([]Result, 0, len(results))
	for _, r := range results {
		if v.Chapter == 0 || r.Chapter() == v.Chapter {
			filtered = append(filtered, r)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		ci, vi := filtered[i].key()
		cj, vj := filtered[j].key()
		if v.Order == Desc {
			ci, vi, cj, vj = cj, vj, ci, vi
		}
		if ci != cj {
			return ci < cj
		}
		return vi < vj
	})

	total := len(filtered)
	pages := (total + perPage - 1) / perPage
	if pages < 1 {
		pages = 1
	}
	page := v.Page
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}

	start := (page - 1) * perPage
	end := start + perPage
	if end > total {
		end = total
	}
	return Page{Items: filtered[start:end], Page: page, Pages: pages, Total: total}
}

// AvailableChapters returns the distinct chapters present in results,
// ascending.
func AvailableChapters(results []Result) []int {
	seen := make(map[int]bool)
	var chapters []int
	for _, r := range results {
		c := r.Chapter()
		if c > 0 && !seen[c] {
			seen[c] = true
			chapters = append(chapters, c)
		}
	}
	sort.Ints(chapters)
	return chapters
}
