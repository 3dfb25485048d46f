package themes

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/xrash/smetrics"
)

// Default suggestion parameters.
const (
	DefaultSuggestionLimit = 5
	DefaultThreshold       = 0.35
	// MinSuggestionQuery is the shortest trimmed query that gets suggestions.
	MinSuggestionQuery = 2
)

// Score returns the approximate-substring distance of query within name,
// normalised by query length: 0 is a perfect substring match. Both inputs
// are compared lower-cased and the match position does not matter.
func Score(query, name string, threshold float64) float64 {
	q := []rune(strings.ToLower(query))
	n := []rune(strings.ToLower(name))
	m := len(q)
	if m == 0 {
		return math.Inf(1)
	}

	slack := int(math.Floor(threshold * float64(m)))
	qs := string(q)
	best := smetrics.WagnerFischer(qs, string(n), 1, 1, 1)

	for width := max(1, m-slack); width <= m+slack; width++ {
		if width >= len(n) {
			break
		}
		for start := 0; start+width <= len(n); start++ {
			d := smetrics.WagnerFischer(qs, string(n[start:start+width]), 1, 1, 1)
			if d < best {
				best = d
				if best == 0 {
					return 0
				}
			}
		}
	}
	return float64(best) / float64(m)
}

// Suggestion is a fuzzy match of a query against a theme name.
type Suggestion struct {
	Name  string
	Score float64
}

// Suggest returns up to limit theme names close to query, best first, ties in
// index order. The query itself is never suggested.
func (idx *Index) Suggest(query string, limit int, threshold float64) []Suggestion {
	q := strings.TrimSpace(query)
	if utf8.RuneCountInString(q) < MinSuggestionQuery || limit <= 0 {
		return nil
	}
	lower := strings.ToLower(q)

	var out []Suggestion
	for _, name := range idx.names {
		if strings.ToLower(name) == lower {
			continue
		}
		if s := Score(q, name, threshold); s <= threshold {
			out = append(out, Suggestion{Name: name, Score: s})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score < out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
