package keyword

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/FocuswithJustin/QuranScope/core/corpus"
	qerrors "github.com/FocuswithJustin/QuranScope/core/errors"
)

// Mode selects how the translated text is matched.
type Mode int

const (
	// Word matches the query as a whole word in the translation.
	Word Mode = iota
	// Partial matches the query anywhere in the translation.
	Partial
)

func (m Mode) String() string {
	if m == Partial {
		return "partial"
	}
	return "word"
}

// ParseMode parses "word" or "partial". An empty string is Word.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "word":
		return Word, nil
	case "partial":
		return Partial, nil
	}
	return Word, qerrors.NewValidation("match", fmt.Sprintf("unknown match mode %q (want word or partial)", s))
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	parsed, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Matcher decides whether a verse matches a keyword query. The original text
// is always matched as a substring; the translation by substring or whole
// word depending on the mode.
type Matcher struct {
	lower string
	mode  Mode
	word  *regexp.Regexp
}

// NewMatcher compiles a matcher for query, which should already be trimmed.
func NewMatcher(query string, mode Mode) Matcher {
	m := Matcher{lower: strings.ToLower(query), mode: mode}
	if mode == Word {
		m.word = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(m.lower) + `\b`)
	}
	return m
}

// Match reports whether v matches in at least one field.
func (m Matcher) Match(v corpus.Verse) bool {
	if m.lower == "" {
		return false
	}
	if strings.Contains(strings.ToLower(v.Original), m.lower) {
		return true
	}
	if m.mode == Partial {
		return strings.Contains(strings.ToLower(v.Translated), m.lower)
	}
	return m.word.MatchString(v.Translated)
}
