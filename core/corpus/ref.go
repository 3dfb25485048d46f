package corpus

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	qerrors "github.com/FocuswithJustin/QuranScope/core/errors"
)

// ChapterCount is the number of chapters in the corpus. Chapter and verse
// numbering is fixed.
const ChapterCount = 114

// Ref is a canonical verse reference. Verse is 0 for a whole-chapter reference.
type Ref struct {
	Chapter int `json:"chapter"`
	Verse   int `json:"verse,omitempty"`
}

// refGrammar is the participle grammar for verse references.
// Examples: "2:255", "2-255" (URL form), "2.255", "112" (whole chapter)
type refGrammar struct {
	Chapter  int        `parser:"@Int"`
	VerseRef *versePart `parser:"( @@ )?"`
}

type versePart struct {
	Sep   string `parser:"@( \":\" | \"-\" | \".\" )"`
	Verse int    `parser:"@Int"`
}

var refLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Punct", Pattern: `[:.\-]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var refParser = participle.MustBuild[refGrammar](
	participle.Lexer(refLexer),
	participle.Elide("Whitespace"),
)

// ParseRef parses a verse reference.
// Supported formats:
//   - "2:255" (canonical)
//   - "2-255" (URL form used in verse links)
//   - "2.255"
//   - "2" (whole chapter)
//
// The chapter must be within 1..ChapterCount and an explicit verse must be >= 1.
func ParseRef(s string) (Ref, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Ref{}, qerrors.NewValidation("ref", "empty reference")
	}

	parsed, err := refParser.ParseString("", s)
	if err != nil {
		return Ref{}, &qerrors.ParseError{Format: "ref", Message: fmt.Sprintf("invalid reference %q", s), Err: err}
	}

	ref := Ref{Chapter: parsed.Chapter}
	if parsed.VerseRef != nil {
		ref.Verse = parsed.VerseRef.Verse
		if ref.Verse < 1 {
			return Ref{}, qerrors.NewValidation("ref", fmt.Sprintf("verse must be >= 1 in %q", s))
		}
	}
	if !ValidChapter(ref.Chapter) {
		return Ref{}, qerrors.NewValidation("ref", fmt.Sprintf("chapter must be between 1 and %d in %q", ChapterCount, s))
	}
	return ref, nil
}

// MustParseRef is like ParseRef but panics on error. Intended for tests and
// static tables.
func MustParseRef(s string) Ref {
	r, err := ParseRef(s)
	if err != nil {
		panic(err)
	}
	return r
}

// ValidChapter reports whether n is a chapter number of the corpus.
func ValidChapter(n int) bool {
	return n >= 1 && n <= ChapterCount
}

// String returns the canonical "chapter:verse" form, or just the chapter for
// whole-chapter references.
func (r Ref) String() string {
	if r.Verse == 0 {
		return strconv.Itoa(r.Chapter)
	}
	return strconv.Itoa(r.Chapter) + ":" + strconv.Itoa(r.Verse)
}

// URLForm returns the "chapter-verse" form used in verse links.
func (r Ref) URLForm() string {
	return strconv.Itoa(r.Chapter) + "-" + strconv.Itoa(r.Verse)
}

// IsChapter reports whether r addresses a whole chapter.
func (r Ref) IsChapter() bool {
	return r.Verse == 0
}

// Less orders references canonically by (chapter, verse).
func (r Ref) Less(other Ref) bool {
	if r.Chapter != other.Chapter {
		return r.Chapter < other.Chapter
	}
	return r.Verse < other.Verse
}

// Compare returns -1, 0 or +1 in canonical order.
func (r Ref) Compare(other Ref) int {
	switch {
	case r.Less(other):
		return -1
	case other.Less(r):
		return 1
	}
	return 0
}

// MarshalText encodes the reference in canonical form.
func (r Ref) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText parses any form accepted by ParseRef.
func (r *Ref) UnmarshalText(b []byte) error {
	parsed, err := ParseRef(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// SplitRef is a lenient split of "S:A" used on hot paths (sorting, filtering)
// where the reference came from the corpus itself. Malformed parts yield 0.
func SplitRef(s string) (chapter, verse int) {
	c, v, _ := strings.Cut(s, ":")
	chapter, _ = strconv.Atoi(strings.TrimSpace(c))
	verse, _ = strconv.Atoi(strings.TrimSpace(v))
	return chapter, verse
}

// Valid reports whether r has a chapter in range and a non-negative verse.
func (r Ref) Valid() bool {
	return ValidChapter(r.Chapter) && r.Verse >= 0
}
