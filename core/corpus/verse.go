package corpus

import (
	"fmt"
	"strconv"
)

// Verse is a single verse of a chapter file. It is immutable once loaded and
// identified by Ref ("chapter:verse").
type Verse struct {
	Ref        string `json:"ref"`
	Chapter    int    `json:"surah"`
	Verse      int    `json:"ayah"`
	Original   string `json:"arabic"`
	Translated string `json:"english"`
}

// Key returns the verse reference as a Ref value.
func (v Verse) Key() Ref {
	return Ref{Chapter: v.Chapter, Verse: v.Verse}
}

// normalize fills whichever of ref or chapter/verse numbers is missing.
func (v *Verse) normalize() {
	if v.Ref == "" && v.Chapter > 0 && v.Verse > 0 {
		v.Ref = strconv.Itoa(v.Chapter) + ":" + strconv.Itoa(v.Verse)
	}
	if (v.Chapter == 0 || v.Verse == 0) && v.Ref != "" {
		v.Chapter, v.Verse = SplitRef(v.Ref)
	}
}

// FindVerse returns the verse numbered n within a chapter's verses.
func FindVerse(verses []Verse, n int) (Verse, bool) {
	for _, v := range verses {
		if v.Verse == n {
			return v, true
		}
	}
	return Verse{}, false
}

// ChapterMeta is one row of the chapter metadata index.
type ChapterMeta struct {
	ID              int    `json:"id"`
	Name            string `json:"name,omitempty"`
	Transliteration string `json:"transliteration,omitempty"`
	Translation     string `json:"translation,omitempty"`
	Type            string `json:"type,omitempty"`
	AyahCount       int    `json:"ayahCount"`
}

// Label returns the preferred display name: transliteration, translation,
// name, then the bare id.
func (m ChapterMeta) Label() string {
	switch {
	case m.Transliteration != "":
		return m.Transliteration
	case m.Translation != "":
		return m.Translation
	case m.Name != "":
		return m.Name
	}
	return strconv.Itoa(m.ID)
}

// ChapterLabel formats "id — label" for chapter pickers.
func ChapterLabel(meta []ChapterMeta, id int) string {
	for _, m := range meta {
		if m.ID == id {
			return fmt.Sprintf("%d — %s", id, m.Label())
		}
	}
	return fmt.Sprintf("%d — %d", id, id)
}

// ThemeRow is one row of a per-chapter forward theme file.
type ThemeRow struct {
	Ref    string   `json:"ref"`
	Themes []string `json:"themes"`
}
