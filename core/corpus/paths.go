package corpus

import "fmt"

// Resource paths relative to a data root.
const (
	ThemeIndexPath    = "meta/inverse_themes.json"
	ChapterIndexPath  = "meta/surah-index.json"
	DefaultTafsirName = "en-tafsir-ibn-kathir"
)

// Pad3 zero-pads a chapter number to three digits.
func Pad3(n int) string {
	return fmt.Sprintf("%03d", n)
}

// ChapterPath is the verse file of chapter n.
func ChapterPath(n int) string {
	return "surahs/" + Pad3(n) + ".json"
}

// ChapterThemesPath is the forward theme file of chapter n.
func ChapterThemesPath(n int) string {
	return "themes/" + Pad3(n) + ".json"
}

// AllChapterIDs returns 1..ChapterCount.
func AllChapterIDs() []int {
	ids := make([]int, ChapterCount)
	for i := range ids {
		ids[i] = i + 1
	}
	return ids
}

// StandardPaths lists the resources a complete data root provides for the
// given chapters: the two index files plus verse and theme files per chapter.
func StandardPaths(chapters []int) []string {
	paths := []string{ChapterIndexPath, ThemeIndexPath}
	for _, n := range chapters {
		paths = append(paths, ChapterPath(n))
	}
	for _, n := range chapters {
		paths = append(paths, ChapterThemesPath(n))
	}
	return paths
}
