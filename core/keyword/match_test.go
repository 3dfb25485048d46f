package keyword

import (
	"testing"

	"github.com/FocuswithJustin/QuranScope/core/corpus"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", Word, false},
		{"word", Word, false},
		{"PARTIAL", Partial, false},
		{"fuzzy", Word, true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseMode(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestMatcher(t *testing.T) {
	believers := corpus.Verse{Ref: "2:285", Original: "وَالْمُؤْمِنُونَ", Translated: "and so have the believers."}
	believe := corpus.Verse{Ref: "2:3", Original: "يُؤْمِنُونَ", Translated: "Who Believe in the unseen"}
	special := corpus.Verse{Ref: "9:9", Translated: "a (b) c"}

	tests := []struct {
		name  string
		query string
		mode  Mode
		verse corpus.Verse
		want  bool
	}{
		{"word exact", "believe", Word, believe, true},
		{"word case-insensitive query", "BELIEVE", Word, believe, true},
		{"word not prefix", "believe", Word, believers, false},
		{"partial prefix", "believe", Partial, believers, true},
		{"partial case", "BELIEVERS", Partial, believers, true},
		{"original substring", "ؤْمِنُونَ", Word, believers, true},
		{"metacharacters quoted", "(b)", Partial, special, true},
		{"metacharacters word", "c", Word, special, true},
		{"no match", "mercy", Partial, believe, false},
		{"empty query", "", Partial, believe, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMatcher(tt.query, tt.mode)
			if got := m.Match(tt.verse); got != tt.want {
				t.Errorf("Match = %v, want %v", got, tt.want)
			}
		})
	}
}
