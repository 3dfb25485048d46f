package corpus

import (
	"encoding/json"
	"sort"
	"testing"

	qerrors "github.com/FocuswithJustin/QuranScope/core/errors"
)

func TestParseRef(t *testing.T) {
	tests := []struct {
		input   string
		want    Ref
		wantErr bool
	}{
		{input: "2:255", want: Ref{Chapter: 2, Verse: 255}},
		{input: "2-255", want: Ref{Chapter: 2, Verse: 255}},
		{input: "2.255", want: Ref{Chapter: 2, Verse: 255}},
		{input: " 1:1 ", want: Ref{Chapter: 1, Verse: 1}},
		{input: "112", want: Ref{Chapter: 112}},
		{input: "114:6", want: Ref{Chapter: 114, Verse: 6}},
		{input: "", wantErr: true},
		{input: "abc", wantErr: true},
		{input: "2:", wantErr: true},
		{input: "2:255x", wantErr: true},
		{input: "0:1", wantErr: true},
		{input: "115:1", wantErr: true},
		{input: "2:0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRef(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseRef(%q) = %v, want error", tt.input, got)
				}
				if !qerrors.Is(err, qerrors.ErrInvalidInput) {
					t.Errorf("ParseRef(%q) error %v does not wrap ErrInvalidInput", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRef(%q) failed: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseRef(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestRefForms(t *testing.T) {
	r := Ref{Chapter: 2, Verse: 255}
	if got := r.String(); got != "2:255" {
		t.Errorf("String() = %q, want 2:255", got)
	}
	if got := r.URLForm(); got != "2-255" {
		t.Errorf("URLForm() = %q, want 2-255", got)
	}
	if r.IsChapter() {
		t.Error("IsChapter() = true for a verse ref")
	}
	if got := (Ref{Chapter: 112}).String(); got != "112" {
		t.Errorf("chapter String() = %q, want 112", got)
	}
	if !r.Valid() || (Ref{Chapter: 0, Verse: 1}).Valid() {
		t.Error("Valid() mismatch")
	}
}

func TestRefOrdering(t *testing.T) {
	refs := []Ref{
		MustParseRef("10:1"),
		MustParseRef("2:255"),
		MustParseRef("2:3"),
		MustParseRef("1:7"),
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Less(refs[j]) })

	want := []string{"1:7", "2:3", "2:255", "10:1"}
	for i, r := range refs {
		if r.String() != want[i] {
			t.Errorf("refs[%d] = %s, want %s", i, r, want[i])
		}
	}
	if c := MustParseRef("2:3").Compare(MustParseRef("2:3")); c != 0 {
		t.Errorf("Compare(equal) = %d, want 0", c)
	}
	if c := MustParseRef("3:1").Compare(MustParseRef("2:300")); c != 1 {
		t.Errorf("Compare(3:1, 2:300) = %d, want 1", c)
	}
}

func TestRefText(t *testing.T) {
	var payload struct {
		Ref Ref `json:"ref"`
	}
	if err := json.Unmarshal([]byte(`{"ref":"2-255"}`), &payload); err != nil {
		t.Fatalf("json.Unmarshal failed: %v", err)
	}
	if payload.Ref != (Ref{Chapter: 2, Verse: 255}) {
		t.Errorf("decoded ref = %+v", payload.Ref)
	}
	out, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("json.Marshal failed: %v", err)
	}
	if string(out) != `{"ref":"2:255"}` {
		t.Errorf("encoded = %s", out)
	}
	if err := json.Unmarshal([]byte(`{"ref":"nope"}`), &payload); err == nil {
		t.Error("expected error for malformed ref")
	}
}

func TestSplitRef(t *testing.T) {
	tests := []struct {
		in            string
		chapter, vers int
	}{
		{"2:255", 2, 255},
		{"112:4", 112, 4},
		{"7", 7, 0},
		{"x:y", 0, 0},
	}
	for _, tt := range tests {
		c, v := SplitRef(tt.in)
		if c != tt.chapter || v != tt.vers {
			t.Errorf("SplitRef(%q) = %d, %d, want %d, %d", tt.in, c, v, tt.chapter, tt.vers)
		}
	}
}

func TestChapterLabel(t *testing.T) {
	meta := []ChapterMeta{
		{ID: 1, Name: "الفاتحة", Transliteration: "Al-Fatihah", Translation: "The Opener"},
		{ID: 2, Name: "البقرة", Translation: "The Cow"},
		{ID: 3, Name: "آل عمران"},
		{ID: 4},
	}
	tests := []struct {
		id   int
		want string
	}{
		{1, "1 — Al-Fatihah"},
		{2, "2 — The Cow"},
		{3, "3 — آل عمران"},
		{4, "4 — 4"},
		{9, "9 — 9"},
	}
	for _, tt := range tests {
		if got := ChapterLabel(meta, tt.id); got != tt.want {
			t.Errorf("ChapterLabel(%d) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestPaths(t *testing.T) {
	if got := ChapterPath(2); got != "surahs/002.json" {
		t.Errorf("ChapterPath(2) = %q", got)
	}
	if got := ChapterThemesPath(114); got != "themes/114.json" {
		t.Errorf("ChapterThemesPath(114) = %q", got)
	}
	ids := AllChapterIDs()
	if len(ids) != ChapterCount || ids[0] != 1 || ids[ChapterCount-1] != ChapterCount {
		t.Errorf("AllChapterIDs() = %v..%v (len %d)", ids[0], ids[len(ids)-1], len(ids))
	}
	paths := StandardPaths([]int{1, 2})
	want := []string{ChapterIndexPath, ThemeIndexPath, "surahs/001.json", "surahs/002.json", "themes/001.json", "themes/002.json"}
	if len(paths) != len(want) {
		t.Fatalf("StandardPaths len = %d, want %d", len(paths), len(want))
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("StandardPaths[%d] = %q, want %q", i, paths[i], want[i])
		}
	}
}
