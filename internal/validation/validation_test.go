package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestSanitizePath(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr error
	}{
		{"chapter file", "surahs/001.json", "surahs/001.json", nil},
		{"redundant segments", "tafsir/./2//index.json", "tafsir/2/index.json", nil},
		{"inner dotdot resolved", "tafsir/x/../2.json", "tafsir/2.json", nil},
		{"empty", "", "", ErrEmptyPath},
		{"escape", "../secrets.json", "", ErrPathTraversal},
		{"escape after clean", "meta/../../x", "", ErrPathTraversal},
		{"absolute", "/etc/passwd", "", ErrPathTraversal},
		{"backslash", `surahs\001.json`, "", ErrInvalidCharacter},
		{"null byte", "surahs/001\x00.json", "", ErrInvalidCharacter},
		{"too long", strings.Repeat("a", MaxPathLength+1), "", ErrPathTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizePath(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("SanitizePath(%q) error = %v, want %v", tt.in, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("SanitizePath(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("SanitizePath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	if !IsPathSafe("meta/inverse_themes.json") || IsPathSafe("../x") {
		t.Error("IsPathSafe disagrees with SanitizePath")
	}
}

func TestQuery(t *testing.T) {
	got, err := Query("  Mercy \t")
	if err != nil || got != "Mercy" {
		t.Errorf("Query() = %q, %v", got, err)
	}

	got, err = Query("   ")
	if err != nil || got != "" {
		t.Errorf("Query(blank) = %q, %v; want empty, nil", got, err)
	}

	for _, raw := range []string{"Oneness\tof\nGod", "Oneness \r\n  of God", "\tOneness of God\n"} {
		if got, err := Query(raw); err != nil || got != "Oneness of God" {
			t.Errorf("Query(%q) = %q, %v; want folded whitespace", raw, got, err)
		}
	}

	if _, err := Query("bad\x07query"); !errors.Is(err, ErrInvalidCharacter) {
		t.Errorf("Query(control) error = %v", err)
	}

	if _, err := Query(strings.Repeat("ر", MaxQueryLength+1)); !errors.Is(err, ErrQueryTooLong) {
		t.Errorf("Query(long) error = %v", err)
	}
	if _, err := Query(strings.Repeat("ر", MaxQueryLength)); err != nil {
		t.Errorf("Query(limit) error = %v", err)
	}
}

func TestDetectFileType(t *testing.T) {
	tests := []struct {
		name string
		head []byte
		want FileType
	}{
		{"xz", []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00, 0x00}, FileTypeXZ},
		{"sqlite", []byte("SQLite format 3\x00rest"), FileTypeSQLite},
		{"json array", []byte("  [{\"ref\":\"1:1\"}]"), FileTypeJSON},
		{"json object with bom", []byte("\xef\xbb\xbf{\"ayahs\":[]}"), FileTypeJSON},
		{"text", []byte("hello"), FileTypeUnknown},
		{"empty", nil, FileTypeUnknown},
	}
	for _, tt := range tests {
		if got := DetectFileType(tt.head); got != tt.want {
			t.Errorf("%s: DetectFileType() = %q, want %q", tt.name, got, tt.want)
		}
	}
}
