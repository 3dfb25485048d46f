// Package validation provides input validation and sanitization for resource
// paths and user queries.
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Limits applied to user input.
const (
	// MaxResourceSize is the maximum size of a single data resource (64 MB).
	MaxResourceSize = 64 << 20
	// MaxPathLength is the maximum allowed resource path length.
	MaxPathLength = 1024
	// MaxQueryLength is the maximum number of runes in a search query.
	MaxQueryLength = 256
)

// Common validation errors.
var (
	ErrPathTraversal    = errors.New("path traversal detected")
	ErrPathTooLong      = errors.New("path too long")
	ErrInvalidCharacter = errors.New("invalid character")
	ErrEmptyPath        = errors.New("path cannot be empty")
	ErrQueryTooLong     = errors.New("query too long")
)

// SanitizePath validates a slash-separated resource path relative to a data
// root. The returned path is cleaned and guaranteed not to escape the root.
func SanitizePath(resourcePath string) (string, error) {
	if resourcePath == "" {
		return "", ErrEmptyPath
	}
	if len(resourcePath) > MaxPathLength {
		return "", ErrPathTooLong
	}
	if err := checkCharacters(resourcePath); err != nil {
		return "", err
	}
	if strings.Contains(resourcePath, "\\") {
		return "", fmt.Errorf("%w: backslash not allowed", ErrInvalidCharacter)
	}
	if strings.HasPrefix(resourcePath, "/") {
		return "", fmt.Errorf("%w: absolute path not allowed", ErrPathTraversal)
	}

	clean := path.Clean(resourcePath)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrPathTraversal
	}
	for _, seg := range strings.Split(clean, "/") {
		if seg == ".." {
			return "", ErrPathTraversal
		}
	}
	return clean, nil
}

// IsPathSafe checks if a resource path is safe to resolve under a data root.
func IsPathSafe(resourcePath string) bool {
	_, err := SanitizePath(resourcePath)
	return err == nil
}

// Query trims a raw search query, folds runs of whitespace (tabs and
// newlines of a pasted query included) into single spaces, and rejects the
// remaining control characters and overly long input. An empty result is
// valid and means "no search".
func Query(raw string) (string, error) {
	q := strings.Join(strings.Fields(raw), " ")
	if utf8.RuneCountInString(q) > MaxQueryLength {
		return "", ErrQueryTooLong
	}
	if err := checkCharacters(q); err != nil {
		return "", err
	}
	return q, nil
}

func checkCharacters(s string) error {
	if strings.Contains(s, "\x00") {
		return fmt.Errorf("%w: null byte not allowed", ErrInvalidCharacter)
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidCharacter)
		}
	}
	return nil
}

// FileType represents a detected payload type.
type FileType string

const (
	FileTypeXZ      FileType = "xz"
	FileTypeSQLite  FileType = "sqlite"
	FileTypeJSON    FileType = "json"
	FileTypeUnknown FileType = "unknown"
)

// magicBytes defines magic byte signatures for file type detection.
var magicBytes = []struct {
	fileType FileType
	magic    []byte
}{
	{FileTypeXZ, []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}},
	{FileTypeSQLite, []byte("SQLite format 3\x00")},
}

// DetectFileType sniffs the leading bytes of a payload.
func DetectFileType(head []byte) FileType {
	for _, sig := range magicBytes {
		if bytes.HasPrefix(head, sig.magic) {
			return sig.fileType
		}
	}
	trimmed := bytes.TrimLeft(head, " \t\r\n\xef\xbb\xbf")
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return FileTypeJSON
	}
	return FileTypeUnknown
}
