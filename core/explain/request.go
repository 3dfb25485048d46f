package explain

import (
	"fmt"
	"strings"

	"github.com/FocuswithJustin/QuranScope/core/corpus"
	qerrors "github.com/FocuswithJustin/QuranScope/core/errors"
)

// Request asks for an explanation of one verse.
type Request struct {
	Chapter     int     `json:"surah"`
	Verse       int     `json:"ayah"`
	Text        string  `json:"text"`
	Translation string  `json:"translation"`
	Options     Options `json:"options"`
	Regenerate  bool    `json:"regenerate"`
}

// NewRequest builds a request for a loaded verse.
func NewRequest(v corpus.Verse, opts Options) Request {
	return Request{
		Chapter:     v.Chapter,
		Verse:       v.Verse,
		Text:        v.Original,
		Translation: v.Translated,
		Options:     opts,
	}
}

// Ref returns the verse reference of the request.
func (r Request) Ref() corpus.Ref {
	return corpus.Ref{Chapter: r.Chapter, Verse: r.Verse}
}

// Validate checks the verse reference and options.
func (r Request) Validate() error {
	if !corpus.ValidChapter(r.Chapter) || r.Verse < 1 {
		return qerrors.NewValidation("ref", fmt.Sprintf("invalid verse %d:%d", r.Chapter, r.Verse))
	}
	return r.Options.Validate()
}

// wire returns the request body as sent.
func (r Request) wire() Request {
	r.Options = r.Options.Wire()
	return r
}

// CacheKey mirrors the service's cache key: "chapter:verse:style:length",
// where length defaults to short even for fixed-size styles.
func (r Request) CacheKey() string {
	n := r.Options.Normalize()
	return fmt.Sprintf("%d:%d:%s:%s", r.Chapter, r.Verse, n.Style, n.Length)
}

// CacheState is the service's report of how a response was produced.
type CacheState int

const (
	// CacheUnknown means no recognised X-Cache header was seen.
	CacheUnknown CacheState = iota
	// CacheHit is a replay of a cached explanation.
	CacheHit
	// CacheMiss is a fresh explanation that has been cached.
	CacheMiss
	// CacheBypassNew is a regenerated explanation that replaced the cache.
	CacheBypassNew
)

// ParseCacheState parses an X-Cache header value.
func ParseCacheState(h string) CacheState {
	switch strings.ToUpper(strings.TrimSpace(h)) {
	case "HIT":
		return CacheHit
	case "MISS":
		return CacheMiss
	case "BYPASS-NEW":
		return CacheBypassNew
	}
	return CacheUnknown
}

// String returns the header form, or "" for CacheUnknown.
func (c CacheState) String() string {
	switch c {
	case CacheHit:
		return "HIT"
	case CacheMiss:
		return "MISS"
	case CacheBypassNew:
		return "BYPASS-NEW"
	}
	return ""
}

// MarshalText implements encoding.TextMarshaler.
func (c CacheState) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}
