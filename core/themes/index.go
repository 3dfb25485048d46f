package themes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/FocuswithJustin/QuranScope/core/corpus"
	qerrors "github.com/FocuswithJustin/QuranScope/core/errors"
)

// Index is the inverse theme index: theme name -> verse refs. Names keep the
// order of the source file, which is the order offered to fuzzy matching.
type Index struct {
	names   []string
	refs    map[string][]string
	forward map[string][]string
	folded  map[string]string
	dropped int
}

// Entry is one theme of an index being built in code.
type Entry struct {
	Name string
	Refs []string
}

// NewIndex builds an Index from entries in the given order.
func NewIndex(entries []Entry) *Index {
	idx := &Index{
		refs:    make(map[string][]string, len(entries)),
		forward: make(map[string][]string),
		folded:  make(map[string]string, len(entries)),
	}
	for _, e := range entries {
		idx.add(e.Name, e.Refs)
	}
	idx.buildForward()
	return idx
}

// EmptyIndex returns an index with no themes.
func EmptyIndex() *Index {
	return NewIndex(nil)
}

func (idx *Index) add(name string, refs []string) {
	if _, dup := idx.refs[name]; !dup {
		idx.names = append(idx.names, name)
	}
	valid := make([]string, 0, len(refs))
	for _, raw := range refs {
		r, err := corpus.ParseRef(raw)
		if err != nil || r.IsChapter() {
			idx.dropped++
			continue
		}
		valid = append(valid, r.String())
	}
	idx.refs[name] = valid

	lower := strings.ToLower(name)
	if _, ok := idx.folded[lower]; !ok {
		idx.folded[lower] = name
	}
}

func (idx *Index) buildForward() {
	idx.forward = make(map[string][]string)
	for _, name := range idx.names {
		for _, ref := range idx.refs[name] {
			idx.forward[ref] = append(idx.forward[ref], name)
		}
	}
}

// ParseIndex decodes the inverse index JSON object, preserving key order.
// Refs that are not verse references are dropped without failing the load.
func ParseIndex(data []byte) (*Index, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, qerrors.NewParse("JSON", corpus.ThemeIndexPath, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, qerrors.NewParse("JSON", corpus.ThemeIndexPath, fmt.Errorf("expected object, got %v", tok))
	}

	idx := &Index{
		refs:   make(map[string][]string),
		folded: make(map[string]string),
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, qerrors.NewParse("JSON", corpus.ThemeIndexPath, err)
		}
		name, _ := tok.(string)

		var refs []string
		if err := dec.Decode(&refs); err != nil {
			return nil, qerrors.NewParse("JSON", corpus.ThemeIndexPath, fmt.Errorf("theme %q: %w", name, err))
		}
		idx.add(name, refs)
	}
	if _, err := dec.Token(); err != nil {
		return nil, qerrors.NewParse("JSON", corpus.ThemeIndexPath, err)
	}

	idx.buildForward()
	return idx, nil
}

// LoadIndex reads the inverse index from src. A missing or malformed index
// yields an empty Index together with the error.
func LoadIndex(ctx context.Context, src corpus.Source) (*Index, error) {
	data, err := src.Open(ctx, corpus.ThemeIndexPath)
	if err != nil {
		return EmptyIndex(), err
	}
	idx, err := ParseIndex(data)
	if err != nil {
		return EmptyIndex(), err
	}
	return idx, nil
}

// Len returns the number of themes.
func (idx *Index) Len() int {
	return len(idx.names)
}

// Dropped returns how many malformed refs were skipped while loading.
func (idx *Index) Dropped() int {
	return idx.dropped
}

// Names returns theme names in index order.
func (idx *Index) Names() []string {
	return append([]string(nil), idx.names...)
}

// SortedNames returns theme names sorted case-insensitively.
func (idx *Index) SortedNames() []string {
	names := idx.Names()
	sort.SliceStable(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})
	return names
}

// Refs returns the refs of theme name (exact name), in index order.
func (idx *Index) Refs(name string) []string {
	return append([]string(nil), idx.refs[name]...)
}

// ThemesFor returns the themes that reference ref, in index order.
func (idx *Index) ThemesFor(ref string) []string {
	return append([]string(nil), idx.forward[ref]...)
}

// Exact returns the theme whose name equals query case-insensitively.
func (idx *Index) Exact(query string) (string, bool) {
	name, ok := idx.folded[strings.ToLower(query)]
	return name, ok
}

// Lookup resolves a theme name as the theme page does: a case-insensitive
// exact match, then the first name (in index order) containing the query.
func (idx *Index) Lookup(query string) (string, bool) {
	q := strings.TrimSpace(query)
	if q == "" {
		return "", false
	}
	if name, ok := idx.Exact(q); ok {
		return name, true
	}
	lower := strings.ToLower(q)
	for _, name := range idx.names {
		if strings.Contains(strings.ToLower(name), lower) {
			return name, true
		}
	}
	return "", false
}
