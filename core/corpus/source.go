package corpus

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ulikunitz/xz"

	qerrors "github.com/FocuswithJustin/QuranScope/core/errors"
	"github.com/FocuswithJustin/QuranScope/internal/validation"
)

// Source serves read-only data resources by slash path ("surahs/001.json").
// A missing resource is reported as a NotFoundError.
type Source interface {
	Open(ctx context.Context, path string) ([]byte, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, path string) ([]byte, error)

// Open calls f.
func (f SourceFunc) Open(ctx context.Context, path string) ([]byte, error) {
	return f(ctx, path)
}

// DirSource reads resources from a local data root. A resource may be stored
// plain or xz-compressed as path+".xz".
type DirSource struct {
	Root string
}

// NewDirSource creates a DirSource rooted at root.
func NewDirSource(root string) *DirSource {
	return &DirSource{Root: root}
}

// Open implements Source.
func (s *DirSource) Open(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean, err := validation.SanitizePath(path)
	if err != nil {
		return nil, qerrors.NewValidation("path", err.Error())
	}

	full := filepath.Join(s.Root, filepath.FromSlash(clean))
	data, err := readLimited(full)
	if errors.Is(err, fs.ErrNotExist) {
		data, err = readLimited(full + ".xz")
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &qerrors.NotFoundError{Resource: "resource", ID: clean}
	}
	if err != nil {
		return nil, qerrors.NewIO("read", clean, err)
	}
	return Decompress(data)
}

func readLimited(name string) ([]byte, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, validation.MaxResourceSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > validation.MaxResourceSize {
		return nil, fmt.Errorf("resource exceeds %d bytes", validation.MaxResourceSize)
	}
	return data, nil
}

// Decompress returns data unchanged unless it is an xz stream, which is
// decoded.
func Decompress(data []byte) ([]byte, error) {
	if validation.DetectFileType(data) != validation.FileTypeXZ {
		return data, nil
	}
	r, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, qerrors.NewParse("xz", "", err)
	}
	out, err := io.ReadAll(io.LimitReader(r, validation.MaxResourceSize+1))
	if err != nil {
		return nil, qerrors.NewParse("xz", "", err)
	}
	if len(out) > validation.MaxResourceSize {
		return nil, fmt.Errorf("decompressed resource exceeds %d bytes", validation.MaxResourceSize)
	}
	return out, nil
}

// Compress encodes data as an xz stream.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// HTTPSource fetches resources below a base URL, e.g. "https://example.org/data/v1".
type HTTPSource struct {
	Base   *url.URL
	Client *http.Client
}

// NewHTTPSource parses base and returns an HTTPSource using client, or a
// client with a 30s timeout when client is nil.
func NewHTTPSource(base string, client *http.Client) (*HTTPSource, error) {
	u, err := url.Parse(strings.TrimRight(base, "/") + "/")
	if err != nil {
		return nil, qerrors.NewValidation("data", fmt.Sprintf("invalid base URL %q: %v", base, err))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, qerrors.NewValidation("data", fmt.Sprintf("unsupported URL scheme %q", u.Scheme))
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPSource{Base: u, Client: client}, nil
}

// Open implements Source.
func (s *HTTPSource) Open(ctx context.Context, path string) ([]byte, error) {
	clean, err := validation.SanitizePath(path)
	if err != nil {
		return nil, qerrors.NewValidation("path", err.Error())
	}
	target := s.Base.ResolveReference(&url.URL{Path: clean})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, qerrors.NewIO("fetch", clean, err)
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, qerrors.NewIO("fetch", clean, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, &qerrors.NotFoundError{Resource: "resource", ID: clean}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &qerrors.StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, validation.MaxResourceSize+1))
	if err != nil {
		return nil, qerrors.NewIO("read", clean, err)
	}
	if len(data) > validation.MaxResourceSize {
		return nil, qerrors.NewIO("read", clean, fmt.Errorf("resource exceeds %d bytes", validation.MaxResourceSize))
	}
	return Decompress(data)
}

// MapSource is an in-memory Source keyed by path. It records how often each
// path was opened.
type MapSource struct {
	mu    sync.Mutex
	files map[string][]byte
	opens map[string]int
}

// NewMapSource creates a MapSource holding files.
func NewMapSource(files map[string][]byte) *MapSource {
	m := &MapSource{
		files: make(map[string][]byte, len(files)),
		opens: make(map[string]int),
	}
	for k, v := range files {
		m.files[k] = v
	}
	return m
}

// Set adds or replaces a resource.
func (m *MapSource) Set(path string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = data
}

// Open implements Source.
func (m *MapSource) Open(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opens[path]++
	data, ok := m.files[path]
	if !ok {
		return nil, &qerrors.NotFoundError{Resource: "resource", ID: path}
	}
	return data, nil
}

// Opens reports how many times path was opened.
func (m *MapSource) Opens(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens[path]
}
