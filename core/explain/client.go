package explain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	qerrors "github.com/FocuswithJustin/QuranScope/core/errors"
)

// StreamPath is the endpoint path below the service origin.
const StreamPath = "/explain-stream"

// Messages used when the service gives nothing better.
const (
	FallbackErrorText = "⚠️ Error fetching explanation."
	InterruptedNotice = "⚠️ Stream interrupted."
)

// Response describes a finished (or failed) stream.
type Response struct {
	Status   int        `json:"status"`
	Cache    CacheState `json:"cache"`
	CacheKey string     `json:"cache_key,omitempty"`
	Bypass   bool       `json:"bypass"`
	Text     string     `json:"text"`
	Bytes    int64      `json:"bytes"`
}

// StreamError is a failure after the stream started. Partial holds the text
// received before the failure.
type StreamError struct {
	Partial string
	Err     error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("explanation stream interrupted after %d bytes: %v", len(e.Partial), e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// Client talks to the explanation service.
type Client struct {
	Origin     string
	HTTPClient *http.Client
}

// NewClient creates a client for origin (e.g. "http://localhost:8000").
// A nil httpClient gets one without an overall timeout, since streams may
// legitimately run long; use ctx to bound them.
func NewClient(origin string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, qerrors.NewValidation("origin", fmt.Sprintf("invalid explanation service origin %q", origin))
	}
	if httpClient == nil {
		httpClient = &http.Client{Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: 60 * time.Second,
		}}
	}
	return &Client{Origin: strings.TrimRight(origin, "/"), HTTPClient: httpClient}, nil
}

// Open posts req and returns once the response headers have arrived. A
// non-2xx status returns a StatusError whose Body is the service text (or
// FallbackErrorText); the returned Response carries the status and headers in
// either case.
func (c *Client) Open(ctx context.Context, req Request) (*Stream, Response, error) {
	var resp Response
	if err := req.Validate(); err != nil {
		return nil, resp, err
	}

	body, err := json.Marshal(req.wire())
	if err != nil {
		return nil, resp, qerrors.Wrap(err, "encode explanation request")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Origin+StreamPath, bytes.NewReader(body))
	if err != nil {
		return nil, resp, qerrors.Wrap(err, "build explanation request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Cache-Control", "no-cache")

	httpResp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, resp, cancelled(ctx)
		}
		return nil, resp, qerrors.NewIO("post", StreamPath, err)
	}

	resp.Status = httpResp.StatusCode
	resp.Cache = ParseCacheState(httpResp.Header.Get("X-Cache"))
	resp.CacheKey = httpResp.Header.Get("X-Cache-Key")
	resp.Bypass = httpResp.Header.Get("X-Bypass") == "1"

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		defer httpResp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(httpResp.Body, 64<<10))
		text := string(msg)
		if strings.TrimSpace(text) == "" {
			text = FallbackErrorText
		}
		resp.Text = text
		return nil, resp, &qerrors.StatusError{Code: httpResp.StatusCode, Body: text}
	}

	return &Stream{ctx: ctx, body: httpResp.Body, dec: NewDecoder(), buf: make([]byte, 4096)}, resp, nil
}

// Stream posts req and delivers decoded text to onChunk as it arrives, in
// order. It returns the full response on success.
//
// Errors are those of Open, plus a StreamError with the partial text when the
// connection fails mid-stream. Cancellation through ctx returns an error for
// which qerrors.IsCancelled is true; Response.Text then holds what was
// received.
func (c *Client) Stream(ctx context.Context, req Request, onChunk func(string)) (Response, error) {
	st, resp, err := c.Open(ctx, req)
	if err != nil {
		return resp, err
	}
	defer st.Close()

	var sb strings.Builder
	for {
		chunk, err := st.Recv()
		if chunk != "" {
			sb.WriteString(chunk)
			if onChunk != nil {
				onChunk(chunk)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			resp.Text = sb.String()
			resp.Bytes = st.Bytes()
			var se *StreamError
			if errors.As(err, &se) {
				se.Partial = resp.Text
			}
			return resp, err
		}
	}
	resp.Text = sb.String()
	resp.Bytes = st.Bytes()
	return resp, nil
}

// Stream is an open explanation body.
type Stream struct {
	ctx   context.Context
	body  io.ReadCloser
	dec   *Decoder
	buf   []byte
	bytes int64
	done  bool
}

// Recv returns the next decoded text. It returns io.EOF after the last chunk;
// a chunk may be empty when the bytes read completed no character.
func (s *Stream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}
	n, err := s.body.Read(s.buf)
	var text string
	if n > 0 {
		s.bytes += int64(n)
		text = s.dec.Decode(s.buf[:n])
	}
	switch {
	case err == io.EOF:
		s.done = true
		return text + s.dec.Flush(), nil
	case err != nil:
		s.done = true
		if s.ctx.Err() != nil {
			return text, cancelled(s.ctx)
		}
		return text, &StreamError{Err: err}
	}
	return text, nil
}

// Bytes returns the number of body bytes read so far.
func (s *Stream) Bytes() int64 {
	return s.bytes
}

// Close releases the connection.
func (s *Stream) Close() error {
	return s.body.Close()
}

func cancelled(ctx context.Context) error {
	return fmt.Errorf("%w: %w", qerrors.ErrCancelled, ctx.Err())
}

// IsStreamError reports whether err is a mid-stream failure.
func IsStreamError(err error) bool {
	var se *StreamError
	return errors.As(err, &se)
}
