package explain

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// fakeService imitates the explanation service: it sends a heartbeat, then
// the configured chunks, flushing after each.
type fakeService struct {
	status int
	cache  string
	body   string   // written instead of chunks when status is not 2xx
	chunks []string // raw chunks after the heartbeat
	hold   bool     // after the chunks, wait for the client to go away
	drop   bool     // after the chunks, abort the connection

	mu       sync.Mutex
	requests []Request
	headers  []http.Header
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req Request
	_ = json.NewDecoder(r.Body).Decode(&req)
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.headers = append(f.headers, r.Header.Clone())
	f.mu.Unlock()

	if f.cache != "" {
		w.Header().Set("X-Cache", f.cache)
	}
	w.Header().Set("X-Cache-Key", req.CacheKey())
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if f.status != 0 && f.status != http.StatusOK {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(f.body))
		return
	}

	flusher := w.(http.Flusher)
	_, _ = w.Write([]byte(Heartbeat))
	flusher.Flush()
	for _, c := range f.chunks {
		_, _ = w.Write([]byte(c))
		flusher.Flush()
	}
	switch {
	case f.hold:
		<-r.Context().Done()
	case f.drop:
		panic(http.ErrAbortHandler)
	}
}

func (f *fakeService) lastRequest() (Request, http.Header) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return Request{}, nil
	}
	return f.requests[len(f.requests)-1], f.headers[len(f.headers)-1]
}

func newFakeClient(t *testing.T, svc *fakeService) *Client {
	t.Helper()
	srv := httptest.NewServer(svc)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

func verseRequest() Request {
	return Request{
		Chapter:     2,
		Verse:       255,
		Text:        "اللَّهُ لَا إِلَٰهَ إِلَّا هُوَ",
		Translation: "Allah - there is no deity except Him",
		Options:     Options{Style: Balanced, Length: Short},
	}
}
