package explain

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	qerrors "github.com/FocuswithJustin/QuranScope/core/errors"
)

func waitSession(t *testing.T, s *Session) Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("stream did not finish: %v", err)
	}
	return s.Snapshot()
}

func TestSessionCompletes(t *testing.T) {
	s := NewSession(newFakeClient(t, &fakeService{cache: "HIT", chunks: []string{"The ", "verse ", "means..."}}))

	var mu sync.Mutex
	var states []State
	s.Subscribe(func(ev Event) {
		mu.Lock()
		states = append(states, ev.State)
		mu.Unlock()
	})

	if got := s.Snapshot().State; got != Idle {
		t.Fatalf("initial state = %v", got)
	}
	if err := s.Generate(context.Background(), verseRequest()); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	snap := waitSession(t, s)
	if snap.State != Completed || snap.Text != "The verse means..." {
		t.Errorf("snapshot = %v %q", snap.State, snap.Text)
	}
	if snap.Cache != CacheHit || !snap.HasGenerated || snap.Err != nil {
		t.Errorf("snapshot = %+v", snap)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(states) < 3 || states[0] != Requesting || states[1] != Streaming || states[len(states)-1] != Completed {
		t.Errorf("state events = %v", states)
	}
}

func TestSessionStopAfterFirstChunk(t *testing.T) {
	s := NewSession(newFakeClient(t, &fakeService{chunks: []string{"The "}, hold: true}))
	s.Subscribe(func(ev Event) {
		if ev.Chunk != "" {
			s.Stop()
		}
	})

	if err := s.Generate(context.Background(), verseRequest()); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	snap := waitSession(t, s)
	if snap.State != Stopped || snap.Text != "The " || snap.Err != nil {
		t.Errorf("snapshot = %v %q %v", snap.State, snap.Text, snap.Err)
	}
}

func TestSessionServiceError(t *testing.T) {
	s := NewSession(newFakeClient(t, &fakeService{status: http.StatusInternalServerError, body: "Model unavailable"}))
	if err := s.Generate(context.Background(), verseRequest()); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	snap := waitSession(t, s)
	if snap.State != Errored || snap.Text != "Model unavailable" {
		t.Errorf("snapshot = %v %q", snap.State, snap.Text)
	}
	var se *qerrors.StatusError
	if !qerrors.As(snap.Err, &se) || se.Code != http.StatusInternalServerError {
		t.Errorf("Err = %v", snap.Err)
	}
	if snap.HasGenerated {
		t.Error("HasGenerated set without any streamed text")
	}
}

func TestSessionInterrupted(t *testing.T) {
	s := NewSession(newFakeClient(t, &fakeService{chunks: []string{"The "}, drop: true}))
	if err := s.Generate(context.Background(), verseRequest()); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	snap := waitSession(t, s)
	if snap.State != Errored || snap.Text != "The \n\n"+InterruptedNotice {
		t.Errorf("snapshot = %v %q", snap.State, snap.Text)
	}
}

func TestSessionLastRequestWins(t *testing.T) {
	held := &fakeService{chunks: []string{"old "}, hold: true}
	s := NewSession(newFakeClient(t, held))

	first := make(chan struct{})
	var once sync.Once
	unsubscribe := s.Subscribe(func(ev Event) {
		if ev.Chunk != "" {
			once.Do(func() { close(first) })
		}
	})
	if err := s.Generate(context.Background(), verseRequest()); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	select {
	case <-first:
	case <-time.After(5 * time.Second):
		t.Fatal("first stream never produced text")
	}
	unsubscribe()

	// The second request goes to a service that completes at once.
	s.client = newFakeClient(t, &fakeService{chunks: []string{"new"}})
	if err := s.Generate(context.Background(), verseRequest()); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	snap := waitSession(t, s)
	if snap.State != Completed || snap.Text != "new" {
		t.Errorf("snapshot = %v %q", snap.State, snap.Text)
	}
}

func TestSessionRegenerateAndClear(t *testing.T) {
	svc := &fakeService{cache: "BYPASS-NEW", chunks: []string{"fresh"}}
	s := NewSession(newFakeClient(t, svc))

	if err := s.Regenerate(context.Background()); err == nil {
		t.Error("Regenerate with no prior request succeeded")
	}
	if err := s.Generate(context.Background(), verseRequest()); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	waitSession(t, s)
	if err := s.Regenerate(context.Background()); err != nil {
		t.Fatalf("Regenerate failed: %v", err)
	}
	snap := waitSession(t, s)
	req, _ := svc.lastRequest()
	if !req.Regenerate {
		t.Error("regenerate flag not sent")
	}
	if snap.Cache != CacheBypassNew {
		t.Errorf("Cache = %v", snap.Cache)
	}

	s.Clear()
	snap = s.Snapshot()
	if snap.State != Idle || snap.Text != "" || snap.HasGenerated || snap.Request != nil {
		t.Errorf("after Clear = %+v", snap)
	}
}

func TestSessionRejectsInvalid(t *testing.T) {
	s := NewSession(newFakeClient(t, &fakeService{}))
	req := verseRequest()
	req.Options.Style = "sonnet"
	if err := s.Generate(context.Background(), req); !qerrors.Is(err, qerrors.ErrInvalidInput) {
		t.Errorf("error = %v", err)
	}
	if s.Snapshot().State != Idle {
		t.Error("invalid request changed state")
	}
	if err := NewSession(nil).Generate(context.Background(), verseRequest()); !qerrors.Is(err, qerrors.ErrUnsupported) {
		t.Errorf("nil client error = %v", err)
	}
}
