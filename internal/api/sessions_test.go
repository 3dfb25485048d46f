package api

import (
	"context"
	"testing"
	"time"

	"github.com/FocuswithJustin/QuranScope/core/corpus/corpustest"
	"github.com/FocuswithJustin/QuranScope/core/reader"
)

func newTestStore(t *testing.T, ttl time.Duration) (*SessionStore, *[]int) {
	t.Helper()
	src := corpustest.NewSource()
	var counts []int
	factory := func(ctx context.Context, shared *reader.Shared) *reader.Session {
		var opts []reader.Option
		if shared != nil {
			opts = append(opts, reader.WithShared(shared))
		}
		return reader.NewSession(ctx, reader.DefaultConfig(), src, nil, opts...)
	}
	st := NewSessionStore(factory, ttl, func(n int) { counts = append(counts, n) })
	st.LoadShared(context.Background(), src)
	t.Cleanup(st.Close)
	return st, &counts
}

func TestSessionStoreGet(t *testing.T) {
	st, counts := newTestStore(t, time.Hour)
	ctx := context.Background()

	a, created := st.Get(ctx, "")
	if !created || a == nil {
		t.Fatal("empty ID did not create a session")
	}
	again, created := st.Get(ctx, a.ID)
	if created || again != a {
		t.Error("known ID did not return the same session")
	}
	b, created := st.Get(ctx, "00000000-0000-0000-0000-000000000000")
	if !created || b == a {
		t.Error("unknown ID did not create a new session")
	}
	if _, created := st.Get(ctx, "not-a-uuid"); !created {
		t.Error("malformed ID reused a session")
	}
	if st.Len() != 3 {
		t.Errorf("Len = %d, want 3", st.Len())
	}
	if got := *counts; len(got) != 3 || got[2] != 3 {
		t.Errorf("change notifications = %v", got)
	}
}

func TestSessionStoreShared(t *testing.T) {
	st, _ := newTestStore(t, time.Hour)
	sh := st.Shared()
	if sh == nil || sh.Index.Len() != 6 || len(sh.Chapters) != 3 {
		t.Fatalf("shared = %+v", sh)
	}
	s, _ := st.Get(context.Background(), "")
	if s.Index() != sh.Index {
		t.Error("session did not receive the shared index")
	}
}

func TestSessionStoreSweep(t *testing.T) {
	st, _ := newTestStore(t, time.Minute)
	ctx := context.Background()
	old, _ := st.Get(ctx, "")
	fresh, _ := st.Get(ctx, "")

	if n := st.Sweep(time.Now()); n != 0 {
		t.Errorf("Sweep dropped %d fresh sessions", n)
	}
	fresh.Touch()
	if n := st.Sweep(old.LastUsed().Add(2 * time.Minute)); n == 0 {
		t.Error("Sweep kept an idle session")
	}
	if _, created := st.Get(ctx, old.ID); !created {
		t.Error("swept session still reachable")
	}
}

func TestSessionStoreNoTTL(t *testing.T) {
	st, _ := newTestStore(t, 0)
	st.Get(context.Background(), "")
	if n := st.Sweep(time.Now().Add(24 * time.Hour)); n != 0 {
		t.Errorf("Sweep without ttl dropped %d", n)
	}
}
