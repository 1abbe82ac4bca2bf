package pantry

import (
	"context"
	"errors"
	"testing"
	"time"

	"pantrypal-api/internal/logging"
	"pantrypal-api/internal/model"
	"pantrypal-api/internal/testutil"
)

func newTestHub(store Store) (*Hub, *testutil.StubClock) {
	clk := testutil.NewStubClock(testNow)
	h := NewHub(store, nil, clk, logging.NewNopLogger(), HubConfig{
		IdleTimeout:  30 * time.Minute,
		ReapInterval: time.Hour,
	})
	return h, clk
}

func TestHubAcquire(t *testing.T) {
	store := &fakeStore{}
	h, _ := newTestHub(store)
	defer h.Close()

	first, release1 := h.Acquire(alice)
	second, release2 := h.Acquire(alice)
	defer release1()
	defer release2()

	if first != second {
		t.Error("the same user should get the same service")
	}
	other, release3 := h.Acquire(bob)
	defer release3()
	if other == first {
		t.Error("different users must not share a service")
	}
	if u := first.User(); u == nil || u.ID != "alice" {
		t.Errorf("service user = %+v", u)
	}

	store.feed(t, 1)
	if n := store.watchCount(); n != 2 {
		t.Errorf("watch opened %d times, want 2", n)
	}

	st := h.Stats()
	if st.Active != 2 || st.InUse != 2 {
		t.Errorf("stats = %+v", st)
	}
	if len(st.UserIDs) != 2 || st.UserIDs[0] != "alice" || st.UserIDs[1] != "bob" {
		t.Errorf("user ids = %v", st.UserIDs)
	}
}

func TestHubReapIdle(t *testing.T) {
	store := &fakeStore{}
	h, clk := newTestHub(store)
	defer h.Close()

	_, releaseAlice := h.Acquire(alice)
	_, releaseBob := h.Acquire(bob)
	defer releaseBob()

	releaseAlice()
	releaseAlice() // second call is a no-op

	clk.Advance(31 * time.Minute)

	if n := h.ReapIdle(); n != 1 {
		t.Fatalf("reaped %d sessions, want 1 (bob is still held)", n)
	}
	st := h.Stats()
	if st.Active != 1 || st.UserIDs[0] != "bob" {
		t.Errorf("stats after reap = %+v", st)
	}

	// A fresh acquire after reaping opens a new session.
	svc, release := h.Acquire(alice)
	defer release()
	if svc.User() == nil {
		t.Error("new session has no user")
	}
}

func TestHubRelease(t *testing.T) {
	store := &fakeStore{}
	h, _ := newTestHub(store)
	defer h.Close()

	svc, release := h.Acquire(alice)
	release()
	store.feed(t, 0)

	h.Release("alice")

	if h.Stats().Active != 0 {
		t.Error("session still registered after Release")
	}
	if svc.User() != nil {
		t.Error("released service should be signed out")
	}
	h.Release("nobody")
}

func TestHubClose(t *testing.T) {
	store := &fakeStore{}
	h, _ := newTestHub(store)
	h.Start()

	h.Acquire(&model.User{ID: "carol"})
	store.feed(t, 0)

	h.Close()
	h.Close()

	if h.Stats().Active != 0 {
		t.Error("sessions remain after Close")
	}
	store.mu.Lock()
	ctx := store.ctxs[0]
	store.mu.Unlock()
	if ctx.Err() == nil {
		t.Error("subscription still active after Close")
	}
}

func TestHubAcquireAfterClose(t *testing.T) {
	store := &fakeStore{}
	h, _ := newTestHub(store)
	h.Close()

	svc, release := h.Acquire(alice)
	defer release()

	if n := store.watchCount(); n != 0 {
		t.Errorf("Acquire after Close opened %d subscriptions", n)
	}
	if svc.User() != nil {
		t.Error("service handed out after Close should be signed out")
	}
	if _, ok := <-svc.Watch(context.Background()); ok {
		t.Error("Watch on a service handed out after Close should be closed")
	}
	if err := svc.DeleteItem(context.Background(), "x"); !errors.Is(err, ErrAuthRequired) {
		t.Errorf("DeleteItem err = %v, want ErrAuthRequired", err)
	}
	if h.Stats().Active != 0 {
		t.Error("Acquire after Close should not register a session")
	}
}
