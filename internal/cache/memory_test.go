package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeNow struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeNow) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeNow) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func newTestCache(t *testing.T) (*MemoryCache, *fakeNow) {
	t.Helper()
	now := &fakeNow{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := newMemoryCache(now.Now, time.Hour)
	t.Cleanup(func() { c.Close() })
	return c, now
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c, now := newTestCache(t)

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := c.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("Get = %q, %v", got, err)
	}
	if ok, _ := c.Exists(ctx, "k"); !ok {
		t.Error("Exists = false before expiry")
	}

	now.Advance(2 * time.Minute)

	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get after expiry err = %v, want ErrCacheMiss", err)
	}
	if ok, _ := c.Exists(ctx, "k"); ok {
		t.Error("Exists = true after expiry")
	}
	if n := c.removeExpired(); n != 1 {
		t.Errorf("removeExpired = %d, want 1", n)
	}
	if c.size() != 0 {
		t.Errorf("size = %d, want 0", c.size())
	}
}

func TestMemoryCacheReturnsCopies(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	value := []byte("abc")
	c.Set(ctx, "k", value, time.Minute)
	value[0] = 'z'

	got, _ := c.Get(ctx, "k")
	if string(got) != "abc" {
		t.Errorf("stored value changed with caller's slice: %q", got)
	}
	got[1] = 'z'
	again, _ := c.Get(ctx, "k")
	if string(again) != "abc" {
		t.Errorf("stored value changed with returned slice: %q", again)
	}
}

func TestMemoryCacheTake(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	c.Set(ctx, "reset:abc", []byte("user-1"), time.Hour)

	got, err := c.Take(ctx, "reset:abc")
	if err != nil || string(got) != "user-1" {
		t.Fatalf("Take = %q, %v", got, err)
	}
	if _, err := c.Take(ctx, "reset:abc"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("second Take err = %v, want ErrCacheMiss", err)
	}
}

func TestMemoryCacheGetOrSet(t *testing.T) {
	ctx := context.Background()

	t.Run("computes once", func(t *testing.T) {
		c, _ := newTestCache(t)
		var calls int32
		release := make(chan struct{})
		fn := func() ([]byte, error) {
			atomic.AddInt32(&calls, 1)
			<-release
			return []byte("product"), nil
		}

		var wg sync.WaitGroup
		results := make([]string, 8)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				v, err := c.GetOrSet(ctx, "barcode:123", time.Minute, fn)
				if err != nil {
					t.Errorf("GetOrSet: %v", err)
				}
				results[i] = string(v)
			}(i)
		}
		time.Sleep(20 * time.Millisecond)
		close(release)
		wg.Wait()

		if n := atomic.LoadInt32(&calls); n != 1 {
			t.Errorf("loader called %d times, want 1", n)
		}
		for i, r := range results {
			if r != "product" {
				t.Errorf("result %d = %q", i, r)
			}
		}
	})

	t.Run("errors are not cached", func(t *testing.T) {
		c, _ := newTestCache(t)
		boom := errors.New("lookup failed")

		_, err := c.GetOrSet(ctx, "k", time.Minute, func() ([]byte, error) { return nil, boom })
		if !errors.Is(err, boom) {
			t.Fatalf("err = %v, want %v", err, boom)
		}
		v, err := c.GetOrSet(ctx, "k", time.Minute, func() ([]byte, error) { return []byte("ok"), nil })
		if err != nil || string(v) != "ok" {
			t.Errorf("retry = %q, %v", v, err)
		}
	})
}

func TestMemoryCacheDelete(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	c.Set(ctx, "a", []byte("1"), time.Minute)
	c.Set(ctx, "b", []byte("2"), time.Minute)
	c.Delete(ctx, "a")
	if c.size() != 1 {
		t.Errorf("size after Delete = %d, want 1", c.size())
	}
	if ok, _ := c.Exists(ctx, "a"); ok {
		t.Error("deleted key still exists")
	}
}
