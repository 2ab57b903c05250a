package cache

import (
	"bytes"
	"sync"
	"testing"
	"time"
)

func TestKey(t *testing.T) {
	if got := Key("lead2", "funnel", "2026-08-28-14"); got != "lead2|funnel|2026-08-28-14" {
		t.Fatalf("Key = %q", got)
	}
}

func TestCacheExpiry(t *testing.T) {
	now := time.Date(2026, 8, 28, 14, 0, 0, 0, time.UTC)
	c := NewWithClock(func() time.Time { return now })

	c.Put("k", []byte("v"), 15*time.Minute)

	data, ok := c.Get("k")
	if !ok || !bytes.Equal(data, []byte("v")) {
		t.Fatalf("Get = %q, %v; want v, true", data, ok)
	}

	now = now.Add(14 * time.Minute)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry expired before its TTL")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Fatal("entry survived past its TTL")
	}
}

func TestCacheOverwrite(t *testing.T) {
	c := New()
	c.Put("k", []byte("old"), time.Minute)
	c.Put("k", []byte("new"), time.Minute)

	data, ok := c.Get("k")
	if !ok || string(data) != "new" {
		t.Fatalf("Get = %q, %v; want new, true", data, ok)
	}
	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1", c.Len())
	}
}

func TestCachePutSweepsExpired(t *testing.T) {
	now := time.Date(2026, 8, 28, 14, 0, 0, 0, time.UTC)
	c := NewWithClock(func() time.Time { return now })

	c.Put("a", []byte("1"), time.Minute)
	c.Put("b", []byte("2"), time.Minute)

	now = now.Add(2 * time.Minute)
	c.Put("c", []byte("3"), time.Minute)

	if c.Len() != 1 {
		t.Fatalf("Len = %d after sweep, want 1", c.Len())
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Put("shared", []byte("v"), time.Minute)
				c.Get("shared")
			}
		}()
	}
	wg.Wait()

	if _, ok := c.Get("shared"); !ok {
		t.Fatal("entry missing after concurrent writes")
	}
}
