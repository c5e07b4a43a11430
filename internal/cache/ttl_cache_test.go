package cache

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func TestGetRespectsTTL(t *testing.T) {
	mock := clock.NewMock()
	c := NewWithClock[string, int](mock, time.Minute, time.Hour)
	defer c.Close()

	c.Set("a", 1)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("expected hit, got %d %v", v, ok)
	}

	mock.Add(2 * time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected expired entry to miss")
	}
}

func TestEvictExpiredCallsOnEvict(t *testing.T) {
	mock := clock.NewMock()
	c := NewWithClock[string, int](mock, time.Minute, time.Hour)
	defer c.Close()

	var evicted []string
	c.OnEvict(func(k string, _ int) { evicted = append(evicted, k) })

	c.Set("old", 1)
	mock.Add(90 * time.Second)
	c.Set("fresh", 2)

	c.evictExpired()

	if len(evicted) != 1 || evicted[0] != "old" {
		t.Fatalf("expected only old to be evicted, got %v", evicted)
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 entry left, got %d", c.Len())
	}
}

func TestDeleteSkipsCallback(t *testing.T) {
	c := New[string, int](time.Minute, time.Hour)
	defer c.Close()

	called := false
	c.OnEvict(func(string, int) { called = true })
	c.Set("a", 7)

	v, ok := c.Delete("a")
	if !ok || v != 7 {
		t.Fatalf("expected deleted value 7, got %d %v", v, ok)
	}
	if called {
		t.Fatal("Delete must not invoke the eviction callback")
	}
	if _, ok := c.Delete("a"); ok {
		t.Fatal("second delete should miss")
	}
}
