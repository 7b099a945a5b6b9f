// file: internal/cache/memory_test.go
// version: 2.1.0
// guid: 115a7e72-e90f-4273-8530-9cc5cb79ee73

package cache

import (
	"testing"
	"time"
)

func TestMemoryGetSet(t *testing.T) {
	c := NewMemory[[]string](0)
	c.Set("artist-1", []string{"indie rock"})
	v, ok := c.Get("artist-1")
	if !ok || len(v) != 1 || v[0] != "indie rock" {
		t.Fatalf("expected cached genres, got %v ok=%v", v, ok)
	}
}

func TestMemoryExpiry(t *testing.T) {
	now := time.Now()
	c := NewMemory[int](time.Minute)
	c.now = func() time.Time { return now }
	c.Set("k", 42)

	c.now = func() time.Time { return now.Add(2 * time.Minute) }
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected expired entry")
	}
}

func TestMemoryZeroTTLNeverExpires(t *testing.T) {
	now := time.Now()
	c := NewMemory[int](0)
	c.now = func() time.Time { return now }
	c.Set("k", 1)
	c.now = func() time.Time { return now.Add(24 * 365 * time.Hour) }
	if _, ok := c.Get("k"); !ok {
		t.Fatal("expected entry to survive")
	}
}

func TestMemoryInvalidateAll(t *testing.T) {
	c := NewMemory[int](time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.InvalidateAll()
	if c.Len() != 0 {
		t.Fatal("expected all invalidated")
	}
}
