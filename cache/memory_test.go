package cache

import (
	"context"
	"testing"
	"time"

	"github.com/iMDK-cs/SmoothFLow-Store-sub001/models"
)

func testService(id int, title string) *models.Service {
	return &models.Service{ID: id, Title: title, Price: 49.99, Active: true, Available: true}
}

func TestMemoryCache_SetAndGet(t *testing.T) {
	c := NewMemoryCache(time.Minute, 10)
	ctx := context.Background()

	c.Set(ctx, 1, testService(1, "Deep Clean"))

	svc, ok := c.Get(ctx, 1)
	if !ok {
		t.Fatal("Expected cache hit")
	}
	if svc.Title != "Deep Clean" {
		t.Errorf("Expected title %q, got %q", "Deep Clean", svc.Title)
	}

	if _, ok := c.Get(ctx, 2); ok {
		t.Error("Expected cache miss for unknown id")
	}
}

func TestMemoryCache_TTLExpiry(t *testing.T) {
	c := NewMemoryCache(time.Minute, 10)
	ctx := context.Background()

	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return current }

	c.Set(ctx, 1, testService(1, "Deep Clean"))

	if _, ok := c.Get(ctx, 1); !ok {
		t.Fatal("Expected hit before TTL")
	}

	current = current.Add(61 * time.Second)
	if _, ok := c.Get(ctx, 1); ok {
		t.Error("Expected miss after TTL elapsed")
	}
}

func TestMemoryCache_EvictsOldestInserted(t *testing.T) {
	c := NewMemoryCache(time.Minute, 2)
	ctx := context.Background()

	c.Set(ctx, 1, testService(1, "One"))
	c.Set(ctx, 2, testService(2, "Two"))
	c.Set(ctx, 3, testService(3, "Three"))

	if _, ok := c.Get(ctx, 1); ok {
		t.Error("Expected oldest entry to be evicted")
	}
	if _, ok := c.Get(ctx, 2); !ok {
		t.Error("Expected entry 2 to survive")
	}
	if _, ok := c.Get(ctx, 3); !ok {
		t.Error("Expected entry 3 to survive")
	}
}

func TestMemoryCache_DeleteInvalidates(t *testing.T) {
	c := NewMemoryCache(time.Minute, 10)
	ctx := context.Background()

	c.Set(ctx, 1, testService(1, "One"))
	c.Delete(ctx, 1)

	if _, ok := c.Get(ctx, 1); ok {
		t.Error("Expected miss after delete")
	}

	// Replacing an existing id must not count as a second insertion.
	c.Set(ctx, 1, testService(1, "One"))
	c.Set(ctx, 1, testService(1, "One again"))
	svc, ok := c.Get(ctx, 1)
	if !ok || svc.Title != "One again" {
		t.Errorf("Expected updated entry, got %+v ok=%v", svc, ok)
	}
}
