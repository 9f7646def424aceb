// Package cachetest provides a behavioral test suite shared by cache adapters.
package cachetest

import (
	"context"
	"testing"
	"time"

	"github.com/deploypilot/deploypilot/internal/port/cache"
)

// RunCompliance checks the cache.Cache contract against c. settle is called
// after every write for adapters that apply writes asynchronously; it may
// be nil.
func RunCompliance(t *testing.T, c cache.Cache, settle func()) {
	t.Helper()
	ctx := context.Background()
	if settle == nil {
		settle = func() {}
	}

	t.Run("SetAndGet", func(t *testing.T) {
		if err := c.Set(ctx, "analysis:acme/site", []byte(`{"owner":"acme"}`), time.Minute); err != nil {
			t.Fatal(err)
		}
		settle()
		val, found, err := c.Get(ctx, "analysis:acme/site")
		if err != nil {
			t.Fatal(err)
		}
		if !found {
			t.Fatal("expected found after Set")
		}
		if string(val) != `{"owner":"acme"}` {
			t.Fatalf("unexpected value %s", val)
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		_, found, err := c.Get(ctx, "analysis:missing/repo")
		if err != nil {
			t.Fatal(err)
		}
		if found {
			t.Fatal("expected miss for unknown key")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		_ = c.Set(ctx, "analysis:del/repo", []byte("v"), time.Minute)
		settle()
		if err := c.Delete(ctx, "analysis:del/repo"); err != nil {
			t.Fatal(err)
		}
		settle()
		_, found, err := c.Get(ctx, "analysis:del/repo")
		if err != nil {
			t.Fatal(err)
		}
		if found {
			t.Fatal("expected miss after Delete")
		}
	})

	t.Run("DeleteMissing", func(t *testing.T) {
		if err := c.Delete(ctx, "analysis:never/existed"); err != nil {
			t.Fatalf("Delete of missing key should not error: %v", err)
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		_ = c.Set(ctx, "analysis:ow/repo", []byte("v1"), time.Minute)
		settle()
		_ = c.Set(ctx, "analysis:ow/repo", []byte("v2"), time.Minute)
		settle()
		val, found, err := c.Get(ctx, "analysis:ow/repo")
		if err != nil {
			t.Fatal(err)
		}
		if !found || string(val) != "v2" {
			t.Fatalf("expected v2 after overwrite, got %q (found=%v)", val, found)
		}
	})
}
