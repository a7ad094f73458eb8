package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPredictionCache_SaveGet(t *testing.T) {
	tmp := t.TempDir()
	c := &PredictionCache{Dir: tmp}
	key := KeyFrom("model", "prompt")
	data := []byte(`{"labels":[{"index":0,"label":"body","confidence":0.9}]}`)
	if err := c.Save(context.Background(), key, data); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := c.Get(context.Background(), key)
	if err != nil || !ok {
		t.Fatalf("get: %v ok=%v", err, ok)
	}
	if string(got) != string(data) {
		t.Fatalf("mismatch")
	}
}

func TestPredictionCache_LRUEnforcement(t *testing.T) {
	tmp := t.TempDir()
	c := &PredictionCache{Dir: tmp}
	// Create three entries
	keys := []string{KeyFrom("m", "p1"), KeyFrom("m", "p2"), KeyFrom("m", "p3")}
	for i, k := range keys {
		if err := c.Save(context.Background(), k, []byte(fmt.Sprintf("%d", i))); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
		// Ensure distinct mtimes by sleeping a tiny amount
		time.Sleep(10 * time.Millisecond)
	}
	// Touch p2 to be most recently used
	if _, ok, _ := c.Get(context.Background(), keys[1]); !ok {
		t.Fatal("expected hit")
	}
	// Enforce count=2 should evict oldest (p1) not recently touched
	removed, err := EnforceLimits(tmp, 0, 2)
	if err != nil {
		t.Fatalf("enforce: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if _, ok, _ := c.Get(context.Background(), keys[0]); ok {
		t.Fatal("expected oldest evicted")
	}
}

func TestPredictionCache_StrictPerms(t *testing.T) {
	t.Parallel()
	base := t.TempDir()
	dir := filepath.Join(base, "predictions")
	c := &PredictionCache{Dir: dir, StrictPerms: true}
	key := KeyFrom("model", "prompt")
	data := []byte(`{"ok":true}`)
	if err := c.Save(context.Background(), key, data); err != nil {
		t.Fatalf("save: %v", err)
	}
	// Directory should exist with 0700
	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("stat dir: %v", err)
	}
	if got := info.Mode() & 0o777; got != 0o700 {
		t.Fatalf("dir mode = %o, want 0700", got)
	}
	// File should be 0600
	p := filepath.Join(dir, key+".json")
	finfo, err := os.Stat(p)
	if err != nil {
		t.Fatalf("stat file: %v", err)
	}
	if got := finfo.Mode() & 0o777; got != 0o600 {
		t.Fatalf("file mode = %o, want 0600", got)
	}
}

func TestPurgeByAgeRemovesStaleEntries(t *testing.T) {
	tmp := t.TempDir()
	c := &PredictionCache{Dir: tmp}
	key := KeyFrom("m", "old")
	if err := c.Save(context.Background(), key, []byte("x")); err != nil {
		t.Fatalf("save: %v", err)
	}
	stale := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(filepath.Join(tmp, key+".json"), stale, stale); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	removed, err := PurgeByAge(tmp, 24*time.Hour)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
}
