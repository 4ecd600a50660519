package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileCacheRoundTrip(t *testing.T) {
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if _, hit, err := c.Get(ctx, "absent"); err != nil || hit {
		t.Errorf("Get(absent) = hit %v err %v, want miss", hit, err)
	}

	if err := c.Set(ctx, "key", []byte("locked contents"), 0); err != nil {
		t.Fatal(err)
	}
	data, hit, err := c.Get(ctx, "key")
	if err != nil || !hit {
		t.Fatalf("Get = hit %v err %v, want hit", hit, err)
	}
	if string(data) != "locked contents" {
		t.Errorf("Get = %q", data)
	}

	if err := c.Delete(ctx, "key"); err != nil {
		t.Fatal(err)
	}
	if _, hit, _ := c.Get(ctx, "key"); hit {
		t.Error("Get after Delete should miss")
	}
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("deleting a missing key: %v", err)
	}
}

func TestFileCacheExpiration(t *testing.T) {
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := c.Set(ctx, "key", []byte("x"), -time.Second); err != nil {
		t.Fatal(err)
	}
	if _, hit, _ := c.Get(ctx, "key"); hit {
		t.Error("expired entry should miss")
	}
}

func TestNullCacheAlwaysMisses(t *testing.T) {
	c := NewNullCache()
	ctx := context.Background()
	if err := c.Set(ctx, "key", []byte("x"), 0); err != nil {
		t.Fatal(err)
	}
	if _, hit, _ := c.Get(ctx, "key"); hit {
		t.Error("null cache should never hit")
	}
}

func TestCompileKeyTracksInputs(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.in")
	b := filepath.Join(dir, "b.in")
	if err := os.WriteFile(a, []byte("click\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte("requests\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	key1 := CompileKey("pip-compile", []string{a, b})
	if key2 := CompileKey("pip-compile", []string{b, a}); key2 != key1 {
		t.Error("key should not depend on input order")
	}
	if key2 := CompileKey("uv", []string{a, b}); key2 == key1 {
		t.Error("key should depend on resolver identity")
	}

	if err := os.WriteFile(a, []byte("click<9\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if key2 := CompileKey("pip-compile", []string{a, b}); key2 == key1 {
		t.Error("key should change with file contents")
	}
}
