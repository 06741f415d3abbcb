package driver_test

import (
	"os"
	"path/filepath"
	"testing"

	"dcir/internal/driver"
	"dcir/internal/ir"
	"dcir/internal/listing"
)

func sampleFunction(t *testing.T) *ir.Function {
	t.Helper()
	f := ir.NewFunction("sample")
	entry := ir.NewBasicBlock(ir.Addr(0x10),
		ir.NewAssign(ir.Register("eax", 32), ir.IntConst(1, 32)),
		ir.NewGoto(ir.JumpTarget{Addr: ir.IntConst(0x20, 64)}),
	)
	exit := ir.NewBasicBlock(ir.Addr(0x20), ir.NewReturn())
	for _, b := range []*ir.BasicBlock{entry, exit} {
		if err := f.AddBasicBlock(b); err != nil {
			t.Fatalf("AddBasicBlock: %v", err)
		}
	}
	f.ResolveJumpTargets()
	return f
}

func TestDiskCachePutGet(t *testing.T) {
	cache, err := driver.NewDiskCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskCache: %v", err)
	}
	key := driver.CacheKey(listing.Sum([]byte("listing")), "sample", []string{"dce"})

	if _, ok, err := cache.Get(key); ok || err != nil {
		t.Fatalf("empty cache: ok=%v err=%v", ok, err)
	}
	if err := cache.Put(key, []string{"dce"}, sampleFunction(t)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := cache.Get(key)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.Name != "sample" || got.Len() != 2 {
		t.Fatalf("restored %s with %d blocks", got.Name, got.Len())
	}
	entry := got.BlockAt(0x10)
	if succ := got.Successors(entry); len(succ) != 1 || succ[0] != got.BlockAt(0x20) {
		t.Fatalf("restored edges = %v", succ)
	}
}

func TestDiskCacheKeysDiffer(t *testing.T) {
	d := listing.Sum([]byte("listing"))
	a := driver.CacheKey(d, "f", []string{"dce", "fallthrough"})
	b := driver.CacheKey(d, "f", []string{"fallthrough", "dce"})
	c := driver.CacheKey(d, "g", []string{"dce", "fallthrough"})
	if a == b || a == c {
		t.Fatalf("cache keys collide: %s %s %s", a, b, c)
	}
}

func TestDiskCacheCorruptEntry(t *testing.T) {
	dir := t.TempDir()
	cache, err := driver.NewDiskCache(dir)
	if err != nil {
		t.Fatalf("NewDiskCache: %v", err)
	}
	key := driver.CacheKey(listing.Sum([]byte("x")), "f", nil)
	path := filepath.Join(dir, "funcs", key.String()+".mp")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte{0xc1, 0xc1, 0xc1}, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := cache.Get(key); ok || err == nil {
		t.Fatalf("corrupt entry: ok=%v err=%v, want error", ok, err)
	}
}

func TestNilDiskCache(t *testing.T) {
	var cache *driver.DiskCache
	if err := cache.Put(listing.Digest{}, nil, sampleFunction(t)); err != nil {
		t.Fatalf("nil Put: %v", err)
	}
	if _, ok, err := cache.Get(listing.Digest{}); ok || err != nil {
		t.Fatalf("nil Get: ok=%v err=%v", ok, err)
	}
	if err := cache.DropAll(); err != nil {
		t.Fatalf("nil DropAll: %v", err)
	}
}
