package driver

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"dcir/internal/ir"
	"dcir/internal/listing"
)

// Current schema version - increment when the snapshot format changes.
const diskCacheSchemaVersion uint16 = 1

// DiskCache stores built and transformed functions keyed by listing digest.
// Thread-safe for concurrent access.
type DiskCache struct {
	mu  sync.RWMutex
	dir string
}

// diskPayload is what one cache file holds.
type diskPayload struct {
	Schema   uint16
	Passes   []string
	Function *ir.FunctionSnapshot
}

// OpenDiskCache initializes and returns a disk cache at the standard location.
func OpenDiskCache(app string) (*DiskCache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	return NewDiskCache(filepath.Join(base, app))
}

// NewDiskCache returns a cache rooted at dir, creating it if needed.
func NewDiskCache(dir string) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir}, nil
}

// Dir returns the cache root.
func (c *DiskCache) Dir() string {
	if c == nil {
		return ""
	}
	return c.dir
}

// CacheKey identifies one function of one listing after a given pass list.
func CacheKey(content listing.Digest, function string, passes []string) listing.Digest {
	parts := make([]string, 0, len(passes)+1)
	parts = append(parts, function)
	parts = append(parts, passes...)
	return listing.Combine(content, parts...)
}

func (c *DiskCache) pathFor(key listing.Digest) string {
	return filepath.Join(c.dir, "funcs", key.String()+".mp")
}

// Put serializes f and writes it to the disk cache.
func (c *DiskCache) Put(key listing.Digest, passes []string, f *ir.Function) (err error) {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if rmErr := os.Remove(tmp.Name()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
			err = fmt.Errorf("failed to remove temp file: %w", rmErr)
		}
	}()

	enc := msgpack.NewEncoder(tmp)
	payload := diskPayload{Schema: diskCacheSchemaVersion, Passes: passes, Function: ir.Snapshot(f)}
	if err := enc.Encode(&payload); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	// Atomic replace
	return os.Rename(tmp.Name(), p)
}

// Get reads and restores a function from the disk cache. A missing entry
// or one written with another schema is a miss, not an error.
func (c *DiskCache) Get(key listing.Digest) (*ir.Function, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()

	var payload diskPayload
	if err := msgpack.NewDecoder(f).Decode(&payload); err != nil {
		return nil, false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	if payload.Schema != diskCacheSchemaVersion || payload.Function == nil {
		return nil, false, nil
	}
	fn, err := ir.Restore(payload.Function)
	if err != nil {
		return nil, false, fmt.Errorf("restore cache entry %s: %w", key, err)
	}
	return fn, true, nil
}

// DropAll invalidates the cache, useful after format changes.
func (c *DiskCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := os.RemoveAll(old); err != nil {
		return err
	}
	return os.MkdirAll(c.dir, 0o755)
}
