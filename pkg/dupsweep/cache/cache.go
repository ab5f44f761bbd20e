// Package cache persists file digests between runs so unchanged files need
// not be read again. An entry is keyed by algorithm and absolute path and is
// only trusted while the file's size and modification time match exactly.
package cache

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/adrg/xdg"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/types"
)

// DefaultPath returns the default cache directory,
// $XDG_CACHE_HOME/dupsweep/digests.
func DefaultPath() string {
	return filepath.Join(xdg.CacheHome, "dupsweep", "digests")
}

// Stats describes the contents of a cache and the hits and misses recorded
// since it was opened.
type Stats struct {
	Path     string         `json:"path"`
	Entries  int            `json:"entries"`
	ByAlg    map[string]int `json:"by_algorithm"`
	Hits     int64          `json:"hits"`
	Misses   int64          `json:"misses"`
	DiskSize int64          `json:"disk_size"`
}

// Cache provides digest caching for scans.
type Cache struct {
	path  string
	store *Store

	hits   atomic.Int64
	misses atomic.Int64
}

// Open opens or creates a cache at the given directory.
func Open(path string) (*Cache, error) {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	store, err := OpenStore(path)
	if err != nil {
		return nil, fmt.Errorf("opening cache at %s: %w", path, err)
	}

	return &Cache{path: path, store: store}, nil
}

// Close closes the cache.
func (c *Cache) Close() error {
	return c.store.Close()
}

// Path returns the cache directory.
func (c *Cache) Path() string {
	return c.path
}

// Lookup returns the cached digest for path if one exists for algorithm and
// it was computed for a file of exactly this size and mtime.
func (c *Cache) Lookup(algorithm, path string, size int64, mtime time.Time) (types.Digest, bool) {
	entry, err := c.store.Get(algorithm, path)
	if err != nil || !entry.Matches(size, mtime) || len(entry.Digest) == 0 {
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return types.Digest(entry.Digest), true
}

// Store records the digest computed for path, replacing any stale entry.
func (c *Cache) Store(algorithm, path string, size int64, mtime time.Time, digest types.Digest) error {
	return c.store.Put(algorithm, path, &Entry{
		Size:   size,
		Mtime:  mtime.UnixNano(),
		Digest: bytes.Clone(digest),
	})
}

// Forget removes the entry for path, if any.
func (c *Cache) Forget(algorithm, path string) error {
	err := c.store.Delete(algorithm, path)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// Clear removes cached digests. With no algorithms every entry is removed.
func (c *Cache) Clear(algorithms ...string) error {
	if len(algorithms) == 0 {
		return c.store.DeleteAll()
	}
	for _, alg := range algorithms {
		if err := c.store.DeletePrefix(alg); err != nil {
			return fmt.Errorf("clearing %s entries: %w", alg, err)
		}
	}
	return nil
}

// Stats counts the cached entries.
func (c *Cache) Stats() (Stats, error) {
	counts, err := c.store.Count()
	if err != nil {
		return Stats{}, err
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	lsm, vlog := c.store.Size()

	return Stats{
		Path:     c.path,
		Entries:  total,
		ByAlg:    counts,
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		DiskSize: lsm + vlog,
	}, nil
}
