// Package cache stores fetched provider responses on disk so that diff
// and validate runs against unchanged upstreams skip the network.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// retentionFactor controls how long an expired entry is kept for
// conditional revalidation before the sweep reclaims it.
const retentionFactor = 10

// Entry represents a cached HTTP response.
type Entry struct {
	URL        string    `json:"url"`
	Body       []byte    `json:"body"`
	ETag       string    `json:"etag,omitempty"`
	LastMod    string    `json:"last_modified,omitempty"`
	StatusCode int       `json:"status_code"`
	CachedAt   time.Time `json:"cached_at"`
}

// FileCache provides TTL-based file caching for HTTP responses. Expired
// entries stay on disk past their TTL so revalidation with ETag or
// If-Modified-Since can still save a full transfer; entries stale beyond
// retentionFactor times the TTL are swept on open.
type FileCache struct {
	dir string
	ttl time.Duration
}

// New creates a file cache rooted at dir and sweeps entries too old to
// be worth revalidating.
func New(dir string, ttl time.Duration) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}
	c := &FileCache{dir: dir, ttl: ttl}
	c.sweep()
	return c, nil
}

// Get retrieves a cached entry. The second return is true only when the
// entry is still within its TTL; an expired entry is still returned so
// callers can revalidate with ETag/If-Modified-Since.
func (c *FileCache) Get(key string) (*Entry, bool) {
	path := c.path(key)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		os.Remove(path)
		return nil, false
	}

	if time.Since(entry.CachedAt) > c.ttl {
		return &entry, false
	}

	return &entry, true
}

// Set stores an entry. The write goes through a temp-file rename so a
// crash never leaves a torn cache file that Get would then discard.
func (c *FileCache) Set(key string, entry *Entry) error {
	entry.URL = key
	entry.CachedAt = time.Now()
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling cache entry: %w", err)
	}
	path := c.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return os.Rename(tmp, path)
}

// Delete drops one entry. Used when the upstream reports the URL gone,
// so a later run does not revalidate against a dead resource.
func (c *FileCache) Delete(key string) {
	os.Remove(c.path(key))
}

// sweep removes entries so stale that revalidation would no longer save
// anything, plus leftover temp files from interrupted writes. Best
// effort; a failed sweep never blocks the cache.
func (c *FileCache) sweep() {
	files, err := os.ReadDir(c.dir)
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-time.Duration(retentionFactor) * c.ttl)
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		path := filepath.Join(c.dir, f.Name())
		if filepath.Ext(f.Name()) == ".tmp" {
			os.Remove(path)
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(path)
		}
	}
}

func (c *FileCache) path(key string) string {
	h := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(h[:]))
}
