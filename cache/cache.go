// Package cache stores analysis results on disk, keyed by the hash of the
// analysed input, the operation name and an options fingerprint. Editing a
// dump or changing triage options therefore never serves a stale result.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Entry is one cached result.
type Entry struct {
	Key         string `json:"key"`
	ContentHash string `json:"content_hash"`

	// Operation names the producer, e.g. "triage".
	Operation string `json:"operation"`

	// Fingerprint encodes the options the payload was computed with.
	Fingerprint string `json:"fingerprint"`

	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Stats tracks cache performance.
type Stats struct {
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	Writes     int64 `json:"writes"`
	Evictions  int64 `json:"evictions"`
	TotalBytes int64 `json:"total_bytes"`
}

// Cache is a directory of JSON entry files. A disabled cache misses on every
// lookup and drops every write.
type Cache struct {
	dir     string
	ttl     time.Duration
	now     func() time.Time
	stats   Stats
	mu      sync.RWMutex
	enabled bool
}

// Options configures the cache.
type Options struct {
	// Dir is the cache directory (default: .framekit/cache)
	Dir string

	// TTL is the entry lifetime (0 = no expiry)
	TTL time.Duration

	Enabled bool
}

// DefaultOptions returns default cache options.
func DefaultOptions() Options {
	return Options{
		Dir:     filepath.Join(".framekit", "cache"),
		Enabled: true,
	}
}

// New creates the cache directory if needed.
func New(opts Options) (*Cache, error) {
	if !opts.Enabled {
		return &Cache{enabled: false, now: time.Now}, nil
	}

	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	return &Cache{
		dir:     opts.Dir,
		ttl:     opts.TTL,
		now:     time.Now,
		enabled: true,
	}, nil
}

// MakeKey derives the entry key from its three components.
func MakeKey(contentHash, operation, fingerprint string) string {
	combined := fmt.Sprintf("%s:%s:%s", contentHash, operation, fingerprint)
	hash := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(hash[:16])
}

// ContentHash computes a SHA256 hash of content.
func ContentHash(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

// Get retrieves an entry by key. Expired and unreadable entries count as
// misses; expired ones are removed.
func (c *Cache) Get(key string) (*Entry, bool) {
	if !c.enabled {
		return nil, false
	}

	c.mu.RLock()
	path := c.keyPath(key)
	data, err := os.ReadFile(path)
	c.mu.RUnlock()

	if err != nil {
		c.recordMiss()
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.recordMiss()
		return nil, false
	}

	if c.expired(entry) {
		os.Remove(path)
		c.recordMiss()
		return nil, false
	}

	c.recordHit()
	return &entry, true
}

// Lookup decodes the payload stored for the given components into v.
func (c *Cache) Lookup(contentHash, operation, fingerprint string, v any) bool {
	entry, ok := c.Get(MakeKey(contentHash, operation, fingerprint))
	if !ok {
		return false
	}
	if err := json.Unmarshal(entry.Payload, v); err != nil {
		return false
	}
	return true
}

// Set stores an entry.
func (c *Cache) Set(entry *Entry) error {
	if !c.enabled {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = c.now()
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling entry: %w", err)
	}

	if err := os.WriteFile(c.keyPath(entry.Key), data, 0644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}

	c.stats.Writes++
	c.stats.TotalBytes += int64(len(data))
	return nil
}

// Store marshals payload and caches it under the given components.
func (c *Cache) Store(contentHash, operation, fingerprint string, payload any) error {
	if !c.enabled {
		return nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}
	return c.Set(&Entry{
		Key:         MakeKey(contentHash, operation, fingerprint),
		ContentHash: contentHash,
		Operation:   operation,
		Fingerprint: fingerprint,
		Payload:     raw,
	})
}

// Clear removes all entries.
func (c *Cache) Clear() error {
	if !c.enabled {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		os.Remove(filepath.Join(c.dir, entry.Name()))
		c.stats.Evictions++
	}

	c.stats.TotalBytes = 0
	return nil
}

// Stats returns cache statistics.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// HitRate returns hits / (hits + misses).
func (c *Cache) HitRate() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := c.stats.Hits + c.stats.Misses
	if total == 0 {
		return 0
	}
	return float64(c.stats.Hits) / float64(total)
}

// Size returns the number of cached entries.
func (c *Cache) Size() int {
	if !c.enabled {
		return 0
	}

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0
	}

	count := 0
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".json" {
			count++
		}
	}
	return count
}

// Enabled returns whether caching is enabled.
func (c *Cache) Enabled() bool {
	return c.enabled
}

// Cleanup removes expired entries. It is a no-op without a TTL.
func (c *Cache) Cleanup() error {
	if !c.enabled || c.ttl == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		path := filepath.Join(c.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		var cached Entry
		if err := json.Unmarshal(data, &cached); err != nil {
			continue
		}

		if c.expired(cached) {
			os.Remove(path)
			c.stats.Evictions++
		}
	}

	return nil
}

func (c *Cache) expired(e Entry) bool {
	return c.ttl > 0 && c.now().Sub(e.CreatedAt) > c.ttl
}

func (c *Cache) keyPath(key string) string {
	return filepath.Join(c.dir, key+".json")
}

func (c *Cache) recordHit() {
	c.mu.Lock()
	c.stats.Hits++
	c.mu.Unlock()
}

func (c *Cache) recordMiss() {
	c.mu.Lock()
	c.stats.Misses++
	c.mu.Unlock()
}
