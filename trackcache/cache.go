// Package trackcache keeps per-album tracklists, persisted between runs so
// top albums are not re-fetched every pipeline run.
package trackcache

import (
	"sync"
	"time"

	"albumrank/aggregate"
)

// Entry is one cached tracklist with the time it was fetched.
type Entry struct {
	FetchedAt time.Time             `json:"fetchedAt"`
	Tracks    []aggregate.TrackView `json:"tracks"`
}

// Cache is safe for concurrent keyed inserts; the backfill workers each write
// their own album id, never the same key twice.
type Cache struct {
	mu      sync.Mutex
	entries map[string]Entry
	ttl     time.Duration
}

func New(ttl time.Duration) *Cache {
	return &Cache{entries: map[string]Entry{}, ttl: ttl}
}

// Fresh returns the cached tracklist when the entry exists, is non-empty and
// is younger than the TTL. Empty entries are treated as stale so a previously
// failed fetch gets retried.
func (c *Cache) Fresh(albumID string, now time.Time) ([]aggregate.TrackView, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[albumID]
	if !ok || len(entry.Tracks) == 0 {
		return nil, false
	}
	if now.Sub(entry.FetchedAt) > c.ttl {
		return nil, false
	}
	return entry.Tracks, true
}

// Put overwrites the album's entry with a freshly fetched tracklist.
func (c *Cache) Put(albumID string, entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[albumID] = entry
}

// Snapshot copies the entries for persistence.
func (c *Cache) Snapshot() map[string]Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	snapshot := make(map[string]Entry, len(c.entries))
	for id, entry := range c.entries {
		snapshot[id] = entry
	}
	return snapshot
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
