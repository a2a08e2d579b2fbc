package cache

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/secmon-lab/gridcore/pkg/domain/model"
)

// Entry is an immutable cached payload
type Entry struct {
	Key       string
	Payload   json.RawMessage
	Timestamp time.Time
}

// Expired reports whether the entry is older than ttl at now. A ttl of zero
// or less disables caching for the caller, so every entry is expired.
func (e Entry) Expired(ttl time.Duration, now time.Time) bool {
	if ttl <= 0 {
		return true
	}
	return now.Sub(e.Timestamp) > ttl
}

// Cache maps an (endpoint, params) signature to the last payload fetched for
// it. It is shared by option resolution and list loading. There is no
// eviction; entries go away through Invalidate or Clear.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

// Option configures a Cache
type Option func(*Cache)

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates an empty cache
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]Entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key builds the canonical cache key: endpoint, "?" and the parameters
// encoded in name order. It is a pure function of its input.
func Key(endpoint string, params model.Params) string {
	return endpoint + "?" + params.Values().Encode()
}

// Get returns the entry stored for endpoint and params
func (c *Cache) Get(endpoint string, params model.Params) (Entry, bool) {
	key := Key(endpoint, params)

	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

// Set stores payload, replacing any previous entry for the same key
func (c *Cache) Set(endpoint string, params model.Params, payload json.RawMessage) Entry {
	e := Entry{
		Key:       Key(endpoint, params),
		Payload:   append(json.RawMessage(nil), payload...),
		Timestamp: c.now(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[e.Key] = e
	return e
}

// Invalidate drops cached payloads of endpoint. With params only the matching
// entry goes; without, every entry whose key starts with the endpoint (query
// string removed) is dropped.
func (c *Cache) Invalidate(endpoint string, params ...model.Params) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(params) > 0 {
		for _, p := range params {
			delete(c.entries, Key(endpoint, p))
		}
		return
	}

	prefix, _, _ := strings.Cut(endpoint, "?")
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
}

// Clear drops every entry
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry)
}

// Len returns the number of entries
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Now returns the current time of the cache clock
func (c *Cache) Now() time.Time {
	return c.now()
}
