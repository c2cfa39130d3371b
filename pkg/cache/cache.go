// Package cache stores completed search results per query for a short time.
//
// Entries are keyed by the lower-cased, trimmed query and expire lazily: an
// entry older than the TTL is discarded when it is next read. Empty result
// sets are cached too, so a failing query is not retried on every keystroke.
package cache

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rubiojr/marketsearch/pkg/normalize"
)

const DefaultTTL = 2 * time.Minute

// Store is a search result cache.
type Store interface {
	Get(key string) ([]normalize.Result, bool)
	Set(key string, items []normalize.Result)
	Stats() Stats
	Clear() error
	Close() error
}

// Stats reports cache activity since the store was opened.
type Stats struct {
	Entries int    `json:"entries"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Writes  uint64 `json:"writes"`
	Expired uint64 `json:"expired"`
	TTL     string `json:"ttl"`
	Backend string `json:"backend"`
}

// Key normalizes a query into a cache key. A module subset, when given,
// is appended so restricted searches do not share entries with full ones.
func Key(query string, modules ...string) string {
	key := strings.ToLower(strings.TrimSpace(query))
	if len(modules) > 0 {
		key += "#" + strings.Join(modules, ",")
	}
	return key
}

type Options struct {
	TTL time.Duration
	// Now returns the current time; tests replace it to move the clock.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

type counters struct {
	hits, misses, writes, expired atomic.Uint64
}

func (c *counters) stats(entries int, ttl time.Duration, backend string) Stats {
	return Stats{
		Entries: entries,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Writes:  c.writes.Load(),
		Expired: c.expired.Load(),
		TTL:     ttl.String(),
		Backend: backend,
	}
}

type entry struct {
	items      []normalize.Result
	insertedAt time.Time
}

// Memory is an in-process Store.
type Memory struct {
	opts    Options
	mu      sync.Mutex
	entries map[string]entry
	counters
}

func NewMemory(opts Options) *Memory {
	return &Memory{
		opts:    opts.withDefaults(),
		entries: make(map[string]entry),
	}
}

func (m *Memory) Get(key string) ([]normalize.Result, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		m.misses.Add(1)
		return nil, false
	}
	if m.opts.Now().Sub(e.insertedAt) >= m.opts.TTL {
		delete(m.entries, key)
		m.expired.Add(1)
		m.misses.Add(1)
		return nil, false
	}
	m.hits.Add(1)
	return e.items, true
}

func (m *Memory) Set(key string, items []normalize.Result) {
	if items == nil {
		items = []normalize.Result{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry{items: items, insertedAt: m.opts.Now()}
	m.writes.Add(1)
}

func (m *Memory) Stats() Stats {
	m.mu.Lock()
	n := len(m.entries)
	m.mu.Unlock()
	return m.counters.stats(n, m.opts.TTL, "memory")
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]entry)
	return nil
}

func (m *Memory) Close() error {
	return nil
}
