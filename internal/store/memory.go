package store

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/tidewatch/accesscore/internal/models"
)

// shardCount fixes the number of lock shards. Keys hash to a shard, so the
// read-increment-write cycle is serialized per key and keys on different
// shards never contend.
const shardCount = 32

// MemoryStore is an in-process RateLimitStore backed by sharded maps.
// It is safe for concurrent use; each key's read-increment-write cycle is
// serialized by its shard's mutex, so no updates are lost and counters for
// distinct keys do not interact.
//
// Expired entries are skipped on read and removed by Sweep. Correctness does
// not depend on Sweep running; it only bounds memory for keys that stop
// sending traffic.
type MemoryStore struct {
	shards [shardCount]memoryShard

	clockMu sync.RWMutex
	now     func() time.Time
}

type memoryShard struct {
	mu      sync.Mutex
	entries map[string]*models.RateLimitEntry
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{now: time.Now}
	for i := range s.shards {
		s.shards[i].entries = make(map[string]*models.RateLimitEntry)
	}
	return s
}

// SetClock overrides the store's clock. Test use only.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.clockMu.Lock()
	defer m.clockMu.Unlock()
	m.now = now
}

func (m *MemoryStore) clock() time.Time {
	m.clockMu.RLock()
	defer m.clockMu.RUnlock()
	return m.now()
}

func (m *MemoryStore) shard(key string) *memoryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &m.shards[h.Sum32()%shardCount]
}

// Get returns a copy of the entry for key, or nil if absent or expired.
func (m *MemoryStore) Get(_ context.Context, key string) (*models.RateLimitEntry, error) {
	now := m.clock()
	sh := m.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	entry, ok := sh.entries[key]
	if !ok || entry.Expired(now) {
		return nil, nil
	}

	copied := *entry
	return &copied, nil
}

// Incr increments the counter for key, starting a fresh window when the key
// is absent or its window has rolled over.
func (m *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (*models.RateLimitEntry, error) {
	now := m.clock()
	sh := m.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	entry, ok := sh.entries[key]
	if !ok || entry.Expired(now) {
		entry = &models.RateLimitEntry{
			Key:         key,
			Count:       0,
			WindowStart: now,
			ResetTime:   now.Add(window),
		}
		sh.entries[key] = entry
	}

	entry.Count++

	copied := *entry
	return &copied, nil
}

// Set establishes or replaces the entry for key. The ttl parameter is
// accepted for interface parity; the memory store evicts on read and sweep
// using the entry's own ResetTime.
func (m *MemoryStore) Set(_ context.Context, key string, entry *models.RateLimitEntry, _ time.Duration) error {
	sh := m.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	copied := *entry
	copied.Key = key
	sh.entries[key] = &copied
	return nil
}

// Delete removes the entry for key.
func (m *MemoryStore) Delete(_ context.Context, key string) (bool, error) {
	sh := m.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	_, ok := sh.entries[key]
	delete(sh.entries, key)
	return ok, nil
}

// Clear removes all entries.
func (m *MemoryStore) Clear(_ context.Context) error {
	for i := range m.shards {
		sh := &m.shards[i]
		sh.mu.Lock()
		sh.entries = make(map[string]*models.RateLimitEntry)
		sh.mu.Unlock()
	}
	return nil
}

// Sweep evicts logically expired entries and reports how many were removed.
// The background sweeper calls this periodically. Shards are swept one at a
// time, so in-flight increments on other shards are never held up.
func (m *MemoryStore) Sweep(_ context.Context) (int64, error) {
	now := m.clock()

	var removed int64
	for i := range m.shards {
		sh := &m.shards[i]
		sh.mu.Lock()
		for key, entry := range sh.entries {
			if entry.Expired(now) {
				delete(sh.entries, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed, nil
}

// Len reports the number of physically stored entries, expired or not.
func (m *MemoryStore) Len() int {
	n := 0
	for i := range m.shards {
		sh := &m.shards[i]
		sh.mu.Lock()
		n += len(sh.entries)
		sh.mu.Unlock()
	}
	return n
}
