package cache

import (
	"context"
	"sync"
	"time"

	"github.com/tutora/backend/core/student"
)

// DefaultMaxEntries bounds the in-memory cache.
const DefaultMaxEntries = 10000

type memoryEntry struct {
	student   student.Student
	expiresAt time.Time
}

type memoryStudentCache struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

var _ student.Cache = (*memoryStudentCache)(nil) // interface compliance check

// NewMemoryStudentCache keeps up to maxEntries Students for ttl each.
// When full, expired entries are purged first, then the ones closest to expiry.
func NewMemoryStudentCache(ttl time.Duration, maxEntries int) student.Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &memoryStudentCache{
		entries:    make(map[string]memoryEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (c *memoryStudentCache) GetMany(_ context.Context, ids []string) (map[string]student.Student, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	found := make(map[string]student.Student, len(ids))
	for _, id := range ids {
		entry, ok := c.entries[id]
		if !ok {
			continue
		}
		if !now.Before(entry.expiresAt) {
			delete(c.entries, id)
			continue
		}
		found[id] = entry.student
	}
	return found, nil
}

func (c *memoryStudentCache) SetMany(_ context.Context, students ...student.Student) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for _, st := range students {
		if _, ok := c.entries[st.ID]; !ok && len(c.entries) >= c.maxEntries {
			c.evict(now)
		}
		st.ClassIDs = append([]string{}, st.ClassIDs...)
		c.entries[st.ID] = memoryEntry{student: st, expiresAt: now.Add(c.ttl)}
	}
	return nil
}

// evict makes room for one entry. The caller holds the lock.
func (c *memoryStudentCache) evict(now time.Time) {
	var (
		oldestID string
		oldest   time.Time
	)
	for id, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, id)
			continue
		}
		if oldestID == "" || entry.expiresAt.Before(oldest) {
			oldestID, oldest = id, entry.expiresAt
		}
	}
	if len(c.entries) >= c.maxEntries && oldestID != "" {
		delete(c.entries, oldestID)
	}
}

func (c *memoryStudentCache) Delete(_ context.Context, ids ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range ids {
		delete(c.entries, id)
	}
	return nil
}
