// Package checkpoint keeps the latest session of every conversation thread
// in process memory.
package checkpoint

import (
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/MikeSquared-Agency/scout/internal/state"
)

// Memory is a thread checkpoint store backed by an expiring in-memory cache.
// Idle threads are forgotten after ttl.
type Memory struct {
	cache *cache.Cache
}

func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = time.Hour
	}
	cleanup := ttl / 6
	if cleanup < time.Minute {
		cleanup = time.Minute
	}
	return &Memory{cache: cache.New(ttl, cleanup)}
}

// Save stores a copy of s, resetting the thread's expiry.
func (m *Memory) Save(threadID string, s state.Session) {
	m.cache.Set(threadID, s.Clone(), cache.DefaultExpiration)
}

// Load returns a copy of the thread's latest session.
func (m *Memory) Load(threadID string) (state.Session, bool) {
	if x, found := m.cache.Get(threadID); found {
		return x.(state.Session).Clone(), true
	}
	return state.Session{}, false
}

// Reserve claims threadID with an empty session. It reports false when the
// thread already exists.
func (m *Memory) Reserve(threadID string) bool {
	return m.cache.Add(threadID, state.Session{}, cache.DefaultExpiration) == nil
}

func (m *Memory) Delete(threadID string) {
	m.cache.Delete(threadID)
}

// Count returns the number of live threads, including expired ones not yet
// purged.
func (m *Memory) Count() int {
	return m.cache.ItemCount()
}
