package storage

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryTier is an in-process tier. With a positive ttl it models a browser
// session: entries disappear once the session lifetime elapses.
type MemoryTier struct {
	items *cache.Cache
	ttl   time.Duration
}

func NewMemoryTier(ttl time.Duration) *MemoryTier {
	expiration := cache.NoExpiration
	cleanup := time.Duration(0)
	if ttl > 0 {
		expiration = ttl
		cleanup = ttl / 2
		if cleanup < time.Second {
			cleanup = time.Second
		}
	}
	return &MemoryTier{
		items: cache.New(expiration, cleanup),
		ttl:   expiration,
	}
}

func (m *MemoryTier) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m.items.Get(key)
	if !ok {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", false, ErrSlotCorrupted
	}
	return s, true, nil
}

func (m *MemoryTier) Set(_ context.Context, key, value string) error {
	m.items.Set(key, value, cache.DefaultExpiration)
	return nil
}

func (m *MemoryTier) Remove(_ context.Context, key string) error {
	m.items.Delete(key)
	return nil
}

func (m *MemoryTier) Len() int {
	return m.items.ItemCount()
}
