package repository

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is the in-process fallback used when redis is unavailable
// or not configured.
type MemoryCache struct {
	blocked    sync.Map // group -> blockedEntry
	rateLimits sync.Map // key -> *rateLimitEntry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

type blockedEntry struct {
	dates     []string
	expiresAt time.Time
}

func (m *MemoryCache) GetBlockedDates(ctx context.Context, group string) ([]string, bool, error) {
	val, ok := m.blocked.Load(group)
	if !ok {
		return nil, false, nil
	}
	entry := val.(blockedEntry)
	if time.Now().After(entry.expiresAt) {
		m.blocked.Delete(group)
		return nil, false, nil
	}
	return entry.dates, true, nil
}

func (m *MemoryCache) SetBlockedDates(ctx context.Context, group string, dates []string, ttl time.Duration) error {
	m.blocked.Store(group, blockedEntry{dates: dates, expiresAt: time.Now().Add(ttl)})
	return nil
}

func (m *MemoryCache) InvalidateBlockedDates(ctx context.Context, group string) error {
	m.blocked.Delete(group)
	return nil
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func (m *MemoryCache) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	val, ok := m.rateLimits.Load(key)

	var entry *rateLimitEntry
	if !ok {
		entry = &rateLimitEntry{count: 1, expiresAt: now.Add(window)}
	} else {
		entry = val.(*rateLimitEntry)
		if now.After(entry.expiresAt) {
			entry.count = 1
			entry.expiresAt = now.Add(window)
		} else {
			entry.count++
		}
	}

	m.rateLimits.Store(key, entry)
	return entry.count <= limit, nil
}
