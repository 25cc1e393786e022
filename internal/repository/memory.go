package repository

import (
	"context"
	"sync"

	"clothingrental/internal/domain"
)

type memoryEntry struct {
	value   string
	version int64
}

// MemoryKV keeps everything in process memory. Used for tests, the "memory"
// backend and as the failover target.
type MemoryKV struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{entries: make(map[string]memoryEntry)}
}

func (r *MemoryKV) Get(ctx context.Context, key string) (string, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[key]
	if !ok {
		return "", 0, domain.ErrKeyNotFound
	}
	return e.value, e.version, nil
}

func (r *MemoryKV) Set(ctx context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entries[key]
	r.entries[key] = memoryEntry{value: value, version: e.version + 1}
	return nil
}

func (r *MemoryKV) SetIfVersion(ctx context.Context, key, value string, version int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entries[key]
	if e.version != version {
		return e.version, domain.ErrVersionConflict
	}
	r.entries[key] = memoryEntry{value: value, version: version + 1}
	return version + 1, nil
}

func (r *MemoryKV) Remove(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
	return nil
}

func (r *MemoryKV) Ping(ctx context.Context) error {
	return nil
}
