package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore 进程内缓存，仅在未部署Redis时使用，多实例之间不共享
type MemoryStore struct {
	lru        *expirable.LRU[string, memoryEntry]
	defaultTTL time.Duration
	now        func() time.Time
}

// NewMemoryStore 创建进程内缓存，maxTTL 为任何条目的最长保留时间
func NewMemoryStore(size int, defaultTTL, maxTTL time.Duration) *MemoryStore {
	if size <= 0 {
		size = 10000
	}
	if maxTTL < defaultTTL {
		maxTTL = defaultTTL
	}
	return &MemoryStore{
		lru:        expirable.NewLRU[string, memoryEntry](size, nil, maxTTL),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	entry, ok := s.lookup(key)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(entry.data, dest); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value: %w", err)
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	s.lru.Add(key, memoryEntry{data: data, expiresAt: s.now().Add(ttl)})
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		s.lru.Remove(k)
	}
	return nil
}

func (s *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := s.lookup(key)
	return ok, nil
}

// lookup 条目级过期检查，LRU自身只保证 maxTTL
func (s *MemoryStore) lookup(key string) (memoryEntry, bool) {
	entry, ok := s.lru.Get(key)
	if !ok {
		return memoryEntry{}, false
	}
	if !s.now().Before(entry.expiresAt) {
		s.lru.Remove(key)
		return memoryEntry{}, false
	}
	return entry, true
}
