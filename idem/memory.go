package idem

import (
	"context"
	"sync"
	"time"
)

type memoryLock struct {
	token     LockToken
	expiresAt time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// memoryStore 内存存储实现（非导出，仅用于单机）
type memoryStore struct {
	mu      sync.Mutex
	prefix  string
	now     func() time.Time
	locks   map[string]memoryLock
	results map[string]memoryEntry
}

func newMemoryStore(prefix string) *memoryStore {
	return &memoryStore{
		prefix:  prefix,
		now:     time.Now,
		locks:   make(map[string]memoryLock),
		results: make(map[string]memoryEntry),
	}
}

func (ms *memoryStore) Lock(ctx context.Context, key string, ttl time.Duration) (LockToken, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if ttl <= 0 {
		ttl = time.Second
	}

	lockKey := ms.prefix + key + lockSuffix
	now := ms.now()

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if l, ok := ms.locks[lockKey]; ok && l.expiresAt.After(now) {
		return "", false, nil
	}

	token, err := newLockToken()
	if err != nil {
		return "", false, err
	}
	ms.locks[lockKey] = memoryLock{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

func (ms *memoryStore) Unlock(_ context.Context, key string, token LockToken) error {
	lockKey := ms.prefix + key + lockSuffix

	ms.mu.Lock()
	defer ms.mu.Unlock()
	if l, ok := ms.locks[lockKey]; ok && l.token == token {
		delete(ms.locks, lockKey)
	}
	return nil
}

func (ms *memoryStore) Refresh(_ context.Context, key string, token LockToken, ttl time.Duration) (bool, error) {
	lockKey := ms.prefix + key + lockSuffix
	now := ms.now()

	ms.mu.Lock()
	defer ms.mu.Unlock()
	l, ok := ms.locks[lockKey]
	if !ok || l.token != token || !l.expiresAt.After(now) {
		return false, nil
	}
	l.expiresAt = now.Add(ttl)
	ms.locks[lockKey] = l
	return true, nil
}

func (ms *memoryStore) SetResult(_ context.Context, key string, val []byte, ttl time.Duration, token LockToken) error {
	if ttl <= 0 {
		ttl = time.Second
	}

	resultKey := ms.prefix + key + resultSuffix
	lockKey := ms.prefix + key + lockSuffix

	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.results[resultKey] = memoryEntry{
		value:     append([]byte(nil), val...),
		expiresAt: ms.now().Add(ttl),
	}
	if l, ok := ms.locks[lockKey]; ok && l.token == token {
		delete(ms.locks, lockKey)
	}
	return nil
}

func (ms *memoryStore) GetResult(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resultKey := ms.prefix + key + resultSuffix

	ms.mu.Lock()
	defer ms.mu.Unlock()

	entry, ok := ms.results[resultKey]
	if !ok {
		return nil, ErrResultNotFound
	}
	if !entry.expiresAt.After(ms.now()) {
		delete(ms.results, resultKey)
		return nil, ErrResultNotFound
	}
	return append([]byte(nil), entry.value...), nil
}
