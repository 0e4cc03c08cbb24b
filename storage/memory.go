package storage

import (
	"context"
	"slices"
	"sync"
)

// memoryStore 进程内实现，只追加
type memoryStore struct {
	mu       sync.RWMutex
	attempts map[string][]AttemptRecord
	logs     map[string]OrchestrationLog
}

// NewMemory 创建内存存储
func NewMemory() Store {
	return &memoryStore{
		attempts: make(map[string][]AttemptRecord),
		logs:     make(map[string]OrchestrationLog),
	}
}

func (s *memoryStore) AppendAttempt(_ context.Context, rec AttemptRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[rec.OrchestrationID] = append(s.attempts[rec.OrchestrationID], rec)
	return nil
}

func (s *memoryStore) AppendOrchestrationLog(_ context.Context, log OrchestrationLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.logs[log.OrchestrationID]; ok {
		return ErrDuplicate
	}
	s.logs[log.OrchestrationID] = log
	return nil
}

func (s *memoryStore) Attempts(_ context.Context, orchestrationID string) ([]AttemptRecord, error) {
	s.mu.RLock()
	out := slices.Clone(s.attempts[orchestrationID])
	s.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b AttemptRecord) int { return a.AttemptNumber - b.AttemptNumber })
	if out == nil {
		out = []AttemptRecord{}
	}
	return out, nil
}

func (s *memoryStore) Orchestration(_ context.Context, orchestrationID string) (*OrchestrationLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log, ok := s.logs[orchestrationID]
	if !ok {
		return nil, ErrNotFound
	}
	return &log, nil
}

func (s *memoryStore) Close() error { return nil }
