package store

import (
	"context"
	"sync"

	"github.com/Checker-Finance/rfq-checker/pkg/model"
)

// MemoryStore is an in-process Store used when no Redis is configured,
// typically for RUN_MODE=once.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string][]model.RunResult // newest first
}

func NewMemory() *MemoryStore {
	return &MemoryStore{runs: make(map[string][]model.RunResult)}
}

func (m *MemoryStore) SaveRun(_ context.Context, run *model.RunResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := append([]model.RunResult{*run}, m.runs[run.Profile]...)
	if len(h) > historyLen {
		h = h[:historyLen]
	}
	m.runs[run.Profile] = h
	return nil
}

func (m *MemoryStore) LastRun(_ context.Context, profile string) (*model.RunResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h := m.runs[profile]
	if len(h) == 0 {
		return nil, ErrNotFound
	}
	r := h[0]
	return &r, nil
}

func (m *MemoryStore) RecentRuns(_ context.Context, profile string, limit int) ([]model.RunResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h := m.runs[profile]
	if limit <= 0 || limit > len(h) {
		limit = len(h)
	}
	out := make([]model.RunResult, limit)
	copy(out, h[:limit])
	return out, nil
}

func (m *MemoryStore) HealthCheck(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
