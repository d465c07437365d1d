package backup

import (
	"context"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
)

// MemoryRepository keeps records in memory only. It does not survive a restart;
// it backs tests and the `memory` backend used for throwaway sessions.
type MemoryRepository struct {
	mu        sync.RWMutex
	records   map[string]Record
	validator *validator.Validate
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: map[string]Record{}, validator: validator.New()}
}

func (m *MemoryRepository) Get(_ context.Context, path string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[path]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *MemoryRepository) Put(_ context.Context, rec Record) error {
	if err := m.validator.Struct(rec); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.Path] = rec
	return nil
}

func (m *MemoryRepository) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, path)
	return nil
}

func (m *MemoryRepository) List(_ context.Context) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (m *MemoryRepository) Close() error {
	return nil
}
