package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/andresuchdata/warenbestand/internal/domain"
)

// MemoryRunStore keeps run history in process memory
type MemoryRunStore struct {
	mu     sync.RWMutex
	nextID int64
	runs   map[int64]domain.ReconcileRun
}

// NewMemoryRunStore creates an empty in-memory run store
func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{runs: make(map[int64]domain.ReconcileRun)}
}

func (s *MemoryRunStore) CreateRun(_ context.Context, run *domain.ReconcileRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	run.ID = s.nextID
	s.runs[run.ID] = *run
	return nil
}

func (s *MemoryRunStore) UpdateRun(_ context.Context, run *domain.ReconcileRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; !ok {
		return fmt.Errorf("run %d: %w", run.ID, domain.ErrNotFound)
	}
	s.runs[run.ID] = *run
	return nil
}

func (s *MemoryRunStore) GetRun(_ context.Context, id int64) (*domain.ReconcileRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("run %d: %w", id, domain.ErrNotFound)
	}
	return &run, nil
}

func (s *MemoryRunStore) RecentRuns(_ context.Context, limit int) ([]*domain.ReconcileRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]*domain.ReconcileRun, 0, len(s.runs))
	for _, r := range s.runs {
		r := r
		runs = append(runs, &r)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].ID > runs[j].ID })
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}
