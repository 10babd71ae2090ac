package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/andresuchdata/warenbestand/internal/domain"
)

// LedgerStore persists the per-SKU stock ledger.
// Upsert replaces every field of an existing record and is atomic per SKU.
type LedgerStore interface {
	GetAll(ctx context.Context) (map[string]domain.LedgerRecord, error)
	Get(ctx context.Context, sku string) (*domain.LedgerRecord, error)
	Upsert(ctx context.Context, rec domain.LedgerRecord) error
}

type memoryLedgerRepository struct {
	mu      sync.RWMutex
	records map[string]domain.LedgerRecord
	now     func() time.Time
}

// NewMemoryLedgerRepository returns a process local ledger, used in tests and with LEDGER_BACKEND=memory
func NewMemoryLedgerRepository(seed ...domain.LedgerRecord) LedgerStore {
	r := &memoryLedgerRepository{
		records: make(map[string]domain.LedgerRecord, len(seed)),
		now:     time.Now,
	}
	for _, rec := range seed {
		r.records[rec.SKU] = rec
	}
	return r
}

func (r *memoryLedgerRepository) GetAll(ctx context.Context) (map[string]domain.LedgerRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]domain.LedgerRecord, len(r.records))
	for k, v := range r.records {
		out[k] = v
	}
	return out, nil
}

func (r *memoryLedgerRepository) Get(ctx context.Context, sku string) (*domain.LedgerRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[sku]
	if !ok {
		return nil, fmt.Errorf("ledger record %s: %w", sku, domain.ErrNotFound)
	}
	return &rec, nil
}

func (r *memoryLedgerRepository) Upsert(ctx context.Context, rec domain.LedgerRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	rec.UpdatedAt = r.now().UTC()
	r.records[rec.SKU] = rec
	return nil
}

// SortedRecords returns the records of a snapshot ordered by SKU
func SortedRecords(snapshot map[string]domain.LedgerRecord) []domain.LedgerRecord {
	out := make([]domain.LedgerRecord, 0, len(snapshot))
	for _, rec := range snapshot {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out
}
