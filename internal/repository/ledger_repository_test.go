package repository

import (
	"context"
	"testing"

	"github.com/andresuchdata/warenbestand/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLedgerUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryLedgerRepository(domain.LedgerRecord{SKU: "80522", Stock: 10, OrderedQuantity: 5, ArrivalDate: "2024-04-01"})

	require.NoError(t, store.Upsert(ctx, domain.LedgerRecord{SKU: "80522", Stock: 7}))

	rec, err := store.Get(ctx, "80522")
	require.NoError(t, err)
	assert.Equal(t, 7, rec.Stock)
	assert.Zero(t, rec.OrderedQuantity)
	assert.Empty(t, rec.ArrivalDate)
	assert.False(t, rec.UpdatedAt.IsZero())
}

func TestMemoryLedgerGetAllIsSnapshot(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryLedgerRepository(
		domain.LedgerRecord{SKU: "2", Stock: 1},
		domain.LedgerRecord{SKU: "1", Stock: 2},
	)

	snapshot, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, snapshot, 2)

	require.NoError(t, store.Upsert(ctx, domain.LedgerRecord{SKU: "3"}))
	assert.Len(t, snapshot, 2)

	sorted := SortedRecords(snapshot)
	assert.Equal(t, "1", sorted[0].SKU)
	assert.Equal(t, "2", sorted[1].SKU)
}

func TestMemoryLedgerNotFound(t *testing.T) {
	_, err := NewMemoryLedgerRepository().Get(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryLedgerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := NewMemoryLedgerRepository()
	assert.ErrorIs(t, store.Upsert(ctx, domain.LedgerRecord{SKU: "1"}), context.Canceled)
	_, err := store.GetAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
