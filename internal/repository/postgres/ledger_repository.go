package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/andresuchdata/warenbestand/internal/domain"
	"github.com/andresuchdata/warenbestand/internal/repository"
)

type ledgerRepository struct {
	db *DB
}

func NewLedgerRepository(db *DB) repository.LedgerStore {
	return &ledgerRepository{db: db}
}

type ledgerRow struct {
	SKU             string         `db:"sku"`
	Stock           int            `db:"stock"`
	OrderedQuantity int            `db:"ordered_quantity"`
	ArrivalDate     sql.NullString `db:"arrival_date"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func (r ledgerRow) record() domain.LedgerRecord {
	return domain.LedgerRecord{
		SKU:             r.SKU,
		Stock:           r.Stock,
		OrderedQuantity: r.OrderedQuantity,
		ArrivalDate:     r.ArrivalDate.String,
		UpdatedAt:       r.UpdatedAt,
	}
}

const selectLedger = `SELECT sku, stock, ordered_quantity, arrival_date, updated_at FROM ledger`

func (r *ledgerRepository) GetAll(ctx context.Context) (map[string]domain.LedgerRecord, error) {
	var rows []ledgerRow
	err := r.db.withPermit(ctx, func() error {
		return r.db.SelectContext(ctx, &rows, selectLedger)
	})
	if err != nil {
		return nil, fmt.Errorf("error loading ledger: %w", err)
	}

	out := make(map[string]domain.LedgerRecord, len(rows))
	for _, row := range rows {
		out[row.SKU] = row.record()
	}
	return out, nil
}

func (r *ledgerRepository) Get(ctx context.Context, sku string) (*domain.LedgerRecord, error) {
	var row ledgerRow
	err := r.db.withPermit(ctx, func() error {
		return r.db.GetContext(ctx, &row, selectLedger+` WHERE sku = $1`, sku)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ledger record %s: %w", sku, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("error loading ledger record %s: %w", sku, err)
	}
	rec := row.record()
	return &rec, nil
}

// Upsert writes one record in a single statement, replacing all fields on conflict
func (r *ledgerRepository) Upsert(ctx context.Context, rec domain.LedgerRecord) error {
	query := `
		INSERT INTO ledger (sku, stock, ordered_quantity, arrival_date, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (sku)
		DO UPDATE SET
			stock = EXCLUDED.stock,
			ordered_quantity = EXCLUDED.ordered_quantity,
			arrival_date = EXCLUDED.arrival_date,
			updated_at = NOW()
	`

	err := r.db.withPermit(ctx, func() error {
		_, err := r.db.ExecContext(ctx, query, rec.SKU, rec.Stock, rec.OrderedQuantity, nullIfEmpty(rec.ArrivalDate))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to upsert ledger record %s: %w", rec.SKU, err)
	}
	return nil
}

// nullIfEmpty returns NULL if the string is empty, otherwise returns the string
func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
