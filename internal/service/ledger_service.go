package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/andresuchdata/warenbestand/internal/domain"
	"github.com/andresuchdata/warenbestand/internal/pipeline/coverage"
	"github.com/andresuchdata/warenbestand/internal/repository"
	"github.com/rs/zerolog/log"
)

// Ledger returns all ledger records ordered by SKU
func (s *ReconcileService) Ledger(ctx context.Context) ([]domain.LedgerRecord, error) {
	snapshot, err := s.ledger.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	return repository.SortedRecords(snapshot), nil
}

// ValidateLedgerRecord trims rec and normalizes its arrival date to yyyy-mm-dd
func (s *ReconcileService) ValidateLedgerRecord(rec domain.LedgerRecord) (domain.LedgerRecord, error) {
	rec.SKU = strings.TrimSpace(rec.SKU)
	rec.ArrivalDate = strings.TrimSpace(rec.ArrivalDate)

	switch {
	case rec.SKU == "":
		return rec, fmt.Errorf("%w: sku is empty", domain.ErrInvalidLedgerRecord)
	case rec.Stock < 0:
		return rec, fmt.Errorf("%w: stock must not be negative, got %d", domain.ErrInvalidLedgerRecord, rec.Stock)
	case rec.OrderedQuantity < 0:
		return rec, fmt.Errorf("%w: ordered quantity must not be negative, got %d", domain.ErrInvalidLedgerRecord, rec.OrderedQuantity)
	}

	if rec.ArrivalDate != "" {
		t, err := coverage.ParseArrivalDate(rec.ArrivalDate, s.loc)
		if err != nil {
			return rec, fmt.Errorf("%w: arrival date %q", domain.ErrInvalidLedgerRecord, rec.ArrivalDate)
		}
		rec.ArrivalDate = t.Format(dateLayout)
	}
	return rec, nil
}

// SaveLedger writes confirmed edits one record at a time. Records that fail
// validation or persistence are reported in Failed; earlier writes stay applied.
// The whole batch holds the ledger lock so two batches never interleave.
func (s *ReconcileService) SaveLedger(ctx context.Context, records []domain.LedgerRecord) (*domain.SaveResult, error) {
	result := &domain.SaveResult{
		Saved:  []string{},
		Failed: []domain.SKUError{},
	}
	if len(records) == 0 {
		return result, nil
	}

	unlock, err := s.locker.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	for _, rec := range records {
		valid, err := s.ValidateLedgerRecord(rec)
		if err != nil {
			result.Failed = append(result.Failed, domain.SKUError{SKU: valid.SKU, Error: err.Error()})
			continue
		}
		if err := s.ledger.Upsert(ctx, valid); err != nil {
			log.Error().Err(err).Str("sku", valid.SKU).Msg("ledger upsert failed")
			result.Failed = append(result.Failed, domain.SKUError{SKU: valid.SKU, Error: err.Error()})
			continue
		}
		result.Saved = append(result.Saved, valid.SKU)
	}

	log.Info().Int("saved", len(result.Saved)).Int("failed", len(result.Failed)).Msg("ledger batch written")
	return result, nil
}
