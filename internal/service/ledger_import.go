package service

import (
	"fmt"
	"math"
	"strings"

	"github.com/andresuchdata/warenbestand/internal/domain"
	"github.com/andresuchdata/warenbestand/internal/pipeline/coverage"
	"github.com/shopspring/decimal"
)

var maxCount = decimal.NewFromInt(math.MaxInt32)

// ParseLedgerTable reads ledger records with the configured decimal separator of the exports
func (s *ReconcileService) ParseLedgerTable(table [][]string) ([]domain.LedgerRecord, []domain.SKUError, error) {
	return ParseLedgerTable(table, s.config.DecimalSeparator)
}

// ParseLedgerTable reads ledger records from a table with the header
// SKU, Stock, Ordered_Quantity and an optional Arrival_Date column.
// Rows with unreadable numbers are returned as failures instead of records.
func ParseLedgerTable(table [][]string, decimalSep byte) ([]domain.LedgerRecord, []domain.SKUError, error) {
	if len(table) == 0 {
		return nil, nil, fmt.Errorf("ledger table: %w", domain.ErrEmptyTable)
	}
	header := table[0]

	idxSKU := coverage.ColumnIndex(header, "SKU")
	if idxSKU < 0 {
		return nil, nil, fmt.Errorf("ledger table: %w: SKU", domain.ErrMissingColumn)
	}
	idxStock := coverage.ColumnIndex(header, "Stock")
	if idxStock < 0 {
		return nil, nil, fmt.Errorf("ledger table: %w: Stock", domain.ErrMissingColumn)
	}
	idxOrdered := coverage.ColumnIndex(header, "Ordered_Quantity")
	if idxOrdered < 0 {
		idxOrdered = coverage.ColumnIndex(header, "Ordered")
	}
	idxArrival := coverage.ColumnIndex(header, "Arrival_Date")

	var (
		records  []domain.LedgerRecord
		failures []domain.SKUError
	)
	for i, row := range table[1:] {
		sku := field(row, idxSKU)
		if sku == "" && strings.TrimSpace(strings.Join(row, "")) == "" {
			continue
		}

		stock, err := parseCount(field(row, idxStock), decimalSep)
		if err != nil {
			failures = append(failures, domain.SKUError{SKU: sku, Error: fmt.Sprintf("row %d: stock: %v", i+2, err)})
			continue
		}
		ordered, err := parseCount(field(row, idxOrdered), decimalSep)
		if err != nil {
			failures = append(failures, domain.SKUError{SKU: sku, Error: fmt.Sprintf("row %d: ordered quantity: %v", i+2, err)})
			continue
		}

		records = append(records, domain.LedgerRecord{
			SKU:             sku,
			Stock:           stock,
			OrderedQuantity: ordered,
			ArrivalDate:     field(row, idxArrival),
		})
	}
	return records, failures, nil
}

func field(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// parseCount reads a whole number. Thousands grouping follows decimalSep and a
// single zero decimal ("12.0", as spreadsheets write counts) is tolerated.
func parseCount(s string, decimalSep byte) (int, error) {
	d, err := coverage.ParseNumber(s, decimalSep)
	if err != nil {
		return 0, err
	}
	if !d.IsInteger() || d.Exponent() < -1 {
		return 0, fmt.Errorf("not a whole number: %q", s)
	}
	if d.Abs().GreaterThan(maxCount) {
		return 0, fmt.Errorf("out of range: %q", s)
	}
	return int(d.IntPart()), nil
}
