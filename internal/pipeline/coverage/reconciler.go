package coverage

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/andresuchdata/warenbestand/internal/domain"
	"github.com/shopspring/decimal"
)

var arrivalDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"02.01.2006",
}

// ParseArrivalDate parses a stored arrival date in loc. Dates without a zone are taken as
// calendar dates in loc; values with a zone are converted to loc.
func ParseArrivalDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range arrivalDateLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			return t.In(loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// Reconcile left-joins aggregated quantities with the ledger snapshot.
// SKUs without a ledger record get zero stock and no arrival date; a malformed
// arrival date is treated as absent. Both cases produce a warning, never an error.
// The returned rows carry ledger fields only; projection metrics are filled by the Projector.
func Reconcile(rows []domain.AggregatedRow, snapshot map[string]domain.LedgerRecord, includeIdle bool, loc *time.Location) ([]domain.ProjectionRow, []domain.Warning) {
	out := make([]domain.ProjectionRow, 0, len(rows))
	var warnings []domain.Warning

	seen := make(map[string]struct{}, len(rows))
	for _, agg := range rows {
		seen[agg.SKU] = struct{}{}
		row := domain.ProjectionRow{SKU: agg.SKU, Quantity30d: agg.Quantity}

		rec, ok := snapshot[agg.SKU]
		if !ok {
			warnings = append(warnings, domain.Warning{
				Kind:    domain.WarningLedgerMissing,
				SKU:     agg.SKU,
				Message: fmt.Sprintf("SKU %s has no ledger record, assuming zero stock", agg.SKU),
			})
			out = append(out, row)
			continue
		}

		var w *domain.Warning
		row, w = joinLedger(row, rec, loc)
		if w != nil {
			warnings = append(warnings, *w)
		}
		out = append(out, row)
	}

	if includeIdle {
		idle := make([]string, 0)
		for sku := range snapshot {
			if _, ok := seen[sku]; !ok {
				idle = append(idle, sku)
			}
		}
		sort.Strings(idle)
		for _, sku := range idle {
			row, w := joinLedger(domain.ProjectionRow{SKU: sku, Quantity30d: decimal.Zero}, snapshot[sku], loc)
			if w != nil {
				warnings = append(warnings, *w)
			}
			out = append(out, row)
		}
	}

	return out, warnings
}

func joinLedger(row domain.ProjectionRow, rec domain.LedgerRecord, loc *time.Location) (domain.ProjectionRow, *domain.Warning) {
	row.InLedger = true
	row.Stock = rec.Stock
	row.OrderedQuantity = rec.OrderedQuantity

	if strings.TrimSpace(rec.ArrivalDate) == "" {
		return row, nil
	}
	arrival, err := ParseArrivalDate(rec.ArrivalDate, loc)
	if err != nil {
		return row, &domain.Warning{
			Kind:    domain.WarningLedgerDate,
			SKU:     row.SKU,
			Message: fmt.Sprintf("SKU %s: ignoring arrival date: %v", row.SKU, err),
		}
	}
	row.ArrivalDate = &arrival
	return row, nil
}
