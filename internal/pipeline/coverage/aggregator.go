package coverage

import (
	"github.com/andresuchdata/warenbestand/internal/domain"
	"github.com/shopspring/decimal"
)

// Aggregator sums converted quantities per canonical SKU.
// Decimal arithmetic keeps totals independent of row order.
type Aggregator struct {
	conversions map[string]Conversion
	totals      map[string]decimal.Decimal
	order       []string
}

// NewAggregator creates an aggregator using the given per-SKU conversions
func NewAggregator(conversions map[string]Conversion) *Aggregator {
	return &Aggregator{
		conversions: conversions,
		totals:      make(map[string]decimal.Decimal),
	}
}

// EffectiveQuantity converts counted units and pallets into single units for sku
func (a *Aggregator) EffectiveQuantity(sku string, units, pallets decimal.Decimal) decimal.Decimal {
	conv := a.conversions[sku]

	carton := conv.CartonMultiplier
	if carton.IsZero() {
		carton = decimal.NewFromInt(1)
	}
	qty := units.Mul(carton)
	if !conv.PalletQuantity.IsZero() && !pallets.IsZero() {
		qty = qty.Add(pallets.Mul(conv.PalletQuantity))
	}
	return qty
}

// Add records one source row for sku
func (a *Aggregator) Add(sku string, units, pallets decimal.Decimal) {
	qty := a.EffectiveQuantity(sku, units, pallets)
	total, seen := a.totals[sku]
	if !seen {
		a.order = append(a.order, sku)
	}
	a.totals[sku] = total.Add(qty)
}

// Rows returns the totals in first-seen order, dropping SKUs that total zero
func (a *Aggregator) Rows() []domain.AggregatedRow {
	rows := make([]domain.AggregatedRow, 0, len(a.order))
	for _, sku := range a.order {
		total := a.totals[sku]
		if total.Sign() <= 0 {
			continue
		}
		rows = append(rows, domain.AggregatedRow{SKU: sku, Quantity: total})
	}
	return rows
}
