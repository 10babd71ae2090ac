package coverage

import (
	"strings"

	"github.com/andresuchdata/warenbestand/internal/domain"
	"github.com/shopspring/decimal"
)

// Matches reports whether sku belongs to the group
func (g Group) Matches(sku string) bool {
	for _, s := range g.SKUs {
		if s == sku {
			return true
		}
	}
	for _, prefix := range g.Prefixes {
		if prefix != "" && strings.HasPrefix(sku, prefix) {
			return true
		}
	}
	return false
}

// Subtotals sums projected rows per configured group, in configuration order.
// Groups without any matching row are still returned with zero totals.
func Subtotals(groups []Group, rows []domain.ProjectionRow) []domain.GroupSubtotal {
	out := make([]domain.GroupSubtotal, 0, len(groups))
	for _, g := range groups {
		sub := domain.GroupSubtotal{Name: g.Name, Quantity30d: decimal.Zero}
		for _, r := range rows {
			if !g.Matches(r.SKU) {
				continue
			}
			sub.SKUCount++
			sub.Quantity30d = sub.Quantity30d.Add(r.Quantity30d)
			sub.Stock += r.Stock
			sub.OrderedQuantity += r.OrderedQuantity
			sub.ConsumptionPerDay += r.ConsumptionPerDay
			sub.StockAtArrival += r.StockAtArrival
		}
		sub.CoverageDays = coverageDays(sub.StockAtArrival, sub.ConsumptionPerDay)
		out = append(out, sub)
	}
	return out
}
