package coverage

import (
	"math"
	"time"

	"github.com/andresuchdata/warenbestand/internal/domain"
)

// Projector calculates consumption and coverage metrics for reconciled rows
type Projector struct {
	windowDays int
}

// NewProjector creates a projector for a sales window of windowDays (30 when not positive)
func NewProjector(windowDays int) *Projector {
	if windowDays <= 0 {
		windowDays = 30
	}
	return &Projector{windowDays: windowDays}
}

// Project fills the projection metrics of row as seen on asOf
func (p *Projector) Project(row domain.ProjectionRow, asOf time.Time) domain.ProjectionRow {
	// 1. Daily consumption over the sales window
	cpd := row.Quantity30d.InexactFloat64() / float64(p.windowDays)
	row.ConsumptionPerDay = cpd

	// 2. Consumption until the next arrival, and the stock left at that point
	row.ConsumptionUntilArrival = 0
	row.StockAtArrival = float64(row.Stock)
	if row.ArrivalDate != nil {
		if days := DaysUntil(asOf, *row.ArrivalDate); days > 0 {
			row.ConsumptionUntilArrival = math.Max(0, float64(days)*cpd)
			row.StockAtArrival = float64(row.Stock+row.OrderedQuantity) - row.ConsumptionUntilArrival
		}
	}

	// 3. Days of coverage from the stock at arrival
	row.CoverageDays = coverageDays(row.StockAtArrival, cpd)

	return row
}

// ProjectAll projects every row
func (p *Projector) ProjectAll(rows []domain.ProjectionRow, asOf time.Time) []domain.ProjectionRow {
	out := make([]domain.ProjectionRow, len(rows))
	for i, r := range rows {
		out[i] = p.Project(r, asOf)
	}
	return out
}

// DaysUntil counts whole calendar days from asOf to target, comparing dates in asOf's location.
// A target on the same day or earlier yields zero or a negative number.
func DaysUntil(asOf, target time.Time) int {
	loc := asOf.Location()
	y1, m1, d1 := asOf.Date()
	y2, m2, d2 := target.In(loc).Date()
	from := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)
	to := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours() / 24)
}

func coverageDays(stockAtArrival, cpd float64) int {
	if cpd <= 0 {
		return 0
	}
	return int(math.Round(stockAtArrival / cpd))
}
