package coverage

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/andresuchdata/warenbestand/internal/domain"
)

const (
	layerAggregated = "1_aggregated"
	layerProjection = "2_projection"
)

func (p *Pipeline) writeAggregatedLayer(date time.Time, name string, rows []domain.AggregatedRow) error {
	if !p.config.PersistDebugLayers {
		return nil
	}
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{r.SKU, r.Quantity.String()})
	}
	return p.writeIntermediateCSV(date, layerAggregated, name, []string{"sku", "quantity"}, records)
}

func (p *Pipeline) writeProjectionLayer(date time.Time, name string, rows []domain.ProjectionRow) error {
	if !p.config.PersistDebugLayers {
		return nil
	}
	headers := []string{
		"sku",
		"quantity_30d",
		"stock",
		"ordered_quantity",
		"arrival_date",
		"consumption_per_day",
		"consumption_until_arrival",
		"stock_at_arrival",
		"coverage_days",
		"in_ledger",
	}
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		arrival := ""
		if r.ArrivalDate != nil {
			arrival = r.ArrivalDate.Format("2006-01-02")
		}
		records = append(records, []string{
			r.SKU,
			r.Quantity30d.String(),
			strconv.Itoa(r.Stock),
			strconv.Itoa(r.OrderedQuantity),
			arrival,
			FormatDE(r.ConsumptionPerDay, 2),
			FormatDE(r.ConsumptionUntilArrival, 2),
			FormatDE(r.StockAtArrival, 2),
			strconv.Itoa(r.CoverageDays),
			strconv.FormatBool(r.InLedger),
		})
	}
	return p.writeIntermediateCSV(date, layerProjection, name, headers, records)
}

// writeIntermediateCSV writes <IntermediateDir>/<stage>/<yyyymmdd>/<name>.csv
func (p *Pipeline) writeIntermediateCSV(date time.Time, stage, name string, header []string, records [][]string) error {
	if p.config.IntermediateDir == "" {
		return nil
	}

	baseDir := filepath.Join(p.config.IntermediateDir, stage, date.Format("20060102"))
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return err
	}

	base := filepath.Base(name)
	base = base[:len(base)-len(filepath.Ext(base))] + ".csv"
	f, err := os.Create(filepath.Join(baseDir, base))
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = ';'
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(records); err != nil {
		return err
	}
	return w.Error()
}
