package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/andresuchdata/warenbestand/internal/domain"
	"github.com/andresuchdata/warenbestand/internal/pipeline/coverage"
	"github.com/xuri/excelize/v2"
)

const (
	sheetProjection = "Projection"
	sheetGroups     = "Groups"
	sheetWarnings   = "Warnings"
)

var projectionHeaders = []string{
	"SKU", "Quantity 30d", "Stock", "Ordered", "Arrival",
	"Consumption/day", "Consumption until arrival", "Stock at arrival", "Coverage days",
}

var groupHeaders = []string{
	"Group", "SKUs", "Quantity 30d", "Stock", "Ordered",
	"Consumption/day", "Stock at arrival", "Coverage days",
}

// WriteXLSX renders a result as a workbook with Projection, Groups and Warnings sheets
func WriteXLSX(w io.Writer, res *coverage.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetProjection); err != nil {
		return err
	}
	if err := writeSheet(f, sheetProjection, projectionHeaders, projectionValues(res.Rows)); err != nil {
		return err
	}

	if _, err := f.NewSheet(sheetGroups); err != nil {
		return err
	}
	if err := writeSheet(f, sheetGroups, groupHeaders, groupValues(res.Groups)); err != nil {
		return err
	}

	if _, err := f.NewSheet(sheetWarnings); err != nil {
		return err
	}
	warnings := make([][]interface{}, 0, len(res.Warnings))
	for _, wr := range res.Warnings {
		warnings = append(warnings, []interface{}{string(wr.Kind), wr.Row, wr.SKU, wr.Message})
	}
	if err := writeSheet(f, sheetWarnings, []string{"Kind", "Row", "SKU", "Message"}, warnings); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	return f.Write(w)
}

func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]interface{}) error {
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	for r, values := range rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, r+2, err)
		}
	}
	return nil
}

func projectionValues(rows []domain.ProjectionRow) [][]interface{} {
	out := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		arrival := ""
		if r.ArrivalDate != nil {
			arrival = r.ArrivalDate.Format("2006-01-02")
		}
		out = append(out, []interface{}{
			r.SKU,
			r.Quantity30d.InexactFloat64(),
			r.Stock,
			r.OrderedQuantity,
			arrival,
			r.ConsumptionPerDay,
			r.ConsumptionUntilArrival,
			r.StockAtArrival,
			r.CoverageDays,
		})
	}
	return out
}

func groupValues(groups []domain.GroupSubtotal) [][]interface{} {
	out := make([][]interface{}, 0, len(groups))
	for _, g := range groups {
		out = append(out, []interface{}{
			g.Name,
			g.SKUCount,
			g.Quantity30d.InexactFloat64(),
			g.Stock,
			g.OrderedQuantity,
			g.ConsumptionPerDay,
			g.StockAtArrival,
			g.CoverageDays,
		})
	}
	return out
}

// WriteCSV renders projection rows as a ';'-separated CSV with German number formatting
func WriteCSV(w io.Writer, rows []domain.ProjectionRow) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'

	if err := cw.Write(projectionHeaders); err != nil {
		return err
	}
	for _, r := range rows {
		arrival := ""
		if r.ArrivalDate != nil {
			arrival = r.ArrivalDate.Format("02.01.2006")
		}
		record := []string{
			r.SKU,
			coverage.FormatDE(r.Quantity30d.InexactFloat64(), 2),
			strconv.Itoa(r.Stock),
			strconv.Itoa(r.OrderedQuantity),
			arrival,
			coverage.FormatDE(r.ConsumptionPerDay, 2),
			coverage.FormatDE(r.ConsumptionUntilArrival, 2),
			coverage.FormatDE(r.StockAtArrival, 2),
			strconv.Itoa(r.CoverageDays),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
