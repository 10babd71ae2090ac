package coverage

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/warenbestand/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const defaultLayerName = "export"

// Pipeline turns a raw sales export into coverage projections:
// normalize, map, aggregate, reconcile against the ledger, project.
type Pipeline struct {
	config     Config
	normalizer *Normalizer
	mapper     *Mapper
	projector  *Projector
}

// NewPipeline creates a pipeline. mapper may be nil, in which case every SKU maps to itself.
func NewPipeline(cfg Config, mapper *Mapper) (*Pipeline, error) {
	if cfg.Mode == "" {
		cfg.Mode = ModeFull
	}
	mode, err := ParseMode(string(cfg.Mode))
	if err != nil {
		return nil, err
	}
	cfg.Mode = mode
	if cfg.SkipRows < 0 {
		return nil, fmt.Errorf("skip rows must not be negative, got %d", cfg.SkipRows)
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 30
	}
	switch cfg.DecimalSeparator {
	case 0:
		cfg.DecimalSeparator = DecimalComma
	case DecimalComma, DecimalPoint:
	default:
		return nil, fmt.Errorf("decimal separator must be %q or %q, got %q", DecimalComma, DecimalPoint, cfg.DecimalSeparator)
	}
	defaults := DefaultConfig()
	if cfg.Columns.SKU == "" {
		cfg.Columns.SKU = defaults.Columns.SKU
	}
	if cfg.Columns.Quantity == "" {
		cfg.Columns.Quantity = defaults.Columns.Quantity
	}

	return &Pipeline{
		config:     cfg,
		normalizer: NewNormalizer(mode),
		mapper:     mapper,
		projector:  NewProjector(cfg.WindowDays),
	}, nil
}

// Name returns the unique identifier of this pipeline.
func (p *Pipeline) Name() string {
	return "coverage"
}

// Config returns the effective configuration
func (p *Pipeline) Config() Config {
	return p.config
}

// Run processes a raw table read from an export
func (p *Pipeline) Run(ctx context.Context, table [][]string, snapshot map[string]domain.LedgerRecord, asOf time.Time) (*Result, error) {
	return p.RunNamed(ctx, defaultLayerName, table, snapshot, asOf)
}

// RunNamed is Run with a source name used for intermediate layer files
func (p *Pipeline) RunNamed(ctx context.Context, name string, table [][]string, snapshot map[string]domain.LedgerRecord, asOf time.Time) (*Result, error) {
	if name == "" {
		name = defaultLayerName
	}

	// 1) Locate header and columns
	header, data, err := p.splitTable(table)
	if err != nil {
		return nil, err
	}
	idxSKU, idxQty, idxPallets, err := p.resolveColumns(header)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	result.Warnings = append(result.Warnings, p.mapper.Warnings()...)

	// 2) Normalize, map and aggregate row by row
	agg := NewAggregator(p.config.Conversions)
	for i, row := range data {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		result.Stats.DataRows++
		if isBlankRow(row) {
			result.Stats.BlankRows++
			continue
		}

		src := SourceRow{
			Row:    SourceRowNumber(i, p.config.SkipRows),
			RawSKU: cell(row, idxSKU),
			Units:  cell(row, idxQty),
		}
		if idxPallets >= 0 {
			src.Pallets = cell(row, idxPallets)
		}

		w, ok := p.processRow(&src, agg)
		if w != nil {
			result.Warnings = append(result.Warnings, *w)
		}
		switch {
		case ok:
			result.Stats.ParsedRows++
		case w != nil && w.Kind == domain.WarningExclusion:
			result.Stats.ExcludedRows++
		default:
			result.Stats.SkippedRows++
		}
	}

	aggregated := agg.Rows()
	result.Stats.AggregatedSKUs = len(aggregated)
	if err := p.writeAggregatedLayer(asOf, name, aggregated); err != nil {
		return nil, fmt.Errorf("failed to write aggregated intermediate: %w", err)
	}

	// 3) Join with the ledger snapshot
	reconciled, ledgerWarnings := Reconcile(aggregated, snapshot, p.config.IncludeIdleLedgerSKUs, asOf.Location())
	for _, w := range ledgerWarnings {
		if w.Kind == domain.WarningLedgerMissing {
			result.Stats.LedgerMisses++
		}
	}
	result.Warnings = append(result.Warnings, ledgerWarnings...)

	// 4) Project coverage
	result.Rows = p.projector.ProjectAll(reconciled, asOf)
	if err := p.writeProjectionLayer(asOf, name, result.Rows); err != nil {
		return nil, fmt.Errorf("failed to write projection intermediate: %w", err)
	}

	// 5) Group subtotals
	result.Groups = Subtotals(p.config.Groups, result.Rows)

	log.Debug().
		Str("pipeline", p.Name()).
		Str("source", name).
		Str("mode", string(p.config.Mode)).
		Int("data_rows", result.Stats.DataRows).
		Int("parsed_rows", result.Stats.ParsedRows).
		Int("skus", result.Stats.AggregatedSKUs).
		Int("warnings", len(result.Warnings)).
		Msg("coverage pipeline finished")

	return result, nil
}

// processRow aggregates one data row. It returns false when the row did not contribute,
// together with the warning explaining why. Excluded SKUs are reported as exclusions
// whatever their quantity cells contain.
func (p *Pipeline) processRow(src *SourceRow, agg *Aggregator) (*domain.Warning, bool) {
	sku, ok := p.normalizer.Normalize(src.RawSKU)
	if !ok {
		return &domain.Warning{
			Kind:    domain.WarningParse,
			Row:     src.Row,
			Message: fmt.Sprintf("no product code in %q", src.RawSKU),
		}, false
	}

	final, excluded := p.mapper.Resolve(sku)
	if excluded {
		return &domain.Warning{
			Kind:    domain.WarningExclusion,
			Row:     src.Row,
			SKU:     sku,
			Message: fmt.Sprintf("SKU %s excluded by mapping", sku),
		}, false
	}

	units, err := ParseNumber(src.Units, p.config.DecimalSeparator)
	if err != nil {
		return quantityWarning(src.Row, sku, p.config.Columns.Quantity, err), false
	}
	if units.IsNegative() {
		return quantityWarning(src.Row, sku, p.config.Columns.Quantity, fmt.Errorf("negative quantity %s", units)), false
	}

	pallets := decimal.Zero
	if src.Pallets != "" {
		pallets, err = ParseNumber(src.Pallets, p.config.DecimalSeparator)
		if err != nil {
			return quantityWarning(src.Row, sku, p.config.Columns.Pallets, err), false
		}
		if pallets.IsNegative() {
			return quantityWarning(src.Row, sku, p.config.Columns.Pallets, fmt.Errorf("negative quantity %s", pallets)), false
		}
	}

	agg.Add(final, units, pallets)
	return nil, true
}

func quantityWarning(row int, sku, column string, err error) *domain.Warning {
	return &domain.Warning{
		Kind:    domain.WarningParse,
		Row:     row,
		SKU:     sku,
		Message: fmt.Sprintf("column %s: %v", column, err),
	}
}

func (p *Pipeline) splitTable(table [][]string) ([]string, [][]string, error) {
	if len(table) == 0 {
		return nil, nil, domain.ErrEmptyTable
	}
	if len(table) <= p.config.SkipRows {
		return nil, nil, fmt.Errorf("%w: %d rows, expected header after %d skipped rows",
			domain.ErrEmptyTable, len(table), p.config.SkipRows)
	}
	return table[p.config.SkipRows], table[p.config.SkipRows+1:], nil
}

func (p *Pipeline) resolveColumns(header []string) (int, int, int, error) {
	idxSKU := columnIndex(header, p.config.Columns.SKU)
	if idxSKU < 0 {
		return 0, 0, 0, fmt.Errorf("%w: %s", domain.ErrMissingColumn, p.config.Columns.SKU)
	}
	idxQty := columnIndex(header, p.config.Columns.Quantity)
	if idxQty < 0 {
		return 0, 0, 0, fmt.Errorf("%w: %s", domain.ErrMissingColumn, p.config.Columns.Quantity)
	}
	idxPallets := -1
	if p.config.Columns.Pallets != "" {
		idxPallets = columnIndex(header, p.config.Columns.Pallets)
		if idxPallets < 0 {
			return 0, 0, 0, fmt.Errorf("%w: %s", domain.ErrMissingColumn, p.config.Columns.Pallets)
		}
	}
	return idxSKU, idxQty, idxPallets, nil
}
