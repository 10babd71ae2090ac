package coverage

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/andresuchdata/warenbestand/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAsOf = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func exportTable(skipRows int, rows ...[]string) [][]string {
	table := make([][]string, 0, skipRows+1+len(rows))
	for i := 0; i < skipRows; i++ {
		table = append(table, []string{"Verkaufsstatistik", ""})
	}
	table = append(table, []string{"Artikelnummer", "Bezeichnung", "Anzahl"})
	return append(table, rows...)
}

func newTestPipeline(t *testing.T, cfg Config, mapping []domain.MappingEntry) *Pipeline {
	t.Helper()
	var m *Mapper
	if mapping != nil {
		m = NewMapper(mapping)
	}
	p, err := NewPipeline(cfg, m)
	require.NoError(t, err)
	return p
}

func quantities(rows []domain.ProjectionRow) map[string]string {
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.SKU] = r.Quantity30d.String()
	}
	return out
}

func warningsOfKind(ws []domain.Warning, kind domain.WarningKind) []domain.Warning {
	var out []domain.Warning
	for _, w := range ws {
		if w.Kind == kind {
			out = append(out, w)
		}
	}
	return out
}

func TestRunMergesDecimalSuffixedCodes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SkipRows = 0
	p := newTestPipeline(t, cfg, nil)

	res, err := p.Run(context.Background(), exportTable(0,
		[]string{"80522.0", "Eimer", "10"},
		[]string{"80522", "Eimer", "5"},
	), nil, testAsOf)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"80522": "15"}, quantities(res.Rows))
	assert.Equal(t, 2, res.Stats.ParsedRows)
	assert.Equal(t, 1, res.Stats.AggregatedSKUs)
}

func TestRunAppliesMapping(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SkipRows = 0
	p := newTestPipeline(t, cfg, []domain.MappingEntry{{OriginalSKU: "80522", MappedSKU: "9000"}})

	res, err := p.Run(context.Background(), exportTable(0,
		[]string{"80522", "Eimer", "3"},
		[]string{"80522.0", "Eimer", "4"},
	), nil, testAsOf)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"9000": "7"}, quantities(res.Rows))
}

func TestRunExcludedSKU(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SkipRows = 0
	p := newTestPipeline(t, cfg, []domain.MappingEntry{{OriginalSKU: "80526", Exclude: true}})

	res, err := p.Run(context.Background(), exportTable(0,
		[]string{"80526", "Deckel", "8"},
		[]string{"80522", "Eimer", "1"},
	), nil, testAsOf)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"80522": "1"}, quantities(res.Rows))
	excl := warningsOfKind(res.Warnings, domain.WarningExclusion)
	require.Len(t, excl, 1)
	assert.Equal(t, "80526", excl[0].SKU)
	assert.Equal(t, 2, excl[0].Row)
	assert.Equal(t, 1, res.Stats.ExcludedRows)
}

func TestRunExcludedSKUWithUnreadableQuantity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SkipRows = 0
	p := newTestPipeline(t, cfg, []domain.MappingEntry{{OriginalSKU: "80526", Exclude: true}})

	res, err := p.Run(context.Background(), exportTable(0,
		[]string{"80526", "Deckel", "viele"},
		[]string{"80526", "Deckel", "-4"},
	), nil, testAsOf)
	require.NoError(t, err)

	assert.Empty(t, res.Rows)
	assert.Empty(t, warningsOfKind(res.Warnings, domain.WarningParse))
	assert.Len(t, warningsOfKind(res.Warnings, domain.WarningExclusion), 2)
	assert.Equal(t, 2, res.Stats.ExcludedRows)
	assert.Zero(t, res.Stats.SkippedRows)
}

func TestRunDecimalSeparator(t *testing.T) {
	rows := [][]string{
		{"80522", "Eimer", "1.500"},
		{"80523", "Deckel", "2,5"},
		{"80524", "Griff", "1.234,5"},
	}

	cfg := DefaultConfig()
	cfg.SkipRows = 0
	res, err := newTestPipeline(t, cfg, nil).Run(context.Background(), exportTable(0, rows...), nil, testAsOf)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"80522": "1500", "80523": "2.5", "80524": "1234.5"}, quantities(res.Rows))

	cfg.DecimalSeparator = DecimalPoint
	res, err = newTestPipeline(t, cfg, nil).Run(context.Background(), exportTable(0, rows...), nil, testAsOf)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"80522": "1.5", "80523": "2.5", "80524": "1234.5"}, quantities(res.Rows))

	cfg.DecimalSeparator = ';'
	_, err = NewPipeline(cfg, nil)
	assert.Error(t, err)
}

func TestRunWarningRowNumbers(t *testing.T) {
	p := newTestPipeline(t, DefaultConfig(), nil)

	res, err := p.Run(context.Background(), exportTable(7,
		[]string{"", "Eimer", "1"},
		[]string{"", "", ""},
		[]string{"80522", "Eimer", "zwei"},
		[]string{"80523", "Eimer", "-4"},
		[]string{"80524", "Eimer", ""},
	), nil, testAsOf)
	require.NoError(t, err)

	parse := warningsOfKind(res.Warnings, domain.WarningParse)
	require.Len(t, parse, 3)
	assert.Equal(t, 9, parse[0].Row)
	assert.Equal(t, 11, parse[1].Row)
	assert.Equal(t, 12, parse[2].Row)

	assert.Equal(t, 5, res.Stats.DataRows)
	assert.Equal(t, 1, res.Stats.BlankRows)
	assert.Equal(t, 3, res.Stats.SkippedRows)
	// the empty quantity counts as zero, so 80524 contributes nothing
	assert.Equal(t, 1, res.Stats.ParsedRows)
	assert.Empty(t, res.Rows)
}

func TestRunPrefix5Mode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SkipRows = 0
	cfg.Mode = ModePrefix5
	p := newTestPipeline(t, cfg, nil)

	res, err := p.Run(context.Background(), exportTable(0,
		[]string{"805221", "Eimer rot", "2"},
		[]string{"805229", "Eimer blau", "3"},
		[]string{"Art. 80522", "Eimer", "1,5"},
	), nil, testAsOf)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"80522": "6.5"}, quantities(res.Rows))
}

func TestRunMissingColumn(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SkipRows = 0
	cfg.Columns.Quantity = "Menge"
	p := newTestPipeline(t, cfg, nil)

	_, err := p.Run(context.Background(), exportTable(0, []string{"80522", "Eimer", "1"}), nil, testAsOf)
	require.ErrorIs(t, err, domain.ErrMissingColumn)
	assert.Contains(t, err.Error(), "Menge")
}

func TestRunTableShorterThanSkipRows(t *testing.T) {
	p := newTestPipeline(t, DefaultConfig(), nil)
	_, err := p.Run(context.Background(), [][]string{{"a"}, {"b"}}, nil, testAsOf)
	assert.ErrorIs(t, err, domain.ErrEmptyTable)
}

func TestRunPositionalColumns(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SkipRows = 0
	cfg.Columns = Columns{SKU: "#1", Quantity: "#3"}
	p := newTestPipeline(t, cfg, nil)

	res, err := p.Run(context.Background(), [][]string{
		{"Code", "Text", "Stk"},
		{"80522", "Eimer", "4"},
	}, nil, testAsOf)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"80522": "4"}, quantities(res.Rows))
}

func TestRunConversionsAndPallets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SkipRows = 0
	cfg.Columns.Pallets = "Paletten"
	cfg.Conversions = map[string]Conversion{
		"80522": {CartonMultiplier: decimal.NewFromInt(12), PalletQuantity: decimal.NewFromInt(480)},
	}
	p := newTestPipeline(t, cfg, nil)

	res, err := p.Run(context.Background(), [][]string{
		{"Artikelnummer", "Anzahl", "Paletten"},
		{"80522", "2", "1"},
		{"80523", "5", "3"},
	}, nil, testAsOf)
	require.NoError(t, err)

	// 2*12 + 1*480; pallets of SKUs without a pallet quantity are not counted
	assert.Equal(t, map[string]string{"80522": "504", "80523": "5"}, quantities(res.Rows))
}

func TestAggregationIsOrderIndependent(t *testing.T) {
	rows := [][]string{
		{"80522", "x", "1,1"},
		{"80523", "x", "2"},
		{"80522", "x", "0,2"},
		{"80524", "x", "7"},
		{"80523", "x", "3,3"},
		{"80522", "x", "1"},
	}
	cfg := DefaultConfig()
	cfg.SkipRows = 0
	p := newTestPipeline(t, cfg, nil)

	base, err := p.Run(context.Background(), exportTable(0, rows...), nil, testAsOf)
	require.NoError(t, err)

	rnd := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := append([][]string(nil), rows...)
		rnd.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		res, err := p.Run(context.Background(), exportTable(0, shuffled...), nil, testAsOf)
		require.NoError(t, err)
		assert.Equal(t, quantities(base.Rows), quantities(res.Rows))
	}
	assert.Equal(t, "2.3", quantities(base.Rows)["80522"])
}

func TestRunJoinsLedgerAndProjects(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SkipRows = 0
	p := newTestPipeline(t, cfg, nil)

	snapshot := map[string]domain.LedgerRecord{
		"80522": {SKU: "80522", Stock: 100, OrderedQuantity: 50, ArrivalDate: "2024-03-11"},
		"80523": {SKU: "80523", Stock: 20},
	}
	res, err := p.Run(context.Background(), exportTable(0,
		[]string{"80522", "Eimer", "300"},
		[]string{"80523", "Deckel", "60"},
		[]string{"80524", "Henkel", "30"},
	), snapshot, testAsOf)
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)

	first := res.Rows[0]
	assert.InDelta(t, 10, first.ConsumptionPerDay, 1e-9)
	assert.InDelta(t, 100, first.ConsumptionUntilArrival, 1e-9)
	assert.InDelta(t, 50, first.StockAtArrival, 1e-9)
	assert.Equal(t, 5, first.CoverageDays)
	assert.True(t, first.InLedger)

	second := res.Rows[1]
	assert.InDelta(t, 2, second.ConsumptionPerDay, 1e-9)
	assert.InDelta(t, 20, second.StockAtArrival, 1e-9)
	assert.Equal(t, 10, second.CoverageDays)

	third := res.Rows[2]
	assert.False(t, third.InLedger)
	assert.Equal(t, 0, third.Stock)
	assert.Nil(t, third.ArrivalDate)

	missing := warningsOfKind(res.Warnings, domain.WarningLedgerMissing)
	require.Len(t, missing, 1)
	assert.Equal(t, "80524", missing[0].SKU)
	assert.Equal(t, 1, res.Stats.LedgerMisses)
}

func TestRunIdleLedgerSKUs(t *testing.T) {
	snapshot := map[string]domain.LedgerRecord{
		"80522": {SKU: "80522", Stock: 10},
		"70000": {SKU: "70000", Stock: 3},
	}
	table := exportTable(0, []string{"80522", "Eimer", "30"})

	cfg := DefaultConfig()
	cfg.SkipRows = 0
	res, err := newTestPipeline(t, cfg, nil).Run(context.Background(), table, snapshot, testAsOf)
	require.NoError(t, err)
	assert.Len(t, res.Rows, 1)

	cfg.IncludeIdleLedgerSKUs = true
	res, err = newTestPipeline(t, cfg, nil).Run(context.Background(), table, snapshot, testAsOf)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "70000", res.Rows[1].SKU)
	assert.True(t, res.Rows[1].Quantity30d.IsZero())
	assert.Equal(t, 0, res.Rows[1].CoverageDays)
}

func TestRunGroups(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SkipRows = 0
	cfg.Groups = []Group{
		{Name: "Eimer", Prefixes: []string{"805"}},
		{Name: "Sonder", SKUs: []string{"90001"}},
	}
	p := newTestPipeline(t, cfg, nil)

	snapshot := map[string]domain.LedgerRecord{
		"80522": {SKU: "80522", Stock: 30},
		"80523": {SKU: "80523", Stock: 10},
	}
	res, err := p.Run(context.Background(), exportTable(0,
		[]string{"80522", "x", "30"},
		[]string{"80523", "x", "90"},
		[]string{"70000", "x", "5"},
	), snapshot, testAsOf)
	require.NoError(t, err)
	require.Len(t, res.Groups, 2)

	g := res.Groups[0]
	assert.Equal(t, "Eimer", g.Name)
	assert.Equal(t, 2, g.SKUCount)
	assert.Equal(t, "120", g.Quantity30d.String())
	assert.Equal(t, 40, g.Stock)
	assert.InDelta(t, 4, g.ConsumptionPerDay, 1e-9)
	assert.Equal(t, 10, g.CoverageDays)

	assert.Equal(t, 0, res.Groups[1].SKUCount)
	assert.Equal(t, 0, res.Groups[1].CoverageDays)
}

func TestRunWritesIntermediateLayers(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.SkipRows = 0
	cfg.IntermediateDir = dir
	cfg.PersistDebugLayers = true
	p := newTestPipeline(t, cfg, nil)

	_, err := p.RunNamed(context.Background(), "verkauf_maerz.xlsx", exportTable(0, []string{"80522", "x", "30"}), nil, testAsOf)
	require.NoError(t, err)

	for _, stage := range []string{layerAggregated, layerProjection} {
		path := filepath.Join(dir, stage, "20240301", "verkauf_maerz.csv")
		data, err := os.ReadFile(path)
		require.NoError(t, err, stage)
		assert.Contains(t, string(data), "80522")
	}
}

func TestRunHonoursCancelledContext(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SkipRows = 0
	p := newTestPipeline(t, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Run(ctx, exportTable(0, []string{"80522", "x", "1"}), nil, testAsOf)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewPipelineRejectsUnknownMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = "prefix4"
	_, err := NewPipeline(cfg, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidMode)
}
