package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/andresuchdata/warenbestand/internal/config"
	"github.com/andresuchdata/warenbestand/internal/domain"
	"github.com/andresuchdata/warenbestand/internal/pipeline"
	"github.com/andresuchdata/warenbestand/internal/pipeline/coverage"
	"github.com/andresuchdata/warenbestand/internal/repository"
	"github.com/andresuchdata/warenbestand/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMappings struct {
	entries     []domain.MappingEntry
	err         error
	calls       int
	invalidated int
}

func (f *fakeMappings) LoadMapping(context.Context, string) ([]domain.MappingEntry, error) {
	f.calls++
	return f.entries, f.err
}

func (f *fakeMappings) InvalidateMappings(context.Context) error {
	f.invalidated++
	return nil
}

type flakyLedger struct {
	repository.LedgerStore
	failSKU string
}

func (f *flakyLedger) Upsert(ctx context.Context, rec domain.LedgerRecord) error {
	if rec.SKU == f.failSKU {
		return errors.New("connection reset")
	}
	return f.LedgerStore.Upsert(ctx, rec)
}

func intPtr(v int) *int { return &v }

func newTestService(t *testing.T, deps Deps, opts Options) *ReconcileService {
	t.Helper()
	if deps.Ledger == nil {
		deps.Ledger = repository.NewMemoryLedgerRepository()
	}
	if opts.Pipeline.Mode == "" {
		opts.Pipeline = coverage.DefaultConfig()
	}
	if opts.AsOf == "" {
		opts.AsOf = "2024-03-01"
	}
	svc, err := NewReconcileService(deps, opts)
	require.NoError(t, err)
	return svc
}

const exportCSV = "Artikelnummer;Bezeichnung;Anzahl\n80522;Eimer;200\n80522.0;Eimer;100\n80526;Deckel;7\n"

func TestReconcileUploadProjectsAgainstLedger(t *testing.T) {
	ledger := repository.NewMemoryLedgerRepository(domain.LedgerRecord{
		SKU: "80522", Stock: 100, OrderedQuantity: 50, ArrivalDate: "2024-03-11",
	})
	runs := pipeline.NewMemoryRunStore()
	mappings := &fakeMappings{entries: []domain.MappingEntry{{OriginalSKU: "80526", Exclude: true}}}
	svc := newTestService(t, Deps{Ledger: ledger, Runs: runs, Mappings: mappings}, Options{MappingURI: "s3://mapping.csv"})

	res, err := svc.ReconcileUpload(context.Background(), "maerz.csv", []byte(exportCSV), RunOptions{SkipRows: intPtr(0)})
	require.NoError(t, err)
	assert.Equal(t, 1, mappings.calls)

	require.Len(t, res.Rows, 1)
	row := res.Rows[0]
	assert.Equal(t, "80522", row.SKU)
	assert.Equal(t, "300", row.Quantity30d.String())
	assert.InDelta(t, 10.0, row.ConsumptionPerDay, 1e-9)
	assert.InDelta(t, 100.0, row.ConsumptionUntilArrival, 1e-9)
	assert.InDelta(t, 50.0, row.StockAtArrival, 1e-9)
	assert.Equal(t, 5, row.CoverageDays)
	assert.Len(t, res.Warnings, 1)
	assert.Equal(t, domain.WarningExclusion, res.Warnings[0].Kind)

	history, err := svc.RecentRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.RunStatusCompleted, history[0].Status)
	assert.Equal(t, "maerz.csv", history[0].SourceName)
	assert.Equal(t, 3, history[0].TotalRows)
	assert.Equal(t, 1, history[0].AggregatedRows)
}

func TestReconcileFailureIsTracked(t *testing.T) {
	runs := pipeline.NewMemoryRunStore()
	svc := newTestService(t, Deps{Runs: runs}, Options{})

	_, err := svc.ReconcileUpload(context.Background(), "bad.csv", []byte("SKU;Menge\n1;2\n"), RunOptions{SkipRows: intPtr(0)})
	require.ErrorIs(t, err, domain.ErrMissingColumn)

	_, err = svc.ReconcileUpload(context.Background(), "old.xls", []byte("x"), RunOptions{})
	require.ErrorIs(t, err, domain.ErrUnsupportedFormat)

	history, err := svc.RecentRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	for _, run := range history {
		assert.Equal(t, domain.RunStatusFailed, run.Status)
		assert.NotEmpty(t, run.ErrorMessage)
	}
}

func TestReconcileMappingError(t *testing.T) {
	mappings := &fakeMappings{err: domain.ErrSourceNotConfigured}
	svc := newTestService(t, Deps{Mappings: mappings}, Options{MappingURI: "gdrive://x"})

	_, err := svc.ReconcileFile(context.Background(), "maerz.csv", []byte(exportCSV))
	assert.ErrorIs(t, err, domain.ErrSourceNotConfigured)
}

func TestPrepareRefreshesMapping(t *testing.T) {
	mappings := &fakeMappings{}
	svc := newTestService(t, Deps{Mappings: mappings}, Options{MappingURI: "s3://mapping.csv"})

	_, err := svc.Prepare(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Zero(t, mappings.invalidated)

	_, err = svc.Prepare(context.Background(), RunOptions{RefreshMapping: true})
	require.NoError(t, err)
	assert.Equal(t, 1, mappings.invalidated)
	assert.Equal(t, 2, mappings.calls)

	require.NoError(t, svc.RefreshMappings(context.Background()))
	assert.Equal(t, 2, mappings.invalidated)
}

func TestRunOptionsOverride(t *testing.T) {
	svc := newTestService(t, Deps{}, Options{})

	_, err := svc.Prepare(context.Background(), RunOptions{Mode: "weird"})
	assert.ErrorIs(t, err, domain.ErrInvalidMode)

	_, err = svc.Prepare(context.Background(), RunOptions{AsOf: "01.03.2024"})
	assert.Error(t, err)

	prepared, err := svc.Prepare(context.Background(), RunOptions{Mode: "prefix5", SkipRows: intPtr(2), AsOf: "2024-06-30"})
	require.NoError(t, err)
	assert.Equal(t, coverage.ModePrefix5, prepared.Pipeline.Config().Mode)
	assert.Equal(t, 2, prepared.Pipeline.Config().SkipRows)
	assert.Equal(t, "2024-06-30", prepared.AsOf.Format(dateLayout))
}

func TestNewReconcileServiceValidation(t *testing.T) {
	_, err := NewReconcileService(Deps{}, Options{})
	assert.Error(t, err)

	_, err = NewReconcileService(Deps{Ledger: repository.NewMemoryLedgerRepository()}, Options{MappingURI: "s3://m.csv"})
	assert.ErrorIs(t, err, domain.ErrSourceNotConfigured)

	cfg := coverage.DefaultConfig()
	cfg.SkipRows = -1
	_, err = NewReconcileService(Deps{Ledger: repository.NewMemoryLedgerRepository()}, Options{Pipeline: cfg})
	assert.Error(t, err)
}

func TestSaveLedgerPartialFailure(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryLedgerRepository(domain.LedgerRecord{SKU: "3", Stock: 9, ArrivalDate: "2024-01-01"})
	svc := newTestService(t, Deps{Ledger: &flakyLedger{LedgerStore: store, failSKU: "2"}}, Options{})

	res, err := svc.SaveLedger(ctx, []domain.LedgerRecord{
		{SKU: " 1 ", Stock: 5, OrderedQuantity: 2, ArrivalDate: "11.03.2024"},
		{SKU: "2", Stock: 1},
		{SKU: "3", Stock: 4},
		{SKU: "4", Stock: -1},
		{SKU: "", Stock: 1},
		{SKU: "5", ArrivalDate: "next week"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3"}, res.Saved)
	require.Len(t, res.Failed, 4)
	assert.Equal(t, "2", res.Failed[0].SKU)
	assert.Contains(t, res.Failed[0].Error, "connection reset")
	assert.Equal(t, "4", res.Failed[1].SKU)
	assert.Equal(t, "", res.Failed[2].SKU)
	assert.Equal(t, "5", res.Failed[3].SKU)

	rec, err := store.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-11", rec.ArrivalDate)

	rec, err = store.Get(ctx, "3")
	require.NoError(t, err)
	assert.Equal(t, 4, rec.Stock)
	assert.Empty(t, rec.ArrivalDate)

	_, err = store.Get(ctx, "4")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	records, err := svc.Ledger(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestSaveLedgerEmptyBatch(t *testing.T) {
	svc := newTestService(t, Deps{}, Options{})
	res, err := svc.SaveLedger(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Saved)
	assert.NotNil(t, res.Failed)
}

func TestSaveLedgerCancelled(t *testing.T) {
	svc := newTestService(t, Deps{}, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.SaveLedger(ctx, []domain.LedgerRecord{{SKU: "1"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildPipelineConfig(t *testing.T) {
	pc := config.PipelineConfig{Mode: "prefix5", SkipRows: 3, SKUColumn: "#1", QuantityColumn: "Menge", WindowDays: 28, DecimalSeparator: "."}
	cat := &config.Catalog{
		Conversions: []config.ConversionSpec{{SKU: " 80522 ", Carton: "12", Pallet: "480"}, {SKU: "9000", Carton: "2.5"}},
		Groups:      []config.GroupSpec{{Name: "Kaffee", Prefixes: []string{"805"}}},
	}

	cfg, err := BuildPipelineConfig(pc, cat)
	require.NoError(t, err)
	assert.Equal(t, coverage.ModePrefix5, cfg.Mode)
	assert.Equal(t, "#1", cfg.Columns.SKU)
	assert.Equal(t, 28, cfg.WindowDays)
	assert.Equal(t, byte(coverage.DecimalPoint), cfg.DecimalSeparator)
	assert.Equal(t, "12", cfg.Conversions["80522"].CartonMultiplier.String())
	assert.Equal(t, "480", cfg.Conversions["80522"].PalletQuantity.String())
	assert.True(t, cfg.Conversions["9000"].PalletQuantity.IsZero())
	require.Len(t, cfg.Groups, 1)
	assert.Equal(t, "Kaffee", cfg.Groups[0].Name)

	_, err = BuildPipelineConfig(pc, &config.Catalog{Conversions: []config.ConversionSpec{{SKU: "1", Carton: "-2"}}})
	assert.Error(t, err)
	_, err = BuildPipelineConfig(config.PipelineConfig{Mode: "nope"}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidMode)

	cfg, err = BuildPipelineConfig(config.PipelineConfig{}, nil)
	require.NoError(t, err)
	assert.Equal(t, coverage.ModeFull, cfg.Mode)
	assert.Equal(t, byte(coverage.DecimalComma), cfg.DecimalSeparator)

	_, err = BuildPipelineConfig(config.PipelineConfig{DecimalSeparator: ";"}, nil)
	assert.Error(t, err)
}

func TestResolveAsOf(t *testing.T) {
	berlin, err := LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	now := time.Date(2024, 3, 31, 23, 30, 0, 0, time.UTC)
	got, err := ResolveAsOf("", berlin, now)
	require.NoError(t, err)
	assert.Equal(t, "2024-04-01", got.Format(dateLayout))

	got, err = ResolveAsOf("2024-02-29", berlin, now)
	require.NoError(t, err)
	assert.Equal(t, berlin, got.Location())

	_, err = LoadLocation("Mars/Base")
	assert.Error(t, err)
	loc, err := LoadLocation("")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "maerz", baseName("uploads/maerz.xlsx"))
	assert.Equal(t, "export", baseName(`C:\exports\export.csv`))
	assert.Equal(t, ".hidden", baseName(".hidden"))
}

type recordingArchive struct {
	storage.ObjectStorage
	keys []string
}

func (r *recordingArchive) UploadObject(_ context.Context, key string, _ []byte) error {
	r.keys = append(r.keys, key)
	return nil
}

func TestArchiveExport(t *testing.T) {
	svc := newTestService(t, Deps{}, Options{})
	key, err := svc.ArchiveExport(context.Background(), "x.xlsx", []byte("x"))
	require.NoError(t, err)
	assert.Empty(t, key)

	archive := &recordingArchive{}
	svc = newTestService(t, Deps{Archive: archive}, Options{ArchivePrefix: "exports"})
	svc.now = func() time.Time { return time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC) }
	key, err = svc.ArchiveExport(context.Background(), "maerz_coverage.xlsx", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "exports/20240305/maerz_coverage.xlsx", key)
	assert.Equal(t, []string{key}, archive.keys)
}
