package service

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/andresuchdata/warenbestand/internal/cache"
	"github.com/andresuchdata/warenbestand/internal/domain"
	"github.com/andresuchdata/warenbestand/internal/ingest"
	"github.com/andresuchdata/warenbestand/internal/pipeline"
	"github.com/andresuchdata/warenbestand/internal/pipeline/coverage"
	"github.com/andresuchdata/warenbestand/internal/repository"
	"github.com/andresuchdata/warenbestand/internal/storage"
	"github.com/rs/zerolog/log"
)

// MappingLoader fetches the SKU mapping table behind a URI
type MappingLoader interface {
	LoadMapping(ctx context.Context, uri string) ([]domain.MappingEntry, error)
	InvalidateMappings(ctx context.Context) error
}

// Deps are the collaborators of ReconcileService. Only Ledger is required.
type Deps struct {
	Ledger   repository.LedgerStore
	Mappings MappingLoader
	Runs     pipeline.RunStore
	Locker   cache.BatchLocker
	Archive  storage.ObjectStorage
}

// Options configure ReconcileService
type Options struct {
	Pipeline   coverage.Config
	MappingURI string
	Location   *time.Location
	AsOf       string // fixed yyyy-mm-dd reference date, empty for today
	// ArchivePrefix is the object key prefix generated workbooks are copied to when Archive is set
	ArchivePrefix string
}

// RunOptions are per-request overrides of the configured pipeline
type RunOptions struct {
	Mode     string
	SkipRows *int
	AsOf     string
	// RefreshMapping drops the cached mapping table before loading it
	RefreshMapping bool
}

// Prepared bundles everything a run needs so several files can share one ledger snapshot
type Prepared struct {
	Pipeline *coverage.Pipeline
	Snapshot map[string]domain.LedgerRecord
	AsOf     time.Time
}

type ReconcileService struct {
	ledger     repository.LedgerStore
	mappings   MappingLoader
	runs       pipeline.RunStore
	tracker    *pipeline.Tracker
	locker     cache.BatchLocker
	archive    storage.ObjectStorage
	archiveDir string
	config     coverage.Config
	mappingURI string
	loc        *time.Location
	asOf       string
	now        func() time.Time
}

func NewReconcileService(deps Deps, opts Options) (*ReconcileService, error) {
	if deps.Ledger == nil {
		return nil, fmt.Errorf("ledger store is required")
	}
	if strings.TrimSpace(opts.MappingURI) != "" && deps.Mappings == nil {
		return nil, fmt.Errorf("%w: mapping uri %s set without a loader", domain.ErrSourceNotConfigured, opts.MappingURI)
	}
	if _, err := coverage.NewPipeline(opts.Pipeline, nil); err != nil {
		return nil, err
	}

	locker := deps.Locker
	if locker == nil {
		locker = cache.NewBatchLocker(nil, 0)
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	return &ReconcileService{
		ledger:     deps.Ledger,
		mappings:   deps.Mappings,
		runs:       deps.Runs,
		tracker:    pipeline.NewTracker(deps.Runs),
		locker:     locker,
		archive:    deps.Archive,
		archiveDir: opts.ArchivePrefix,
		config:     opts.Pipeline,
		mappingURI: strings.TrimSpace(opts.MappingURI),
		loc:        loc,
		asOf:       opts.AsOf,
		now:        time.Now,
	}, nil
}

// Tracker returns the run tracker shared with batch workers
func (s *ReconcileService) Tracker() *pipeline.Tracker {
	return s.tracker
}

// Prepare loads the mapping and the ledger snapshot and builds the pipeline for opts
func (s *ReconcileService) Prepare(ctx context.Context, opts RunOptions) (*Prepared, error) {
	cfg := s.config
	if opts.Mode != "" {
		mode, err := coverage.ParseMode(opts.Mode)
		if err != nil {
			return nil, err
		}
		cfg.Mode = mode
	}
	if opts.SkipRows != nil {
		cfg.SkipRows = *opts.SkipRows
	}

	asOfOverride := s.asOf
	if opts.AsOf != "" {
		asOfOverride = opts.AsOf
	}
	asOf, err := ResolveAsOf(asOfOverride, s.loc, s.now())
	if err != nil {
		return nil, err
	}

	if opts.RefreshMapping {
		if err := s.RefreshMappings(ctx); err != nil {
			return nil, err
		}
	}
	mapper, err := s.loadMapper(ctx)
	if err != nil {
		return nil, err
	}

	p, err := coverage.NewPipeline(cfg, mapper)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.ledger.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}

	return &Prepared{Pipeline: p, Snapshot: snapshot, AsOf: asOf}, nil
}

// RefreshMappings invalidates cached mapping tables
func (s *ReconcileService) RefreshMappings(ctx context.Context) error {
	if s.mappings == nil {
		return nil
	}
	if err := s.mappings.InvalidateMappings(ctx); err != nil {
		return err
	}
	log.Info().Str("uri", s.mappingURI).Msg("mapping cache invalidated")
	return nil
}

func (s *ReconcileService) loadMapper(ctx context.Context) (*coverage.Mapper, error) {
	if s.mappingURI == "" {
		return nil, nil
	}
	entries, err := s.mappings.LoadMapping(ctx, s.mappingURI)
	if err != nil {
		return nil, err
	}
	mapper := coverage.NewMapper(entries)
	log.Debug().Str("uri", s.mappingURI).Int("entries", mapper.Len()).Msg("mapping loaded")
	return mapper, nil
}

// Reconcile runs the pipeline over an already parsed table and records the run
func (s *ReconcileService) Reconcile(ctx context.Context, name string, table [][]string, opts RunOptions) (*coverage.Result, error) {
	run := s.tracker.Start(ctx, name)

	prepared, err := s.Prepare(ctx, opts)
	if err != nil {
		s.tracker.Fail(ctx, run, err)
		return nil, err
	}

	res, err := prepared.Pipeline.RunNamed(ctx, baseName(name), table, prepared.Snapshot, prepared.AsOf)
	if err != nil {
		s.tracker.Fail(ctx, run, err)
		return nil, err
	}
	s.tracker.Complete(ctx, run, res)

	log.Info().
		Str("source", name).
		Int("rows", len(res.Rows)).
		Int("warnings", len(res.Warnings)).
		Str("as_of", prepared.AsOf.Format(dateLayout)).
		Msg("reconcile completed")
	return res, nil
}

// ReconcileUpload parses an uploaded CSV or XLSX file and reconciles it
func (s *ReconcileService) ReconcileUpload(ctx context.Context, name string, data []byte, opts RunOptions) (*coverage.Result, error) {
	table, err := ingest.ReadTable(name, data)
	if err != nil {
		run := s.tracker.Start(ctx, name)
		s.tracker.Fail(ctx, run, err)
		return nil, err
	}
	return s.Reconcile(ctx, name, table, opts)
}

// ReconcileFile reconciles a file with the configured defaults
func (s *ReconcileService) ReconcileFile(ctx context.Context, name string, data []byte) (*coverage.Result, error) {
	return s.ReconcileUpload(ctx, name, data, RunOptions{})
}

// RecentRuns lists run history, newest first
func (s *ReconcileService) RecentRuns(ctx context.Context, limit int) ([]*domain.ReconcileRun, error) {
	if s.runs == nil {
		return []*domain.ReconcileRun{}, nil
	}
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	return s.runs.RecentRuns(ctx, limit)
}

// Run returns one recorded run
func (s *ReconcileService) Run(ctx context.Context, id int64) (*domain.ReconcileRun, error) {
	if s.runs == nil {
		return nil, fmt.Errorf("run %d: %w", id, domain.ErrNotFound)
	}
	return s.runs.GetRun(ctx, id)
}

// ArchiveExport copies a generated workbook to object storage and returns its key.
// Without an archive backend it does nothing and returns an empty key.
func (s *ReconcileService) ArchiveExport(ctx context.Context, name string, data []byte) (string, error) {
	if s.archive == nil {
		return "", nil
	}
	key := storage.ResolveObjectKey(s.archiveDir, path.Join(s.now().In(s.loc).Format("20060102"), name))
	if err := s.archive.UploadObject(ctx, key, data); err != nil {
		return "", fmt.Errorf("archive %s: %w", key, err)
	}
	return key, nil
}

func baseName(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	return name
}
