package app

import (
	"context"
	"fmt"

	"github.com/andresuchdata/warenbestand/internal/cache"
	"github.com/andresuchdata/warenbestand/internal/config"
	"github.com/andresuchdata/warenbestand/internal/drive"
	"github.com/andresuchdata/warenbestand/internal/pipeline"
	"github.com/andresuchdata/warenbestand/internal/repository"
	"github.com/andresuchdata/warenbestand/internal/repository/postgres"
	"github.com/andresuchdata/warenbestand/internal/service"
	"github.com/andresuchdata/warenbestand/internal/source"
	"github.com/andresuchdata/warenbestand/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	LedgerBackendPostgres = "postgres"
	LedgerBackendMemory   = "memory"
)

// App holds the wired components shared by the server, the Drive API and the CLI
type App struct {
	Config   *config.Config
	Service  *service.ReconcileService
	Ledger   repository.LedgerStore
	Runs     pipeline.RunStore
	Resolver *source.Resolver
	DB       *postgres.DB
	Storage  storage.ObjectStorage
	Drive    *drive.Service
	Redis    *redis.Client
}

// New wires every component enabled by cfg. Optional backends (Redis, object storage,
// Google Drive) are skipped when not configured.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	if err := a.openLedger(cfg); err != nil {
		return nil, err
	}

	client, err := cache.NewRedisClient(cfg.Cache)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, continuing without mapping cache and batch lock")
	}
	a.Redis = client

	if cfg.Storage.Backend != "" {
		a.Storage, err = storage.New(storage.Config{
			Backend:   cfg.Storage.Backend,
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			Region:    cfg.Storage.Region,
			UseSSL:    cfg.Storage.UseSSL,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init object storage: %w", err)
		}
	}

	creds, err := cfg.Drive.Credentials()
	if err != nil {
		a.Close()
		return nil, err
	}
	if creds != "" {
		a.Drive, err = drive.NewService(ctx, creds)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	opts := []source.Option{source.WithMappingCache(cache.NewMappingCache(a.Redis, cache.MappingTTL(cfg.Cache)))}
	if a.Storage != nil {
		opts = append(opts, source.WithObjectStorage(a.Storage, cfg.Storage.Prefix))
	}
	if a.Drive != nil {
		opts = append(opts, source.WithDrive(a.Drive))
	}
	a.Resolver = source.NewResolver(opts...)

	a.Service, err = a.buildService(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) openLedger(cfg *config.Config) error {
	switch cfg.Ledger.Backend {
	case LedgerBackendMemory:
		a.Ledger = repository.NewMemoryLedgerRepository()
		a.Runs = pipeline.NewMemoryRunStore()
		log.Warn().Msg("using in-memory ledger, edits are lost on restart")
		return nil
	case "", LedgerBackendPostgres:
		db, err := postgres.NewDB(&cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		a.DB = db
		a.Ledger = postgres.NewLedgerRepository(db)
		a.Runs = pipeline.NewRepository(db.DB.DB)
		return nil
	default:
		return fmt.Errorf("unknown ledger backend %q", cfg.Ledger.Backend)
	}
}

func (a *App) buildService(cfg *config.Config) (*service.ReconcileService, error) {
	catalog, err := config.LoadCatalog(cfg.Pipeline.CatalogFile)
	if err != nil {
		return nil, err
	}
	pipelineCfg, err := service.BuildPipelineConfig(cfg.Pipeline, catalog)
	if err != nil {
		return nil, err
	}
	loc, err := service.LoadLocation(cfg.Pipeline.Timezone)
	if err != nil {
		return nil, err
	}

	deps := service.Deps{
		Ledger:   a.Ledger,
		Mappings: a.Resolver,
		Runs:     a.Runs,
		Locker:   cache.NewBatchLocker(a.Redis, cache.LockTTL(cfg.Cache)),
		Archive:  a.Storage,
	}
	return service.NewReconcileService(deps, service.Options{
		Pipeline:      pipelineCfg,
		MappingURI:    cfg.Pipeline.MappingURI,
		Location:      loc,
		AsOf:          cfg.Pipeline.AsOf,
		ArchivePrefix: storage.ResolveObjectKey(cfg.Storage.Prefix, "exports"),
	})
}

// Close releases the database pool and the Redis client
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close redis client")
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close database")
		}
	}
}
