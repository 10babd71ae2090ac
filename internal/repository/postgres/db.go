package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/andresuchdata/warenbestand/internal/config"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

const (
	DriverPQ  = "postgres"
	DriverPGX = "pgx"
)

type DB struct {
	*sqlx.DB
	sem *semaphore.Weighted
}

var (
	dbInstance *DB
	dbErr      error
	once       sync.Once
)

// NewDB creates the shared connection pool. Driver "pgx" uses the pgx stdlib adapter, anything else lib/pq.
func NewDB(cfg *config.DatabaseConfig) (*DB, error) {
	once.Do(func() {
		driver := DriverPQ
		if cfg.Driver == DriverPGX {
			driver = DriverPGX
		}

		var db *sqlx.DB
		db, dbErr = sqlx.Connect(driver, cfg.DSN())
		if dbErr != nil {
			dbErr = fmt.Errorf("connect %s: %w", driver, dbErr)
			return
		}

		// Configure connection pool
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		// Initialize with a semaphore to limit concurrent operations
		dbInstance = &DB{
			DB:  db,
			sem: semaphore.NewWeighted(10), // Limit to 10 concurrent operations
		}
		log.Info().Str("driver", driver).Str("host", cfg.Host).Str("db", cfg.DBName).Msg("database connected")
	})

	return dbInstance, dbErr
}

// Wrap adapts an existing connection, mainly for tests and tools that open their own pool
func Wrap(db *sqlx.DB) *DB {
	return &DB{DB: db, sem: semaphore.NewWeighted(10)}
}

// WithTx executes a function within a transaction
func (db *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return db.withPermit(ctx, func() error {
		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("could not begin transaction: %w", err)
		}

		if err := fn(tx.Tx); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error().Err(rbErr).Msg("could not rollback transaction")
			}
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("could not commit transaction: %w", err)
		}

		return nil
	})
}

// withPermit runs fn while holding one slot of the operation semaphore
func (db *DB) withPermit(ctx context.Context, fn func() error) error {
	if err := db.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("could not acquire semaphore: %w", err)
	}
	defer db.sem.Release(1)
	return fn()
}
