package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/andresuchdata/warenbestand/internal/domain"
)

// Repository handles database operations for run tracking
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new run repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateRun creates a new run record
func (r *Repository) CreateRun(ctx context.Context, run *domain.ReconcileRun) error {
	query := `
		INSERT INTO reconcile_runs (
			source_name, status, total_rows, aggregated_rows,
			warning_count, started_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	return r.db.QueryRowContext(
		ctx, query,
		run.SourceName, run.Status, run.TotalRows, run.AggregatedRows,
		run.WarningCount, run.StartedAt,
	).Scan(&run.ID)
}

// UpdateRun updates an existing run
func (r *Repository) UpdateRun(ctx context.Context, run *domain.ReconcileRun) error {
	query := `
		UPDATE reconcile_runs
		SET status = $1, total_rows = $2, aggregated_rows = $3,
		    warning_count = $4, completed_at = $5, error_message = $6
		WHERE id = $7
	`

	_, err := r.db.ExecContext(
		ctx, query,
		run.Status, run.TotalRows, run.AggregatedRows,
		run.WarningCount, run.CompletedAt, run.ErrorMessage, run.ID,
	)
	return err
}

// GetRun retrieves a run by ID
func (r *Repository) GetRun(ctx context.Context, id int64) (*domain.ReconcileRun, error) {
	query := `
		SELECT id, source_name, status, total_rows, aggregated_rows,
		       warning_count, started_at, completed_at, COALESCE(error_message, '')
		FROM reconcile_runs
		WHERE id = $1
	`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// RecentRuns retrieves the latest runs, newest first
func (r *Repository) RecentRuns(ctx context.Context, limit int) ([]*domain.ReconcileRun, error) {
	query := `
		SELECT id, source_name, status, total_rows, aggregated_rows,
		       warning_count, started_at, completed_at, COALESCE(error_message, '')
		FROM reconcile_runs
		ORDER BY started_at DESC, id DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*domain.ReconcileRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (*domain.ReconcileRun, error) {
	run := &domain.ReconcileRun{}
	err := s.Scan(
		&run.ID, &run.SourceName, &run.Status, &run.TotalRows, &run.AggregatedRows,
		&run.WarningCount, &run.StartedAt, &run.CompletedAt, &run.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}
	return run, nil
}
