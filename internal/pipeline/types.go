package pipeline

import (
	"context"
	"time"

	"github.com/andresuchdata/warenbestand/internal/domain"
	"github.com/andresuchdata/warenbestand/internal/pipeline/coverage"
)

// RunStore persists the history of reconcile runs
type RunStore interface {
	CreateRun(ctx context.Context, run *domain.ReconcileRun) error
	UpdateRun(ctx context.Context, run *domain.ReconcileRun) error
	GetRun(ctx context.Context, id int64) (*domain.ReconcileRun, error)
	RecentRuns(ctx context.Context, limit int) ([]*domain.ReconcileRun, error)
}

// TableReader loads the raw rows of an export file
type TableReader func(ctx context.Context, path string) ([][]string, error)

// WorkerConfig holds configuration for batch processing of export files
type WorkerConfig struct {
	WorkerCount int // Number of concurrent workers
}

// DefaultWorkerConfig returns sensible defaults
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{WorkerCount: 4}
}

// FileResult is the outcome of processing one export file in a batch
type FileResult struct {
	Path     string
	Run      *domain.ReconcileRun
	Result   *coverage.Result
	Err      error
	Duration time.Duration
}
