package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/andresuchdata/warenbestand/internal/domain"
	"github.com/andresuchdata/warenbestand/internal/pipeline/coverage"
	"github.com/rs/zerolog/log"
)

// Worker runs the coverage pipeline over a batch of export files.
// All files in a batch are reconciled against the same ledger snapshot.
type Worker struct {
	pipeline *coverage.Pipeline
	read     TableReader
	tracker  *Tracker
	config   WorkerConfig
}

// NewWorker creates a new batch worker
func NewWorker(p *coverage.Pipeline, read TableReader, tracker *Tracker, cfg WorkerConfig) *Worker {
	return &Worker{
		pipeline: p,
		read:     read,
		tracker:  tracker,
		config:   cfg,
	}
}

// ProcessBatch processes files concurrently. Results are returned in input order;
// a failing file does not stop the others.
func (w *Worker) ProcessBatch(ctx context.Context, files []string, snapshot map[string]domain.LedgerRecord, asOf time.Time) []FileResult {
	results := make([]FileResult, len(files))
	if len(files) == 0 {
		return results
	}

	log.Info().
		Str("pipeline", w.pipeline.Name()).
		Int("files", len(files)).
		Str("as_of", asOf.Format("2006-01-02")).
		Msg("starting batch")

	workerCount := w.config.WorkerCount
	if workerCount < 1 {
		workerCount = 1
	}
	if workerCount > len(files) {
		workerCount = len(files)
	}

	jobChan := make(chan int, len(files))
	var wg sync.WaitGroup

	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for idx := range jobChan {
				results[idx] = w.processFile(ctx, files[idx], snapshot, asOf)
				if err := results[idx].Err; err != nil {
					log.Error().Err(err).Int("worker", workerID).Str("file", files[idx]).Msg("failed to process file")
				}
			}
		}(i)
	}

	for i := range files {
		jobChan <- i
	}
	close(jobChan)
	wg.Wait()

	return results
}

func (w *Worker) processFile(ctx context.Context, path string, snapshot map[string]domain.LedgerRecord, asOf time.Time) FileResult {
	start := time.Now()
	name := filepath.Base(path)
	res := FileResult{Path: path, Run: w.tracker.Start(ctx, name)}

	if err := ctx.Err(); err != nil {
		res.Err = err
		w.tracker.Fail(ctx, res.Run, err)
		return res
	}

	table, err := w.read(ctx, path)
	if err != nil {
		res.Err = fmt.Errorf("read %s: %w", name, err)
		w.tracker.Fail(ctx, res.Run, res.Err)
		return res
	}

	out, err := w.pipeline.RunNamed(ctx, name, table, snapshot, asOf)
	if err != nil {
		res.Err = fmt.Errorf("reconcile %s: %w", name, err)
		w.tracker.Fail(ctx, res.Run, res.Err)
		return res
	}

	res.Result = out
	res.Duration = time.Since(start)
	w.tracker.Complete(ctx, res.Run, out)

	log.Info().
		Str("file", name).
		Int("rows", out.Stats.DataRows).
		Int("skus", out.Stats.AggregatedSKUs).
		Dur("duration", res.Duration).
		Msg("file reconciled")

	return res
}
