package pipeline

import (
	"context"
	"time"

	"github.com/andresuchdata/warenbestand/internal/domain"
	"github.com/andresuchdata/warenbestand/internal/pipeline/coverage"
	"github.com/rs/zerolog/log"
)

const finishTimeout = 5 * time.Second

// Tracker records run history around pipeline executions.
// Failing to record history never fails the run itself.
type Tracker struct {
	store RunStore
	now   func() time.Time
}

// NewTracker creates a tracker; a nil store disables tracking
func NewTracker(store RunStore) *Tracker {
	return &Tracker{store: store, now: time.Now}
}

// Start creates a processing run record for source
func (t *Tracker) Start(ctx context.Context, source string) *domain.ReconcileRun {
	run := &domain.ReconcileRun{
		SourceName: source,
		Status:     domain.RunStatusProcessing,
		StartedAt:  t.clock(),
	}
	if t == nil || t.store == nil {
		return run
	}
	if err := t.store.CreateRun(ctx, run); err != nil {
		log.Warn().Err(err).Str("source", source).Msg("failed to create run record")
	}
	return run
}

// Complete marks run as completed with the counts of res
func (t *Tracker) Complete(ctx context.Context, run *domain.ReconcileRun, res *coverage.Result) {
	if res != nil {
		run.TotalRows = res.Stats.DataRows
		run.AggregatedRows = res.Stats.AggregatedSKUs
		run.WarningCount = len(res.Warnings)
	}
	t.finish(ctx, run, domain.RunStatusCompleted, "")
}

// Fail marks run as failed with err
func (t *Tracker) Fail(ctx context.Context, run *domain.ReconcileRun, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	t.finish(ctx, run, domain.RunStatusFailed, msg)
}

func (t *Tracker) finish(ctx context.Context, run *domain.ReconcileRun, status domain.RunStatus, msg string) {
	now := t.clock()
	run.Status = status
	run.ErrorMessage = msg
	run.CompletedAt = &now
	if t == nil || t.store == nil || run.ID == 0 {
		return
	}
	// the run's own context may already be cancelled; the final status must still land
	updateCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()
	if err := t.store.UpdateRun(updateCtx, run); err != nil {
		log.Warn().Err(err).Int64("run_id", run.ID).Msg("failed to update run record")
	}
}

func (t *Tracker) clock() time.Time {
	if t == nil || t.now == nil {
		return time.Now()
	}
	return t.now()
}
