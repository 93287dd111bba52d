// Package telemetry keeps per-run counters, progress heartbeats and the
// optional Prometheus textfile export.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/jonesrussell/ddharvester/internal/domain"
	"github.com/jonesrussell/ddharvester/internal/logger"
)

// RunStore persists run records.
type RunStore interface {
	Begin(ctx context.Context, notes string) (string, error)
	UpdateStats(ctx context.Context, runID string, c domain.RunCounters) error
	End(ctx context.Context, runID string) error
}

// Recorder owns the counters of one run and writes them through RunStore.
// It is not safe for concurrent use.
type Recorder struct {
	runs     RunStore
	log      logger.Logger
	now      func() time.Time
	textfile string

	runID    string
	started  time.Time
	Counters domain.RunCounters
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithTextfile enables the Prometheus textfile export at path.
func WithTextfile(path string) RecorderOption {
	return func(r *Recorder) {
		r.textfile = path
	}
}

// WithRecorderClock sets the time source used for the run duration.
func WithRecorderClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		r.now = now
	}
}

// NewRecorder creates a recorder.
func NewRecorder(runs RunStore, log logger.Logger, opts ...RecorderOption) *Recorder {
	r := &Recorder{runs: runs, log: log, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunID returns the id of the current run, empty before Begin.
func (r *Recorder) RunID() string {
	return r.runID
}

// Begin creates the run record.
func (r *Recorder) Begin(ctx context.Context, notes string) (string, error) {
	runID, err := r.runs.Begin(ctx, notes)
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}
	r.runID = runID
	r.started = r.now()
	r.log.Info("Run started", logger.String("run_id", runID), logger.String("notes", notes))
	return runID, nil
}

// Flush persists the current counters.
func (r *Recorder) Flush(ctx context.Context) error {
	if err := r.runs.UpdateStats(ctx, r.runID, r.Counters); err != nil {
		return fmt.Errorf("update run stats: %w", err)
	}
	return nil
}

// Finish flushes the counters, records the end instant and, when enabled,
// writes the metrics textfile. Every step is attempted even if an earlier
// one fails; the first error is returned.
func (r *Recorder) Finish(ctx context.Context, runErr error, queue domain.QueueStats) error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	keep(r.Flush(ctx))
	if err := r.runs.End(ctx, r.runID); err != nil {
		keep(fmt.Errorf("end run: %w", err))
	}

	finished := r.now()
	duration := finished.Sub(r.started)

	if r.textfile != "" {
		m := NewMetrics()
		m.Observe(r.Counters, queue, duration, runErr == nil, finished)
		keep(m.WriteTextfile(r.textfile))
	}

	fields := []logger.Field{
		logger.String("run_id", r.runID),
		logger.Duration("duration", duration),
		logger.Int("posts_inserted", r.Counters.PostsInserted),
		logger.Int("hubs_queued", r.Counters.HubsQueued),
		logger.Int("queue_done", r.Counters.QueueDone),
		logger.Int("errors", r.Counters.Errors),
	}
	if runErr != nil {
		r.log.Error("Run failed", append(fields, logger.Error(runErr))...)
	} else {
		r.log.Info("Run finished", fields...)
	}

	return firstErr
}
