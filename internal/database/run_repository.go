package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/ddharvester/internal/domain"
)

const runSelectColumns = `run_id, started_at_utc, ended_at_utc, notes, posts_inserted, hubs_queued,
	queue_done, errors`

// RunRepository persists run records.
type RunRepository struct {
	db    sqlx.ExtContext
	clock Clock
}

// NewRunRepository creates a new run repository.
func NewRunRepository(db sqlx.ExtContext, clock Clock) *RunRepository {
	return &RunRepository{db: db, clock: clock}
}

// Begin creates a run record with zeroed counters and returns its id.
func (r *RunRepository) Begin(ctx context.Context, notes string) (string, error) {
	runID := uuid.NewString()
	query := r.db.Rebind(`INSERT INTO runs (run_id, started_at_utc, notes) VALUES (?, ?, ?)`)

	if _, err := r.db.ExecContext(ctx, query, runID, formatTime(r.clock()), notes); err != nil {
		return "", storeErr("begin run", err)
	}
	return runID, nil
}

// UpdateStats overwrites the counters of a run.
func (r *RunRepository) UpdateStats(ctx context.Context, runID string, c domain.RunCounters) error {
	query := r.db.Rebind(`
		UPDATE runs
		SET posts_inserted = ?, hubs_queued = ?, queue_done = ?, errors = ?
		WHERE run_id = ?
	`)

	result, err := r.db.ExecContext(ctx, query, c.PostsInserted, c.HubsQueued, c.QueueDone, c.Errors, runID)
	return storeErr("update run stats", execRequireRows(result, err, ErrNotFound))
}

// End records the end instant of a run.
func (r *RunRepository) End(ctx context.Context, runID string) error {
	query := r.db.Rebind(`UPDATE runs SET ended_at_utc = ? WHERE run_id = ?`)

	result, err := r.db.ExecContext(ctx, query, formatTime(r.clock()), runID)
	return storeErr("end run", execRequireRows(result, err, ErrNotFound))
}

// Get returns the run with the given id or ErrNotFound.
func (r *RunRepository) Get(ctx context.Context, runID string) (*domain.Run, error) {
	query := r.db.Rebind(`SELECT ` + runSelectColumns + ` FROM runs WHERE run_id = ?`)

	var run domain.Run
	if err := sqlx.GetContext(ctx, r.db, &run, query, runID); err != nil {
		return nil, storeErr("get run", notFound(err))
	}
	return &run, nil
}

// List returns the most recent runs, newest first.
func (r *RunRepository) List(ctx context.Context, limit int) ([]domain.Run, error) {
	query := r.db.Rebind(`SELECT ` + runSelectColumns + ` FROM runs ORDER BY started_at_utc DESC LIMIT ?`)

	runs := []domain.Run{}
	if err := sqlx.SelectContext(ctx, r.db, &runs, query, limit); err != nil {
		return nil, storeErr("list runs", err)
	}
	return runs, nil
}
