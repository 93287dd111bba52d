package database

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/ddharvester/internal/domain"
)

// ErrNotQueued is returned by Mark when the item does not exist or has
// already left the queued state.
var ErrNotQueued = errors.New("queue item not found or not queued")

// DefaultBatchSize caps PopBatch when a non-positive limit is given.
const DefaultBatchSize = 50

const queueSelectColumns = `key, url, depth, status, last_error, is_hub, max_comment_depth,
	added_at_utc, updated_at_utc`

// QueueRepository persists crawl queue items.
type QueueRepository struct {
	db    sqlx.ExtContext
	clock Clock
}

// NewQueueRepository creates a new queue repository.
func NewQueueRepository(db sqlx.ExtContext, clock Clock) *QueueRepository {
	return &QueueRepository{db: db, clock: clock}
}

// AddParams contains the parameters for adding an item to the queue.
type AddParams struct {
	Key             string
	URL             string
	Depth           int
	IsHub           bool
	MaxCommentDepth int
}

// Add inserts a queued item unless the key exists. An existing row keeps its
// depth, flags and status. It reports whether a row was created.
func (r *QueueRepository) Add(ctx context.Context, params AddParams) (bool, error) {
	now := formatTime(r.clock())
	query := r.db.Rebind(`
		INSERT INTO crawl_queue (key, url, depth, status, is_hub, max_comment_depth, added_at_utc, updated_at_utc)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (key) DO NOTHING
	`)

	result, err := r.db.ExecContext(ctx, query,
		params.Key, params.URL, params.Depth, domain.QueueStatusQueued,
		boolToInt(params.IsHub), params.MaxCommentDepth, now, now,
	)
	if err != nil {
		return false, storeErr("add queue item", err)
	}

	ok, err := inserted(result)
	if err != nil {
		return false, storeErr("add queue item", err)
	}
	return ok, nil
}

// PopBatch returns up to limit queued items, oldest added first. Items stay
// queued until marked.
func (r *QueueRepository) PopBatch(ctx context.Context, limit int) ([]domain.QueueItem, error) {
	if limit <= 0 {
		limit = DefaultBatchSize
	}

	query := r.db.Rebind(`
		SELECT ` + queueSelectColumns + `
		FROM crawl_queue
		WHERE status = ?
		ORDER BY added_at_utc ASC, key ASC
		LIMIT ?
	`)

	items := []domain.QueueItem{}
	if err := sqlx.SelectContext(ctx, r.db, &items, query, domain.QueueStatusQueued, limit); err != nil {
		return nil, storeErr("pop queue batch", err)
	}
	return items, nil
}

// Mark moves a queued item to status, recording errMsg (nil clears it).
// Returns ErrNotQueued when no queued row matches key.
func (r *QueueRepository) Mark(ctx context.Context, key, status string, errMsg *string) error {
	query := r.db.Rebind(`
		UPDATE crawl_queue
		SET status = ?, last_error = ?, updated_at_utc = ?
		WHERE key = ? AND status = ?
	`)

	result, err := r.db.ExecContext(ctx, query,
		status, errMsg, formatTime(r.clock()), key, domain.QueueStatusQueued,
	)
	return storeErr("mark queue item", execRequireRows(result, err, ErrNotQueued))
}

// RequeueHubs resets every hub row to queued and returns how many rows changed.
func (r *QueueRepository) RequeueHubs(ctx context.Context) (int64, error) {
	query := r.db.Rebind(`UPDATE crawl_queue SET status = ?, updated_at_utc = ? WHERE is_hub = 1`)

	result, err := r.db.ExecContext(ctx, query, domain.QueueStatusQueued, formatTime(r.clock()))
	if err != nil {
		return 0, storeErr("requeue hubs", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, storeErr("requeue hubs", err)
	}
	return n, nil
}

// Get returns the queue item with the given key or ErrNotFound.
func (r *QueueRepository) Get(ctx context.Context, key string) (*domain.QueueItem, error) {
	query := r.db.Rebind(`SELECT ` + queueSelectColumns + ` FROM crawl_queue WHERE key = ?`)

	var item domain.QueueItem
	if err := sqlx.GetContext(ctx, r.db, &item, query, key); err != nil {
		return nil, storeErr("get queue item", notFound(err))
	}
	return &item, nil
}

// List returns up to limit items, optionally filtered by status, oldest first.
func (r *QueueRepository) List(ctx context.Context, status string, limit int) ([]domain.QueueItem, error) {
	query := `SELECT ` + queueSelectColumns + ` FROM crawl_queue`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY added_at_utc ASC, key ASC LIMIT ?`
	args = append(args, limit)

	items := []domain.QueueItem{}
	if err := sqlx.SelectContext(ctx, r.db, &items, r.db.Rebind(query), args...); err != nil {
		return nil, storeErr("list queue items", err)
	}
	return items, nil
}

// Stats returns the status breakdown of the queue.
func (r *QueueRepository) Stats(ctx context.Context) (domain.QueueStats, error) {
	var rows []struct {
		Status string `db:"status"`
		Count  int64  `db:"count"`
	}

	query := `SELECT status, COUNT(*) AS count FROM crawl_queue GROUP BY status`
	if err := sqlx.SelectContext(ctx, r.db, &rows, query); err != nil {
		return domain.QueueStats{}, storeErr("queue stats", err)
	}

	var stats domain.QueueStats
	for _, row := range rows {
		assignStatCount(&stats, row.Status, row.Count)
	}
	return stats, nil
}

func assignStatCount(stats *domain.QueueStats, status string, count int64) {
	switch status {
	case domain.QueueStatusQueued:
		stats.Queued = count
	case domain.QueueStatusDone:
		stats.Done = count
	case domain.QueueStatusError:
		stats.Error = count
	}
}
