package frontier

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/jonesrussell/ddharvester/internal/database"
	"github.com/jonesrussell/ddharvester/internal/domain"
)

// Queue defaults.
const (
	DefaultMaxDepth  = 3
	DefaultBatchSize = 50
)

// ErrDepthExceeded is returned when an item deeper than the bound is enqueued.
var ErrDepthExceeded = errors.New("frontier: depth exceeds maximum")

// Repository is the queue persistence the frontier drives.
type Repository interface {
	Add(ctx context.Context, params database.AddParams) (bool, error)
	PopBatch(ctx context.Context, limit int) ([]domain.QueueItem, error)
	Mark(ctx context.Context, key, status string, errMsg *string) error
	RequeueHubs(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (domain.QueueStats, error)
}

// Config bounds the frontier.
type Config struct {
	MaxDepth  int
	BatchSize int
}

// WithDefaults returns a copy of the config with zero values replaced by defaults.
func (c Config) WithDefaults() Config {
	if c.MaxDepth <= 0 {
		c.MaxDepth = DefaultMaxDepth
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	return c
}

// Entry is an item to enqueue.
type Entry struct {
	Key             string
	URL             string
	Depth           int
	IsHub           bool
	MaxCommentDepth int
}

// Queue is the crawl frontier state machine. Items move from queued to done
// or error and stay there unless hubs are explicitly requeued.
type Queue struct {
	repo Repository
	cfg  Config
}

// New creates a queue over repo. Bind it to a transaction's repository to
// make its writes part of that unit of work.
func New(repo Repository, cfg Config) *Queue {
	return &Queue{repo: repo, cfg: cfg.WithDefaults()}
}

// MaxDepth returns the depth bound.
func (q *Queue) MaxDepth() int {
	return q.cfg.MaxDepth
}

// Enqueue adds an entry unless its key is already present, in which case the
// existing row is left untouched. It reports whether a row was created.
func (q *Queue) Enqueue(ctx context.Context, e Entry) (bool, error) {
	if e.Depth > q.cfg.MaxDepth {
		return false, fmt.Errorf("%w: %d > %d", ErrDepthExceeded, e.Depth, q.cfg.MaxDepth)
	}

	added, err := q.repo.Add(ctx, database.AddParams{
		Key:             e.Key,
		URL:             e.URL,
		Depth:           e.Depth,
		IsHub:           e.IsHub,
		MaxCommentDepth: e.MaxCommentDepth,
	})
	if err != nil {
		return false, fmt.Errorf("enqueue %s: %w", e.Key, err)
	}
	return added, nil
}

// CanExpand reports whether links found at sourceDepth may be enqueued.
func (c Config) CanExpand(sourceDepth int) bool {
	return sourceDepth < c.WithDefaults().MaxDepth
}

// CanExpand reports whether links found at sourceDepth may be enqueued.
func (q *Queue) CanExpand(sourceDepth int) bool {
	return q.cfg.CanExpand(sourceDepth)
}

// Discover enqueues every forum submission link in urls at sourceDepth+1.
// Nothing is enqueued when sourceDepth is already at the bound. Non-forum
// links are skipped. It returns the number of new rows.
func (q *Queue) Discover(ctx context.Context, sourceDepth int, urls []string) (int, error) {
	if !q.CanExpand(sourceDepth) {
		return 0, nil
	}

	added := 0
	for _, u := range urls {
		if !IsSubmissionURL(u) {
			continue
		}
		key, normalized := QueueKey(u)
		ok, err := q.Enqueue(ctx, Entry{Key: key, URL: normalized, Depth: sourceDepth + 1})
		if err != nil {
			return added, err
		}
		if ok {
			added++
		}
	}
	return added, nil
}

// NextBatch returns up to BatchSize queued items, oldest first.
func (q *Queue) NextBatch(ctx context.Context) ([]domain.QueueItem, error) {
	items, err := q.repo.PopBatch(ctx, q.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("next batch: %w", err)
	}
	return items, nil
}

// Complete marks a queued item done.
func (q *Queue) Complete(ctx context.Context, key string) error {
	if err := q.repo.Mark(ctx, key, domain.QueueStatusDone, nil); err != nil {
		return fmt.Errorf("complete %s: %w", key, err)
	}
	return nil
}

// Fail marks a queued item as errored, keeping a truncated message of cause.
func (q *Queue) Fail(ctx context.Context, key string, cause error) error {
	msg := TruncateError(cause)
	if err := q.repo.Mark(ctx, key, domain.QueueStatusError, &msg); err != nil {
		return fmt.Errorf("fail %s: %w", key, err)
	}
	return nil
}

// RequeueHubs resets every hub item to queued regardless of its status.
func (q *Queue) RequeueHubs(ctx context.Context) (int64, error) {
	n, err := q.repo.RequeueHubs(ctx)
	if err != nil {
		return 0, fmt.Errorf("requeue hubs: %w", err)
	}
	return n, nil
}

// Stats returns the status breakdown.
func (q *Queue) Stats(ctx context.Context) (domain.QueueStats, error) {
	stats, err := q.repo.Stats(ctx)
	if err != nil {
		return domain.QueueStats{}, fmt.Errorf("queue stats: %w", err)
	}
	return stats, nil
}

// TruncateError returns the message of err cut to domain.MaxErrorLength
// runes.
func TruncateError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if utf8.RuneCountInString(msg) <= domain.MaxErrorLength {
		return msg
	}
	runes := []rune(msg)
	return string(runes[:domain.MaxErrorLength])
}
