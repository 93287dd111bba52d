package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when an update or lookup matches no row.
var ErrNotFound = errors.New("record not found")

// timeLayout is fixed width so that lexical order of stored instants is
// chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// StoreError reports a failed store operation.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: failed to %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// Clock returns the current instant.
type Clock func() time.Time

// MonotonicClock returns a Clock that never yields the same instant twice and
// never goes backwards, so queue insertion order survives equal wall times.
func MonotonicClock(now Clock) Clock {
	var (
		mu   sync.Mutex
		last time.Time
	)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()

		t := now().UTC()
		if !t.After(last) {
			t = last.Add(time.Nanosecond)
		}
		last = t
		return t
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// Repositories groups the store operations bound to one executor, either the
// database itself or an open transaction.
type Repositories struct {
	Posts *PostRepository
	Links *LinkRepository
	Queue *QueueRepository
	Runs  *RunRepository
}

func newRepositories(db sqlx.ExtContext, clock Clock) Repositories {
	return Repositories{
		Posts: NewPostRepository(db, clock),
		Links: NewLinkRepository(db, clock),
		Queue: NewQueueRepository(db, clock),
		Runs:  NewRunRepository(db, clock),
	}
}

// Store is the unit-of-work boundary over the database. Callers decide where
// commits happen by grouping calls inside InTx.
type Store struct {
	db    *sqlx.DB
	clock Clock
}

// NewStore creates a store using a monotonic wall clock.
func NewStore(db *sqlx.DB) *Store {
	return NewStoreWithClock(db, time.Now)
}

// NewStoreWithClock creates a store whose timestamps come from now.
func NewStoreWithClock(db *sqlx.DB, now Clock) *Store {
	return &Store{db: db, clock: MonotonicClock(now)}
}

// DB returns the underlying connection.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Repos returns repositories that commit each call on its own.
func (s *Store) Repos() Repositories {
	return newRepositories(s.db, s.clock)
}

// InTx runs fn inside a transaction, committing when fn returns nil and
// rolling back otherwise.
func (s *Store) InTx(ctx context.Context, fn func(Repositories) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return storeErr("begin transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if fnErr := fn(newRepositories(tx, s.clock)); fnErr != nil {
		return fnErr
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return storeErr("commit transaction", commitErr)
	}
	return nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// execRequireRows validates that an ExecContext result affected at least one row.
func execRequireRows(result sql.Result, err, notFoundErr error) error {
	if err != nil {
		return err
	}
	n, affectedErr := result.RowsAffected()
	if affectedErr != nil {
		return affectedErr
	}
	if n == 0 {
		return notFoundErr
	}
	return nil
}

// inserted reports whether an insert-if-absent statement created a row.
func inserted(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
