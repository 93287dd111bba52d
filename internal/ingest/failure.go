package ingest

import (
	"errors"
	"fmt"

	"github.com/jonesrussell/ddharvester/internal/database"
)

// Kind classifies a pipeline failure.
type Kind int

// Failure kinds.
const (
	// KindFetch is a remote source failure: rate limit, timeout, bad response.
	KindFetch Kind = iota + 1
	// KindStore is a persistent store failure.
	KindStore
	// KindParse is input that could not be interpreted.
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindFetch:
		return "fetch"
	case KindStore:
		return "store"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

// Failure is a typed pipeline error.
type Failure struct {
	Kind Kind
	Op   string
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s %s: %v", f.Kind, f.Op, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// KindOf classifies err. Store errors are KindStore even when not wrapped in
// a Failure; anything else unclassified is treated as a fetch failure.
func KindOf(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	var storeErr *database.StoreError
	if errors.As(err, &storeErr) {
		return KindStore
	}
	return KindFetch
}

func fetchFailure(op string, err error) error {
	return &Failure{Kind: KindFetch, Op: op, Err: err}
}

func storeFailure(op string, err error) error {
	var f *Failure
	if errors.As(err, &f) {
		return err
	}
	return &Failure{Kind: KindStore, Op: op, Err: err}
}

func parseFailure(op string, err error) error {
	return &Failure{Kind: KindParse, Op: op, Err: err}
}
