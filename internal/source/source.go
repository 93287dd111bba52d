// Package source defines the boundary to the remote forum the harvester reads.
package source

//go:generate mockgen -source=source.go -destination=mocks/mock_source.go -package=mocks

import (
	"context"
	"errors"
	"iter"
	"time"
)

// ErrNotFound is returned when a submission does not exist or was removed.
var ErrNotFound = errors.New("submission not found")

// Sort orders and query syntaxes understood by Search.
const (
	SortNew       = "new"
	SortRelevance = "relevance"
	SortBest      = "best"
	SyntaxLucene  = "lucene"
)

// Submission is a post as returned by the remote forum. Flair and Author may
// be nil and Selftext may be empty.
type Submission struct {
	ID          string
	Subreddit   string
	CreatedUTC  int64
	Title       string
	Selftext    string
	Score       int
	NumComments int
	Permalink   string
	URL         string
	Flair       *string
	Author      *string
}

// Created returns the creation instant in UTC.
func (s Submission) Created() time.Time {
	return time.Unix(s.CreatedUTC, 0).UTC()
}

// Comment is one comment with whatever replies the source already loaded.
type Comment struct {
	ID      string
	Body    string
	Replies []Comment
}

// SearchParams describes a search within the configured forum. Limit 0 means
// unbounded.
type SearchParams struct {
	Query  string
	Sort   string
	Syntax string
	Limit  int
}

// ContentSource is everything the pipeline needs from the remote forum.
type ContentSource interface {
	// Search lazily yields matching submissions in the requested order.
	// Iteration stops at the first error, which is yielded once.
	Search(ctx context.Context, params SearchParams) iter.Seq2[Submission, error]
	// SubmissionByID fetches one submission.
	SubmissionByID(ctx context.Context, id string) (Submission, error)
	// SubmissionByURL fetches the submission a link points at.
	SubmissionByURL(ctx context.Context, url string) (Submission, error)
	// TopComments returns up to limit top-level comments in sort order.
	TopComments(ctx context.Context, sub Submission, sort string, limit int) ([]Comment, error)
	// Replies returns up to limit direct replies of a comment.
	Replies(ctx context.Context, c Comment, limit int) ([]Comment, error)
}
