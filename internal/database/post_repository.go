package database

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/ddharvester/internal/domain"
)

// PostRepository stores harvested posts. Posts are never updated.
type PostRepository struct {
	db    sqlx.ExtContext
	clock Clock
}

// NewPostRepository creates a new post repository.
func NewPostRepository(db sqlx.ExtContext, clock Clock) *PostRepository {
	return &PostRepository{db: db, clock: clock}
}

// InsertIfAbsent stores post unless a post with the same id exists. It
// reports whether a row was created. RetrievedAt is set when empty.
func (r *PostRepository) InsertIfAbsent(ctx context.Context, post *domain.Post) (bool, error) {
	if post.RetrievedAt == "" {
		post.RetrievedAt = formatTime(r.clock())
	}

	query := r.db.Rebind(`
		INSERT INTO posts (id, subreddit, created_utc, created_iso, title, selftext, score,
			num_comments, permalink, url, link_flair_text, author, retrieved_at_utc)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`)

	result, err := r.db.ExecContext(ctx, query,
		post.ID, post.Subreddit, post.CreatedUTC, post.CreatedISO, post.Title, post.Selftext,
		post.Score, post.NumComments, post.Permalink, post.URL, post.Flair, post.Author,
		post.RetrievedAt,
	)
	if err != nil {
		return false, storeErr("insert post", err)
	}

	ok, err := inserted(result)
	if err != nil {
		return false, storeErr("insert post", err)
	}
	return ok, nil
}

// GetByID returns the post with the given id or ErrNotFound.
func (r *PostRepository) GetByID(ctx context.Context, id string) (*domain.Post, error) {
	query := r.db.Rebind(`
		SELECT id, subreddit, created_utc, created_iso, title, COALESCE(selftext, '') AS selftext,
			COALESCE(score, 0) AS score, COALESCE(num_comments, 0) AS num_comments, permalink,
			COALESCE(url, '') AS url, link_flair_text, author, retrieved_at_utc
		FROM posts WHERE id = ?
	`)

	var post domain.Post
	if err := sqlx.GetContext(ctx, r.db, &post, query, id); err != nil {
		return nil, storeErr("get post", notFound(err))
	}
	return &post, nil
}

// Count returns the number of stored posts.
func (r *PostRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := sqlx.GetContext(ctx, r.db, &n, `SELECT COUNT(*) FROM posts`); err != nil {
		return 0, storeErr("count posts", err)
	}
	return n, nil
}
