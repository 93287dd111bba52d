package database

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/ddharvester/internal/domain"
)

// LinkRepository stores URLs extracted from posts.
type LinkRepository struct {
	db    sqlx.ExtContext
	clock Clock
}

// NewLinkRepository creates a new link repository.
func NewLinkRepository(db sqlx.ExtContext, clock Clock) *LinkRepository {
	return &LinkRepository{db: db, clock: clock}
}

// Upsert records url for postID unless the pair exists and reports whether
// a row was created. The post must already be stored.
func (r *LinkRepository) Upsert(ctx context.Context, postID, url string) (bool, error) {
	query := r.db.Rebind(`
		INSERT INTO links (post_id, url, first_seen_utc)
		VALUES (?, ?, ?)
		ON CONFLICT (post_id, url) DO NOTHING
	`)

	result, err := r.db.ExecContext(ctx, query, postID, url, formatTime(r.clock()))
	if err != nil {
		return false, storeErr("upsert link", err)
	}

	ok, err := inserted(result)
	if err != nil {
		return false, storeErr("upsert link", err)
	}
	return ok, nil
}

// ListByPost returns the links of a post ordered by url.
func (r *LinkRepository) ListByPost(ctx context.Context, postID string) ([]domain.Link, error) {
	query := r.db.Rebind(`SELECT post_id, url, first_seen_utc FROM links WHERE post_id = ? ORDER BY url`)

	links := []domain.Link{}
	if err := sqlx.SelectContext(ctx, r.db, &links, query, postID); err != nil {
		return nil, storeErr("list links", err)
	}
	return links, nil
}
