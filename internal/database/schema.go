package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is the persisted contract read by the report command. The statements
// are valid for both SQLite and PostgreSQL.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS posts (
		id               TEXT PRIMARY KEY,
		subreddit        TEXT NOT NULL,
		created_utc      BIGINT NOT NULL,
		created_iso      TEXT NOT NULL,
		title            TEXT NOT NULL,
		selftext         TEXT,
		score            INTEGER,
		num_comments     INTEGER,
		permalink        TEXT NOT NULL,
		url              TEXT,
		link_flair_text  TEXT,
		author           TEXT,
		retrieved_at_utc TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_created ON posts(created_utc)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_flair ON posts(link_flair_text)`,
	`CREATE TABLE IF NOT EXISTS links (
		post_id        TEXT NOT NULL,
		url            TEXT NOT NULL,
		first_seen_utc TEXT NOT NULL,
		PRIMARY KEY (post_id, url),
		FOREIGN KEY (post_id) REFERENCES posts(id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_links_url ON links(url)`,
	`CREATE TABLE IF NOT EXISTS crawl_queue (
		key               TEXT PRIMARY KEY,
		url               TEXT NOT NULL,
		depth             INTEGER NOT NULL,
		status            TEXT NOT NULL DEFAULT 'queued',
		last_error        TEXT,
		is_hub            INTEGER NOT NULL DEFAULT 0,
		max_comment_depth INTEGER NOT NULL DEFAULT 0,
		added_at_utc      TEXT NOT NULL,
		updated_at_utc    TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_queue_status ON crawl_queue(status)`,
	`CREATE TABLE IF NOT EXISTS runs (
		run_id         TEXT PRIMARY KEY,
		started_at_utc TEXT NOT NULL,
		ended_at_utc   TEXT,
		notes          TEXT NOT NULL DEFAULT '',
		posts_inserted INTEGER NOT NULL DEFAULT 0,
		hubs_queued    INTEGER NOT NULL DEFAULT 0,
		queue_done     INTEGER NOT NULL DEFAULT 0,
		errors         INTEGER NOT NULL DEFAULT 0
	)`,
}

// Migrate creates the tables and indexes if they do not exist.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
