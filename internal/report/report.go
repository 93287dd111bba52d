// Package report summarizes the harvested store: totals, flair breakdown,
// top posts, most cited domains and an optional week-over-week diff.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Default report settings.
const (
	DefaultOutDir     = "reports"
	DefaultSubreddit  = "Superstonk"
	DefaultWindowDays = 7
	DefaultTopPosts   = 25
	DefaultTopDomains = 30
	DefaultWeekLen    = 7

	minDomainDeltas = 50
)

// Config controls what the report covers and where it is written.
type Config struct {
	OutDir     string `mapstructure:"out_dir"     yaml:"out_dir"`
	Subreddit  string `mapstructure:"subreddit"   yaml:"subreddit"`
	WindowDays int    `mapstructure:"window_days" yaml:"window_days"`
	TopPosts   int    `mapstructure:"top_posts"   yaml:"top_posts"`
	TopDomains int    `mapstructure:"top_domains" yaml:"top_domains"`
	WeekLen    int    `mapstructure:"week_len"    yaml:"week_len"`
	Diff       bool   `mapstructure:"diff"        yaml:"diff"`
}

// WithDefaults returns a copy of the config with zero values replaced by defaults.
func (c Config) WithDefaults() Config {
	if c.OutDir == "" {
		c.OutDir = DefaultOutDir
	}
	if c.Subreddit == "" {
		c.Subreddit = DefaultSubreddit
	}
	if c.WindowDays <= 0 {
		c.WindowDays = DefaultWindowDays
	}
	if c.TopPosts <= 0 {
		c.TopPosts = DefaultTopPosts
	}
	if c.TopDomains <= 0 {
		c.TopDomains = DefaultTopDomains
	}
	if c.WeekLen < 1 {
		c.WeekLen = DefaultWeekLen
	}
	return c
}

// Totals are the headline counts.
type Totals struct {
	PostsTotal  int64 `json:"posts_total"`
	LinksTotal  int64 `json:"links_total"`
	PostsWindow int64 `json:"posts_window"`
}

// FlairCount is the number of posts carrying one flair; "(none)" for posts
// without one.
type FlairCount struct {
	Flair string `db:"flair" json:"flair"`
	Count int64  `db:"c"     json:"c"`
}

// TopPost is a high scoring post in the window.
type TopPost struct {
	ID          string  `db:"id"              json:"id"`
	CreatedUTC  int64   `db:"created_utc"     json:"-"`
	CreatedISO  string  `db:"created_iso"     json:"created_iso"`
	Title       string  `db:"title"           json:"title"`
	Score       int     `db:"score"           json:"score"`
	NumComments int     `db:"num_comments"    json:"num_comments"`
	Permalink   string  `db:"permalink"       json:"permalink"`
	Flair       *string `db:"link_flair_text" json:"link_flair_text"`
}

// Span is a half-open time range rendered as RFC 3339 instants.
type Span struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Diff compares the most recent week with the one before it.
type Diff struct {
	WeekLenDays  int     `json:"week_len_days"`
	ThisWeek     Span    `json:"this_week"`
	LastWeek     Span    `json:"last_week"`
	FlairDeltas  []Delta `json:"flair_deltas"`
	DomainDeltas []Delta `json:"domain_deltas"`
}

// Report is the complete summary.
type Report struct {
	Subreddit   string        `json:"-"`
	Generated   time.Time     `json:"-"`
	GeneratedAt string        `json:"generated_at_utc"`
	WindowDays  int           `json:"window_days"`
	WindowStart string        `json:"window_start_utc"`
	Totals      Totals        `json:"totals"`
	Flairs      []FlairCount  `json:"flair_breakdown_window"`
	TopPosts    []TopPost     `json:"top_posts_by_score_window"`
	TopDomains  []DomainCount `json:"top_domains_window"`
	Diff        *Diff         `json:"diff"`
}

// Option configures a Builder.
type Option func(*Builder)

// WithClock sets the time source that anchors the report window.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		b.now = now
	}
}

// Builder queries the store and assembles a Report.
type Builder struct {
	db  *sqlx.DB
	cfg Config
	now func() time.Time
}

// NewBuilder creates a report builder.
func NewBuilder(db *sqlx.DB, cfg Config, opts ...Option) *Builder {
	b := &Builder{db: db, cfg: cfg.WithDefaults(), now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build runs the report queries.
func (b *Builder) Build(ctx context.Context) (*Report, error) {
	now := b.now().UTC()
	start := now.AddDate(0, 0, -b.cfg.WindowDays)

	r := &Report{
		Subreddit:   b.cfg.Subreddit,
		Generated:   now,
		GeneratedAt: iso(now),
		WindowDays:  b.cfg.WindowDays,
		WindowStart: iso(start),
	}

	var err error
	if r.Totals, err = b.totals(ctx, start); err != nil {
		return nil, err
	}
	if r.Flairs, err = b.flairs(ctx, start, time.Time{}); err != nil {
		return nil, err
	}
	if r.TopPosts, err = b.topPosts(ctx, start, now); err != nil {
		return nil, err
	}

	urls, err := b.linkURLs(ctx, start, now)
	if err != nil {
		return nil, err
	}
	r.TopDomains = CountDomains(urls)
	if len(r.TopDomains) > b.cfg.TopDomains {
		r.TopDomains = r.TopDomains[:b.cfg.TopDomains]
	}

	if b.cfg.Diff {
		if r.Diff, err = b.diff(ctx, now); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (b *Builder) totals(ctx context.Context, start time.Time) (Totals, error) {
	var t Totals
	if err := b.db.GetContext(ctx, &t.PostsTotal, `SELECT COUNT(*) FROM posts`); err != nil {
		return t, fmt.Errorf("count posts: %w", err)
	}
	if err := b.db.GetContext(ctx, &t.LinksTotal, `SELECT COUNT(*) FROM links`); err != nil {
		return t, fmt.Errorf("count links: %w", err)
	}
	query := b.db.Rebind(`SELECT COUNT(*) FROM posts WHERE created_utc >= ?`)
	if err := b.db.GetContext(ctx, &t.PostsWindow, query, start.Unix()); err != nil {
		return t, fmt.Errorf("count posts in window: %w", err)
	}
	return t, nil
}

// flairs counts posts per flair from start, up to end when end is set.
func (b *Builder) flairs(ctx context.Context, start, end time.Time) ([]FlairCount, error) {
	query := `SELECT COALESCE(link_flair_text, '(none)') AS flair, COUNT(*) AS c
		FROM posts WHERE created_utc >= ?`
	args := []any{start.Unix()}
	if !end.IsZero() {
		query += ` AND created_utc < ?`
		args = append(args, end.Unix())
	}
	query += ` GROUP BY COALESCE(link_flair_text, '(none)') ORDER BY c DESC, flair ASC`

	counts := []FlairCount{}
	if err := b.db.SelectContext(ctx, &counts, b.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("count flairs: %w", err)
	}
	return counts, nil
}

func (b *Builder) topPosts(ctx context.Context, start, end time.Time) ([]TopPost, error) {
	query := b.db.Rebind(`SELECT id, created_utc, created_iso, title, COALESCE(score, 0) AS score,
			COALESCE(num_comments, 0) AS num_comments, permalink, link_flair_text
		FROM posts
		WHERE created_utc >= ? AND created_utc < ?
		ORDER BY score DESC, id ASC
		LIMIT ?`)

	posts := []TopPost{}
	if err := b.db.SelectContext(ctx, &posts, query, start.Unix(), end.Unix(), b.cfg.TopPosts); err != nil {
		return nil, fmt.Errorf("select top posts: %w", err)
	}
	return posts, nil
}

// linkURLs returns the urls linked from posts created in [start, end).
func (b *Builder) linkURLs(ctx context.Context, start, end time.Time) ([]string, error) {
	query := b.db.Rebind(`SELECT l.url FROM links l
		JOIN posts p ON p.id = l.post_id
		WHERE p.created_utc >= ? AND p.created_utc < ?`)

	urls := []string{}
	if err := b.db.SelectContext(ctx, &urls, query, start.Unix(), end.Unix()); err != nil {
		return nil, fmt.Errorf("select link urls: %w", err)
	}
	return urls, nil
}

func (b *Builder) diff(ctx context.Context, now time.Time) (*Diff, error) {
	week := time.Duration(b.cfg.WeekLen) * 24 * time.Hour
	thisStart := now.Add(-week)
	lastStart := now.Add(-2 * week)

	d := &Diff{
		WeekLenDays: b.cfg.WeekLen,
		ThisWeek:    Span{Start: iso(thisStart), End: iso(now)},
		LastWeek:    Span{Start: iso(lastStart), End: iso(thisStart)},
	}

	thisFlairs, err := b.flairs(ctx, thisStart, now)
	if err != nil {
		return nil, err
	}
	lastFlairs, err := b.flairs(ctx, lastStart, thisStart)
	if err != nil {
		return nil, err
	}
	d.FlairDeltas = Deltas(flairMap(thisFlairs), flairMap(lastFlairs))

	thisURLs, err := b.linkURLs(ctx, thisStart, now)
	if err != nil {
		return nil, err
	}
	lastURLs, err := b.linkURLs(ctx, lastStart, thisStart)
	if err != nil {
		return nil, err
	}
	d.DomainDeltas = Deltas(domainMap(CountDomains(thisURLs)), domainMap(CountDomains(lastURLs)))
	if limit := max(minDomainDeltas, b.cfg.TopDomains); len(d.DomainDeltas) > limit {
		d.DomainDeltas = d.DomainDeltas[:limit]
	}
	return d, nil
}

func flairMap(counts []FlairCount) map[string]int64 {
	m := make(map[string]int64, len(counts))
	for _, c := range counts {
		m[c.Flair] = c.Count
	}
	return m
}

func domainMap(counts []DomainCount) map[string]int64 {
	m := make(map[string]int64, len(counts))
	for _, c := range counts {
		m[c.Domain] = c.Count
	}
	return m
}

func iso(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
