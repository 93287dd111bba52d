// Package ingest runs the harvesting pipeline: the flair scan, hub discovery
// and the queue crawl, with run bookkeeping around them.
package ingest

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/jonesrussell/ddharvester/internal/budget"
	"github.com/jonesrussell/ddharvester/internal/database"
	"github.com/jonesrussell/ddharvester/internal/domain"
	"github.com/jonesrussell/ddharvester/internal/frontier"
	"github.com/jonesrussell/ddharvester/internal/logger"
	"github.com/jonesrussell/ddharvester/internal/source"
	"github.com/jonesrussell/ddharvester/internal/telemetry"
)

const permalinkBase = "https://www.reddit.com"

var errEmptySubmission = errors.New("submission has no id")

// Pipeline wires the source, store, budget and telemetry together. It is
// strictly sequential and not safe for concurrent use.
type Pipeline struct {
	cfg    Config
	src    source.ContentSource
	store  *database.Store
	budget *budget.Controller
	rec    *telemetry.Recorder
	log    logger.Logger
	now    func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock sets the time source for heartbeats.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// New creates a pipeline.
func New(
	cfg Config,
	src source.ContentSource,
	store *database.Store,
	ctrl *budget.Controller,
	rec *telemetry.Recorder,
	log logger.Logger,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		cfg:    cfg.WithDefaults(),
		src:    src,
		store:  store,
		budget: ctrl,
		rec:    rec,
		log:    log,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Counters returns the counters of the current run.
func (p *Pipeline) Counters() domain.RunCounters {
	return p.rec.Counters
}

func (p *Pipeline) queue(repo frontier.Repository) *frontier.Queue {
	return frontier.New(repo, p.cfg.frontier())
}

// StoreSubmission stores sub as a post, records every link in its title,
// body and url, and enqueues forum submission links at depth+1 when depth is
// below the bound. Links are recorded even if the post already existed. It
// reports whether the post was new.
func (p *Pipeline) StoreSubmission(ctx context.Context, repos database.Repositories, sub source.Submission, depth int) (bool, error) {
	if sub.ID == "" {
		return false, parseFailure("store submission", errEmptySubmission)
	}

	post := toPost(sub)
	inserted, err := repos.Posts.InsertIfAbsent(ctx, &post)
	if err != nil {
		return false, storeFailure("store submission", err)
	}

	urls := frontier.ExtractURLs(sub.Title, sub.Selftext, sub.URL)
	for _, u := range urls {
		if _, linkErr := repos.Links.Upsert(ctx, post.ID, u); linkErr != nil {
			return inserted, storeFailure("store link", linkErr)
		}
	}

	if _, discoverErr := p.queue(repos.Queue).Discover(ctx, depth, urls); discoverErr != nil {
		return inserted, storeFailure("discover links", discoverErr)
	}
	return inserted, nil
}

// HubLinks collects forum submission links from the best top-level comments
// of sub and, when replyDepth allows, their first replies. The result is
// sorted and free of duplicates. Failures while reading replies are skipped
// so that one bad thread does not abort the hub.
func (p *Pipeline) HubLinks(ctx context.Context, sub source.Submission, replyDepth int) ([]string, error) {
	top, err := p.src.TopComments(ctx, sub, p.cfg.HubCommentSort, p.cfg.HubTopLevelComments)
	if err != nil {
		return nil, fetchFailure("hub comments", err)
	}

	seen := make(map[string]struct{})
	collect := func(body string) {
		for _, u := range frontier.ExtractURLs(body) {
			if frontier.IsSubmissionURL(u) {
				seen[u] = struct{}{}
			}
		}
	}

	for _, c := range top {
		collect(c.Body)
		if replyDepth < 1 {
			continue
		}

		replies, replyErr := p.src.Replies(ctx, c, p.cfg.HubRepliesPerTop)
		if replyErr != nil {
			p.log.Debug("Skipping hub replies",
				logger.String("submission_id", sub.ID),
				logger.String("comment_id", c.ID),
				logger.Error(replyErr),
			)
			continue
		}
		for _, r := range replies {
			collect(r.Body)
		}
	}

	links := make([]string, 0, len(seen))
	for u := range seen {
		links = append(links, u)
	}
	sort.Strings(links)
	return links, nil
}

func toPost(sub source.Submission) domain.Post {
	created := sub.Created()
	return domain.Post{
		ID:          sub.ID,
		Subreddit:   sub.Subreddit,
		CreatedUTC:  sub.CreatedUTC,
		CreatedISO:  created.Format(time.RFC3339),
		Title:       sub.Title,
		Selftext:    sub.Selftext,
		Score:       sub.Score,
		NumComments: sub.NumComments,
		Permalink:   permalink(sub),
		URL:         sub.URL,
		Flair:       sub.Flair,
		Author:      sub.Author,
	}
}

// permalink returns the absolute permalink of sub.
func permalink(sub source.Submission) string {
	if sub.Permalink == "" || strings.HasPrefix(sub.Permalink, "http") {
		return sub.Permalink
	}
	return permalinkBase + sub.Permalink
}

func (p *Pipeline) heartbeat(ctx context.Context, phase string, extra ...logger.Field) {
	fields := []logger.Field{
		logger.String("phase", phase),
		logger.Int("posts_inserted", p.rec.Counters.PostsInserted),
		logger.Int("hubs_queued", p.rec.Counters.HubsQueued),
		logger.Int("queue_done", p.rec.Counters.QueueDone),
		logger.Int("errors", p.rec.Counters.Errors),
	}

	stats, err := p.store.Repos().Queue.Stats(ctx)
	if err != nil {
		fields = append(fields, logger.Error(err))
	} else {
		fields = append(fields,
			logger.Int64("queued", stats.Queued),
			logger.Int64("done", stats.Done),
			logger.Int64("error", stats.Error),
		)
	}

	p.log.Info("Heartbeat", append(fields, extra...)...)
}
