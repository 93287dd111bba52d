package ingest

import (
	"context"
	"fmt"

	"github.com/jonesrussell/ddharvester/internal/database"
	"github.com/jonesrussell/ddharvester/internal/domain"
	"github.com/jonesrussell/ddharvester/internal/frontier"
	"github.com/jonesrussell/ddharvester/internal/logger"
	"github.com/jonesrussell/ddharvester/internal/source"
	"github.com/jonesrussell/ddharvester/internal/telemetry"
)

// Phase names used in logs.
const (
	PhaseFlairScan    = "flair_scan"
	PhaseHubDiscovery = "hub_discovery"
	PhaseQueueCrawl   = "queue_crawl"
)

// FlairScan stores every post carrying one of the configured flairs, newest
// first, at depth 0. A label's scan stops early once DupStreakLimit already
// stored posts are seen in a row. Remote and store failures end the phase
// with an error.
func (p *Pipeline) FlairScan(ctx context.Context) error {
	hb := telemetry.NewHeartbeat(p.cfg.HeartbeatInterval, p.now)

	for _, flair := range p.cfg.Flairs {
		if p.budget.Expired() {
			p.log.Info("Deadline reached, stopping flair scan", logger.String("flair", flair))
			return nil
		}

		query := fmt.Sprintf(`flair:"%s"`, flair)
		p.log.Info("Scanning flair", logger.String("flair", flair), logger.String("query", query))

		stop, err := p.scanFlair(ctx, flair, query, hb)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
	return nil
}

// scanFlair scans one label. It reports stop=true when the deadline ended it.
func (p *Pipeline) scanFlair(ctx context.Context, flair, query string, hb *telemetry.Heartbeat) (bool, error) {
	streak := 0
	params := source.SearchParams{Query: query, Sort: source.SortNew, Syntax: source.SyntaxLucene}

	for sub, err := range p.src.Search(ctx, params) {
		if err != nil {
			return false, fetchFailure("flair scan", err)
		}
		if p.budget.Expired() {
			p.log.Info("Deadline reached during flair scan", logger.String("flair", flair))
			return true, nil
		}

		var inserted bool
		txErr := p.store.InTx(ctx, func(repos database.Repositories) error {
			var storeErr error
			inserted, storeErr = p.StoreSubmission(ctx, repos, sub, 0)
			return storeErr
		})
		if txErr != nil {
			return false, storeFailure("flair scan", txErr)
		}

		if inserted {
			p.rec.Counters.PostsInserted++
			streak = 0
		} else {
			streak++
		}

		if hb.Due() {
			p.heartbeat(ctx, PhaseFlairScan, logger.String("flair", flair), logger.Int("dup_streak", streak))
		}

		if paceErr := p.budget.Pace(ctx); paceErr != nil {
			return false, paceErr
		}

		if streak >= p.cfg.DupStreakLimit {
			p.log.Info("Duplicate streak reached, moving to next flair",
				logger.String("flair", flair), logger.Int("dup_streak", streak))
			return false, nil
		}
	}
	return false, nil
}

// DiscoverHubs seeds the queue with the results of each hub query as hub
// items at depth 0. Nothing is stored; enqueueing is idempotent by key.
func (p *Pipeline) DiscoverHubs(ctx context.Context) error {
	for _, query := range p.cfg.HubQueries {
		if p.budget.Expired() {
			p.log.Info("Deadline reached, stopping hub discovery", logger.String("query", query))
			return nil
		}

		p.log.Info("Searching hubs", logger.String("query", query))
		params := source.SearchParams{
			Query:  query,
			Sort:   source.SortRelevance,
			Syntax: source.SyntaxLucene,
			Limit:  p.cfg.HubSearchLimit,
		}

		for sub, err := range p.src.Search(ctx, params) {
			if err != nil {
				return fetchFailure("hub discovery", err)
			}
			if p.budget.Expired() {
				p.log.Info("Deadline reached during hub discovery", logger.String("query", query))
				return nil
			}

			entry := frontier.Entry{
				Key:             sub.ID,
				URL:             permalink(sub),
				Depth:           0,
				IsHub:           true,
				MaxCommentDepth: p.cfg.HubReplyDepth,
			}
			txErr := p.store.InTx(ctx, func(repos database.Repositories) error {
				_, enqErr := p.queue(repos.Queue).Enqueue(ctx, entry)
				return enqErr
			})
			if txErr != nil {
				return storeFailure("hub discovery", txErr)
			}
			p.rec.Counters.HubsQueued++

			if paceErr := p.budget.Pace(ctx); paceErr != nil {
				return paceErr
			}
		}
	}
	return nil
}

// CrawlQueue drains the queue in batches until it is empty or the deadline
// passes. A failing item is marked error and counted; it never stops the
// batch. Items not reached stay queued for the next run.
func (p *Pipeline) CrawlQueue(ctx context.Context) error {
	hb := telemetry.NewHeartbeat(p.cfg.HeartbeatInterval, p.now)
	q := p.queue(p.store.Repos().Queue)

	for {
		if p.budget.Expired() {
			p.log.Info("Deadline reached, stopping queue crawl")
			return nil
		}

		batch, err := q.NextBatch(ctx)
		if err != nil {
			return storeFailure("queue crawl", err)
		}
		if len(batch) == 0 {
			p.log.Info("Queue empty")
			return nil
		}

		for _, item := range batch {
			if p.budget.Expired() {
				p.log.Info("Deadline reached during queue crawl", logger.String("key", item.Key))
				return nil
			}

			if err := p.crawlItem(ctx, item); err != nil {
				p.rec.Counters.Errors++
				p.log.Error("Queue item failed",
					logger.String("key", item.Key),
					logger.String("url", item.URL),
					logger.Int("depth", item.Depth),
					logger.String("kind", KindOf(err).String()),
					logger.Error(err),
				)
				if markErr := q.Fail(ctx, item.Key, err); markErr != nil {
					return storeFailure("mark queue item", markErr)
				}
			} else {
				p.rec.Counters.QueueDone++
			}

			if hb.Due() {
				p.heartbeat(ctx, PhaseQueueCrawl)
			}

			if paceErr := p.budget.Pace(ctx); paceErr != nil {
				return paceErr
			}
		}
	}
}

// crawlItem fetches one queue item and commits its post, links, discovered
// items and done mark as one unit of work. Remote calls happen before the
// transaction opens.
func (p *Pipeline) crawlItem(ctx context.Context, item domain.QueueItem) error {
	sub, err := p.fetchItem(ctx, item)
	if err != nil {
		return err
	}

	var hubLinks []string
	expandHub := item.IsHub && p.cfg.frontier().CanExpand(item.Depth)
	if expandHub {
		hubLinks, err = p.HubLinks(ctx, sub, item.MaxCommentDepth)
		if err != nil {
			return err
		}
	}

	return p.store.InTx(ctx, func(repos database.Repositories) error {
		if _, storeErr := p.StoreSubmission(ctx, repos, sub, item.Depth); storeErr != nil {
			return storeErr
		}

		q := p.queue(repos.Queue)
		if expandHub {
			added, discoverErr := q.Discover(ctx, item.Depth, hubLinks)
			if discoverErr != nil {
				return storeFailure("enqueue hub links", discoverErr)
			}
			p.log.Debug("Expanded hub",
				logger.String("key", item.Key),
				logger.Int("links", len(hubLinks)),
				logger.Int("added", added),
			)
		}

		if markErr := q.Complete(ctx, item.Key); markErr != nil {
			return storeFailure("mark queue item", markErr)
		}
		return nil
	})
}

// fetchItem resolves the submission id from the item URL, or from the key
// when the key is a bare id, and fetches by URL otherwise.
func (p *Pipeline) fetchItem(ctx context.Context, item domain.QueueItem) (source.Submission, error) {
	id, ok := frontier.SubmissionID(item.URL)
	if !ok && frontier.LooksLikeID(item.Key) {
		id, ok = item.Key, true
	}

	if ok {
		sub, err := p.src.SubmissionByID(ctx, id)
		if err != nil {
			return source.Submission{}, fetchFailure("fetch submission", err)
		}
		return sub, nil
	}

	if item.URL == "" {
		return source.Submission{}, parseFailure("resolve submission", fmt.Errorf("item %q has no url or id", item.Key))
	}

	sub, err := p.src.SubmissionByURL(ctx, item.URL)
	if err != nil {
		return source.Submission{}, fetchFailure("fetch submission", err)
	}
	return sub, nil
}
