package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonesrussell/ddharvester/internal/logger"
)

// RunOptions are the per-run controls.
type RunOptions struct {
	Notes       string
	RecrawlHubs bool
}

// Run executes one full run: optional hub requeue, flair scan, hub discovery
// and queue crawl, flushing counters after each phase. The run record is
// finalized on every path, including failures and panics, and the returned
// error is non-nil when the run failed.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (err error) {
	if _, err = p.rec.Begin(ctx, opts.Notes); err != nil {
		return storeFailure("begin run", err)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("run panicked: %v", r)
		}
		err = p.finalize(context.WithoutCancel(ctx), err)
	}()

	if opts.RecrawlHubs {
		n, requeueErr := p.queue(p.store.Repos().Queue).RequeueHubs(ctx)
		if requeueErr != nil {
			return storeFailure("requeue hubs", requeueErr)
		}
		p.log.Info("Requeued hubs", logger.Int64("count", n))
	}

	phases := []struct {
		name string
		run  func(context.Context) error
	}{
		{PhaseFlairScan, p.FlairScan},
		{PhaseHubDiscovery, p.DiscoverHubs},
		{PhaseQueueCrawl, p.CrawlQueue},
	}

	for _, phase := range phases {
		if p.budget.Expired() {
			p.log.Info("Deadline reached, skipping phase", logger.String("phase", phase.name))
			continue
		}

		p.log.Info("Phase started", logger.String("phase", phase.name))
		if phaseErr := phase.run(ctx); phaseErr != nil {
			return fmt.Errorf("%s: %w", phase.name, phaseErr)
		}
		if flushErr := p.rec.Flush(ctx); flushErr != nil {
			return storeFailure("flush counters", flushErr)
		}
		p.log.Info("Phase finished", logger.String("phase", phase.name))
	}

	return nil
}

// finalize counts a fatal error, persists the counters and end instant and
// returns the combined outcome.
func (p *Pipeline) finalize(ctx context.Context, runErr error) error {
	if runErr != nil {
		p.rec.Counters.Errors++
	}

	stats, statsErr := p.store.Repos().Queue.Stats(ctx)
	if statsErr != nil {
		p.log.Warn("Failed to read queue stats", logger.Error(statsErr))
	}

	if finishErr := p.rec.Finish(ctx, runErr, stats); finishErr != nil {
		return errors.Join(runErr, storeFailure("finish run", finishErr))
	}
	return runErr
}
