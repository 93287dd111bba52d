// Package budget paces remote calls and enforces the cooperative run deadline.
package budget

import (
	"context"
	"time"
)

// DefaultDelay is the pause taken after every examined item.
const DefaultDelay = 1100 * time.Millisecond

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the time source used for deadline checks.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithSleeper replaces the pacing sleep, mainly for tests.
func WithSleeper(s Sleeper) Option {
	return func(c *Controller) {
		c.sleep = s
	}
}

// Controller holds a single deadline fixed at construction and a fixed
// inter-item delay. Checks are cooperative: nothing in flight is interrupted.
type Controller struct {
	deadline time.Time
	delay    time.Duration
	now      func() time.Time
	sleep    Sleeper
}

// New creates a controller. maxDuration <= 0 means no deadline.
func New(maxDuration, delay time.Duration, opts ...Option) *Controller {
	c := &Controller{
		delay: delay,
		now:   time.Now,
		sleep: sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	if maxDuration > 0 {
		c.deadline = c.now().Add(maxDuration)
	}
	return c
}

// Deadline returns the deadline and whether one is set.
func (c *Controller) Deadline() (time.Time, bool) {
	return c.deadline, !c.deadline.IsZero()
}

// Delay returns the pacing delay.
func (c *Controller) Delay() time.Duration {
	return c.delay
}

// Expired reports whether the deadline has been reached. Call it before
// starting each new unit of work.
func (c *Controller) Expired() bool {
	if c.deadline.IsZero() {
		return false
	}
	return !c.now().Before(c.deadline)
}

// Pace waits for the configured delay. It returns early with the context's
// error when ctx is canceled.
func (c *Controller) Pace(ctx context.Context) error {
	if c.delay <= 0 {
		return ctx.Err()
	}
	return c.sleep(ctx, c.delay)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
