// Package pool runs per-user collection concurrently under a bounded
// worker count. Collection is the only stage worth parallelizing: each
// user's fetch is an independent blocking network operation, and the
// pool stays modest to respect upstream rate limits.
package pool

import (
	"context"
	"sync"

	"github.com/puzpuzpuz/xsync"

	"github.com/menobass/hivepulse/internal/domain/model"
	"github.com/menobass/hivepulse/pkg/dateutil"
	"github.com/menobass/hivepulse/pkg/logger"
	"github.com/menobass/hivepulse/pkg/metrics"
)

// defaultWorkers keeps concurrency in the tens, not hundreds.
const defaultWorkers = 16

// Collector abstracts the per-user collection operation.
type Collector interface {
	Collect(ctx context.Context, username string, window dateutil.Window) ([]model.RawEvent, error)
}

// Result is the outcome of collecting one user. A failed user carries
// Err and no events; the caller degrades it to a zero-activity record.
type Result struct {
	Username string
	Events   []model.RawEvent
	Err      error
}

// Pool fans usernames out to collection workers and joins the results.
type Pool struct {
	collector Collector
	workers   int
	logger    logger.Logger
}

// Option applies a configuration option to the Pool.
type Option func(*Pool)

// WithWorkers sets the number of concurrent collection workers.
func WithWorkers(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithLogger sets a custom logger for the pool.
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a Pool over the given collector.
func New(collector Collector, opts ...Option) *Pool {
	p := &Pool{
		collector: collector,
		workers:   defaultWorkers,
		logger:    logger.Named("pool"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CollectAll collects every username inside the window and returns one
// Result per username. Per-user failures never abort the batch; the
// whole map is materialized before this returns, so callers may treat
// it as single-threaded input from here on.
func (p *Pool) CollectAll(ctx context.Context, usernames []string, window dateutil.Window) map[string]Result {
	jobs := make(chan string)
	results := xsync.NewMapOf[Result]()

	var wg sync.WaitGroup
	workers := p.workers
	if workers > len(usernames) && len(usernames) > 0 {
		workers = len(usernames)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for username := range jobs {
				p.collectOne(ctx, username, window, results)
			}
		}()
	}

	for _, username := range usernames {
		select {
		case jobs <- username:
		case <-ctx.Done():
			// Remaining users are recorded as failed rather than
			// silently missing from the join.
			results.Store(username, Result{Username: username, Err: ctx.Err()})
		}
	}
	close(jobs)
	wg.Wait()

	joined := make(map[string]Result, len(usernames))
	results.Range(func(key string, value Result) bool {
		joined[key] = value
		return true
	})
	return joined
}

func (p *Pool) collectOne(ctx context.Context, username string, window dateutil.Window, results *xsync.MapOf[string, Result]) {
	events, err := p.collector.Collect(ctx, username, window)
	if err != nil {
		metrics.RecordUserFailed()
		p.logger.Warn(ctx, "collection failed, degrading to zero activity",
			logger.String("user", username),
			logger.Error(err),
		)
		results.Store(username, Result{Username: username, Err: err})
		return
	}
	metrics.RecordUserCollected()
	results.Store(username, Result{Username: username, Events: events})
}
