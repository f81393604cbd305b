// Package collect retrieves raw on-chain activity for tracked users and
// normalizes it into typed records.
//
// Conventions:
// - Username validity is enforced before any network call.
// - Unparseable upstream records are dropped with a warning, never fatal.
// - All functions accept context.Context as the first parameter.
package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/menobass/hivepulse/internal/domain/model"
	"github.com/menobass/hivepulse/pkg/dateutil"
	"github.com/menobass/hivepulse/pkg/logger"
	"github.com/menobass/hivepulse/pkg/metrics"
)

// Default collector configuration constants.
const (
	defaultContentLimit = 100
	defaultHistoryLimit = 1000
)

// Fetcher abstracts the failover client.
type Fetcher interface {
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
}

// Collector turns upstream API payloads into RawEvent sequences.
type Collector struct {
	fetcher      Fetcher
	community    string
	contentLimit int
	historyLimit int
	logger       logger.Logger
}

// Option applies a configuration option to the Collector.
type Option func(*Collector)

// WithCommunity scopes post and comment collection to a community tag.
func WithCommunity(tag string) Option {
	return func(c *Collector) {
		c.community = tag
	}
}

// WithContentLimit bounds posts/comments fetched per user per window.
func WithContentLimit(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.contentLimit = n
		}
	}
}

// WithHistoryLimit bounds account-history entries fetched per user.
func WithHistoryLimit(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.historyLimit = n
		}
	}
}

// WithLogger sets a custom logger for the collector.
func WithLogger(l logger.Logger) Option {
	return func(c *Collector) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Collector over the given fetcher.
func New(fetcher Fetcher, opts ...Option) *Collector {
	c := &Collector{
		fetcher:      fetcher,
		contentLimit: defaultContentLimit,
		historyLimit: defaultHistoryLimit,
		logger:       logger.Named("collect"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect retrieves and normalizes one user's activity inside the
// window. An invalid username short-circuits before any network call. A
// user with no recorded join date is collected like any other; absence
// of a join date means tracked since inception, not untracked.
func (c *Collector) Collect(ctx context.Context, username string, window dateutil.Window) ([]model.RawEvent, error) {
	if !ValidUsername(username) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUsername, username)
	}

	var events []model.RawEvent

	posts, err := c.collectContent(ctx, username, "posts", model.EventPost, window)
	if err != nil {
		return nil, fmt.Errorf("%w: posts for %s: %w", ErrCollectFailed, username, err)
	}
	events = append(events, posts...)

	comments, err := c.collectContent(ctx, username, "comments", model.EventComment, window)
	if err != nil {
		return nil, fmt.Errorf("%w: comments for %s: %w", ErrCollectFailed, username, err)
	}
	events = append(events, comments...)

	votes, err := c.collectVotes(ctx, username, window)
	if err != nil {
		return nil, fmt.Errorf("%w: votes for %s: %w", ErrCollectFailed, username, err)
	}
	events = append(events, votes...)

	sortEvents(events)
	return events, nil
}

// collectContent fetches the user's posts or comments and normalizes
// the ones inside the window.
func (c *Collector) collectContent(ctx context.Context, username, sortKey string, kind model.EventKind, window dateutil.Window) ([]model.RawEvent, error) {
	params := map[string]any{
		"sort":    sortKey,
		"account": username,
		"limit":   c.contentLimit,
	}
	if c.community != "" {
		params["observer"] = c.community
	}
	raw, err := c.fetcher.Call(ctx, "bridge.get_account_posts", params)
	if err != nil {
		return nil, err
	}

	var records []json.RawMessage
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("unexpected %s payload shape: %w", sortKey, err)
	}

	var events []model.RawEvent
	dropped := 0
	for _, record := range records {
		ev, err := parseContent(record, kind)
		if err != nil {
			dropped++
			metrics.RecordRecordDropped()
			continue
		}
		if window.Contains(ev.Timestamp) {
			events = append(events, ev)
		}
	}
	if dropped > 0 {
		c.logger.Warn(ctx, "discarded malformed records",
			logger.String("user", username),
			logger.String("kind", string(kind)),
			logger.Int("dropped", dropped),
		)
	}
	return events, nil
}

// collectVotes fetches the user's account history and extracts vote
// activity inside the window.
func (c *Collector) collectVotes(ctx context.Context, username string, window dateutil.Window) ([]model.RawEvent, error) {
	raw, err := c.fetcher.Call(ctx, "condenser_api.get_account_history",
		[]any{username, -1, c.historyLimit})
	if err != nil {
		return nil, err
	}

	parsed, dropped := parseVoteHistory(raw, username)
	if dropped > 0 {
		for i := 0; i < dropped; i++ {
			metrics.RecordRecordDropped()
		}
		c.logger.Warn(ctx, "discarded malformed records",
			logger.String("user", username),
			logger.String("kind", "vote"),
			logger.Int("dropped", dropped),
		)
	}

	var events []model.RawEvent
	for _, ev := range parsed {
		if window.Contains(ev.Timestamp) {
			events = append(events, ev)
		}
	}
	return events, nil
}

// sortEvents orders events deterministically so downstream aggregation
// is reproducible regardless of upstream response ordering.
func sortEvents(events []model.RawEvent) {
	sort.Slice(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Actor != b.Actor {
			return a.Actor < b.Actor
		}
		return a.Target < b.Target
	})
}
