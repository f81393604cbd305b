// Package hive provides a JSON-RPC client for the upstream read API with
// automatic endpoint failover.
//
// The client holds an ordered pool of interchangeable endpoints and a
// shared "preferred endpoint" pointer. Each call starts from the
// preferred endpoint; transport errors, timeouts, non-2xx statuses and
// malformed responses advance to the next endpoint in the pool, while a
// rate-limit signal backs off exponentially and retries the same
// endpoint. Once an endpoint succeeds it becomes preferred, so later
// calls in the same run start there.
package hive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/menobass/hivepulse/pkg/logger"
	"github.com/menobass/hivepulse/pkg/metrics"
)

// Default client configuration constants.
const (
	defaultRequestTimeout   = 15 * time.Second
	defaultBackoffBase      = 250 * time.Millisecond
	defaultBackoffMax       = 4 * time.Second
	defaultRateLimitRetries = 3
	rpcRateLimitErrorCode   = -32801
	maxResponseBytes        = 8 << 20
)

// Fetcher is the one logical operation the collector needs.
type Fetcher interface {
	// Call performs a JSON-RPC method call and returns the raw result.
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
}

// Client implements Fetcher across a pool of interchangeable endpoints.
type Client struct {
	endpoints []string
	// preferred indexes the endpoint new calls start from. Reads vastly
	// outnumber the write-on-failover case, hence the atomic.
	preferred atomic.Int64

	maxAttempts      int
	rateLimitRetries int
	backoffBase      time.Duration
	backoffMax       time.Duration

	httpc  *http.Client
	logger logger.Logger
}

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithEndpoints replaces the endpoint pool.
func WithEndpoints(endpoints []string) Option {
	return func(c *Client) {
		if len(endpoints) > 0 {
			c.endpoints = append([]string(nil), endpoints...)
		}
	}
}

// WithMaxAttempts bounds total attempts across the pool per call.
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) {
		if httpc != nil {
			c.httpc = httpc
		}
	}
}

// WithTimeout bounds a single endpoint request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpc.Timeout = d
		}
	}
}

// WithBackoff sets the exponential backoff range for rate-limit retries.
func WithBackoff(base, maxWait time.Duration) Option {
	return func(c *Client) {
		if base > 0 && maxWait >= base {
			c.backoffBase = base
			c.backoffMax = maxWait
		}
	}
}

// WithLogger sets a custom logger for the client.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New constructs a Client. With no options it uses the ships-with pool
// of public endpoints configured by the caller via WithEndpoints; an
// empty pool makes every Call fail with ErrNoEndpoints.
func New(opts ...Option) *Client {
	c := &Client{
		maxAttempts:      0, // derived from pool size below when unset
		rateLimitRetries: defaultRateLimitRetries,
		backoffBase:      defaultBackoffBase,
		backoffMax:       defaultBackoffMax,
		httpc:            &http.Client{Timeout: defaultRequestTimeout},
		logger:           logger.Named("hive"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxAttempts == 0 {
		c.maxAttempts = 2 * len(c.endpoints)
	}
	return c
}

// rpcRequest is the JSON-RPC 2.0 envelope the upstream API expects.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      int    `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// Call performs one logical fetch with failover. It fails with
// ErrEndpointExhausted only after the attempt budget is spent across
// the whole pool.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if len(c.endpoints) == 0 {
		return nil, ErrNoEndpoints
	}

	idx := int(c.preferred.Load()) % len(c.endpoints)
	rateLimitHits := 0
	var lastErr error

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		endpoint := c.endpoints[idx]
		metrics.RecordFetchAttempt(endpoint)

		result, err := c.tryEndpoint(ctx, endpoint, method, params)
		if err == nil {
			c.preferred.Store(int64(idx))
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("fetch %s: %w", method, ctx.Err())
		}
		lastErr = err

		if isRateLimited(err) && rateLimitHits < c.rateLimitRetries {
			// Same endpoint, exponential backoff.
			metrics.RecordRateLimitBackoff()
			wait := c.backoffFor(rateLimitHits)
			rateLimitHits++
			c.logger.Debug(ctx, "rate limited, backing off",
				logger.String("endpoint", endpoint),
				logger.Duration("wait", wait),
			)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("fetch %s: %w", method, ctx.Err())
			case <-time.After(wait):
			}
			continue
		}

		// Immediate failover to the next endpoint.
		metrics.RecordFetchFailover()
		c.logger.Warn(ctx, "endpoint failed, failing over",
			logger.String("endpoint", endpoint),
			logger.String("method", method),
			logger.Error(err),
		)
		idx = (idx + 1) % len(c.endpoints)
		rateLimitHits = 0
	}

	metrics.RecordFetchExhausted()
	return nil, fmt.Errorf("fetch %s after %d attempts: %w (last: %v)",
		method, c.maxAttempts, ErrEndpointExhausted, lastErr)
}

// tryEndpoint performs one attempt against one endpoint. Any non-2xx,
// transport, or schema failure is retryable for that endpoint.
func (c *Client) tryEndpoint(ctx context.Context, endpoint, method string, params any) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      1,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, endpoint)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed rpcResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("malformed response from %s: %w", endpoint, err)
	}
	if parsed.Error != nil {
		if parsed.Error.Code == rpcRateLimitErrorCode {
			return nil, errRateLimited
		}
		return nil, fmt.Errorf("rpc error %d from %s: %s", parsed.Error.Code, endpoint, parsed.Error.Message)
	}
	if parsed.Result == nil {
		return nil, fmt.Errorf("empty result from %s", endpoint)
	}
	return parsed.Result, nil
}

func (c *Client) backoffFor(hit int) time.Duration {
	wait := c.backoffBase << uint(hit)
	if wait > c.backoffMax {
		wait = c.backoffMax
	}
	return wait
}

func isRateLimited(err error) bool {
	return errors.Is(err, errRateLimited)
}

// Preferred returns the index of the endpoint new calls start from.
func (c *Client) Preferred() int {
	if len(c.endpoints) == 0 {
		return 0
	}
	return int(c.preferred.Load()) % len(c.endpoints)
}
