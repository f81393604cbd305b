package hive

import "errors"

// Sentinel kinds for fetch errors.
var (
	// ErrEndpointExhausted means every endpoint in the pool failed
	// within the attempt budget. This is the only failure that
	// propagates to callers as a hard fetch failure.
	ErrEndpointExhausted = errors.New("endpoint pool exhausted")

	// ErrNoEndpoints means the client was built with an empty pool.
	ErrNoEndpoints = errors.New("no endpoints configured")
)

// errRateLimited signals a rate-limit response from a single endpoint.
// Internal: it drives backoff-and-retry against the same endpoint and
// never escapes Call.
var errRateLimited = errors.New("rate limited")
