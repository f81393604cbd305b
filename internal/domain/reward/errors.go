package reward

import "errors"

var (
	// ErrInvalidRates indicates a rate table with negative entries.
	ErrInvalidRates = errors.New("invalid reward rates")
)
