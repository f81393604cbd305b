package collect

import "errors"

// Sentinel kinds for collection errors.
var (
	// ErrInvalidUsername means the handle failed local validation; no
	// network call was attempted.
	ErrInvalidUsername = errors.New("invalid username")

	// ErrCollectFailed wraps a fetch failure for one user. The run
	// degrades that user to a zero-activity record and continues.
	ErrCollectFailed = errors.New("collection failed")

	// errMissingField marks an upstream record without a required
	// field; the record is discarded, never propagated.
	errMissingField = errors.New("record missing required field")
)
