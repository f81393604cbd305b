package service

import "errors"

// Sentinel kinds for pipeline run errors.
var (
	ErrRunFailed = errors.New("pipeline run failed")
)
