package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound = errors.New("record not found")
	ErrStore    = errors.New("store operation failed")
)
