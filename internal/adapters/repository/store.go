// Package repository defines the pipeline's persistence interface and
// its sqlite and in-memory implementations.
package repository

import (
	"context"

	"github.com/menobass/hivepulse/internal/domain/model"
	"github.com/menobass/hivepulse/pkg/dateutil"
)

// Store provides read/write access to pipeline state. The pipeline
// only ever reads "yesterday's snapshot" and "the balance entering a
// day"; bulk history queries belong to the reporting layer.
type Store interface {
	// GetTrackedUsers returns every registered user, active or not,
	// sorted by username.
	GetTrackedUsers(ctx context.Context) ([]model.TrackedUser, error)
	// UpsertTrackedUser registers a user or updates its flags.
	UpsertTrackedUser(ctx context.Context, user model.TrackedUser) error
	// RemoveTrackedUser deletes a user from the registry.
	// Returns ErrNotFound if the user is unknown.
	RemoveTrackedUser(ctx context.Context, username string) error

	// GetSnapshot returns the community snapshot for a day.
	// Returns ErrNotFound when the day has no snapshot.
	GetSnapshot(ctx context.Context, day dateutil.Day) (model.CommunityDailySnapshot, error)
	// PutSnapshot stores a day's snapshot, replacing any prior one.
	PutSnapshot(ctx context.Context, snapshot model.CommunityDailySnapshot) error

	// PutActivity stores one user's daily activity record.
	PutActivity(ctx context.Context, activity model.DailyActivity) error

	// GetBalance returns a user's Patacoin balance as of the start of
	// the given day, i.e. the newest ledger entry strictly before it.
	// Unknown users hold a zero balance, not an error.
	GetBalance(ctx context.Context, username string, before dateutil.Day) (float64, error)
	// PutLedgerEntry stores one user's ledger entry for a day. Writing
	// the same (user, day) again replaces the entry, keeping same-day
	// re-runs idempotent.
	PutLedgerEntry(ctx context.Context, entry model.PatacoinLedgerEntry) error
}
