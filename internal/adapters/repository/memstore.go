package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/menobass/hivepulse/internal/domain/model"
	"github.com/menobass/hivepulse/pkg/dateutil"
)

type activityKey struct {
	username string
	day      dateutil.Day
}

// MemStore is a mutex-guarded in-memory Store for tests and dry runs.
type MemStore struct {
	mu        sync.RWMutex
	users     map[string]model.TrackedUser
	snapshots map[dateutil.Day]model.CommunityDailySnapshot
	activity  map[activityKey]model.DailyActivity
	ledger    map[activityKey]model.PatacoinLedgerEntry
}

var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		users:     make(map[string]model.TrackedUser),
		snapshots: make(map[dateutil.Day]model.CommunityDailySnapshot),
		activity:  make(map[activityKey]model.DailyActivity),
		ledger:    make(map[activityKey]model.PatacoinLedgerEntry),
	}
}

func (s *MemStore) GetTrackedUsers(_ context.Context) ([]model.TrackedUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]model.TrackedUser, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (s *MemStore) UpsertTrackedUser(_ context.Context, user model.TrackedUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.Username] = user
	return nil
}

func (s *MemStore) RemoveTrackedUser(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[username]; !ok {
		return fmt.Errorf("%w: user %s", ErrNotFound, username)
	}
	delete(s.users, username)
	return nil
}

func (s *MemStore) GetSnapshot(_ context.Context, day dateutil.Day) (model.CommunityDailySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot, ok := s.snapshots[day]
	if !ok {
		return model.CommunityDailySnapshot{}, fmt.Errorf("%w: snapshot %s", ErrNotFound, day)
	}
	return snapshot, nil
}

func (s *MemStore) PutSnapshot(_ context.Context, snapshot model.CommunityDailySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapshot.Day] = snapshot
	return nil
}

func (s *MemStore) PutActivity(_ context.Context, activity model.DailyActivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity[activityKey{activity.Username, activity.Day}] = activity
	return nil
}

func (s *MemStore) GetBalance(_ context.Context, username string, before dateutil.Day) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		latest  dateutil.Day
		balance float64
	)
	for key, entry := range s.ledger {
		if key.username != username || key.day >= before {
			continue
		}
		if latest == "" || key.day > latest {
			latest = key.day
			balance = entry.NewBalance
		}
	}
	return balance, nil
}

func (s *MemStore) PutLedgerEntry(_ context.Context, entry model.PatacoinLedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger[activityKey{entry.Username, entry.Day}] = entry
	return nil
}

// GetActivity returns a stored activity record, for tests.
func (s *MemStore) GetActivity(_ context.Context, username string, day dateutil.Day) (model.DailyActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	activity, ok := s.activity[activityKey{username, day}]
	if !ok {
		return model.DailyActivity{}, fmt.Errorf("%w: activity %s/%s", ErrNotFound, username, day)
	}
	return activity, nil
}

// GetLedgerEntry returns a stored ledger entry, for tests.
func (s *MemStore) GetLedgerEntry(_ context.Context, username string, day dateutil.Day) (model.PatacoinLedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.ledger[activityKey{username, day}]
	if !ok {
		return model.PatacoinLedgerEntry{}, fmt.Errorf("%w: ledger %s/%s", ErrNotFound, username, day)
	}
	return entry, nil
}
