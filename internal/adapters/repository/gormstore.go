package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/menobass/hivepulse/internal/domain/model"
	"github.com/menobass/hivepulse/pkg/dateutil"
)

// trackedUserRecord is the registry row.
type trackedUserRecord struct {
	Username string `gorm:"primaryKey"`
	JoinedAt *time.Time
	Active   bool
}

func (trackedUserRecord) TableName() string { return "tracked_users" }

// activityRecord is one user-day activity row.
type activityRecord struct {
	Username        string `gorm:"primaryKey"`
	Day             string `gorm:"primaryKey"`
	Posts           int
	Comments        int
	VotesGiven      int
	VotesReceived   int
	EngagementScore float64
	Collected       bool
}

func (activityRecord) TableName() string { return "daily_activities" }

// snapshotRecord is one community-day row. Trends are flattened into
// pct/new column pairs.
type snapshotRecord struct {
	Day                string `gorm:"primaryKey"`
	ActiveUsers        int
	TotalPosts         int
	TotalComments      int
	TotalVotesGiven    int
	TotalVotesReceived int
	EngagementRate     float64
	HealthScore        float64
	PostsTrendPct      float64
	PostsTrendNew      bool
	CommentsTrendPct   float64
	CommentsTrendNew   bool
	ActiveTrendPct     float64
	ActiveTrendNew     bool
}

func (snapshotRecord) TableName() string { return "daily_snapshots" }

// ledgerRecord is one user-day Patacoin accrual row.
type ledgerRecord struct {
	Username           string `gorm:"primaryKey"`
	Day                string `gorm:"primaryKey"`
	PostReward         float64
	CommentReward      float64
	VoteGivenReward    float64
	VoteReceivedReward float64
	Total              float64
	PriorBalance       float64
	NewBalance         float64
}

func (ledgerRecord) TableName() string { return "patacoin_ledger" }

// GormStore persists pipeline state to sqlite through gorm.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

// NewGormStore opens (or creates) the sqlite database at path and
// migrates the schema.
func NewGormStore(path string) (*GormStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrStore, path, err)
	}
	if err := db.AutoMigrate(&trackedUserRecord{}, &activityRecord{}, &snapshotRecord{}, &ledgerRecord{}); err != nil {
		return nil, fmt.Errorf("%w: migrate: %w", ErrStore, err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) GetTrackedUsers(ctx context.Context) ([]model.TrackedUser, error) {
	var records []trackedUserRecord
	if err := s.db.WithContext(ctx).Order("username").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("%w: list tracked users: %w", ErrStore, err)
	}
	users := make([]model.TrackedUser, 0, len(records))
	for _, r := range records {
		users = append(users, model.TrackedUser{
			Username: r.Username,
			JoinedAt: r.JoinedAt,
			Active:   r.Active,
		})
	}
	return users, nil
}

func (s *GormStore) UpsertTrackedUser(ctx context.Context, user model.TrackedUser) error {
	record := trackedUserRecord{
		Username: user.Username,
		JoinedAt: user.JoinedAt,
		Active:   user.Active,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "username"}},
			UpdateAll: true,
		}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("%w: upsert user %s: %w", ErrStore, user.Username, err)
	}
	return nil
}

func (s *GormStore) RemoveTrackedUser(ctx context.Context, username string) error {
	result := s.db.WithContext(ctx).Delete(&trackedUserRecord{Username: username})
	if result.Error != nil {
		return fmt.Errorf("%w: remove user %s: %w", ErrStore, username, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: user %s", ErrNotFound, username)
	}
	return nil
}

func (s *GormStore) GetSnapshot(ctx context.Context, day dateutil.Day) (model.CommunityDailySnapshot, error) {
	var record snapshotRecord
	err := s.db.WithContext(ctx).Where("day = ?", string(day)).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.CommunityDailySnapshot{}, fmt.Errorf("%w: snapshot %s", ErrNotFound, day)
	}
	if err != nil {
		return model.CommunityDailySnapshot{}, fmt.Errorf("%w: get snapshot %s: %w", ErrStore, day, err)
	}
	return model.CommunityDailySnapshot{
		Day:                dateutil.Day(record.Day),
		ActiveUsers:        record.ActiveUsers,
		TotalPosts:         record.TotalPosts,
		TotalComments:      record.TotalComments,
		TotalVotesGiven:    record.TotalVotesGiven,
		TotalVotesReceived: record.TotalVotesReceived,
		EngagementRate:     record.EngagementRate,
		HealthScore:        record.HealthScore,
		PostsTrend:         model.Trend{Pct: record.PostsTrendPct, New: record.PostsTrendNew},
		CommentsTrend:      model.Trend{Pct: record.CommentsTrendPct, New: record.CommentsTrendNew},
		ActiveUsersTrend:   model.Trend{Pct: record.ActiveTrendPct, New: record.ActiveTrendNew},
	}, nil
}

func (s *GormStore) PutSnapshot(ctx context.Context, snapshot model.CommunityDailySnapshot) error {
	record := snapshotRecord{
		Day:                string(snapshot.Day),
		ActiveUsers:        snapshot.ActiveUsers,
		TotalPosts:         snapshot.TotalPosts,
		TotalComments:      snapshot.TotalComments,
		TotalVotesGiven:    snapshot.TotalVotesGiven,
		TotalVotesReceived: snapshot.TotalVotesReceived,
		EngagementRate:     snapshot.EngagementRate,
		HealthScore:        snapshot.HealthScore,
		PostsTrendPct:      snapshot.PostsTrend.Pct,
		PostsTrendNew:      snapshot.PostsTrend.New,
		CommentsTrendPct:   snapshot.CommentsTrend.Pct,
		CommentsTrendNew:   snapshot.CommentsTrend.New,
		ActiveTrendPct:     snapshot.ActiveUsersTrend.Pct,
		ActiveTrendNew:     snapshot.ActiveUsersTrend.New,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "day"}},
			UpdateAll: true,
		}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("%w: put snapshot %s: %w", ErrStore, snapshot.Day, err)
	}
	return nil
}

func (s *GormStore) PutActivity(ctx context.Context, activity model.DailyActivity) error {
	record := activityRecord{
		Username:        activity.Username,
		Day:             string(activity.Day),
		Posts:           activity.Posts,
		Comments:        activity.Comments,
		VotesGiven:      activity.VotesGiven,
		VotesReceived:   activity.VotesReceived,
		EngagementScore: activity.EngagementScore,
		Collected:       activity.Collected,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "username"}, {Name: "day"}},
			UpdateAll: true,
		}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("%w: put activity %s/%s: %w", ErrStore, activity.Username, activity.Day, err)
	}
	return nil
}

func (s *GormStore) GetBalance(ctx context.Context, username string, before dateutil.Day) (float64, error) {
	var record ledgerRecord
	err := s.db.WithContext(ctx).
		Where("username = ? AND day < ?", username, string(before)).
		Order("day DESC").
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: get balance %s: %w", ErrStore, username, err)
	}
	return record.NewBalance, nil
}

func (s *GormStore) PutLedgerEntry(ctx context.Context, entry model.PatacoinLedgerEntry) error {
	record := ledgerRecord{
		Username:           entry.Username,
		Day:                string(entry.Day),
		PostReward:         entry.PostReward,
		CommentReward:      entry.CommentReward,
		VoteGivenReward:    entry.VoteGivenReward,
		VoteReceivedReward: entry.VoteReceivedReward,
		Total:              entry.Total,
		PriorBalance:       entry.PriorBalance,
		NewBalance:         entry.NewBalance,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "username"}, {Name: "day"}},
			UpdateAll: true,
		}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("%w: put ledger %s/%s: %w", ErrStore, entry.Username, entry.Day, err)
	}
	return nil
}
