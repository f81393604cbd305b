// Package model contains domain models passed between pipeline stages.
package model

import (
	"time"

	"github.com/menobass/hivepulse/pkg/dateutil"
)

// EventKind tags a normalized on-chain action.
type EventKind string

// Known event kinds.
const (
	EventPost         EventKind = "post"
	EventComment      EventKind = "comment"
	EventVoteGiven    EventKind = "vote_given"
	EventVoteReceived EventKind = "vote_received"
)

// TrackedUser is one community member the pipeline reports on.
// The registry that creates and removes entries is an external
// collaborator; the pipeline only reads them.
type TrackedUser struct {
	Username string
	// JoinedAt is nil for legacy members tracked since inception.
	JoinedAt *time.Time
	Active   bool
}

// RawEvent is one observed on-chain action, already normalized from the
// upstream payload. Ephemeral; never persisted directly.
type RawEvent struct {
	Kind      EventKind
	Actor     string
	Timestamp time.Time
	// Target is the counterparty where one exists: voted author,
	// parent author of a comment. Empty for top-level posts.
	Target string
}

// DailyActivity summarizes one user's activity for one calendar day.
// Immutable once the day closes.
type DailyActivity struct {
	Username      string
	Day           dateutil.Day
	Posts         int
	Comments      int
	VotesGiven    int
	VotesReceived int
	// EngagementScore is a composite 0-100 metric for the day.
	EngagementScore float64
	// Collected distinguishes a genuinely quiet day (true) from a day
	// where collection failed and counts degraded to zero (false).
	Collected bool
}

// TotalActions returns the sum of all activity counts.
func (a DailyActivity) TotalActions() int {
	return a.Posts + a.Comments + a.VotesGiven + a.VotesReceived
}

// Trend is a day-over-day change. When the prior value was zero the
// change is qualitative rather than numeric.
type Trend struct {
	// Pct is the percentage change vs the prior day. Meaningless when
	// New is set.
	Pct float64
	// New marks activity appearing where the prior day had none.
	New bool
}

// String renders the trend for report payloads.
func (t Trend) String() string {
	if t.New {
		return "new activity"
	}
	if t.Pct >= 0 {
		return "+" + formatPct(t.Pct)
	}
	return formatPct(t.Pct)
}

// CommunityDailySnapshot aggregates all tracked users for one day.
type CommunityDailySnapshot struct {
	Day                dateutil.Day
	ActiveUsers        int
	TotalPosts         int
	TotalComments      int
	TotalVotesGiven    int
	TotalVotesReceived int
	// EngagementRate is comments per post for the day.
	EngagementRate float64
	// HealthScore is a composite 0-100 metric for the day.
	HealthScore float64

	PostsTrend       Trend
	CommentsTrend    Trend
	ActiveUsersTrend Trend
}

// PatacoinLedgerEntry records one user's reward accrual for one day,
// broken down by category. Append-only; the reward engine is the sole
// writer. Total always equals NewBalance - PriorBalance.
type PatacoinLedgerEntry struct {
	Username string
	Day      dateutil.Day

	PostReward         float64
	CommentReward      float64
	VoteGivenReward    float64 // capped per day
	VoteReceivedReward float64

	Total        float64
	PriorBalance float64
	NewBalance   float64
}

// SpotlightCategory names one daily award.
type SpotlightCategory string

// Spotlight categories.
const (
	CategoryPostChampion          SpotlightCategory = "post_champion"
	CategoryCommentMaster         SpotlightCategory = "comment_master"
	CategorySupportStar           SpotlightCategory = "support_star"
	CategoryRisingStar            SpotlightCategory = "rising_star"
	CategoryConsistentContributor SpotlightCategory = "consistent_contributor"
)

// SpotlightResult holds the winners of one category for one day.
// Winners may exceed one on a tie; an empty slice means nobody
// qualified. Report payload only, never ledger state.
type SpotlightResult struct {
	Category SpotlightCategory
	// Winners are sorted alphabetically.
	Winners []string
	// Value is the qualifying metric for the category.
	Value float64
	// Patacoins is the combined amount the winners accrued that day.
	Patacoins float64
}
