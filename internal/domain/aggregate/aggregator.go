// Package aggregate folds normalized activity into per-user daily
// summaries and a community-wide snapshot.
//
// Everything here is deterministic: the same input events produce
// bit-identical output, with no wall-clock reads and no dependence on
// map iteration order.
package aggregate

import (
	"math"
	"sort"

	"github.com/menobass/hivepulse/internal/domain/model"
	"github.com/menobass/hivepulse/pkg/dateutil"
)

// Engagement score bounds.
const (
	minEngagement = 0
	maxEngagement = 100
)

// Weights blend activity counts into a user's engagement score.
type Weights struct {
	Post         float64
	Comment      float64
	VoteGiven    float64
	VoteReceived float64
}

// DefaultWeights mirror the long-standing report weighting.
func DefaultWeights() Weights {
	return Weights{Post: 10, Comment: 5, VoteGiven: 2, VoteReceived: 1}
}

// HealthPolicy blends snapshot aggregates into the community health
// score. The scales turn raw counts into 0-100 component scores before
// weighting; the exact values are policy, kept configurable on purpose.
type HealthPolicy struct {
	ActiveUserWeight float64
	VolumeWeight     float64
	EngagementWeight float64

	ActiveUserScale float64
	VolumeScale     float64
	EngagementScale float64
}

// DefaultHealthPolicy returns the stock weighting.
func DefaultHealthPolicy() HealthPolicy {
	return HealthPolicy{
		ActiveUserWeight: 0.4,
		VolumeWeight:     0.3,
		EngagementWeight: 0.3,
		ActiveUserScale:  2,
		VolumeScale:      5,
		EngagementScale:  50,
	}
}

// UserEvents is one user's collected events plus the collection
// outcome. Collected=false marks a degraded zero-activity record, which
// stays distinguishable from a genuinely quiet day.
type UserEvents struct {
	Events    []model.RawEvent
	Collected bool
}

// Aggregator computes daily summaries and snapshots.
type Aggregator struct {
	weights Weights
	health  HealthPolicy
}

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithWeights sets the engagement score weights.
func WithWeights(w Weights) Option {
	return func(a *Aggregator) {
		a.weights = w
	}
}

// WithHealthPolicy sets the community health score policy.
func WithHealthPolicy(p HealthPolicy) Option {
	return func(a *Aggregator) {
		a.health = p
	}
}

// New creates an Aggregator with default weighting.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		weights: DefaultWeights(),
		health:  DefaultHealthPolicy(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate folds each user's events for the target day into a
// DailyActivity and sums them into a CommunityDailySnapshot. prior is
// the previous day's stored snapshot, or nil when none exists; trends
// against a missing or zero prior report qualitative "new activity"
// rather than a division by zero.
func (a *Aggregator) Aggregate(users map[string]UserEvents, day dateutil.Day, prior *model.CommunityDailySnapshot) (map[string]model.DailyActivity, model.CommunityDailySnapshot) {
	window := day.DayWindow()

	activities := make(map[string]model.DailyActivity, len(users))
	snapshot := model.CommunityDailySnapshot{Day: day}

	// Sorted iteration keeps float accumulation order stable.
	usernames := make([]string, 0, len(users))
	for username := range users {
		usernames = append(usernames, username)
	}
	sort.Strings(usernames)

	for _, username := range usernames {
		activity := a.foldUser(username, users[username], day, window)
		activities[username] = activity

		snapshot.TotalPosts += activity.Posts
		snapshot.TotalComments += activity.Comments
		snapshot.TotalVotesGiven += activity.VotesGiven
		snapshot.TotalVotesReceived += activity.VotesReceived
		if activity.TotalActions() > 0 {
			snapshot.ActiveUsers++
		}
	}

	if snapshot.TotalPosts > 0 {
		snapshot.EngagementRate = round2(float64(snapshot.TotalComments) / float64(snapshot.TotalPosts))
	}
	snapshot.HealthScore = a.healthScore(snapshot, len(usernames))

	snapshot.PostsTrend = trendOf(snapshot.TotalPosts, priorPosts(prior))
	snapshot.CommentsTrend = trendOf(snapshot.TotalComments, priorComments(prior))
	snapshot.ActiveUsersTrend = trendOf(snapshot.ActiveUsers, priorActive(prior))

	return activities, snapshot
}

// foldUser counts one user's events for the day. Events outside the
// day, or inconsistent with the user they were collected for, are
// discarded rather than propagated.
func (a *Aggregator) foldUser(username string, ue UserEvents, day dateutil.Day, window dateutil.Window) model.DailyActivity {
	activity := model.DailyActivity{
		Username:  username,
		Day:       day,
		Collected: ue.Collected,
	}
	for _, ev := range ue.Events {
		if ev.Actor != username || !window.Contains(ev.Timestamp) {
			continue
		}
		switch ev.Kind {
		case model.EventPost:
			activity.Posts++
		case model.EventComment:
			activity.Comments++
		case model.EventVoteGiven:
			activity.VotesGiven++
		case model.EventVoteReceived:
			activity.VotesReceived++
		}
	}
	activity.EngagementScore = a.engagementScore(activity)
	return activity
}

// engagementScore is the weighted activity blend, clamped to [0, 100].
func (a *Aggregator) engagementScore(activity model.DailyActivity) float64 {
	score := float64(activity.Posts)*a.weights.Post +
		float64(activity.Comments)*a.weights.Comment +
		float64(activity.VotesGiven)*a.weights.VoteGiven +
		float64(activity.VotesReceived)*a.weights.VoteReceived
	return round2(clamp(score, minEngagement, maxEngagement))
}

// healthScore is a deterministic function of the snapshot alone.
func (a *Aggregator) healthScore(s model.CommunityDailySnapshot, trackedUsers int) float64 {
	if trackedUsers == 0 {
		return 0
	}

	activeScore := clamp(float64(s.ActiveUsers)*a.health.ActiveUserScale, 0, 100)
	volumeScore := clamp(float64(s.TotalPosts+s.TotalComments)*a.health.VolumeScale, 0, 100)
	engagementScore := clamp(s.EngagementRate*a.health.EngagementScale, 0, 100)

	score := activeScore*a.health.ActiveUserWeight +
		volumeScore*a.health.VolumeWeight +
		engagementScore*a.health.EngagementWeight
	return round2(clamp(score, 0, 100))
}

func trendOf(current, prior int) model.Trend {
	if prior == 0 {
		return model.Trend{New: current > 0}
	}
	pct := (float64(current) - float64(prior)) / float64(prior) * 100
	return model.Trend{Pct: round2(pct)}
}

func priorPosts(prior *model.CommunityDailySnapshot) int {
	if prior == nil {
		return 0
	}
	return prior.TotalPosts
}

func priorComments(prior *model.CommunityDailySnapshot) int {
	if prior == nil {
		return 0
	}
	return prior.TotalComments
}

func priorActive(prior *model.CommunityDailySnapshot) int {
	if prior == nil {
		return 0
	}
	return prior.ActiveUsers
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
