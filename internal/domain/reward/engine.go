// Package reward converts daily activity into Patacoin accruals.
//
// Patacoins are the community's off-chain incentive points. Accrual is
// additive and append-only: each run produces a ledger entry on top of
// the user's prior balance, and balances never decrease.
package reward

import (
	"fmt"
	"math"

	"github.com/menobass/hivepulse/internal/domain/model"
)

// Rates is the per-action Patacoin schedule. VoteGivenDailyCap bounds
// the total reward a user can earn from casting votes in one day,
// regardless of volume.
type Rates struct {
	Post              float64
	Comment           float64
	VoteGiven         float64
	VoteGivenDailyCap float64
	VoteReceived      float64
}

// DefaultRates returns the stock schedule.
func DefaultRates() Rates {
	return Rates{
		Post:              2.0,
		Comment:           0.5,
		VoteGiven:         0.02,
		VoteGivenDailyCap: 0.5,
		VoteReceived:      0.1,
	}
}

// Validate rejects schedules that could mint negative rewards.
func (r Rates) Validate() error {
	if r.Post < 0 || r.Comment < 0 || r.VoteGiven < 0 || r.VoteGivenDailyCap < 0 || r.VoteReceived < 0 {
		return fmt.Errorf("%w: rates must be non-negative", ErrInvalidRates)
	}
	return nil
}

// Engine accrues Patacoins from daily activity.
type Engine struct {
	rates Rates
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithRates sets the reward schedule.
func WithRates(r Rates) Option {
	return func(e *Engine) {
		e.rates = r
	}
}

// New creates an Engine with the default schedule.
func New(opts ...Option) *Engine {
	e := &Engine{rates: DefaultRates()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Accrue computes the ledger entry for one user's day. priorBalance is
// the balance before this run; absent users start at zero. The entry's
// NewBalance is always PriorBalance plus the component sum.
func (e *Engine) Accrue(activity model.DailyActivity, priorBalance float64) model.PatacoinLedgerEntry {
	entry := model.PatacoinLedgerEntry{
		Username:           activity.Username,
		Day:                activity.Day,
		PostReward:         round2(float64(activity.Posts) * e.rates.Post),
		CommentReward:      round2(float64(activity.Comments) * e.rates.Comment),
		VoteGivenReward:    e.voteGivenReward(activity.VotesGiven),
		VoteReceivedReward: round2(float64(activity.VotesReceived) * e.rates.VoteReceived),
		PriorBalance:       priorBalance,
	}
	entry.Total = round2(entry.PostReward + entry.CommentReward + entry.VoteGivenReward + entry.VoteReceivedReward)
	entry.NewBalance = round2(entry.PriorBalance + entry.Total)
	return entry
}

// voteGivenReward applies the daily cap: min(votes*rate, cap).
func (e *Engine) voteGivenReward(votes int) float64 {
	return round2(math.Min(float64(votes)*e.rates.VoteGiven, e.rates.VoteGivenDailyCap))
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
