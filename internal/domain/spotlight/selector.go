// Package spotlight ranks users across daily award categories and
// picks winners.
//
// Selection is a pure function of the day's activity and ledger maps.
// Count-based categories include every user tied at the maximum; the
// score-based categories break exact ties by earliest alphabetical
// handle so results stay reproducible.
package spotlight

import (
	"math"
	"sort"

	"github.com/menobass/hivepulse/internal/domain/model"
)

// voteDamping shrinks vote counts before the consistency spread is
// measured, so a heavy voter is not penalized as irregular.
const voteDamping = 5.0

// Selector picks spotlight winners for one day.
type Selector struct{}

// New creates a Selector.
func New() *Selector {
	return &Selector{}
}

// Select computes one SpotlightResult per category. Categories where
// every user's qualifying metric is zero are omitted from the result
// rather than awarded to a nominal zero-value winner.
func (s *Selector) Select(activities map[string]model.DailyActivity, ledger map[string]model.PatacoinLedgerEntry) map[model.SpotlightCategory]model.SpotlightResult {
	results := make(map[model.SpotlightCategory]model.SpotlightResult)

	usernames := make([]string, 0, len(activities))
	for username := range activities {
		usernames = append(usernames, username)
	}
	sort.Strings(usernames)

	if r, ok := maxCount(model.CategoryPostChampion, usernames, activities, ledger, func(a model.DailyActivity) int { return a.Posts }); ok {
		results[model.CategoryPostChampion] = r
	}
	if r, ok := maxCount(model.CategoryCommentMaster, usernames, activities, ledger, func(a model.DailyActivity) int { return a.Comments }); ok {
		results[model.CategoryCommentMaster] = r
	}
	if r, ok := maxCount(model.CategorySupportStar, usernames, activities, ledger, func(a model.DailyActivity) int { return a.VotesGiven }); ok {
		results[model.CategorySupportStar] = r
	}
	if r, ok := maxScore(model.CategoryRisingStar, usernames, ledger, func(u string) float64 { return activities[u].EngagementScore }); ok {
		results[model.CategoryRisingStar] = r
	}
	if r, ok := maxScore(model.CategoryConsistentContributor, usernames, ledger, func(u string) float64 { return consistencyScore(activities[u]) }); ok {
		results[model.CategoryConsistentContributor] = r
	}

	return results
}

// maxCount awards every user tied at the maximum count.
func maxCount(category model.SpotlightCategory, usernames []string, activities map[string]model.DailyActivity, ledger map[string]model.PatacoinLedgerEntry, count func(model.DailyActivity) int) (model.SpotlightResult, bool) {
	best := 0
	var winners []string
	for _, username := range usernames {
		c := count(activities[username])
		switch {
		case c > best:
			best = c
			winners = winners[:0]
			winners = append(winners, username)
		case c == best && c > 0:
			winners = append(winners, username)
		}
	}
	if best == 0 {
		return model.SpotlightResult{}, false
	}
	return model.SpotlightResult{
		Category:  category,
		Winners:   winners,
		Value:     float64(best),
		Patacoins: winnerPatacoins(winners, ledger),
	}, true
}

// maxScore awards the single highest score; an exact tie goes to the
// earliest alphabetical handle, which the sorted username order gives
// for free.
func maxScore(category model.SpotlightCategory, usernames []string, ledger map[string]model.PatacoinLedgerEntry, score func(string) float64) (model.SpotlightResult, bool) {
	best := 0.0
	winner := ""
	for _, username := range usernames {
		if v := score(username); v > best {
			best = v
			winner = username
		}
	}
	if winner == "" {
		return model.SpotlightResult{}, false
	}
	return model.SpotlightResult{
		Category:  category,
		Winners:   []string{winner},
		Value:     round2(best),
		Patacoins: winnerPatacoins([]string{winner}, ledger),
	}, true
}

// consistencyScore rewards users whose activity is spread evenly
// across categories: total volume divided by one plus the population
// standard deviation of the damped per-category counts. Lower spread
// means a higher score at equal volume.
func consistencyScore(a model.DailyActivity) float64 {
	counts := []float64{
		float64(a.Posts),
		float64(a.Comments),
		float64(a.VotesGiven) / voteDamping,
		float64(a.VotesReceived) / voteDamping,
	}
	total := 0.0
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return 0
	}
	mean := total / float64(len(counts))
	variance := 0.0
	for _, c := range counts {
		variance += (c - mean) * (c - mean)
	}
	variance /= float64(len(counts))
	return total / (1 + math.Sqrt(variance))
}

// winnerPatacoins sums the day's minted total across the winning users.
func winnerPatacoins(winners []string, ledger map[string]model.PatacoinLedgerEntry) float64 {
	total := 0.0
	for _, username := range winners {
		total += ledger[username].Total
	}
	return round2(total)
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
