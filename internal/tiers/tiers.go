// Package tiers supplies the reward tier tables and the weekly settlement
// policy. Settlement re-reads the provider on every claim; tiers change
// rarely and correctness matters more than latency there.
package tiers

import (
	"github.com/stride-lab/project-stride/internal/core/period"
	"github.com/stride-lab/project-stride/internal/core/rank"
)

// RewardItem is one granted item stack.
type RewardItem struct {
	ItemID int `json:"item_id"`
	Amount int `json:"amount"`
}

// Tier maps an inclusive rank range to its rewards.
type Tier struct {
	RankFrom int
	RankTo   int
	Rewards  []RewardItem
}

// Contains reports whether r falls inside the tier's rank range.
func (t Tier) Contains(r int) bool {
	return r >= t.RankFrom && r <= t.RankTo
}

// Provider is the reward tier configuration collaborator.
type Provider interface {
	// TiersFor returns the tier table for a category and period kind,
	// ordered by RankFrom ascending. Tiers without rewards are omitted.
	TiersFor(category rank.Category, kind period.Kind) []Tier

	// WeeklySettlementDay returns the configured settlement weekday
	// (1=Monday..7=Sunday).
	WeeklySettlementDay() int
}

// Match returns the first tier containing r, or false when no tier applies.
func Match(tiers []Tier, r int) (Tier, bool) {
	for _, t := range tiers {
		if t.Contains(r) {
			return t, true
		}
	}
	return Tier{}, false
}
