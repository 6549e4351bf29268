package checkin

import (
	"sort"

	"github.com/shopspring/decimal"
)

// remedialFactor is applied to every remedial reward.
var remedialFactor = decimal.New(5, -1)

// ResolveReward returns the best amount among rules whose threshold the
// score meets. Ties and ordering of the input do not matter: candidates are
// sorted by amount, highest first. No qualifying rule means 0.
func ResolveReward(score decimal.Decimal, rules []RewardRule) decimal.Decimal {
	candidates := make([]RewardRule, 0, len(rules))
	for _, r := range rules {
		if r.Threshold.LessThanOrEqual(score) {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return decimal.Zero
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Amount.GreaterThan(candidates[j].Amount)
	})

	best := candidates[0].Amount
	if best.IsNegative() {
		return decimal.Zero
	}
	return best
}

// RemedialReward is exactly half of ResolveReward for the same inputs.
func RemedialReward(score decimal.Decimal, rules []RewardRule) decimal.Decimal {
	return ResolveReward(score, rules).Mul(remedialFactor)
}
