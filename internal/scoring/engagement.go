package scoring

import (
	"strings"

	"github.com/sells-group/outreach-cli/internal/model"
)

type industryBonus struct {
	bonus    int
	keywords []string
}

// Checked in order; tech outranks finance and healthcare, which outrank
// manufacturing and retail.
var industryBonuses = []industryBonus{
	{20, []string{"tech", "software", "saas", "internet", "information technology", "cloud"}},
	{15, []string{"financ", "bank", "insurance", "health", "medical", "hospital", "pharma"}},
	{10, []string{"manufactur", "retail", "industrial", "wholesale", "consumer goods"}},
}

// Engagement computes engagement potential: a base of 50 plus industry
// and company-size bonuses, capped at 100.
func Engagement(industry string, employees *int) int {
	score := EngagementBase

	ind := strings.ToLower(industry)
	if ind != "" {
	tiers:
		for _, tier := range industryBonuses {
			for _, kw := range tier.keywords {
				if strings.Contains(ind, kw) {
					score += tier.bonus
					break tiers
				}
			}
		}
	}

	if employees != nil {
		switch n := *employees; {
		case n >= 1000:
			score += 20
		case n >= 100:
			score += 15
		case n >= 10:
			score += 10
		}
	}
	return clamp(score)
}

// Baseline sums event counts times signal weights. Signals without a
// weight contribute nothing.
func Baseline(counts, weights map[string]int) int {
	total := 0
	for signal, n := range counts {
		total += n * weights[signal]
	}
	return total
}

// Tier maps a signal baseline to an engagement tier.
func Tier(baseline int) model.EngagementTier {
	switch {
	case baseline >= 300:
		return model.TierBurning
	case baseline >= 200:
		return model.TierHot
	case baseline >= 50:
		return model.TierWarm
	default:
		return model.TierCold
	}
}

// WithSignals attaches the signal baseline and tier to s.
func WithSignals(s model.Score, counts map[string]int, ws *model.WeightSet) model.Score {
	if ws == nil {
		return s
	}
	s.SignalBaseline = Baseline(counts, ws.Lookup())
	s.EngagementTier = Tier(s.SignalBaseline)
	s.WeightVersion = ws.Version
	return s
}
