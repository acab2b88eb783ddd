// Package signals maintains the versioned signal weight sets read by the
// scoring engine and recomputes them from historical conversion outcomes.
package signals

import (
	"math"

	"github.com/sells-group/outreach-cli/internal/model"
)

// Weight bounds applied after every adjustment.
const (
	MinWeight = 10
	MaxWeight = 100
)

// Config tunes the optimizer.
type Config struct {
	LookbackDays              int
	MinSampleSize             int
	FundingDealThreshold      float64
	EngagementVolumeThreshold int
}

// DefaultConfig returns the standard optimizer settings.
func DefaultConfig() Config {
	return Config{
		LookbackDays:              90,
		MinSampleSize:             30,
		FundingDealThreshold:      50000,
		EngagementVolumeThreshold: 500,
	}
}

// Stat is the windowed outcome data for one signal.
type Stat struct {
	Events       int     `json:"events"`
	Conversions  int     `json:"conversions"`
	AvgDealValue float64 `json:"avg_deal_value"`
}

// Rate returns conversions / events.
func (s Stat) Rate() float64 {
	if s.Events == 0 {
		return 0
	}
	return float64(s.Conversions) / float64(s.Events)
}

// Adjustment records one signal's weight change.
type Adjustment struct {
	Signal         string               `json:"signal"`
	Category       model.SignalCategory `json:"category"`
	OldWeight      int                  `json:"old_weight"`
	NewWeight      int                  `json:"new_weight"`
	Events         int                  `json:"events"`
	ConversionRate float64              `json:"conversion_rate"`
	Skipped        bool                 `json:"skipped,omitempty"`
}

type tier struct {
	above  float64
	factor float64
	cap    float64 // 0 means none
	floor  float64 // 0 means none
}

// Evaluated top-down; the last tier catches everything else.
var tiers = []tier{
	{above: 0.15, factor: 1.25, cap: 100},
	{above: 0.10, factor: 1.12, cap: 95},
	{above: 0.05, factor: 1.05, cap: 90},
	{above: 0.02, factor: 0.95, floor: 20},
	{above: math.Inf(-1), factor: 0.80, floor: 10},
}

// Adjust returns the new weight for one signal given its windowed stats.
// The result is always within [MinWeight, MaxWeight] and a multiple of 5.
func Adjust(current int, category model.SignalCategory, st Stat, cfg Config) int {
	w := float64(current)
	rate := st.Rate()

	for _, t := range tiers {
		if rate > t.above {
			w *= t.factor
			if t.cap > 0 {
				w = math.Min(w, t.cap)
			}
			if t.floor > 0 {
				w = math.Max(w, t.floor)
			}
			break
		}
	}

	switch category {
	case model.CategoryDemoRequest:
		w = math.Max(w, 70)
	case model.CategoryFunding:
		if st.AvgDealValue > cfg.FundingDealThreshold {
			w = math.Min(w*1.10, 100)
		}
	case model.CategoryEngagement:
		if cfg.EngagementVolumeThreshold > 0 && st.Events >= cfg.EngagementVolumeThreshold {
			w = math.Min(w, 75)
		}
	}

	w = math.Max(MinWeight, math.Min(MaxWeight, w))
	return int(math.Round(w/5) * 5)
}

// Plan computes adjustments for every weight in the active set. Signals
// with fewer than MinSampleSize events keep their weight and are marked
// skipped.
func Plan(weights []model.SignalWeight, stats map[string]Stat, cfg Config) []Adjustment {
	out := make([]Adjustment, 0, len(weights))
	for _, w := range weights {
		st := stats[w.Signal]
		adj := Adjustment{
			Signal:         w.Signal,
			Category:       w.Category,
			OldWeight:      w.Weight,
			NewWeight:      w.Weight,
			Events:         st.Events,
			ConversionRate: st.Rate(),
		}
		if st.Events < cfg.MinSampleSize || st.Events == 0 {
			adj.Skipped = true
		} else {
			adj.NewWeight = Adjust(w.Weight, w.Category, st, cfg)
		}
		out = append(out, adj)
	}
	return out
}
