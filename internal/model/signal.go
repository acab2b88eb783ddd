package model

import "time"

// SignalCategory groups signals for category-specific weight overrides.
type SignalCategory string

const (
	CategoryDemoRequest  SignalCategory = "demo_request"
	CategoryFunding      SignalCategory = "funding"
	CategoryEngagement   SignalCategory = "engagement"
	CategoryIntent       SignalCategory = "intent"
	CategoryFirmographic SignalCategory = "firmographic"
)

// SignalWeight is the current weight and rolling stats for one signal.
type SignalWeight struct {
	Signal          string         `json:"signal" yaml:"signal"`
	Category        SignalCategory `json:"category" yaml:"category"`
	Weight          int            `json:"weight" yaml:"weight"`
	Events          int            `json:"events" yaml:"-"`
	Conversions     int            `json:"conversions" yaml:"-"`
	AvgDealValue    float64        `json:"avg_deal_value" yaml:"-"`
	LastOptimizedAt *time.Time     `json:"last_optimized_at,omitempty" yaml:"-"`
}

// ConversionRate returns conversions / events, or 0 with no events.
func (w SignalWeight) ConversionRate() float64 {
	if w.Events == 0 {
		return 0
	}
	return float64(w.Conversions) / float64(w.Events)
}

// WeightSet is a versioned set of signal weights. Only one set is active.
type WeightSet struct {
	Version   int            `json:"version"`
	Active    bool           `json:"active"`
	Reason    string         `json:"reason,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	Weights   []SignalWeight `json:"weights"`
}

// Lookup returns the weight map keyed by signal name.
func (ws *WeightSet) Lookup() map[string]int {
	m := make(map[string]int, len(ws.Weights))
	for _, w := range ws.Weights {
		m[w.Signal] = w.Weight
	}
	return m
}
