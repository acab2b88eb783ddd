package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/outreach-cli/internal/model"
)

func TestEngagement(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		industry  string
		employees *int
		want      int
	}{
		{"base", "", nil, 50},
		{"saas large", "SaaS", intPtr(1000), 90},
		{"tech outranks finance", "Financial Technology", nil, 70},
		{"healthcare mid", "Healthcare", intPtr(100), 80},
		{"retail small", "Retail", intPtr(10), 70},
		{"tiny unknown", "Agriculture", intPtr(9), 50},
		{"government", "Government", intPtr(450), 65},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Engagement(tt.industry, tt.employees))
		})
	}
}

func TestBaseline_SumsWeightedCountsIntoHotTier(t *testing.T) {
	t.Parallel()

	counts := map[string]int{"open": 20, "reply": 3, "meeting": 1}
	weights := map[string]int{"open": 5, "reply": 30, "meeting": 50}

	b := Baseline(counts, weights)
	assert.Equal(t, 240, b)
	assert.Equal(t, model.TierHot, Tier(b))
}

func TestBaseline_UnweightedSignalIgnored(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 10, Baseline(map[string]int{"open": 2, "unknown": 99}, map[string]int{"open": 5}))
}

func TestTier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		baseline int
		want     model.EngagementTier
	}{
		{0, model.TierCold},
		{49, model.TierCold},
		{50, model.TierWarm},
		{199, model.TierWarm},
		{200, model.TierHot},
		{299, model.TierHot},
		{300, model.TierBurning},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Tier(tt.baseline), "baseline %d", tt.baseline)
	}
}

func TestWithSignals(t *testing.T) {
	t.Parallel()

	ws := &model.WeightSet{Version: 4, Weights: []model.SignalWeight{{Signal: "open", Weight: 5}, {Signal: "meeting", Weight: 50}}}
	s := WithSignals(model.Score{Total: 70}, map[string]int{"open": 10, "meeting": 6}, ws)

	assert.Equal(t, 350, s.SignalBaseline)
	assert.Equal(t, model.TierBurning, s.EngagementTier)
	assert.Equal(t, 4, s.WeightVersion)
	assert.Equal(t, 70, s.Total)

	unchanged := WithSignals(model.Score{Total: 70}, map[string]int{"open": 10}, nil)
	assert.Equal(t, 0, unchanged.SignalBaseline)
	assert.Empty(t, unchanged.EngagementTier)
}
