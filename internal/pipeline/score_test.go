package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/scoring"
)

type fakeSignals struct {
	ws     *model.WeightSet
	counts map[string]map[string]int
	err    error
}

func (s *fakeSignals) ActiveWeightSet(context.Context) (*model.WeightSet, error) {
	return s.ws, s.err
}

func (s *fakeSignals) EventCounts(_ context.Context, id string) (map[string]int, error) {
	return s.counts[id], nil
}

// readyFixture runs validation and readiness so ids reach the scoring phase.
func readyFixture(t *testing.T, ids ...string) *fixture {
	t.Helper()
	f := newFixture(t, Config{Concurrency: 2})
	for _, id := range ids {
		f.store.addReadyCompany(id)
	}
	ctx := context.Background()
	_, err := f.runner.ValidateCompanies(ctx, "")
	require.NoError(t, err)
	_, err = f.runner.Readiness(ctx)
	require.NoError(t, err)
	return f
}

func TestScore(t *testing.T) {
	f := readyFixture(t, "c1")
	engine := scoring.NewEngine(scoring.DefaultWeights())
	sigs := &fakeSignals{
		ws: &model.WeightSet{Version: 3, Active: true, Weights: []model.SignalWeight{
			{Signal: "email_open", Category: model.CategoryEngagement, Weight: 10},
		}},
		counts: map[string]map[string]int{"c1": {"email_open": 6}},
	}

	res, err := f.runner.Score(context.Background(), engine, sigs)
	require.NoError(t, err)

	assert.Equal(t, model.PhaseScoring, res.Phase)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, model.PhaseComplete, f.status(t, "c1", model.PhaseScoring))

	// The company plus its three people.
	require.Len(t, f.store.scores, 4)
	cs := f.store.scores["c1"]
	assert.Equal(t, model.KindCompany, cs.EntityKind)
	assert.Equal(t, 60, cs.SignalBaseline)
	assert.Equal(t, model.TierWarm, cs.EngagementTier)
	assert.Equal(t, 3, cs.WeightVersion)
	assert.Equal(t, 1, res.Outcomes[string(cs.Segment)])

	ps := f.store.scores["c1-CEO"]
	assert.Equal(t, model.KindPerson, ps.EntityKind)
	assert.Zero(t, ps.SignalBaseline)
	assert.Equal(t, 3, ps.WeightVersion)
}

func TestScore_NoActiveWeightSet(t *testing.T) {
	f := readyFixture(t, "c1")

	res, err := f.runner.Score(context.Background(), scoring.NewEngine(scoring.DefaultWeights()), &fakeSignals{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Succeeded)
	assert.Zero(t, f.store.scores["c1"].WeightVersion)
	assert.Empty(t, f.store.scores["c1"].EngagementTier)
}

func TestScore_SkipsNotReady(t *testing.T) {
	f := newFixture(t, Config{})
	f.store.addReadyCompany("c1")
	f.store.slots["c1"] = f.store.slots["c1"][:2]
	ctx := context.Background()
	_, err := f.runner.ValidateCompanies(ctx, "")
	require.NoError(t, err)
	// Missing HR slot fails validation, so nothing is valid for readiness.
	assert.Equal(t, model.StatusInvalid, f.store.companies["c1"].Status)

	f.store.companies["c1"].Status = model.StatusValid
	res, err := f.runner.Score(ctx, scoring.NewEngine(scoring.DefaultWeights()), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Empty(t, f.store.scores)
}

func TestScore_WeightSetError(t *testing.T) {
	f := newFixture(t, Config{})
	_, err := f.runner.Score(context.Background(), scoring.NewEngine(scoring.DefaultWeights()), &fakeSignals{err: errors.New("db down")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "active weight set")
}
