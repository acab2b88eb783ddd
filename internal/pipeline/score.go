package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/scoring"
	"github.com/sells-group/outreach-cli/internal/store"
)

// SignalSource supplies the active weight set and per-entity event counts.
type SignalSource interface {
	ActiveWeightSet(ctx context.Context) (*model.WeightSet, error)
	EventCounts(ctx context.Context, entityID string) (map[string]int, error)
}

// Score scores every valid company that has completed readiness, together
// with its people. Scores and history rows for one company are written in
// one transaction. sigs may be nil, in which case no signal baseline is
// attached.
func (r *Runner) Score(ctx context.Context, engine *scoring.Engine, sigs SignalSource) (*BatchResult, error) {
	res := r.newResult(model.PhaseScoring)

	var ws *model.WeightSet
	if sigs != nil {
		var err error
		ws, err = sigs.ActiveWeightSet(ctx)
		if err != nil {
			return res, eris.Wrap(err, "pipeline: load active weight set")
		}
		if ws == nil {
			zap.L().Warn("pipeline: no active weight set, scoring without signals")
			sigs = nil
		}
	}

	fn := func(ctx context.Context, c model.Company) (string, error) {
		return r.scoreCompany(ctx, engine, sigs, ws, c)
	}
	err := sweep(ctx, r.cfg, res, r.companies(ctx, model.StatusValid), companyID, fn)
	logDone(res)
	return res, err
}

func (r *Runner) scoreCompany(ctx context.Context, engine *scoring.Engine, sigs SignalSource, ws *model.WeightSet, c model.Company) (string, error) {
	if err := enter(ctx, r.tracker, c.ID, model.PhaseScoring); err != nil {
		return "", err
	}

	scores, err := r.scoreAll(ctx, engine, sigs, ws, &c)
	if err != nil {
		return "", abandon(ctx, r.tracker, c.ID, model.PhaseScoring, err)
	}
	if err := r.store.SaveScores(ctx, scores); err != nil {
		return "", abandon(ctx, r.tracker, c.ID, model.PhaseScoring, err)
	}
	return string(scores[0].Segment), r.tracker.Complete(ctx, c.ID, model.PhaseScoring)
}

// scoreAll returns the company score first, followed by its people.
func (r *Runner) scoreAll(ctx context.Context, engine *scoring.Engine, sigs SignalSource, ws *model.WeightSet, c *model.Company) ([]model.Score, error) {
	withSignals := func(s model.Score) (model.Score, error) {
		if sigs == nil {
			return s, nil
		}
		counts, err := sigs.EventCounts(ctx, s.EntityID)
		if err != nil {
			return s, eris.Wrapf(err, "event counts for %s", s.EntityID)
		}
		return scoring.WithSignals(s, counts, ws), nil
	}

	cs, err := withSignals(engine.Company(c))
	if err != nil {
		return nil, err
	}
	scores := []model.Score{cs}

	people, err := r.store.ListPeople(ctx, store.PersonFilter{CompanyID: c.ID})
	if err != nil {
		return nil, err
	}
	for i := range people {
		ps, err := withSignals(engine.Person(&people[i]))
		if err != nil {
			return nil, err
		}
		scores = append(scores, ps)
	}
	return scores, nil
}
