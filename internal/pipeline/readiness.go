package pipeline

import (
	"context"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/readiness"
)

// Readiness evaluates every valid company. Ready companies complete the
// readiness phase; the rest fail it with the first failed check.
func (r *Runner) Readiness(ctx context.Context) (*BatchResult, error) {
	res := r.newResult(model.PhaseReadiness)
	err := sweep(ctx, r.cfg, res, r.companies(ctx, model.StatusValid), companyID, r.readinessCompany)
	logDone(res)
	return res, err
}

func (r *Runner) readinessCompany(ctx context.Context, c model.Company) (string, error) {
	if err := enter(ctx, r.tracker, c.ID, model.PhaseReadiness); err != nil {
		return "", err
	}

	in, err := r.readinessInput(ctx, &c)
	if err != nil {
		return "", abandon(ctx, r.tracker, c.ID, model.PhaseReadiness, err)
	}
	verdict := readiness.Evaluate(*in)
	if err := r.store.SaveReadiness(ctx, &verdict); err != nil {
		return "", abandon(ctx, r.tracker, c.ID, model.PhaseReadiness, err)
	}

	if verdict.Ready {
		return "ready", r.tracker.Complete(ctx, c.ID, model.PhaseReadiness)
	}
	return "not_ready", r.tracker.Fail(ctx, c.ID, model.PhaseReadiness, verdict.Reason)
}

// readinessInput loads the slots, linked people and their attempts.
func (r *Runner) readinessInput(ctx context.Context, c *model.Company) (*readiness.Input, error) {
	slots, err := r.store.ListSlots(ctx, c.ID)
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, s := range slots {
		if s.PersonID != nil && *s.PersonID != "" {
			ids = append(ids, *s.PersonID)
		}
	}
	in := &readiness.Input{Company: c, Slots: slots}
	if len(ids) == 0 {
		return in, nil
	}

	if in.People, err = r.store.PeopleByIDs(ctx, ids); err != nil {
		return nil, err
	}
	if in.Enrichments, err = r.store.EnrichmentAttempts(ctx, ids); err != nil {
		return nil, err
	}
	if in.Verifications, err = r.store.VerificationAttempts(ctx, ids); err != nil {
		return nil, err
	}
	return in, nil
}

// EvaluateCompany runs readiness for one company without touching the
// phase log or persisting the verdict.
func (r *Runner) EvaluateCompany(ctx context.Context, id string) (*readiness.Result, error) {
	c, err := r.store.GetCompany(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrNotFound
	}
	in, err := r.readinessInput(ctx, c)
	if err != nil {
		return nil, err
	}
	verdict := readiness.Evaluate(*in)
	return &verdict, nil
}
