package pipeline

import (
	"context"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/internal/validate"
)

// ValidateCompanies runs the validator over companies with status (all
// companies when empty). Valid companies complete the validation phase;
// invalid ones fail it with the first failure as the reason.
func (r *Runner) ValidateCompanies(ctx context.Context, status model.Status) (*BatchResult, error) {
	res := r.newResult(model.PhaseValidation)
	err := sweep(ctx, r.cfg, res, r.companies(ctx, status), companyID, r.validateCompany)
	logDone(res)
	return res, err
}

// ValidatePeople runs the person rules over people matching filter.
func (r *Runner) ValidatePeople(ctx context.Context, filter store.PersonFilter) (*BatchResult, error) {
	res := r.newResult(model.PhaseValidation)
	err := sweep(ctx, r.cfg, res, r.people(ctx, filter), personID, r.validatePerson)
	logDone(res)
	return res, err
}

func (r *Runner) validateCompany(ctx context.Context, c model.Company) (string, error) {
	if err := enter(ctx, r.tracker, c.ID, model.PhaseValidation); err != nil {
		return "", err
	}

	slots, err := r.store.ListSlots(ctx, c.ID)
	if err != nil {
		return "", abandon(ctx, r.tracker, c.ID, model.PhaseValidation, err)
	}
	v := validate.Company(&c, slots)

	if err := r.storeVerdict(ctx, model.KindCompany, c.ID, c.Status, v); err != nil {
		return "", abandon(ctx, r.tracker, c.ID, model.PhaseValidation, err)
	}
	return r.closeValidation(ctx, c.ID, v)
}

func (r *Runner) validatePerson(ctx context.Context, p model.Person) (string, error) {
	if err := enter(ctx, r.tracker, p.ID, model.PhaseValidation); err != nil {
		return "", err
	}
	v := validate.Person(&p)
	if err := r.storeVerdict(ctx, model.KindPerson, p.ID, p.Status, v); err != nil {
		return "", abandon(ctx, r.tracker, p.ID, model.PhaseValidation, err)
	}
	return r.closeValidation(ctx, p.ID, v)
}

// storeVerdict replaces the entity's pending failures and updates its
// status when the verdict changed it.
func (r *Runner) storeVerdict(ctx context.Context, kind model.EntityKind, id string, current model.Status, v validate.Result) error {
	for i := range v.Failures {
		v.Failures[i].RunID = r.runID
	}
	if err := r.store.ReplaceFailures(ctx, id, v.Failures); err != nil {
		return err
	}

	next := v.Status()
	if next == current {
		return nil
	}
	var err error
	if kind == model.KindCompany {
		err = r.store.SetCompanyStatus(ctx, id, next)
	} else {
		err = r.store.SetPersonStatus(ctx, id, next)
	}
	if err != nil {
		return err
	}
	r.audit(ctx, kind, id, "status_changed",
		map[string]string{"status": string(current)},
		map[string]string{"status": string(next), "reason": v.Reason},
	)
	return nil
}

func (r *Runner) closeValidation(ctx context.Context, id string, v validate.Result) (string, error) {
	if v.Valid {
		return string(model.StatusValid), r.tracker.Complete(ctx, id, model.PhaseValidation)
	}
	return string(model.StatusInvalid), r.tracker.Fail(ctx, id, model.PhaseValidation, v.Reason)
}
