package pipeline

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/export"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
)

// ReviewItems collects pending validation failures and match fallout for
// the review queue. Fallout is limited to runID when set.
func (r *Runner) ReviewItems(ctx context.Context, runID string, limit int) ([]export.Item, error) {
	failures, err := r.store.ListFailures(ctx, store.FailureFilter{Status: model.FailurePending, Limit: limit})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: list failures")
	}
	fallout, err := r.store.ListFallout(ctx, runID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: list fallout")
	}

	names := make(map[string]string)
	items := make([]export.Item, 0, len(failures)+len(fallout))
	for _, f := range failures {
		name, ok := names[f.EntityID]
		if !ok {
			if name, err = r.entityName(ctx, f.EntityKind, f.EntityID); err != nil {
				return nil, err
			}
			names[f.EntityID] = name
		}
		items = append(items, export.FromFailure(name, f))
	}
	for _, f := range fallout {
		items = append(items, export.FromFallout(f))
	}
	return items, nil
}

func (r *Runner) entityName(ctx context.Context, kind model.EntityKind, id string) (string, error) {
	if kind == model.KindPerson {
		p, err := r.store.GetPerson(ctx, id)
		if err != nil {
			return "", eris.Wrapf(err, "pipeline: get person %s", id)
		}
		if p != nil {
			if name := p.DisplayName(); name != "" {
				return name, nil
			}
		}
		return id, nil
	}
	c, err := r.store.GetCompany(ctx, id)
	if err != nil {
		return "", eris.Wrapf(err, "pipeline: get company %s", id)
	}
	if c != nil && c.Name != "" {
		return c.Name, nil
	}
	return id, nil
}

// Review sends up to limit pending failures and limit fallout entries to
// exp in batches.
func (r *Runner) Review(ctx context.Context, exp export.Exporter, batchSize, limit int) (*export.Result, error) {
	items, err := r.ReviewItems(ctx, "", limit)
	if err != nil {
		return nil, err
	}
	return export.Run(ctx, exp, r.runID, items, batchSize)
}
