package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/pkg/verifier"
)

// VerifyOptions selects the people to verify.
type VerifyOptions struct {
	CompanyID string
	Status    model.Status
	// Enrich also runs an enrichment lookup for each person.
	Enrich bool
}

// Verify checks email deliverability (and optionally enriches) the selected
// people and records every attempt. A provider failure is recorded as an
// unknown verification or failed enrichment and counted against the
// person; the sweep continues.
func (r *Runner) Verify(ctx context.Context, client verifier.Client, opts VerifyOptions) (*BatchResult, error) {
	res := &BatchResult{RunID: r.runID}
	filter := store.PersonFilter{CompanyID: opts.CompanyID, Status: opts.Status}
	fn := func(ctx context.Context, p model.Person) (string, error) {
		return r.verifyPerson(ctx, client, p, opts.Enrich)
	}
	err := sweep(ctx, r.cfg, res, r.people(ctx, filter), personID, fn)
	logDone(res)
	return res, err
}

func (r *Runner) verifyPerson(ctx context.Context, client verifier.Client, p model.Person, enrich bool) (string, error) {
	var providerErr error

	outcome := "no_email"
	if p.Email != "" {
		status, err := client.VerifyEmail(ctx, p.Email)
		if err != nil {
			providerErr = err
			status = model.VerificationUnknown
		}
		v := &model.Verification{PersonID: p.ID, Email: p.Email, Status: status, AttemptedAt: time.Now().UTC()}
		if err := r.store.RecordVerification(ctx, v); err != nil {
			return "", eris.Wrapf(err, "record verification for %s", p.ID)
		}
		outcome = string(status)
	}

	if enrich {
		e := &model.Enrichment{PersonID: p.ID, Provider: verifier.Provider, Status: model.EnrichmentFailed}
		found, err := client.Enrich(ctx, &p)
		switch {
		case err != nil:
			if providerErr == nil {
				providerErr = err
			}
		case found.Found:
			e.Status = model.EnrichmentSuccess
			e.Fields = found.Fields
		}
		e.AttemptedAt = time.Now().UTC()
		if err := r.store.RecordEnrichment(ctx, e); err != nil {
			return "", eris.Wrapf(err, "record enrichment for %s", p.ID)
		}
	}

	if providerErr != nil {
		return "", eris.Wrap(providerErr, "provider")
	}
	return outcome, nil
}
