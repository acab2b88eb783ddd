package match

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/normalize"
)

// Store is the persistence the resolver depends on.
type Store interface {
	CompanyCandidates(ctx context.Context, c model.Company, limit int) ([]model.Company, error)
	CreateCompany(ctx context.Context, c *model.Company) error
	UpdateCompanyFields(ctx context.Context, id string, requested map[string]string) (model.UpdatePlan, error)
	PersonCandidates(ctx context.Context, p model.Person, limit int) ([]model.Person, error)
	CreatePerson(ctx context.Context, p *model.Person) error
	UpdatePersonFields(ctx context.Context, id string, requested map[string]string) (model.UpdatePlan, error)
	SaveFallout(ctx context.Context, f *model.Fallout) error
}

// Auditor receives change events. Implementations must not fail the caller.
type Auditor interface {
	Record(ctx context.Context, ev model.AuditEvent)
}

// Config holds resolver thresholds.
type Config struct {
	CompanyThreshold float64
	PersonThreshold  float64
	CandidateLimit   int
}

// Outcome describes what the resolver did with one record.
type Outcome struct {
	Result   Result         `json:"result"`
	EntityID string         `json:"entity_id,omitempty"`
	Created  bool           `json:"created"`
	Changed  []string       `json:"changed,omitempty"`
	Skipped  []string       `json:"skipped_locked,omitempty"`
	Fallout  *model.Fallout `json:"fallout,omitempty"`
}

// Resolver links incoming records to existing entities, creating new ones
// when nothing was compared and routing near misses to fallout.
type Resolver struct {
	store   Store
	auditor Auditor
	cfg     Config
	runID   string
}

// NewResolver creates a resolver. auditor may be nil.
func NewResolver(store Store, auditor Auditor, cfg Config, runID string) *Resolver {
	if cfg.CompanyThreshold <= 0 {
		cfg.CompanyThreshold = DefaultCompanyThreshold
	}
	if cfg.PersonThreshold <= 0 {
		cfg.PersonThreshold = DefaultPersonThreshold
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = 10
	}
	return &Resolver{store: store, auditor: auditor, cfg: cfg, runID: runID}
}

// ResolveCompany normalizes raw and resolves it. Matched records only have
// their non-locked fields written.
func (r *Resolver) ResolveCompany(ctx context.Context, raw model.Company) (*Outcome, error) {
	c := normalize.Company(raw)
	log := zap.L().With(zap.String("name", c.Name), zap.String("domain", c.Domain))

	pool, err := r.store.CompanyCandidates(ctx, c, r.cfg.CandidateLimit)
	if err != nil {
		return nil, eris.Wrap(err, "match: company candidates")
	}

	res := Company(c, pool, r.cfg.CompanyThreshold)
	out := &Outcome{Result: res}

	switch {
	case res.Matched():
		plan, err := r.store.UpdateCompanyFields(ctx, res.MatchedID, c.Fields())
		if err != nil {
			return nil, eris.Wrapf(err, "match: update company %s", res.MatchedID)
		}
		out.EntityID, out.Changed, out.Skipped = res.MatchedID, plan.Changed, plan.Skipped
		if len(plan.Changed) > 0 {
			r.audit(ctx, model.KindCompany, res.MatchedID, "company.update", plan.Before, changedValues(plan))
		}
		log.Debug("resolve: matched company",
			zap.String("company_id", res.MatchedID),
			zap.String("rule", string(res.Rule)),
			zap.Float64("confidence", res.Confidence),
		)

	case res.Unresolved():
		out.Fallout = res.Fallout(model.KindCompany, c.Name, c.Domain)
		if err := r.saveFallout(ctx, out.Fallout); err != nil {
			return nil, err
		}
		log.Info("resolve: company routed to fallout", zap.Float64("best_confidence", res.Confidence))

	default:
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		c.Status = model.StatusPending
		if err := r.store.CreateCompany(ctx, &c); err != nil {
			return nil, eris.Wrap(err, "match: create company")
		}
		out.EntityID, out.Created = c.ID, true
		r.audit(ctx, model.KindCompany, c.ID, "company.create", nil, nonEmpty(c.Fields()))
		log.Info("resolve: created company", zap.String("company_id", c.ID))
	}

	return out, nil
}

// ResolvePerson normalizes raw and resolves it against people sharing its
// LinkedIn URL, email or company domain.
func (r *Resolver) ResolvePerson(ctx context.Context, raw model.Person) (*Outcome, error) {
	p := normalize.Person(raw)
	log := zap.L().With(zap.String("person", p.DisplayName()), zap.String("company_domain", p.CompanyDomain))

	pool, err := r.store.PersonCandidates(ctx, p, r.cfg.CandidateLimit)
	if err != nil {
		return nil, eris.Wrap(err, "match: person candidates")
	}

	res := Person(p, pool, r.cfg.PersonThreshold)
	out := &Outcome{Result: res}

	switch {
	case res.Matched():
		plan, err := r.store.UpdatePersonFields(ctx, res.MatchedID, p.Fields())
		if err != nil {
			return nil, eris.Wrapf(err, "match: update person %s", res.MatchedID)
		}
		out.EntityID, out.Changed, out.Skipped = res.MatchedID, plan.Changed, plan.Skipped
		if len(plan.Changed) > 0 {
			r.audit(ctx, model.KindPerson, res.MatchedID, "person.update", plan.Before, changedValues(plan))
		}
		log.Debug("resolve: matched person",
			zap.String("person_id", res.MatchedID),
			zap.String("rule", string(res.Rule)),
		)

	case res.Unresolved():
		out.Fallout = res.Fallout(model.KindPerson, p.DisplayName(), p.Email)
		if err := r.saveFallout(ctx, out.Fallout); err != nil {
			return nil, err
		}
		log.Info("resolve: person routed to fallout", zap.Float64("best_confidence", res.Confidence))

	default:
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		p.Status = model.StatusPending
		if err := r.store.CreatePerson(ctx, &p); err != nil {
			return nil, eris.Wrap(err, "match: create person")
		}
		out.EntityID, out.Created = p.ID, true
		r.audit(ctx, model.KindPerson, p.ID, "person.create", nil, nonEmpty(p.Fields()))
	}

	return out, nil
}

func (r *Resolver) saveFallout(ctx context.Context, f *model.Fallout) error {
	f.RunID = r.runID
	f.CreatedAt = time.Now().UTC()
	return eris.Wrap(r.store.SaveFallout(ctx, f), "match: save fallout")
}

func (r *Resolver) audit(ctx context.Context, kind model.EntityKind, id, action string, before, after map[string]string) {
	if r.auditor == nil {
		return
	}
	r.auditor.Record(ctx, model.AuditEvent{
		EntityID:  id,
		Kind:      kind,
		Action:    action,
		Before:    before,
		After:     after,
		Actor:     "resolver",
		SessionID: r.runID,
		At:        time.Now().UTC(),
	})
}

func changedValues(plan model.UpdatePlan) map[string]string {
	m := make(map[string]string, len(plan.Changed))
	for _, k := range plan.Changed {
		m[k] = plan.Next[k]
	}
	return m
}

func nonEmpty(fields map[string]string) map[string]string {
	m := make(map[string]string, len(fields))
	for k, v := range fields {
		if v != "" {
			m[k] = v
		}
	}
	return m
}
