// Package pipeline runs the validation, readiness, scoring, verification and
// campaign hand-off sweeps over the store. Each sweep processes entities
// independently and records every transition in the phase log.
package pipeline

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/phase"
	"github.com/sells-group/outreach-cli/internal/readiness"
	"github.com/sells-group/outreach-cli/internal/store"
)

const (
	defaultConcurrency   = 8
	defaultRecordTimeout = 30 * time.Second
	defaultPageSize      = 200
)

// Config bounds a sweep.
type Config struct {
	Concurrency   int
	RecordTimeout time.Duration
	// Limit caps the number of entities a sweep visits. Zero means no cap.
	Limit int
}

// RecordFailure identifies a record whose processing hit an infrastructure
// error.
type RecordFailure struct {
	EntityID string `json:"entity_id"`
	Reason   string `json:"reason"`
}

// BatchResult reports a sweep. Outcomes counts the typed outcome of every
// succeeded record (valid, invalid, ready, hot...). Skipped records were
// not yet eligible for the phase.
type BatchResult struct {
	RunID     string          `json:"run_id"`
	Phase     model.Phase     `json:"phase"`
	Processed int             `json:"processed"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Skipped   int             `json:"skipped"`
	Outcomes  map[string]int  `json:"outcomes,omitempty"`
	Failures  []RecordFailure `json:"failures,omitempty"`
	Duration  time.Duration   `json:"duration_ns"`

	mu sync.Mutex
}

func (r *BatchResult) record(id, outcome string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Processed++
	switch {
	case skipped(err):
		r.Skipped++
	case err != nil:
		r.Failed++
		r.Failures = append(r.Failures, RecordFailure{EntityID: id, Reason: err.Error()})
	default:
		r.Succeeded++
		if outcome != "" {
			if r.Outcomes == nil {
				r.Outcomes = make(map[string]int)
			}
			r.Outcomes[outcome]++
		}
	}
}

// ErrNotFound is returned by single-entity helpers for unknown ids.
var ErrNotFound = errors.New("pipeline: entity not found")

// errSkip marks a record that is not eligible for the sweep.
var errSkip = errors.New("skip")

// forEach runs fn for every item with bounded concurrency and a
// per-record timeout. It stops scheduling new records once ctx is done.
func forEach[T any](ctx context.Context, cfg Config, items []T, key func(T) string, res *BatchResult, fn func(context.Context, T) (string, error)) error {
	g := new(errgroup.Group)
	g.SetLimit(cfg.Concurrency)

	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			rctx, cancel := context.WithTimeout(ctx, cfg.RecordTimeout)
			defer cancel()

			id := key(item)
			outcome, err := fn(rctx, item)
			if err != nil && errors.Is(rctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
				err = eris.Wrapf(err, "record timed out after %s", cfg.RecordTimeout)
			}
			res.record(id, outcome, err)
			if err != nil && !skipped(err) {
				zap.L().Warn("pipeline: record failed",
					zap.String("phase", string(res.Phase)),
					zap.String("entity_id", id),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	res.mu.Lock()
	sort.Slice(res.Failures, func(i, j int) bool { return res.Failures[i].EntityID < res.Failures[j].EntityID })
	res.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "pipeline: interrupted")
	}
	return nil
}

func skipped(err error) bool {
	return errors.Is(err, errSkip) || errors.Is(err, phase.ErrPhaseOrder)
}

func withDefaults(cfg Config) Config {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.RecordTimeout <= 0 {
		cfg.RecordTimeout = defaultRecordTimeout
	}
	return cfg
}

// sweep pages through entities with list and runs fn on each page. A list
// error aborts the sweep; per-record errors only count against res.
func sweep[T any](ctx context.Context, cfg Config, res *BatchResult, list func(after string, limit int) ([]T, error), key func(T) string, fn func(context.Context, T) (string, error)) error {
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	after := ""
	seen := 0
	for {
		size := defaultPageSize
		if cfg.Limit > 0 {
			if seen >= cfg.Limit {
				return nil
			}
			size = min(size, cfg.Limit-seen)
		}

		page, err := list(after, size)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}
		if err := forEach(ctx, cfg, page, key, res, fn); err != nil {
			return err
		}

		seen += len(page)
		after = key(page[len(page)-1])
		if len(page) < size {
			return nil
		}
	}
}

func companyID(c model.Company) string { return c.ID }

func personID(p model.Person) string { return p.ID }

// companies lists companies with status for sweep.
func (r *Runner) companies(ctx context.Context, status model.Status) func(string, int) ([]model.Company, error) {
	return func(after string, limit int) ([]model.Company, error) {
		page, err := r.store.ListCompanies(ctx, store.CompanyFilter{Status: status, AfterID: after, Limit: limit})
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: list companies")
		}
		return page, nil
	}
}

// people lists people matching filter for sweep.
func (r *Runner) people(ctx context.Context, filter store.PersonFilter) func(string, int) ([]model.Person, error) {
	return func(after string, limit int) ([]model.Person, error) {
		filter.AfterID, filter.Limit = after, limit
		page, err := r.store.ListPeople(ctx, filter)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: list people")
		}
		return page, nil
	}
}

// enter moves an entity into running for p, retrying a failed phase.
func enter(ctx context.Context, t *phase.Tracker, id string, p model.Phase) error {
	st, err := t.Status(ctx, id, p)
	if err != nil {
		return err
	}
	if st == model.PhaseFailed {
		return t.Retry(ctx, id, p)
	}
	return t.Start(ctx, id, p)
}

// abandon marks a running phase failed after an infrastructure error. It
// runs detached from ctx so a timed-out record is still closed.
func abandon(ctx context.Context, t *phase.Tracker, id string, p model.Phase, cause error) error {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := t.Fail(fctx, id, p, cause.Error()); err != nil {
		zap.L().Warn("pipeline: could not mark phase failed",
			zap.String("entity_id", id),
			zap.String("phase", string(p)),
			zap.Error(err),
		)
	}
	return cause
}

// Store is the persistence the sweeps depend on. store.Store satisfies it.
type Store interface {
	GetCompany(ctx context.Context, id string) (*model.Company, error)
	ListCompanies(ctx context.Context, filter store.CompanyFilter) ([]model.Company, error)
	SetCompanyStatus(ctx context.Context, id string, status model.Status) error
	ListSlots(ctx context.Context, companyID string) ([]model.Slot, error)
	GetPerson(ctx context.Context, id string) (*model.Person, error)
	ListPeople(ctx context.Context, filter store.PersonFilter) ([]model.Person, error)
	PeopleByIDs(ctx context.Context, ids []string) (map[string]*model.Person, error)
	SetPersonStatus(ctx context.Context, id string, status model.Status) error
	EnrichmentAttempts(ctx context.Context, personIDs []string) (map[string][]model.Enrichment, error)
	VerificationAttempts(ctx context.Context, personIDs []string) (map[string][]model.Verification, error)
	RecordEnrichment(ctx context.Context, e *model.Enrichment) error
	RecordVerification(ctx context.Context, v *model.Verification) error
	ReplaceFailures(ctx context.Context, entityID string, failures []model.ValidationFailure) error
	ListFailures(ctx context.Context, filter store.FailureFilter) ([]model.ValidationFailure, error)
	ListFallout(ctx context.Context, runID string, limit int) ([]model.Fallout, error)
	SaveReadiness(ctx context.Context, r *readiness.Result) error
	SaveScores(ctx context.Context, scores []model.Score) error
}

// Runner holds the collaborators shared by the sweeps.
type Runner struct {
	store   Store
	tracker *phase.Tracker
	auditor Auditor
	cfg     Config
	runID   string
}

// Auditor receives change events. Implementations must not fail the caller.
type Auditor interface {
	Record(ctx context.Context, ev model.AuditEvent)
}

// NewRunner creates a Runner. auditor may be nil.
func NewRunner(st Store, tracker *phase.Tracker, auditor Auditor, cfg Config, runID string) *Runner {
	return &Runner{store: st, tracker: tracker, auditor: auditor, cfg: withDefaults(cfg), runID: runID}
}

// RunID returns the id stamped on every record the runner writes.
func (r *Runner) RunID() string { return r.runID }

// NewRunID returns a fresh pipeline run id.
func NewRunID() string { return uuid.NewString() }

func (r *Runner) newResult(p model.Phase) *BatchResult {
	return &BatchResult{RunID: r.runID, Phase: p}
}

func (r *Runner) audit(ctx context.Context, kind model.EntityKind, id, action string, before, after map[string]string) {
	if r.auditor == nil {
		return
	}
	r.auditor.Record(ctx, model.AuditEvent{
		EntityID:  id,
		Kind:      kind,
		Action:    action,
		Before:    before,
		After:     after,
		Actor:     "pipeline",
		SessionID: r.runID,
	})
}

func logDone(res *BatchResult) {
	zap.L().Info("pipeline: sweep complete",
		zap.String("phase", string(res.Phase)),
		zap.String("run_id", res.RunID),
		zap.Int("processed", res.Processed),
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed),
		zap.Int("skipped", res.Skipped),
		zap.Duration("duration", res.Duration),
	)
}
