// Package phase tracks which pipeline phase each entity occupies. Every
// transition appends an immutable log row; the entity's current phase only
// advances when a phase completes.
package phase

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
)

// ErrInvalidTransition is returned when a status change is not allowed
// from the entity's latest status.
var ErrInvalidTransition = errors.New("phase: invalid transition")

// ErrPhaseOrder is returned when a phase is started before the phase
// preceding it has completed.
var ErrPhaseOrder = errors.New("phase: previous phase not complete")

// Log persists phase transitions and the current-phase pointer.
type Log interface {
	// Append writes rec and assigns its ID. When pointer is non-nil the
	// entity's current phase is set to *pointer in the same write; an empty
	// phase clears it.
	Append(ctx context.Context, rec *model.PhaseRecord, pointer *model.Phase) error
	// Latest returns the newest record for an entity and phase, or nil.
	Latest(ctx context.Context, entityID string, phase model.Phase) (*model.PhaseRecord, error)
	// History returns an entity's records, newest first.
	History(ctx context.Context, entityID string, limit int) ([]model.PhaseRecord, error)
	// Current returns the last completed phase, or "" if none.
	Current(ctx context.Context, entityID string) (model.Phase, error)
}

// CanTransition reports whether from → to is a legal status change.
// Reset is the only way back to not_started and is not covered here.
func CanTransition(from, to model.PhaseStatus) bool {
	switch to {
	case model.PhaseRunning:
		// complete → running re-runs a phase; running → running resumes an
		// interrupted one. failed requires an explicit retry.
		return from == model.PhaseNotStarted || from == model.PhaseComplete || from == model.PhaseRunning
	case model.PhaseComplete, model.PhaseFailed:
		return from == model.PhaseRunning
	}
	return false
}

// Index returns the position of p in the progression, or -1.
func Index(p model.Phase) int {
	for i, ph := range model.Phases {
		if ph == p {
			return i
		}
	}
	return -1
}

// Previous returns the phase before p, or "" for the first phase.
func Previous(p model.Phase) model.Phase {
	if i := Index(p); i > 0 {
		return model.Phases[i-1]
	}
	return ""
}

// Tracker applies the phase state machine on top of a Log.
type Tracker struct {
	log   Log
	runID string
	now   func() time.Time
}

// NewTracker creates a tracker that stamps records with runID.
func NewTracker(log Log, runID string) *Tracker {
	return &Tracker{log: log, runID: runID, now: time.Now}
}

// Status returns an entity's status in a phase.
func (t *Tracker) Status(ctx context.Context, entityID string, p model.Phase) (model.PhaseStatus, error) {
	rec, err := t.log.Latest(ctx, entityID, p)
	if err != nil {
		return "", eris.Wrapf(err, "phase: status %s/%s", entityID, p)
	}
	if rec == nil {
		return model.PhaseNotStarted, nil
	}
	return rec.Status, nil
}

// Start moves an entity into running for phase p. The pointer must have
// reached the preceding phase and that phase's latest run must be complete,
// so a re-run that failed upstream blocks every later phase.
func (t *Tracker) Start(ctx context.Context, entityID string, p model.Phase) error {
	if Index(p) < 0 {
		return eris.Errorf("phase: unknown phase %q", p)
	}
	if err := t.requirePrevious(ctx, entityID, p); err != nil {
		return err
	}
	return t.begin(ctx, entityID, p, false)
}

// Retry re-enters running for a failed phase. The preceding phase must
// still be complete.
func (t *Tracker) Retry(ctx context.Context, entityID string, p model.Phase) error {
	if err := t.requirePrevious(ctx, entityID, p); err != nil {
		return err
	}
	return t.begin(ctx, entityID, p, true)
}

func (t *Tracker) requirePrevious(ctx context.Context, entityID string, p model.Phase) error {
	prev := Previous(p)
	if prev == "" {
		return nil
	}
	cur, err := t.log.Current(ctx, entityID)
	if err != nil {
		return eris.Wrapf(err, "phase: current phase for %s", entityID)
	}
	if Index(cur) < Index(prev) {
		return eris.Wrapf(ErrPhaseOrder, "phase: start %s for %s (current %q)", p, entityID, cur)
	}
	latest, err := t.log.Latest(ctx, entityID, prev)
	if err != nil {
		return eris.Wrapf(err, "phase: latest %s/%s", entityID, prev)
	}
	if latest == nil || latest.Status != model.PhaseComplete {
		st := model.PhaseNotStarted
		if latest != nil {
			st = latest.Status
		}
		return eris.Wrapf(ErrPhaseOrder, "phase: start %s for %s (%s is %s)", p, entityID, prev, st)
	}
	return nil
}

func (t *Tracker) begin(ctx context.Context, entityID string, p model.Phase, retry bool) error {
	latest, err := t.log.Latest(ctx, entityID, p)
	if err != nil {
		return eris.Wrapf(err, "phase: latest %s/%s", entityID, p)
	}
	from := model.PhaseNotStarted
	if latest != nil {
		from = latest.Status
	}

	allowed := CanTransition(from, model.PhaseRunning)
	if retry {
		allowed = from == model.PhaseFailed
	}
	if !allowed {
		return eris.Wrapf(ErrInvalidTransition, "phase: %s %s → running for %s", p, from, entityID)
	}

	rec := &model.PhaseRecord{
		EntityID:  entityID,
		Phase:     p,
		Status:    model.PhaseRunning,
		RunID:     t.runID,
		StartedAt: t.now().UTC(),
	}
	if err := t.log.Append(ctx, rec, nil); err != nil {
		return eris.Wrapf(err, "phase: append running %s/%s", entityID, p)
	}
	return nil
}

// Complete closes the running phase and advances the current-phase
// pointer when p is further along than it.
func (t *Tracker) Complete(ctx context.Context, entityID string, p model.Phase) error {
	running, err := t.running(ctx, entityID, p, model.PhaseComplete)
	if err != nil {
		return err
	}

	cur, err := t.log.Current(ctx, entityID)
	if err != nil {
		return eris.Wrapf(err, "phase: current phase for %s", entityID)
	}
	var pointer *model.Phase
	if Index(p) > Index(cur) {
		pointer = &p
	}

	rec := t.closed(running, model.PhaseComplete, "")
	if err := t.log.Append(ctx, rec, pointer); err != nil {
		return eris.Wrapf(err, "phase: append complete %s/%s", entityID, p)
	}
	zap.L().Debug("phase: complete",
		zap.String("entity_id", entityID),
		zap.String("phase", string(p)),
		zap.Duration("duration", rec.Duration),
	)
	return nil
}

// Fail closes the running phase with an error message. The pointer never
// advances; when a re-run of a phase the pointer already passed fails, the
// pointer drops back to the phase before it.
func (t *Tracker) Fail(ctx context.Context, entityID string, p model.Phase, reason string) error {
	running, err := t.running(ctx, entityID, p, model.PhaseFailed)
	if err != nil {
		return err
	}

	cur, err := t.log.Current(ctx, entityID)
	if err != nil {
		return eris.Wrapf(err, "phase: current phase for %s", entityID)
	}
	var pointer *model.Phase
	if Index(cur) >= Index(p) {
		prev := Previous(p)
		pointer = &prev
	}

	rec := t.closed(running, model.PhaseFailed, reason)
	if err := t.log.Append(ctx, rec, pointer); err != nil {
		return eris.Wrapf(err, "phase: append failed %s/%s", entityID, p)
	}
	return nil
}

// Reset returns phase p to not_started and moves the pointer back to the
// phase before p when the pointer had reached p or beyond.
func (t *Tracker) Reset(ctx context.Context, entityID string, p model.Phase, reason string) error {
	if Index(p) < 0 {
		return eris.Errorf("phase: unknown phase %q", p)
	}
	cur, err := t.log.Current(ctx, entityID)
	if err != nil {
		return eris.Wrapf(err, "phase: current phase for %s", entityID)
	}
	var pointer *model.Phase
	if Index(cur) >= Index(p) {
		prev := Previous(p)
		pointer = &prev
	}

	now := t.now().UTC()
	rec := &model.PhaseRecord{
		EntityID:  entityID,
		Phase:     p,
		Status:    model.PhaseNotStarted,
		RunID:     t.runID,
		StartedAt: now,
		EndedAt:   &now,
		Error:     reason,
	}
	if err := t.log.Append(ctx, rec, pointer); err != nil {
		return eris.Wrapf(err, "phase: append reset %s/%s", entityID, p)
	}
	zap.L().Info("phase: reset",
		zap.String("entity_id", entityID),
		zap.String("phase", string(p)),
		zap.String("current", string(cur)),
	)
	return nil
}

// Current returns the entity's last completed phase.
func (t *Tracker) Current(ctx context.Context, entityID string) (model.Phase, error) {
	cur, err := t.log.Current(ctx, entityID)
	if err != nil {
		return "", eris.Wrapf(err, "phase: current phase for %s", entityID)
	}
	return cur, nil
}

// History returns the entity's transition log, newest first.
func (t *Tracker) History(ctx context.Context, entityID string, limit int) ([]model.PhaseRecord, error) {
	recs, err := t.log.History(ctx, entityID, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "phase: history for %s", entityID)
	}
	return recs, nil
}

func (t *Tracker) running(ctx context.Context, entityID string, p model.Phase, to model.PhaseStatus) (*model.PhaseRecord, error) {
	latest, err := t.log.Latest(ctx, entityID, p)
	if err != nil {
		return nil, eris.Wrapf(err, "phase: latest %s/%s", entityID, p)
	}
	from := model.PhaseNotStarted
	if latest != nil {
		from = latest.Status
	}
	if !CanTransition(from, to) {
		return nil, eris.Wrapf(ErrInvalidTransition, "phase: %s %s → %s for %s", p, from, to, entityID)
	}
	return latest, nil
}

func (t *Tracker) closed(running *model.PhaseRecord, status model.PhaseStatus, reason string) *model.PhaseRecord {
	end := t.now().UTC()
	return &model.PhaseRecord{
		EntityID:  running.EntityID,
		Phase:     running.Phase,
		Status:    status,
		RunID:     t.runID,
		StartedAt: running.StartedAt,
		EndedAt:   &end,
		Duration:  end.Sub(running.StartedAt),
		Error:     reason,
	}
}
