package signals

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
)

var (
	// ErrVersionConflict means another writer activated a weight set after
	// this run read the active version.
	ErrVersionConflict = errors.New("signals: active weight set changed concurrently")
	// ErrOptimizerBusy means another optimizer holds the advisory lock.
	ErrOptimizerBusy = errors.New("signals: optimizer already running")
	// ErrNoActiveSet means no weight set has been seeded yet.
	ErrNoActiveSet = errors.New("signals: no active weight set")
)

// Store persists versioned weight sets and windowed signal stats.
type Store interface {
	ActiveWeightSet(ctx context.Context) (*model.WeightSet, error)
	WeightSet(ctx context.Context, version int) (*model.WeightSet, error)
	ListWeightSets(ctx context.Context, limit int) ([]model.WeightSet, error)
	SignalStats(ctx context.Context, since time.Time) (map[string]Stat, error)
	// ActivateWeightSet inserts ws as a new active version if the active
	// version is still prevVersion, deactivating the previous set.
	ActivateWeightSet(ctx context.Context, prevVersion int, ws *model.WeightSet) (int, error)
	// ReactivateWeightSet makes an existing version active again.
	ReactivateWeightSet(ctx context.Context, version int) error
}

// Report summarizes one optimizer run.
type Report struct {
	PreviousVersion int          `json:"previous_version"`
	NewVersion      int          `json:"new_version"`
	Changed         int          `json:"changed"`
	Skipped         int          `json:"skipped"`
	Adjustments     []Adjustment `json:"adjustments"`
}

// Optimizer recomputes signal weights from conversion outcomes.
type Optimizer struct {
	store Store
	cfg   Config
	now   func() time.Time
}

// NewOptimizer creates an optimizer. Zero config values take defaults.
func NewOptimizer(store Store, cfg Config) *Optimizer {
	def := DefaultConfig()
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = def.LookbackDays
	}
	if cfg.MinSampleSize <= 0 {
		cfg.MinSampleSize = def.MinSampleSize
	}
	if cfg.FundingDealThreshold <= 0 {
		cfg.FundingDealThreshold = def.FundingDealThreshold
	}
	if cfg.EngagementVolumeThreshold <= 0 {
		cfg.EngagementVolumeThreshold = def.EngagementVolumeThreshold
	}
	return &Optimizer{store: store, cfg: cfg, now: time.Now}
}

// Optimize recomputes weights over the lookback window and activates a new
// weight set version. When no weight changes, nothing is written and
// NewVersion equals PreviousVersion.
func (o *Optimizer) Optimize(ctx context.Context) (*Report, error) {
	log := zap.L().With(zap.String("phase", "optimize"))

	active, err := o.store.ActiveWeightSet(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "signals: load active weight set")
	}
	if active == nil {
		return nil, ErrNoActiveSet
	}

	since := o.now().AddDate(0, 0, -o.cfg.LookbackDays)
	stats, err := o.store.SignalStats(ctx, since)
	if err != nil {
		return nil, eris.Wrap(err, "signals: load stats")
	}

	report := &Report{
		PreviousVersion: active.Version,
		NewVersion:      active.Version,
		Adjustments:     Plan(active.Weights, stats, o.cfg),
	}

	now := o.now().UTC()
	next := &model.WeightSet{Active: true, Reason: "optimize", CreatedAt: now}
	for i, adj := range report.Adjustments {
		w := active.Weights[i]
		st := stats[w.Signal]
		w.Events, w.Conversions, w.AvgDealValue = st.Events, st.Conversions, st.AvgDealValue
		if adj.Skipped {
			report.Skipped++
		} else {
			w.Weight = adj.NewWeight
			w.LastOptimizedAt = &now
			if adj.NewWeight != adj.OldWeight {
				report.Changed++
			}
		}
		next.Weights = append(next.Weights, w)
	}

	if report.Changed == 0 {
		log.Info("signals: no weight changes",
			zap.Int("version", active.Version),
			zap.Int("skipped", report.Skipped),
		)
		return report, nil
	}

	version, err := o.store.ActivateWeightSet(ctx, active.Version, next)
	if err != nil {
		if errors.Is(err, ErrVersionConflict) || errors.Is(err, ErrOptimizerBusy) {
			return nil, err
		}
		return nil, eris.Wrap(err, "signals: activate weight set")
	}
	report.NewVersion = version

	log.Info("signals: weight set activated",
		zap.Int("previous_version", active.Version),
		zap.Int("version", version),
		zap.Int("changed", report.Changed),
		zap.Int("skipped", report.Skipped),
	)
	return report, nil
}

// Seed activates weights as the first version. It is a no-op when a set is
// already active.
func (o *Optimizer) Seed(ctx context.Context, weights []model.SignalWeight) (int, error) {
	active, err := o.store.ActiveWeightSet(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "signals: load active weight set")
	}
	if active != nil {
		return active.Version, nil
	}
	ws := &model.WeightSet{Active: true, Reason: "seed", CreatedAt: o.now().UTC(), Weights: weights}
	version, err := o.store.ActivateWeightSet(ctx, 0, ws)
	if err != nil {
		return 0, eris.Wrap(err, "signals: seed weight set")
	}
	return version, nil
}

// Rollback re-activates a prior weight set version.
func (o *Optimizer) Rollback(ctx context.Context, version int) (*model.WeightSet, error) {
	ws, err := o.store.WeightSet(ctx, version)
	if err != nil {
		return nil, eris.Wrapf(err, "signals: load weight set %d", version)
	}
	if ws == nil {
		return nil, eris.Errorf("signals: weight set %d not found", version)
	}
	if err := o.store.ReactivateWeightSet(ctx, version); err != nil {
		return nil, eris.Wrapf(err, "signals: reactivate weight set %d", version)
	}
	ws.Active = true

	zap.L().Info("signals: rolled back weight set", zap.Int("version", version))
	return ws, nil
}

// History returns recent weight set versions, newest first.
func (o *Optimizer) History(ctx context.Context, limit int) ([]model.WeightSet, error) {
	sets, err := o.store.ListWeightSets(ctx, limit)
	if err != nil {
		return nil, eris.Wrap(err, "signals: list weight sets")
	}
	return sets, nil
}
