package signals

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/db"
	"github.com/sells-group/outreach-cli/internal/model"
)

// optimizerLockKey is the pg advisory lock id held while a weight set is
// being activated.
const optimizerLockKey int64 = 0x5167_7e16

var weightColumns = []string{
	"version", "signal", "category", "weight",
	"events", "conversions", "avg_deal_value", "last_optimized_at",
}

// PostgresStore implements Store using pgx.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// ActiveWeightSet returns the active set, or nil if none exists.
func (s *PostgresStore) ActiveWeightSet(ctx context.Context) (*model.WeightSet, error) {
	var version int
	err := s.pool.QueryRow(ctx,
		`SELECT version FROM signal_weight_sets WHERE active ORDER BY version DESC LIMIT 1`,
	).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "signals: get active version")
	}
	return s.WeightSet(ctx, version)
}

// WeightSet returns one version with its weights, or nil if not found.
func (s *PostgresStore) WeightSet(ctx context.Context, version int) (*model.WeightSet, error) {
	ws := &model.WeightSet{}
	err := s.pool.QueryRow(ctx,
		`SELECT version, active, reason, created_at FROM signal_weight_sets WHERE version = $1`,
		version,
	).Scan(&ws.Version, &ws.Active, &ws.Reason, &ws.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "signals: get weight set %d", version)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT signal, category, weight, events, conversions, avg_deal_value, last_optimized_at
		FROM signal_weights WHERE version = $1 ORDER BY signal`,
		version,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "signals: list weights for version %d", version)
	}
	defer rows.Close()

	for rows.Next() {
		var w model.SignalWeight
		var category string
		if err := rows.Scan(&w.Signal, &category, &w.Weight, &w.Events, &w.Conversions, &w.AvgDealValue, &w.LastOptimizedAt); err != nil {
			return nil, eris.Wrap(err, "signals: scan weight")
		}
		w.Category = model.SignalCategory(category)
		ws.Weights = append(ws.Weights, w)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "signals: iterate weights")
	}
	return ws, nil
}

// ListWeightSets returns version headers, newest first. Weights are not
// loaded.
func (s *PostgresStore) ListWeightSets(ctx context.Context, limit int) ([]model.WeightSet, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT version, active, reason, created_at FROM signal_weight_sets ORDER BY version DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "signals: list weight sets")
	}
	defer rows.Close()

	var out []model.WeightSet
	for rows.Next() {
		var ws model.WeightSet
		if err := rows.Scan(&ws.Version, &ws.Active, &ws.Reason, &ws.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "signals: scan weight set")
		}
		out = append(out, ws)
	}
	return out, eris.Wrap(rows.Err(), "signals: iterate weight sets")
}

// SignalStats aggregates events and closed-won conversions since the
// given time.
func (s *PostgresStore) SignalStats(ctx context.Context, since time.Time) (map[string]Stat, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT signal,
			COUNT(*),
			COUNT(*) FILTER (WHERE closed_won),
			COALESCE(AVG(deal_value) FILTER (WHERE closed_won), 0)
		FROM signal_events
		WHERE occurred_at >= $1
		GROUP BY signal`,
		since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "signals: query stats")
	}
	defer rows.Close()

	stats := make(map[string]Stat)
	for rows.Next() {
		var name string
		var st Stat
		if err := rows.Scan(&name, &st.Events, &st.Conversions, &st.AvgDealValue); err != nil {
			return nil, eris.Wrap(err, "signals: scan stat")
		}
		stats[name] = st
	}
	return stats, eris.Wrap(rows.Err(), "signals: iterate stats")
}

// EventCounts returns per-signal event counts for one entity.
func (s *PostgresStore) EventCounts(ctx context.Context, entityID string) (map[string]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT signal, COUNT(*) FROM signal_events WHERE entity_id = $1 GROUP BY signal`,
		entityID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "signals: event counts for %s", entityID)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, eris.Wrap(err, "signals: scan event count")
		}
		counts[name] = n
	}
	return counts, eris.Wrap(rows.Err(), "signals: iterate event counts")
}

// ActivateWeightSet writes ws as the next version inside one transaction
// guarded by an advisory lock and a check that prevVersion is still active.
func (s *PostgresStore) ActivateWeightSet(ctx context.Context, prevVersion int, ws *model.WeightSet) (int, error) {
	var version int
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := tryLock(ctx, tx); err != nil {
			return err
		}

		var current int
		if err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(version) FILTER (WHERE active), 0) FROM signal_weight_sets`,
		).Scan(&current); err != nil {
			return eris.Wrap(err, "signals: read active version")
		}
		if current != prevVersion {
			return ErrVersionConflict
		}

		if _, err := tx.Exec(ctx, `UPDATE signal_weight_sets SET active = false WHERE active`); err != nil {
			return eris.Wrap(err, "signals: deactivate weight set")
		}

		if err := tx.QueryRow(ctx, `
			INSERT INTO signal_weight_sets (version, active, reason, created_at)
			SELECT COALESCE(MAX(version), 0) + 1, true, $1, $2 FROM signal_weight_sets
			RETURNING version`,
			ws.Reason, ws.CreatedAt,
		).Scan(&version); err != nil {
			return eris.Wrap(err, "signals: insert weight set")
		}

		rows := make([][]any, len(ws.Weights))
		for i, w := range ws.Weights {
			rows[i] = []any{
				version, w.Signal, string(w.Category), w.Weight,
				w.Events, w.Conversions, w.AvgDealValue, w.LastOptimizedAt,
			}
		}
		_, err := db.CopyFrom(ctx, tx, "signal_weights", weightColumns, rows)
		return err
	})
	if err != nil {
		return 0, err
	}
	ws.Version = version
	return version, nil
}

// ReactivateWeightSet flips the active flag to an existing version.
func (s *PostgresStore) ReactivateWeightSet(ctx context.Context, version int) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := tryLock(ctx, tx); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE signal_weight_sets SET active = false WHERE active`); err != nil {
			return eris.Wrap(err, "signals: deactivate weight set")
		}
		tag, err := tx.Exec(ctx, `UPDATE signal_weight_sets SET active = true WHERE version = $1`, version)
		if err != nil {
			return eris.Wrapf(err, "signals: activate version %d", version)
		}
		if tag.RowsAffected() == 0 {
			return eris.Errorf("signals: weight set %d not found", version)
		}
		return nil
	})
}

func tryLock(ctx context.Context, tx pgx.Tx) error {
	var locked bool
	if err := tx.QueryRow(ctx, `SELECT pg_try_advisory_xact_lock($1)`, optimizerLockKey).Scan(&locked); err != nil {
		return eris.Wrap(err, "signals: advisory lock")
	}
	if !locked {
		return ErrOptimizerBusy
	}
	return nil
}
