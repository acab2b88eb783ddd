package phase

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/db"
	"github.com/sells-group/outreach-cli/internal/model"
)

const recordColumns = `id, entity_id, phase, status, run_id, started_at, ended_at, duration_ms, error`

// PostgresLog implements Log on the phase_log and entity_phase tables.
type PostgresLog struct {
	pool db.Pool
}

// NewPostgresLog creates a new PostgresLog.
func NewPostgresLog(pool db.Pool) *PostgresLog {
	return &PostgresLog{pool: pool}
}

// Append inserts rec and moves the pointer in one transaction.
func (l *PostgresLog) Append(ctx context.Context, rec *model.PhaseRecord, pointer *model.Phase) error {
	return db.WithTx(ctx, l.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO phase_log (entity_id, phase, status, run_id, started_at, ended_at, duration_ms, error)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
			rec.EntityID, string(rec.Phase), string(rec.Status), rec.RunID,
			rec.StartedAt, rec.EndedAt, rec.Duration.Milliseconds(), rec.Error,
		).Scan(&rec.ID)
		if err != nil {
			return eris.Wrapf(err, "phase: insert log row for %s", rec.EntityID)
		}

		if pointer == nil {
			return nil
		}
		if *pointer == "" {
			_, err = tx.Exec(ctx, `DELETE FROM entity_phase WHERE entity_id = $1`, rec.EntityID)
			return eris.Wrapf(err, "phase: clear pointer for %s", rec.EntityID)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO entity_phase (entity_id, phase, updated_at) VALUES ($1, $2, $3)
			ON CONFLICT (entity_id) DO UPDATE SET phase = EXCLUDED.phase, updated_at = EXCLUDED.updated_at`,
			rec.EntityID, string(*pointer), time.Now().UTC(),
		)
		return eris.Wrapf(err, "phase: set pointer for %s", rec.EntityID)
	})
}

// Latest returns the newest record for entity and phase, or nil.
func (l *PostgresLog) Latest(ctx context.Context, entityID string, p model.Phase) (*model.PhaseRecord, error) {
	row := l.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM phase_log
		WHERE entity_id = $1 AND phase = $2 ORDER BY id DESC LIMIT 1`,
		entityID, string(p),
	)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "phase: latest %s/%s", entityID, p)
	}
	return rec, nil
}

// History returns an entity's records, newest first.
func (l *PostgresLog) History(ctx context.Context, entityID string, limit int) ([]model.PhaseRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.pool.Query(ctx,
		`SELECT `+recordColumns+` FROM phase_log WHERE entity_id = $1 ORDER BY id DESC LIMIT $2`,
		entityID, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "phase: history for %s", entityID)
	}
	defer rows.Close()

	var out []model.PhaseRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "phase: scan record")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "phase: iterate history")
}

// Current returns the entity's pointer, or "" when unset.
func (l *PostgresLog) Current(ctx context.Context, entityID string) (model.Phase, error) {
	var p string
	err := l.pool.QueryRow(ctx,
		`SELECT phase FROM entity_phase WHERE entity_id = $1`, entityID,
	).Scan(&p)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "phase: pointer for %s", entityID)
	}
	return model.Phase(p), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*model.PhaseRecord, error) {
	var rec model.PhaseRecord
	var p, status string
	var durationMs int64
	if err := row.Scan(&rec.ID, &rec.EntityID, &p, &status, &rec.RunID,
		&rec.StartedAt, &rec.EndedAt, &durationMs, &rec.Error); err != nil {
		return nil, err
	}
	rec.Phase = model.Phase(p)
	rec.Status = model.PhaseStatus(status)
	rec.Duration = time.Duration(durationMs) * time.Millisecond
	return &rec, nil
}
