package phase

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/outreach-cli/internal/model"
)

// SQLiteLog implements Log using modernc.org/sqlite. It backs local runs
// when store.driver is sqlite.
type SQLiteLog struct {
	db *sql.DB
}

// NewSQLiteLog opens a SQLite database at the given path and configures WAL mode.
func NewSQLiteLog(dsn string) (*SQLiteLog, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteLog{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS phase_log (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	entity_id   TEXT NOT NULL,
	phase       TEXT NOT NULL,
	status      TEXT NOT NULL,
	run_id      TEXT NOT NULL DEFAULT '',
	started_at  DATETIME NOT NULL,
	ended_at    DATETIME,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS entity_phase (
	entity_id  TEXT PRIMARY KEY,
	phase      TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_phase_log_entity ON phase_log(entity_id, phase);
`

// Migrate creates the phase tables.
func (l *SQLiteLog) Migrate(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (l *SQLiteLog) Close() error {
	return l.db.Close()
}

func (l *SQLiteLog) Append(ctx context.Context, rec *model.PhaseRecord, pointer *model.Phase) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var ended any
	if rec.EndedAt != nil {
		ended = *rec.EndedAt
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO phase_log (entity_id, phase, status, run_id, started_at, ended_at, duration_ms, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.EntityID, string(rec.Phase), string(rec.Status), rec.RunID,
		rec.StartedAt, ended, rec.Duration.Milliseconds(), rec.Error,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert phase log for %s", rec.EntityID)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return eris.Wrap(err, "sqlite: last insert id")
	}

	if pointer != nil {
		if *pointer == "" {
			_, err = tx.ExecContext(ctx, `DELETE FROM entity_phase WHERE entity_id = ?`, rec.EntityID)
		} else {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO entity_phase (entity_id, phase, updated_at) VALUES (?, ?, ?)
				ON CONFLICT (entity_id) DO UPDATE SET phase = excluded.phase, updated_at = excluded.updated_at`,
				rec.EntityID, string(*pointer), time.Now().UTC(),
			)
		}
		if err != nil {
			return eris.Wrapf(err, "sqlite: set pointer for %s", rec.EntityID)
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: commit")
	}
	rec.ID = id
	return nil
}

func (l *SQLiteLog) Latest(ctx context.Context, entityID string, p model.Phase) (*model.PhaseRecord, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM phase_log
		WHERE entity_id = ? AND phase = ? ORDER BY id DESC LIMIT 1`,
		entityID, string(p),
	)
	rec, err := scanSQLiteRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: latest %s/%s", entityID, p)
	}
	return rec, nil
}

func (l *SQLiteLog) History(ctx context.Context, entityID string, limit int) ([]model.PhaseRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM phase_log WHERE entity_id = ? ORDER BY id DESC LIMIT ?`,
		entityID, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: history for %s", entityID)
	}
	defer rows.Close()

	var out []model.PhaseRecord
	for rows.Next() {
		rec, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan phase record")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: history iterate")
}

func (l *SQLiteLog) Current(ctx context.Context, entityID string) (model.Phase, error) {
	var p string
	err := l.db.QueryRowContext(ctx,
		`SELECT phase FROM entity_phase WHERE entity_id = ?`, entityID,
	).Scan(&p)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: pointer for %s", entityID)
	}
	return model.Phase(p), nil
}

func scanSQLiteRecord(row scanner) (*model.PhaseRecord, error) {
	var rec model.PhaseRecord
	var p, status string
	var ended sql.NullTime
	var durationMs int64
	if err := row.Scan(&rec.ID, &rec.EntityID, &p, &status, &rec.RunID,
		&rec.StartedAt, &ended, &durationMs, &rec.Error); err != nil {
		return nil, err
	}
	rec.Phase = model.Phase(p)
	rec.Status = model.PhaseStatus(status)
	rec.Duration = time.Duration(durationMs) * time.Millisecond
	if ended.Valid {
		t := ended.Time
		rec.EndedAt = &t
	}
	return &rec, nil
}
