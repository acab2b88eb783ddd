package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/db"
	"github.com/sells-group/outreach-cli/internal/model"
)

var failureColumns = []string{
	"entity_id", "entity_kind", "run_id", "field", "rule", "message",
	"severity", "value", "status", "created_at",
}

// ReplaceFailures swaps an entity's pending failures for the given set.
// Resolved and escalated rows are kept, so re-validating the same record
// never duplicates open failures.
func (s *PostgresStore) ReplaceFailures(ctx context.Context, entityID string, failures []model.ValidationFailure) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM validation_failures WHERE entity_id = $1 AND status = 'pending'`, entityID,
		); err != nil {
			return eris.Wrapf(err, "postgres: clear failures for %s", entityID)
		}

		now := time.Now().UTC()
		rows := make([][]any, len(failures))
		for i, f := range failures {
			created := f.CreatedAt
			if created.IsZero() {
				created = now
			}
			rows[i] = []any{
				entityID, string(f.EntityKind), f.RunID, f.Field, string(f.Rule), f.Message,
				string(f.Severity), f.Value, string(model.FailurePending), created,
			}
		}
		_, err := db.CopyFrom(ctx, tx, "validation_failures", failureColumns, rows)
		return err
	})
}

// ListFailures returns validation failures, newest first.
func (s *PostgresStore) ListFailures(ctx context.Context, filter FailureFilter) ([]model.ValidationFailure, error) {
	query := `SELECT id, entity_id, entity_kind, run_id, field, rule, message, severity, value,
		fixed_value, status, created_at, resolved_at FROM validation_failures WHERE true`
	args := []any{}
	argIdx := 1

	if filter.EntityID != "" {
		query += fmt.Sprintf(` AND entity_id = $%d`, argIdx)
		args = append(args, filter.EntityID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` ORDER BY id DESC LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list failures")
	}
	defer rows.Close()

	var out []model.ValidationFailure
	for rows.Next() {
		var f model.ValidationFailure
		var kind, rule, severity, status string
		if err := rows.Scan(&f.ID, &f.EntityID, &kind, &f.RunID, &f.Field, &rule, &f.Message,
			&severity, &f.Value, &f.FixedValue, &status, &f.CreatedAt, &f.ResolvedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan failure")
		}
		f.EntityKind = model.EntityKind(kind)
		f.Rule = model.RuleKind(rule)
		f.Severity = model.Severity(severity)
		f.Status = model.FailureStatus(status)
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate failures")
}

// ResolveFailure marks a pending or escalated failure as resolved with the
// value that fixed it.
func (s *PostgresStore) ResolveFailure(ctx context.Context, id int64, fixedValue string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE validation_failures SET status = 'resolved', fixed_value = $2, resolved_at = $3
		WHERE id = $1 AND status <> 'resolved'`,
		id, fixedValue, time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: resolve failure %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("open failure not found: %d", id)
	}
	return nil
}

// EscalateFailure flags a pending failure for manual review.
func (s *PostgresStore) EscalateFailure(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE validation_failures SET status = 'escalated' WHERE id = $1 AND status = 'pending'`,
		id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: escalate failure %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("pending failure not found: %d", id)
	}
	return nil
}

// SaveFallout stores an unresolved match and assigns its id.
func (s *PostgresStore) SaveFallout(ctx context.Context, f *model.Fallout) error {
	attempts, err := json.Marshal(f.Attempts)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal fallout attempts")
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	err = s.pool.QueryRow(ctx,
		`INSERT INTO match_fallout (run_id, entity_kind, input_name, input_key, best_candidate,
			best_confidence, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		f.RunID, string(f.Kind), f.InputName, f.InputKey, f.BestCandidate,
		f.BestConfidence, attempts, f.CreatedAt,
	).Scan(&f.ID)
	return eris.Wrap(err, "postgres: insert fallout")
}

// ListFallout returns fallout rows for a run (or all runs when runID is
// empty), newest first.
func (s *PostgresStore) ListFallout(ctx context.Context, runID string, limit int) ([]model.Fallout, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, run_id, entity_kind, input_name, input_key, best_candidate, best_confidence,
			attempts, created_at
		FROM match_fallout WHERE ($1 = '' OR run_id = $1) ORDER BY id DESC LIMIT $2`,
		runID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list fallout")
	}
	defer rows.Close()

	var out []model.Fallout
	for rows.Next() {
		var f model.Fallout
		var kind string
		var attempts []byte
		if err := rows.Scan(&f.ID, &f.RunID, &kind, &f.InputName, &f.InputKey, &f.BestCandidate,
			&f.BestConfidence, &attempts, &f.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan fallout")
		}
		f.Kind = model.EntityKind(kind)
		if len(attempts) > 0 {
			if err := json.Unmarshal(attempts, &f.Attempts); err != nil {
				return nil, eris.Wrapf(err, "postgres: unmarshal fallout %d", f.ID)
			}
		}
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate fallout")
}
