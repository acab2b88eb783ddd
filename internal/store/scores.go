package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/db"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/readiness"
)

var scoreColumnList = []string{
	"entity_id", "entity_kind", "total", "contact_completeness", "data_richness",
	"seniority", "engagement", "segment", "signal_baseline", "engagement_tier",
	"weight_version", "scored_at",
}

const scoreColumns = `entity_id, entity_kind, total, contact_completeness, data_richness,
	seniority, engagement, segment, signal_baseline, engagement_tier, weight_version, scored_at`

func scoreRow(sc model.Score) []any {
	return []any{
		sc.EntityID, string(sc.EntityKind), sc.Total, sc.Breakdown.ContactCompleteness,
		sc.Breakdown.DataRichness, sc.Breakdown.Seniority, sc.Breakdown.Engagement,
		string(sc.Segment), sc.SignalBaseline, string(sc.EngagementTier), sc.WeightVersion, sc.ScoredAt,
	}
}

func scanScore(row scanner) (*model.Score, error) {
	var sc model.Score
	var kind, segment, tier string
	if err := row.Scan(&sc.EntityID, &kind, &sc.Total, &sc.Breakdown.ContactCompleteness,
		&sc.Breakdown.DataRichness, &sc.Breakdown.Seniority, &sc.Breakdown.Engagement,
		&segment, &sc.SignalBaseline, &tier, &sc.WeightVersion, &sc.ScoredAt); err != nil {
		return nil, err
	}
	sc.EntityKind = model.EntityKind(kind)
	sc.Segment = model.Segment(segment)
	sc.EngagementTier = model.EngagementTier(tier)
	return &sc, nil
}

// SaveScores upserts the latest score per entity and appends every score
// to score_history with COPY.
func (s *PostgresStore) SaveScores(ctx context.Context, scores []model.Score) error {
	if len(scores) == 0 {
		return nil
	}
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		rows := make([][]any, len(scores))
		for i, sc := range scores {
			if sc.ScoredAt.IsZero() {
				sc.ScoredAt = time.Now().UTC()
			}
			rows[i] = scoreRow(sc)
			if _, err := tx.Exec(ctx,
				`INSERT INTO scores (`+scoreColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
				ON CONFLICT (entity_id) DO UPDATE SET
					entity_kind = EXCLUDED.entity_kind, total = EXCLUDED.total,
					contact_completeness = EXCLUDED.contact_completeness,
					data_richness = EXCLUDED.data_richness, seniority = EXCLUDED.seniority,
					engagement = EXCLUDED.engagement, segment = EXCLUDED.segment,
					signal_baseline = EXCLUDED.signal_baseline,
					engagement_tier = EXCLUDED.engagement_tier,
					weight_version = EXCLUDED.weight_version, scored_at = EXCLUDED.scored_at`,
				rows[i]...,
			); err != nil {
				return eris.Wrapf(err, "postgres: upsert score %s", sc.EntityID)
			}
		}
		_, err := db.CopyFrom(ctx, tx, "score_history", scoreColumnList, rows)
		return err
	})
}

// LatestScore returns the current score for an entity, or nil.
func (s *PostgresStore) LatestScore(ctx context.Context, entityID string) (*model.Score, error) {
	sc, err := scanScore(s.pool.QueryRow(ctx,
		`SELECT `+scoreColumns+` FROM scores WHERE entity_id = $1`, entityID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get score %s", entityID)
	}
	return sc, nil
}

// ScoreTrend returns the most recent historical scores, newest first.
func (s *PostgresStore) ScoreTrend(ctx context.Context, entityID string, limit int) ([]model.Score, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+scoreColumns+` FROM score_history WHERE entity_id = $1 ORDER BY scored_at DESC LIMIT $2`,
		entityID, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: score trend %s", entityID)
	}
	defer rows.Close()

	var out []model.Score
	for rows.Next() {
		sc, err := scanScore(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan score")
		}
		out = append(out, *sc)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate score trend")
}

// SaveReadiness upserts the latest readiness verdict for a company.
func (s *PostgresStore) SaveReadiness(ctx context.Context, r *readiness.Result) error {
	slots, err := json.Marshal(r.Slots)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal readiness slots")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO company_readiness (company_id, ready, reason, passed_checks, total_checks, slots, evaluated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (company_id) DO UPDATE SET
			ready = EXCLUDED.ready, reason = EXCLUDED.reason,
			passed_checks = EXCLUDED.passed_checks, total_checks = EXCLUDED.total_checks,
			slots = EXCLUDED.slots, evaluated_at = EXCLUDED.evaluated_at`,
		r.CompanyID, r.Ready, r.Reason, r.PassedChecks, r.TotalChecks, slots, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save readiness %s", r.CompanyID)
}
