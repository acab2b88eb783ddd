package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/model"
)

// EnrichmentAttempts returns every enrichment attempt for the given
// people, newest first within each person.
func (s *PostgresStore) EnrichmentAttempts(ctx context.Context, personIDs []string) (map[string][]model.Enrichment, error) {
	out := make(map[string][]model.Enrichment, len(personIDs))
	if len(personIDs) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT person_id, status, provider, fields, attempted_at
		FROM enrichment_attempts WHERE person_id = ANY($1)
		ORDER BY person_id, attempted_at DESC`,
		personIDs,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: enrichment attempts")
	}
	defer rows.Close()

	for rows.Next() {
		var e model.Enrichment
		var status string
		var fieldsJSON []byte
		if err := rows.Scan(&e.PersonID, &status, &e.Provider, &fieldsJSON, &e.AttemptedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan enrichment")
		}
		e.Status = model.EnrichmentStatus(status)
		if len(fieldsJSON) > 0 {
			if err := json.Unmarshal(fieldsJSON, &e.Fields); err != nil {
				return nil, eris.Wrapf(err, "postgres: unmarshal enrichment fields for %s", e.PersonID)
			}
		}
		out[e.PersonID] = append(out[e.PersonID], e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate enrichments")
}

// VerificationAttempts returns every email verification attempt for the
// given people, newest first within each person.
func (s *PostgresStore) VerificationAttempts(ctx context.Context, personIDs []string) (map[string][]model.Verification, error) {
	out := make(map[string][]model.Verification, len(personIDs))
	if len(personIDs) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT person_id, email, status, attempted_at
		FROM email_verifications WHERE person_id = ANY($1)
		ORDER BY person_id, attempted_at DESC`,
		personIDs,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: verification attempts")
	}
	defer rows.Close()

	for rows.Next() {
		var v model.Verification
		var status string
		if err := rows.Scan(&v.PersonID, &v.Email, &status, &v.AttemptedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan verification")
		}
		v.Status = model.VerificationStatus(status)
		out[v.PersonID] = append(out[v.PersonID], v)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate verifications")
}

// RecordEnrichment appends an enrichment attempt.
func (s *PostgresStore) RecordEnrichment(ctx context.Context, e *model.Enrichment) error {
	if e.AttemptedAt.IsZero() {
		e.AttemptedAt = time.Now().UTC()
	}
	var fieldsJSON []byte
	if e.Fields != nil {
		var err error
		fieldsJSON, err = json.Marshal(e.Fields)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal enrichment fields")
		}
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO enrichment_attempts (person_id, status, provider, fields, attempted_at)
		VALUES ($1, $2, $3, $4, $5)`,
		e.PersonID, string(e.Status), e.Provider, fieldsJSON, e.AttemptedAt,
	)
	return eris.Wrapf(err, "postgres: record enrichment for %s", e.PersonID)
}

// RecordVerification appends an email verification attempt.
func (s *PostgresStore) RecordVerification(ctx context.Context, v *model.Verification) error {
	if v.AttemptedAt.IsZero() {
		v.AttemptedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO email_verifications (person_id, email, status, attempted_at)
		VALUES ($1, $2, $3, $4)`,
		v.PersonID, v.Email, string(v.Status), v.AttemptedAt,
	)
	return eris.Wrapf(err, "postgres: record verification for %s", v.PersonID)
}
