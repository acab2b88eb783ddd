package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/db"
	"github.com/sells-group/outreach-cli/internal/model"
)

const personColumns = `id, company_id, company_domain, first_name, last_name, full_name, title,
	seniority, department, email, phone, linkedin_url, location, industry, employee_count,
	status, locked_fields, created_at, updated_at`

func scanPerson(row scanner) (*model.Person, error) {
	var p model.Person
	var status string
	if err := row.Scan(&p.ID, &p.CompanyID, &p.CompanyDomain, &p.FirstName, &p.LastName, &p.FullName,
		&p.Title, &p.Seniority, &p.Department, &p.Email, &p.Phone, &p.LinkedInURL, &p.Location,
		&p.Industry, &p.EmployeeCount, &status, &p.LockedFields, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Status = model.Status(status)
	return &p, nil
}

func collectPeople(rows pgx.Rows) ([]model.Person, error) {
	defer rows.Close()
	var out []model.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan person")
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate people")
}

// GetPerson returns a person by id, or nil if it does not exist.
func (s *PostgresStore) GetPerson(ctx context.Context, id string) (*model.Person, error) {
	p, err := scanPerson(s.pool.QueryRow(ctx,
		`SELECT `+personColumns+` FROM people WHERE id = $1`, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get person %s", id)
	}
	return p, nil
}

// ListPeople returns people matching filter ordered by id.
func (s *PostgresStore) ListPeople(ctx context.Context, filter PersonFilter) ([]model.Person, error) {
	query := `SELECT ` + personColumns + ` FROM people WHERE true`
	args := []any{}
	argIdx := 1

	if filter.CompanyID != "" {
		query += fmt.Sprintf(` AND company_id = $%d`, argIdx)
		args = append(args, filter.CompanyID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.AfterID != "" {
		query += fmt.Sprintf(` AND id > $%d`, argIdx)
		args = append(args, filter.AfterID)
		argIdx++
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` ORDER BY id LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list people")
	}
	return collectPeople(rows)
}

// PeopleByIDs loads people keyed by id. Missing ids are absent from the map.
func (s *PostgresStore) PeopleByIDs(ctx context.Context, ids []string) (map[string]*model.Person, error) {
	out := make(map[string]*model.Person, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+personColumns+` FROM people WHERE id = ANY($1)`, ids,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: people by ids")
	}
	people, err := collectPeople(rows)
	if err != nil {
		return nil, err
	}
	for i := range people {
		out[people[i].ID] = &people[i]
	}
	return out, nil
}

// SetPersonStatus records the validation outcome on a person.
func (s *PostgresStore) SetPersonStatus(ctx context.Context, id string, status model.Status) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE people SET status = $2, updated_at = $3 WHERE id = $1`,
		id, string(status), time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set person status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("person not found: %s", id)
	}
	return nil
}

// PersonCandidates returns people sharing the LinkedIn URL, email or
// company domain of p. LinkedIn and email hits sort ahead of domain
// neighbours so the limit never drops an exact match; neighbours follow by
// name similarity.
func (s *PostgresStore) PersonCandidates(ctx context.Context, p model.Person, limit int) ([]model.Person, error) {
	if limit <= 0 {
		limit = 10
	}
	name := p.FullName
	if name == "" {
		name = strings.TrimSpace(p.FirstName + " " + p.LastName)
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+personColumns+` FROM people
		WHERE ($1 <> '' AND linkedin_url = $1)
			OR ($2 <> '' AND lower(email) = lower($2))
			OR ($3 <> '' AND company_domain = $3)
		ORDER BY ($1 <> '' AND linkedin_url = $1) DESC,
			($2 <> '' AND lower(email) = lower($2)) DESC,
			similarity(full_name, $4) DESC, id
		LIMIT $5`,
		p.LinkedInURL, p.Email, p.CompanyDomain, name, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: person candidates")
	}
	return collectPeople(rows)
}

// CreatePerson inserts a new person.
func (s *PostgresStore) CreatePerson(ctx context.Context, p *model.Person) error {
	now := time.Now().UTC()
	if p.LockedFields == nil {
		p.LockedFields = []string{}
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO people (id, company_id, company_domain, first_name, last_name, full_name, title,
			seniority, department, email, phone, linkedin_url, location, industry, employee_count,
			status, locked_fields, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $18)`,
		p.ID, p.CompanyID, p.CompanyDomain, p.FirstName, p.LastName, p.FullName, p.Title,
		p.Seniority, p.Department, p.Email, p.Phone, p.LinkedInURL, p.Location, p.Industry,
		p.EmployeeCount, string(p.Status), p.LockedFields, now,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert person %s", p.ID)
	}
	p.CreatedAt, p.UpdatedAt = now, now
	return nil
}

// UpdatePersonFields locks the row, diffs requested against the current
// values and writes only fields that changed and are not locked.
func (s *PostgresStore) UpdatePersonFields(ctx context.Context, id string, requested map[string]string) (model.UpdatePlan, error) {
	var plan model.UpdatePlan
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		p, err := scanPerson(tx.QueryRow(ctx,
			`SELECT `+personColumns+` FROM people WHERE id = $1 FOR UPDATE`, id,
		))
		if errors.Is(err, pgx.ErrNoRows) {
			return eris.Errorf("person not found: %s", id)
		}
		if err != nil {
			return eris.Wrapf(err, "postgres: lock person %s", id)
		}

		plan = model.ApplyUpdate(p.Fields(), requested, p.LockedFields)
		if len(plan.Changed) == 0 {
			return nil
		}
		for _, k := range plan.Changed {
			p.SetField(k, plan.Next[k])
		}

		_, err = tx.Exec(ctx,
			`UPDATE people SET first_name = $2, last_name = $3, full_name = $4, title = $5,
				seniority = $6, department = $7, email = $8, phone = $9, linkedin_url = $10,
				location = $11, updated_at = $12
			WHERE id = $1`,
			id, p.FirstName, p.LastName, p.FullName, p.Title, p.Seniority, p.Department,
			p.Email, p.Phone, p.LinkedInURL, p.Location, time.Now().UTC(),
		)
		return eris.Wrapf(err, "postgres: update person %s", id)
	})
	return plan, err
}
