package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/db"
	"github.com/sells-group/outreach-cli/internal/model"
)

const companyColumns = `id, name, domain, website, employee_count, linkedin_url, industry,
	phone, email, location, status, locked_fields, created_at, updated_at`

func scanCompany(row scanner) (*model.Company, error) {
	var c model.Company
	var status string
	if err := row.Scan(&c.ID, &c.Name, &c.Domain, &c.Website, &c.EmployeeCount, &c.LinkedInURL,
		&c.Industry, &c.Phone, &c.Email, &c.Location, &status, &c.LockedFields,
		&c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Status = model.Status(status)
	return &c, nil
}

func collectCompanies(rows pgx.Rows) ([]model.Company, error) {
	defer rows.Close()
	var out []model.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan company")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate companies")
}

// GetCompany returns a company by id, or nil if it does not exist.
func (s *PostgresStore) GetCompany(ctx context.Context, id string) (*model.Company, error) {
	c, err := scanCompany(s.pool.QueryRow(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE id = $1`, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get company %s", id)
	}
	return c, nil
}

// ListCompanies returns companies matching filter ordered by id.
func (s *PostgresStore) ListCompanies(ctx context.Context, filter CompanyFilter) ([]model.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE true`
	args := []any{}
	argIdx := 1

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
		return nil, eris.Wrap(err, "postgres: list companies")
	}
	return collectCompanies(rows)
}

// SetCompanyStatus records the validation outcome on a company.
func (s *PostgresStore) SetCompanyStatus(ctx context.Context, id string, status model.Status) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE companies SET status = $2, updated_at = $3 WHERE id = $1`,
		id, string(status), time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set company status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("company not found: %s", id)
	}
	return nil
}

// CompanyCandidates returns companies sharing the domain or LinkedIn URL
// of c, plus trigram name neighbours. Domain and LinkedIn hits sort first so
// the limit never drops an exact match; the rest follow most similar first.
func (s *PostgresStore) CompanyCandidates(ctx context.Context, c model.Company, limit int) ([]model.Company, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+companyColumns+` FROM companies
		WHERE ($1 <> '' AND domain = $1)
			OR ($2 <> '' AND linkedin_url = $2)
			OR name % $3
		ORDER BY ($1 <> '' AND domain = $1) DESC,
			($2 <> '' AND linkedin_url = $2) DESC,
			similarity(name, $3) DESC, id
		LIMIT $4`,
		c.Domain, c.LinkedInURL, c.Name, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: company candidates")
	}
	return collectCompanies(rows)
}

// CreateCompany inserts a new company.
func (s *PostgresStore) CreateCompany(ctx context.Context, c *model.Company) error {
	now := time.Now().UTC()
	if c.LockedFields == nil {
		c.LockedFields = []string{}
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO companies (id, name, domain, website, employee_count, linkedin_url, industry,
			phone, email, location, status, locked_fields, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)`,
		c.ID, c.Name, c.Domain, c.Website, c.EmployeeCount, c.LinkedInURL, c.Industry,
		c.Phone, c.Email, c.Location, string(c.Status), c.LockedFields, now,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert company %s", c.ID)
	}
	c.CreatedAt, c.UpdatedAt = now, now
	return nil
}

// UpdateCompanyFields locks the row, diffs requested against the current
// values and writes only fields that changed and are not locked.
func (s *PostgresStore) UpdateCompanyFields(ctx context.Context, id string, requested map[string]string) (model.UpdatePlan, error) {
	var plan model.UpdatePlan
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		c, err := scanCompany(tx.QueryRow(ctx,
			`SELECT `+companyColumns+` FROM companies WHERE id = $1 FOR UPDATE`, id,
		))
		if errors.Is(err, pgx.ErrNoRows) {
			return eris.Errorf("company not found: %s", id)
		}
		if err != nil {
			return eris.Wrapf(err, "postgres: lock company %s", id)
		}

		plan = model.ApplyUpdate(c.Fields(), requested, c.LockedFields)
		if len(plan.Changed) == 0 {
			return nil
		}
		for _, k := range plan.Changed {
			c.SetField(k, plan.Next[k])
		}

		_, err = tx.Exec(ctx,
			`UPDATE companies SET name = $2, domain = $3, website = $4, employee_count = $5,
				linkedin_url = $6, industry = $7, phone = $8, email = $9, location = $10, updated_at = $11
			WHERE id = $1`,
			id, c.Name, c.Domain, c.Website, c.EmployeeCount, c.LinkedInURL, c.Industry,
			c.Phone, c.Email, c.Location, time.Now().UTC(),
		)
		return eris.Wrapf(err, "postgres: update company %s", id)
	})
	return plan, err
}

// ListSlots returns a company's role slots.
func (s *PostgresStore) ListSlots(ctx context.Context, companyID string) ([]model.Slot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, company_id, slot_type, is_filled, person_id
		FROM company_slots WHERE company_id = $1 ORDER BY slot_type`,
		companyID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list slots for %s", companyID)
	}
	defer rows.Close()

	var out []model.Slot
	for rows.Next() {
		var sl model.Slot
		var slotType string
		if err := rows.Scan(&sl.ID, &sl.CompanyID, &slotType, &sl.Filled, &sl.PersonID); err != nil {
			return nil, eris.Wrap(err, "postgres: scan slot")
		}
		st, err := model.ParseSlotType(slotType)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: slot %s", sl.ID)
		}
		sl.Type = st
		out = append(out, sl)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate slots")
}
