package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/readiness"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresStore(mock), mock
}

var companyCols = []string{
	"id", "name", "domain", "website", "employee_count", "linkedin_url", "industry",
	"phone", "email", "location", "status", "locked_fields", "created_at", "updated_at",
}

func intPtr(n int) *int { return &n }

func TestPostgresStore_Ping(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`SELECT 1`).WillReturnResult(pgxmock.NewResult("SELECT", 1))

	assert.NoError(t, s.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCompany_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM companies WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	c, err := s.GetCompany(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListCompanies_Filter(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM companies WHERE true AND status = \$1 AND id > \$2 ORDER BY id LIMIT \$3`).
		WithArgs("valid", "co-1", 50).
		WillReturnRows(pgxmock.NewRows(companyCols).
			AddRow("co-2", "Acme", "acme.com", "https://acme.com", intPtr(120), "https://linkedin.com/company/acme",
				"Software", "", "", "Austin", "valid", []string{}, now, now))

	companies, err := s.ListCompanies(context.Background(), CompanyFilter{
		Status: model.StatusValid, AfterID: "co-1", Limit: 50,
	})
	require.NoError(t, err)
	require.Len(t, companies, 1)
	assert.Equal(t, "Acme", companies[0].Name)
	assert.Equal(t, 120, *companies[0].EmployeeCount)
	assert.Equal(t, model.StatusValid, companies[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetCompanyStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE companies SET status = \$2`).
		WithArgs("missing", "valid", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.SetCompanyStatus(context.Background(), "missing", model.StatusValid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "company not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateCompanyFields_SkipsLocked(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM companies WHERE id = \$1 FOR UPDATE`).
		WithArgs("co-1").
		WillReturnRows(pgxmock.NewRows(companyCols).
			AddRow("co-1", "Acme", "acme.com", "", intPtr(80), "", "", "+15125550100", "", "",
				"valid", []string{"phone"}, now, now))
	mock.ExpectExec(`UPDATE companies SET name = \$2`).
		WithArgs("co-1", "Acme", "acme.com", "https://acme.com", intPtr(80), "", "Software",
			"+15125550100", "", "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	plan, err := s.UpdateCompanyFields(context.Background(), "co-1", map[string]string{
		"phone":    "+15125559999",
		"website":  "https://acme.com",
		"industry": "Software",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"industry", "website"}, plan.Changed)
	assert.Equal(t, []string{"phone"}, plan.Skipped)
	assert.Equal(t, "+15125550100", plan.Next["phone"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateCompanyFields_NoChange(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("co-1").
		WillReturnRows(pgxmock.NewRows(companyCols).
			AddRow("co-1", "Acme", "acme.com", "", (*int)(nil), "", "", "", "", "",
				"pending", []string{}, now, now))
	mock.ExpectCommit()

	plan, err := s.UpdateCompanyFields(context.Background(), "co-1", map[string]string{"name": "Acme"})
	require.NoError(t, err)
	assert.Empty(t, plan.Changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateCompanyFields_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs("missing").WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := s.UpdateCompanyFields(context.Background(), "missing", map[string]string{"name": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "company not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListSlots(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	pid := "p-1"

	mock.ExpectQuery(`FROM company_slots WHERE company_id = \$1`).
		WithArgs("co-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "company_id", "slot_type", "is_filled", "person_id"}).
			AddRow("s-1", "co-1", "CEO", true, &pid).
			AddRow("s-2", "co-1", "CFO", false, (*string)(nil)))

	slots, err := s.ListSlots(context.Background(), "co-1")
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, model.SlotCEO, slots[0].Type)
	require.NotNil(t, slots[0].PersonID)
	assert.Equal(t, "p-1", *slots[0].PersonID)
	assert.Nil(t, slots[1].PersonID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListSlots_UnknownType(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM company_slots`).
		WithArgs("co-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "company_id", "slot_type", "is_filled", "person_id"}).
			AddRow("s-1", "co-1", "COO", false, (*string)(nil)))

	_, err := s.ListSlots(context.Background(), "co-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown slot type")
}

func TestPostgresStore_EnrichmentAttempts(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	t1 := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	t0 := t1.Add(-time.Hour)

	mock.ExpectQuery(`FROM enrichment_attempts WHERE person_id = ANY\(\$1\)`).
		WithArgs([]string{"p-1", "p-2"}).
		WillReturnRows(pgxmock.NewRows([]string{"person_id", "status", "provider", "fields", "attempted_at"}).
			AddRow("p-1", "success", "clearbit", []byte(`{"title":"CEO"}`), t1).
			AddRow("p-1", "failed", "clearbit", []byte(nil), t0))

	got, err := s.EnrichmentAttempts(context.Background(), []string{"p-1", "p-2"})
	require.NoError(t, err)
	require.Len(t, got["p-1"], 2)
	assert.Equal(t, model.EnrichmentSuccess, got["p-1"][0].Status)
	assert.Equal(t, "CEO", got["p-1"][0].Fields["title"])
	assert.Empty(t, got["p-2"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_EnrichmentAttempts_Empty(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	got, err := s.EnrichmentAttempts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordVerification(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO email_verifications`).
		WithArgs("p-1", "jane@acme.com", "valid", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	v := &model.Verification{PersonID: "p-1", Email: "jane@acme.com", Status: model.VerificationValid}
	require.NoError(t, s.RecordVerification(context.Background(), v))
	assert.False(t, v.AttemptedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReplaceFailures(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM validation_failures WHERE entity_id = \$1 AND status = 'pending'`).
		WithArgs("co-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectCopyFrom(pgx.Identifier{"validation_failures"}, failureColumns).WillReturnResult(1)
	mock.ExpectCommit()

	err := s.ReplaceFailures(context.Background(), "co-1", []model.ValidationFailure{{
		EntityID: "co-1", EntityKind: model.KindCompany, Field: "name",
		Rule: model.RuleCompanyName, Message: "name too short", Severity: model.SeverityCritical,
	}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReplaceFailures_NoneStillClears(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM validation_failures`).
		WithArgs("co-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectCommit()

	require.NoError(t, s.ReplaceFailures(context.Background(), "co-1", nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ResolveFailure(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE validation_failures SET status = 'resolved'`).
		WithArgs(int64(5), "https://acme.com", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE validation_failures SET status = 'resolved'`).
		WithArgs(int64(6), "x", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, s.ResolveFailure(context.Background(), 5, "https://acme.com"))
	err := s.ResolveFailure(context.Background(), 6, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open failure not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_EscalateFailure(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE validation_failures SET status = 'escalated'`).
		WithArgs(int64(5)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.EscalateFailure(context.Background(), 5))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveFallout(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO match_fallout`).
		WithArgs("run-1", "company", "Acme Holdings", "acme.io", "co-9", 0.82,
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))

	f := &model.Fallout{
		RunID: "run-1", Kind: model.KindCompany, InputName: "Acme Holdings", InputKey: "acme.io",
		BestCandidate: "co-9", BestConfidence: 0.82,
		Attempts: []model.Comparison{{CandidateID: "co-9", CandidateName: "Acme Holding", Confidence: 0.82}},
	}
	require.NoError(t, s.SaveFallout(context.Background(), f))
	assert.Equal(t, int64(11), f.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveScores(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	at := time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO scores`).
		WithArgs("p-1", "person", 72, 100, 60, 85, 45, "warm", 240, "hot", 3, at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"score_history"}, scoreColumnList).WillReturnResult(1)
	mock.ExpectCommit()

	err := s.SaveScores(context.Background(), []model.Score{{
		EntityID: "p-1", EntityKind: model.KindPerson, Total: 72,
		Breakdown: model.Breakdown{ContactCompleteness: 100, DataRichness: 60, Seniority: 85, Engagement: 45},
		Segment:   model.SegmentWarm, SignalBaseline: 240, EngagementTier: model.TierHot,
		WeightVersion: 3, ScoredAt: at,
	}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveScores_RollbackOnError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO scores`).WillReturnError(errors.New("deadlock"))
	mock.ExpectRollback()

	err := s.SaveScores(context.Background(), []model.Score{{EntityID: "p-1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert score p-1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ScoreTrend(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	at := time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)
	cols := []string{"entity_id", "entity_kind", "total", "contact_completeness", "data_richness",
		"seniority", "engagement", "segment", "signal_baseline", "engagement_tier", "weight_version", "scored_at"}

	mock.ExpectQuery(`FROM score_history WHERE entity_id = \$1 ORDER BY scored_at DESC LIMIT \$2`).
		WithArgs("p-1", 10).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("p-1", "person", 72, 100, 60, 85, 45, "warm", 240, "hot", 3, at).
			AddRow("p-1", "person", 61, 80, 60, 85, 20, "warm", 0, "cold", 2, at.Add(-24*time.Hour)))

	trend, err := s.ScoreTrend(context.Background(), "p-1", 0)
	require.NoError(t, err)
	require.Len(t, trend, 2)
	assert.Equal(t, 72, trend[0].Total)
	assert.Equal(t, model.TierCold, trend[1].EngagementTier)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveReadiness(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO company_readiness`).
		WithArgs("co-1", false, "CFO: slot not filled", 10, 15, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SaveReadiness(context.Background(), &readiness.Result{
		CompanyID: "co-1", Reason: "CFO: slot not filled", PassedChecks: 10, TotalChecks: 15,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

var personCols = []string{
	"id", "company_id", "company_domain", "first_name", "last_name", "full_name", "title",
	"seniority", "department", "email", "phone", "linkedin_url", "location", "industry", "employee_count",
	"status", "locked_fields", "created_at", "updated_at",
}

func TestPostgresStore_PersonCandidates_ExactHitsFirst(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`(?s)FROM people\s+WHERE .+ORDER BY \(\$1 <> '' AND linkedin_url = \$1\) DESC,\s+\(\$2 <> '' AND lower\(email\) = lower\(\$2\)\) DESC,\s+similarity\(full_name, \$4\) DESC, id\s+LIMIT \$5`).
		WithArgs("", "dana@acme.com", "acme.com", "Dana Reyes", 10).
		WillReturnRows(pgxmock.NewRows(personCols).
			AddRow("p-11", "co-1", "acme.com", "Dana", "Reyes", "Dana Reyes", "CFO", "", "", "dana@acme.com",
				"", "", "", "", (*int)(nil), "valid", []string{}, now, now))

	people, err := s.PersonCandidates(context.Background(), model.Person{
		FirstName: "Dana", LastName: "Reyes", Email: "dana@acme.com", CompanyDomain: "acme.com",
	}, 0)
	require.NoError(t, err)
	require.Len(t, people, 1)
	assert.Equal(t, "p-11", people[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompanyCandidates_ExactHitsFirst(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`(?s)FROM companies\s+WHERE .+ORDER BY \(\$1 <> '' AND domain = \$1\) DESC,\s+\(\$2 <> '' AND linkedin_url = \$2\) DESC,\s+similarity\(name, \$3\) DESC, id\s+LIMIT \$4`).
		WithArgs("acme.com", "", "Acme Holdings", 5).
		WillReturnRows(pgxmock.NewRows(companyCols).
			AddRow("co-7", "Acme Manufacturing", "acme.com", "", (*int)(nil), "", "", "", "", "", "valid", []string{}, now, now))

	companies, err := s.CompanyCandidates(context.Background(), model.Company{Name: "Acme Holdings", Domain: "acme.com"}, 5)
	require.NoError(t, err)
	require.Len(t, companies, 1)
	assert.Equal(t, "co-7", companies[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PersonCandidates_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM people`).WillReturnError(errors.New("conn reset"))

	_, err := s.PersonCandidates(context.Background(), model.Person{Email: "a@b.com"}, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "person candidates")
}

func TestPostgresStore_LatestScore(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	at := time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)
	cols := []string{"entity_id", "entity_kind", "total", "contact_completeness", "data_richness",
		"seniority", "engagement", "segment", "signal_baseline", "engagement_tier", "weight_version", "scored_at"}

	mock.ExpectQuery(`FROM scores WHERE entity_id = \$1`).
		WithArgs("co-1").
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("co-1", "company", 80, 100, 70, 0, 0, "hot", 0, "", 0, at))
	mock.ExpectQuery(`FROM scores WHERE entity_id = \$1`).
		WithArgs("co-2").
		WillReturnError(pgx.ErrNoRows)

	sc, err := s.LatestScore(context.Background(), "co-1")
	require.NoError(t, err)
	require.NotNil(t, sc)
	assert.Equal(t, 80, sc.Total)
	assert.Equal(t, model.KindCompany, sc.EntityKind)

	sc, err = s.LatestScore(context.Background(), "co-2")
	require.NoError(t, err)
	assert.Nil(t, sc)
	assert.NoError(t, mock.ExpectationsWereMet())
}
