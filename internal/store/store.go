// Package store persists companies, people, slots and the outputs of the
// validation, readiness and scoring stages.
package store

import (
	"context"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/readiness"
)

// CompanyFilter specifies criteria for listing companies. Results are
// ordered by id; AfterID pages through them.
type CompanyFilter struct {
	Status  model.Status `json:"status,omitempty"`
	AfterID string       `json:"after_id,omitempty"`
	Limit   int          `json:"limit,omitempty"`
}

// PersonFilter specifies criteria for listing people.
type PersonFilter struct {
	CompanyID string       `json:"company_id,omitempty"`
	Status    model.Status `json:"status,omitempty"`
	AfterID   string       `json:"after_id,omitempty"`
	Limit     int          `json:"limit,omitempty"`
}

// FailureFilter specifies criteria for listing validation failures.
type FailureFilter struct {
	EntityID string              `json:"entity_id,omitempty"`
	Status   model.FailureStatus `json:"status,omitempty"`
	Limit    int                 `json:"limit,omitempty"`
}

// Store defines the persistence interface for the outreach pipeline.
type Store interface {
	// Companies
	GetCompany(ctx context.Context, id string) (*model.Company, error)
	ListCompanies(ctx context.Context, filter CompanyFilter) ([]model.Company, error)
	SetCompanyStatus(ctx context.Context, id string, status model.Status) error
	CompanyCandidates(ctx context.Context, c model.Company, limit int) ([]model.Company, error)
	CreateCompany(ctx context.Context, c *model.Company) error
	UpdateCompanyFields(ctx context.Context, id string, requested map[string]string) (model.UpdatePlan, error)
	ListSlots(ctx context.Context, companyID string) ([]model.Slot, error)

	// People
	GetPerson(ctx context.Context, id string) (*model.Person, error)
	ListPeople(ctx context.Context, filter PersonFilter) ([]model.Person, error)
	PeopleByIDs(ctx context.Context, ids []string) (map[string]*model.Person, error)
	SetPersonStatus(ctx context.Context, id string, status model.Status) error
	PersonCandidates(ctx context.Context, p model.Person, limit int) ([]model.Person, error)
	CreatePerson(ctx context.Context, p *model.Person) error
	UpdatePersonFields(ctx context.Context, id string, requested map[string]string) (model.UpdatePlan, error)

	// Enrichment and verification attempts
	EnrichmentAttempts(ctx context.Context, personIDs []string) (map[string][]model.Enrichment, error)
	VerificationAttempts(ctx context.Context, personIDs []string) (map[string][]model.Verification, error)
	RecordEnrichment(ctx context.Context, e *model.Enrichment) error
	RecordVerification(ctx context.Context, v *model.Verification) error

	// Validation failures and fallout
	ReplaceFailures(ctx context.Context, entityID string, failures []model.ValidationFailure) error
	ListFailures(ctx context.Context, filter FailureFilter) ([]model.ValidationFailure, error)
	ResolveFailure(ctx context.Context, id int64, fixedValue string) error
	EscalateFailure(ctx context.Context, id int64) error
	SaveFallout(ctx context.Context, f *model.Fallout) error
	ListFallout(ctx context.Context, runID string, limit int) ([]model.Fallout, error)

	// Readiness and scores
	SaveReadiness(ctx context.Context, r *readiness.Result) error
	SaveScores(ctx context.Context, scores []model.Score) error
	LatestScore(ctx context.Context, entityID string) (*model.Score, error)
	ScoreTrend(ctx context.Context, entityID string, limit int) ([]model.Score, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}
