package pipeline

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/phase"
	"github.com/sells-group/outreach-cli/internal/readiness"
	"github.com/sells-group/outreach-cli/internal/store"
)

// memStore is an in-memory Store.
type memStore struct {
	mu            sync.Mutex
	companies     map[string]*model.Company
	people        map[string]*model.Person
	slots         map[string][]model.Slot
	enrichments   map[string][]model.Enrichment
	verifications map[string][]model.Verification
	failures      map[string][]model.ValidationFailure
	fallout       []model.Fallout
	readiness     map[string]readiness.Result
	scores        map[string]model.Score

	listErr  error
	slotErr  map[string]error
	slowSlot map[string]bool
}

func newMemStore() *memStore {
	return &memStore{
		companies:     make(map[string]*model.Company),
		people:        make(map[string]*model.Person),
		slots:         make(map[string][]model.Slot),
		enrichments:   make(map[string][]model.Enrichment),
		verifications: make(map[string][]model.Verification),
		failures:      make(map[string][]model.ValidationFailure),
		readiness:     make(map[string]readiness.Result),
		scores:        make(map[string]model.Score),
		slotErr:       make(map[string]error),
		slowSlot:      make(map[string]bool),
	}
}

func (m *memStore) GetCompany(_ context.Context, id string) (*model.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.companies[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) ListCompanies(_ context.Context, f store.CompanyFilter) ([]model.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []model.Company
	for _, c := range m.companies {
		if (f.Status == "" || c.Status == f.Status) && c.ID > f.AfterID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memStore) SetCompanyStatus(_ context.Context, id string, status model.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.companies[id]
	if !ok {
		return errors.New("company not found")
	}
	c.Status = status
	return nil
}

func (m *memStore) ListSlots(ctx context.Context, companyID string) ([]model.Slot, error) {
	m.mu.Lock()
	slow, err := m.slowSlot[companyID], m.slotErr[companyID]
	m.mu.Unlock()
	if slow {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Slot(nil), m.slots[companyID]...), nil
}

func (m *memStore) GetPerson(_ context.Context, id string) (*model.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.people[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) ListPeople(_ context.Context, f store.PersonFilter) ([]model.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Person
	for _, p := range m.people {
		if (f.CompanyID == "" || p.CompanyID == f.CompanyID) && (f.Status == "" || p.Status == f.Status) && p.ID > f.AfterID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memStore) PeopleByIDs(_ context.Context, ids []string) (map[string]*model.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*model.Person)
	for _, id := range ids {
		if p, ok := m.people[id]; ok {
			cp := *p
			out[id] = &cp
		}
	}
	return out, nil
}

func (m *memStore) SetPersonStatus(_ context.Context, id string, status model.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.people[id]
	if !ok {
		return errors.New("person not found")
	}
	p.Status = status
	return nil
}

func (m *memStore) EnrichmentAttempts(_ context.Context, ids []string) (map[string][]model.Enrichment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]model.Enrichment)
	for _, id := range ids {
		if a := m.enrichments[id]; len(a) > 0 {
			out[id] = append([]model.Enrichment(nil), a...)
		}
	}
	return out, nil
}

func (m *memStore) VerificationAttempts(_ context.Context, ids []string) (map[string][]model.Verification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]model.Verification)
	for _, id := range ids {
		if a := m.verifications[id]; len(a) > 0 {
			out[id] = append([]model.Verification(nil), a...)
		}
	}
	return out, nil
}

func (m *memStore) RecordEnrichment(_ context.Context, e *model.Enrichment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enrichments[e.PersonID] = append(m.enrichments[e.PersonID], *e)
	return nil
}

func (m *memStore) RecordVerification(_ context.Context, v *model.Verification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifications[v.PersonID] = append(m.verifications[v.PersonID], *v)
	return nil
}

func (m *memStore) ReplaceFailures(_ context.Context, entityID string, failures []model.ValidationFailure) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[entityID] = append([]model.ValidationFailure(nil), failures...)
	return nil
}

func (m *memStore) ListFailures(_ context.Context, f store.FailureFilter) ([]model.ValidationFailure, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.failures))
	for id := range m.failures {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var out []model.ValidationFailure
	for _, id := range ids {
		for _, vf := range m.failures[id] {
			if f.Status == "" || vf.Status == f.Status {
				out = append(out, vf)
			}
		}
	}
	return out, nil
}

func (m *memStore) ListFallout(_ context.Context, runID string, _ int) ([]model.Fallout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Fallout
	for _, f := range m.fallout {
		if runID == "" || f.RunID == runID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *memStore) SaveReadiness(_ context.Context, r *readiness.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readiness[r.CompanyID] = *r
	return nil
}

func (m *memStore) SaveScores(_ context.Context, scores []model.Score) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range scores {
		m.scores[s.EntityID] = s
	}
	return nil
}

// memLog is an in-memory phase.Log.
type memLog struct {
	mu      sync.Mutex
	records []model.PhaseRecord
	current map[string]model.Phase
}

var _ phase.Log = (*memLog)(nil)

func newMemLog() *memLog {
	return &memLog{current: make(map[string]model.Phase)}
}

func (l *memLog) Append(_ context.Context, rec *model.PhaseRecord, pointer *model.Phase) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec.ID = int64(len(l.records) + 1)
	l.records = append(l.records, *rec)
	if pointer != nil {
		if *pointer == "" {
			delete(l.current, rec.EntityID)
		} else {
			l.current[rec.EntityID] = *pointer
		}
	}
	return nil
}

func (l *memLog) Latest(_ context.Context, entityID string, p model.Phase) (*model.PhaseRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.records) - 1; i >= 0; i-- {
		if r := l.records[i]; r.EntityID == entityID && r.Phase == p {
			return &r, nil
		}
	}
	return nil, nil
}

func (l *memLog) History(_ context.Context, entityID string, _ int) ([]model.PhaseRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []model.PhaseRecord
	for i := len(l.records) - 1; i >= 0; i-- {
		if l.records[i].EntityID == entityID {
			out = append(out, l.records[i])
		}
	}
	return out, nil
}

func (l *memLog) Current(_ context.Context, entityID string) (model.Phase, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current[entityID], nil
}

// memAuditor collects audit events.
type memAuditor struct {
	mu     sync.Mutex
	events []model.AuditEvent
}

func (a *memAuditor) Record(_ context.Context, ev model.AuditEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, ev)
}

func intPtr(n int) *int { return &n }

func strPtr(s string) *string { return &s }

var fixedNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

// addReadyCompany adds a company that passes validation and readiness:
// all three slots filled by enriched, verified people with matching titles.
func (m *memStore) addReadyCompany(id string) {
	m.companies[id] = &model.Company{
		ID:            id,
		Name:          "Acme Manufacturing",
		Domain:        "acme-" + id + ".com",
		Website:       "https://acme-" + id + ".com",
		EmployeeCount: intPtr(120),
		LinkedInURL:   "https://www.linkedin.com/company/acme-" + id,
		Industry:      "Manufacturing",
		Phone:         "15551234567",
		Status:        model.StatusPending,
	}
	titles := map[model.SlotType]string{
		model.SlotCEO: "Chief Executive Officer",
		model.SlotCFO: "CFO",
		model.SlotHR:  "HR Director",
	}
	for _, st := range model.SlotTypes {
		pid := id + "-" + string(st)
		m.people[pid] = &model.Person{
			ID:          pid,
			CompanyID:   id,
			FirstName:   "Pat",
			LastName:    string(st),
			Title:       titles[st],
			Email:       "pat." + string(st) + "@acme.com",
			LinkedInURL: "https://www.linkedin.com/in/pat-" + pid,
			Status:      model.StatusValid,
		}
		m.slots[id] = append(m.slots[id], model.Slot{CompanyID: id, Type: st, Filled: true, PersonID: strPtr(pid)})
		m.enrichments[pid] = []model.Enrichment{{PersonID: pid, Status: model.EnrichmentSuccess, AttemptedAt: fixedNow}}
		m.verifications[pid] = []model.Verification{{PersonID: pid, Email: "x", Status: model.VerificationValid, AttemptedAt: fixedNow}}
	}
}
