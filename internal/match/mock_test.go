package match

import (
	"context"
	"errors"

	"github.com/sells-group/outreach-cli/internal/model"
)

// mockStore implements Store for testing. Updates honor locked fields the
// same way the Postgres store does.
type mockStore struct {
	companies     map[string]*model.Company
	people        map[string]*model.Person
	fallout       []*model.Fallout
	createdIDs    []string
	candidatesErr error
}

func newMockStore() *mockStore {
	return &mockStore{companies: map[string]*model.Company{}, people: map[string]*model.Person{}}
}

func (m *mockStore) CompanyCandidates(_ context.Context, _ model.Company, _ int) ([]model.Company, error) {
	if m.candidatesErr != nil {
		return nil, m.candidatesErr
	}
	var out []model.Company
	for _, c := range m.companies {
		out = append(out, *c)
	}
	return out, nil
}

func (m *mockStore) CreateCompany(_ context.Context, c *model.Company) error {
	cp := *c
	m.companies[c.ID] = &cp
	m.createdIDs = append(m.createdIDs, c.ID)
	return nil
}

func (m *mockStore) UpdateCompanyFields(_ context.Context, id string, requested map[string]string) (model.UpdatePlan, error) {
	c, ok := m.companies[id]
	if !ok {
		return model.UpdatePlan{}, errors.New("not found")
	}
	plan := model.ApplyUpdate(c.Fields(), requested, c.LockedFields)
	for _, k := range plan.Changed {
		c.SetField(k, plan.Next[k])
	}
	return plan, nil
}

func (m *mockStore) PersonCandidates(_ context.Context, _ model.Person, _ int) ([]model.Person, error) {
	if m.candidatesErr != nil {
		return nil, m.candidatesErr
	}
	var out []model.Person
	for _, p := range m.people {
		out = append(out, *p)
	}
	return out, nil
}

func (m *mockStore) CreatePerson(_ context.Context, p *model.Person) error {
	cp := *p
	m.people[p.ID] = &cp
	m.createdIDs = append(m.createdIDs, p.ID)
	return nil
}

func (m *mockStore) UpdatePersonFields(_ context.Context, id string, requested map[string]string) (model.UpdatePlan, error) {
	p, ok := m.people[id]
	if !ok {
		return model.UpdatePlan{}, errors.New("not found")
	}
	plan := model.ApplyUpdate(p.Fields(), requested, p.LockedFields)
	for _, k := range plan.Changed {
		p.SetField(k, plan.Next[k])
	}
	return plan, nil
}

func (m *mockStore) SaveFallout(_ context.Context, f *model.Fallout) error {
	m.fallout = append(m.fallout, f)
	return nil
}

type mockAuditor struct {
	events []model.AuditEvent
}

func (m *mockAuditor) Record(_ context.Context, ev model.AuditEvent) {
	m.events = append(m.events, ev)
}
