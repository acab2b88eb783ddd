package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/pkg/verifier"
)

type fakeVerifier struct {
	mu       sync.Mutex
	statuses map[string]model.VerificationStatus
	failFor  map[string]bool
	verified []string
	enriched []string
}

func (v *fakeVerifier) VerifyEmail(_ context.Context, email string) (model.VerificationStatus, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.verified = append(v.verified, email)
	if v.failFor[email] {
		return "", errors.New("verifier: status 503")
	}
	if st, ok := v.statuses[email]; ok {
		return st, nil
	}
	return model.VerificationValid, nil
}

func (v *fakeVerifier) Enrich(_ context.Context, p *model.Person) (*verifier.EnrichResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.enriched = append(v.enriched, p.ID)
	if p.Title == "" {
		return &verifier.EnrichResult{}, nil
	}
	return &verifier.EnrichResult{Found: true, Fields: map[string]string{"title": p.Title}}, nil
}

func verifyFixture(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t, Config{Concurrency: 2})
	f.store.people["p1"] = &model.Person{ID: "p1", CompanyID: "c1", FirstName: "Ann", LastName: "Lee", Title: "CEO", Email: "ann@acme.com"}
	f.store.people["p2"] = &model.Person{ID: "p2", CompanyID: "c1", FirstName: "Bo", LastName: "Ray", Email: "bo@acme.com"}
	f.store.people["p3"] = &model.Person{ID: "p3", CompanyID: "c1", FirstName: "Cy", LastName: "Ng", Title: "HR"}
	f.store.people["p4"] = &model.Person{ID: "p4", CompanyID: "c2", FirstName: "Di", LastName: "Oh", Email: "di@other.com"}
	return f
}

func TestVerify(t *testing.T) {
	f := verifyFixture(t)
	v := &fakeVerifier{statuses: map[string]model.VerificationStatus{"bo@acme.com": model.VerificationInvalid}}

	res, err := f.runner.Verify(context.Background(), v, VerifyOptions{CompanyID: "c1"})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Succeeded)
	assert.Equal(t, map[string]int{"valid": 1, "invalid": 1, "no_email": 1}, res.Outcomes)
	assert.ElementsMatch(t, []string{"ann@acme.com", "bo@acme.com"}, v.verified)
	assert.Empty(t, v.enriched)

	require.Len(t, f.store.verifications["p2"], 1)
	assert.Equal(t, model.VerificationInvalid, f.store.verifications["p2"][0].Status)
	assert.Equal(t, "bo@acme.com", f.store.verifications["p2"][0].Email)
	assert.False(t, f.store.verifications["p2"][0].AttemptedAt.IsZero())
	assert.Empty(t, f.store.verifications["p3"])
	assert.Empty(t, f.store.verifications["p4"])
}

func TestVerify_Enrich(t *testing.T) {
	f := verifyFixture(t)
	v := &fakeVerifier{}

	res, err := f.runner.Verify(context.Background(), v, VerifyOptions{CompanyID: "c1", Enrich: true})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Succeeded)
	assert.ElementsMatch(t, []string{"p1", "p2", "p3"}, v.enriched)

	e1 := f.store.enrichments["p1"]
	require.Len(t, e1, 1)
	assert.Equal(t, model.EnrichmentSuccess, e1[0].Status)
	assert.Equal(t, verifier.Provider, e1[0].Provider)
	assert.Equal(t, "CEO", e1[0].Fields["title"])

	e2 := f.store.enrichments["p2"]
	require.Len(t, e2, 1)
	assert.Equal(t, model.EnrichmentFailed, e2[0].Status)
}

func TestVerify_ProviderErrorRecordedAsUnknown(t *testing.T) {
	f := verifyFixture(t)
	v := &fakeVerifier{failFor: map[string]bool{"ann@acme.com": true}}

	res, err := f.runner.Verify(context.Background(), v, VerifyOptions{CompanyID: "c1"})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "p1", res.Failures[0].EntityID)
	assert.Contains(t, res.Failures[0].Reason, "503")

	require.Len(t, f.store.verifications["p1"], 1)
	assert.Equal(t, model.VerificationUnknown, f.store.verifications["p1"][0].Status)
}
