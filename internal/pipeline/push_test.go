package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/scoring"
	"github.com/sells-group/outreach-cli/pkg/salesforce"
)

type fakeSF struct {
	mu       sync.Mutex
	accounts []salesforce.Account
	contacts []salesforce.Contact
	queryErr error
	reject   map[string]string // Account Name -> error message
	inserted map[string][]map[string]any
	updated  map[string][]salesforce.CollectionRecord
	queries  []string
}

func newFakeSF() *fakeSF {
	return &fakeSF{
		reject:   make(map[string]string),
		inserted: make(map[string][]map[string]any),
		updated:  make(map[string][]salesforce.CollectionRecord),
	}
}

func (f *fakeSF) Query(_ context.Context, soql string, out any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, soql)
	if f.queryErr != nil {
		return f.queryErr
	}
	switch dst := out.(type) {
	case *[]salesforce.Account:
		*dst = append([]salesforce.Account(nil), f.accounts...)
	case *[]salesforce.Contact:
		*dst = append([]salesforce.Contact(nil), f.contacts...)
	}
	return nil
}

func (f *fakeSF) InsertCollection(_ context.Context, sObject string, records []map[string]any) ([]salesforce.CollectionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	results := make([]salesforce.CollectionResult, len(records))
	for i, rec := range records {
		if msg, ok := f.reject[fmt.Sprint(rec["Name"])]; ok && sObject == "Account" {
			results[i] = salesforce.CollectionResult{Errors: []string{msg}}
			continue
		}
		f.inserted[sObject] = append(f.inserted[sObject], rec)
		id := fmt.Sprintf("%s-%d", strings.ToLower(sObject[:3]), len(f.inserted[sObject]))
		switch sObject {
		case "Account":
			f.accounts = append(f.accounts, salesforce.Account{ID: id, Name: str(rec["Name"]), Website: str(rec["Website"])})
		case "Contact":
			f.contacts = append(f.contacts, salesforce.Contact{
				ID: id, AccountID: str(rec["AccountId"]), Email: str(rec["Email"]),
				FirstName: str(rec["FirstName"]), LastName: str(rec["LastName"]),
			})
		}
		results[i] = salesforce.CollectionResult{ID: id, Success: true}
	}
	return results, nil
}

func (f *fakeSF) UpdateCollection(_ context.Context, sObject string, records []salesforce.CollectionRecord) ([]salesforce.CollectionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated[sObject] = append(f.updated[sObject], records...)
	results := make([]salesforce.CollectionResult, len(records))
	for i, rec := range records {
		results[i] = salesforce.CollectionResult{ID: rec.ID, Success: true}
	}
	return results, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

// scoredFixture runs every sweep up to scoring.
func scoredFixture(t *testing.T, ids ...string) *fixture {
	t.Helper()
	f := readyFixture(t, ids...)
	_, err := f.runner.Score(context.Background(), scoring.NewEngine(scoring.DefaultWeights()), nil)
	require.NoError(t, err)
	return f
}

func TestPush(t *testing.T) {
	f := scoredFixture(t, "c1", "c2")
	sf := newFakeSF()
	sf.accounts = []salesforce.Account{{ID: "001EXIST", Name: "Acme", Website: "HTTPS://ACME-C2.COM"}}

	res, err := f.runner.Push(context.Background(), sf, PushOptions{})
	require.NoError(t, err)

	assert.Equal(t, model.PhaseCampaign, res.Phase)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 2, res.Outcomes["pushed"])
	assert.Equal(t, model.PhaseComplete, f.status(t, "c1", model.PhaseCampaign))
	assert.Equal(t, model.PhaseComplete, f.status(t, "c2", model.PhaseCampaign))

	require.Len(t, sf.queries, 2)
	assert.Contains(t, sf.queries[0], "'https://acme-c1.com'")
	// Only the pre-existing account can already have contacts.
	assert.Contains(t, sf.queries[1], "FROM Contact WHERE AccountId IN ('001EXIST')")

	require.Len(t, sf.inserted["Account"], 1)
	acct := sf.inserted["Account"][0]
	assert.Equal(t, "c1", acct["AccountNumber"])
	assert.Equal(t, 120, acct["NumberOfEmployees"])

	require.Len(t, sf.updated["Account"], 1)
	assert.Equal(t, "001EXIST", sf.updated["Account"][0].ID)
	assert.Equal(t, "c2", sf.updated["Account"][0].Fields["AccountNumber"])
	assert.Empty(t, sf.updated["Contact"])

	contacts := sf.inserted["Contact"]
	require.Len(t, contacts, 6)
	byAccount := map[any]int{}
	for _, c := range contacts {
		byAccount[c["AccountId"]]++
	}
	assert.Equal(t, map[any]int{"acc-1": 3, "001EXIST": 3}, byAccount)

	var pushed []string
	for _, ev := range f.auditor.events {
		if ev.Action == "pushed" {
			pushed = append(pushed, ev.After["salesforce_account_id"])
		}
	}
	assert.ElementsMatch(t, []string{"acc-1", "001EXIST"}, pushed)
}

func TestPush_SkipsUnscored(t *testing.T) {
	f := readyFixture(t, "c1")
	sf := newFakeSF()

	res, err := f.runner.Push(context.Background(), sf, PushOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Skipped)
	assert.Empty(t, sf.queries)
	assert.Empty(t, sf.inserted)
}

func TestPush_RejectedAccount(t *testing.T) {
	f := scoredFixture(t, "c1", "c2")
	f.store.companies["c2"].Name = "Rejected Co"
	sf := newFakeSF()
	sf.reject["Rejected Co"] = "DUPLICATE_VALUE"

	res, err := f.runner.Push(context.Background(), sf, PushOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "c2", res.Failures[0].EntityID)
	assert.Contains(t, res.Failures[0].Reason, "DUPLICATE_VALUE")
	assert.Equal(t, model.PhaseFailed, f.status(t, "c2", model.PhaseCampaign))

	// Only c1's people become contacts.
	require.Len(t, sf.inserted["Contact"], 3)
	for _, c := range sf.inserted["Contact"] {
		assert.Equal(t, "acc-1", c["AccountId"])
	}
}

func TestPush_QueryErrorFailsPage(t *testing.T) {
	f := scoredFixture(t, "c1", "c2")
	sf := newFakeSF()
	sf.queryErr = errors.New("session expired")

	res, err := f.runner.Push(context.Background(), sf, PushOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, model.PhaseFailed, f.status(t, "c1", model.PhaseCampaign))
	assert.Empty(t, sf.inserted)

	// A later run retries the failed phase.
	sf.queryErr = nil
	res, err = f.runner.Push(context.Background(), sf, PushOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Succeeded)
}

func TestPush_Cancelled(t *testing.T) {
	f := scoredFixture(t, "c1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.runner.Push(ctx, newFakeSF(), PushOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interrupted")
}

func TestPush_SecondRunSkipsPushed(t *testing.T) {
	f := scoredFixture(t, "c1")
	sf := newFakeSF()

	_, err := f.runner.Push(context.Background(), sf, PushOptions{})
	require.NoError(t, err)
	res, err := f.runner.Push(context.Background(), sf, PushOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Skipped)
	assert.Zero(t, res.Succeeded)
	assert.Len(t, sf.inserted["Account"], 1)
	assert.Len(t, sf.inserted["Contact"], 3)
}

func TestPush_ForceUpdatesExistingContacts(t *testing.T) {
	f := scoredFixture(t, "c1")
	sf := newFakeSF()

	_, err := f.runner.Push(context.Background(), sf, PushOptions{})
	require.NoError(t, err)
	f.store.people["c1-CFO"].Title = "Chief Financial Officer"

	res, err := f.runner.Push(context.Background(), sf, PushOptions{Force: true})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Succeeded)
	assert.Len(t, sf.inserted["Account"], 1, "account matched on website")
	assert.Len(t, sf.inserted["Contact"], 3, "no duplicate contacts")
	require.Len(t, sf.updated["Contact"], 3)
	var titles []any
	for _, rec := range sf.updated["Contact"] {
		assert.Equal(t, "acc-1", rec.Fields["AccountId"])
		titles = append(titles, rec.Fields["Title"])
	}
	assert.Contains(t, titles, "Chief Financial Officer")
}

func TestPush_ContactLookupErrorFailsCompany(t *testing.T) {
	f := scoredFixture(t, "c1")
	sf := newFakeSF()
	sf.accounts = []salesforce.Account{{ID: "001EXIST", Website: "https://acme-c1.com"}}

	calls := 0
	lookup := &queryFailer{fakeSF: sf, failOn: 2, calls: &calls}
	res, err := f.runner.Push(context.Background(), lookup, PushOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Failed)
	assert.Contains(t, res.Failures[0].Reason, "find contacts by account")
	assert.Equal(t, model.PhaseFailed, f.status(t, "c1", model.PhaseCampaign))
	assert.Empty(t, sf.inserted["Contact"])
}

// queryFailer fails the nth query.
type queryFailer struct {
	*fakeSF
	failOn int
	calls  *int
}

func (q *queryFailer) Query(ctx context.Context, soql string, out any) error {
	*q.calls++
	if *q.calls == q.failOn {
		return errors.New("INVALID_SESSION_ID")
	}
	return q.fakeSF.Query(ctx, soql, out)
}

func TestPush_ReadinessRegressionBlocksScoreAndPush(t *testing.T) {
	f := scoredFixture(t, "c1")
	ctx := context.Background()
	sf := newFakeSF()
	_, err := f.runner.Push(ctx, sf, PushOptions{})
	require.NoError(t, err)

	// The CEO's address now verifies invalid.
	f.store.verifications["c1-CEO"] = append(f.store.verifications["c1-CEO"],
		model.Verification{PersonID: "c1-CEO", Status: model.VerificationInvalid, AttemptedAt: fixedNow.Add(time.Hour)})
	res, err := f.runner.Readiness(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Outcomes["not_ready"])
	assert.Equal(t, model.PhaseFailed, f.status(t, "c1", model.PhaseReadiness))

	cur, err := f.tracker.Current(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, model.PhaseValidation, cur)

	res, err = f.runner.Score(ctx, scoring.NewEngine(scoring.DefaultWeights()), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Zero(t, res.Succeeded)

	res, err = f.runner.Push(ctx, sf, PushOptions{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Zero(t, res.Succeeded)
	assert.Len(t, sf.inserted["Contact"], 3)
	assert.Empty(t, sf.updated["Contact"])
}
