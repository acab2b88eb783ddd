package salesforce

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gosf "github.com/k-capehart/go-salesforce/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/resilience"
)

// newTestSFClient creates an sfClient backed by an httptest server.
func newTestSFClient(t *testing.T, handler http.Handler) Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	sf, err := gosf.Init(gosf.Creds{
		AccessToken: "test-token",
		Domain:      ts.URL,
	},
		gosf.WithValidateAuthentication(false),
		gosf.WithRoundTripper(http.DefaultTransport),
	)
	require.NoError(t, err)

	return NewClient(sf, WithRetry(resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		Multiplier:     1,
	}))
}

type collectionBody struct {
	Records []map[string]any `json:"records"`
}

const lockedMsg = "UNABLE_TO_LOCK_ROW: unable to obtain exclusive access to this record"

func TestSFClient_QueryAccounts(t *testing.T) {
	client := newTestSFClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/query")
		assert.Contains(t, r.URL.Query().Get("q"), "FROM Account")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"totalSize": 2,
			"done":      true,
			"records": []map[string]any{
				{"attributes": map[string]any{"type": "Account"}, "Id": "001a", "Name": "Acme", "Website": "https://acme.com"},
				{"attributes": map[string]any{"type": "Account"}, "Id": "001b", "Name": "Globex", "Website": "globex.io"},
			},
		})
	}))

	var accounts []Account
	require.NoError(t, client.Query(context.Background(), "SELECT Id, Name, Website FROM Account", &accounts))
	require.Len(t, accounts, 2)
	assert.Equal(t, "001a", accounts[0].ID)
	assert.Equal(t, "globex.io", accounts[1].Website)
}

func TestSFClient_QueryMalformedNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestSFClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"message": "unexpected token: FORM", "errorCode": "MALFORMED_QUERY"},
		})
	}))

	var accounts []Account
	err := client.Query(context.Background(), "SELECT Id FORM Account", &accounts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sf: query")
	assert.Equal(t, int32(1), calls.Load())
}

func TestSFClient_InsertRetriesLockedRows(t *testing.T) {
	var calls atomic.Int32
	var mu sync.Mutex
	var sizes []int
	client := newTestSFClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var body collectionBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		sizes = append(sizes, len(body.Records))
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			_ = json.NewEncoder(w).Encode([]map[string]any{
				{"id": "003a", "success": true, "errors": []any{}},
				{"id": "", "success": false, "errors": []map[string]any{{"message": lockedMsg}}},
				{"id": "", "success": false, "errors": []map[string]any{{"message": "Required fields are missing: [LastName]"}}},
			})
			return
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": "003b", "success": true, "errors": []any{}},
		})
	}))

	results, err := client.InsertCollection(context.Background(), "Contact", []map[string]any{
		{"LastName": "Doe"},
		{"LastName": "Roe"},
		{"FirstName": "Nameless"},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	mu.Lock()
	assert.Equal(t, []int{3, 1}, sizes)
	mu.Unlock()

	assert.Equal(t, "003a", results[0].ID)
	assert.True(t, results[1].Success)
	assert.Equal(t, "003b", results[1].ID)
	assert.False(t, results[2].Success)
	assert.Equal(t, []string{"Required fields are missing: [LastName]"}, results[2].Errors)
}

func TestSFClient_UpdateGivesUpOnPersistentLock(t *testing.T) {
	var calls atomic.Int32
	client := newTestSFClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		calls.Add(1)
		var body collectionBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Records, 1)
		assert.Equal(t, "001a", body.Records[0]["Id"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": "001a", "success": false, "errors": []map[string]any{{"message": lockedMsg}}},
		})
	}))

	results, err := client.UpdateCollection(context.Background(), "Account", []CollectionRecord{
		{ID: "001a", Fields: map[string]any{"Name": "Acme"}},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSFClient_UpdateCollectionError(t *testing.T) {
	client := newTestSFClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode([]map[string]any{{"message": "batch error"}})
	}))

	_, err := client.UpdateCollection(context.Background(), "Account", []CollectionRecord{
		{ID: "001a", Fields: map[string]any{"Name": "A"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sf: update collection Account")
}

func TestRowLocked(t *testing.T) {
	assert.True(t, rowLocked([]string{"FIELD_CUSTOM_VALIDATION_EXCEPTION", lockedMsg}))
	assert.True(t, rowLocked([]string{"unable to obtain exclusive access to this record or 1 records: 001a"}))
	assert.False(t, rowLocked([]string{"DUPLICATES_DETECTED"}))
	assert.False(t, rowLocked(nil))
}

func TestClassify(t *testing.T) {
	assert.Nil(t, classify(nil))
	assert.True(t, resilience.IsTransient(classify(errors.New("403 REQUEST_LIMIT_EXCEEDED: TotalRequests Limit exceeded"))))
	assert.True(t, resilience.IsTransient(classify(errors.New("503 Service Unavailable"))))
	assert.False(t, resilience.IsTransient(classify(errors.New("400 MALFORMED_QUERY"))))
}
