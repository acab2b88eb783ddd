// Package salesforce pushes campaign-ready accounts and contacts to
// Salesforce over the REST API.
package salesforce

import (
	"context"
	"strings"
	"time"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/outreach-cli/internal/resilience"
)

// Client defines the Salesforce API operations used by the push step.
type Client interface {
	Query(ctx context.Context, soql string, out any) error
	InsertCollection(ctx context.Context, sObjectName string, records []map[string]any) ([]CollectionResult, error)
	UpdateCollection(ctx context.Context, sObjectName string, records []CollectionRecord) ([]CollectionResult, error)
}

// CollectionRecord is one record in a collection update.
type CollectionRecord struct {
	ID     string         `json:"Id"`
	Fields map[string]any `json:"fields"`
}

// CollectionResult is the outcome of a single record in a collection operation.
type CollectionResult struct {
	ID      string   `json:"id"`
	Success bool     `json:"success"`
	Errors  []string `json:"errors"`
}

// ClientOption configures the Salesforce client.
type ClientOption func(*sfClient)

// WithRateLimit sets a per-second rate limit for SF API calls.
func WithRateLimit(rps float64) ClientOption {
	return func(c *sfClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// WithRetry sets how often queries and row-locked collection records are
// retried.
func WithRetry(cfg resilience.RetryConfig) ClientOption {
	return func(c *sfClient) { c.retry = cfg }
}

// sfClient wraps go-salesforce. The library takes no context, so ctx only
// bounds rate limiter waits and retry backoff.
type sfClient struct {
	sf      *salesforce.Salesforce
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClient wraps an initialized go-salesforce instance.
func NewClient(sf *salesforce.Salesforce, opts ...ClientOption) Client {
	c := &sfClient{sf: sf, retry: resilience.DefaultRetryConfig()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *sfClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "sf: rate limit")
	}
	return nil
}

// Query runs a SOQL query, retrying API limit and availability errors.
func (c *sfClient) Query(ctx context.Context, soql string, out any) error {
	_, err := resilience.Do(ctx, c.retry, "sf.query", func(ctx context.Context) (struct{}, error) {
		if err := c.wait(ctx); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, classify(c.sf.Query(soql, out))
	})
	if err != nil {
		return eris.Wrap(err, "sf: query")
	}
	return nil
}

func (c *sfClient) InsertCollection(ctx context.Context, sObjectName string, records []map[string]any) ([]CollectionResult, error) {
	results, err := c.collection(ctx, sObjectName, records, func(batch []map[string]any) ([]CollectionResult, error) {
		res, err := c.sf.InsertCollection(sObjectName, batch, maxBatchSize)
		if err != nil {
			return nil, err
		}
		out := make([]CollectionResult, len(res.Results))
		for i, r := range res.Results {
			out[i] = CollectionResult{ID: r.Id, Success: r.Success}
			for _, e := range r.Errors {
				out[i].Errors = append(out[i].Errors, e.Message)
			}
		}
		return out, nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "sf: insert collection %s", sObjectName)
	}
	return results, nil
}

func (c *sfClient) UpdateCollection(ctx context.Context, sObjectName string, records []CollectionRecord) ([]CollectionResult, error) {
	maps := make([]map[string]any, len(records))
	for i, rec := range records {
		m := make(map[string]any, len(rec.Fields)+1)
		for k, v := range rec.Fields {
			m[k] = v
		}
		m["Id"] = rec.ID
		maps[i] = m
	}

	results, err := c.collection(ctx, sObjectName, maps, func(batch []map[string]any) ([]CollectionResult, error) {
		res, err := c.sf.UpdateCollection(sObjectName, batch, maxBatchSize)
		if err != nil {
			return nil, err
		}
		out := make([]CollectionResult, len(res.Results))
		for i, r := range res.Results {
			out[i] = CollectionResult{ID: r.Id, Success: r.Success}
			for _, e := range r.Errors {
				out[i].Errors = append(out[i].Errors, e.Message)
			}
		}
		return out, nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "sf: update collection %s", sObjectName)
	}
	return results, nil
}

// collection sends records and resends only those that failed on a row
// lock, until none are locked or the retry attempts run out. Results are
// returned in input order.
func (c *sfClient) collection(ctx context.Context, sObjectName string, records []map[string]any, send func([]map[string]any) ([]CollectionResult, error)) ([]CollectionResult, error) {
	results := make([]CollectionResult, len(records))
	pending := make([]int, len(records))
	for i := range pending {
		pending[i] = i
	}

	attempts := max(c.retry.MaxAttempts, 1)
	for attempt := 1; ; attempt++ {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		batch := make([]map[string]any, len(pending))
		for j, idx := range pending {
			batch[j] = records[idx]
		}

		res, err := send(batch)
		if err != nil {
			return nil, err
		}
		if len(res) != len(batch) {
			return nil, eris.Errorf("sf: %d results for %d records", len(res), len(batch))
		}

		var locked []int
		for j, r := range res {
			results[pending[j]] = r
			if !r.Success && rowLocked(r.Errors) {
				locked = append(locked, pending[j])
			}
		}
		if len(locked) == 0 || attempt >= attempts {
			return results, nil
		}

		zap.L().Warn("sf: retrying locked records",
			zap.String("sobject", sObjectName),
			zap.Int("records", len(locked)),
			zap.Int("attempt", attempt),
		)
		select {
		case <-ctx.Done():
			return results, nil
		case <-time.After(c.retry.InitialBackoff * time.Duration(attempt)):
		}
		pending = locked
	}
}

// rowLocked reports whether a record failed on UNABLE_TO_LOCK_ROW, which
// Salesforce raises when another transaction holds the parent account.
func rowLocked(errs []string) bool {
	for _, e := range errs {
		if strings.Contains(e, "UNABLE_TO_LOCK_ROW") || strings.Contains(e, "unable to obtain exclusive access") {
			return true
		}
	}
	return false
}

var transientCodes = []string{
	"REQUEST_LIMIT_EXCEEDED",
	"SERVER_UNAVAILABLE",
	"Service Unavailable",
}

// classify marks API limit and availability errors as transient.
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	for _, code := range transientCodes {
		if strings.Contains(msg, code) {
			return resilience.NewTransientError(err, 0)
		}
	}
	return err
}
