// Package verifier is the HTTP client for the email verification and
// contact enrichment provider.
package verifier

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/resilience"
)

// Provider is recorded on enrichment attempts made through this client.
const Provider = "verifier"

// Client defines the provider operations.
type Client interface {
	// VerifyEmail checks deliverability of a single address.
	VerifyEmail(ctx context.Context, email string) (model.VerificationStatus, error)
	// Enrich looks a person up and returns the fields the provider found.
	Enrich(ctx context.Context, p *model.Person) (*EnrichResult, error)
}

// EnrichResult is the provider's answer to an enrichment lookup.
type EnrichResult struct {
	Found  bool              `json:"found"`
	Fields map[string]string `json:"fields"`
}

type verifyRequest struct {
	Email string `json:"email"`
}

type verifyResponse struct {
	Email  string `json:"email"`
	Result string `json:"result"`
}

type enrichRequest struct {
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	CompanyDomain string `json:"company_domain,omitempty"`
	LinkedInURL   string `json:"linkedin_url,omitempty"`
	Email         string `json:"email,omitempty"`
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps requests per second. Zero disables limiting.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

// WithRetry overrides the retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

// WithCircuitBreaker overrides the breaker settings.
func WithCircuitBreaker(cfg resilience.CircuitBreakerConfig) Option {
	return func(c *httpClient) {
		c.breaker = resilience.NewCircuitBreaker("verifier", cfg)
	}
}

type httpClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

// NewClient creates a client for the provider at baseURL.
func NewClient(baseURL, apiKey string, opts ...Option) Client {
	c := &httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http: &http.Client{
			Timeout: 20 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(5, 5),
		retry:   resilience.DefaultRetryConfig(),
		breaker: resilience.NewCircuitBreaker("verifier", resilience.NewCircuitBreakerConfig(0, 0)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) VerifyEmail(ctx context.Context, email string) (model.VerificationStatus, error) {
	if email == "" {
		return "", eris.New("verifier: email is required")
	}

	var resp verifyResponse
	if err := c.post(ctx, "/v1/verify", verifyRequest{Email: email}, &resp); err != nil {
		return "", eris.Wrapf(err, "verifier: verify %s", email)
	}

	switch strings.ToLower(resp.Result) {
	case "deliverable", "valid":
		return model.VerificationValid, nil
	case "undeliverable", "invalid":
		return model.VerificationInvalid, nil
	}
	return model.VerificationUnknown, nil
}

func (c *httpClient) Enrich(ctx context.Context, p *model.Person) (*EnrichResult, error) {
	if p == nil {
		return nil, eris.New("verifier: person is required")
	}

	req := enrichRequest{
		FirstName:     p.FirstName,
		LastName:      p.LastName,
		CompanyDomain: p.CompanyDomain,
		LinkedInURL:   p.LinkedInURL,
		Email:         p.Email,
	}
	var resp EnrichResult
	if err := c.post(ctx, "/v1/enrich", req, &resp); err != nil {
		return nil, eris.Wrapf(err, "verifier: enrich %s", p.ID)
	}
	return &resp, nil
}

// post sends one JSON request through the rate limiter, circuit breaker and
// retry policy, decoding a 2xx body into out.
func (c *httpClient) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	raw, err := resilience.Execute(ctx, c.breaker, func(ctx context.Context) ([]byte, error) {
		return resilience.Do(ctx, c.retry, "verifier"+path, func(ctx context.Context) ([]byte, error) {
			if c.limiter != nil {
				if err := c.limiter.Wait(ctx); err != nil {
					return nil, eris.Wrap(err, "rate limit")
				}
			}
			return c.do(ctx, path, body)
		})
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return eris.Wrap(err, "decode response")
	}
	return nil
}

func (c *httpClient) do(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "read response"), resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resilience.StatusError("verifier", resp.StatusCode, string(raw))
	}
	return raw, nil
}
