package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/config"
	"github.com/sells-group/outreach-cli/internal/pipeline"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertSweepFailureRate AlertType = "sweep_failure_rate"
	AlertSweepAborted     AlertType = "sweep_aborted"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	RunID     string         `json:"run_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates sweep results against configured thresholds and sends
// alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
	now    func() time.Time
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	if cfg.MinRecords <= 0 {
		cfg.MinRecords = 5
	}
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate checks a finished sweep and returns any alerts. sweepErr is the
// error the sweep itself returned, if any; res may be nil when the sweep
// never started.
func (a *Alerter) Evaluate(res *pipeline.BatchResult, sweepErr error) []Alert {
	var alerts []Alert
	now := a.now()

	if sweepErr != nil && !eris.Is(sweepErr, context.Canceled) {
		alert := Alert{
			Type:      AlertSweepAborted,
			Severity:  "high",
			Message:   fmt.Sprintf("Sweep aborted: %v", sweepErr),
			Timestamp: now,
		}
		if res != nil {
			alert.RunID = res.RunID
			alert.Details = map[string]any{
				"phase":     string(res.Phase),
				"processed": res.Processed,
			}
		}
		alerts = append(alerts, alert)
	}
	if res == nil || a.cfg.FailureRateThreshold <= 0 {
		return alerts
	}

	// Skipped records never entered the phase.
	attempted := res.Processed - res.Skipped
	if attempted < a.cfg.MinRecords {
		return alerts
	}
	rate := float64(res.Failed) / float64(attempted)
	if rate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertSweepFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"%s sweep failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d attempted)",
				res.Phase, rate*100, a.cfg.FailureRateThreshold*100, res.Failed, attempted,
			),
			RunID: res.RunID,
			Details: map[string]any{
				"phase":        string(res.Phase),
				"failure_rate": rate,
				"threshold":    a.cfg.FailureRateThreshold,
				"failed":       res.Failed,
				"attempted":    attempted,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// Check evaluates a sweep and sends whatever alerts it raises. Returns the
// number of alerts successfully sent.
func (a *Alerter) Check(ctx context.Context, res *pipeline.BatchResult, sweepErr error) int {
	return a.SendAlerts(ctx, a.Evaluate(res, sweepErr))
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("run_id", alert.RunID),
		)
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
