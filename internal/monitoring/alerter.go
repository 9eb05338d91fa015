// Package monitoring evaluates finished runs against alert thresholds and
// posts breaches to a webhook.
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

	"github.com/sells-group/stopsearch-cli/internal/config"
	"github.com/sells-group/stopsearch-cli/internal/report"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertFailedMonths  AlertType = "failed_months"
	AlertSkipRate      AlertType = "skip_rate"
	AlertExportFailure AlertType = "export_failure"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	RunID     string         `json:"run_id"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a run report against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the report against thresholds and returns any alerts.
func (a *Alerter) Evaluate(rep *report.Report) []Alert {
	if rep == nil {
		return nil
	}
	var alerts []Alert
	now := time.Now().UTC()

	if failed := len(rep.FailedMonths); failed > a.cfg.MaxFailedMonths {
		alerts = append(alerts, Alert{
			Type:     AlertFailedMonths,
			Severity: severity(failed == len(rep.Months)),
			Message: fmt.Sprintf(
				"%d of %d months failed for %d (allowed %d)",
				failed, len(rep.Months), rep.Year, a.cfg.MaxFailedMonths,
			),
			RunID: rep.RunID,
			Details: map[string]any{
				"failed_months": rep.FailedMonths,
				"allowed":       a.cfg.MaxFailedMonths,
			},
			Timestamp: now,
		})
	}

	if t := rep.Totals; a.cfg.SkipRateThreshold > 0 && t.Total > 0 {
		rate := float64(t.Skipped) / float64(t.Total)
		if rate > a.cfg.SkipRateThreshold {
			alerts = append(alerts, Alert{
				Type:     AlertSkipRate,
				Severity: "medium",
				Message: fmt.Sprintf(
					"Skipped %.1f%% of records, threshold %.1f%% (%d of %d, %d without location)",
					rate*100, a.cfg.SkipRateThreshold*100, t.Skipped, t.Total, t.MissingLocation,
				),
				RunID: rep.RunID,
				Details: map[string]any{
					"skip_rate":        rate,
					"threshold":        a.cfg.SkipRateThreshold,
					"missing_location": t.MissingLocation,
				},
				Timestamp: now,
			})
		}
	}

	if n := len(rep.ExportFailures); n > 0 {
		layers := make([]string, 0, n)
		for _, f := range rep.ExportFailures {
			layers = append(layers, f.Sink+"/"+f.Layer)
		}
		alerts = append(alerts, Alert{
			Type:      AlertExportFailure,
			Severity:  "high",
			Message:   fmt.Sprintf("%d layer export(s) failed, %d written", n, rep.LayersWritten),
			RunID:     rep.RunID,
			Details:   map[string]any{"layers": layers},
			Timestamp: now,
		})
	}

	return alerts
}

func severity(total bool) string {
	if total {
		return "high"
	}
	return "medium"
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
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// Check evaluates rep, logs every alert and sends them. It returns the
// alerts raised.
func (a *Alerter) Check(ctx context.Context, rep *report.Report) []Alert {
	alerts := a.Evaluate(rep)
	for _, al := range alerts {
		zap.L().Warn("monitoring: alert",
			zap.String("type", string(al.Type)),
			zap.String("severity", al.Severity),
			zap.String("message", al.Message),
		)
	}
	a.SendAlerts(ctx, alerts)
	return alerts
}

// sendWebhook posts a single alert to the webhook URL.
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
