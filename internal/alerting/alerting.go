// Package alerting posts webhook and email alerts when a scheduled recompute
// fails.
package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Payload formats.
const (
	TypeSlack   = "slack"
	TypeDiscord = "discord"
	TypeGeneric = "generic"
)

type Config struct {
	WebhookURL string
	// WebhookType is slack, discord or generic. Empty detects it from the URL.
	WebhookType string
	// MinFailures is the number of failed projects that triggers an alert. A
	// failed job always alerts.
	MinFailures int
	Timeout     time.Duration
	// Mailer, when set, receives the alert as an email too.
	Mailer Mailer
}

// Mailer is satisfied by notification.Mailer.
type Mailer interface {
	Send(ctx context.Context, subject, body string) error
}

// DetectType guesses the payload format from a webhook URL.
func DetectType(url string) string {
	switch {
	case strings.Contains(url, "hooks.slack.com"):
		return TypeSlack
	case strings.Contains(url, "discord.com"):
		return TypeDiscord
	}
	return TypeGeneric
}

// Alerter sends alerts to a webhook and a mailer. With neither it is off.
type Alerter struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config) *Alerter {
	if cfg.WebhookType == "" {
		cfg.WebhookType = DetectType(cfg.WebhookURL)
	}
	if cfg.MinFailures < 1 {
		cfg.MinFailures = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Alerter{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

func (a *Alerter) Enabled() bool {
	return a != nil && (a.cfg.WebhookURL != "" || a.cfg.Mailer != nil)
}

// JobAlert summarises one recompute.
type JobAlert struct {
	JobName   string
	RunID     string
	Projects  int
	Failed    []ProjectFailure
	JobError  string
	Duration  time.Duration
	Timestamp time.Time
}

type ProjectFailure struct {
	Project string `json:"project"`
	Error   string `json:"error"`
}

func (j JobAlert) headline() string {
	if j.JobError != "" {
		return fmt.Sprintf("%s failed: %s", j.JobName, j.JobError)
	}
	return fmt.Sprintf("%s: %d/%d projects failed", j.JobName, len(j.Failed), j.Projects)
}

// Send posts the alert unless alerting is off or the job succeeded with
// fewer failed projects than the threshold. It reports whether a request
// was made.
func (a *Alerter) Send(ctx context.Context, alert JobAlert) (bool, error) {
	if !a.Enabled() {
		return false, nil
	}
	if alert.JobError == "" && len(alert.Failed) < a.cfg.MinFailures {
		slog.Debug("alerting: below threshold", "failed", len(alert.Failed), "min", a.cfg.MinFailures)
		return false, nil
	}
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now().UTC()
	}

	var errs []error
	sent := false
	if a.cfg.Mailer != nil {
		sent = true
		if err := a.cfg.Mailer.Send(ctx, alert.headline(), textBody(alert)); err != nil {
			errs = append(errs, fmt.Errorf("email alert: %w", err))
		}
	}
	if a.cfg.WebhookURL != "" {
		sent = true
		if err := a.post(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return sent, err
	}
	slog.Info("alerting: alert sent", "job", alert.JobName, "failed", len(alert.Failed))
	return sent, nil
}

func (a *Alerter) post(ctx context.Context, alert JobAlert) error {
	var body any
	switch a.cfg.WebhookType {
	case TypeSlack:
		body = slackPayload(alert)
	case TypeDiscord:
		body = discordPayload(alert)
	default:
		body = genericPayload(alert)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("build payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("send alert: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func textBody(j JobAlert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Job:       %s\n", j.JobName)
	if j.RunID != "" {
		fmt.Fprintf(&b, "Run:       %s\n", j.RunID)
	}
	fmt.Fprintf(&b, "Projects:  %d\n", j.Projects)
	fmt.Fprintf(&b, "Failed:    %d\n", len(j.Failed))
	fmt.Fprintf(&b, "Duration:  %s\n", j.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "Timestamp: %s\n", j.Timestamp.Format(time.RFC3339))
	if j.JobError != "" {
		fmt.Fprintf(&b, "\nError: %s\n", j.JobError)
	}
	if len(j.Failed) > 0 {
		b.WriteString("\nFailed projects:\n")
		b.WriteString(failureList(j.Failed, ""))
	}
	return b.String()
}

func failureList(fs []ProjectFailure, bold string) string {
	var b strings.Builder
	for _, f := range fs {
		fmt.Fprintf(&b, "• %s%s%s: %s\n", bold, f.Project, bold, f.Error)
	}
	return b.String()
}

func slackPayload(j JobAlert) map[string]any {
	blocks := []map[string]any{
		{
			"type": "header",
			"text": map[string]string{"type": "plain_text", "text": ":warning: " + j.headline()},
		},
		{
			"type": "section",
			"fields": []map[string]string{
				{"type": "mrkdwn", "text": fmt.Sprintf("*Run:*\n%s", j.RunID)},
				{"type": "mrkdwn", "text": fmt.Sprintf("*Duration:*\n%s", j.Duration.Round(time.Millisecond))},
				{"type": "mrkdwn", "text": fmt.Sprintf("*Timestamp:*\n%s", j.Timestamp.Format(time.RFC3339))},
			},
		},
	}
	if len(j.Failed) > 0 {
		blocks = append(blocks, map[string]any{
			"type": "section",
			"text": map[string]string{"type": "mrkdwn", "text": "*Failed projects:*\n" + failureList(j.Failed, "*")},
		})
	}
	return map[string]any{"blocks": blocks}
}

func discordPayload(j JobAlert) map[string]any {
	color := 16776960 // yellow
	if j.JobError != "" {
		color = 16711680 // red
	}
	fields := []map[string]any{
		{"name": "Projects", "value": fmt.Sprint(j.Projects), "inline": true},
		{"name": "Failed", "value": fmt.Sprint(len(j.Failed)), "inline": true},
		{"name": "Duration", "value": j.Duration.Round(time.Millisecond).String(), "inline": true},
	}
	if len(j.Failed) > 0 {
		fields = append(fields, map[string]any{"name": "Failed projects", "value": failureList(j.Failed, "**")})
	}
	return map[string]any{
		"embeds": []map[string]any{{
			"title":     j.headline(),
			"color":     color,
			"fields":    fields,
			"timestamp": j.Timestamp.Format(time.RFC3339),
		}},
	}
}

func genericPayload(j JobAlert) map[string]any {
	return map[string]any{
		"alert_type":   "recompute_failure",
		"job_name":     j.JobName,
		"run_id":       j.RunID,
		"projects":     j.Projects,
		"failed_count": len(j.Failed),
		"failed":       j.Failed,
		"job_error":    j.JobError,
		"duration_ms":  j.Duration.Milliseconds(),
		"timestamp":    j.Timestamp.Format(time.RFC3339),
	}
}
