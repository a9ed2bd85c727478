// Package slack posts reviewer alerts for enrollment events to a Slack
// incoming webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Strob0t/CourseForge/internal/port/messagequeue"
)

// ErrNotConfigured is returned when no webhook URL is set.
var ErrNotConfigured = errors.New("slack: webhook url not configured")

// Notifier sends enrollment alerts to Slack via incoming webhook.
type Notifier struct {
	webhookURL string
	consoleURL string
	httpClient *http.Client
}

// NewNotifier creates a Slack notifier. consoleURL, when set, is linked from
// each alert so reviewers can jump to the request.
func NewNotifier(webhookURL, consoleURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		consoleURL: strings.TrimRight(consoleURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// slackMessage is the Slack Block Kit message payload.
type slackMessage struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type string     `json:"type"`
	Text *slackText `json:"text,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// HandleEvent is a messagequeue.Handler for the enrollment subjects.
// Unknown subjects are acknowledged without an alert.
func (n *Notifier) HandleEvent(ctx context.Context, subject string, data []byte) error {
	var ev messagequeue.EnrollmentEventPayload
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("slack decode %s: %w", subject, err)
	}

	var header string
	switch subject {
	case messagequeue.SubjectEnrollmentSubmitted:
		header = "[PENDING] Manual enrollment awaiting review"
	case messagequeue.SubjectEnrollmentReviewed:
		header = fmt.Sprintf("%s Manual enrollment %s", statusTag(ev.Status), ev.Status)
	default:
		slog.DebugContext(ctx, "slack: ignoring subject", "subject", subject)
		return nil
	}
	return n.send(ctx, header, n.describe(&ev))
}

func (n *Notifier) describe(ev *messagequeue.EnrollmentEventPayload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Request* #%d (tenant %d)\n*Learner* %s\n*Course* %s",
		ev.RequestID, ev.TenantID, ev.LearnerEmail, ev.CourseID)
	if n.consoleURL != "" {
		fmt.Fprintf(&b, "\n<%s/manual-enrollments/%d?tenantId=%d|Open in console>",
			n.consoleURL, ev.RequestID, ev.TenantID)
	}
	return b.String()
}

func (n *Notifier) send(ctx context.Context, header, body string) error {
	if n.webhookURL == "" {
		return ErrNotConfigured
	}

	msg := slackMessage{
		Text: header,
		Blocks: []slackBlock{
			{Type: "header", Text: &slackText{Type: "plain_text", Text: header}},
			{Type: "section", Text: &slackText{Type: "mrkdwn", Text: body}},
		},
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req) //nolint:gosec // webhook URL from trusted config
	if err != nil {
		return fmt.Errorf("slack send: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("slack API %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func statusTag(status string) string {
	switch status {
	case "approved":
		return "[OK]"
	case "rejected":
		return "[REJECTED]"
	default:
		return "[INFO]"
	}
}
