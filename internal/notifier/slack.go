package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/amishk599/simoradar/internal/model"
)

// Ensure SlackReporter implements model.Reporter.
var _ model.Reporter = (*SlackReporter)(nil)

// SlackReporter posts run summaries to a Slack channel via Incoming Webhooks.
type SlackReporter struct {
	webhookURL string
	httpClient *http.Client
	onlyErrors bool
	logger     *slog.Logger
}

// NewSlackReporter returns a reporter that posts each run to Slack. With
// onlyErrors set, successful runs are not posted.
func NewSlackReporter(webhookURL string, httpClient *http.Client, onlyErrors bool, logger *slog.Logger) *SlackReporter {
	return &SlackReporter{
		webhookURL: webhookURL,
		httpClient: httpClient,
		onlyErrors: onlyErrors,
		logger:     logger,
	}
}

// Report sends the run summary using Block Kit. A 429 is retried once after
// the advertised Retry-After.
func (s *SlackReporter) Report(ctx context.Context, log model.RunLog) error {
	if s.onlyErrors && log.Success {
		return nil
	}

	body, err := json.Marshal(buildPayload(log))
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	status, retryAfter, err := s.post(ctx, body)
	if err != nil {
		return fmt.Errorf("post to slack: %w", err)
	}

	if status == http.StatusTooManyRequests {
		s.logger.Warn("slack rate limited, retrying", "retry_after", retryAfter)
		select {
		case <-time.After(retryAfter):
		case <-ctx.Done():
			return ctx.Err()
		}

		status, _, err = s.post(ctx, body)
		if err != nil {
			return fmt.Errorf("post to slack (retry): %w", err)
		}
		if status != http.StatusOK {
			return fmt.Errorf("slack returned %d on retry", status)
		}
		s.logger.Info("slack run report sent", "run_id", log.ID, "retried", true)
		return nil
	}

	if status != http.StatusOK {
		return fmt.Errorf("slack returned %d", status)
	}
	s.logger.Info("slack run report sent", "run_id", log.ID)
	return nil
}

func (s *SlackReporter) post(ctx context.Context, body []byte) (int, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()

	secs, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
	if secs <= 0 {
		secs = 1
	}
	return resp.StatusCode, time.Duration(secs) * time.Second, nil
}

// Block Kit payload types.

type slackPayload struct {
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type   string      `json:"type"`
	Text   *slackText  `json:"text,omitempty"`
	Fields []slackText `json:"fields,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// SendTestMessage sends a sample run report to verify the integration works.
func SendTestMessage(ctx context.Context, r model.Reporter) error {
	now := time.Now().UTC()
	return r.Report(ctx, model.RunLog{
		ID:             uuid.NewString(),
		Source:         "test",
		StartedAt:      now.Add(-42 * time.Second),
		FinishedAt:     now,
		PagesProcessed: 3,
		RecordsFound:   60,
		RecordsNew:     12,
		RecordsUpdated: 48,
		Success:        true,
		ElapsedSeconds: 42,
	})
}

func buildPayload(log model.RunLog) slackPayload {
	header := "✅ SIMO run complete"
	if !log.Success {
		header = "❌ SIMO run failed"
	}

	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: header},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: "*Source:*\n" + log.Source},
				{Type: "mrkdwn", Text: "*Started:*\n" + log.StartedAt.Format(time.RFC1123)},
				{Type: "mrkdwn", Text: "*Pages:*\n" + strconv.Itoa(log.PagesProcessed)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Elapsed:*\n%.1fs", log.ElapsedSeconds)},
			},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: "*Found:*\n" + strconv.Itoa(log.RecordsFound)},
				{Type: "mrkdwn", Text: "*New:*\n" + strconv.Itoa(log.RecordsNew)},
				{Type: "mrkdwn", Text: "*Updated:*\n" + strconv.Itoa(log.RecordsUpdated)},
				{Type: "mrkdwn", Text: "*Errors:*\n" + strconv.Itoa(log.Errors)},
			},
		},
	}

	if log.ErrorMessage != "" {
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: "*Error:*\n```" + log.ErrorMessage + "```"},
		})
	}

	blocks = append(blocks, slackBlock{Type: "divider"})
	return slackPayload{Blocks: blocks}
}
