package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// SlackAdapter posts to a Slack incoming webhook. Incoming webhooks carry no
// message identity back, so deliveries record only the fact of the send.
type SlackAdapter struct {
	url  string
	http *http.Client
}

func NewSlackAdapter(url string, client *http.Client) *SlackAdapter {
	if client == nil {
		client = &http.Client{Timeout: adapterTimeout}
	}
	return &SlackAdapter{url: url, http: client}
}

type slackMessage struct {
	Text string `json:"text"`
}

func (s *SlackAdapter) Send(ctx context.Context, n Notification) (*Delivery, error) {
	body, err := json.Marshal(slackMessage{Text: slackText(n)})
	if err != nil {
		return nil, fmt.Errorf("encoding slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("posting to slack: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("slack returned status %d", resp.StatusCode)
	}
	return &Delivery{}, nil
}

func slackText(n Notification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*[%s] %s*: %s %s",
		n.Assessment.Priority, n.Event.ChangeType, n.Event.Identifier, versionSpan(n.Event.PreviousVersion, n.Event.NewVersion))
	if n.Repository != "" {
		fmt.Fprintf(&b, " in %s", n.Repository)
	}
	if n.Assessment.HumanSummary != "" {
		b.WriteString("\n")
		b.WriteString(n.Assessment.HumanSummary)
	}
	if r := n.Assessment.Remediation; r != nil {
		fmt.Fprintf(&b, "\nRemediation (%s): %s", r.Source, r.Suggestion)
	}
	if n.Event.URL != nil {
		b.WriteString("\n")
		b.WriteString(*n.Event.URL)
	}
	return b.String()
}

func versionSpan(previous, next string) string {
	if previous == "" {
		return next
	}
	return fmt.Sprintf("%s to %s", previous, next)
}
