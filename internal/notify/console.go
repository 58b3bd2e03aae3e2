package notify

import (
	"context"
	"log/slog"
)

// ConsoleAdapter renders notifications through the process logger. The CLI
// wires it as its default channel so a one-shot check needs no channel file.
type ConsoleAdapter struct{}

func NewConsoleAdapter() *ConsoleAdapter { return &ConsoleAdapter{} }

func (c *ConsoleAdapter) Send(ctx context.Context, n Notification) (*Delivery, error) {
	attrs := []any{
		"priority", string(n.Assessment.Priority),
		"category", string(n.Event.ChangeType),
		"dependency", n.Event.Identifier,
		"version", versionSpan(n.Event.PreviousVersion, n.Event.NewVersion),
		"score", n.Assessment.Score,
		"summary", n.Assessment.HumanSummary,
	}
	if r := n.Assessment.Remediation; r != nil {
		attrs = append(attrs, "remediation", r.Suggestion, "remediation_source", string(r.Source))
	}
	if n.Event.URL != nil {
		attrs = append(attrs, "url", *n.Event.URL)
	}
	slog.InfoContext(ctx, "dependency change detected", attrs...)
	return &Delivery{}, nil
}
