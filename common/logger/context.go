package logger

import (
	"context"
	"log/slog"
)

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within
// a context. Fields flow through context enrichment, so pipeline code never
// repeats dependency/event identifiers in individual log statements.
type LogFields struct {
	DependencyKey *string // canonical kind:ecosystem:identifier key
	ChangeEventID *int64  // detected change event ID
	Provider      *string // registry provider (npm, pypi, github, gitlab)
	ChannelID     *string // notification channel ID
	MessageID     *string // Redis stream message ID
	Component     string  // component name, e.g. "watch.checker"
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking
// precedence. Context timeouts and cancellation are preserved.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, update LogFields) LogFields {
	result := existing

	if update.DependencyKey != nil {
		result.DependencyKey = update.DependencyKey
	}
	if update.ChangeEventID != nil {
		result.ChangeEventID = update.ChangeEventID
	}
	if update.Provider != nil {
		result.Provider = update.Provider
	}
	if update.ChannelID != nil {
		result.ChannelID = update.ChannelID
	}
	if update.MessageID != nil {
		result.MessageID = update.MessageID
	}
	if update.Component != "" {
		result.Component = update.Component
	}

	return result
}

// attrs renders the set fields as slog attributes, in a fixed order.
func (f LogFields) attrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, 6)
	if f.DependencyKey != nil {
		attrs = append(attrs, slog.String("dependency_key", *f.DependencyKey))
	}
	if f.ChangeEventID != nil {
		attrs = append(attrs, slog.Int64("change_event_id", *f.ChangeEventID))
	}
	if f.Provider != nil {
		attrs = append(attrs, slog.String("provider", *f.Provider))
	}
	if f.ChannelID != nil {
		attrs = append(attrs, slog.String("channel_id", *f.ChannelID))
	}
	if f.MessageID != nil {
		attrs = append(attrs, slog.String("message_id", *f.MessageID))
	}
	if f.Component != "" {
		attrs = append(attrs, slog.String("component", f.Component))
	}
	return attrs
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{ChangeEventID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen characters, appending "..." if
// truncated. Useful for logging potentially long strings like changelog
// bodies or error messages.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
