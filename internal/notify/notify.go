// Package notify routes surviving impact assessments to configured channels.
// Routing predicates are AND-ed with absent fields as wildcards; a delivery
// ledger keyed on (change event, channel) keeps redelivered checks from
// notifying twice. Channel failures stay on their channel: one broken
// webhook never blocks the rest of the fan-out.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"thirdwatch.dev/watch/common/logger"
	"thirdwatch.dev/watch/common/metrics"
	"thirdwatch.dev/watch/internal/model"
	"thirdwatch.dev/watch/internal/store"
)

// Notification is the unit handed to channel adapters: the change, its
// assessment and the repository the manifest was scanned from.
type Notification struct {
	Event      model.ChangeEvent
	Assessment model.ImpactAssessment
	Repository string
}

// Delivery carries whatever the channel reported back about a sent message.
type Delivery struct {
	ExternalID string
	URL        string
}

// Adapter is the single capability every channel type implements.
type Adapter interface {
	Send(ctx context.Context, n Notification) (*Delivery, error)
}

// NotificationError wraps a channel failure with the channel's identity.
type NotificationError struct {
	ChannelID string
	Err       error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("channel %s: %v", e.ChannelID, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }

// BoundChannel pairs a channel's config with the adapter that delivers to it.
type BoundChannel struct {
	Config  model.ChannelConfig
	Adapter Adapter
}

// Bind constructs an adapter for every channel config. Configs should come
// from LoadChannels; an unknown type still fails here as a ConfigError.
func Bind(channels []model.ChannelConfig) ([]BoundChannel, error) {
	bound := make([]BoundChannel, 0, len(channels))
	for _, cfg := range channels {
		adapter, err := buildAdapter(cfg)
		if err != nil {
			return nil, &ConfigError{Channel: cfg.ID, Field: "type", Err: err}
		}
		bound = append(bound, BoundChannel{Config: cfg, Adapter: adapter})
	}
	return bound, nil
}

func buildAdapter(cfg model.ChannelConfig) (Adapter, error) {
	switch cfg.Type {
	case model.ChannelWebhook:
		return NewWebhookAdapter(cfg.URL, cfg.Secret, nil), nil
	case model.ChannelSlack:
		return NewSlackAdapter(cfg.URL, nil), nil
	case model.ChannelConsole:
		return NewConsoleAdapter(), nil
	default:
		return nil, fmt.Errorf("unknown channel type %q", cfg.Type)
	}
}

// Router fans a notification out to every channel whose routing rule
// accepts it.
type Router struct {
	channels []BoundChannel
	ledger   store.DeliveryStore
	metrics  *metrics.Metrics
}

func NewRouter(channels []BoundChannel, ledger store.DeliveryStore, m *metrics.Metrics) *Router {
	return &Router{channels: channels, ledger: ledger, metrics: m}
}

// Dispatch delivers one notification to every matching channel and reports
// per-channel results. It never returns an error: failures are results.
func (r *Router) Dispatch(ctx context.Context, n Notification) []model.NotificationResult {
	var results []model.NotificationResult
	for _, ch := range r.channels {
		if !routeMatches(ch.Config.Routing, n) {
			continue
		}
		results = append(results, r.deliver(ctx, ch, n))
	}
	return results
}

func routeMatches(rule model.RoutingRule, n Notification) bool {
	if len(rule.Priorities) > 0 && !slices.Contains(rule.Priorities, n.Assessment.Priority) {
		return false
	}
	if len(rule.Categories) > 0 && !slices.Contains(rule.Categories, n.Event.ChangeType) {
		return false
	}
	if len(rule.Repositories) > 0 && !slices.Contains(rule.Repositories, n.Repository) {
		return false
	}
	return true
}

func (r *Router) deliver(ctx context.Context, ch BoundChannel, n Notification) model.NotificationResult {
	channelType := string(ch.Config.Type)
	result := model.NotificationResult{ChannelID: ch.Config.ID}

	if _, err := r.ledger.Get(ctx, n.Event.ID, ch.Config.ID); err == nil {
		r.metrics.RecordNotification(channelType, "deduplicated")
		result.Success = true
		result.Deduplicated = true
		return result
	} else if !errors.Is(err, store.ErrNotFound) {
		// A broken ledger must not cause a double send.
		r.metrics.RecordNotification(channelType, "failed")
		result.Error = (&NotificationError{ChannelID: ch.Config.ID, Err: fmt.Errorf("dedup lookup: %w", err)}).Error()
		return result
	}

	delivery, err := ch.Adapter.Send(ctx, n)
	if err != nil {
		r.metrics.RecordNotification(channelType, "failed")
		notifErr := &NotificationError{ChannelID: ch.Config.ID, Err: err}
		slog.WarnContext(ctx, "notification delivery failed",
			"channel_id", ch.Config.ID,
			"change_event_id", n.Event.ID,
			"error", notifErr)
		result.Error = notifErr.Error()
		return result
	}

	record := model.DeliveryRecord{
		ChangeEventID: n.Event.ID,
		ChannelID:     ch.Config.ID,
		DeliveredAt:   time.Now().UTC(),
	}
	if delivery != nil {
		if delivery.ExternalID != "" {
			record.ExternalID = logger.Ptr(delivery.ExternalID)
			result.ExternalID = record.ExternalID
		}
		if delivery.URL != "" {
			record.URL = logger.Ptr(delivery.URL)
			result.URL = record.URL
		}
	}
	if err := r.ledger.Record(ctx, record); err != nil {
		// Delivered but not recorded: the next cycle may send again. Prefer
		// a duplicate over a silent drop.
		slog.WarnContext(ctx, "delivery record write failed",
			"channel_id", ch.Config.ID,
			"change_event_id", n.Event.ID,
			"error", err)
	}

	r.metrics.RecordNotification(channelType, "delivered")
	result.Success = true
	return result
}
