package model

import "time"

// ChannelType discriminates notification channel adapters.
type ChannelType string

const (
	ChannelWebhook ChannelType = "webhook"
	ChannelSlack   ChannelType = "slack"
	ChannelConsole ChannelType = "console"
)

// RoutingRule decides whether a channel receives an assessment. Empty fields
// are wildcards; populated fields must all accept.
type RoutingRule struct {
	Priorities   []Priority       `json:"priorities,omitempty" yaml:"priorities,omitempty"`
	Categories   []ChangeCategory `json:"categories,omitempty" yaml:"categories,omitempty"`
	Repositories []string         `json:"repositories,omitempty" yaml:"repositories,omitempty"`
}

type ChannelConfig struct {
	ID      string      `json:"id" yaml:"id"`
	Type    ChannelType `json:"type" yaml:"type"`
	URL     string      `json:"url,omitempty" yaml:"url,omitempty"`
	Secret  string      `json:"-" yaml:"secret,omitempty"` // never expose secrets in API
	Routing RoutingRule `json:"routing,omitempty" yaml:"routing,omitempty"`
}

// DeliveryRecord is one entry in the dedup ledger. Identity is
// (ChangeEventID, ChannelID); a recorded pair is never delivered again.
type DeliveryRecord struct {
	ChangeEventID int64     `json:"change_event_id"`
	ChannelID     string    `json:"channel_id"`
	ExternalID    *string   `json:"external_id,omitempty"`
	URL           *string   `json:"url,omitempty"`
	DeliveredAt   time.Time `json:"delivered_at"`
}

// NotificationResult reports one delivery attempt to one channel.
type NotificationResult struct {
	ChannelID    string  `json:"channel_id"`
	Success      bool    `json:"success"`
	Deduplicated bool    `json:"deduplicated"`
	ExternalID   *string `json:"external_id,omitempty"`
	URL          *string `json:"url,omitempty"`
	Error        string  `json:"error,omitempty"`
}
