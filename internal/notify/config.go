package notify

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"thirdwatch.dev/watch/internal/model"
)

// ConfigError reports an invalid channel definition. Channel carries the
// configured id when present, otherwise the position in the file.
type ConfigError struct {
	Channel string
	Field   string
	Err     error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("channel %s: %s: %v", e.Channel, e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

type channelsFile struct {
	Channels []model.ChannelConfig `yaml:"channels"`
}

// LoadChannels reads and validates a channel configuration file. Every
// problem surfaces at load; Dispatch never re-validates.
func LoadChannels(path string) ([]model.ChannelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading channel config %s: %w", path, err)
	}
	var file channelsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing channel config %s: %w", path, err)
	}
	if err := validateChannels(file.Channels); err != nil {
		return nil, err
	}
	return file.Channels, nil
}

func validateChannels(channels []model.ChannelConfig) error {
	seen := make(map[string]bool, len(channels))
	for i, ch := range channels {
		name := ch.ID
		if name == "" {
			name = fmt.Sprintf("#%d", i)
		}
		if ch.ID == "" {
			return &ConfigError{Channel: name, Field: "id", Err: fmt.Errorf("id is required")}
		}
		// Dedup identity is (change event, channel id); a reused id would
		// merge two channels' ledgers.
		if seen[ch.ID] {
			return &ConfigError{Channel: name, Field: "id", Err: fmt.Errorf("duplicate channel id")}
		}
		seen[ch.ID] = true

		switch ch.Type {
		case model.ChannelWebhook:
			if ch.URL == "" {
				return &ConfigError{Channel: name, Field: "url", Err: fmt.Errorf("url is required for webhook channels")}
			}
			if ch.Secret == "" {
				return &ConfigError{Channel: name, Field: "secret", Err: fmt.Errorf("secret is required to sign webhook deliveries")}
			}
		case model.ChannelSlack:
			if ch.URL == "" {
				return &ConfigError{Channel: name, Field: "url", Err: fmt.Errorf("url is required for slack channels")}
			}
		case model.ChannelConsole:
		default:
			return &ConfigError{Channel: name, Field: "type", Err: fmt.Errorf("unknown channel type %q", ch.Type)}
		}

		for _, p := range ch.Routing.Priorities {
			if !p.Valid() {
				return &ConfigError{Channel: name, Field: "routing.priorities", Err: fmt.Errorf("unknown priority %q", p)}
			}
		}
		for _, c := range ch.Routing.Categories {
			if !c.Valid() {
				return &ConfigError{Channel: name, Field: "routing.categories", Err: fmt.Errorf("unknown category %q", c)}
			}
		}
	}
	return nil
}
