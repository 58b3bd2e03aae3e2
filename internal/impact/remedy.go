package impact

import (
	"fmt"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"thirdwatch.dev/watch/internal/model"
)

// RemedyMatch narrows which change events a remedy applies to. ChangeType is
// required; the rest narrow further when present.
type RemedyMatch struct {
	ChangeType        model.ChangeCategory `yaml:"change_type"`
	VersionRange      string               `yaml:"version_range,omitempty"`
	AffectedParameter string               `yaml:"affected_parameter,omitempty"`
	AffectedEndpoint  string               `yaml:"affected_endpoint,omitempty"`
}

// RemedyRule pairs a match with the suggestion to surface.
type RemedyRule struct {
	Match      RemedyMatch `yaml:"match"`
	Suggestion string      `yaml:"suggestion"`
}

type remedyFile struct {
	Providers map[string][]RemedyRule `yaml:"providers"`
}

type compiledRemedy struct {
	rule       RemedyRule
	constraint *semver.Constraints // nil when no version_range
}

// RemedyRegistry holds operator-curated remediation suggestions keyed by
// dependency identifier. Within one provider, rules keep file order and the
// first full match wins.
type RemedyRegistry struct {
	providers map[string][]compiledRemedy
}

// LoadRemedies reads a remedy registry from a YAML file. Version ranges are
// compiled here so malformed rules fail at load, never during assessment.
func LoadRemedies(path string) (*RemedyRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading remediations %s: %w", path, err)
	}
	reg, err := ParseRemedies(data)
	if err != nil {
		return nil, fmt.Errorf("remediations %s: %w", path, err)
	}
	return reg, nil
}

// ParseRemedies decodes and compiles a remedy registry document.
func ParseRemedies(data []byte) (*RemedyRegistry, error) {
	var file remedyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing remediations: %w", err)
	}

	providers := make(map[string][]compiledRemedy, len(file.Providers))
	for provider, rules := range file.Providers {
		compiled := make([]compiledRemedy, 0, len(rules))
		for i, rule := range rules {
			if !rule.Match.ChangeType.Valid() {
				return nil, fmt.Errorf("provider %s rule %d: unknown change_type %q", provider, i, rule.Match.ChangeType)
			}
			if rule.Suggestion == "" {
				return nil, fmt.Errorf("provider %s rule %d: suggestion is required", provider, i)
			}
			c := compiledRemedy{rule: rule}
			if rng := rule.Match.VersionRange; rng != "" {
				constraint, err := semver.NewConstraint(rng)
				if err != nil {
					return nil, fmt.Errorf("provider %s rule %d: version_range %q: %w", provider, i, rng, err)
				}
				c.constraint = constraint
			}
			compiled = append(compiled, c)
		}
		providers[provider] = compiled
	}
	return &RemedyRegistry{providers: providers}, nil
}

// Lookup returns the first suggestion whose match accepts the event.
// Providers are keyed by the dependency identifier the event was raised on.
func (r *RemedyRegistry) Lookup(event model.ChangeEvent) (string, bool) {
	for _, c := range r.providers[event.Identifier] {
		if c.rule.Match.ChangeType != event.ChangeType {
			continue
		}
		if c.constraint != nil && !versionInRange(event.NewVersion, c.constraint) {
			continue
		}
		if p := c.rule.Match.AffectedParameter; p != "" && !eventMentions(event, p) {
			continue
		}
		if e := c.rule.Match.AffectedEndpoint; e != "" && !eventMentions(event, e) {
			continue
		}
		return c.rule.Suggestion, true
	}
	return "", false
}

func versionInRange(version string, constraint *semver.Constraints) bool {
	v, err := semver.NewVersion(strings.TrimPrefix(strings.TrimSpace(version), "v"))
	if err != nil {
		return false
	}
	return constraint.Check(v)
}

// eventMentions reports whether the change's title or body names the given
// parameter or endpoint, case-insensitively.
func eventMentions(event model.ChangeEvent, needle string) bool {
	needle = strings.ToLower(needle)
	if strings.Contains(strings.ToLower(event.Title), needle) {
		return true
	}
	return event.Body != nil && strings.Contains(strings.ToLower(*event.Body), needle)
}
