// Package suppress filters impact assessments against operator-supplied
// rules before they reach the notifier. Rules are declarative YAML; every
// malformed rule is rejected when the file loads, never during evaluation.
package suppress

import (
	"fmt"
	"os"
	"path"

	"gopkg.in/yaml.v3"

	"thirdwatch.dev/watch/internal/model"
)

// ConfigError reports a malformed suppression rule by position and field.
type ConfigError struct {
	Rule  int
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("suppression rule %d: %s: %v", e.Rule, e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Decision is the outcome of evaluating one assessment. When Suppressed is
// true, Rule points at the first rule that matched, for audit display.
type Decision struct {
	Suppressed bool
	Rule       *model.SuppressionRule
}

// Engine evaluates suppression rules in file order.
type Engine struct {
	rules []model.SuppressionRule
}

// NewEngine validates the rules and builds an engine. Globs are checked
// here with a probe match so a bad pattern cannot surface mid-evaluation.
func NewEngine(rules []model.SuppressionRule) (*Engine, error) {
	for i, rule := range rules {
		if c := rule.ChangeCategory; c != "" && !c.Valid() {
			return nil, &ConfigError{Rule: i, Field: "change_category", Err: fmt.Errorf("unknown category %q (one of %v)", c, model.Categories())}
		}
		if p := rule.MinPriority; p != "" && !p.Valid() {
			return nil, &ConfigError{Rule: i, Field: "min_priority", Err: fmt.Errorf("unknown priority %q", p)}
		}
		if g := rule.Dependency; g != "" {
			if _, err := path.Match(g, "probe"); err != nil {
				return nil, &ConfigError{Rule: i, Field: "dependency", Err: fmt.Errorf("bad glob %q: %w", g, err)}
			}
		}
		if g := rule.FilePath; g != "" {
			if _, err := path.Match(g, "probe"); err != nil {
				return nil, &ConfigError{Rule: i, Field: "file_path", Err: fmt.Errorf("bad glob %q: %w", g, err)}
			}
		}
	}
	return &Engine{rules: rules}, nil
}

type rulesFile struct {
	Rules []model.SuppressionRule `yaml:"rules"`
}

// Load reads suppression rules from a YAML file.
func Load(filePath string) (*Engine, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading suppressions %s: %w", filePath, err)
	}
	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing suppressions %s: %w", filePath, err)
	}
	engine, err := NewEngine(file.Rules)
	if err != nil {
		return nil, fmt.Errorf("suppressions %s: %w", filePath, err)
	}
	return engine, nil
}

// Rules returns the configured rules in evaluation order.
func (e *Engine) Rules() []model.SuppressionRule {
	return e.rules
}

// ShouldSuppress evaluates rules in order and returns the first full match.
// A rule suppresses only when every present field matches (AND semantics);
// absent fields are wildcards.
func (e *Engine) ShouldSuppress(assessment model.ImpactAssessment, event model.ChangeEvent) Decision {
	for i := range e.rules {
		if e.ruleMatches(e.rules[i], assessment, event) {
			return Decision{Suppressed: true, Rule: &e.rules[i]}
		}
	}
	return Decision{}
}

func (e *Engine) ruleMatches(rule model.SuppressionRule, assessment model.ImpactAssessment, event model.ChangeEvent) bool {
	if rule.Dependency != "" {
		if ok, _ := path.Match(rule.Dependency, event.Identifier); !ok {
			return false
		}
	}
	if rule.ChangeCategory != "" && rule.ChangeCategory != event.ChangeType {
		return false
	}
	// min_priority suppresses strictly less urgent work: P3 catches P4 but
	// leaves P3 itself alone.
	if rule.MinPriority != "" && !assessment.Priority.LessUrgentThan(rule.MinPriority) {
		return false
	}
	if rule.FilePath != "" {
		// The rule reads "this change touches only ignorable paths". With no
		// recorded locations that claim cannot be made.
		if len(assessment.AffectedLocations) == 0 {
			return false
		}
		for _, loc := range assessment.AffectedLocations {
			if ok, _ := path.Match(rule.FilePath, loc.File); !ok {
				return false
			}
		}
	}
	return true
}
