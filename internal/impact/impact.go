// Package impact turns a classified change event into a prioritized impact
// assessment: a weighted score over the dependency's recorded source
// locations, a priority band, a reproducible summary line and an optional
// remediation suggestion. Assessments are derived records and can be
// recomputed from the event plus the manifest at any time.
package impact

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"thirdwatch.dev/watch/core/config"
	"thirdwatch.dev/watch/internal/model"
)

// Suggester produces a remediation suggestion for a change. Implementations
// may call a model; the scorer only consults it for breaking changes and
// treats every failure as "no suggestion".
type Suggester interface {
	Suggest(ctx context.Context, event model.ChangeEvent, dep model.WatchedDependency) (string, error)
}

// Scorer computes impact assessments. Weights come from configuration so
// operators can tune emphasis without a deploy.
type Scorer struct {
	weights   config.ImpactConfig
	remedies  *RemedyRegistry
	suggester Suggester
}

// NewScorer builds a scorer. remedies and suggester may be nil; the
// remediation chain skips whatever is absent.
func NewScorer(weights config.ImpactConfig, remedies *RemedyRegistry, suggester Suggester) *Scorer {
	return &Scorer{weights: weights, remedies: remedies, suggester: suggester}
}

// Assess scores one change event against the dependency it was detected on.
func (s *Scorer) Assess(ctx context.Context, event model.ChangeEvent, dep model.WatchedDependency) model.ImpactAssessment {
	locations := dedupeLocations(dep.Locations)
	files := distinctFiles(locations)

	return model.ImpactAssessment{
		ChangeEventID:     event.ID,
		Priority:          s.priority(event.ChangeType, len(locations)),
		Score:             s.score(locations, files),
		AffectedLocations: locations,
		HumanSummary:      humanSummary(event, len(locations), len(files)),
		Remediation:       s.remediation(ctx, event, dep),
		CreatedAt:         time.Now().UTC(),
	}
}

// score is a weighted sum: usage count, file spread, and a single boost when
// any affected file lies under a configured critical path.
func (s *Scorer) score(locations []model.SourceLocation, files []string) float64 {
	score := float64(len(locations))*s.weights.UsageWeight + float64(len(files))*s.weights.SpreadWeight
	for _, f := range files {
		if s.onCriticalPath(f) {
			score += s.weights.CriticalBoost
			break
		}
	}
	return score
}

// priority maps (category, usage count) to a band. Total over categories;
// for a fixed category never less urgent as usage grows.
func (s *Scorer) priority(category model.ChangeCategory, usageCount int) model.Priority {
	highUsage := usageCount >= s.weights.HighUsageThreshold

	switch category {
	case model.CategorySecurity:
		return model.PriorityP0
	case model.CategoryBreaking:
		if highUsage {
			return model.PriorityP0
		}
		return model.PriorityP1
	case model.CategoryDeprecation:
		if highUsage {
			return model.PriorityP1
		}
		return model.PriorityP2
	case model.CategoryMajorUpdate:
		return model.PriorityP2
	case model.CategoryMinorUpdate:
		return model.PriorityP3
	default:
		return model.PriorityP4
	}
}

func (s *Scorer) onCriticalPath(file string) bool {
	cleaned := path.Clean(file)
	for _, critical := range s.weights.CriticalPaths {
		prefix := strings.TrimSuffix(path.Clean(critical), "/")
		if prefix == "" || prefix == "." {
			continue
		}
		if cleaned == prefix || strings.HasPrefix(cleaned, prefix+"/") {
			return true
		}
	}
	return false
}

// remediation resolves the suggestion chain: registry match, then model
// generation for breaking changes when enabled, then the change URL, then
// nothing. Model failures degrade to the next step.
func (s *Scorer) remediation(ctx context.Context, event model.ChangeEvent, dep model.WatchedDependency) *model.Remediation {
	if s.remedies != nil {
		if suggestion, ok := s.remedies.Lookup(event); ok {
			return &model.Remediation{Suggestion: suggestion, Source: model.RemediationRegistry}
		}
	}

	if s.suggester != nil && event.ChangeType == model.CategoryBreaking {
		suggestion, err := s.suggester.Suggest(ctx, event, dep)
		if err != nil {
			slog.WarnContext(ctx, "remediation model degraded",
				"dependency_key", event.DependencyKey,
				"error", err)
		} else if suggestion != "" {
			return &model.Remediation{Suggestion: suggestion, Source: model.RemediationModel}
		}
	}

	if event.URL != nil && *event.URL != "" {
		return &model.Remediation{
			Suggestion: "Review the upstream release notes: " + *event.URL,
			Source:     model.RemediationFallback,
		}
	}
	return nil
}

// humanSummary is a fixed template over identifier, versions, category and
// counts. Identical inputs always render the same sentence.
func humanSummary(event model.ChangeEvent, locationCount, fileCount int) string {
	versions := event.NewVersion
	if event.PreviousVersion != "" {
		versions = event.PreviousVersion + " to " + event.NewVersion
	}
	if locationCount == 0 {
		return fmt.Sprintf("%s %s is a %s change with no recorded source locations",
			event.Identifier, versions, event.ChangeType)
	}
	return fmt.Sprintf("%s %s is a %s change affecting %s across %s",
		event.Identifier, versions, event.ChangeType,
		count(locationCount, "location"), count(fileCount, "file"))
}

func count(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// dedupeLocations drops repeated file+line pairs, keeping first appearance
// order. Manifest ingest already dedupes, but assessments must hold the
// invariant regardless of where the dependency record came from.
func dedupeLocations(locations []model.SourceLocation) []model.SourceLocation {
	seen := make(map[string]struct{}, len(locations))
	out := make([]model.SourceLocation, 0, len(locations))
	for _, loc := range locations {
		key := fmt.Sprintf("%s:%d", loc.File, loc.Line)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, loc)
	}
	return out
}

func distinctFiles(locations []model.SourceLocation) []string {
	seen := make(map[string]struct{}, len(locations))
	files := make([]string, 0, len(locations))
	for _, loc := range locations {
		if _, dup := seen[loc.File]; dup {
			continue
		}
		seen[loc.File] = struct{}{}
		files = append(files, loc.File)
	}
	return files
}
