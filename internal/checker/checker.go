// Package checker runs check cycles: pick the provider adapter for a watched
// dependency, diff the latest upstream release against the baseline, classify
// the change and record a ChangeEvent. One dependency's failure never aborts
// a batch; callers get a CheckResult per dependency and carry on.
package checker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"thirdwatch.dev/watch/common/id"
	"thirdwatch.dev/watch/common/logger"
	"thirdwatch.dev/watch/common/metrics"
	"thirdwatch.dev/watch/internal/classify"
	"thirdwatch.dev/watch/internal/model"
	"thirdwatch.dev/watch/internal/registry"
	"thirdwatch.dev/watch/internal/store"
)

// ErrNoAdapter marks a dependency no registry adapter can serve. The batch
// treats it as skipped, not failed.
var ErrNoAdapter = errors.New("no registry adapter for dependency")

// AdapterSet holds one adapter per provider. A nil slot never matches.
type AdapterSet struct {
	NPM    registry.Adapter
	PyPI   registry.Adapter
	GitHub registry.Adapter
	GitLab registry.Adapter
}

// CheckResult reports one dependency's check cycle. Event is set only when
// this cycle recorded a new change event.
type CheckResult struct {
	DependencyKey string
	Event         *model.ChangeEvent
	Skipped       bool
	Err           error
}

// Checker executes the detection half of the pipeline: fetch, diff, classify,
// persist the event and advance the watcher state.
type Checker struct {
	adapters AdapterSet
	pipeline *classify.Pipeline
	stores   store.Stores
	metrics  *metrics.Metrics
}

func NewChecker(adapters AdapterSet, pipeline *classify.Pipeline, stores store.Stores, m *metrics.Metrics) *Checker {
	return &Checker{adapters: adapters, pipeline: pipeline, stores: stores, metrics: m}
}

// Check runs one cycle for one dependency. Repeated checks against an
// unchanged upstream emit nothing: the conditional request short-circuits,
// the baseline comparison filters stale releases, and the event store
// refuses a second event for the same (dependency, version).
func (c *Checker) Check(ctx context.Context, dep model.WatchedDependency) CheckResult {
	result := CheckResult{DependencyKey: dep.Key()}

	adapter, identifier, err := c.selectAdapter(dep)
	if errors.Is(err, ErrNoAdapter) {
		c.metrics.RecordCheck("none", "skipped", 0)
		slog.DebugContext(ctx, "no adapter for dependency", "dependency_key", result.DependencyKey)
		result.Skipped = true
		return result
	}

	provider := adapter.Provider()
	start := time.Now()

	release, err := adapter.LatestVersion(ctx, identifier)
	if err != nil {
		c.metrics.RecordCheck(provider, "error", time.Since(start).Seconds())
		result.Err = fmt.Errorf("checking %s: %w", result.DependencyKey, err)
		return result
	}
	if release == nil {
		// Upstream answered not-modified; nothing to diff.
		c.metrics.RecordCheck(provider, "unchanged", time.Since(start).Seconds())
		return result
	}

	baseline := dep.Baseline()
	if !registry.IsNewer(release.Version, baseline) {
		c.metrics.RecordCheck(provider, "unchanged", time.Since(start).Seconds())
		return result
	}

	verdict := c.pipeline.Classify(ctx, classify.Input{
		DependencyKey:   result.DependencyKey,
		Identifier:      dep.Identifier,
		PreviousVersion: baseline,
		NewVersion:      release.Version,
		Changelog:       changelogText(release.Name, release.Body),
	})

	event := &model.ChangeEvent{
		ID:              id.New(),
		DependencyID:    dep.ID,
		DependencyKey:   result.DependencyKey,
		Identifier:      dep.Identifier,
		Provider:        provider,
		DetectedAt:      time.Now().UTC(),
		ChangeType:      verdict.Category,
		PreviousVersion: baseline,
		NewVersion:      release.Version,
		Title:           eventTitle(release.Name, dep.Identifier, release.Version),
		SemverType:      classify.Delta(baseline, release.Version),
		RawData:         release.Raw,
	}
	if release.Body != "" {
		event.Body = logger.Ptr(release.Body)
	}
	if release.URL != "" {
		event.URL = logger.Ptr(release.URL)
	}

	created, err := c.stores.ChangeEvents().Create(ctx, event)
	if err != nil {
		c.metrics.RecordCheck(provider, "error", time.Since(start).Seconds())
		result.Err = fmt.Errorf("recording change event for %s: %w", result.DependencyKey, err)
		return result
	}

	if err := c.stores.Dependencies().AdvanceLastSeen(ctx, dep.ID, release.Version); err != nil {
		// The event is already recorded; the next cycle re-detects and the
		// event store dedupes, so this is a warning, not a failure.
		slog.WarnContext(ctx, "advancing last seen version failed",
			"dependency_key", result.DependencyKey,
			"new_version", release.Version,
			"error", err)
	}

	if !created {
		// An earlier cycle already recorded this exact version, most likely
		// one that stopped before advancing the watcher state.
		c.metrics.RecordCheck(provider, "unchanged", time.Since(start).Seconds())
		return result
	}

	c.metrics.RecordCheck(provider, "changed", time.Since(start).Seconds())
	c.metrics.RecordChange(string(verdict.Category))
	slog.InfoContext(ctx, "change event recorded",
		"dependency_key", result.DependencyKey,
		"change_event_id", event.ID,
		"category", string(verdict.Category),
		"classifier", string(verdict.ClassifierUsed),
		"previous_version", baseline,
		"new_version", release.Version)

	result.Event = event
	return result
}

// selectAdapter picks the provider for a dependency: registry ecosystems for
// package/sdk kinds first, then an attached GitLab project, then an attached
// GitHub repo. The second return value is the provider-side identifier.
func (c *Checker) selectAdapter(dep model.WatchedDependency) (registry.Adapter, string, error) {
	if dep.Kind.Watchable() {
		switch dep.Ecosystem {
		case model.EcosystemNPM:
			if c.adapters.NPM != nil {
				return c.adapters.NPM, dep.Identifier, nil
			}
		case model.EcosystemPyPI:
			if c.adapters.PyPI != nil {
				return c.adapters.PyPI, dep.Identifier, nil
			}
		}
	}
	if dep.GitLabProject != nil && *dep.GitLabProject != "" && c.adapters.GitLab != nil {
		return c.adapters.GitLab, *dep.GitLabProject, nil
	}
	if dep.GitHubRepo != nil && *dep.GitHubRepo != "" && c.adapters.GitHub != nil {
		return c.adapters.GitHub, *dep.GitHubRepo, nil
	}
	return nil, "", fmt.Errorf("%w: %s", ErrNoAdapter, dep.Key())
}

// changelogText joins the release title and body for the keyword tier. A
// release without a body has no changelog, whatever the title says.
func changelogText(title, body string) string {
	body = strings.TrimSpace(body)
	if body == "" {
		return ""
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return body
	}
	return title + "\n\n" + body
}

func eventTitle(name, identifier, version string) string {
	if name == "" {
		name = identifier
	}
	return fmt.Sprintf("%s %s", name, version)
}
