// Package manifest ingests the dependency manifest produced by the scanning
// stage: a JSON document listing every external dependency of a codebase with
// per-entry confidence and source locations. Parsing, validation and
// deduplication live here; the HTTP ingest endpoint and the CLI file loader
// share this code path.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"

	"thirdwatch.dev/watch/common/logger"
	"thirdwatch.dev/watch/internal/model"
)

// Manifest is one scanned repository's aggregated dependency output.
type Manifest struct {
	SchemaVersion int     `json:"schema_version"`
	Repository    string  `json:"repository,omitempty"`
	GeneratedAt   string  `json:"generated_at,omitempty"`
	Dependencies  []Entry `json:"dependencies"`
}

// Entry is one raw dependency record. Entries are not unique: several
// scanners may report the same dependency from different files, so the
// same (kind, identifier, ecosystem) can appear more than once.
type Entry struct {
	Kind           model.DependencyKind   `json:"kind"`
	Identifier     string                 `json:"identifier"`
	Ecosystem      model.Ecosystem        `json:"ecosystem,omitempty"`
	CurrentVersion string                 `json:"current_version,omitempty"`
	GitHubRepo     string                 `json:"github_repo,omitempty"`
	GitLabProject  string                 `json:"gitlab_project,omitempty"`
	Confidence     float64                `json:"confidence,omitempty"`
	Locations      []model.SourceLocation `json:"locations,omitempty"`
}

// Parse decodes and validates a manifest document.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Load reads and parses a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return m, nil
}

func (m *Manifest) validate() error {
	for i, e := range m.Dependencies {
		if e.Identifier == "" {
			return fmt.Errorf("entry %d: identifier is required", i)
		}
		if !e.Kind.Valid() {
			return fmt.Errorf("entry %d (%s): unknown kind %q", i, e.Identifier, e.Kind)
		}
		if e.Confidence < 0 || e.Confidence > 1 {
			return fmt.Errorf("entry %d (%s): confidence %v outside [0, 1]", i, e.Identifier, e.Confidence)
		}
		for _, loc := range e.Locations {
			if loc.File == "" {
				return fmt.Errorf("entry %d (%s): location without a file", i, e.Identifier)
			}
		}
	}
	return nil
}

// Normalize collapses raw entries into one WatchedDependency per identity key
// (kind, identifier, ecosystem). Locations are unioned with file+line unique,
// confidence takes the maximum reported, and version and repo fields take the
// first non-empty value. Output order follows first appearance in the
// manifest, so repeated ingests of the same document produce the same set.
func (m *Manifest) Normalize() []model.WatchedDependency {
	byKey := make(map[string]*model.WatchedDependency)
	seenLoc := make(map[string]map[string]struct{})
	var order []string

	for _, e := range m.Dependencies {
		key := model.DependencyKey(e.Kind, e.Identifier, e.Ecosystem)
		dep, ok := byKey[key]
		if !ok {
			dep = &model.WatchedDependency{
				Kind:       e.Kind,
				Identifier: e.Identifier,
				Ecosystem:  e.Ecosystem,
			}
			byKey[key] = dep
			seenLoc[key] = make(map[string]struct{})
			order = append(order, key)
		}

		if e.CurrentVersion != "" && dep.CurrentVersion == nil {
			dep.CurrentVersion = logger.Ptr(e.CurrentVersion)
		}
		if e.GitHubRepo != "" && dep.GitHubRepo == nil {
			dep.GitHubRepo = logger.Ptr(e.GitHubRepo)
		}
		if e.GitLabProject != "" && dep.GitLabProject == nil {
			dep.GitLabProject = logger.Ptr(e.GitLabProject)
		}
		if e.Confidence > dep.Confidence {
			dep.Confidence = e.Confidence
		}

		for _, loc := range e.Locations {
			locKey := fmt.Sprintf("%s:%d", loc.File, loc.Line)
			if _, dup := seenLoc[key][locKey]; dup {
				continue
			}
			seenLoc[key][locKey] = struct{}{}
			dep.Locations = append(dep.Locations, loc)
		}
	}

	out := make([]model.WatchedDependency, 0, len(order))
	for _, key := range order {
		out = append(out, *byKey[key])
	}
	return out
}
