package model

import (
	"fmt"
	"strings"
	"time"
)

// DependencyKind says what sort of external dependency a manifest entry
// describes. Only package and sdk kinds are polled against registries; the
// remaining kinds are kept for impact mapping.
type DependencyKind string

const (
	KindPackage        DependencyKind = "package"
	KindSDK            DependencyKind = "sdk"
	KindAPI            DependencyKind = "api"
	KindInfrastructure DependencyKind = "infrastructure"
	KindWebhook        DependencyKind = "webhook"
)

// Watchable reports whether dependencies of this kind are checked upstream.
func (k DependencyKind) Watchable() bool {
	return k == KindPackage || k == KindSDK
}

func (k DependencyKind) Valid() bool {
	switch k {
	case KindPackage, KindSDK, KindAPI, KindInfrastructure, KindWebhook:
		return true
	}
	return false
}

// Ecosystem names the package registry an identifier belongs to.
type Ecosystem string

const (
	EcosystemNPM  Ecosystem = "npm"
	EcosystemPyPI Ecosystem = "pypi"
)

// SourceLocation is one place in the scanned codebase where a dependency is
// referenced. Locations always come from the manifest; the pipeline never
// invents them.
type SourceLocation struct {
	File      string `json:"file"`
	Line      int    `json:"line"`
	Context   string `json:"context,omitempty"`
	UsageType string `json:"usage_type,omitempty"` // import, call, config, etc.
}

type WatchedDependency struct {
	ID              int64            `json:"id"`
	Kind            DependencyKind   `json:"kind"`
	Identifier      string           `json:"identifier"`
	Ecosystem       Ecosystem        `json:"ecosystem,omitempty"`
	CurrentVersion  *string          `json:"current_version,omitempty"`
	LastSeenVersion *string          `json:"last_seen_version,omitempty"`
	GitHubRepo      *string          `json:"github_repo,omitempty"`    // "owner/repo"
	GitLabProject   *string          `json:"gitlab_project,omitempty"` // numeric ID or "group/project"
	Confidence      float64          `json:"confidence,omitempty"`
	Locations       []SourceLocation `json:"locations,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// Key is the identity of a watched dependency: (kind, ecosystem, identifier).
// Stores, the check queue and the scheduler lease all key on it.
func (d WatchedDependency) Key() string {
	return DependencyKey(d.Kind, d.Identifier, d.Ecosystem)
}

func DependencyKey(kind DependencyKind, identifier string, ecosystem Ecosystem) string {
	return fmt.Sprintf("%s:%s:%s", kind, ecosystem, identifier)
}

// ParseDependencyKey splits a dependency key back into its parts. Kind and
// ecosystem never contain a colon, so the identifier keeps any it has.
func ParseDependencyKey(key string) (DependencyKind, string, Ecosystem, error) {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("malformed dependency key %q", key)
	}
	return DependencyKind(parts[0]), parts[2], Ecosystem(parts[1]), nil
}

// Baseline is the version a check cycle diffs against: the last version the
// watcher saw, falling back to the version pinned in the manifest.
func (d WatchedDependency) Baseline() string {
	if d.LastSeenVersion != nil && *d.LastSeenVersion != "" {
		return *d.LastSeenVersion
	}
	if d.CurrentVersion != nil {
		return *d.CurrentVersion
	}
	return ""
}
