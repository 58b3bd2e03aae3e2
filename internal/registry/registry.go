package registry

import (
	"context"
	"encoding/json"
	"time"
)

// Provider names. Each adapter serves exactly one.
const (
	ProviderNPM    = "npm"
	ProviderPyPI   = "pypi"
	ProviderGitHub = "github"
	ProviderGitLab = "gitlab"
)

// Release is the provider-neutral shape of one published version.
type Release struct {
	Name        string    // package or project name as the provider reports it
	Version     string    // version string or release tag
	PublishedAt time.Time // zero when the provider has no timestamp
	Body        string    // release notes / changelog text when available
	URL         string
	SourceRepo  string // "owner/repo" when the provider links one
	Prerelease  bool
	ETag        string          // validator stored for the next conditional request
	Raw         json.RawMessage // trimmed provider payload, kept for event audit
}

// Adapter fetches latest-version metadata for one identifier from one
// provider. LatestVersion returns (nil, nil) when the upstream is unchanged
// per the conditional-request validator; that is success, not an error.
// VersionsSince returns every version strictly newer than baseline, sorted
// ascending by version precedence.
type Adapter interface {
	LatestVersion(ctx context.Context, identifier string) (*Release, error)
	VersionsSince(ctx context.Context, identifier, baseline string) ([]Release, error)
	Provider() string
}
