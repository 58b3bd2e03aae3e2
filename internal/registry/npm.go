package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// NPMAdapter reads package documents from an npm-compatible registry.
type NPMAdapter struct {
	base string
	pc   *providerClient
}

func NewNPMAdapter(baseURL string, cache ValidatorCache, opts HTTPOptions) *NPMAdapter {
	return &NPMAdapter{
		base: strings.TrimSuffix(baseURL, "/"),
		pc:   newProviderClient(ProviderNPM, cache, opts),
	}
}

func (a *NPMAdapter) Provider() string {
	return ProviderNPM
}

type npmPackument struct {
	Name     string                     `json:"name"`
	DistTags map[string]string          `json:"dist-tags"`
	Time     map[string]string          `json:"time"` // version -> RFC3339
	Versions map[string]json.RawMessage `json:"versions"`
	Repo     json.RawMessage            `json:"repository"` // string or {type, url}
	Homepage string                     `json:"homepage"`
}

func (a *NPMAdapter) LatestVersion(ctx context.Context, identifier string) (*Release, error) {
	fr, err := a.pc.conditionalGet(ctx, a.packageURL(identifier), identifier, true, nil)
	if err != nil {
		return nil, err
	}
	if fr.NotModified {
		return nil, nil
	}

	var doc npmPackument
	if err := json.Unmarshal(fr.Body, &doc); err != nil {
		return nil, fmt.Errorf("parsing npm packument: %w", err)
	}

	latest := doc.DistTags["latest"]
	if latest == "" {
		return nil, fmt.Errorf("npm packument for %q has no latest tag", identifier)
	}

	rel := &Release{
		Name:       doc.Name,
		Version:    latest,
		URL:        "https://www.npmjs.com/package/" + identifier,
		SourceRepo: extractGitHubRepo(npmRepositoryURL(doc.Repo)),
		ETag:       fr.ETag,
	}
	if doc.Homepage != "" {
		rel.URL = doc.Homepage
	}
	if ts, ok := doc.Time[latest]; ok {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			rel.PublishedAt = t
		}
	}

	rel.Raw, _ = json.Marshal(map[string]any{
		"dist_tags":    doc.DistTags,
		"published_at": doc.Time[latest],
	})

	return rel, nil
}

func (a *NPMAdapter) VersionsSince(ctx context.Context, identifier, baseline string) ([]Release, error) {
	// The full packument is needed here, so no validator is attached: a 304
	// would leave nothing to answer from.
	fr, err := a.pc.conditionalGet(ctx, a.packageURL(identifier), identifier, false, nil)
	if err != nil {
		return nil, err
	}

	var doc npmPackument
	if err := json.Unmarshal(fr.Body, &doc); err != nil {
		return nil, fmt.Errorf("parsing npm packument: %w", err)
	}

	var out []Release
	for version := range doc.Versions {
		if !newerThanBaseline(version, baseline) {
			continue
		}
		rel := Release{
			Name:    doc.Name,
			Version: version,
			URL:     "https://www.npmjs.com/package/" + identifier + "/v/" + version,
		}
		if ts, ok := doc.Time[version]; ok {
			if t, err := time.Parse(time.RFC3339, ts); err == nil {
				rel.PublishedAt = t
			}
		}
		out = append(out, rel)
	}

	sortReleasesAscending(out)
	return out, nil
}

func (a *NPMAdapter) packageURL(identifier string) string {
	// Scoped packages need the slash escaped: @scope/name -> @scope%2Fname
	return a.base + "/" + url.PathEscape(identifier)
}

// newerThanBaseline is the strict filter for VersionsSince: versions that do
// not parse as semver are skipped rather than guessed. An empty baseline
// admits every parseable version.
func newerThanBaseline(candidate, baseline string) bool {
	cv, err := ParseVersion(candidate)
	if err != nil {
		return false
	}
	if baseline == "" {
		return true
	}
	bv, err := ParseVersion(baseline)
	if err != nil {
		return false
	}
	return cv.GreaterThan(bv)
}

func npmRepositoryURL(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.URL
	}
	return ""
}

var githubRepoPattern = regexp.MustCompile(`github\.com[:/]+([\w.-]+/[\w.-]+?)(?:\.git)?(?:[/#?].*)?$`)

// extractGitHubRepo pulls an "owner/repo" out of the various repository URL
// shapes providers report (git+https, ssh, plain web URLs).
func extractGitHubRepo(repoURL string) string {
	if repoURL == "" {
		return ""
	}
	m := githubRepoPattern.FindStringSubmatch(repoURL)
	if len(m) != 2 {
		return ""
	}
	return strings.TrimSuffix(m[1], ".git")
}
