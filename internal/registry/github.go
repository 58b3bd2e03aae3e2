package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// GitHubAdapter reads release metadata from the GitHub REST API.
// Identifiers are "owner/repo". GitHub serves 304s for matching ETags
// without counting the request against the rate limit, which makes the
// conditional flow especially worthwhile here.
type GitHubAdapter struct {
	base  string
	token string
	pc    *providerClient
}

func NewGitHubAdapter(baseURL, token string, cache ValidatorCache, opts HTTPOptions) *GitHubAdapter {
	return &GitHubAdapter{
		base:  strings.TrimSuffix(baseURL, "/"),
		token: token,
		pc:    newProviderClient(ProviderGitHub, cache, opts),
	}
}

func (a *GitHubAdapter) Provider() string {
	return ProviderGitHub
}

type githubRelease struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Body        string    `json:"body"`
	HTMLURL     string    `json:"html_url"`
	PublishedAt time.Time `json:"published_at"`
	Prerelease  bool      `json:"prerelease"`
	Draft       bool      `json:"draft"`
}

func (a *GitHubAdapter) LatestVersion(ctx context.Context, identifier string) (*Release, error) {
	u := fmt.Sprintf("%s/repos/%s/releases/latest", a.base, identifier)
	fr, err := a.pc.conditionalGet(ctx, u, identifier, true, a.headers())
	if err != nil {
		return nil, err
	}
	if fr.NotModified {
		return nil, nil
	}

	var rel githubRelease
	if err := json.Unmarshal(fr.Body, &rel); err != nil {
		return nil, fmt.Errorf("parsing github release: %w", err)
	}
	if rel.TagName == "" {
		return nil, fmt.Errorf("github release for %q has no tag", identifier)
	}

	return a.toRelease(identifier, rel, fr.ETag), nil
}

func (a *GitHubAdapter) VersionsSince(ctx context.Context, identifier, baseline string) ([]Release, error) {
	var out []Release

	for page := 1; page <= maxReleasePages; page++ {
		u := fmt.Sprintf("%s/repos/%s/releases?per_page=%d&page=%d", a.base, identifier, releasePageSize, page)
		fr, err := a.pc.conditionalGet(ctx, u, identifier, false, a.headers())
		if err != nil {
			return nil, err
		}

		var releases []githubRelease
		if err := json.Unmarshal(fr.Body, &releases); err != nil {
			return nil, fmt.Errorf("parsing github releases: %w", err)
		}

		for _, rel := range releases {
			if rel.Draft {
				continue
			}
			if !newerThanBaseline(rel.TagName, baseline) {
				continue
			}
			out = append(out, *a.toRelease(identifier, rel, ""))
		}

		if len(releases) < releasePageSize {
			break
		}
	}

	sortReleasesAscending(out)
	return out, nil
}

const (
	releasePageSize = 100
	maxReleasePages = 10
)

func (a *GitHubAdapter) toRelease(identifier string, rel githubRelease, etag string) *Release {
	title := rel.Name
	if title == "" {
		title = rel.TagName
	}

	out := &Release{
		Name:        title,
		Version:     rel.TagName,
		PublishedAt: rel.PublishedAt,
		Body:        rel.Body,
		URL:         rel.HTMLURL,
		SourceRepo:  identifier,
		Prerelease:  rel.Prerelease,
		ETag:        etag,
	}
	out.Raw, _ = json.Marshal(map[string]any{
		"tag_name":     rel.TagName,
		"prerelease":   rel.Prerelease,
		"published_at": rel.PublishedAt,
	})
	return out
}

func (a *GitHubAdapter) headers() http.Header {
	h := http.Header{}
	h.Set("Accept", "application/vnd.github+json")
	h.Set("X-GitHub-Api-Version", "2022-11-28")
	if a.token != "" {
		h.Set("Authorization", "Bearer "+a.token)
	}
	return h
}
