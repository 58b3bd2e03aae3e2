package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"thirdwatch.dev/watch/common/metrics"
)

// GitLabAdapter reads release metadata from the GitLab releases API.
// Identifiers are "group/project" paths or numeric project IDs. The API
// client offers no HTTP preconditions, so the stored validator is the
// newest tag we have seen: when the current newest tag matches it,
// LatestVersion reports not-modified without parsing further.
type GitLabAdapter struct {
	client  *gitlab.Client
	webBase string
	cache   ValidatorCache
	metrics *metrics.Metrics
}

func NewGitLabAdapter(baseURL, token string, cache ValidatorCache, m *metrics.Metrics) (*GitLabAdapter, error) {
	webBase := "https://gitlab.com"

	var client *gitlab.Client
	var err error
	if baseURL == "" {
		client, err = gitlab.NewClient(token)
	} else {
		webBase = strings.TrimSuffix(baseURL, "/")
		client, err = gitlab.NewClient(token, gitlab.WithBaseURL(webBase+"/api/v4"))
	}
	if err != nil {
		return nil, fmt.Errorf("creating gitlab client: %w", err)
	}

	return &GitLabAdapter{
		client:  client,
		webBase: webBase,
		cache:   cache,
		metrics: m,
	}, nil
}

func (a *GitLabAdapter) Provider() string {
	return ProviderGitLab
}

func (a *GitLabAdapter) LatestVersion(ctx context.Context, identifier string) (*Release, error) {
	releases, resp, err := a.client.Releases.ListReleases(identifier, &gitlab.ListReleasesOptions{
		ListOptions: gitlab.ListOptions{Page: 1, PerPage: 1},
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, a.requestError(identifier, resp, err)
	}
	if len(releases) == 0 {
		return nil, fmt.Errorf("gitlab project %q has no releases", identifier)
	}
	newest := releases[0]

	key := CacheKey(ProviderGitLab, identifier)
	validator, ok, err := a.cache.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "validator cache read failed", "provider", ProviderGitLab, "error", err)
	} else if ok && validator != "" && validator == newest.TagName {
		a.metrics.RecordNotModified(ProviderGitLab)
		return nil, nil
	}
	if err := a.cache.Set(ctx, key, newest.TagName); err != nil {
		slog.WarnContext(ctx, "validator cache write failed", "provider", ProviderGitLab, "error", err)
	}

	return a.toRelease(identifier, newest), nil
}

func (a *GitLabAdapter) VersionsSince(ctx context.Context, identifier, baseline string) ([]Release, error) {
	opts := &gitlab.ListReleasesOptions{
		ListOptions: gitlab.ListOptions{Page: 1, PerPage: releasePageSize},
	}

	var out []Release

	for {
		releases, resp, err := a.client.Releases.ListReleases(identifier, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, a.requestError(identifier, resp, err)
		}

		for _, rel := range releases {
			if rel.UpcomingRelease {
				continue
			}
			if !newerThanBaseline(rel.TagName, baseline) {
				continue
			}
			out = append(out, *a.toRelease(identifier, rel))
		}

		if resp.NextPage == 0 || opts.Page >= maxReleasePages {
			break
		}
		opts.Page = resp.NextPage
	}

	sortReleasesAscending(out)
	return out, nil
}

func (a *GitLabAdapter) toRelease(identifier string, rel *gitlab.Release) *Release {
	title := rel.Name
	if title == "" {
		title = rel.TagName
	}

	out := &Release{
		Name:       title,
		Version:    rel.TagName,
		Body:       rel.Description,
		URL:        a.webBase + "/" + identifier + "/-/releases/" + url.PathEscape(rel.TagName),
		Prerelease: rel.UpcomingRelease,
		ETag:       rel.TagName,
	}
	if rel.ReleasedAt != nil {
		out.PublishedAt = *rel.ReleasedAt
	}
	out.Raw, _ = json.Marshal(map[string]any{
		"tag_name":         rel.TagName,
		"upcoming_release": rel.UpcomingRelease,
		"released_at":      rel.ReleasedAt,
	})
	return out
}

func (a *GitLabAdapter) requestError(identifier string, resp *gitlab.Response, err error) error {
	if resp != nil && resp.StatusCode >= 400 {
		return &RegistryError{Provider: ProviderGitLab, Identifier: identifier, StatusCode: resp.StatusCode}
	}
	return fmt.Errorf("listing gitlab releases for %q: %w", identifier, err)
}
