package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// PyPIAdapter reads project metadata from PyPI's JSON API.
type PyPIAdapter struct {
	base string
	pc   *providerClient
}

func NewPyPIAdapter(baseURL string, cache ValidatorCache, opts HTTPOptions) *PyPIAdapter {
	return &PyPIAdapter{
		base: strings.TrimSuffix(baseURL, "/"),
		pc:   newProviderClient(ProviderPyPI, cache, opts),
	}
}

func (a *PyPIAdapter) Provider() string {
	return ProviderPyPI
}

type pypiDocument struct {
	Info struct {
		Name        string            `json:"name"`
		Version     string            `json:"version"`
		Summary     string            `json:"summary"`
		HomePage    string            `json:"home_page"`
		PackageURL  string            `json:"package_url"`
		ReleaseURL  string            `json:"release_url"`
		ProjectURLs map[string]string `json:"project_urls"`
	} `json:"info"`
	Releases map[string][]pypiFile `json:"releases"`
	URLs     []pypiFile            `json:"urls"`
}

type pypiFile struct {
	UploadTime string `json:"upload_time_iso_8601"`
}

func (a *PyPIAdapter) LatestVersion(ctx context.Context, identifier string) (*Release, error) {
	fr, err := a.pc.conditionalGet(ctx, a.projectURL(identifier), identifier, true, nil)
	if err != nil {
		return nil, err
	}
	if fr.NotModified {
		return nil, nil
	}

	var doc pypiDocument
	if err := json.Unmarshal(fr.Body, &doc); err != nil {
		return nil, fmt.Errorf("parsing pypi document: %w", err)
	}
	if doc.Info.Version == "" {
		return nil, fmt.Errorf("pypi document for %q has no version", identifier)
	}

	rel := &Release{
		Name:       doc.Info.Name,
		Version:    doc.Info.Version,
		URL:        doc.Info.ReleaseURL,
		SourceRepo: pypiSourceRepo(doc.Info.ProjectURLs, doc.Info.HomePage),
		ETag:       fr.ETag,
	}
	if rel.URL == "" {
		rel.URL = doc.Info.PackageURL
	}
	if t, ok := earliestUpload(doc.URLs); ok {
		rel.PublishedAt = t
	}

	rel.Raw, _ = json.Marshal(map[string]any{
		"version": doc.Info.Version,
		"summary": doc.Info.Summary,
	})

	return rel, nil
}

func (a *PyPIAdapter) VersionsSince(ctx context.Context, identifier, baseline string) ([]Release, error) {
	fr, err := a.pc.conditionalGet(ctx, a.projectURL(identifier), identifier, false, nil)
	if err != nil {
		return nil, err
	}

	var doc pypiDocument
	if err := json.Unmarshal(fr.Body, &doc); err != nil {
		return nil, fmt.Errorf("parsing pypi document: %w", err)
	}

	var out []Release
	for version, files := range doc.Releases {
		if !newerThanBaseline(version, baseline) {
			continue
		}
		rel := Release{
			Name:    doc.Info.Name,
			Version: version,
			URL:     strings.TrimSuffix(doc.Info.PackageURL, "/") + "/" + version + "/",
		}
		if t, ok := earliestUpload(files); ok {
			rel.PublishedAt = t
		}
		out = append(out, rel)
	}

	sortReleasesAscending(out)
	return out, nil
}

func (a *PyPIAdapter) projectURL(identifier string) string {
	return a.base + "/pypi/" + url.PathEscape(identifier) + "/json"
}

func earliestUpload(files []pypiFile) (time.Time, bool) {
	var earliest time.Time
	for _, f := range files {
		t, err := time.Parse(time.RFC3339, f.UploadTime)
		if err != nil {
			continue
		}
		if earliest.IsZero() || t.Before(earliest) {
			earliest = t
		}
	}
	return earliest, !earliest.IsZero()
}

func pypiSourceRepo(projectURLs map[string]string, homePage string) string {
	for _, key := range []string{"Source", "Source Code", "Repository", "Homepage"} {
		if repo := extractGitHubRepo(projectURLs[key]); repo != "" {
			return repo
		}
	}
	for _, u := range projectURLs {
		if repo := extractGitHubRepo(u); repo != "" {
			return repo
		}
	}
	return extractGitHubRepo(homePage)
}
