package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type gitlabReleaseDoc struct {
	TagName         string `json:"tag_name"`
	Name            string `json:"name,omitempty"`
	Description     string `json:"description,omitempty"`
	ReleasedAt      string `json:"released_at,omitempty"`
	UpcomingRelease bool   `json:"upcoming_release,omitempty"`
}

type gitlabReleasesMock struct {
	server   *httptest.Server
	releases []gitlabReleaseDoc
	status   int
	calls    int
}

func (m *gitlabReleasesMock) start() {
	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/v4/projects/") || !strings.HasSuffix(r.URL.Path, "/releases") {
			http.NotFound(w, r)
			return
		}
		m.calls++
		if m.status != 0 {
			http.Error(w, "error", m.status)
			return
		}

		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
		if page == 0 {
			page = 1
		}
		if perPage == 0 {
			perPage = 20
		}

		start := (page - 1) * perPage
		if start > len(m.releases) {
			start = len(m.releases)
		}
		end := start + perPage
		if end > len(m.releases) {
			end = len(m.releases)
		}
		if end < len(m.releases) {
			w.Header().Set("X-Next-Page", strconv.Itoa(page+1))
		}
		_ = json.NewEncoder(w).Encode(m.releases[start:end])
	}))
}

func (m *gitlabReleasesMock) close() {
	m.server.Close()
}

var _ = Describe("GitLabAdapter", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("reads the newest release", func() {
		mock := &gitlabReleasesMock{releases: []gitlabReleaseDoc{
			{TagName: "v2.1.0", Name: "v2.1.0", Description: "Adds bulk export", ReleasedAt: "2024-03-25T17:38:55Z"},
			{TagName: "v2.0.0", ReleasedAt: "2024-02-01T09:00:00Z"},
		}}
		mock.start()
		defer mock.close()

		adapter, err := NewGitLabAdapter(mock.server.URL, "glpat-x", NewMemoryValidatorCache(), nil)
		Expect(err).NotTo(HaveOccurred())

		rel, err := adapter.LatestVersion(ctx, "group/project")
		Expect(err).NotTo(HaveOccurred())
		Expect(rel).NotTo(BeNil())
		Expect(rel.Version).To(Equal("v2.1.0"))
		Expect(rel.Body).To(Equal("Adds bulk export"))
		Expect(rel.URL).To(Equal(mock.server.URL + "/group/project/-/releases/v2.1.0"))
		Expect(rel.PublishedAt.IsZero()).To(BeFalse())
	})

	It("reports not-modified while the newest tag is unchanged", func() {
		mock := &gitlabReleasesMock{releases: []gitlabReleaseDoc{
			{TagName: "v1.0.0", ReleasedAt: "2024-01-01T00:00:00Z"},
		}}
		mock.start()
		defer mock.close()

		adapter, err := NewGitLabAdapter(mock.server.URL, "", NewMemoryValidatorCache(), nil)
		Expect(err).NotTo(HaveOccurred())

		first, err := adapter.LatestVersion(ctx, "group/project")
		Expect(err).NotTo(HaveOccurred())
		Expect(first).NotTo(BeNil())

		second, err := adapter.LatestVersion(ctx, "group/project")
		Expect(err).NotTo(HaveOccurred())
		Expect(second).To(BeNil())

		mock.releases = append([]gitlabReleaseDoc{{TagName: "v1.1.0"}}, mock.releases...)

		third, err := adapter.LatestVersion(ctx, "group/project")
		Expect(err).NotTo(HaveOccurred())
		Expect(third).NotTo(BeNil())
		Expect(third.Version).To(Equal("v1.1.0"))
	})

	It("errors when the project has no releases", func() {
		mock := &gitlabReleasesMock{}
		mock.start()
		defer mock.close()

		adapter, err := NewGitLabAdapter(mock.server.URL, "", NewMemoryValidatorCache(), nil)
		Expect(err).NotTo(HaveOccurred())

		_, err = adapter.LatestVersion(ctx, "group/project")
		Expect(err).To(MatchError(ContainSubstring("no releases")))
	})

	It("pages through releases, skipping upcoming ones", func() {
		var docs []gitlabReleaseDoc
		for i := 104; i >= 0; i-- {
			docs = append(docs, gitlabReleaseDoc{
				TagName:         fmt.Sprintf("v0.%d.0", i),
				UpcomingRelease: i == 100,
			})
		}
		mock := &gitlabReleasesMock{releases: docs}
		mock.start()
		defer mock.close()

		adapter, err := NewGitLabAdapter(mock.server.URL, "", NewMemoryValidatorCache(), nil)
		Expect(err).NotTo(HaveOccurred())

		releases, err := adapter.VersionsSince(ctx, "group/project", "0.2.0")
		Expect(err).NotTo(HaveOccurred())
		Expect(releases).To(HaveLen(101))
		Expect(releases[0].Version).To(Equal("v0.3.0"))
		Expect(releases[len(releases)-1].Version).To(Equal("v0.104.0"))
		Expect(mock.calls).To(Equal(2))
	})

	It("maps request failures to registry errors", func() {
		mock := &gitlabReleasesMock{status: http.StatusNotFound}
		mock.start()
		defer mock.close()

		adapter, err := NewGitLabAdapter(mock.server.URL, "", NewMemoryValidatorCache(), nil)
		Expect(err).NotTo(HaveOccurred())

		_, err = adapter.LatestVersion(ctx, "group/missing")
		var regErr *RegistryError
		Expect(errors.As(err, &regErr)).To(BeTrue())
		Expect(regErr.Provider).To(Equal(ProviderGitLab))
		Expect(regErr.StatusCode).To(Equal(http.StatusNotFound))
	})
})
