package checker

import (
	"context"
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"thirdwatch.dev/watch/common/logger"
	"thirdwatch.dev/watch/internal/classify"
	"thirdwatch.dev/watch/internal/model"
	"thirdwatch.dev/watch/internal/registry"
	"thirdwatch.dev/watch/internal/store"
)

// fakeRegistry serves one canned release and records what was asked of it.
type fakeRegistry struct {
	provider    string
	release     *registry.Release
	err         error
	calls       int
	identifiers []string
}

func (f *fakeRegistry) LatestVersion(ctx context.Context, identifier string) (*registry.Release, error) {
	f.calls++
	f.identifiers = append(f.identifiers, identifier)
	if f.err != nil {
		return nil, f.err
	}
	if f.release == nil {
		return nil, nil
	}
	rel := *f.release
	return &rel, nil
}

func (f *fakeRegistry) VersionsSince(ctx context.Context, identifier, baseline string) ([]registry.Release, error) {
	return nil, nil
}

func (f *fakeRegistry) Provider() string { return f.provider }

func stripeRelease() *registry.Release {
	return &registry.Release{
		Name:    "stripe",
		Version: "8.0.0",
		Body:    "BREAKING CHANGE: removed endpoint /v1/legacy_charges",
		URL:     "https://pypi.org/project/stripe/8.0.0/",
		Raw:     json.RawMessage(`{"info":{"name":"stripe","version":"8.0.0"}}`),
	}
}

func watchedStripe() model.WatchedDependency {
	return model.WatchedDependency{
		Kind:           model.KindPackage,
		Identifier:     "stripe",
		Ecosystem:      model.EcosystemPyPI,
		CurrentVersion: logger.Ptr("7.9.0"),
		Confidence:     0.95,
		Locations: []model.SourceLocation{
			{File: "setup.py", Line: 12, UsageType: "config"},
			{File: "payments/stripe_client.py", Line: 3, UsageType: "import"},
			{File: "payments/stripe_client.py", Line: 41, UsageType: "call"},
		},
	}
}

// newTestPipeline is the deterministic tier set: no model classifier.
func newTestPipeline() *classify.Pipeline {
	return classify.NewPipeline(nil, nil)
}

// seed upserts a dependency and reads it back with its assigned ID.
func seed(ctx context.Context, stores store.Stores, dep model.WatchedDependency) model.WatchedDependency {
	GinkgoHelper()
	_, err := stores.Dependencies().UpsertBatch(ctx, []model.WatchedDependency{dep})
	Expect(err).NotTo(HaveOccurred())
	stored, err := stores.Dependencies().GetByKey(ctx, dep.Key())
	Expect(err).NotTo(HaveOccurred())
	return *stored
}

var _ = Describe("Checker", func() {
	var (
		ctx    context.Context
		stores store.Stores
		pypi   *fakeRegistry
	)

	BeforeEach(func() {
		ctx = context.Background()
		stores = store.NewMemory()
		pypi = &fakeRegistry{provider: registry.ProviderPyPI, release: stripeRelease()}
	})

	newChecker := func(adapters AdapterSet) *Checker {
		return NewChecker(adapters, newTestPipeline(), stores, nil)
	}

	It("records a change event when upstream moved", func() {
		dep := seed(ctx, stores, watchedStripe())
		c := newChecker(AdapterSet{PyPI: pypi})

		result := c.Check(ctx, dep)

		Expect(result.Err).NotTo(HaveOccurred())
		Expect(result.Skipped).To(BeFalse())
		Expect(result.Event).NotTo(BeNil())
		Expect(result.Event.ID).NotTo(BeZero())
		Expect(result.Event.DependencyID).To(Equal(dep.ID))
		Expect(result.Event.Provider).To(Equal("pypi"))
		Expect(result.Event.ChangeType).To(Equal(model.CategoryBreaking), "the changelog keyword outranks the semver delta")
		Expect(result.Event.PreviousVersion).To(Equal("7.9.0"))
		Expect(result.Event.NewVersion).To(Equal("8.0.0"))
		Expect(result.Event.Title).To(Equal("stripe 8.0.0"))
		Expect(result.Event.SemverType).To(HaveValue(Equal(model.DeltaMajor)))
		Expect(result.Event.URL).To(HaveValue(Equal("https://pypi.org/project/stripe/8.0.0/")))
		Expect(string(result.Event.RawData)).To(ContainSubstring(`"version":"8.0.0"`))

		events, err := stores.ChangeEvents().ListRecent(ctx, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(HaveLen(1))

		stored, err := stores.Dependencies().GetByKey(ctx, dep.Key())
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.LastSeenVersion).To(HaveValue(Equal("8.0.0")))
	})

	It("emits nothing on the second check against an unchanged upstream", func() {
		dep := seed(ctx, stores, watchedStripe())
		c := newChecker(AdapterSet{PyPI: pypi})

		Expect(c.Check(ctx, dep).Event).NotTo(BeNil())

		// Re-read: the first cycle advanced the baseline to 8.0.0.
		advanced, err := stores.Dependencies().GetByKey(ctx, dep.Key())
		Expect(err).NotTo(HaveOccurred())

		second := c.Check(ctx, *advanced)
		Expect(second.Err).NotTo(HaveOccurred())
		Expect(second.Event).To(BeNil())

		events, err := stores.ChangeEvents().ListRecent(ctx, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(HaveLen(1))
	})

	It("treats a not-modified response as no change", func() {
		dep := seed(ctx, stores, watchedStripe())
		pypi.release = nil
		c := newChecker(AdapterSet{PyPI: pypi})

		result := c.Check(ctx, dep)
		Expect(result.Err).NotTo(HaveOccurred())
		Expect(result.Event).To(BeNil())
		Expect(pypi.calls).To(Equal(1))
	})

	It("ignores releases that do not advance on the baseline", func() {
		dep := seed(ctx, stores, watchedStripe())
		pypi.release.Version = "7.8.0"
		c := newChecker(AdapterSet{PyPI: pypi})

		result := c.Check(ctx, dep)
		Expect(result.Err).NotTo(HaveOccurred())
		Expect(result.Event).To(BeNil())

		stored, err := stores.Dependencies().GetByKey(ctx, dep.Key())
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.LastSeenVersion).To(BeNil(), "a stale release must not move the baseline")
	})

	It("skips dependencies no adapter serves", func() {
		redis := model.WatchedDependency{
			Kind:       model.KindInfrastructure,
			Identifier: "redis",
			Locations:  []model.SourceLocation{{File: "infra/cache.py", Line: 8}},
		}
		dep := seed(ctx, stores, redis)
		c := newChecker(AdapterSet{PyPI: pypi})

		result := c.Check(ctx, dep)
		Expect(result.Skipped).To(BeTrue())
		Expect(result.Err).NotTo(HaveOccurred())
		Expect(result.Event).To(BeNil())
		Expect(pypi.calls).To(BeZero())
	})

	It("falls back to the source host when no registry matches", func() {
		github := &fakeRegistry{provider: registry.ProviderGitHub, release: &registry.Release{
			Name:    "v2.1.0",
			Version: "2.1.0",
		}}
		dep := watchedStripe()
		dep.Ecosystem = ""
		dep.GitHubRepo = logger.Ptr("stripe/stripe-python")
		dep = seed(ctx, stores, dep)

		c := newChecker(AdapterSet{PyPI: pypi, GitHub: github})
		result := c.Check(ctx, dep)

		Expect(result.Err).NotTo(HaveOccurred())
		Expect(result.Event).NotTo(BeNil())
		Expect(result.Event.Provider).To(Equal("github"))
		Expect(github.identifiers).To(Equal([]string{"stripe/stripe-python"}))
		Expect(pypi.calls).To(BeZero())
	})

	It("prefers a gitlab project over a github repo", func() {
		gitlab := &fakeRegistry{provider: registry.ProviderGitLab, release: &registry.Release{Version: "2.1.0"}}
		github := &fakeRegistry{provider: registry.ProviderGitHub, release: &registry.Release{Version: "2.1.0"}}
		dep := watchedStripe()
		dep.Ecosystem = ""
		dep.GitLabProject = logger.Ptr("acme/stripe-mirror")
		dep.GitHubRepo = logger.Ptr("stripe/stripe-python")
		dep = seed(ctx, stores, dep)

		c := newChecker(AdapterSet{GitLab: gitlab, GitHub: github})
		result := c.Check(ctx, dep)

		Expect(result.Err).NotTo(HaveOccurred())
		Expect(gitlab.calls).To(Equal(1))
		Expect(github.calls).To(BeZero())
	})

	It("wraps registry failures per dependency", func() {
		dep := seed(ctx, stores, watchedStripe())
		pypi.err = &registry.RegistryError{Provider: "pypi", Identifier: "stripe", StatusCode: 503}
		c := newChecker(AdapterSet{PyPI: pypi})

		result := c.Check(ctx, dep)
		Expect(result.Err).To(HaveOccurred())
		Expect(result.Err.Error()).To(ContainSubstring(dep.Key()))

		var regErr *registry.RegistryError
		Expect(errors.As(result.Err, &regErr)).To(BeTrue())
		Expect(regErr.StatusCode).To(Equal(503))

		Expect(result.Event).To(BeNil())
		events, err := stores.ChangeEvents().ListRecent(ctx, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(BeEmpty())
	})

	It("catches up the baseline when the event already exists", func() {
		dep := seed(ctx, stores, watchedStripe())

		// A previous cycle recorded the event but stopped before advancing.
		created, err := stores.ChangeEvents().Create(ctx, &model.ChangeEvent{
			DependencyID:    dep.ID,
			DependencyKey:   dep.Key(),
			Identifier:      "stripe",
			Provider:        "pypi",
			ChangeType:      model.CategoryBreaking,
			PreviousVersion: "7.9.0",
			NewVersion:      "8.0.0",
			Title:           "stripe 8.0.0",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(created).To(BeTrue())

		c := newChecker(AdapterSet{PyPI: pypi})
		result := c.Check(ctx, dep)

		Expect(result.Err).NotTo(HaveOccurred())
		Expect(result.Event).To(BeNil(), "the duplicate must not flow downstream again")

		events, err := stores.ChangeEvents().ListRecent(ctx, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(HaveLen(1))

		stored, err := stores.Dependencies().GetByKey(ctx, dep.Key())
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.LastSeenVersion).To(HaveValue(Equal("8.0.0")))
	})

	It("classifies a bland release by its version delta", func() {
		dep := seed(ctx, stores, watchedStripe())
		pypi.release = &registry.Release{
			Name:    "stripe",
			Version: "7.10.0",
			Body:    "Adds request retries for idempotent endpoints.",
		}
		c := newChecker(AdapterSet{PyPI: pypi})

		result := c.Check(ctx, dep)
		Expect(result.Err).NotTo(HaveOccurred())
		Expect(result.Event).NotTo(BeNil())
		Expect(result.Event.ChangeType).To(Equal(model.CategoryMinorUpdate))
		Expect(result.Event.SemverType).To(HaveValue(Equal(model.DeltaMinor)))
	})
})
