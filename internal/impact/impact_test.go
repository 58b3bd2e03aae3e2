package impact

import (
	"context"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"thirdwatch.dev/watch/common/logger"
	"thirdwatch.dev/watch/core/config"
	"thirdwatch.dev/watch/internal/model"
)

type fakeSuggester struct {
	suggestion string
	err        error
	calls      int
}

func (f *fakeSuggester) Suggest(_ context.Context, _ model.ChangeEvent, _ model.WatchedDependency) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.suggestion, nil
}

func testWeights() config.ImpactConfig {
	return config.ImpactConfig{
		UsageWeight:        1,
		SpreadWeight:       2,
		CriticalBoost:      25,
		HighUsageThreshold: 50,
		CriticalPaths:      []string{"payments", "auth"},
	}
}

func breakingEvent() model.ChangeEvent {
	return model.ChangeEvent{
		ID:              42,
		DependencyID:    7,
		DependencyKey:   "package:pypi:stripe",
		Identifier:      "stripe",
		Provider:        "pypi",
		ChangeType:      model.CategoryBreaking,
		PreviousVersion: "7.9.0",
		NewVersion:      "8.0.0",
		Title:           "stripe 8.0.0",
		Body:            logger.Ptr("BREAKING CHANGE: removed endpoint /v1/legacy_charges"),
		URL:             logger.Ptr("https://pypi.org/project/stripe/8.0.0/"),
	}
}

func stripeDep() model.WatchedDependency {
	return model.WatchedDependency{
		ID:         7,
		Kind:       model.KindPackage,
		Identifier: "stripe",
		Ecosystem:  model.EcosystemPyPI,
		Locations: []model.SourceLocation{
			{File: "setup.py", Line: 12, UsageType: "config"},
			{File: "payments/stripe_client.py", Line: 3, UsageType: "import"},
			{File: "payments/stripe_client.py", Line: 41, UsageType: "call"},
		},
	}
}

var _ = Describe("Scorer", func() {
	ctx := context.Background()

	It("scores usage, spread and the critical-path boost", func() {
		s := NewScorer(testWeights(), nil, nil)

		a := s.Assess(ctx, breakingEvent(), stripeDep())
		Expect(a.ChangeEventID).To(Equal(int64(42)))
		// 3 locations + 2 files*2 + 25 for payments/.
		Expect(a.Score).To(Equal(32.0))
		Expect(a.Priority).To(Equal(model.PriorityP1))
		Expect(a.AffectedLocations).To(HaveLen(3))
		Expect(a.HumanSummary).To(Equal(
			"stripe 7.9.0 to 8.0.0 is a breaking change affecting 3 locations across 2 files"))
	})

	It("skips the boost when no affected file is critical", func() {
		s := NewScorer(testWeights(), nil, nil)
		dep := stripeDep()
		dep.Locations = []model.SourceLocation{{File: "lib/client.py", Line: 4}}

		a := s.Assess(ctx, breakingEvent(), dep)
		Expect(a.Score).To(Equal(3.0))
		Expect(a.HumanSummary).To(ContainSubstring("affecting 1 location across 1 file"))
	})

	It("escalates breaking changes to P0 at the usage threshold", func() {
		s := NewScorer(testWeights(), nil, nil)
		dep := stripeDep()
		dep.Locations = nil
		for i := 0; i < 50; i++ {
			dep.Locations = append(dep.Locations, model.SourceLocation{
				File: "src/handlers.py", Line: i + 1,
			})
		}

		a := s.Assess(ctx, breakingEvent(), dep)
		Expect(a.Priority).To(Equal(model.PriorityP0))
		Expect(a.Score).To(Equal(52.0))
	})

	It("counts a repeated file and line once", func() {
		s := NewScorer(testWeights(), nil, nil)
		dep := stripeDep()
		dep.Locations = append(dep.Locations, model.SourceLocation{
			File: "payments/stripe_client.py", Line: 41, UsageType: "call",
		})

		a := s.Assess(ctx, breakingEvent(), dep)
		Expect(a.AffectedLocations).To(HaveLen(3))
		Expect(a.Score).To(Equal(32.0))
	})

	It("summarizes a dependency with no recorded locations", func() {
		s := NewScorer(testWeights(), nil, nil)
		dep := stripeDep()
		dep.Locations = nil

		a := s.Assess(ctx, breakingEvent(), dep)
		Expect(a.Score).To(BeZero())
		Expect(a.Priority).To(Equal(model.PriorityP1))
		Expect(a.HumanSummary).To(Equal(
			"stripe 7.9.0 to 8.0.0 is a breaking change with no recorded source locations"))
	})

	Describe("remediation", func() {
		It("prefers a registry match over everything else", func() {
			reg, err := LoadRemedies("testdata/remediations.yaml")
			Expect(err).NotTo(HaveOccurred())
			fake := &fakeSuggester{suggestion: "unused"}
			s := NewScorer(testWeights(), reg, fake)

			a := s.Assess(ctx, breakingEvent(), stripeDep())
			Expect(a.Remediation).NotTo(BeNil())
			Expect(a.Remediation.Source).To(Equal(model.RemediationRegistry))
			Expect(a.Remediation.Suggestion).To(ContainSubstring("PaymentIntents"))
			Expect(fake.calls).To(BeZero())
		})

		It("marks generated suggestions as model-sourced", func() {
			fake := &fakeSuggester{suggestion: "Swap the charges call for PaymentIntents.Create."}
			s := NewScorer(testWeights(), nil, fake)

			a := s.Assess(ctx, breakingEvent(), stripeDep())
			Expect(a.Remediation).NotTo(BeNil())
			Expect(a.Remediation.Source).To(Equal(model.RemediationModel))
			Expect(fake.calls).To(Equal(1))
		})

		It("never consults the model for non-breaking changes", func() {
			fake := &fakeSuggester{suggestion: "unused"}
			s := NewScorer(testWeights(), nil, fake)
			event := breakingEvent()
			event.ChangeType = model.CategoryMajorUpdate

			a := s.Assess(ctx, event, stripeDep())
			Expect(fake.calls).To(BeZero())
			Expect(a.Remediation).NotTo(BeNil())
			Expect(a.Remediation.Source).To(Equal(model.RemediationFallback))
		})

		It("degrades to the release URL when the model fails", func() {
			fake := &fakeSuggester{err: errors.New("rate limited")}
			s := NewScorer(testWeights(), nil, fake)

			a := s.Assess(ctx, breakingEvent(), stripeDep())
			Expect(fake.calls).To(Equal(1))
			Expect(a.Remediation).NotTo(BeNil())
			Expect(a.Remediation.Source).To(Equal(model.RemediationFallback))
			Expect(a.Remediation.Suggestion).To(ContainSubstring("https://pypi.org/project/stripe/8.0.0/"))
		})

		It("omits remediation when nothing applies", func() {
			s := NewScorer(testWeights(), nil, nil)
			event := breakingEvent()
			event.URL = nil

			a := s.Assess(ctx, event, stripeDep())
			Expect(a.Remediation).To(BeNil())
		})
	})
})

var _ = Describe("score monotonicity", func() {
	It("never drops as usage grows", func() {
		s := NewScorer(testWeights(), nil, nil)
		event := breakingEvent()
		dep := stripeDep()
		dep.Locations = nil

		prev := -1.0
		for i := 0; i < 60; i++ {
			dep.Locations = append(dep.Locations, model.SourceLocation{
				File: fmt.Sprintf("src/mod_%d.py", i%7), Line: i + 1,
			})
			a := s.Assess(context.Background(), event, dep)
			Expect(a.Score).To(BeNumerically(">=", prev))
			prev = a.Score
		}
	})
})
