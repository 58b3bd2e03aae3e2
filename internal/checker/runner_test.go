package checker

import (
	"context"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"thirdwatch.dev/watch/common/logger"
	"thirdwatch.dev/watch/core/config"
	"thirdwatch.dev/watch/internal/impact"
	"thirdwatch.dev/watch/internal/model"
	"thirdwatch.dev/watch/internal/notify"
	"thirdwatch.dev/watch/internal/registry"
	"thirdwatch.dev/watch/internal/store"
	"thirdwatch.dev/watch/internal/suppress"
)

// captureChannel is a notify adapter that remembers what it was sent.
type captureChannel struct {
	sent []notify.Notification
}

func (c *captureChannel) Send(ctx context.Context, n notify.Notification) (*notify.Delivery, error) {
	c.sent = append(c.sent, n)
	return &notify.Delivery{}, nil
}

func scoringWeights() config.ImpactConfig {
	return config.ImpactConfig{
		UsageWeight:        1,
		SpreadWeight:       2,
		CriticalBoost:      25,
		HighUsageThreshold: 50,
		CriticalPaths:      []string{"payments", "auth"},
	}
}

var _ = Describe("Runner", func() {
	var (
		ctx     context.Context
		stores  store.Stores
		pypi    *fakeRegistry
		channel *captureChannel
	)

	BeforeEach(func() {
		ctx = context.Background()
		stores = store.NewMemory()
		pypi = &fakeRegistry{provider: registry.ProviderPyPI, release: stripeRelease()}
		channel = &captureChannel{}
	})

	newRunner := func(rules *suppress.Engine) *Runner {
		c := NewChecker(AdapterSet{PyPI: pypi}, newTestPipeline(), stores, nil)
		scorer := impact.NewScorer(scoringWeights(), nil, nil)
		router := notify.NewRouter([]notify.BoundChannel{{
			Config: model.ChannelConfig{
				ID:   "pager",
				Type: model.ChannelWebhook,
				Routing: model.RoutingRule{
					Priorities: []model.Priority{model.PriorityP0, model.PriorityP1},
				},
			},
			Adapter: channel,
		}}, stores.Deliveries(), nil)
		return NewRunner(c, scorer, rules, router, stores, nil, "acme/payments-service")
	}

	It("carries a breaking release from detection to delivery", func() {
		dep := seed(ctx, stores, watchedStripe())
		runner := newRunner(nil)

		out := runner.Run(ctx, dep)

		Expect(out.Check.Err).NotTo(HaveOccurred())
		Expect(out.Check.Event).NotTo(BeNil())
		Expect(out.Check.Event.ChangeType).To(Equal(model.CategoryBreaking))

		Expect(out.Assessment).NotTo(BeNil())
		Expect(out.Assessment.Priority).To(Equal(model.PriorityP1), "3 usages stay under the high-usage threshold")
		Expect(out.Assessment.Score).To(Equal(32.0))
		Expect(out.Assessment.Remediation).NotTo(BeNil())
		Expect(out.Assessment.Remediation.Source).To(Equal(model.RemediationFallback))

		stored, err := stores.Assessments().GetByChangeEvent(ctx, out.Check.Event.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.Priority).To(Equal(model.PriorityP1))

		Expect(out.Suppressed).To(BeFalse())
		Expect(out.Notifications).To(HaveLen(1))
		Expect(out.Notifications[0].Success).To(BeTrue())
		Expect(out.Notifications[0].Deduplicated).To(BeFalse())

		Expect(channel.sent).To(HaveLen(1))
		Expect(channel.sent[0].Repository).To(Equal("acme/payments-service"))
		Expect(channel.sent[0].Event.ID).To(Equal(out.Check.Event.ID))
	})

	It("does nothing downstream on an unchanged second run", func() {
		dep := seed(ctx, stores, watchedStripe())
		runner := newRunner(nil)

		Expect(runner.Run(ctx, dep).Check.Event).NotTo(BeNil())

		advanced, err := stores.Dependencies().GetByKey(ctx, dep.Key())
		Expect(err).NotTo(HaveOccurred())

		second := runner.Run(ctx, *advanced)
		Expect(second.Check.Event).To(BeNil())
		Expect(second.Assessment).To(BeNil())
		Expect(second.Notifications).To(BeEmpty())
		Expect(channel.sent).To(HaveLen(1))
	})

	It("stops at suppression and never reaches the channels", func() {
		dep := seed(ctx, stores, watchedStripe())
		rules, err := suppress.NewEngine([]model.SuppressionRule{{
			Dependency: "stripe",
			Reason:     "payments team tracks stripe by hand",
		}})
		Expect(err).NotTo(HaveOccurred())
		runner := newRunner(rules)

		out := runner.Run(ctx, dep)

		Expect(out.Check.Event).NotTo(BeNil())
		Expect(out.Suppressed).To(BeTrue())
		Expect(out.SuppressedBy).NotTo(BeNil())
		Expect(out.SuppressedBy.Reason).To(Equal("payments team tracks stripe by hand"))
		Expect(out.Notifications).To(BeEmpty())
		Expect(channel.sent).To(BeEmpty())

		// The assessment is still recorded for audit.
		_, err = stores.Assessments().GetByChangeEvent(ctx, out.Check.Event.ID)
		Expect(err).NotTo(HaveOccurred())
	})
})

var _ = Describe("RunBatch", func() {
	It("isolates failures and aggregates the outcomes", func() {
		ctx := context.Background()
		stores := store.NewMemory()

		pypi := &fakeRegistry{provider: registry.ProviderPyPI, release: stripeRelease()}
		npm := &fakeRegistry{provider: registry.ProviderNPM, err: fmt.Errorf("connect: connection refused")}

		express := model.WatchedDependency{
			Kind:           model.KindPackage,
			Identifier:     "express",
			Ecosystem:      model.EcosystemNPM,
			CurrentVersion: logger.Ptr("4.18.2"),
			Locations:      []model.SourceLocation{{File: "src/app.js", Line: 1}},
		}
		redis := model.WatchedDependency{
			Kind:       model.KindInfrastructure,
			Identifier: "redis",
		}

		deps := []model.WatchedDependency{
			seed(ctx, stores, watchedStripe()),
			seed(ctx, stores, express),
			seed(ctx, stores, redis),
		}

		channel := &captureChannel{}
		c := NewChecker(AdapterSet{PyPI: pypi, NPM: npm}, newTestPipeline(), stores, nil)
		scorer := impact.NewScorer(scoringWeights(), nil, nil)
		router := notify.NewRouter([]notify.BoundChannel{{
			Config:  model.ChannelConfig{ID: "pager", Type: model.ChannelWebhook},
			Adapter: channel,
		}}, stores.Deliveries(), nil)
		runner := NewRunner(c, scorer, nil, router, stores, nil, "")

		summary := runner.RunBatch(ctx, deps, 2, 0)

		Expect(summary.Checked).To(Equal(3))
		Expect(summary.Changed).To(Equal(1))
		Expect(summary.Failed).To(Equal(1))
		Expect(summary.Skipped).To(Equal(1))
		Expect(summary.Suppressed).To(BeZero())
		Expect(summary.Notified).To(Equal(1))
		Expect(summary.Results).To(HaveLen(3))

		Expect(summary.Results[0].Check.Event).NotTo(BeNil())
		Expect(summary.Results[1].Check.Err).To(MatchError(ContainSubstring("connection refused")))
		Expect(summary.Results[2].Check.Skipped).To(BeTrue())
	})
})
