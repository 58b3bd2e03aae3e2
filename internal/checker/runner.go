package checker

import (
	"context"
	"log/slog"

	"thirdwatch.dev/watch/common/metrics"
	"thirdwatch.dev/watch/internal/impact"
	"thirdwatch.dev/watch/internal/model"
	"thirdwatch.dev/watch/internal/notify"
	"thirdwatch.dev/watch/internal/store"
	"thirdwatch.dev/watch/internal/suppress"
)

// RunResult is one dependency's trip through the whole pipeline: detection,
// assessment, suppression, notification.
type RunResult struct {
	Check         CheckResult
	Assessment    *model.ImpactAssessment
	Suppressed    bool
	SuppressedBy  *model.SuppressionRule
	Notifications []model.NotificationResult
}

// Runner chains the pipeline stages behind one call. The worker task, the
// CLI batch and the on-demand HTTP check all run through it so the stages
// always execute in the same order with the same side effects.
type Runner struct {
	checker    *Checker
	scorer     *impact.Scorer
	rules      *suppress.Engine
	router     *notify.Router
	stores     store.Stores
	metrics    *metrics.Metrics
	repository string
}

// NewRunner wires the stages. rules and router may be nil: no suppression
// file means nothing suppresses, no channels mean detection-only runs.
func NewRunner(c *Checker, scorer *impact.Scorer, rules *suppress.Engine, router *notify.Router, stores store.Stores, m *metrics.Metrics, repository string) *Runner {
	return &Runner{
		checker:    c,
		scorer:     scorer,
		rules:      rules,
		router:     router,
		stores:     stores,
		metrics:    m,
		repository: repository,
	}
}

// Run executes one full cycle for one dependency. Stages after detection
// only run when this cycle recorded a new event; a deduplicated or unchanged
// check ends the cycle quietly.
func (r *Runner) Run(ctx context.Context, dep model.WatchedDependency) RunResult {
	out := RunResult{Check: r.checker.Check(ctx, dep)}
	if out.Check.Err != nil || out.Check.Event == nil {
		return out
	}
	event := *out.Check.Event

	assessment := r.scorer.Assess(ctx, event, dep)
	if err := r.stores.Assessments().Put(ctx, assessment); err != nil {
		// Assessments are derived and recomputable; losing the write does
		// not justify dropping the notification.
		slog.WarnContext(ctx, "persisting assessment failed",
			"dependency_key", out.Check.DependencyKey,
			"change_event_id", event.ID,
			"error", err)
	}
	out.Assessment = &assessment

	if r.rules != nil {
		if decision := r.rules.ShouldSuppress(assessment, event); decision.Suppressed {
			r.metrics.RecordSuppressed()
			slog.InfoContext(ctx, "assessment suppressed",
				"dependency_key", out.Check.DependencyKey,
				"change_event_id", event.ID,
				"rule_dependency", decision.Rule.Dependency,
				"rule_reason", decision.Rule.Reason)
			out.Suppressed = true
			out.SuppressedBy = decision.Rule
			return out
		}
	}

	if r.router != nil {
		out.Notifications = r.router.Dispatch(ctx, notify.Notification{
			Event:      event,
			Assessment: assessment,
			Repository: r.repository,
		})
	}
	return out
}
