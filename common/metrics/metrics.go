package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "thirdwatch"

// Metrics holds the Prometheus collectors for the watch pipeline.
// Initialize once at startup via Init(); collectors register against the
// default registry and are safe for concurrent use. All record helpers are
// nil-safe so components can run without metrics in tests and the CLI.
type Metrics struct {
	// ChecksTotal counts check cycles by provider and outcome.
	// Labels: provider, status (changed, unchanged, skipped, error)
	ChecksTotal *prometheus.CounterVec

	// CheckDuration measures one check cycle end to end.
	// Labels: provider
	CheckDuration *prometheus.HistogramVec

	// ChangesTotal counts detected changes by resolved category.
	// Labels: category
	ChangesTotal *prometheus.CounterVec

	// NotModifiedTotal counts conditional-request hits, i.e. registry
	// responses answered from the validator cache.
	// Labels: provider
	NotModifiedTotal *prometheus.CounterVec

	// NotificationsTotal counts delivery attempts by channel type and outcome.
	// Labels: channel_type, status (delivered, deduplicated, failed)
	NotificationsTotal *prometheus.CounterVec

	// SuppressedTotal counts assessments filtered out by suppression rules.
	SuppressedTotal prometheus.Counter
}

// Default is the process-wide metrics instance, set by Init.
var Default *Metrics

func Init() *Metrics {
	Default = &Metrics{
		ChecksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "checks_total",
				Help:      "Dependency check cycles by provider and outcome",
			},
			[]string{"provider", "status"},
		),

		CheckDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "check_duration_seconds",
				Help:      "Duration of one dependency check cycle",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"provider"},
		),

		ChangesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "changes_total",
				Help:      "Detected upstream changes by resolved category",
			},
			[]string{"category"},
		),

		NotModifiedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "registry_not_modified_total",
				Help:      "Registry responses short-circuited by a cached validator",
			},
			[]string{"provider"},
		),

		NotificationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Notification attempts by channel type and outcome",
			},
			[]string{"channel_type", "status"},
		),

		SuppressedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "suppressed_total",
				Help:      "Assessments filtered out by suppression rules",
			},
		),
	}

	return Default
}

func (m *Metrics) RecordCheck(provider, status string, seconds float64) {
	if m == nil {
		return
	}
	m.ChecksTotal.WithLabelValues(provider, status).Inc()
	m.CheckDuration.WithLabelValues(provider).Observe(seconds)
}

func (m *Metrics) RecordChange(category string) {
	if m == nil {
		return
	}
	m.ChangesTotal.WithLabelValues(category).Inc()
}

func (m *Metrics) RecordNotModified(provider string) {
	if m == nil {
		return
	}
	m.NotModifiedTotal.WithLabelValues(provider).Inc()
}

func (m *Metrics) RecordNotification(channelType, status string) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(channelType, status).Inc()
}

func (m *Metrics) RecordSuppressed() {
	if m == nil {
		return
	}
	m.SuppressedTotal.Inc()
}
