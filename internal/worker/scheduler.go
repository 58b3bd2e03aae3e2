package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"

	"thirdwatch.dev/watch/common/logger"
	"thirdwatch.dev/watch/internal/queue"
	"thirdwatch.dev/watch/internal/store"
)

const leaseKeyPrefix = "watch:check-lease:"

type SchedulerConfig struct {
	Interval time.Duration // how often every watched dependency is enqueued
	LeaseTTL time.Duration // in-flight window per dependency key
}

// Scheduler sweeps the watched dependencies on a fixed interval and enqueues
// one check task per dependency. A SETNX lease per dependency key keeps at
// most one task in flight even when sweeps overlap or multiple schedulers run.
type Scheduler struct {
	client   *redis.Client
	producer queue.Producer
	deps     store.DependencyStore
	cfg      SchedulerConfig

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewScheduler(client *redis.Client, producer queue.Producer, deps store.DependencyStore, cfg SchedulerConfig) *Scheduler {
	return &Scheduler{
		client:    client,
		producer:  producer,
		deps:      deps,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run starts the schedule loop. Blocks until Stop() is called.
func (s *Scheduler) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "watch.worker.scheduler",
	})

	defer close(s.stoppedCh)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "scheduler started",
		"interval", s.cfg.Interval,
		"lease_ttl", s.cfg.LeaseTTL)

	// Sweep once at startup so a fresh deployment does not sit idle for a
	// full interval before its first check.
	if err := s.sweepOnce(ctx); err != nil {
		slog.ErrorContext(ctx, "schedule sweep error", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			slog.InfoContext(ctx, "scheduler stopping")
			return
		case <-ticker.C:
			if err := s.sweepOnce(ctx); err != nil {
				slog.ErrorContext(ctx, "schedule sweep error", "error", err)
			}
		}
	}
}

// Stop signals the scheduler to stop gracefully.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	<-s.stoppedCh
}

func (s *Scheduler) sweepOnce(ctx context.Context) error {
	// The sweep span's trace ID rides along on every enqueued message, so a
	// worker-side check links back to the sweep that scheduled it.
	sc := logger.StartSpan(ctx, "scheduler.sweep", trace.WithSpanKind(trace.SpanKindProducer))
	defer sc.End()
	ctx = sc.Context()

	deps, err := s.deps.List(ctx)
	if err != nil {
		return fmt.Errorf("listing dependencies: %w", err)
	}

	var enqueued, inFlight int
	for _, dep := range deps {
		key := dep.Key()

		acquired, err := s.acquireLease(ctx, key)
		if err != nil {
			slog.ErrorContext(ctx, "lease acquisition failed", "error", err, "dependency_key", key)
			continue
		}
		if !acquired {
			inFlight++
			continue
		}

		if err := s.producer.Enqueue(ctx, queue.CheckMessage{DependencyKey: key}); err != nil {
			slog.ErrorContext(ctx, "failed to enqueue check", "error", err, "dependency_key", key)
			// Give the lease back so the next sweep retries this key instead
			// of waiting out the TTL.
			s.releaseLease(ctx, key)
			continue
		}
		enqueued++
	}

	slog.InfoContext(ctx, "schedule sweep completed",
		"watched", len(deps),
		"enqueued", enqueued,
		"in_flight", inFlight)
	return nil
}

func (s *Scheduler) acquireLease(ctx context.Context, dependencyKey string) (bool, error) {
	// The value is informational; SETNX semantics carry the exclusion.
	return s.client.SetNX(ctx, leaseKeyPrefix+dependencyKey, time.Now().UTC().Format(time.RFC3339), s.cfg.LeaseTTL).Result()
}

func (s *Scheduler) releaseLease(ctx context.Context, dependencyKey string) {
	if err := s.client.Del(ctx, leaseKeyPrefix+dependencyKey).Err(); err != nil {
		slog.WarnContext(ctx, "failed to release lease", "error", err, "dependency_key", dependencyKey)
	}
}
