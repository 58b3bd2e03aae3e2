package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"thirdwatch.dev/watch/common/logger"
	"thirdwatch.dev/watch/internal/queue"
)

type RedisReclaimerConfig struct {
	Stream    string
	Group     string
	Consumer  string
	MinIdle   time.Duration
	Interval  time.Duration
	BatchSize int64
}

// RedisReclaimer sweeps the consumer group's pending entries and re-runs
// messages whose consumer died between XREADGROUP and XACK. Without it a
// crashed worker's in-flight checks would stay pending forever.
type RedisReclaimer struct {
	client    *redis.Client
	cfg       RedisReclaimerConfig
	consumer  *queue.RedisConsumer
	processor queue.MessageProcessor

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewRedisReclaimer(client *redis.Client, cfg RedisReclaimerConfig, consumer *queue.RedisConsumer, processor queue.MessageProcessor) *RedisReclaimer {
	return &RedisReclaimer{
		client:    client,
		cfg:       cfg,
		consumer:  consumer,
		processor: processor,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run starts the reclaim loop. Blocks until Stop() is called.
func (r *RedisReclaimer) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "watch.worker.reclaimer",
	})

	defer close(r.stoppedCh)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "reclaimer started",
		"interval", r.cfg.Interval,
		"min_idle", r.cfg.MinIdle,
		"stream", r.cfg.Stream,
		"group", r.cfg.Group)

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			slog.InfoContext(ctx, "reclaimer stopping")
			return
		case <-ticker.C:
			if err := r.claimStale(ctx); err != nil {
				slog.ErrorContext(ctx, "reclaim cycle error", "error", err)
			}
		}
	}
}

// Stop signals the reclaimer to stop gracefully.
func (r *RedisReclaimer) Stop() {
	close(r.stopCh)
	<-r.stoppedCh
}

// claimStale finds entries idle past MinIdle, claims them for this consumer
// in one XCLAIM, and redelivers each to the processor.
func (r *RedisReclaimer) claimStale(ctx context.Context) error {
	pending, err := r.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: r.cfg.Stream,
		Group:  r.cfg.Group,
		Idle:   r.cfg.MinIdle,
		Start:  "-",
		End:    "+",
		Count:  r.cfg.BatchSize,
	}).Result()
	if err != nil {
		return fmt.Errorf("xpending: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	// Keep the pending info so each claimed message can log its delivery
	// history.
	ids := make([]string, 0, len(pending))
	history := make(map[string]redis.XPendingExt, len(pending))
	for _, p := range pending {
		ids = append(ids, p.ID)
		history[p.ID] = p
	}

	slog.InfoContext(ctx, "claiming stale messages", "count", len(ids))

	// Entries another worker claimed since the XPENDING call drop out of the
	// reply; they are that worker's problem now.
	claimed, err := r.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   r.cfg.Stream,
		Group:    r.cfg.Group,
		Consumer: r.cfg.Consumer,
		MinIdle:  r.cfg.MinIdle,
		Messages: ids,
	}).Result()
	if err != nil {
		return fmt.Errorf("xclaim: %w", err)
	}

	for _, msg := range claimed {
		if err := r.redeliver(ctx, msg, history[msg.ID]); err != nil {
			slog.ErrorContext(ctx, "reclaimed message failed",
				"error", err,
				"message_id", msg.ID)
		}
	}

	return nil
}

// redeliver runs one claimed message through the processor.
func (r *RedisReclaimer) redeliver(ctx context.Context, msg redis.XMessage, info redis.XPendingExt) error {
	msgID := msg.ID
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		MessageID: &msgID,
	})

	parsed, err := queue.ParseMessage(msg)
	if err != nil {
		// Poison entry. Ack it away or every sweep reclaims it again.
		slog.ErrorContext(ctx, "undecodable reclaimed message, acknowledging", "error", err)
		return r.consumer.Ack(ctx, queue.Message{ID: msg.ID, Raw: msg})
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		DependencyKey: &parsed.DependencyKey,
	})

	slog.InfoContext(ctx, "redelivering stale message",
		"original_consumer", info.Consumer,
		"idle_time", info.Idle,
		"delivery_count", info.RetryCount)

	start := time.Now()
	if err := r.processor(ctx, parsed); err != nil {
		return fmt.Errorf("processing reclaimed message: %w", err)
	}

	slog.InfoContext(ctx, "reclaimed message processed",
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}
