package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

// CheckMessage is a request to run one detection cycle for a watched
// dependency. TraceID overrides the trace captured from ctx; leave it nil to
// propagate whatever span is live at enqueue time.
type CheckMessage struct {
	DependencyKey string
	TraceID       *string
	Attempt       int
}

type Producer interface {
	Enqueue(ctx context.Context, msg CheckMessage) error
	Close() error
}

type redisProducer struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

func NewRedisProducer(client *redis.Client, stream string, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{
		client: client,
		stream: stream,
		logger: logger,
	}
}

func (p *redisProducer) Enqueue(ctx context.Context, msg CheckMessage) error {
	attempt := msg.Attempt
	if attempt <= 0 {
		attempt = 1
	}

	// Serialize through the same helper the consumer requeues with, so an
	// enqueued message and a requeued one carry identical fields.
	values := messageValues(Message{
		TaskType:      TaskTypeDependencyCheck,
		DependencyKey: msg.DependencyKey,
		TraceID:       p.traceID(ctx, msg.TraceID),
	}, attempt)

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("enqueue check: %w", err)
	}

	p.logger.InfoContext(ctx, "enqueued dependency check", "dependency_key", msg.DependencyKey, "attempt", attempt)
	return nil
}

// traceID resolves the trace to stamp on the message: an explicit override
// wins, otherwise the span active on ctx, otherwise none.
func (p *redisProducer) traceID(ctx context.Context, override *string) string {
	if override != nil && *override != "" {
		return *override
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}
