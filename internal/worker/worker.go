package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"thirdwatch.dev/watch/common/logger"
	"thirdwatch.dev/watch/internal/queue"
	"thirdwatch.dev/watch/internal/store"
)

type Config struct {
	MaxAttempts  int
	CheckTimeout time.Duration
}

type Worker struct {
	consumer Consumer
	deps     store.DependencyStore
	runner   CheckRunner
	cfg      Config

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(consumer Consumer, deps store.DependencyStore, runner CheckRunner, cfg Config) *Worker {
	return &Worker{
		consumer:  consumer,
		deps:      deps,
		runner:    runner,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stoppedCh)

	slog.InfoContext(ctx, "worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "worker stopping")
			return nil
		default:
			if err := w.processOneBatch(ctx); err != nil {
				slog.ErrorContext(ctx, "batch processing error", "error", err)
				// Brief backoff on error
				time.Sleep(time.Second)
			}
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	for _, msg := range messages {
		if err := w.processMessageSafe(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "message processing failed",
				"error", err,
				"message_id", msg.ID,
				"dependency_key", msg.DependencyKey)
			w.handleFailedMessage(ctx, msg, err)
		}
	}

	return nil
}

func (w *Worker) processMessageSafe(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in message processing",
				"panic", r,
				"message_id", msg.ID,
				"dependency_key", msg.DependencyKey)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.ProcessMessage(ctx, msg)
}

// Exported so it can be reused by the reclaimer.
func (w *Worker) ProcessMessage(ctx context.Context, msg queue.Message) error {
	// Link this span to the trace that enqueued the task.
	sc := logger.StartSpanFromTraceID(ctx, msg.TraceID, "worker.process_check",
		trace.WithSpanKind(trace.SpanKindConsumer))
	defer sc.End()
	ctx = sc.Context()

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		MessageID:     logger.Ptr(msg.ID),
		DependencyKey: logger.Ptr(msg.DependencyKey),
	})

	slog.InfoContext(ctx, "processing check task", "attempt", msg.Attempt)

	dep, err := w.deps.GetByKey(ctx, msg.DependencyKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Unwatched between schedule and delivery. Nothing to check.
			slog.InfoContext(ctx, "dependency no longer watched, skipping")
			if ackErr := w.consumer.Ack(ctx, msg); ackErr != nil {
				slog.WarnContext(ctx, "failed to ACK message", "error", ackErr)
			}
			return nil
		}
		return fmt.Errorf("fetching dependency: %w", err)
	}

	runCtx := ctx
	if w.cfg.CheckTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, w.cfg.CheckTimeout)
		defer cancel()
	}

	result := w.runner.Run(runCtx, *dep)
	if result.Check.Err != nil {
		sc.RecordError(result.Check.Err)
		return result.Check.Err
	}

	// ACK even when the check found nothing; the task is done either way.
	if err := w.consumer.Ack(ctx, msg); err != nil {
		// The reclaimer will redeliver. A duplicate run costs one registry
		// call; event creation and deliveries dedup downstream.
		slog.WarnContext(ctx, "failed to ACK message", "error", err)
	}

	if result.Check.Event != nil {
		slog.InfoContext(ctx, "check task completed",
			"changed", true,
			"suppressed", result.Suppressed,
			"notifications", len(result.Notifications))
	} else {
		slog.DebugContext(ctx, "check task completed", "changed", false, "skipped", result.Check.Skipped)
	}

	return nil
}

func (w *Worker) handleFailedMessage(ctx context.Context, msg queue.Message, err error) {
	if msg.Attempt >= w.cfg.MaxAttempts {
		slog.ErrorContext(ctx, "max attempts reached, sending to DLQ",
			"message_id", msg.ID,
			"dependency_key", msg.DependencyKey,
			"attempts", msg.Attempt)
		if dlqErr := w.consumer.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
			slog.ErrorContext(ctx, "failed to send to DLQ", "error", dlqErr)
		}
		return
	}

	slog.WarnContext(ctx, "requeuing failed message",
		"message_id", msg.ID,
		"dependency_key", msg.DependencyKey,
		"attempt", msg.Attempt)
	if requeueErr := w.consumer.Requeue(ctx, msg, err.Error()); requeueErr != nil {
		slog.ErrorContext(ctx, "failed to requeue message", "error", requeueErr)
	}
}
