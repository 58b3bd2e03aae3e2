package worker

import (
	"context"

	"thirdwatch.dev/watch/internal/checker"
	"thirdwatch.dev/watch/internal/model"
	"thirdwatch.dev/watch/internal/queue"
)

// Consumer abstracts the message queue for testability.
type Consumer interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	Requeue(ctx context.Context, msg queue.Message, errMsg string) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
}

// CheckRunner abstracts the detection pipeline for testability.
type CheckRunner interface {
	Run(ctx context.Context, dep model.WatchedDependency) checker.RunResult
}
