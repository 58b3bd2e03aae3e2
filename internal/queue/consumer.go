package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"thirdwatch.dev/watch/common/logger"
)

type ConsumerConfig struct {
	Stream       string        // check-task stream
	Group        string        // consumer group name
	Consumer     string        // this process's consumer name within the group
	DLQStream    string        // where exhausted messages land
	BatchSize    int64         // messages per XREADGROUP call
	Block        time.Duration // XREADGROUP block duration
	MaxAttempts  int           // attempts before a message goes to the DLQ
	RequeueDelay time.Duration // base delay before a retry re-enters the stream
}

// Message is one decoded check task.
type Message struct {
	ID            string
	TaskType      TaskType
	DependencyKey string
	Attempt       int
	TraceID       string
	Raw           redis.XMessage
}

// MessageProcessor processes a queue message.
type MessageProcessor func(ctx context.Context, msg Message) error

type RedisConsumer struct {
	client *redis.Client
	cfg    ConsumerConfig
}

func NewRedisConsumer(client *redis.Client, cfg ConsumerConfig) (*RedisConsumer, error) {
	consumer := &RedisConsumer{
		client: client,
		cfg:    cfg,
	}

	if err := consumer.ensureGroup(context.Background()); err != nil { //nolint:contextcheck
		return nil, err
	}

	return consumer, nil
}

func (c *RedisConsumer) ensureGroup(ctx context.Context) error {
	// Group starts at "0", not "$": a group recreated after the stream already
	// has entries must still see them, or checks enqueued across a restart
	// vanish.
	err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return fmt.Errorf("creating consumer group: %w", err)
	}
	return nil
}

// Read blocks up to cfg.Block for new messages and decodes them. Messages
// that cannot be decoded are acknowledged and dropped, so one malformed entry
// cannot wedge the group.
func (c *RedisConsumer) Read(ctx context.Context) ([]Message, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "watch.queue.consumer",
	})

	// ">" asks for entries never delivered to this group; entries delivered
	// but not acked belong to the reclaimer.
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  []string{c.cfg.Stream, ">"},
		Count:    c.cfg.BatchSize,
		Block:    c.cfg.Block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []Message{}, nil
		}
		return nil, fmt.Errorf("reading from stream: %w", err)
	}
	if len(streams) == 0 {
		return []Message{}, nil
	}

	// One stream requested, one returned.
	raw := streams[0].Messages
	messages := make([]Message, 0, len(raw))
	for _, entry := range raw {
		parsed, parseErr := ParseMessage(entry)
		if parseErr != nil {
			slog.ErrorContext(ctx, "dropping undecodable message",
				"error", parseErr,
				"raw_message_id", entry.ID,
				"stream", c.cfg.Stream)
			_ = c.Ack(ctx, Message{ID: entry.ID, Raw: entry})
			continue
		}
		messages = append(messages, parsed)
	}

	if len(messages) > 0 {
		slog.DebugContext(ctx, "read messages from stream",
			"count", len(messages),
			"stream", c.cfg.Stream,
			"consumer", c.cfg.Consumer)
	}

	return messages, nil
}

func (c *RedisConsumer) Ack(ctx context.Context, msg Message) error {
	if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, msg.ID).Err(); err != nil {
		return fmt.Errorf("xack (stream=%s): %w", c.cfg.Stream, err)
	}

	slog.DebugContext(ctx, "message acknowledged", "stream", c.cfg.Stream)
	return nil
}

// Requeue acks the failed delivery and appends a fresh copy carrying the
// bumped attempt count, after a backoff that grows with the attempts already
// burned. The copy gets a new stream ID; identity for retry accounting is the
// attempt field, not the ID.
func (c *RedisConsumer) Requeue(ctx context.Context, msg Message, errMsg string) error {
	attempt := msg.Attempt + 1
	if attempt <= 1 {
		attempt = 2
	}

	if err := c.Ack(ctx, msg); err != nil {
		return fmt.Errorf("acking failed message for requeue: %w", err)
	}

	values := messageValues(msg, attempt)
	if errMsg != "" {
		values["last_error"] = errMsg
	}

	if delay := requeueBackoff(c.cfg.RequeueDelay, attempt); delay > 0 {
		time.Sleep(delay)
	}

	if err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.cfg.Stream,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("xadd requeue: %w", err)
	}

	slog.InfoContext(ctx, "message requeued for retry",
		"next_attempt", attempt,
		"reason", errMsg)
	return nil
}

// SendDLQ moves an exhausted message to the dead-letter stream with its final
// error attached, preserving the original fields for replay.
func (c *RedisConsumer) SendDLQ(ctx context.Context, msg Message, errMsg string) error {
	if err := c.Ack(ctx, msg); err != nil {
		return fmt.Errorf("acking failed message for dlq: %w", err)
	}

	values := messageValues(msg, msg.Attempt)
	values["error"] = errMsg

	if err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.cfg.DLQStream,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("xadd dlq (stream=%s): %w", c.cfg.DLQStream, err)
	}

	slog.ErrorContext(ctx, "message sent to DLQ",
		"final_error", errMsg,
		"dlq_stream", c.cfg.DLQStream)
	return nil
}

func ParseMessage(msg redis.XMessage) (Message, error) {
	dependencyKey, err := parseOptionalString(msg.Values, "dependency_key")
	if err != nil {
		return Message{}, err
	}
	traceID, err := parseOptionalString(msg.Values, "trace_id")
	if err != nil {
		return Message{}, err
	}

	attempt, err := parseOptionalInt(msg.Values, "attempt")
	if err != nil {
		return Message{}, err
	}
	if attempt == 0 {
		attempt = 1
	}

	taskTypeStr, err := parseOptionalString(msg.Values, "task_type")
	if err != nil {
		return Message{}, err
	}

	taskType := TaskType(taskTypeStr)
	if taskType == "" {
		// Hand-enqueued messages tend to carry only the key. Assume the one
		// task type we run rather than bouncing them to the parse-error path.
		if dependencyKey != "" {
			taskType = TaskTypeDependencyCheck
		} else {
			return Message{}, fmt.Errorf("missing task_type")
		}
	}

	switch taskType {
	case TaskTypeDependencyCheck:
		if dependencyKey == "" {
			return Message{}, fmt.Errorf("missing dependency_key")
		}
	default:
		return Message{}, fmt.Errorf("unknown task_type %q", taskType)
	}

	return Message{
		ID:            msg.ID,
		TaskType:      taskType,
		DependencyKey: dependencyKey,
		Attempt:       attempt,
		TraceID:       traceID,
		Raw:           msg,
	}, nil
}

// maxRequeueDelay caps the retry backoff. Anything slower and the task may as
// well wait for the next schedule sweep.
const maxRequeueDelay = time.Minute

// requeueBackoff doubles the configured delay for every attempt already
// burned. nextAttempt is the attempt the requeued message will carry.
func requeueBackoff(base time.Duration, nextAttempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	shift := nextAttempt - 2
	if shift < 0 {
		shift = 0
	}
	if shift > 6 {
		shift = 6
	}
	delay := base << uint(shift)
	if delay > maxRequeueDelay {
		delay = maxRequeueDelay
	}
	return delay
}

func parseOptionalInt(values map[string]any, key string) (int, error) {
	raw, ok := values[key]
	if !ok {
		return 0, nil
	}
	str := fmt.Sprint(raw)
	num, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return num, nil
}

func parseOptionalString(values map[string]any, key string) (string, error) {
	raw, ok := values[key]
	if !ok {
		return "", nil
	}
	return fmt.Sprint(raw), nil
}

// messageValues flattens a Message back to stream fields. Empty fields are
// omitted so ParseMessage's optional handling round-trips.
func messageValues(msg Message, attempt int) map[string]any {
	values := map[string]any{
		"task_type": string(msg.TaskType),
		"attempt":   attempt,
	}

	if msg.TaskType == "" {
		values["task_type"] = string(TaskTypeDependencyCheck)
	}

	if msg.DependencyKey != "" {
		values["dependency_key"] = msg.DependencyKey
	}
	if msg.TraceID != "" {
		values["trace_id"] = msg.TraceID
	}

	return values
}
