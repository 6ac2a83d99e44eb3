package event

import (
	"context"
	"fmt"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/redis/go-redis/v9"
)

// DefaultStreamName is the Redis stream receiving fulfillment events
const DefaultStreamName = "fulfillment:events"

// RedisStreamSink appends outbox entries to a Redis stream with XADD
type RedisStreamSink struct {
	client *redis.Client
	stream string
	maxLen int64
}

// RedisStreamSinkOption configures a RedisStreamSink
type RedisStreamSinkOption func(*RedisStreamSink)

// WithStream overrides the stream name
func WithStream(stream string) RedisStreamSinkOption {
	return func(s *RedisStreamSink) {
		s.stream = stream
	}
}

// WithMaxLen caps the stream length (approximate trimming)
func WithMaxLen(maxLen int64) RedisStreamSinkOption {
	return func(s *RedisStreamSink) {
		s.maxLen = maxLen
	}
}

// NewRedisStreamSink creates a sink with an existing Redis client
func NewRedisStreamSink(client *redis.Client, opts ...RedisStreamSinkOption) *RedisStreamSink {
	s := &RedisStreamSink{
		client: client,
		stream: DefaultStreamName,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Deliver implements Sink
func (s *RedisStreamSink) Deliver(ctx context.Context, entry *shared.OutboxEntry) error {
	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"event_id":       entry.EventID.String(),
			"event_type":     entry.EventType,
			"aggregate_type": entry.AggregateType,
			"aggregate_id":   entry.AggregateID.String(),
			"occurred_at":    entry.CreatedAt.UTC().Format("2006-01-02T15:04:05.000000Z07:00"),
			"payload":        string(entry.Payload),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to append event %s to stream %s: %w", entry.EventID, s.stream, err)
	}
	return nil
}

var _ Sink = (*RedisStreamSink)(nil)
