package event

import (
	"context"
	"sync"
	"time"

	"github.com/erp/fulfillment/internal/domain/shared"
	"go.uber.org/zap"
)

// Sink delivers one outbox entry outside the process
type Sink interface {
	Deliver(ctx context.Context, entry *shared.OutboxEntry) error
}

// OutboxRelayConfig holds configuration for the outbox relay
type OutboxRelayConfig struct {
	BatchSize    int
	PollInterval time.Duration
}

// DefaultOutboxRelayConfig returns default configuration
func DefaultOutboxRelayConfig() OutboxRelayConfig {
	return OutboxRelayConfig{
		BatchSize:    100,
		PollInterval: 5 * time.Second,
	}
}

// DrainResult counts what a drain did with the due entries
type DrainResult struct {
	Sent   int
	Failed int
	Dead   int
}

// OutboxRelay moves due outbox entries to a Sink
type OutboxRelay struct {
	repo       shared.OutboxRepository
	sink       Sink
	serializer *EventSerializer
	config     OutboxRelayConfig
	logger     *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOutboxRelay creates a new outbox relay
func NewOutboxRelay(
	repo shared.OutboxRepository,
	sink Sink,
	serializer *EventSerializer,
	config OutboxRelayConfig,
	logger *zap.Logger,
) *OutboxRelay {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultOutboxRelayConfig().BatchSize
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultOutboxRelayConfig().PollInterval
	}
	return &OutboxRelay{
		repo:       repo,
		sink:       sink,
		serializer: serializer,
		config:     config,
		logger:     logger,
	}
}

// Drain delivers due entries batch after batch until none is left.
// Entries failing delivery are rescheduled in the future, so a drain always terminates.
func (r *OutboxRelay) Drain(ctx context.Context) (*DrainResult, error) {
	result := &DrainResult{}
	for {
		entries, err := r.repo.FindDue(ctx, time.Now(), r.config.BatchSize)
		if err != nil {
			return result, err
		}
		for _, entry := range entries {
			if err := r.deliver(ctx, entry, result); err != nil {
				return result, err
			}
		}
		if len(entries) < r.config.BatchSize {
			break
		}
	}

	if result.Sent+result.Failed+result.Dead > 0 {
		r.logger.Info("outbox drained",
			zap.Int("sent", result.Sent),
			zap.Int("failed", result.Failed),
			zap.Int("dead", result.Dead),
		)
	}
	return result, nil
}

// Start drains the outbox every PollInterval until Stop is called
func (r *OutboxRelay) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(1)
	go r.loop(ctx)

	r.logger.Info("outbox relay started",
		zap.Int("batch_size", r.config.BatchSize),
		zap.Duration("poll_interval", r.config.PollInterval),
	)
	return nil
}

// Stop gracefully stops the relay
func (r *OutboxRelay) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("outbox relay stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *OutboxRelay) loop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Drain(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("failed to drain outbox", zap.Error(err))
			}
		}
	}
}

// deliver sends one entry and records the outcome. Only a failure to store
// the outcome is returned: delivery failures are rescheduled on the entry.
func (r *OutboxRelay) deliver(ctx context.Context, entry *shared.OutboxEntry, result *DrainResult) error {
	err := r.check(entry)
	if err == nil {
		err = r.sink.Deliver(ctx, entry)
	}

	if err != nil {
		entry.MarkFailed(err.Error())
		if entry.Status == shared.OutboxStatusDead {
			result.Dead++
			r.logger.Warn("outbox entry is dead",
				zap.String("event_id", entry.EventID.String()),
				zap.String("event_type", entry.EventType),
				zap.String("aggregate_id", entry.AggregateID.String()),
				zap.Int("retry_count", entry.RetryCount),
				zap.String("last_error", entry.LastError),
			)
		} else {
			result.Failed++
			r.logger.Warn("failed to deliver outbox entry",
				zap.String("event_id", entry.EventID.String()),
				zap.String("event_type", entry.EventType),
				zap.Int("retry_count", entry.RetryCount),
				zap.Error(err),
			)
		}
		return r.repo.Update(ctx, entry)
	}

	entry.MarkSent()
	result.Sent++
	return r.repo.Update(ctx, entry)
}

// check rejects payloads that no longer decode into their event type
func (r *OutboxRelay) check(entry *shared.OutboxEntry) error {
	if r.serializer == nil {
		return nil
	}
	_, err := r.serializer.Deserialize(entry.EventType, entry.Payload)
	return err
}

// LogSink writes entries to the structured log. It is the sink used when no broker is configured.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a new LogSink
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Deliver implements Sink
func (s *LogSink) Deliver(_ context.Context, entry *shared.OutboxEntry) error {
	s.logger.Info("domain event",
		zap.String("event_id", entry.EventID.String()),
		zap.String("event_type", entry.EventType),
		zap.String("aggregate_type", entry.AggregateType),
		zap.String("aggregate_id", entry.AggregateID.String()),
		zap.ByteString("payload", entry.Payload),
	)
	return nil
}

var _ Sink = (*LogSink)(nil)
