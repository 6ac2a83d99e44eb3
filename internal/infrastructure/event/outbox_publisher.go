package event

import (
	"context"

	"github.com/erp/fulfillment/internal/domain/shared"
)

// OutboxPublisher writes domain events to the outbox table, where the relay picks
// them up. Subscribed to the bus without event types it stores every event.
type OutboxPublisher struct {
	repo       shared.OutboxRepository
	serializer *EventSerializer
	maxRetries int
}

// OutboxPublisherOption configures an OutboxPublisher
type OutboxPublisherOption func(*OutboxPublisher)

// WithMaxRetries sets how many failed deliveries new entries tolerate before they are dead
func WithMaxRetries(n int) OutboxPublisherOption {
	return func(p *OutboxPublisher) {
		if n > 0 {
			p.maxRetries = n
		}
	}
}

// NewOutboxPublisher creates an outbox publisher
func NewOutboxPublisher(repo shared.OutboxRepository, serializer *EventSerializer, opts ...OutboxPublisherOption) *OutboxPublisher {
	p := &OutboxPublisher{
		repo:       repo,
		serializer: serializer,
		maxRetries: shared.DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish stores the events as pending entries with a single Save.
// Nothing is stored if any event fails to serialize.
func (p *OutboxPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}

	entries := make([]*shared.OutboxEntry, len(events))
	for i, event := range events {
		payload, err := p.serializer.Serialize(event)
		if err != nil {
			return err
		}
		entries[i] = shared.NewOutboxEntry(event, payload)
		entries[i].MaxRetries = p.maxRetries
	}
	return p.repo.Save(ctx, entries...)
}

// Handle stores a single event
func (p *OutboxPublisher) Handle(ctx context.Context, event shared.DomainEvent) error {
	return p.Publish(ctx, event)
}

// EventTypes returns nil so that the bus subscribes the publisher to every event
func (p *OutboxPublisher) EventTypes() []string { return nil }

var (
	_ shared.EventPublisher = (*OutboxPublisher)(nil)
	_ shared.EventHandler   = (*OutboxPublisher)(nil)
)
