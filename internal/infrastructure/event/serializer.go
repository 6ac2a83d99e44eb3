package event

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/domain/stock"
)

type decodeFunc func(data []byte) (shared.DomainEvent, error)

// EventSerializer turns domain events into outbox payloads. Only event types with
// a registered decoder can be read back, which is how the relay rejects payloads
// it would not be able to replay.
type EventSerializer struct {
	mu       sync.RWMutex
	decoders map[string]decodeFunc
}

// NewEventSerializer creates a serializer without decoders
func NewEventSerializer() *EventSerializer {
	return &EventSerializer{decoders: make(map[string]decodeFunc)}
}

// NewStockEventSerializer creates a serializer for the stock events
func NewStockEventSerializer() *EventSerializer {
	s := NewEventSerializer()
	RegisterEvent[stock.UnitsReconciledEvent](s, stock.EventTypeStockUnitsReconciled)
	RegisterEvent[stock.AssignmentsUpdatedEvent](s, stock.EventTypeStockAssignmentsUpdated)
	return s
}

// RegisterEvent makes s decode eventType payloads into a *T
func RegisterEvent[T any, PT interface {
	*T
	shared.DomainEvent
}](s *EventSerializer, eventType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decoders[eventType] = func(data []byte) (shared.DomainEvent, error) {
		event := PT(new(T))
		if err := json.Unmarshal(data, event); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", eventType, err)
		}
		return event, nil
	}
}

// Serialize encodes a domain event as JSON
func (s *EventSerializer) Serialize(event shared.DomainEvent) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event %s: %w", event.EventType(), err)
	}
	return data, nil
}

// Deserialize decodes a payload stored for eventType
func (s *EventSerializer) Deserialize(eventType string, data []byte) (shared.DomainEvent, error) {
	s.mu.RLock()
	decode, ok := s.decoders[eventType]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}
	return decode(data)
}

// IsRegistered reports whether eventType has a decoder
func (s *EventSerializer) IsRegistered(eventType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.decoders[eventType] != nil
}
