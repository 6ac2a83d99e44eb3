package event

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/erp/fulfillment/internal/domain/shared"
)

type subscription struct {
	handler shared.EventHandler
	types   map[string]struct{} // nil matches every event type
}

func (s subscription) matches(eventType string) bool {
	if s.types == nil {
		return true
	}
	_, ok := s.types[eventType]
	return ok
}

// HandlerRegistry keeps subscriptions in the order they were made.
// Lookups read an immutable snapshot and never take the lock.
type HandlerRegistry struct {
	mu   sync.Mutex
	subs atomic.Pointer[[]subscription]
}

// NewHandlerRegistry creates an empty registry
func NewHandlerRegistry() *HandlerRegistry {
	r := &HandlerRegistry{}
	r.subs.Store(&[]subscription{})
	return r
}

// Register subscribes handler to eventTypes, or to every event when none is given
func (r *HandlerRegistry) Register(handler shared.EventHandler, eventTypes ...string) {
	sub := subscription{handler: handler}
	if len(eventTypes) > 0 {
		sub.types = make(map[string]struct{}, len(eventTypes))
		for _, eventType := range eventTypes {
			sub.types[eventType] = struct{}{}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	next := append(slices.Clone(*r.subs.Load()), sub)
	r.subs.Store(&next)
}

// Unregister drops every subscription of handler
func (r *HandlerRegistry) Unregister(handler shared.EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := slices.DeleteFunc(slices.Clone(*r.subs.Load()), func(s subscription) bool {
		return s.handler == handler
	})
	r.subs.Store(&next)
}

// GetHandlers returns the handlers subscribed to eventType in subscription order
func (r *HandlerRegistry) GetHandlers(eventType string) []shared.EventHandler {
	var handlers []shared.EventHandler
	for _, sub := range *r.subs.Load() {
		if sub.matches(eventType) {
			handlers = append(handlers, sub.handler)
		}
	}
	return handlers
}

func (r *HandlerRegistry) size() int {
	return len(*r.subs.Load())
}
