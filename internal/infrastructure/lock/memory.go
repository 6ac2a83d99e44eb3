// Package lock serializes stock assignment updates per stock unit.
package lock

import (
	"context"
	"fmt"
	"sort"
	"sync"

	appstock "github.com/erp/fulfillment/internal/application/stock"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/google/uuid"
)

// MemoryLocker locks stock units inside one process.
// Each unit is guarded by a one-slot channel so that waiting honours the context.
type MemoryLocker struct {
	mu    sync.Mutex
	slots map[uuid.UUID]*slot
}

type slot struct {
	ch      chan struct{}
	waiters int
}

// NewMemoryLocker creates a new MemoryLocker
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{slots: make(map[uuid.UUID]*slot)}
}

// Acquire locks every unit, in ascending id order. On failure the locks already taken are released.
func (l *MemoryLocker) Acquire(ctx context.Context, unitIDs []uuid.UUID) (appstock.Release, error) {
	ids := sortedUnique(unitIDs)
	held := make([]uuid.UUID, 0, len(ids))

	for _, id := range ids {
		s := l.join(id)
		select {
		case s.ch <- struct{}{}:
			held = append(held, id)
		case <-ctx.Done():
			l.leave(id)
			l.release(held)
			return nil, fmt.Errorf("stock unit %s: %w: %v", id, shared.ErrLockNotObtained, ctx.Err())
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(held) })
	}, nil
}

// join registers interest in a unit slot so that it is not collected while waited on
func (l *MemoryLocker) join(id uuid.UUID) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[id]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[id] = s
	}
	s.waiters++
	return s
}

func (l *MemoryLocker) leave(id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.slots[id]; ok {
		s.waiters--
		if s.waiters == 0 {
			delete(l.slots, id)
		}
	}
}

func (l *MemoryLocker) release(ids []uuid.UUID) {
	for i := len(ids) - 1; i >= 0; i-- {
		l.mu.Lock()
		s := l.slots[ids[i]]
		l.mu.Unlock()
		<-s.ch
		l.leave(ids[i])
	}
}

// sortedUnique returns the ids sorted by their string form, without duplicates
func sortedUnique(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	result := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].String() < result[j].String()
	})
	return result
}

var _ appstock.UnitLocker = (*MemoryLocker)(nil)
