package shared

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outboxTestEvent struct {
	BaseDomainEvent
}

func newOutboxTestEvent() *outboxTestEvent {
	return &outboxTestEvent{BaseDomainEvent: NewBaseDomainEvent("StockUnitsReconciled", "StockUnit", uuid.New())}
}

func TestNewOutboxEntry(t *testing.T) {
	event := newOutboxTestEvent()
	entry := NewOutboxEntry(event, []byte(`{"fixes":1}`))

	assert.NotEqual(t, uuid.Nil, entry.ID)
	assert.Equal(t, event.EventID(), entry.EventID)
	assert.Equal(t, "StockUnitsReconciled", entry.EventType)
	assert.Equal(t, event.AggregateID(), entry.AggregateID)
	assert.Equal(t, "StockUnit", entry.AggregateType)
	assert.Equal(t, OutboxStatusPending, entry.Status)
	assert.Equal(t, DefaultMaxRetries, entry.MaxRetries)
	assert.Zero(t, entry.RetryCount)
	assert.True(t, entry.IsDue(time.Now()))
}

func TestOutboxEntry_MarkSent(t *testing.T) {
	entry := NewOutboxEntry(newOutboxTestEvent(), nil)
	entry.MarkSent()

	assert.Equal(t, OutboxStatusSent, entry.Status)
	require.NotNil(t, entry.ProcessedAt)
	assert.False(t, entry.IsDue(time.Now().Add(time.Hour)))
}

func TestOutboxEntry_MarkFailed(t *testing.T) {
	t.Run("schedules retries with exponential backoff", func(t *testing.T) {
		entry := NewOutboxEntry(newOutboxTestEvent(), nil)

		entry.MarkFailed("connection refused")
		assert.Equal(t, OutboxStatusFailed, entry.Status)
		assert.Equal(t, 1, entry.RetryCount)
		assert.Equal(t, "connection refused", entry.LastError)
		require.NotNil(t, entry.NextRetryAt)
		assert.Equal(t, DefaultBaseBackoff, entry.NextRetryAt.Sub(entry.UpdatedAt))

		entry.MarkFailed("connection refused")
		assert.Equal(t, 2*DefaultBaseBackoff, entry.NextRetryAt.Sub(entry.UpdatedAt))

		entry.MarkFailed("connection refused")
		assert.Equal(t, 4*DefaultBaseBackoff, entry.NextRetryAt.Sub(entry.UpdatedAt))
	})

	t.Run("dies after max retries", func(t *testing.T) {
		entry := NewOutboxEntry(newOutboxTestEvent(), nil)
		entry.MaxRetries = 2

		entry.MarkFailed("boom")
		entry.MarkFailed("boom")

		assert.Equal(t, OutboxStatusDead, entry.Status)
		assert.Nil(t, entry.NextRetryAt)
		assert.False(t, entry.IsDue(time.Now().Add(24*time.Hour)))
	})
}

func TestOutboxEntry_IsDue(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name  string
		entry OutboxEntry
		want  bool
	}{
		{name: "pending", entry: OutboxEntry{Status: OutboxStatusPending}, want: true},
		{name: "failed and due", entry: OutboxEntry{Status: OutboxStatusFailed, NextRetryAt: &past}, want: true},
		{name: "failed at exactly now", entry: OutboxEntry{Status: OutboxStatusFailed, NextRetryAt: &now}, want: true},
		{name: "failed not yet due", entry: OutboxEntry{Status: OutboxStatusFailed, NextRetryAt: &future}, want: false},
		{name: "sent", entry: OutboxEntry{Status: OutboxStatusSent}, want: false},
		{name: "dead", entry: OutboxEntry{Status: OutboxStatusDead}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.entry.IsDue(now))
		})
	}
}
