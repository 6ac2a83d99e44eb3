package event

import (
	"testing"

	"github.com/erp/fulfillment/internal/domain/stock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventSerializer_StockEvents(t *testing.T) {
	serializer := NewStockEventSerializer()
	assert.True(t, serializer.IsRegistered(stock.EventTypeStockUnitsReconciled))
	assert.True(t, serializer.IsRegistered(stock.EventTypeStockAssignmentsUpdated))
	assert.False(t, serializer.IsRegistered("UnknownEvent"))

	unitIDs := []uuid.UUID{uuid.New(), uuid.New()}
	event := stock.NewUnitsReconciledEvent(uuid.New(), unitIDs, 4)

	data, err := serializer.Serialize(event)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"fixes":4`)
	assert.Contains(t, string(data), `"type":"StockUnitsReconciled"`)

	decoded, err := serializer.Deserialize(stock.EventTypeStockUnitsReconciled, data)
	require.NoError(t, err)

	reconciled, ok := decoded.(*stock.UnitsReconciledEvent)
	require.True(t, ok)
	assert.Equal(t, event.EventID(), reconciled.EventID())
	assert.Equal(t, event.AggregateID(), reconciled.AggregateID())
	assert.Equal(t, unitIDs, reconciled.UnitIDs)
	assert.Equal(t, 4, reconciled.Fixes)
}

func TestEventSerializer_Deserialize_Errors(t *testing.T) {
	serializer := NewStockEventSerializer()

	tests := []struct {
		name      string
		eventType string
		data      string
		contains  string
	}{
		{name: "unknown type", eventType: "Nope", data: `{}`, contains: "unknown event type"},
		{name: "invalid json", eventType: stock.EventTypeStockUnitsReconciled, data: `{not json`, contains: "failed to unmarshal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := serializer.Deserialize(tt.eventType, []byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}
