package stock

import (
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/google/uuid"
)

// Stock event type constants
const (
	// EventTypeStockUnitsReconciled is raised after an integrity batch changed unit aggregates,
	// so that subject level stock state can be recomputed.
	EventTypeStockUnitsReconciled = "StockUnitsReconciled"

	// EventTypeStockAssignmentsUpdated is raised after sold/shipped deltas were applied to
	// the assignments of a sale item.
	EventTypeStockAssignmentsUpdated = "StockAssignmentsUpdated"
)

// AggregateTypeStockUnit is the aggregate type carried by stock events
const AggregateTypeStockUnit = "StockUnit"

// UnitsReconciledEvent lists the units whose aggregates were fixed
type UnitsReconciledEvent struct {
	shared.BaseDomainEvent
	UnitIDs []uuid.UUID `json:"unit_ids"`
	Fixes   int         `json:"fixes"`
}

// NewUnitsReconciledEvent creates a new UnitsReconciledEvent
func NewUnitsReconciledEvent(batchID uuid.UUID, unitIDs []uuid.UUID, fixes int) *UnitsReconciledEvent {
	return &UnitsReconciledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockUnitsReconciled, AggregateTypeStockUnit, batchID),
		UnitIDs:         unitIDs,
		Fixes:           fixes,
	}
}

// AssignmentsUpdatedEvent is raised when a sale item assignments changed
type AssignmentsUpdatedEvent struct {
	shared.BaseDomainEvent
	SaleItemID   uuid.UUID   `json:"sale_item_id"`
	UnitIDs      []uuid.UUID `json:"unit_ids"`
	Field        string      `json:"field"`
	Applied      string      `json:"applied"`
	RemovedCount int         `json:"removed_count"`
}

// NewAssignmentsUpdatedEvent creates a new AssignmentsUpdatedEvent
func NewAssignmentsUpdatedEvent(saleItemID uuid.UUID, field, applied string, cs *ChangeSet) *AssignmentsUpdatedEvent {
	return &AssignmentsUpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockAssignmentsUpdated, AggregateTypeStockUnit, saleItemID),
		SaleItemID:      saleItemID,
		UnitIDs:         cs.UnitIDs(),
		Field:           field,
		Applied:         applied,
		RemovedCount:    len(cs.Removed()),
	}
}
