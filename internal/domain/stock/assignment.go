package stock

import (
	"github.com/erp/fulfillment/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Assignment allocates part of a sale item demand to a stock unit
type Assignment struct {
	ID              uuid.UUID
	SaleItemID      uuid.UUID
	Unit            *Unit
	SoldQuantity    valueobject.Quantity
	ShippedQuantity valueobject.Quantity
}

// NewAssignment creates an empty assignment and attaches it to the unit
func NewAssignment(unit *Unit, saleItemID uuid.UUID) *Assignment {
	a := &Assignment{
		ID:              uuid.New(),
		SaleItemID:      saleItemID,
		SoldQuantity:    valueobject.ZeroQuantity(),
		ShippedQuantity: valueobject.ZeroQuantity(),
	}
	unit.AddAssignment(a)
	return a
}

// ShippableQuantity returns what this assignment can ship right now: its sold quantity
// limited by the unit physical stock left by sibling assignments, minus what it already shipped.
func (a *Assignment) ShippableQuantity() valueobject.Quantity {
	if a.Unit == nil {
		return valueobject.ZeroQuantity()
	}
	physical := a.Unit.PhysicalQuantity().Sub(a.Unit.AssignedShippedQuantity(a))
	return valueobject.MinQuantity(a.SoldQuantity, physical).Sub(a.ShippedQuantity).Positive()
}

// WaitingQuantity returns the sold quantity that is neither shipped nor shippable,
// that is the part waiting for the unit supply to arrive.
func (a *Assignment) WaitingQuantity() valueobject.Quantity {
	return a.SoldQuantity.Sub(a.ShippedQuantity).Sub(a.ShippableQuantity()).Positive()
}

// IsEmpty returns true if nothing is sold nor shipped through this assignment
func (a *Assignment) IsEmpty() bool {
	return a.SoldQuantity.IsZero() && a.ShippedQuantity.IsZero()
}

// UnitIDs returns the distinct unit ids of the given assignments, in order of appearance
func UnitIDs(assignments []*Assignment) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(assignments))
	ids := make([]uuid.UUID, 0, len(assignments))
	for _, a := range assignments {
		if a.Unit == nil {
			continue
		}
		if _, ok := seen[a.Unit.ID]; ok {
			continue
		}
		seen[a.Unit.ID] = struct{}{}
		ids = append(ids, a.Unit.ID)
	}
	return ids
}
