package stock

import (
	"time"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Unit is one batch of physical or virtual supply for a product.
// Sold and shipped quantities are aggregates of the unit's assignments.
type Unit struct {
	shared.BaseEntity
	ProductID              uuid.UUID
	OrderedQuantity        valueobject.Quantity
	ReceivedQuantity       valueobject.Quantity
	AdjustedQuantity       valueobject.Quantity // Signed sum of the unit adjustments
	SoldQuantity           valueobject.Quantity
	ShippedQuantity        valueobject.Quantity
	Supplied               bool       // Linked to a supplier order
	EstimatedDateOfArrival *time.Time // Expected arrival of the ordered quantity
	Assignments            []*Assignment
	Adjustments            []*Adjustment
}

// NewUnit creates a new empty stock unit for a product
func NewUnit(productID uuid.UUID) *Unit {
	return &Unit{
		BaseEntity:       shared.NewBaseEntity(),
		ProductID:        productID,
		OrderedQuantity:  valueobject.ZeroQuantity(),
		ReceivedQuantity: valueobject.ZeroQuantity(),
		AdjustedQuantity: valueobject.ZeroQuantity(),
		SoldQuantity:     valueobject.ZeroQuantity(),
		ShippedQuantity:  valueobject.ZeroQuantity(),
	}
}

// IsBounded returns true if the unit sold quantity is limited by what was ordered.
// Units neither supplied nor ordered accept any sold quantity (back order).
func (u *Unit) IsBounded() bool {
	return u.Supplied || u.OrderedQuantity.IsPositive()
}

// PhysicalQuantity returns received + adjusted, what can physically leave the warehouse
func (u *Unit) PhysicalQuantity() valueobject.Quantity {
	return u.ReceivedQuantity.Add(u.AdjustedQuantity)
}

// PendingQuantity returns the ordered quantity not received yet
func (u *Unit) PendingQuantity() valueobject.Quantity {
	return u.OrderedQuantity.Sub(u.ReceivedQuantity).Positive()
}

// AddAssignment attaches an assignment to the unit
func (u *Unit) AddAssignment(a *Assignment) {
	for _, existing := range u.Assignments {
		if existing == a || existing.ID == a.ID {
			return
		}
	}
	a.Unit = u
	u.Assignments = append(u.Assignments, a)
}

// RemoveAssignment detaches an assignment from the unit
func (u *Unit) RemoveAssignment(a *Assignment) {
	for i, existing := range u.Assignments {
		if existing == a || existing.ID == a.ID {
			u.Assignments = append(u.Assignments[:i:i], u.Assignments[i+1:]...)
			return
		}
	}
}

// AssignedSoldQuantity sums sold over the unit assignments, except the given one
func (u *Unit) AssignedSoldQuantity(except *Assignment) valueobject.Quantity {
	total := valueobject.ZeroQuantity()
	for _, a := range u.Assignments {
		if a != except {
			total = total.Add(a.SoldQuantity)
		}
	}
	return total
}

// AssignedShippedQuantity sums shipped over the unit assignments, except the given one
func (u *Unit) AssignedShippedQuantity(except *Assignment) valueobject.Quantity {
	total := valueobject.ZeroQuantity()
	for _, a := range u.Assignments {
		if a != except {
			total = total.Add(a.ShippedQuantity)
		}
	}
	return total
}

// AddAdjustment records a quantity correction and updates the adjusted aggregate
func (u *Unit) AddAdjustment(reason AdjustmentReason, quantity valueobject.Quantity, note string) (*Adjustment, error) {
	adjustment, err := NewAdjustment(u.ID, reason, quantity, note)
	if err != nil {
		return nil, err
	}
	u.Adjustments = append(u.Adjustments, adjustment)
	u.AdjustedQuantity = u.AdjustedQuantity.Add(adjustment.SignedQuantity())
	u.Touch()
	return adjustment, nil
}

// CheckBounds verifies the unit quantity invariants
func (u *Unit) CheckBounds() error {
	for name, q := range map[string]valueobject.Quantity{
		"ordered":  u.OrderedQuantity,
		"received": u.ReceivedQuantity,
		"sold":     u.SoldQuantity,
		"shipped":  u.ShippedQuantity,
	} {
		if q.IsNegative() {
			return shared.NewBoundViolation("stock unit %s: %s quantity %s is negative", u.ID, name, q)
		}
	}
	if u.Supplied && u.ReceivedQuantity.GreaterThan(u.OrderedQuantity.Add(u.AdjustedQuantity)) {
		return shared.NewBoundViolation("stock unit %s: received %s exceeds ordered + adjusted %s",
			u.ID, u.ReceivedQuantity, u.OrderedQuantity.Add(u.AdjustedQuantity))
	}
	if u.ShippedQuantity.GreaterThan(u.SoldQuantity) {
		return shared.NewBoundViolation("stock unit %s: shipped %s exceeds sold %s",
			u.ID, u.ShippedQuantity, u.SoldQuantity)
	}
	if u.ShippedQuantity.GreaterThan(u.PhysicalQuantity()) {
		return shared.NewBoundViolation("stock unit %s: shipped %s exceeds received + adjusted %s",
			u.ID, u.ShippedQuantity, u.PhysicalQuantity())
	}
	return nil
}
