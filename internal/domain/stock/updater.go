package stock

import (
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/domain/shared/valueobject"
)

// UnitUpdater applies sold and shipped deltas to a stock unit aggregate
type UnitUpdater interface {
	UpdateSold(u *Unit, quantity valueobject.Quantity, relative bool) error
	UpdateShipped(u *Unit, quantity valueobject.Quantity, relative bool) error
}

// AggregateUnitUpdater is the default UnitUpdater. Aggregates are clamped at zero; a unit
// whose stored aggregate had already drifted below its assignments is left to the
// unit_sold and unit_shipped integrity checkers.
type AggregateUnitUpdater struct {
	persister Persister
}

// NewAggregateUnitUpdater creates a unit updater recording changed units on the persister
func NewAggregateUnitUpdater(persister Persister) *AggregateUnitUpdater {
	return &AggregateUnitUpdater{persister: persister}
}

// UpdateSold implements UnitUpdater
func (u *AggregateUnitUpdater) UpdateSold(unit *Unit, quantity valueobject.Quantity, relative bool) error {
	sold := quantity
	if relative {
		sold = unit.SoldQuantity.Add(quantity)
	}
	unit.SoldQuantity = sold.Positive()
	unit.Touch()
	u.persister.PersistUnit(unit)
	return nil
}

// UpdateShipped implements UnitUpdater
func (u *AggregateUnitUpdater) UpdateShipped(unit *Unit, quantity valueobject.Quantity, relative bool) error {
	shipped := quantity
	if relative {
		shipped = unit.ShippedQuantity.Add(quantity)
	}
	unit.ShippedQuantity = shipped.Positive()
	unit.Touch()
	u.persister.PersistUnit(unit)
	return nil
}

// Updater applies bounded sold/shipped deltas to stock assignments.
// Callers must serialize calls per stock unit: the bounds read sibling assignments.
type Updater struct {
	units     UnitUpdater
	persister Persister
}

// NewUpdater creates a new assignment updater
func NewUpdater(units UnitUpdater, persister Persister) *Updater {
	return &Updater{units: units, persister: persister}
}

// UpdateSold sets (relative=false) or moves (relative=true) the assignment sold quantity
// within [shipped, ordered - sold by sibling assignments] and returns the applied delta.
// The assignment is removed once its sold quantity reaches zero.
func (u *Updater) UpdateSold(a *Assignment, quantity valueobject.Quantity, relative bool) (valueobject.Quantity, error) {
	unit, err := unitOf(a)
	if err != nil {
		return valueobject.ZeroQuantity(), err
	}

	target := quantity
	if relative {
		target = a.SoldQuantity.Add(quantity)
	}

	upper := valueobject.UnlimitedQuantity()
	if unit.IsBounded() {
		upper = unit.OrderedQuantity.Sub(unit.AssignedSoldQuantity(a))
	}
	sold := target.Clamp(a.ShippedQuantity, upper)
	delta := sameDirection(target.Sub(a.SoldQuantity), sold.Sub(a.SoldQuantity))

	if !delta.IsZero() {
		if err := u.units.UpdateSold(unit, delta, true); err != nil {
			return valueobject.ZeroQuantity(), err
		}
		a.SoldQuantity = a.SoldQuantity.Add(delta)
		u.persister.PersistAssignment(a)
	}

	if a.SoldQuantity.IsZero() {
		if !a.ShippedQuantity.IsZero() {
			return delta, shared.NewBoundViolation(
				"stock assignment %s: sold quantity is zero while %s is shipped", a.ID, a.ShippedQuantity)
		}
		unit.RemoveAssignment(a)
		u.persister.RemoveAssignment(a)
	}
	return delta, nil
}

// UpdateShipped sets (relative=false) or moves (relative=true) the assignment shipped quantity
// within [0, min(sold, received + adjusted - shipped by sibling assignments)] and returns the applied delta.
func (u *Updater) UpdateShipped(a *Assignment, quantity valueobject.Quantity, relative bool) (valueobject.Quantity, error) {
	unit, err := unitOf(a)
	if err != nil {
		return valueobject.ZeroQuantity(), err
	}

	target := quantity
	if relative {
		target = a.ShippedQuantity.Add(quantity)
	}

	upper := valueobject.MinQuantity(a.SoldQuantity, unit.PhysicalQuantity().Sub(unit.AssignedShippedQuantity(a)))
	shipped := target.Clamp(valueobject.ZeroQuantity(), upper)
	delta := sameDirection(target.Sub(a.ShippedQuantity), shipped.Sub(a.ShippedQuantity))
	if delta.IsZero() {
		return delta, nil
	}

	if err := u.units.UpdateShipped(unit, delta, true); err != nil {
		return valueobject.ZeroQuantity(), err
	}
	a.ShippedQuantity = a.ShippedQuantity.Add(delta)
	u.persister.PersistAssignment(a)
	return delta, nil
}

func unitOf(a *Assignment) (*Unit, error) {
	if a == nil || a.Unit == nil {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "Stock assignment is not attached to a unit")
	}
	return a.Unit, nil
}

// sameDirection returns applied, or zero when nothing was requested or when
// clamping would move the value against the requested direction.
func sameDirection(requested, applied valueobject.Quantity) valueobject.Quantity {
	if requested.IsZero() ||
		(requested.IsPositive() && applied.IsNegative()) ||
		(requested.IsNegative() && applied.IsPositive()) {
		return valueobject.ZeroQuantity()
	}
	return applied
}
