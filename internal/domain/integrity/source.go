package integrity

import (
	"context"

	"github.com/erp/fulfillment/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// ItemSoldRow is the detail aggregation of a sale item having stock assignments
type ItemSoldRow struct {
	SaleItemID  uuid.UUID
	SaleNumber  string
	Designation string
	Total       valueobject.Quantity // own quantity times ancestor quantities
	Invoiced    valueobject.Quantity
	Credited    valueobject.Quantity
	Shipped     valueobject.Quantity // stockable shipments minus stockable returns
	Sample      bool
	Released    bool
	Assigned    valueobject.Quantity // sum of assignment sold quantities
}

// ExpectedSold recomputes the item sold quantity from its documents
func (r ItemSoldRow) ExpectedSold() valueobject.Quantity {
	if r.Sample {
		if r.Released {
			return valueobject.MinQuantity(r.Total, r.Shipped)
		}
		return r.Total
	}
	return valueobject.MaxQuantity(r.Total, r.Invoiced).Sub(r.Credited)
}

// ItemShippedRow is the shipment aggregation of a sale item having stock assignments
type ItemShippedRow struct {
	SaleItemID  uuid.UUID
	SaleNumber  string
	Designation string
	Shipped     valueobject.Quantity // stockable shipments
	Returned    valueobject.Quantity // stockable returns
	Assigned    valueobject.Quantity // sum of assignment shipped quantities
}

// ExpectedShipped recomputes the item shipped quantity from its documents
func (r ItemShippedRow) ExpectedShipped() valueobject.Quantity {
	return r.Shipped.Sub(r.Returned)
}

// UnitField selects a stock unit aggregate
type UnitField string

const (
	UnitFieldSold     UnitField = "sold"
	UnitFieldShipped  UnitField = "shipped"
	UnitFieldAdjusted UnitField = "adjusted"
)

// UnitRow compares a stored unit aggregate with the sum of its detail rows
type UnitRow struct {
	UnitID    uuid.UUID
	ProductID uuid.UUID
	Stored    valueobject.Quantity
	Computed  valueobject.Quantity
}

// AssignmentRow is an assignment with the figures of its unit needed to bound a fix
type AssignmentRow struct {
	ID                  uuid.UUID
	SaleItemID          uuid.UUID
	UnitID              uuid.UUID
	Sold                valueobject.Quantity
	Shipped             valueobject.Quantity
	UnitSupplied        bool
	UnitOrdered         valueobject.Quantity
	UnitReceived        valueobject.Quantity
	UnitAdjusted        valueobject.Quantity
	UnitAssignedSold    valueobject.Quantity // sum over all the unit assignments
	UnitAssignedShipped valueobject.Quantity // sum over all the unit assignments
}

// Source runs the detail aggregation queries of the checkers
type Source interface {
	// ItemSoldRows returns one row per sale item having at least one stock assignment
	ItemSoldRows(ctx context.Context) ([]ItemSoldRow, error)
	// ItemShippedRows returns one row per sale item having at least one stock assignment
	ItemShippedRows(ctx context.Context) ([]ItemShippedRow, error)
	// UnitRows returns one row per stock unit for the given aggregate
	UnitRows(ctx context.Context, field UnitField) ([]UnitRow, error)
	// AssignmentsOf returns the assignments of the given sale items ordered by id
	AssignmentsOf(ctx context.Context, saleItemIDs []uuid.UUID) ([]AssignmentRow, error)
	// Violations returns the ids of the rows failing the assertion
	Violations(ctx context.Context, assertion Assertion) ([]uuid.UUID, error)
}

// Executor runs fix actions against the store
type Executor interface {
	// Execute applies the action; a missing target row is an error
	Execute(ctx context.Context, action Action) error
}
