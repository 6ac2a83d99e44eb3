package integrity

import (
	"context"
	"fmt"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Checker names
const (
	NameAssignmentSold    = "assignment_sold"
	NameAssignmentShipped = "assignment_shipped"
	NameUnitSold          = "unit_sold"
	NameUnitShipped       = "unit_shipped"
	NameUnitAdjusted      = "unit_adjusted"
	NameFinal             = "final"
)

var itemColumns = []Column{
	{Key: "sale", Label: "Sale"},
	{Key: "item", Label: "Item ID"},
	{Key: "designation", Label: "Designation"},
	{Key: "expected", Label: "Expected"},
	{Key: "assigned", Label: "Assigned"},
	{Key: "delta", Label: "Delta"},
}

type itemMismatch struct {
	saleItemID uuid.UUID
	delta      valueobject.Quantity
}

// AssignmentSoldChecker compares the recomputed sold quantity of each sale item with the
// sum of its assignments sold quantities.
type AssignmentSoldChecker struct {
	base
	source     Source
	mismatches []itemMismatch
}

// NewAssignmentSoldChecker creates a new assignment sold checker
func NewAssignmentSoldChecker(source Source, executor Executor) *AssignmentSoldChecker {
	return &AssignmentSoldChecker{
		base: base{
			name:     NameAssignmentSold,
			title:    "Stock assignments sold quantities",
			columns:  itemColumns,
			executor: executor,
		},
		source: source,
	}
}

// Check implements Checker
func (c *AssignmentSoldChecker) Check(ctx context.Context) (bool, error) {
	c.reset()
	c.mismatches = nil

	rows, err := c.source.ItemSoldRows(ctx)
	if err != nil {
		return false, fmt.Errorf("%s: loading sale items: %w", c.name, err)
	}
	for _, row := range rows {
		expected := row.ExpectedSold()
		if expected.IsNegative() {
			return false, shared.NewBoundViolation("sale item %s: credited %s exceeds sold %s",
				row.SaleItemID, row.Credited, valueobject.MaxQuantity(row.Total, row.Invoiced))
		}
		if expected.Equal(row.Assigned) {
			continue
		}
		delta := expected.Sub(row.Assigned)
		c.mismatches = append(c.mismatches, itemMismatch{saleItemID: row.SaleItemID, delta: delta})
		c.addResult(row.SaleItemID, itemValues(row.SaleNumber, row.SaleItemID, row.Designation, expected, row.Assigned, delta))
	}
	return len(c.mismatches) == 0, nil
}

// Build implements Checker
func (c *AssignmentSoldChecker) Build(ctx context.Context) error {
	c.actions = nil
	if len(c.mismatches) == 0 {
		return nil
	}
	byItem, err := loadAssignments(ctx, c.source, c.mismatches)
	if err != nil {
		return fmt.Errorf("%s: %w", c.name, err)
	}

	capacity := make(map[uuid.UUID]valueobject.Quantity)
	for _, rows := range byItem {
		for _, a := range rows {
			if a.UnitSupplied || a.UnitOrdered.IsPositive() {
				capacity[a.UnitID] = a.UnitOrdered.Sub(a.UnitAssignedSold)
			}
		}
	}

	for _, m := range c.mismatches {
		rows := byItem[m.saleItemID]
		increase := m.delta.IsPositive()
		candidates := make([]Candidate, 0, len(rows))
		for _, a := range rows {
			slack := valueobject.UnlimitedQuantity()
			if !increase {
				slack = a.Sold.Sub(a.Shipped)
			}
			candidates = append(candidates, Candidate{ID: a.ID, UnitID: a.UnitID, Slack: slack})
		}

		unitCapacity := capacity
		if !increase {
			unitCapacity = nil
		}
		shares, left := Distribute(m.delta.Abs(), candidates, unitCapacity)
		if left.IsPositive() {
			return shared.NewUnresolvedDelta("%s: sale item %s: %s of %s sold quantity could not be assigned",
				c.name, m.saleItemID, left, m.delta)
		}

		for _, share := range shares {
			q := share.Quantity
			if !increase {
				q = q.Neg()
			} else if unitCap, ok := capacity[share.UnitID]; ok {
				capacity[share.UnitID] = unitCap.Sub(share.Quantity)
			}
			c.actions = append(c.actions,
				NewIncrement(ActionAssignmentSold, share.ID, share.UnitID, q),
				NewIncrement(ActionUnitSold, share.UnitID, share.UnitID, q),
			)
			if a := findRow(rows, share.ID); a != nil && a.Sold.Add(q).IsZero() && a.Shipped.IsZero() {
				c.actions = append(c.actions, NewAssignmentDelete(a.ID, a.UnitID))
			}
		}
	}
	return nil
}

// AssignmentShippedChecker compares the shipped minus returned quantity of each sale item
// with the sum of its assignments shipped quantities.
type AssignmentShippedChecker struct {
	base
	source     Source
	mismatches []itemMismatch
}

// NewAssignmentShippedChecker creates a new assignment shipped checker
func NewAssignmentShippedChecker(source Source, executor Executor) *AssignmentShippedChecker {
	return &AssignmentShippedChecker{
		base: base{
			name:     NameAssignmentShipped,
			title:    "Stock assignments shipped quantities",
			columns:  itemColumns,
			executor: executor,
		},
		source: source,
	}
}

// Check implements Checker
func (c *AssignmentShippedChecker) Check(ctx context.Context) (bool, error) {
	c.reset()
	c.mismatches = nil

	rows, err := c.source.ItemShippedRows(ctx)
	if err != nil {
		return false, fmt.Errorf("%s: loading sale items: %w", c.name, err)
	}
	for _, row := range rows {
		expected := row.ExpectedShipped()
		if expected.IsNegative() {
			return false, shared.NewBoundViolation("sale item %s: returned %s exceeds shipped %s",
				row.SaleItemID, row.Returned, row.Shipped)
		}
		if expected.Equal(row.Assigned) {
			continue
		}
		delta := expected.Sub(row.Assigned)
		c.mismatches = append(c.mismatches, itemMismatch{saleItemID: row.SaleItemID, delta: delta})
		c.addResult(row.SaleItemID, itemValues(row.SaleNumber, row.SaleItemID, row.Designation, expected, row.Assigned, delta))
	}
	return len(c.mismatches) == 0, nil
}

// Build implements Checker
func (c *AssignmentShippedChecker) Build(ctx context.Context) error {
	c.actions = nil
	if len(c.mismatches) == 0 {
		return nil
	}
	byItem, err := loadAssignments(ctx, c.source, c.mismatches)
	if err != nil {
		return fmt.Errorf("%s: %w", c.name, err)
	}

	capacity := make(map[uuid.UUID]valueobject.Quantity)
	for _, rows := range byItem {
		for _, a := range rows {
			capacity[a.UnitID] = a.UnitReceived.Add(a.UnitAdjusted).Sub(a.UnitAssignedShipped)
		}
	}

	for _, m := range c.mismatches {
		rows := byItem[m.saleItemID]
		increase := m.delta.IsPositive()
		candidates := make([]Candidate, 0, len(rows))
		for _, a := range rows {
			slack := a.Shipped
			if increase {
				slack = a.Sold.Sub(a.Shipped)
			}
			candidates = append(candidates, Candidate{ID: a.ID, UnitID: a.UnitID, Slack: slack})
		}

		unitCapacity := capacity
		if !increase {
			unitCapacity = nil
		}
		shares, left := Distribute(m.delta.Abs(), candidates, unitCapacity)
		if left.IsPositive() {
			return shared.NewUnresolvedDelta("%s: sale item %s: %s of %s shipped quantity could not be assigned",
				c.name, m.saleItemID, left, m.delta)
		}

		for _, share := range shares {
			q := share.Quantity
			if !increase {
				q = q.Neg()
			} else {
				capacity[share.UnitID] = capacity[share.UnitID].Sub(share.Quantity)
			}
			c.actions = append(c.actions,
				NewIncrement(ActionAssignmentShipped, share.ID, share.UnitID, q),
				NewIncrement(ActionUnitShipped, share.UnitID, share.UnitID, q),
			)
		}
	}
	return nil
}

func loadAssignments(ctx context.Context, source Source, mismatches []itemMismatch) (map[uuid.UUID][]AssignmentRow, error) {
	ids := make([]uuid.UUID, 0, len(mismatches))
	for _, m := range mismatches {
		ids = append(ids, m.saleItemID)
	}
	rows, err := source.AssignmentsOf(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading assignments: %w", err)
	}
	byItem := make(map[uuid.UUID][]AssignmentRow, len(ids))
	for _, row := range rows {
		byItem[row.SaleItemID] = append(byItem[row.SaleItemID], row)
	}
	return byItem, nil
}

func findRow(rows []AssignmentRow, id uuid.UUID) *AssignmentRow {
	for i := range rows {
		if rows[i].ID == id {
			return &rows[i]
		}
	}
	return nil
}

func itemValues(saleNumber string, itemID uuid.UUID, designation string, expected, assigned, delta valueobject.Quantity) map[string]string {
	return map[string]string{
		"sale":        saleNumber,
		"item":        itemID.String(),
		"designation": designation,
		"expected":    expected.String(),
		"assigned":    assigned.String(),
		"delta":       delta.String(),
	}
}
