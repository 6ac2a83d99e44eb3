package integrity

import (
	"context"
	"fmt"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

var unitColumns = []Column{
	{Key: "unit", Label: "Stock unit ID"},
	{Key: "product", Label: "Product ID"},
	{Key: "stored", Label: "Stored"},
	{Key: "computed", Label: "Computed"},
	{Key: "delta", Label: "Delta"},
}

type unitMismatch struct {
	unitID uuid.UUID
	delta  valueobject.Quantity
}

// UnitChecker compares a stored stock unit aggregate with the sum of its detail rows:
// assignments for sold and shipped, signed adjustments for adjusted.
type UnitChecker struct {
	base
	source     Source
	field      UnitField
	action     ActionKind
	mismatches []unitMismatch
}

// NewUnitSoldChecker checks unit.sold against the assignments sold quantities
func NewUnitSoldChecker(source Source, executor Executor) *UnitChecker {
	return newUnitChecker(NameUnitSold, "Stock units sold quantities", UnitFieldSold, ActionUnitSold, source, executor)
}

// NewUnitShippedChecker checks unit.shipped against the assignments shipped quantities
func NewUnitShippedChecker(source Source, executor Executor) *UnitChecker {
	return newUnitChecker(NameUnitShipped, "Stock units shipped quantities", UnitFieldShipped, ActionUnitShipped, source, executor)
}

// NewUnitAdjustedChecker checks unit.adjusted against the signed adjustments
func NewUnitAdjustedChecker(source Source, executor Executor) *UnitChecker {
	return newUnitChecker(NameUnitAdjusted, "Stock units adjusted quantities", UnitFieldAdjusted, ActionUnitAdjusted, source, executor)
}

func newUnitChecker(name, title string, field UnitField, action ActionKind, source Source, executor Executor) *UnitChecker {
	return &UnitChecker{
		base: base{
			name:     name,
			title:    title,
			columns:  unitColumns,
			executor: executor,
		},
		source: source,
		field:  field,
		action: action,
	}
}

// Check implements Checker
func (c *UnitChecker) Check(ctx context.Context) (bool, error) {
	c.reset()
	c.mismatches = nil

	rows, err := c.source.UnitRows(ctx, c.field)
	if err != nil {
		return false, fmt.Errorf("%s: loading stock units: %w", c.name, err)
	}
	for _, row := range rows {
		// adjustments are signed, other sums are not
		if c.field != UnitFieldAdjusted && row.Computed.IsNegative() {
			return false, shared.NewBoundViolation("stock unit %s: assignments %s sum %s is negative",
				row.UnitID, c.field, row.Computed)
		}
		if row.Computed.Equal(row.Stored) {
			continue
		}
		delta := row.Computed.Sub(row.Stored)
		c.mismatches = append(c.mismatches, unitMismatch{unitID: row.UnitID, delta: delta})
		c.addResult(row.UnitID, map[string]string{
			"unit":     row.UnitID.String(),
			"product":  row.ProductID.String(),
			"stored":   row.Stored.String(),
			"computed": row.Computed.String(),
			"delta":    delta.String(),
		})
	}
	return len(c.mismatches) == 0, nil
}

// Build implements Checker
func (c *UnitChecker) Build(_ context.Context) error {
	c.actions = nil
	for _, m := range c.mismatches {
		c.actions = append(c.actions, NewIncrement(c.action, m.unitID, m.unitID, m.delta))
	}
	return nil
}
