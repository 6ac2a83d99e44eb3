package integrity

import (
	"fmt"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// ActionKind is the kind of corrective write a checker can emit
type ActionKind string

const (
	ActionAssignmentSold    ActionKind = "ASSIGNMENT_SOLD"
	ActionAssignmentShipped ActionKind = "ASSIGNMENT_SHIPPED"
	ActionAssignmentDelete  ActionKind = "ASSIGNMENT_DELETE"
	ActionUnitSold          ActionKind = "UNIT_SOLD"
	ActionUnitShipped       ActionKind = "UNIT_SHIPPED"
	ActionUnitAdjusted      ActionKind = "UNIT_ADJUSTED"
)

// Table names targeted by fix actions
const (
	TableStockUnits       = "stock_units"
	TableStockAssignments = "stock_assignments"
)

type actionTarget struct {
	table  string
	column string
}

var actionTargets = map[ActionKind]actionTarget{
	ActionAssignmentSold:    {TableStockAssignments, "sold_quantity"},
	ActionAssignmentShipped: {TableStockAssignments, "shipped_quantity"},
	ActionAssignmentDelete:  {TableStockAssignments, ""},
	ActionUnitSold:          {TableStockUnits, "sold_quantity"},
	ActionUnitShipped:       {TableStockUnits, "shipped_quantity"},
	ActionUnitAdjusted:      {TableStockUnits, "adjusted_quantity"},
}

// ParseActionKind validates and returns an ActionKind
func ParseActionKind(value string) (ActionKind, error) {
	k := ActionKind(value)
	if _, ok := actionTargets[k]; !ok {
		return "", shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("Unknown fix action kind %q", value))
	}
	return k, nil
}

// Action is a targeted corrective write. Increments add Quantity to the target column;
// ASSIGNMENT_DELETE removes the target row.
type Action struct {
	Kind     ActionKind
	TargetID uuid.UUID
	UnitID   uuid.UUID // stock unit whose aggregate is affected, reported by Fix
	Quantity valueobject.Quantity
}

// NewIncrement creates an increment action
func NewIncrement(kind ActionKind, targetID, unitID uuid.UUID, quantity valueobject.Quantity) Action {
	return Action{Kind: kind, TargetID: targetID, UnitID: unitID, Quantity: quantity}
}

// NewAssignmentDelete creates an action deleting an emptied assignment
func NewAssignmentDelete(assignmentID, unitID uuid.UUID) Action {
	return Action{
		Kind:     ActionAssignmentDelete,
		TargetID: assignmentID,
		UnitID:   unitID,
		Quantity: valueobject.ZeroQuantity(),
	}
}

// Table returns the table the action writes to
func (a Action) Table() string {
	return actionTargets[a.Kind].table
}

// Column returns the column the action increments, empty for deletes
func (a Action) Column() string {
	return actionTargets[a.Kind].column
}

// SQL renders the action as a statement with named parameters (@id, @quantity)
func (a Action) SQL() string {
	target := actionTargets[a.Kind]
	if a.Kind == ActionAssignmentDelete {
		return fmt.Sprintf("DELETE FROM %s WHERE id = @id", target.table)
	}
	return fmt.Sprintf("UPDATE %s SET %s = %s + @quantity WHERE id = @id", target.table, target.column, target.column)
}

// Params returns the named parameters of the statement
func (a Action) Params() map[string]any {
	params := map[string]any{"id": a.TargetID.String()}
	if a.Kind != ActionAssignmentDelete {
		params["quantity"] = a.Quantity.Decimal().String()
	}
	return params
}

// String returns a human readable description of the action
func (a Action) String() string {
	if a.Kind == ActionAssignmentDelete {
		return fmt.Sprintf("delete %s %s", a.Table(), a.TargetID)
	}
	return fmt.Sprintf("%s.%s %s += %s", a.Table(), a.Column(), a.TargetID, a.Quantity)
}
