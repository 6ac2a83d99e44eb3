package integrity

import (
	"context"
	"sort"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// memoryStore is an in-memory Source and Executor used to exercise the checkers
type memoryStore struct {
	items       map[uuid.UUID]*memItem
	units       map[uuid.UUID]*memUnit
	assignments map[uuid.UUID]*memAssignment
	adjustments map[uuid.UUID]valueobject.Quantity // unit id -> signed sum
	executed    []Action
}

type memItem struct {
	id                        uuid.UUID
	total, invoiced, credited valueobject.Quantity
	shipped, returned         valueobject.Quantity
	sample, released          bool
}

type memUnit struct {
	id                          uuid.UUID
	supplied                    bool
	ordered, received, adjusted valueobject.Quantity
	sold, shipped               valueobject.Quantity
}

type memAssignment struct {
	id, itemID, unitID uuid.UUID
	sold, shipped      valueobject.Quantity
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		items:       make(map[uuid.UUID]*memItem),
		units:       make(map[uuid.UUID]*memUnit),
		assignments: make(map[uuid.UUID]*memAssignment),
		adjustments: make(map[uuid.UUID]valueobject.Quantity),
	}
}

func (m *memoryStore) addItem(total int64) *memItem {
	item := &memItem{
		id:       uuid.New(),
		total:    qty(total),
		invoiced: qty(0),
		credited: qty(0),
		shipped:  qty(0),
		returned: qty(0),
	}
	m.items[item.id] = item
	return item
}

func (m *memoryStore) addUnit(ordered, received, sold, shipped int64) *memUnit {
	unit := &memUnit{
		id:       uuid.New(),
		ordered:  qty(ordered),
		received: qty(received),
		adjusted: qty(0),
		sold:     qty(sold),
		shipped:  qty(shipped),
	}
	m.units[unit.id] = unit
	return unit
}

func (m *memoryStore) assign(id uuid.UUID, item *memItem, unit *memUnit, sold, shipped int64) *memAssignment {
	a := &memAssignment{id: id, itemID: item.id, unitID: unit.id, sold: qty(sold), shipped: qty(shipped)}
	m.assignments[a.id] = a
	return a
}

func (m *memoryStore) sortedAssignments() []*memAssignment {
	list := make([]*memAssignment, 0, len(m.assignments))
	for _, a := range m.assignments {
		list = append(list, a)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].id.String() < list[j].id.String() })
	return list
}

func (m *memoryStore) assignedItems() []*memItem {
	seen := make(map[uuid.UUID]bool)
	var items []*memItem
	for _, a := range m.sortedAssignments() {
		if !seen[a.itemID] {
			seen[a.itemID] = true
			items = append(items, m.items[a.itemID])
		}
	}
	return items
}

func (m *memoryStore) ItemSoldRows(_ context.Context) ([]ItemSoldRow, error) {
	var rows []ItemSoldRow
	for _, item := range m.assignedItems() {
		assigned := qty(0)
		for _, a := range m.assignments {
			if a.itemID == item.id {
				assigned = assigned.Add(a.sold)
			}
		}
		rows = append(rows, ItemSoldRow{
			SaleItemID: item.id, SaleNumber: "SO-1", Designation: "Widget",
			Total: item.total, Invoiced: item.invoiced, Credited: item.credited,
			Shipped: item.shipped.Sub(item.returned), Sample: item.sample, Released: item.released,
			Assigned: assigned,
		})
	}
	return rows, nil
}

func (m *memoryStore) ItemShippedRows(_ context.Context) ([]ItemShippedRow, error) {
	var rows []ItemShippedRow
	for _, item := range m.assignedItems() {
		assigned := qty(0)
		for _, a := range m.assignments {
			if a.itemID == item.id {
				assigned = assigned.Add(a.shipped)
			}
		}
		rows = append(rows, ItemShippedRow{
			SaleItemID: item.id, SaleNumber: "SO-1", Designation: "Widget",
			Shipped: item.shipped, Returned: item.returned, Assigned: assigned,
		})
	}
	return rows, nil
}

func (m *memoryStore) UnitRows(_ context.Context, field UnitField) ([]UnitRow, error) {
	var rows []UnitRow
	for _, unit := range m.units {
		row := UnitRow{UnitID: unit.id, Computed: qty(0)}
		switch field {
		case UnitFieldSold:
			row.Stored = unit.sold
		case UnitFieldShipped:
			row.Stored = unit.shipped
		case UnitFieldAdjusted:
			row.Stored = unit.adjusted
			if sum, ok := m.adjustments[unit.id]; ok {
				row.Computed = sum
			}
		}
		for _, a := range m.assignments {
			if a.unitID != unit.id {
				continue
			}
			switch field {
			case UnitFieldSold:
				row.Computed = row.Computed.Add(a.sold)
			case UnitFieldShipped:
				row.Computed = row.Computed.Add(a.shipped)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (m *memoryStore) AssignmentsOf(_ context.Context, saleItemIDs []uuid.UUID) ([]AssignmentRow, error) {
	wanted := make(map[uuid.UUID]bool)
	for _, id := range saleItemIDs {
		wanted[id] = true
	}
	var rows []AssignmentRow
	for _, a := range m.sortedAssignments() {
		if !wanted[a.itemID] {
			continue
		}
		unit := m.units[a.unitID]
		row := AssignmentRow{
			ID: a.id, SaleItemID: a.itemID, UnitID: a.unitID, Sold: a.sold, Shipped: a.shipped,
			UnitSupplied: unit.supplied, UnitOrdered: unit.ordered, UnitReceived: unit.received,
			UnitAdjusted: unit.adjusted, UnitAssignedSold: qty(0), UnitAssignedShipped: qty(0),
		}
		for _, sibling := range m.assignments {
			if sibling.unitID == a.unitID {
				row.UnitAssignedSold = row.UnitAssignedSold.Add(sibling.sold)
				row.UnitAssignedShipped = row.UnitAssignedShipped.Add(sibling.shipped)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (m *memoryStore) Violations(_ context.Context, assertion Assertion) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	switch assertion.Name {
	case "unit_shipped_sold":
		for _, u := range m.units {
			if u.shipped.GreaterThan(u.sold) {
				ids = append(ids, u.id)
			}
		}
	case "unit_negative":
		for _, u := range m.units {
			if u.sold.IsNegative() || u.shipped.IsNegative() {
				ids = append(ids, u.id)
			}
		}
	case "assignment_shipped_sold":
		for _, a := range m.assignments {
			if a.shipped.GreaterThan(a.sold) {
				ids = append(ids, a.id)
			}
		}
	}
	return ids, nil
}

func (m *memoryStore) Execute(_ context.Context, action Action) error {
	m.executed = append(m.executed, action)
	switch action.Kind {
	case ActionAssignmentSold, ActionAssignmentShipped, ActionAssignmentDelete:
		a, ok := m.assignments[action.TargetID]
		if !ok {
			return shared.ErrNotFound
		}
		switch action.Kind {
		case ActionAssignmentSold:
			a.sold = a.sold.Add(action.Quantity)
		case ActionAssignmentShipped:
			a.shipped = a.shipped.Add(action.Quantity)
		default:
			delete(m.assignments, a.id)
		}
	default:
		u, ok := m.units[action.TargetID]
		if !ok {
			return shared.ErrNotFound
		}
		switch action.Kind {
		case ActionUnitSold:
			u.sold = u.sold.Add(action.Quantity)
		case ActionUnitShipped:
			u.shipped = u.shipped.Add(action.Quantity)
		case ActionUnitAdjusted:
			u.adjusted = u.adjusted.Add(action.Quantity)
		}
	}
	return nil
}

var (
	_ Source   = (*memoryStore)(nil)
	_ Executor = (*memoryStore)(nil)
)
