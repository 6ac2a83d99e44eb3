package shipment

import (
	"fmt"
	"sort"
	"time"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// State is the lifecycle state of a shipment or return
type State string

const (
	StateNew         State = "NEW"
	StatePreparation State = "PREPARATION"
	StateReady       State = "READY"
	StateShipped     State = "SHIPPED"
	StatePending     State = "PENDING"
	StateReturned    State = "RETURNED"
	StateCompleted   State = "COMPLETED"
	StateCanceled    State = "CANCELED"
)

// ParseState validates and returns a State
func ParseState(value string) (State, error) {
	s := State(value)
	switch s {
	case StateNew, StatePreparation, StateReady, StateShipped, StatePending,
		StateReturned, StateCompleted, StateCanceled:
		return s, nil
	}
	return "", shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("Unknown shipment state %q", value))
}

// IsStockable returns true once the document represents an irreversible stock movement
func (s State) IsStockable() bool {
	switch s {
	case StateShipped, StateReturned, StateCompleted:
		return true
	}
	return false
}

// StockableStates lists the states counted in committed quantities
func StockableStates() []State {
	return []State{StateShipped, StateReturned, StateCompleted}
}

// String returns the string representation of State
func (s State) String() string {
	return string(s)
}

// Item is a shipment line for a sale item
type Item struct {
	ID         uuid.UUID
	SaleItemID uuid.UUID
	Quantity   valueobject.Quantity
}

// Shipment is a shipment or, when Return is set, a return
type Shipment struct {
	shared.BaseEntity
	SaleID                uuid.UUID
	Number                string
	Return                bool
	State                 State
	Date                  time.Time
	EstimatedShippingDate *time.Time
	Items                 []Item
}

// NewShipment creates a new shipment for a sale
func NewShipment(saleID uuid.UUID, number string, date time.Time) *Shipment {
	return &Shipment{
		BaseEntity: shared.NewBaseEntity(),
		SaleID:     saleID,
		Number:     number,
		State:      StateNew,
		Date:       date,
	}
}

// NewReturn creates a new return for a sale
func NewReturn(saleID uuid.UUID, number string, date time.Time) *Shipment {
	sh := NewShipment(saleID, number, date)
	sh.Return = true
	return sh
}

// AddItem adds a line for a sale item
func (s *Shipment) AddItem(saleItemID uuid.UUID, quantity valueobject.Quantity) error {
	if !quantity.IsPositive() || quantity.IsUnlimited() {
		return shared.NewDomainError(shared.CodeInvalidInput, "Shipment item quantity must be positive")
	}
	s.Items = append(s.Items, Item{ID: uuid.New(), SaleItemID: saleItemID, Quantity: quantity})
	return nil
}

// QuantityOf sums the lines of the given sale item
func (s *Shipment) QuantityOf(saleItemID uuid.UUID) valueobject.Quantity {
	total := valueobject.ZeroQuantity()
	for _, item := range s.Items {
		if item.SaleItemID == saleItemID {
			total = total.Add(item.Quantity)
		}
	}
	return total
}

// Provider gives read access to the shipments attached to a sale
type Provider interface {
	// ShipmentsOf returns the shipments and returns of a sale ordered by date
	ShipmentsOf(saleID uuid.UUID) []*Shipment
}

// Set is an in-memory Provider
type Set struct {
	bySale map[uuid.UUID][]*Shipment
}

// NewSet creates a Set holding the given shipments
func NewSet(shipments ...*Shipment) *Set {
	s := &Set{bySale: make(map[uuid.UUID][]*Shipment)}
	s.Add(shipments...)
	return s
}

// Add registers shipments in the set
func (s *Set) Add(shipments ...*Shipment) {
	for _, sh := range shipments {
		list := append(s.bySale[sh.SaleID], sh)
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Date.Before(list[j].Date)
		})
		s.bySale[sh.SaleID] = list
	}
}

// Remove detaches a shipment from the set
func (s *Set) Remove(sh *Shipment) {
	list := s.bySale[sh.SaleID]
	for idx, candidate := range list {
		if candidate.ID == sh.ID {
			s.bySale[sh.SaleID] = append(list[:idx:idx], list[idx+1:]...)
			return
		}
	}
}

// ShipmentsOf implements Provider
func (s *Set) ShipmentsOf(saleID uuid.UUID) []*Shipment {
	return s.bySale[saleID]
}

var _ Provider = (*Set)(nil)
