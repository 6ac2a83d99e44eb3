package invoice

import (
	"fmt"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// LineType is the type of an invoice line
type LineType string

const (
	LineTypeGood     LineType = "GOOD"
	LineTypeDiscount LineType = "DISCOUNT"
	LineTypeShipment LineType = "SHIPMENT"
)

// ParseLineType validates and returns a LineType
func ParseLineType(value string) (LineType, error) {
	t := LineType(value)
	switch t {
	case LineTypeGood, LineTypeDiscount, LineTypeShipment:
		return t, nil
	}
	return "", shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("Unknown invoice line type %q", value))
}

// String returns the string representation of LineType
func (t LineType) String() string {
	return string(t)
}

// Line is one line of an invoice or credit.
// GOOD lines reference a sale item, DISCOUNT lines an adjustment, SHIPMENT lines nothing.
type Line struct {
	ID           uuid.UUID
	Type         LineType
	Designation  string
	Quantity     valueobject.Quantity
	ItemID       *uuid.UUID
	AdjustmentID *uuid.UUID
}

// Invoice is an invoice or, when Credit is set, a credit note.
// Lines are created once when the document is issued.
type Invoice struct {
	shared.BaseEntity
	SaleID uuid.UUID
	Number string
	Credit bool
	Lines  []Line
}

// NewInvoice creates a new invoice for a sale
func NewInvoice(saleID uuid.UUID, number string) *Invoice {
	return &Invoice{
		BaseEntity: shared.NewBaseEntity(),
		SaleID:     saleID,
		Number:     number,
	}
}

// NewCredit creates a new credit note for a sale
func NewCredit(saleID uuid.UUID, number string) *Invoice {
	inv := NewInvoice(saleID, number)
	inv.Credit = true
	return inv
}

// AddGoodLine adds a line for a sale item
func (i *Invoice) AddGoodLine(itemID uuid.UUID, quantity valueobject.Quantity) (*Line, error) {
	if !quantity.IsPositive() || quantity.IsUnlimited() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Line quantity must be positive")
	}
	return i.addLine(Line{Type: LineTypeGood, Quantity: quantity, ItemID: &itemID}), nil
}

// AddDiscountLine adds a line for a discount adjustment; discounts are dispatched whole
func (i *Invoice) AddDiscountLine(adjustmentID uuid.UUID) *Line {
	return i.addLine(Line{Type: LineTypeDiscount, Quantity: valueobject.OneQuantity(), AdjustmentID: &adjustmentID})
}

// AddShipmentLine adds the shipment cost line
func (i *Invoice) AddShipmentLine() *Line {
	return i.addLine(Line{Type: LineTypeShipment, Quantity: valueobject.OneQuantity()})
}

func (i *Invoice) addLine(line Line) *Line {
	line.ID = uuid.New()
	i.Lines = append(i.Lines, line)
	return &i.Lines[len(i.Lines)-1]
}

// LinesOf returns the lines of the given type, in order
func (i *Invoice) LinesOf(t LineType) []Line {
	var lines []Line
	for _, l := range i.Lines {
		if l.Type == t {
			lines = append(lines, l)
		}
	}
	return lines
}

// Provider gives read access to the invoices attached to a sale
type Provider interface {
	InvoicesOf(saleID uuid.UUID) []*Invoice
}

// Set is an in-memory Provider, typically built from a loaded sale snapshot
type Set struct {
	bySale map[uuid.UUID][]*Invoice
}

// NewSet creates a Set holding the given invoices
func NewSet(invoices ...*Invoice) *Set {
	s := &Set{bySale: make(map[uuid.UUID][]*Invoice)}
	s.Add(invoices...)
	return s
}

// Add registers invoices in the set
func (s *Set) Add(invoices ...*Invoice) {
	for _, inv := range invoices {
		s.bySale[inv.SaleID] = append(s.bySale[inv.SaleID], inv)
	}
}

// Remove detaches an invoice from the set. Derived quantities no longer include its lines.
func (s *Set) Remove(inv *Invoice) {
	list := s.bySale[inv.SaleID]
	for idx, candidate := range list {
		if candidate.ID == inv.ID {
			s.bySale[inv.SaleID] = append(list[:idx:idx], list[idx+1:]...)
			return
		}
	}
}

// InvoicesOf implements Provider
func (s *Set) InvoicesOf(saleID uuid.UUID) []*Invoice {
	return s.bySale[saleID]
}

var _ Provider = (*Set)(nil)
