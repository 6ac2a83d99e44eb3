package sale

import (
	"fmt"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Kind is the kind of a sale
type Kind string

const (
	KindCart  Kind = "CART"
	KindQuote Kind = "QUOTE"
	KindOrder Kind = "ORDER"
)

// ParseKind validates and returns a Kind
func ParseKind(value string) (Kind, error) {
	k := Kind(value)
	switch k {
	case KindCart, KindQuote, KindOrder:
		return k, nil
	}
	return "", shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("Unknown sale kind %q", value))
}

// String returns the string representation of Kind
func (k Kind) String() string {
	return string(k)
}

// Sale is the aggregate root owning items, adjustments and fulfillment documents.
// Documents are not held here; they are read through their own repositories.
type Sale struct {
	shared.BaseEntity
	Number      string
	Kind        Kind
	Sample      bool // Sample sales are not invoiced; sold quantity is the ordered quantity
	Released    bool // A released sample is considered sold only up to what was shipped
	Items       *ItemTree
	Adjustments []*Adjustment // Sale level adjustments
}

// NewSale creates a new sale
func NewSale(number string, kind Kind) (*Sale, error) {
	if number == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Sale number cannot be empty")
	}
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}
	return &Sale{
		BaseEntity: shared.NewBaseEntity(),
		Number:     number,
		Kind:       kind,
		Items:      NewItemTree(),
	}, nil
}

// SupportsInvoicing returns true if invoices can be issued for this sale
func (s *Sale) SupportsInvoicing() bool {
	return s.Kind == KindOrder
}

// SupportsShipment returns true if shipments can be issued for this sale
func (s *Sale) SupportsShipment() bool {
	return s.Kind == KindOrder
}

// AddItem adds an item under the given parent (uuid.Nil for a root item)
func (s *Sale) AddItem(parentID uuid.UUID, item *Item) error {
	return s.Items.Add(parentID, item)
}

// TotalQuantity returns the item quantity multiplied by all its ancestors' quantities
func (s *Sale) TotalQuantity(item *Item) valueobject.Quantity {
	return s.Items.TotalQuantity(item.ID)
}

// AddAdjustment attaches a sale level adjustment
func (s *Sale) AddAdjustment(adjustment *Adjustment) {
	adjustment.ItemID = nil
	s.Adjustments = append(s.Adjustments, adjustment)
}

// FindAdjustment looks up an adjustment by id among sale and item adjustments
func (s *Sale) FindAdjustment(id uuid.UUID) (*Adjustment, bool) {
	for _, a := range s.Adjustments {
		if a.ID == id {
			return a, true
		}
	}
	for _, item := range s.Items.All() {
		for _, a := range item.Adjustments {
			if a.ID == id {
				return a, true
			}
		}
	}
	return nil, false
}
