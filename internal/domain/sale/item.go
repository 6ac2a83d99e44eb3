package sale

import (
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Item is one line of a sale. Items form a tree: a compound item's quantity is
// resolved through its children, whose own quantity is the multiplier per parent unit.
type Item struct {
	ID              uuid.UUID
	Designation     string
	Reference       string
	Quantity        valueobject.Quantity // Own quantity, relative to the parent
	Compound        bool                 // Quantity is resolved through children
	PrivateChildren bool                 // Children are not independently salable
	ProductID       *uuid.UUID           // Stock-trackable subject, if any
	Adjustments     []*Adjustment        // Item level adjustments

	parent   int
	children []int
}

// NewItem creates a new sale item
func NewItem(designation string, quantity valueobject.Quantity) (*Item, error) {
	if designation == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Item designation cannot be empty")
	}
	if !quantity.IsPositive() || quantity.IsUnlimited() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Item quantity must be positive")
	}
	return &Item{
		ID:          uuid.New(),
		Designation: designation,
		Quantity:    quantity,
		parent:      noParent,
	}, nil
}

// IsPrivateCompound returns true for a compound item whose children are private.
// Such an item has no ledger entry of its own; its children carry the activity.
func (i *Item) IsPrivateCompound() bool {
	return i.Compound && i.PrivateChildren
}

// HasProduct returns true if the item is linked to a stock subject
func (i *Item) HasProduct() bool {
	return i.ProductID != nil && *i.ProductID != uuid.Nil
}

// AddAdjustment attaches an adjustment to the item
func (i *Item) AddAdjustment(adjustment *Adjustment) {
	id := i.ID
	adjustment.ItemID = &id
	i.Adjustments = append(i.Adjustments, adjustment)
}
