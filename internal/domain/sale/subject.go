package sale

import (
	"fmt"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/google/uuid"
)

// SubjectKind discriminates the ledger subjects a calculator can work on
type SubjectKind int

const (
	SubjectKindUnknown SubjectKind = iota
	SubjectKindItem                // a sale item (GOOD lines)
	SubjectKindDiscount            // a discount adjustment (DISCOUNT lines)
	SubjectKindShipment            // the sale shipment cost (SHIPMENT lines)
)

// String returns the name of the subject kind
func (k SubjectKind) String() string {
	switch k {
	case SubjectKindItem:
		return "item"
	case SubjectKindDiscount:
		return "discount"
	case SubjectKindShipment:
		return "shipment"
	}
	return "unknown"
}

// Subject is a closed union over the things a document line can reference.
// Build it with ItemSubject, DiscountSubject or ShipmentSubject; the zero value is invalid.
type Subject struct {
	kind       SubjectKind
	sale       *Sale
	item       *Item
	adjustment *Adjustment
}

// ItemSubject wraps a sale item
func ItemSubject(s *Sale, item *Item) Subject {
	return Subject{kind: SubjectKindItem, sale: s, item: item}
}

// DiscountSubject wraps a discount adjustment
func DiscountSubject(s *Sale, adjustment *Adjustment) Subject {
	return Subject{kind: SubjectKindDiscount, sale: s, adjustment: adjustment}
}

// ShipmentSubject wraps the sale itself (shipment cost line)
func ShipmentSubject(s *Sale) Subject {
	return Subject{kind: SubjectKindShipment, sale: s}
}

// Kind returns the subject kind
func (s Subject) Kind() SubjectKind {
	return s.kind
}

// Sale returns the owning sale
func (s Subject) Sale() *Sale {
	return s.sale
}

// Item returns the wrapped item (nil unless kind is item)
func (s Subject) Item() *Item {
	return s.item
}

// Adjustment returns the wrapped adjustment (nil unless kind is discount)
func (s Subject) Adjustment() *Adjustment {
	return s.adjustment
}

// ID returns the referenced id: item id, adjustment id or sale id
func (s Subject) ID() uuid.UUID {
	switch s.kind {
	case SubjectKindItem:
		return s.item.ID
	case SubjectKindDiscount:
		return s.adjustment.ID
	case SubjectKindShipment:
		return s.sale.ID
	}
	return uuid.Nil
}

// Validate checks that the subject is complete
func (s Subject) Validate() error {
	if s.sale == nil {
		return fmt.Errorf("%w: subject has no sale", shared.ErrUnsupportedSubject)
	}
	switch s.kind {
	case SubjectKindItem:
		if s.item == nil {
			return fmt.Errorf("%w: item subject without item", shared.ErrUnsupportedSubject)
		}
	case SubjectKindDiscount:
		if s.adjustment == nil || !s.adjustment.IsDiscount() {
			return fmt.Errorf("%w: discount subject without discount adjustment", shared.ErrUnsupportedSubject)
		}
	case SubjectKindShipment:
	default:
		return fmt.Errorf("%w: %s", shared.ErrUnsupportedSubject, s.kind)
	}
	return nil
}
