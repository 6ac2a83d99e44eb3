package shipment

import (
	"github.com/erp/fulfillment/internal/domain/invoice"
	"github.com/erp/fulfillment/internal/domain/sale"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/domain/shared/valueobject"
	"github.com/erp/fulfillment/internal/domain/stock"
	"github.com/google/uuid"
)

// AssignmentProvider returns the stock assignments of a sale item
type AssignmentProvider interface {
	AssignmentsOf(saleItemID uuid.UUID) []*stock.Assignment
}

// AssignmentIndex is an in-memory AssignmentProvider keyed by sale item id
type AssignmentIndex map[uuid.UUID][]*stock.Assignment

// Add registers assignments in the index
func (idx AssignmentIndex) Add(assignments ...*stock.Assignment) {
	for _, a := range assignments {
		idx[a.SaleItemID] = append(idx[a.SaleItemID], a)
	}
}

// AssignmentsOf implements AssignmentProvider
func (idx AssignmentIndex) AssignmentsOf(saleItemID uuid.UUID) []*stock.Assignment {
	return idx[saleItemID]
}

var _ AssignmentProvider = AssignmentIndex(nil)

// Calculator derives shipped, returned, shippable, returnable and available quantities
// of sale items. Only shipments in a stockable state contribute. Compound items are
// resolved as the minimum over their children of childQuantity / childOwnQuantity.
type Calculator struct {
	shipments   Provider
	invoices    *invoice.Calculator
	resolver    sale.SubjectResolver
	assignments AssignmentProvider
}

// NewCalculator creates a new shipment calculator
func NewCalculator(
	shipments Provider,
	invoices *invoice.Calculator,
	resolver sale.SubjectResolver,
	assignments AssignmentProvider,
) *Calculator {
	return &Calculator{
		shipments:   shipments,
		invoices:    invoices,
		resolver:    resolver,
		assignments: assignments,
	}
}

// ShippedQuantity sums the subject lines of stockable shipments except ignore
func (c *Calculator) ShippedQuantity(subject sale.Subject, ignore *Shipment) (valueobject.Quantity, error) {
	s, item, err := itemOf(subject)
	if err != nil || !s.SupportsShipment() {
		return valueobject.ZeroQuantity(), err
	}
	return c.derive(s, item, func(leaf *sale.Item) valueobject.Quantity {
		return c.sum(s, leaf, ignore, false)
	}), nil
}

// ReturnedQuantity sums the subject lines of stockable returns except ignore
func (c *Calculator) ReturnedQuantity(subject sale.Subject, ignore *Shipment) (valueobject.Quantity, error) {
	s, item, err := itemOf(subject)
	if err != nil || !s.SupportsShipment() {
		return valueobject.ZeroQuantity(), err
	}
	return c.derive(s, item, func(leaf *sale.Item) valueobject.Quantity {
		return c.sum(s, leaf, ignore, true)
	}), nil
}

// ShippableQuantity returns sold - shipped + returned, at least zero
func (c *Calculator) ShippableQuantity(subject sale.Subject, ignore *Shipment) (valueobject.Quantity, error) {
	s, item, err := itemOf(subject)
	if err != nil || !s.SupportsShipment() {
		return valueobject.ZeroQuantity(), err
	}
	return c.derive(s, item, func(leaf *sale.Item) valueobject.Quantity {
		sold := c.SoldQuantity(s, leaf)
		return sold.Sub(c.sum(s, leaf, ignore, false)).Add(c.sum(s, leaf, nil, true)).Positive()
	}), nil
}

// ReturnableQuantity returns shipped - returned, at least zero
func (c *Calculator) ReturnableQuantity(subject sale.Subject, ignore *Shipment) (valueobject.Quantity, error) {
	s, item, err := itemOf(subject)
	if err != nil || !s.SupportsShipment() {
		return valueobject.ZeroQuantity(), err
	}
	return c.derive(s, item, func(leaf *sale.Item) valueobject.Quantity {
		return c.sum(s, leaf, nil, false).Sub(c.sum(s, leaf, ignore, true)).Positive()
	}), nil
}

// AvailableQuantity returns the quantity the stock can deliver for the subject.
// Items without a stock tracked product are unconstrained and return UnlimitedQuantity.
// A stockable non-return ignore document counts toward availability since it is being edited.
func (c *Calculator) AvailableQuantity(subject sale.Subject, ignore *Shipment) (valueobject.Quantity, error) {
	s, item, err := itemOf(subject)
	if err != nil || !s.SupportsShipment() {
		return valueobject.ZeroQuantity(), err
	}
	return c.derive(s, item, func(leaf *sale.Item) valueobject.Quantity {
		product, ok := c.resolver.Resolve(leaf)
		if !ok || !product.IsStockTracked() {
			return valueobject.UnlimitedQuantity()
		}
		total := valueobject.ZeroQuantity()
		for _, a := range c.assignments.AssignmentsOf(leaf.ID) {
			total = total.Add(a.ShippableQuantity())
		}
		if ignore != nil && !ignore.Return && ignore.State.IsStockable() {
			total = total.Add(ignore.QuantityOf(leaf.ID))
		}
		return total
	}), nil
}

// SoldQuantity returns the sold quantity from the invoice ledger.
// A released sample sale is sold only up to what was shipped net of returns.
func (c *Calculator) SoldQuantity(s *sale.Sale, item *sale.Item) valueobject.Quantity {
	sold := c.invoices.SoldQuantity(s, item)
	if s.Sample && s.Released {
		shipped := c.derive(s, item, func(leaf *sale.Item) valueobject.Quantity {
			return c.sum(s, leaf, nil, false).Sub(c.sum(s, leaf, nil, true)).Positive()
		})
		sold = valueobject.MinQuantity(sold, shipped)
	}
	return sold
}

// derive applies leaf to the item, or resolves a compound item through its children
func (c *Calculator) derive(s *sale.Sale, item *sale.Item, leaf func(*sale.Item) valueobject.Quantity) valueobject.Quantity {
	children := s.Items.Children(item.ID)
	if !item.Compound || len(children) == 0 {
		return leaf(item)
	}
	result := valueobject.UnlimitedQuantity()
	for _, child := range children {
		perParent, err := c.derive(s, child, leaf).Div(child.Quantity)
		if err != nil {
			continue
		}
		result = valueobject.MinQuantity(result, perParent)
	}
	return result
}

// sum adds the item lines of stockable shipments (returned=false) or returns (returned=true)
func (c *Calculator) sum(s *sale.Sale, item *sale.Item, ignore *Shipment, returned bool) valueobject.Quantity {
	total := valueobject.ZeroQuantity()
	for _, sh := range c.shipments.ShipmentsOf(s.ID) {
		if sh.Return != returned || !sh.State.IsStockable() || isIgnored(sh, ignore) {
			continue
		}
		total = total.Add(sh.QuantityOf(item.ID))
	}
	return total
}

func isIgnored(sh, ignore *Shipment) bool {
	return ignore != nil && (sh == ignore || sh.ID == ignore.ID)
}

func itemOf(subject sale.Subject) (*sale.Sale, *sale.Item, error) {
	if err := subject.Validate(); err != nil {
		return nil, nil, err
	}
	if subject.Kind() != sale.SubjectKindItem {
		return nil, nil, shared.NewDomainError(shared.CodeUnsupportedSubject,
			"Shipment quantities are only defined for sale items, got "+subject.Kind().String())
	}
	return subject.Sale(), subject.Item(), nil
}
