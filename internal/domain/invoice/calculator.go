package invoice

import (
	"github.com/erp/fulfillment/internal/domain/sale"
	"github.com/erp/fulfillment/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Calculator derives invoiced, credited, invoiceable and creditable quantities
// from the invoices attached to a sale. It performs no I/O and keeps no state
// besides its provider, so it may be shared between concurrent readers.
type Calculator struct {
	invoices Provider
}

// NewCalculator creates a new invoice calculator
func NewCalculator(invoices Provider) *Calculator {
	return &Calculator{invoices: invoices}
}

// QuantityEntry holds the invoice progress of a single sale item
type QuantityEntry struct {
	Total    valueobject.Quantity `json:"total"`
	Invoiced valueobject.Quantity `json:"invoiced"`
	Credited valueobject.Quantity `json:"credited"`
}

// InvoicedQuantity sums the subject lines of all invoices (not credits) except ignore
func (c *Calculator) InvoicedQuantity(subject sale.Subject, ignore *Invoice) (valueobject.Quantity, error) {
	if err := subject.Validate(); err != nil {
		return valueobject.ZeroQuantity(), err
	}
	return c.sum(subject, ignore, false), nil
}

// CreditedQuantity sums the subject lines of all credits except ignore
func (c *Calculator) CreditedQuantity(subject sale.Subject, ignore *Invoice) (valueobject.Quantity, error) {
	if err := subject.Validate(); err != nil {
		return valueobject.ZeroQuantity(), err
	}
	return c.sum(subject, ignore, true), nil
}

// InvoiceableQuantity returns what may still be invoiced for the subject
func (c *Calculator) InvoiceableQuantity(subject sale.Subject, ignore *Invoice) (valueobject.Quantity, error) {
	if err := subject.Validate(); err != nil {
		return valueobject.ZeroQuantity(), err
	}
	if !subject.Sale().SupportsInvoicing() {
		return valueobject.ZeroQuantity(), nil
	}

	switch subject.Kind() {
	case sale.SubjectKindItem:
		total := subject.Sale().TotalQuantity(subject.Item())
		return total.Sub(c.sum(subject, ignore, false)).Positive(), nil
	case sale.SubjectKindDiscount:
		return valueobject.OneQuantity(), nil
	default:
		// the shipment cost is invoiced at most once
		one := valueobject.OneQuantity()
		return one.Sub(c.sum(subject, ignore, false)).Clamp(valueobject.ZeroQuantity(), one), nil
	}
}

// CreditableQuantity returns what may still be credited for the subject
func (c *Calculator) CreditableQuantity(subject sale.Subject, ignore *Invoice) (valueobject.Quantity, error) {
	if err := subject.Validate(); err != nil {
		return valueobject.ZeroQuantity(), err
	}
	if !subject.Sale().SupportsInvoicing() {
		return valueobject.ZeroQuantity(), nil
	}

	switch subject.Kind() {
	case sale.SubjectKindItem:
		invoiced := c.sum(subject, ignore, false)
		credited := c.sum(subject, ignore, true)
		return invoiced.Sub(credited).Positive(), nil
	case sale.SubjectKindDiscount:
		return valueobject.OneQuantity(), nil
	default:
		return valueobject.MaxQuantity(valueobject.OneQuantity(), c.sum(subject, ignore, false)), nil
	}
}

// IsInvoiced returns true if an invoice line references the subject.
// A compound item with private children is invoiced as soon as one of its children is.
func (c *Calculator) IsInvoiced(subject sale.Subject) (bool, error) {
	if err := subject.Validate(); err != nil {
		return false, err
	}
	s := subject.Sale()
	if !s.SupportsInvoicing() {
		return false, nil
	}
	if subject.Kind() == sale.SubjectKindItem && subject.Item().IsPrivateCompound() {
		for _, child := range s.Items.Children(subject.Item().ID) {
			invoiced, err := c.IsInvoiced(sale.ItemSubject(s, child))
			if err != nil {
				return false, err
			}
			if invoiced {
				return true, nil
			}
		}
		return false, nil
	}
	for _, inv := range c.invoices.InvoicesOf(s.ID) {
		if inv.Credit {
			continue
		}
		for _, line := range inv.Lines {
			if lineMatches(line, subject) {
				return true, nil
			}
		}
	}
	return false, nil
}

// SoldQuantity returns max(total, invoiced) - credited, or the total quantity for sample sales.
// The released-sample clamp needs shipment data and is applied by the shipment calculator.
func (c *Calculator) SoldQuantity(s *sale.Sale, item *sale.Item) valueobject.Quantity {
	total := s.TotalQuantity(item)
	if s.Sample || !s.SupportsInvoicing() {
		return total
	}
	subject := sale.ItemSubject(s, item)
	invoiced := c.sum(subject, nil, false)
	credited := c.sum(subject, nil, true)
	return valueobject.MaxQuantity(total, invoiced).Sub(credited)
}

// BuildQuantityMap returns the invoice progress of every item having a ledger entry,
// keyed by item id. Compound items with private children are skipped; their children are not.
func (c *Calculator) BuildQuantityMap(s *sale.Sale) map[uuid.UUID]QuantityEntry {
	entries := make(map[uuid.UUID]QuantityEntry, s.Items.Len())
	s.Items.Walk(func(item *sale.Item, _ int) bool {
		if item.IsPrivateCompound() {
			return true
		}
		subject := sale.ItemSubject(s, item)
		entries[item.ID] = QuantityEntry{
			Total:    s.TotalQuantity(item),
			Invoiced: c.sum(subject, nil, false),
			Credited: c.sum(subject, nil, true),
		}
		return true
	})
	return entries
}

// sum adds the quantities of the subject lines found in invoices (credit=false)
// or credits (credit=true). The subject must be valid.
func (c *Calculator) sum(subject sale.Subject, ignore *Invoice, credit bool) valueobject.Quantity {
	s := subject.Sale()
	if !s.SupportsInvoicing() {
		return valueobject.ZeroQuantity()
	}

	if subject.Kind() == sale.SubjectKindItem && subject.Item().IsPrivateCompound() {
		return c.compoundSum(s, subject.Item(), ignore, credit)
	}

	total := valueobject.ZeroQuantity()
	for _, inv := range c.invoices.InvoicesOf(s.ID) {
		if inv.Credit != credit || isIgnored(inv, ignore) {
			continue
		}
		for _, line := range inv.Lines {
			if lineMatches(line, subject) {
				total = total.Add(line.Quantity)
			}
		}
	}
	return total
}

// compoundSum resolves a compound item quantity as the minimum over its children
// of childQuantity / childOwnQuantity.
func (c *Calculator) compoundSum(s *sale.Sale, item *sale.Item, ignore *Invoice, credit bool) valueobject.Quantity {
	children := s.Items.Children(item.ID)
	if len(children) == 0 {
		return valueobject.ZeroQuantity()
	}
	result := valueobject.UnlimitedQuantity()
	for _, child := range children {
		childSum := c.sum(sale.ItemSubject(s, child), ignore, credit)
		perParent, err := childSum.Div(child.Quantity)
		if err != nil {
			continue
		}
		result = valueobject.MinQuantity(result, perParent)
	}
	if result.IsUnlimited() {
		return valueobject.ZeroQuantity()
	}
	return result
}

func isIgnored(inv, ignore *Invoice) bool {
	return ignore != nil && (inv == ignore || inv.ID == ignore.ID)
}

func lineMatches(line Line, subject sale.Subject) bool {
	switch subject.Kind() {
	case sale.SubjectKindItem:
		return line.Type == LineTypeGood && line.ItemID != nil && *line.ItemID == subject.Item().ID
	case sale.SubjectKindDiscount:
		return line.Type == LineTypeDiscount && line.AdjustmentID != nil && *line.AdjustmentID == subject.Adjustment().ID
	case sale.SubjectKindShipment:
		return line.Type == LineTypeShipment
	}
	return false
}
