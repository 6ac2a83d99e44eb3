package shipment

import (
	"sort"
	"time"

	"github.com/erp/fulfillment/internal/domain/sale"
	"github.com/erp/fulfillment/internal/domain/shared/valueobject"
	"github.com/erp/fulfillment/internal/domain/stock"
	"github.com/google/uuid"
)

// RemainingEntry is the quantity of a sale item still owed after a shipment
type RemainingEntry struct {
	SaleItemID             uuid.UUID            `json:"sale_item_id"`
	Designation            string               `json:"designation"`
	Quantity               valueobject.Quantity `json:"quantity"`
	EstimatedDateOfArrival *time.Time           `json:"estimated_date_of_arrival,omitempty"`
}

// RemainingList lists what the sale still owes once a shipment is done
type RemainingList struct {
	Entries               []RemainingEntry `json:"entries"`
	EstimatedShippingDate *time.Time       `json:"estimated_shipping_date,omitempty"`
}

// IsEmpty returns true if nothing remains to ship
func (l *RemainingList) IsEmpty() bool {
	return len(l.Entries) == 0
}

// ApplyTo copies the estimated shipping date to the shipment
func (l *RemainingList) ApplyTo(sh *Shipment) {
	sh.EstimatedShippingDate = l.EstimatedShippingDate
}

// BuildRemainingList computes, for every sale item, the sold quantity not covered by the
// target shipment nor by stockable shipments dated at or before it. For stock tracked items
// whose assignments cannot cover that remainder, the entry carries the furthest arrival date
// among the units that must arrive first. The latest of these dates becomes the estimated
// shipping date when it lies after the target shipment date.
func (c *Calculator) BuildRemainingList(s *sale.Sale, target *Shipment) *RemainingList {
	list := &RemainingList{}
	if target == nil || !s.SupportsShipment() {
		return list
	}

	var shipments []*Shipment
	for _, sh := range c.shipments.ShipmentsOf(s.ID) {
		if sh.ID != target.ID && sh.State.IsStockable() && !sh.Date.After(target.Date) {
			shipments = append(shipments, sh)
		}
	}
	shipments = append(shipments, target)

	s.Items.Walk(func(item *sale.Item, _ int) bool {
		if item.Compound && s.Items.HasChildren(item.ID) {
			return true
		}

		covered := valueobject.ZeroQuantity()
		for _, sh := range shipments {
			q := sh.QuantityOf(item.ID)
			if sh.Return {
				covered = covered.Sub(q)
			} else {
				covered = covered.Add(q)
			}
		}
		remaining := c.SoldQuantity(s, item).Sub(covered)
		if !remaining.IsPositive() {
			return true
		}

		list.Entries = append(list.Entries, RemainingEntry{
			SaleItemID:             item.ID,
			Designation:            item.Designation,
			Quantity:               remaining,
			EstimatedDateOfArrival: c.arrivalDate(item, remaining),
		})
		return true
	})

	var latest *time.Time
	for _, entry := range list.Entries {
		if entry.EstimatedDateOfArrival != nil && (latest == nil || entry.EstimatedDateOfArrival.After(*latest)) {
			latest = entry.EstimatedDateOfArrival
		}
	}
	if latest != nil && latest.After(target.Date) {
		esd := *latest
		list.EstimatedShippingDate = &esd
	}
	return list
}

// arrivalDate returns the arrival date of the last unit needed to cover the remaining quantity,
// or nil when current stock covers it or the item is not stock tracked.
func (c *Calculator) arrivalDate(item *sale.Item, remaining valueobject.Quantity) *time.Time {
	product, ok := c.resolver.Resolve(item)
	if !ok || !product.IsStockTracked() {
		return nil
	}

	missing := remaining
	var waiting []*stock.Assignment
	for _, a := range c.assignments.AssignmentsOf(item.ID) {
		missing = missing.Sub(a.ShippableQuantity())
		if a.WaitingQuantity().IsPositive() && a.Unit.EstimatedDateOfArrival != nil {
			waiting = append(waiting, a)
		}
	}
	if !missing.IsPositive() {
		return nil
	}

	sort.SliceStable(waiting, func(i, j int) bool {
		return waiting[i].Unit.EstimatedDateOfArrival.Before(*waiting[j].Unit.EstimatedDateOfArrival)
	})

	var eta *time.Time
	for _, a := range waiting {
		date := *a.Unit.EstimatedDateOfArrival
		eta = &date
		missing = missing.Sub(a.WaitingQuantity())
		if !missing.IsPositive() {
			break
		}
	}
	return eta
}
