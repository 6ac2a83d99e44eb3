// Package fulfillment exposes the quantity ledgers of a sale: what was invoiced, credited,
// shipped and returned per item, and what remains to ship after a given shipment.
package fulfillment

import (
	"context"
	"fmt"

	"github.com/erp/fulfillment/internal/domain/invoice"
	"github.com/erp/fulfillment/internal/domain/sale"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/domain/shared/valueobject"
	"github.com/erp/fulfillment/internal/domain/shipment"
	"github.com/erp/fulfillment/internal/domain/stock"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Snapshot is a sale loaded with every document the calculators read
type Snapshot struct {
	Sale        *sale.Sale
	Invoices    []*invoice.Invoice
	Shipments   []*shipment.Shipment
	Products    []*sale.Product
	Assignments []*stock.Assignment
}

// SaleLoader loads sale snapshots
type SaleLoader interface {
	// LoadSnapshot returns shared.ErrNotFound when the sale does not exist
	LoadSnapshot(ctx context.Context, saleID uuid.UUID) (*Snapshot, error)
}

// ItemQuantities is the ledger of one sale item
type ItemQuantities struct {
	ItemID      uuid.UUID            `json:"item_id"`
	Designation string               `json:"designation"`
	Total       valueobject.Quantity `json:"total"`
	Invoiced    valueobject.Quantity `json:"invoiced"`
	Credited    valueobject.Quantity `json:"credited"`
	Sold        valueobject.Quantity `json:"sold"`
	Shipped     valueobject.Quantity `json:"shipped"`
	Returned    valueobject.Quantity `json:"returned"`
	Shippable   valueobject.Quantity `json:"shippable"`
	Returnable  valueobject.Quantity `json:"returnable"`
	Available   valueobject.Quantity `json:"available"`
}

// QuantityMap is the ledger of every item of a sale, in tree order
type QuantityMap struct {
	SaleID     uuid.UUID        `json:"sale_id"`
	SaleNumber string           `json:"sale_number"`
	Items      []ItemQuantities `json:"items"`
}

// QuantityService builds calculators over sale snapshots
type QuantityService struct {
	loader SaleLoader
	logger *zap.Logger
}

// NewQuantityService creates a new QuantityService
func NewQuantityService(loader SaleLoader, logger *zap.Logger) *QuantityService {
	return &QuantityService{
		loader: loader,
		logger: logger,
	}
}

type calculators struct {
	snapshot  *Snapshot
	invoices  *invoice.Calculator
	shipments *shipment.Calculator
}

func (s *QuantityService) load(ctx context.Context, saleID uuid.UUID) (*calculators, error) {
	snap, err := s.loader.LoadSnapshot(ctx, saleID)
	if err != nil {
		return nil, fmt.Errorf("loading sale %s: %w", saleID, err)
	}

	catalog := sale.ProductCatalog{}
	catalog.Add(snap.Products...)
	assignments := shipment.AssignmentIndex{}
	assignments.Add(snap.Assignments...)

	invoices := invoice.NewCalculator(invoice.NewSet(snap.Invoices...))
	return &calculators{
		snapshot:  snap,
		invoices:  invoices,
		shipments: shipment.NewCalculator(shipment.NewSet(snap.Shipments...), invoices, catalog, assignments),
	}, nil
}

// QuantityMap returns the ledger of every item of the sale
func (s *QuantityService) QuantityMap(ctx context.Context, saleID uuid.UUID) (*QuantityMap, error) {
	calc, err := s.load(ctx, saleID)
	if err != nil {
		return nil, err
	}
	sl := calc.snapshot.Sale

	result := &QuantityMap{SaleID: sl.ID, SaleNumber: sl.Number}
	for _, item := range sl.Items.All() {
		subject := sale.ItemSubject(sl, item)
		entry := ItemQuantities{
			ItemID:      item.ID,
			Designation: item.Designation,
			Total:       sl.TotalQuantity(item),
			Sold:        calc.shipments.SoldQuantity(sl, item),
		}
		if entry.Invoiced, err = calc.invoices.InvoicedQuantity(subject, nil); err != nil {
			return nil, err
		}
		if entry.Credited, err = calc.invoices.CreditedQuantity(subject, nil); err != nil {
			return nil, err
		}
		if entry.Shipped, err = calc.shipments.ShippedQuantity(subject, nil); err != nil {
			return nil, err
		}
		if entry.Returned, err = calc.shipments.ReturnedQuantity(subject, nil); err != nil {
			return nil, err
		}
		if entry.Shippable, err = calc.shipments.ShippableQuantity(subject, nil); err != nil {
			return nil, err
		}
		if entry.Returnable, err = calc.shipments.ReturnableQuantity(subject, nil); err != nil {
			return nil, err
		}
		if entry.Available, err = calc.shipments.AvailableQuantity(subject, nil); err != nil {
			return nil, err
		}
		result.Items = append(result.Items, entry)
	}

	s.logger.Debug("Quantity map built",
		zap.String("sale_id", sl.ID.String()),
		zap.Int("items", len(result.Items)),
	)
	return result, nil
}

// RemainingList returns what the sale still owes once the given shipment is done.
// The shipment must belong to the sale.
func (s *QuantityService) RemainingList(ctx context.Context, saleID, shipmentID uuid.UUID) (*shipment.RemainingList, error) {
	calc, err := s.load(ctx, saleID)
	if err != nil {
		return nil, err
	}

	var target *shipment.Shipment
	for _, sh := range calc.snapshot.Shipments {
		if sh.ID == shipmentID {
			target = sh
			break
		}
	}
	if target == nil {
		return nil, shared.NewDomainError(shared.CodeNotFound,
			fmt.Sprintf("Shipment %s not found in sale %s", shipmentID, saleID))
	}

	list := calc.shipments.BuildRemainingList(calc.snapshot.Sale, target)
	s.logger.Debug("Remaining list built",
		zap.String("sale_id", saleID.String()),
		zap.String("shipment_id", shipmentID.String()),
		zap.Int("entries", len(list.Entries)),
		zap.Timep("estimated_shipping_date", list.EstimatedShippingDate),
	)
	return list, nil
}

// InvoiceableQuantity returns how much of the item can still be invoiced
func (s *QuantityService) InvoiceableQuantity(ctx context.Context, saleID, itemID uuid.UUID) (valueobject.Quantity, error) {
	calc, err := s.load(ctx, saleID)
	if err != nil {
		return valueobject.ZeroQuantity(), err
	}
	item, ok := calc.snapshot.Sale.Items.Get(itemID)
	if !ok {
		return valueobject.ZeroQuantity(), shared.NewDomainError(shared.CodeNotFound,
			fmt.Sprintf("Item %s not found in sale %s", itemID, saleID))
	}
	return calc.invoices.InvoiceableQuantity(sale.ItemSubject(calc.snapshot.Sale, item), nil)
}
