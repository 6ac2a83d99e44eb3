//go:build integration

package integration

import (
	"testing"
	"time"

	"github.com/erp/fulfillment/internal/domain/invoice"
	"github.com/erp/fulfillment/internal/domain/sale"
	"github.com/erp/fulfillment/internal/domain/shared/valueobject"
	"github.com/erp/fulfillment/internal/domain/shipment"
	"github.com/erp/fulfillment/internal/domain/stock"
	"github.com/erp/fulfillment/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func qty(v int64) valueobject.Quantity {
	return valueobject.QuantityFromInt(v)
}

// order is one sale of 5 chairs, all invoiced and 2 shipped, served by a single stock unit
// of 10 where only 3 are recorded as sold.
type order struct {
	product    *sale.Product
	sale       *sale.Sale
	chair      *sale.Item
	invoice    *invoice.Invoice
	shipment   *shipment.Shipment
	unit       *stock.Unit
	assignment *stock.Assignment
}

func newOrder(t *testing.T) *order {
	t.Helper()
	o := &order{}

	o.product = &sale.Product{ID: uuid.New(), Reference: "CHAIR-" + uuid.NewString()[:8], StockMode: sale.StockModeAuto}

	s, err := sale.NewSale("SO-"+uuid.NewString()[:8], sale.KindOrder)
	require.NoError(t, err)
	o.sale = s

	o.chair, err = sale.NewItem("Chair", qty(5))
	require.NoError(t, err)
	o.chair.ProductID = &o.product.ID
	require.NoError(t, s.AddItem(uuid.Nil, o.chair))

	o.invoice = invoice.NewInvoice(s.ID, "INV-"+uuid.NewString()[:8])
	_, err = o.invoice.AddGoodLine(o.chair.ID, qty(5))
	require.NoError(t, err)

	o.shipment = shipment.NewShipment(s.ID, "SH-"+uuid.NewString()[:8], time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC))
	o.shipment.State = shipment.StateShipped
	require.NoError(t, o.shipment.AddItem(o.chair.ID, qty(2)))

	o.unit = stock.NewUnit(o.product.ID)
	o.unit.Supplied = true
	o.unit.OrderedQuantity = qty(10)
	o.unit.ReceivedQuantity = qty(10)
	o.unit.SoldQuantity = qty(3)
	o.unit.ShippedQuantity = qty(2)

	o.assignment = stock.NewAssignment(o.unit, o.chair.ID)
	o.assignment.SoldQuantity = qty(3)
	o.assignment.ShippedQuantity = qty(2)
	return o
}

func (o *order) save(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Create(models.ProductModelFromDomain(o.product)).Error)
	require.NoError(t, db.Create(models.SaleModelFromDomain(o.sale)).Error)
	require.NoError(t, db.Create(models.InvoiceModelFromDomain(o.invoice)).Error)
	require.NoError(t, db.Create(models.ShipmentModelFromDomain(o.shipment)).Error)
	require.NoError(t, db.Create(models.StockUnitModelFromDomain(o.unit)).Error)
	require.NoError(t, db.Create(models.StockAssignmentModelFromDomain(o.assignment)).Error)
}

func (o *order) storedUnit(t *testing.T, db *gorm.DB) models.StockUnitModel {
	t.Helper()
	var unit models.StockUnitModel
	require.NoError(t, db.First(&unit, "id = ?", o.unit.ID).Error)
	return unit
}

func (o *order) storedAssignment(t *testing.T, db *gorm.DB) models.StockAssignmentModel {
	t.Helper()
	var assignment models.StockAssignmentModel
	require.NoError(t, db.First(&assignment, "id = ?", o.assignment.ID).Error)
	return assignment
}
