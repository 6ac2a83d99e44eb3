package persistence

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/fulfillment/internal/domain/invoice"
	"github.com/erp/fulfillment/internal/domain/sale"
	"github.com/erp/fulfillment/internal/domain/shared/valueobject"
	"github.com/erp/fulfillment/internal/domain/shipment"
	"github.com/erp/fulfillment/internal/domain/stock"
	"github.com/erp/fulfillment/internal/infrastructure/config"
	"github.com/erp/fulfillment/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockDatabase creates a Database instance with a mocked postgres connection
func newMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	database, err := wrap(gormDB)
	require.NoError(t, err)
	return database, mock, mockDB
}

// newSQLiteDatabase opens a private in-memory sqlite database with the schema migrated
func newSQLiteDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := NewDatabase(&config.DatabaseConfig{
		Driver:       config.DriverSQLite,
		DBName:       fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	require.NoError(t, database.DB.AutoMigrate(
		&models.ProductModel{},
		&models.SaleModel{},
		&models.SaleItemModel{},
		&models.SaleAdjustmentModel{},
		&models.InvoiceModel{},
		&models.InvoiceLineModel{},
		&models.ShipmentModel{},
		&models.ShipmentItemModel{},
		&models.StockUnitModel{},
		&models.StockAssignmentModel{},
		&models.StockAdjustmentModel{},
		&models.OutboxEntryModel{},
	))
	return database.DB
}

func qty(v int64) valueobject.Quantity {
	return valueobject.QuantityFromInt(v)
}

// fixture is one order whose stock assignment drifted from its documents:
// 5 chairs invoiced, 2 shipped, but only 3 recorded as sold on the assignment and the unit.
type fixture struct {
	product    *sale.Product
	sale       *sale.Sale
	chair      *sale.Item
	invoice    *invoice.Invoice
	shipment   *shipment.Shipment
	unit       *stock.Unit
	assignment *stock.Assignment
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{}

	f.product = &sale.Product{ID: uuid.New(), Reference: "CHAIR", StockMode: sale.StockModeAuto}

	s, err := sale.NewSale("SO-"+uuid.NewString()[:8], sale.KindOrder)
	require.NoError(t, err)
	f.sale = s

	f.chair, err = sale.NewItem("Chair", qty(5))
	require.NoError(t, err)
	f.chair.ProductID = &f.product.ID
	require.NoError(t, s.AddItem(uuid.Nil, f.chair))

	f.invoice = invoice.NewInvoice(s.ID, "INV-"+uuid.NewString()[:8])
	_, err = f.invoice.AddGoodLine(f.chair.ID, qty(5))
	require.NoError(t, err)

	f.shipment = shipment.NewShipment(s.ID, "SH-"+uuid.NewString()[:8], time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC))
	f.shipment.State = shipment.StateShipped
	require.NoError(t, f.shipment.AddItem(f.chair.ID, qty(2)))

	f.unit = stock.NewUnit(f.product.ID)
	f.unit.Supplied = true
	f.unit.OrderedQuantity = qty(10)
	f.unit.ReceivedQuantity = qty(10)
	f.unit.SoldQuantity = qty(3)
	f.unit.ShippedQuantity = qty(2)

	f.assignment = stock.NewAssignment(f.unit, f.chair.ID)
	f.assignment.SoldQuantity = qty(3)
	f.assignment.ShippedQuantity = qty(2)
	return f
}

func (f *fixture) save(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Create(models.ProductModelFromDomain(f.product)).Error)
	require.NoError(t, db.Create(models.SaleModelFromDomain(f.sale)).Error)
	require.NoError(t, db.Create(models.InvoiceModelFromDomain(f.invoice)).Error)
	require.NoError(t, db.Create(models.ShipmentModelFromDomain(f.shipment)).Error)
	require.NoError(t, db.Create(models.StockUnitModelFromDomain(f.unit)).Error)
	require.NoError(t, db.Create(models.StockAssignmentModelFromDomain(f.assignment)).Error)
	for _, a := range f.unit.Adjustments {
		require.NoError(t, db.Create(models.StockAdjustmentModelFromDomain(a)).Error)
	}
}
