package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/fulfillment/internal/application/fulfillment"
	"github.com/erp/fulfillment/internal/domain/invoice"
	"github.com/erp/fulfillment/internal/domain/sale"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/domain/shipment"
	"github.com/erp/fulfillment/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormSaleLoader implements fulfillment.SaleLoader using GORM
type GormSaleLoader struct {
	db     *gorm.DB
	stocks *GormStockRepository
}

// NewGormSaleLoader creates a new GormSaleLoader
func NewGormSaleLoader(db *gorm.DB) *GormSaleLoader {
	return &GormSaleLoader{db: db, stocks: NewGormStockRepository(db)}
}

// LoadSnapshot implements fulfillment.SaleLoader
func (l *GormSaleLoader) LoadSnapshot(ctx context.Context, saleID uuid.UUID) (*fulfillment.Snapshot, error) {
	db := l.db.WithContext(ctx)

	var saleModel models.SaleModel
	if err := db.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("Adjustments", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&saleModel, "id = ?", saleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("loading sale %s: %w", saleID, err)
	}
	s, err := saleModel.ToDomain()
	if err != nil {
		return nil, err
	}

	snapshot := &fulfillment.Snapshot{Sale: s}
	if snapshot.Invoices, err = l.loadInvoices(db, saleID); err != nil {
		return nil, err
	}
	if snapshot.Shipments, err = l.loadShipments(db, saleID); err != nil {
		return nil, err
	}
	if snapshot.Products, err = l.loadProducts(db, s); err != nil {
		return nil, err
	}

	for _, item := range s.Items.All() {
		assignments, err := l.stocks.FindAssignmentsBySaleItem(ctx, item.ID)
		if err != nil {
			return nil, err
		}
		snapshot.Assignments = append(snapshot.Assignments, assignments...)
	}
	return snapshot, nil
}

func (l *GormSaleLoader) loadInvoices(db *gorm.DB, saleID uuid.UUID) ([]*invoice.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	if err := db.
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("sale_id = ?", saleID).
		Order("created_at, id").
		Find(&invoiceModels).Error; err != nil {
		return nil, fmt.Errorf("loading invoices of sale %s: %w", saleID, err)
	}

	invoices := make([]*invoice.Invoice, 0, len(invoiceModels))
	for i := range invoiceModels {
		inv, err := invoiceModels[i].ToDomain()
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, nil
}

func (l *GormSaleLoader) loadShipments(db *gorm.DB, saleID uuid.UUID) ([]*shipment.Shipment, error) {
	var shipmentModels []models.ShipmentModel
	if err := db.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("sale_id = ?", saleID).
		Order("date, id").
		Find(&shipmentModels).Error; err != nil {
		return nil, fmt.Errorf("loading shipments of sale %s: %w", saleID, err)
	}

	shipments := make([]*shipment.Shipment, 0, len(shipmentModels))
	for i := range shipmentModels {
		sh, err := shipmentModels[i].ToDomain()
		if err != nil {
			return nil, err
		}
		shipments = append(shipments, sh)
	}
	return shipments, nil
}

func (l *GormSaleLoader) loadProducts(db *gorm.DB, s *sale.Sale) ([]*sale.Product, error) {
	var ids []uuid.UUID
	for _, item := range s.Items.All() {
		if item.ProductID != nil {
			ids = append(ids, *item.ProductID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	var productModels []models.ProductModel
	if err := db.Where("id IN ?", ids).Find(&productModels).Error; err != nil {
		return nil, fmt.Errorf("loading products of sale %s: %w", s.ID, err)
	}

	products := make([]*sale.Product, 0, len(productModels))
	for i := range productModels {
		p, err := productModels[i].ToDomain()
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, nil
}

var _ fulfillment.SaleLoader = (*GormSaleLoader)(nil)
