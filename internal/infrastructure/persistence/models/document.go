package models

import (
	"time"

	"github.com/erp/fulfillment/internal/domain/invoice"
	"github.com/erp/fulfillment/internal/domain/shared/valueobject"
	"github.com/erp/fulfillment/internal/domain/shipment"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the persistence model for an invoice or credit note
type InvoiceModel struct {
	BaseModel
	SaleID   uuid.UUID          `gorm:"type:uuid;not null;index"`
	Number   string             `gorm:"type:varchar(50);not null;uniqueIndex"`
	IsCredit bool               `gorm:"not null;default:false"`
	Lines    []InvoiceLineModel `gorm:"foreignKey:InvoiceID;references:ID"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// InvoiceLineModel is the persistence model for an invoice line
type InvoiceLineModel struct {
	ID           uuid.UUID       `gorm:"type:uuid;primary_key"`
	InvoiceID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	Position     int             `gorm:"not null"`
	Type         string          `gorm:"type:varchar(20);not null"`
	Designation  string          `gorm:"type:varchar(255)"`
	Quantity     decimal.Decimal `gorm:"type:decimal(18,5);not null"`
	ItemID       *uuid.UUID      `gorm:"type:uuid;index"`
	AdjustmentID *uuid.UUID      `gorm:"type:uuid;index"`
}

// TableName returns the table name for GORM
func (InvoiceLineModel) TableName() string {
	return "invoice_lines"
}

// ToDomain converts the persistence model to a domain Invoice. Lines must be sorted by position.
func (m *InvoiceModel) ToDomain() (*invoice.Invoice, error) {
	inv := &invoice.Invoice{
		BaseEntity: m.BaseModel.ToDomain(),
		SaleID:     m.SaleID,
		Number:     m.Number,
		Credit:     m.IsCredit,
		Lines:      make([]invoice.Line, 0, len(m.Lines)),
	}
	for _, l := range m.Lines {
		t, err := invoice.ParseLineType(l.Type)
		if err != nil {
			return nil, err
		}
		inv.Lines = append(inv.Lines, invoice.Line{
			ID:           l.ID,
			Type:         t,
			Designation:  l.Designation,
			Quantity:     valueobject.NewQuantity(l.Quantity),
			ItemID:       l.ItemID,
			AdjustmentID: l.AdjustmentID,
		})
	}
	return inv, nil
}

// FromDomain populates the persistence model from a domain Invoice
func (m *InvoiceModel) FromDomain(inv *invoice.Invoice) {
	m.BaseModel = baseModelFromDomain(inv.BaseEntity)
	m.SaleID = inv.SaleID
	m.Number = inv.Number
	m.IsCredit = inv.Credit
	m.Lines = make([]InvoiceLineModel, len(inv.Lines))
	for i, l := range inv.Lines {
		m.Lines[i] = InvoiceLineModel{
			ID:           l.ID,
			InvoiceID:    inv.ID,
			Position:     i,
			Type:         l.Type.String(),
			Designation:  l.Designation,
			Quantity:     l.Quantity.Decimal(),
			ItemID:       l.ItemID,
			AdjustmentID: l.AdjustmentID,
		}
	}
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice
func InvoiceModelFromDomain(inv *invoice.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// ShipmentModel is the persistence model for a shipment or return
type ShipmentModel struct {
	BaseModel
	SaleID                uuid.UUID           `gorm:"type:uuid;not null;index"`
	Number                string              `gorm:"type:varchar(50);not null;uniqueIndex"`
	IsReturn              bool                `gorm:"not null;default:false"`
	State                 string              `gorm:"type:varchar(20);not null;index"`
	Date                  time.Time           `gorm:"not null"`
	EstimatedShippingDate *time.Time
	Items                 []ShipmentItemModel `gorm:"foreignKey:ShipmentID;references:ID"`
}

// TableName returns the table name for GORM
func (ShipmentModel) TableName() string {
	return "shipments"
}

// ShipmentItemModel is the persistence model for a shipment line
type ShipmentItemModel struct {
	ID         uuid.UUID       `gorm:"type:uuid;primary_key"`
	ShipmentID uuid.UUID       `gorm:"type:uuid;not null;index"`
	SaleItemID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Position   int             `gorm:"not null"`
	Quantity   decimal.Decimal `gorm:"type:decimal(18,5);not null"`
}

// TableName returns the table name for GORM
func (ShipmentItemModel) TableName() string {
	return "shipment_items"
}

// ToDomain converts the persistence model to a domain Shipment. Items must be sorted by position.
func (m *ShipmentModel) ToDomain() (*shipment.Shipment, error) {
	state, err := shipment.ParseState(m.State)
	if err != nil {
		return nil, err
	}
	sh := &shipment.Shipment{
		BaseEntity:            m.BaseModel.ToDomain(),
		SaleID:                m.SaleID,
		Number:                m.Number,
		Return:                m.IsReturn,
		State:                 state,
		Date:                  m.Date,
		EstimatedShippingDate: m.EstimatedShippingDate,
		Items:                 make([]shipment.Item, 0, len(m.Items)),
	}
	for _, it := range m.Items {
		sh.Items = append(sh.Items, shipment.Item{
			ID:         it.ID,
			SaleItemID: it.SaleItemID,
			Quantity:   valueobject.NewQuantity(it.Quantity),
		})
	}
	return sh, nil
}

// FromDomain populates the persistence model from a domain Shipment
func (m *ShipmentModel) FromDomain(sh *shipment.Shipment) {
	m.BaseModel = baseModelFromDomain(sh.BaseEntity)
	m.SaleID = sh.SaleID
	m.Number = sh.Number
	m.IsReturn = sh.Return
	m.State = sh.State.String()
	m.Date = sh.Date
	m.EstimatedShippingDate = sh.EstimatedShippingDate
	m.Items = make([]ShipmentItemModel, len(sh.Items))
	for i, it := range sh.Items {
		m.Items[i] = ShipmentItemModel{
			ID:         it.ID,
			ShipmentID: sh.ID,
			SaleItemID: it.SaleItemID,
			Position:   i,
			Quantity:   it.Quantity.Decimal(),
		}
	}
}

// ShipmentModelFromDomain creates a new persistence model from a domain Shipment
func ShipmentModelFromDomain(sh *shipment.Shipment) *ShipmentModel {
	m := &ShipmentModel{}
	m.FromDomain(sh)
	return m
}
