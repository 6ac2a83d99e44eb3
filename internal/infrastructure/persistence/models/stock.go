package models

import (
	"time"

	"github.com/erp/fulfillment/internal/domain/shared/valueobject"
	"github.com/erp/fulfillment/internal/domain/stock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockUnitModel is the persistence model for the stock Unit aggregate
type StockUnitModel struct {
	BaseModel
	ProductID              uuid.UUID       `gorm:"type:uuid;not null;index"`
	OrderedQuantity        decimal.Decimal `gorm:"type:decimal(18,5);not null;default:0"`
	ReceivedQuantity       decimal.Decimal `gorm:"type:decimal(18,5);not null;default:0"`
	AdjustedQuantity       decimal.Decimal `gorm:"type:decimal(18,5);not null;default:0"`
	SoldQuantity           decimal.Decimal `gorm:"type:decimal(18,5);not null;default:0"`
	ShippedQuantity        decimal.Decimal `gorm:"type:decimal(18,5);not null;default:0"`
	Supplied               bool            `gorm:"not null;default:false"`
	EstimatedDateOfArrival *time.Time
	// Associations
	Assignments []StockAssignmentModel `gorm:"foreignKey:StockUnitID;references:ID"`
	Adjustments []StockAdjustmentModel `gorm:"foreignKey:StockUnitID;references:ID"`
}

// TableName returns the table name for GORM
func (StockUnitModel) TableName() string {
	return "stock_units"
}

// StockAssignmentModel is the persistence model for a stock Assignment
type StockAssignmentModel struct {
	ID              uuid.UUID       `gorm:"type:uuid;primary_key"`
	SaleItemID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	StockUnitID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	SoldQuantity    decimal.Decimal `gorm:"type:decimal(18,5);not null;default:0"`
	ShippedQuantity decimal.Decimal `gorm:"type:decimal(18,5);not null;default:0"`
}

// TableName returns the table name for GORM
func (StockAssignmentModel) TableName() string {
	return "stock_assignments"
}

// StockAdjustmentModel is the persistence model for a stock unit Adjustment
type StockAdjustmentModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	StockUnitID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Reason      string          `gorm:"type:varchar(20);not null"`
	Quantity    decimal.Decimal `gorm:"type:decimal(18,5);not null"`
	Note        string          `gorm:"type:varchar(500)"`
	CreatedAt   time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (StockAdjustmentModel) TableName() string {
	return "stock_adjustments"
}

// ToDomain converts the persistence model to a domain Unit with its assignments attached
func (m *StockUnitModel) ToDomain() (*stock.Unit, error) {
	u := &stock.Unit{
		BaseEntity:             m.BaseModel.ToDomain(),
		ProductID:              m.ProductID,
		OrderedQuantity:        valueobject.NewQuantity(m.OrderedQuantity),
		ReceivedQuantity:       valueobject.NewQuantity(m.ReceivedQuantity),
		AdjustedQuantity:       valueobject.NewQuantity(m.AdjustedQuantity),
		SoldQuantity:           valueobject.NewQuantity(m.SoldQuantity),
		ShippedQuantity:        valueobject.NewQuantity(m.ShippedQuantity),
		Supplied:               m.Supplied,
		EstimatedDateOfArrival: m.EstimatedDateOfArrival,
	}
	for i := range m.Assignments {
		u.AddAssignment(m.Assignments[i].ToDomain())
	}
	for i := range m.Adjustments {
		a, err := m.Adjustments[i].ToDomain()
		if err != nil {
			return nil, err
		}
		u.Adjustments = append(u.Adjustments, a)
	}
	return u, nil
}

// FromDomain populates the persistence model from a domain Unit, without its associations
func (m *StockUnitModel) FromDomain(u *stock.Unit) {
	m.BaseModel = baseModelFromDomain(u.BaseEntity)
	m.ProductID = u.ProductID
	m.OrderedQuantity = u.OrderedQuantity.Decimal()
	m.ReceivedQuantity = u.ReceivedQuantity.Decimal()
	m.AdjustedQuantity = u.AdjustedQuantity.Decimal()
	m.SoldQuantity = u.SoldQuantity.Decimal()
	m.ShippedQuantity = u.ShippedQuantity.Decimal()
	m.Supplied = u.Supplied
	m.EstimatedDateOfArrival = u.EstimatedDateOfArrival
}

// StockUnitModelFromDomain creates a new persistence model from a domain Unit
func StockUnitModelFromDomain(u *stock.Unit) *StockUnitModel {
	m := &StockUnitModel{}
	m.FromDomain(u)
	return m
}

// ToDomain converts the persistence model to a detached domain Assignment
func (m *StockAssignmentModel) ToDomain() *stock.Assignment {
	return &stock.Assignment{
		ID:              m.ID,
		SaleItemID:      m.SaleItemID,
		SoldQuantity:    valueobject.NewQuantity(m.SoldQuantity),
		ShippedQuantity: valueobject.NewQuantity(m.ShippedQuantity),
	}
}

// StockAssignmentModelFromDomain creates a new persistence model from a domain Assignment.
// The assignment must be attached to its unit.
func StockAssignmentModelFromDomain(a *stock.Assignment) *StockAssignmentModel {
	m := &StockAssignmentModel{
		ID:              a.ID,
		SaleItemID:      a.SaleItemID,
		SoldQuantity:    a.SoldQuantity.Decimal(),
		ShippedQuantity: a.ShippedQuantity.Decimal(),
	}
	if a.Unit != nil {
		m.StockUnitID = a.Unit.ID
	}
	return m
}

// ToDomain converts the persistence model to a domain Adjustment
func (m *StockAdjustmentModel) ToDomain() (*stock.Adjustment, error) {
	reason, err := stock.ParseAdjustmentReason(m.Reason)
	if err != nil {
		return nil, err
	}
	return &stock.Adjustment{
		ID:        m.ID,
		UnitID:    m.StockUnitID,
		Reason:    reason,
		Quantity:  valueobject.NewQuantity(m.Quantity),
		Note:      m.Note,
		CreatedAt: m.CreatedAt,
	}, nil
}

// StockAdjustmentModelFromDomain creates a new persistence model from a domain Adjustment
func StockAdjustmentModelFromDomain(a *stock.Adjustment) *StockAdjustmentModel {
	return &StockAdjustmentModel{
		ID:          a.ID,
		StockUnitID: a.UnitID,
		Reason:      a.Reason.String(),
		Quantity:    a.Quantity.Decimal(),
		Note:        a.Note,
		CreatedAt:   a.CreatedAt,
	}
}
