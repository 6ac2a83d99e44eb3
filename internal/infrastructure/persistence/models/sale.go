package models

import (
	"github.com/erp/fulfillment/internal/domain/sale"
	"github.com/erp/fulfillment/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleModel is the persistence model for the Sale aggregate root
type SaleModel struct {
	BaseModel
	Number   string `gorm:"type:varchar(50);not null;uniqueIndex"`
	Kind     string `gorm:"type:varchar(10);not null"`
	Sample   bool   `gorm:"not null;default:false"`
	Released bool   `gorm:"not null;default:false"`
	// Associations
	Items       []SaleItemModel       `gorm:"foreignKey:SaleID;references:ID"`
	Adjustments []SaleAdjustmentModel `gorm:"foreignKey:SaleID;references:ID"`
}

// TableName returns the table name for GORM
func (SaleModel) TableName() string {
	return "sales"
}

// SaleItemModel is the persistence model for a sale item.
// Position is the pre-order rank of the item in the sale tree, so parents load before children.
type SaleItemModel struct {
	ID              uuid.UUID       `gorm:"type:uuid;primary_key"`
	SaleID          uuid.UUID       `gorm:"type:uuid;not null;index"`
	ParentID        *uuid.UUID      `gorm:"type:uuid;index"`
	Position        int             `gorm:"not null"`
	Designation     string          `gorm:"type:varchar(255);not null"`
	Reference       string          `gorm:"type:varchar(100)"`
	Quantity        decimal.Decimal `gorm:"type:decimal(18,5);not null"`
	Compound        bool            `gorm:"not null;default:false"`
	PrivateChildren bool            `gorm:"not null;default:false"`
	ProductID       *uuid.UUID      `gorm:"type:uuid;index"`
}

// TableName returns the table name for GORM
func (SaleItemModel) TableName() string {
	return "sale_items"
}

// SaleAdjustmentModel is the persistence model for a sale or sale item adjustment
type SaleAdjustmentModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	SaleID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	ItemID      *uuid.UUID      `gorm:"type:uuid;index"`
	Designation string          `gorm:"type:varchar(255)"`
	Type        string          `gorm:"type:varchar(20);not null"`
	Mode        string          `gorm:"type:varchar(20);not null"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,5);not null;default:0"`
}

// TableName returns the table name for GORM
func (SaleAdjustmentModel) TableName() string {
	return "sale_adjustments"
}

// ProductModel is the persistence model for a stock-trackable sale subject
type ProductModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	Reference string    `gorm:"type:varchar(100);not null"`
	StockMode string    `gorm:"type:varchar(20);not null"`
	Compound  bool      `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Sale, rebuilding the item tree.
// Items must be sorted by position.
func (m *SaleModel) ToDomain() (*sale.Sale, error) {
	kind, err := sale.ParseKind(m.Kind)
	if err != nil {
		return nil, err
	}
	s := &sale.Sale{
		BaseEntity: m.BaseModel.ToDomain(),
		Number:     m.Number,
		Kind:       kind,
		Sample:     m.Sample,
		Released:   m.Released,
		Items:      sale.NewItemTree(),
	}

	itemAdjustments := make(map[uuid.UUID][]*sale.Adjustment)
	for i := range m.Adjustments {
		a, err := m.Adjustments[i].ToDomain()
		if err != nil {
			return nil, err
		}
		if a.ItemID == nil {
			s.Adjustments = append(s.Adjustments, a)
			continue
		}
		itemAdjustments[*a.ItemID] = append(itemAdjustments[*a.ItemID], a)
	}

	for i := range m.Items {
		item := m.Items[i].ToDomain()
		item.Adjustments = itemAdjustments[item.ID]
		parentID := uuid.Nil
		if m.Items[i].ParentID != nil {
			parentID = *m.Items[i].ParentID
		}
		if err := s.AddItem(parentID, item); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// FromDomain populates the persistence model from a domain Sale
func (m *SaleModel) FromDomain(s *sale.Sale) {
	m.BaseModel = baseModelFromDomain(s.BaseEntity)
	m.Number = s.Number
	m.Kind = s.Kind.String()
	m.Sample = s.Sample
	m.Released = s.Released
	m.Items = nil
	m.Adjustments = nil

	for _, a := range s.Adjustments {
		m.Adjustments = append(m.Adjustments, SaleAdjustmentModelFromDomain(s.ID, a))
	}
	position := 0
	s.Items.Walk(func(item *sale.Item, _ int) bool {
		im := SaleItemModel{
			ID:              item.ID,
			SaleID:          s.ID,
			Position:        position,
			Designation:     item.Designation,
			Reference:       item.Reference,
			Quantity:        item.Quantity.Decimal(),
			Compound:        item.Compound,
			PrivateChildren: item.PrivateChildren,
			ProductID:       item.ProductID,
		}
		if parent, ok := s.Items.Parent(item.ID); ok {
			parentID := parent.ID
			im.ParentID = &parentID
		}
		m.Items = append(m.Items, im)
		for _, a := range item.Adjustments {
			m.Adjustments = append(m.Adjustments, SaleAdjustmentModelFromDomain(s.ID, a))
		}
		position++
		return true
	})
}

// SaleModelFromDomain creates a new persistence model from a domain Sale
func SaleModelFromDomain(s *sale.Sale) *SaleModel {
	m := &SaleModel{}
	m.FromDomain(s)
	return m
}

// ToDomain converts the persistence model to a domain Item, detached from any tree
func (m *SaleItemModel) ToDomain() *sale.Item {
	return &sale.Item{
		ID:              m.ID,
		Designation:     m.Designation,
		Reference:       m.Reference,
		Quantity:        valueobject.NewQuantity(m.Quantity),
		Compound:        m.Compound,
		PrivateChildren: m.PrivateChildren,
		ProductID:       m.ProductID,
	}
}

// ToDomain converts the persistence model to a domain Adjustment
func (m *SaleAdjustmentModel) ToDomain() (*sale.Adjustment, error) {
	t, err := sale.ParseAdjustmentType(m.Type)
	if err != nil {
		return nil, err
	}
	mode, err := sale.ParseAdjustmentMode(m.Mode)
	if err != nil {
		return nil, err
	}
	return &sale.Adjustment{
		ID:          m.ID,
		Designation: m.Designation,
		Type:        t,
		Mode:        mode,
		Amount:      m.Amount,
		ItemID:      m.ItemID,
	}, nil
}

// SaleAdjustmentModelFromDomain creates a new persistence model from a domain Adjustment
func SaleAdjustmentModelFromDomain(saleID uuid.UUID, a *sale.Adjustment) SaleAdjustmentModel {
	return SaleAdjustmentModel{
		ID:          a.ID,
		SaleID:      saleID,
		ItemID:      a.ItemID,
		Designation: a.Designation,
		Type:        string(a.Type),
		Mode:        string(a.Mode),
		Amount:      a.Amount,
	}
}

// ToDomain converts the persistence model to a domain Product
func (m *ProductModel) ToDomain() (*sale.Product, error) {
	mode, err := sale.ParseStockMode(m.StockMode)
	if err != nil {
		return nil, err
	}
	return &sale.Product{
		ID:        m.ID,
		Reference: m.Reference,
		StockMode: mode,
		Compound:  m.Compound,
	}, nil
}

// ProductModelFromDomain creates a new persistence model from a domain Product
func ProductModelFromDomain(p *sale.Product) *ProductModel {
	return &ProductModel{
		ID:        p.ID,
		Reference: p.Reference,
		StockMode: string(p.StockMode),
		Compound:  p.Compound,
	}
}
