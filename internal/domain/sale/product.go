package sale

import (
	"fmt"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/google/uuid"
)

// StockMode tells how stock is managed for a product
type StockMode string

const (
	StockModeDisabled   StockMode = "DISABLED"
	StockModeManual     StockMode = "MANUAL"
	StockModeAuto       StockMode = "AUTO"
	StockModeJustInTime StockMode = "JUST_IN_TIME"
)

// ParseStockMode validates and returns a StockMode
func ParseStockMode(value string) (StockMode, error) {
	m := StockMode(value)
	switch m {
	case StockModeDisabled, StockModeManual, StockModeAuto, StockModeJustInTime:
		return m, nil
	}
	return "", shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("Unknown stock mode %q", value))
}

// Product is the stock subject a sale item may be linked to
type Product struct {
	ID        uuid.UUID
	Reference string
	StockMode StockMode
	Compound  bool // Compound products are tracked through their components
}

// IsStockTracked returns true if stock units and assignments exist for this product
func (p *Product) IsStockTracked() bool {
	return p.StockMode != StockModeDisabled && !p.Compound
}

// SubjectResolver maps a sale item to its stock subject
type SubjectResolver interface {
	// Resolve returns the product linked to the item, or false when the item has none
	Resolve(item *Item) (*Product, bool)
}

// ProductCatalog is an in-memory SubjectResolver keyed by product id
type ProductCatalog map[uuid.UUID]*Product

// Resolve implements SubjectResolver
func (c ProductCatalog) Resolve(item *Item) (*Product, bool) {
	if item == nil || !item.HasProduct() {
		return nil, false
	}
	p, ok := c[*item.ProductID]
	return p, ok
}

// Add registers products in the catalog
func (c ProductCatalog) Add(products ...*Product) {
	for _, p := range products {
		c[p.ID] = p
	}
}

var _ SubjectResolver = ProductCatalog(nil)
