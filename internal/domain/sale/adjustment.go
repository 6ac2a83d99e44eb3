package sale

import (
	"fmt"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AdjustmentType is the type of a sale or item adjustment
type AdjustmentType string

const (
	AdjustmentTypeDiscount AdjustmentType = "DISCOUNT"
	AdjustmentTypeTaxation AdjustmentType = "TAXATION"
)

// AdjustmentMode tells how the adjustment amount applies
type AdjustmentMode string

const (
	AdjustmentModePercent AdjustmentMode = "PERCENT"
	AdjustmentModeFlat    AdjustmentMode = "FLAT"
)

// ParseAdjustmentType validates and returns an AdjustmentType
func ParseAdjustmentType(value string) (AdjustmentType, error) {
	t := AdjustmentType(value)
	switch t {
	case AdjustmentTypeDiscount, AdjustmentTypeTaxation:
		return t, nil
	}
	return "", shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("Unknown adjustment type %q", value))
}

// ParseAdjustmentMode validates and returns an AdjustmentMode
func ParseAdjustmentMode(value string) (AdjustmentMode, error) {
	m := AdjustmentMode(value)
	switch m {
	case AdjustmentModePercent, AdjustmentModeFlat:
		return m, nil
	}
	return "", shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("Unknown adjustment mode %q", value))
}

// Adjustment is attached to a sale or to a sale item.
// Discounts take part in the ledgers as pseudo lines with a fixed quantity of 1.
type Adjustment struct {
	ID          uuid.UUID
	Designation string
	Type        AdjustmentType
	Mode        AdjustmentMode
	Amount      decimal.Decimal
	ItemID      *uuid.UUID // nil for sale level adjustments
}

// NewDiscount creates a discount adjustment
func NewDiscount(designation string, mode AdjustmentMode, amount decimal.Decimal) *Adjustment {
	return &Adjustment{
		ID:          uuid.New(),
		Designation: designation,
		Type:        AdjustmentTypeDiscount,
		Mode:        mode,
		Amount:      amount,
	}
}

// IsDiscount returns true for discount adjustments
func (a *Adjustment) IsDiscount() bool {
	return a.Type == AdjustmentTypeDiscount
}
