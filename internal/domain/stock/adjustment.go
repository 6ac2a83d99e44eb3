package stock

import (
	"fmt"
	"time"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// AdjustmentReason explains a stock unit quantity correction
type AdjustmentReason string

const (
	AdjustmentReasonFaulty   AdjustmentReason = "FAULTY"   // damaged goods
	AdjustmentReasonImproper AdjustmentReason = "IMPROPER" // goods not matching the order
	AdjustmentReasonDebit    AdjustmentReason = "DEBIT"
	AdjustmentReasonFound    AdjustmentReason = "FOUND"
	AdjustmentReasonCredit   AdjustmentReason = "CREDIT"
)

// ParseAdjustmentReason validates and returns an AdjustmentReason
func ParseAdjustmentReason(value string) (AdjustmentReason, error) {
	r := AdjustmentReason(value)
	switch r {
	case AdjustmentReasonFaulty, AdjustmentReasonImproper, AdjustmentReasonDebit,
		AdjustmentReasonFound, AdjustmentReasonCredit:
		return r, nil
	}
	return "", shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("Unknown stock adjustment reason %q", value))
}

// IsDecrease returns true if the reason removes quantity from the unit
func (r AdjustmentReason) IsDecrease() bool {
	switch r {
	case AdjustmentReasonFaulty, AdjustmentReasonImproper, AdjustmentReasonDebit:
		return true
	}
	return false
}

// String returns the string representation of AdjustmentReason
func (r AdjustmentReason) String() string {
	return string(r)
}

// Adjustment is a quantity correction on a stock unit.
// Quantity is always positive; the reason carries the sign.
type Adjustment struct {
	ID        uuid.UUID
	UnitID    uuid.UUID
	Reason    AdjustmentReason
	Quantity  valueobject.Quantity
	Note      string
	CreatedAt time.Time
}

// NewAdjustment creates a stock unit adjustment
func NewAdjustment(unitID uuid.UUID, reason AdjustmentReason, quantity valueobject.Quantity, note string) (*Adjustment, error) {
	if _, err := ParseAdjustmentReason(string(reason)); err != nil {
		return nil, err
	}
	if !quantity.IsPositive() || quantity.IsUnlimited() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Adjustment quantity must be positive")
	}
	return &Adjustment{
		ID:        uuid.New(),
		UnitID:    unitID,
		Reason:    reason,
		Quantity:  quantity,
		Note:      note,
		CreatedAt: time.Now(),
	}, nil
}

// SignedQuantity returns the adjustment effect on the unit adjusted quantity
func (a *Adjustment) SignedQuantity() valueobject.Quantity {
	if a.Reason.IsDecrease() {
		return a.Quantity.Neg()
	}
	return a.Quantity
}
