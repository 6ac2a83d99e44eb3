package valueobject

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// QuantityPrecision is the number of decimal places used when comparing quantities.
// Stored quantities accumulate through repeated additions, so equality is only
// meaningful at this precision.
const QuantityPrecision int32 = 5

// Quantity is an immutable ledger quantity backed by a decimal.
// Negative values are allowed so that deltas can be expressed with the same type.
// A Quantity may also be unlimited (+infinity), used for items without stock tracking.
type Quantity struct {
	value     decimal.Decimal
	unlimited bool
}

// NewQuantity creates a Quantity from a decimal value
func NewQuantity(value decimal.Decimal) Quantity {
	return Quantity{value: value}
}

// QuantityFromInt creates a Quantity from an int64 value
func QuantityFromInt(value int64) Quantity {
	return Quantity{value: decimal.NewFromInt(value)}
}

// QuantityFromFloat creates a Quantity from a float64 value
func QuantityFromFloat(value float64) Quantity {
	return Quantity{value: decimal.NewFromFloat(value)}
}

// QuantityFromString parses a Quantity from its decimal string representation
func QuantityFromString(value string) (Quantity, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Quantity{}, fmt.Errorf("invalid quantity string: %w", err)
	}
	return Quantity{value: d}, nil
}

// MustQuantityFromString parses a Quantity and panics on error
func MustQuantityFromString(value string) Quantity {
	q, err := QuantityFromString(value)
	if err != nil {
		panic(err)
	}
	return q
}

// ZeroQuantity returns a zero quantity
func ZeroQuantity() Quantity {
	return Quantity{value: decimal.Zero}
}

// OneQuantity returns a quantity of one
func OneQuantity() Quantity {
	return Quantity{value: decimal.NewFromInt(1)}
}

// UnlimitedQuantity returns the +infinity quantity
func UnlimitedQuantity() Quantity {
	return Quantity{unlimited: true}
}

// Decimal returns the decimal value. Unlimited quantities have no decimal value and return zero.
func (q Quantity) Decimal() decimal.Decimal {
	if q.unlimited {
		return decimal.Zero
	}
	return q.value
}

// IsUnlimited returns true for the +infinity quantity
func (q Quantity) IsUnlimited() bool {
	return q.unlimited
}

// Float64 returns the quantity as a float64 (may lose precision)
func (q Quantity) Float64() float64 {
	f, _ := q.value.Float64()
	return f
}

// Add returns q + other. Anything added to an unlimited quantity stays unlimited.
func (q Quantity) Add(other Quantity) Quantity {
	if q.unlimited || other.unlimited {
		return UnlimitedQuantity()
	}
	return Quantity{value: q.value.Add(other.value)}
}

// Sub returns q - other. Subtracting from an unlimited quantity leaves it unlimited.
// Subtracting an unlimited quantity from a finite one is a programming error.
func (q Quantity) Sub(other Quantity) Quantity {
	if q.unlimited {
		return q
	}
	if other.unlimited {
		panic("valueobject: cannot subtract an unlimited quantity")
	}
	return Quantity{value: q.value.Sub(other.value)}
}

// Mul returns q * other
func (q Quantity) Mul(other Quantity) Quantity {
	if q.unlimited || other.unlimited {
		return UnlimitedQuantity()
	}
	return Quantity{value: q.value.Mul(other.value)}
}

// Div returns q / divisor
func (q Quantity) Div(divisor Quantity) (Quantity, error) {
	if divisor.unlimited {
		return ZeroQuantity(), nil
	}
	if divisor.IsZero() {
		return Quantity{}, errors.New("cannot divide quantity by zero")
	}
	if q.unlimited {
		return q, nil
	}
	return Quantity{value: q.value.Div(divisor.value)}, nil
}

// Neg returns -q
func (q Quantity) Neg() Quantity {
	if q.unlimited {
		panic("valueobject: cannot negate an unlimited quantity")
	}
	return Quantity{value: q.value.Neg()}
}

// Abs returns |q|
func (q Quantity) Abs() Quantity {
	if q.unlimited {
		return q
	}
	return Quantity{value: q.value.Abs()}
}

// Round returns q rounded to QuantityPrecision places
func (q Quantity) Round() Quantity {
	if q.unlimited {
		return q
	}
	return Quantity{value: q.value.Round(QuantityPrecision)}
}

// Positive returns max(0, q)
func (q Quantity) Positive() Quantity {
	if q.IsNegative() {
		return ZeroQuantity()
	}
	return q
}

// Cmp compares q and other at QuantityPrecision.
// Returns -1 if q < other, 0 if equal, +1 if q > other.
func (q Quantity) Cmp(other Quantity) int {
	switch {
	case q.unlimited && other.unlimited:
		return 0
	case q.unlimited:
		return 1
	case other.unlimited:
		return -1
	}
	return q.value.Round(QuantityPrecision).Cmp(other.value.Round(QuantityPrecision))
}

// Equal returns true if both quantities are equal at QuantityPrecision
func (q Quantity) Equal(other Quantity) bool {
	return q.Cmp(other) == 0
}

// LessThan returns true if q < other
func (q Quantity) LessThan(other Quantity) bool {
	return q.Cmp(other) < 0
}

// LessThanOrEqual returns true if q <= other
func (q Quantity) LessThanOrEqual(other Quantity) bool {
	return q.Cmp(other) <= 0
}

// GreaterThan returns true if q > other
func (q Quantity) GreaterThan(other Quantity) bool {
	return q.Cmp(other) > 0
}

// GreaterThanOrEqual returns true if q >= other
func (q Quantity) GreaterThanOrEqual(other Quantity) bool {
	return q.Cmp(other) >= 0
}

// IsZero returns true if q rounds to zero
func (q Quantity) IsZero() bool {
	return q.Cmp(ZeroQuantity()) == 0
}

// IsPositive returns true if q > 0
func (q Quantity) IsPositive() bool {
	return q.Cmp(ZeroQuantity()) > 0
}

// IsNegative returns true if q < 0
func (q Quantity) IsNegative() bool {
	return q.Cmp(ZeroQuantity()) < 0
}

// MinQuantity returns the smallest of the given quantities.
// It returns UnlimitedQuantity when called without arguments.
func MinQuantity(quantities ...Quantity) Quantity {
	result := UnlimitedQuantity()
	for _, q := range quantities {
		if q.LessThan(result) {
			result = q
		}
	}
	return result
}

// MaxQuantity returns the largest of the given quantities, or zero without arguments
func MaxQuantity(quantities ...Quantity) Quantity {
	if len(quantities) == 0 {
		return ZeroQuantity()
	}
	result := quantities[0]
	for _, q := range quantities[1:] {
		if q.GreaterThan(result) {
			result = q
		}
	}
	return result
}

// Clamp returns q bounded to [lower, upper]. The lower bound wins when the bounds cross.
func (q Quantity) Clamp(lower, upper Quantity) Quantity {
	result := q
	if result.GreaterThan(upper) {
		result = upper
	}
	if result.LessThan(lower) {
		result = lower
	}
	return result
}

// String returns a string representation of the Quantity
func (q Quantity) String() string {
	if q.unlimited {
		return "INF"
	}
	return q.value.String()
}

// StringFixed returns the value with QuantityPrecision decimal places
func (q Quantity) StringFixed() string {
	if q.unlimited {
		return "INF"
	}
	return q.value.StringFixed(QuantityPrecision)
}

// MarshalJSON encodes the quantity as a decimal string, or null when unlimited
func (q Quantity) MarshalJSON() ([]byte, error) {
	if q.unlimited {
		return []byte("null"), nil
	}
	return json.Marshal(q.value.String())
}

// UnmarshalJSON decodes a decimal string; null decodes to the unlimited quantity
func (q *Quantity) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*q = UnlimitedQuantity()
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid quantity JSON: %w", err)
	}
	parsed, err := QuantityFromString(s)
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}

// Value implements driver.Valuer for database storage
func (q Quantity) Value() (driver.Value, error) {
	if q.unlimited {
		return nil, errors.New("cannot store an unlimited quantity")
	}
	return q.value.String(), nil
}

// Scan implements sql.Scanner for database retrieval
func (q *Quantity) Scan(value any) error {
	var d decimal.Decimal
	if value == nil {
		*q = ZeroQuantity()
		return nil
	}
	if err := d.Scan(value); err != nil {
		return fmt.Errorf("cannot scan %T into Quantity: %w", value, err)
	}
	*q = Quantity{value: d}
	return nil
}
