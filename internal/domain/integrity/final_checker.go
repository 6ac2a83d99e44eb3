package integrity

import (
	"context"
	"fmt"
	"strings"

	"github.com/erp/fulfillment/internal/domain/shared"
)

// Assertion is a bound invariant expressed as a SQL condition matching offending rows
type Assertion struct {
	Name      string
	Label     string
	Table     string
	Condition string
}

// SQL renders the query selecting the ids of the offending rows
func (a Assertion) SQL() string {
	return fmt.Sprintf("SELECT id FROM %s WHERE %s ORDER BY id", a.Table, a.Condition)
}

// FinalAssertions is the battery run by the FinalChecker.
// Differences are rounded to the quantity precision before being compared to zero.
var FinalAssertions = []Assertion{
	{
		Name:      "unit_negative",
		Label:     "Stock unit has a negative quantity",
		Table:     TableStockUnits,
		Condition: "ROUND(ordered_quantity, 5) < 0 OR ROUND(received_quantity, 5) < 0 OR ROUND(sold_quantity, 5) < 0 OR ROUND(shipped_quantity, 5) < 0",
	},
	{
		Name:      "unit_shipped_sold",
		Label:     "Stock unit shipped exceeds sold",
		Table:     TableStockUnits,
		Condition: "ROUND(shipped_quantity - sold_quantity, 5) > 0",
	},
	{
		Name:      "unit_shipped_physical",
		Label:     "Stock unit shipped exceeds received + adjusted",
		Table:     TableStockUnits,
		Condition: "ROUND(shipped_quantity - received_quantity - adjusted_quantity, 5) > 0",
	},
	{
		Name:      "unit_received_ordered",
		Label:     "Supplied stock unit received exceeds ordered + adjusted",
		Table:     TableStockUnits,
		Condition: "supplied = TRUE AND ROUND(received_quantity - ordered_quantity - adjusted_quantity, 5) > 0",
	},
	{
		Name:      "unit_sold_ordered",
		Label:     "Supplied stock unit sold exceeds ordered + adjusted",
		Table:     TableStockUnits,
		Condition: "supplied = TRUE AND ROUND(sold_quantity - ordered_quantity - adjusted_quantity, 5) > 0",
	},
	{
		Name:      "assignment_negative",
		Label:     "Stock assignment has a negative quantity",
		Table:     TableStockAssignments,
		Condition: "ROUND(sold_quantity, 5) < 0 OR ROUND(shipped_quantity, 5) < 0",
	},
	{
		Name:      "assignment_shipped_sold",
		Label:     "Stock assignment shipped exceeds sold",
		Table:     TableStockAssignments,
		Condition: "ROUND(shipped_quantity - sold_quantity, 5) > 0",
	},
}

// FinalChecker is the closing gate of an integrity batch. Any violated assertion is fatal.
type FinalChecker struct {
	base
	source     Source
	assertions []Assertion
}

// NewFinalChecker creates a final checker running FinalAssertions
func NewFinalChecker(source Source, executor Executor) *FinalChecker {
	return &FinalChecker{
		base: base{
			name:  NameFinal,
			title: "Stock bounds",
			columns: []Column{
				{Key: "assertion", Label: "Assertion"},
				{Key: "table", Label: "Table"},
				{Key: "id", Label: "ID"},
			},
			executor: executor,
		},
		source:     source,
		assertions: FinalAssertions,
	}
}

// Check implements Checker. It returns ErrBoundViolation when any assertion fails.
func (c *FinalChecker) Check(ctx context.Context) (bool, error) {
	c.reset()

	var failed []string
	for _, assertion := range c.assertions {
		ids, err := c.source.Violations(ctx, assertion)
		if err != nil {
			return false, fmt.Errorf("%s: %s: %w", c.name, assertion.Name, err)
		}
		if len(ids) == 0 {
			continue
		}
		failed = append(failed, fmt.Sprintf("%s (%d)", assertion.Name, len(ids)))
		for _, id := range ids {
			c.addResult(id, map[string]string{
				"assertion": assertion.Label,
				"table":     assertion.Table,
				"id":        id.String(),
			})
		}
	}
	if len(failed) > 0 {
		return false, shared.NewBoundViolation("%s: %s", c.name, strings.Join(failed, ", "))
	}
	return true, nil
}

// Build implements Checker. Bound violations are never fixed automatically.
func (c *FinalChecker) Build(_ context.Context) error {
	c.actions = nil
	return nil
}
