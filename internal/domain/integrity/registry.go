package integrity

import (
	"fmt"

	"github.com/erp/fulfillment/internal/domain/shared"
)

// DefaultCheckers returns every checker in run order: assignment level fixes first,
// then unit aggregates, then the final bound assertions.
func DefaultCheckers(source Source, executor Executor) []Checker {
	return []Checker{
		NewAssignmentSoldChecker(source, executor),
		NewAssignmentShippedChecker(source, executor),
		NewUnitSoldChecker(source, executor),
		NewUnitShippedChecker(source, executor),
		NewUnitAdjustedChecker(source, executor),
		NewFinalChecker(source, executor),
	}
}

// Select keeps the named checkers, preserving run order. No names keeps them all.
func Select(checkers []Checker, names []string) ([]Checker, error) {
	if len(names) == 0 {
		return checkers, nil
	}
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}
	var selected []Checker
	for _, c := range checkers {
		if wanted[c.Name()] {
			selected = append(selected, c)
			delete(wanted, c.Name())
		}
	}
	for name := range wanted {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("Unknown integrity checker %q", name))
	}
	return selected, nil
}
