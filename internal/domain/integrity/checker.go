package integrity

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Column is a result column: a stable key and its display label
type Column struct {
	Key   string
	Label string
}

// Result is one offending row, keyed by column key
type Result struct {
	ID     uuid.UUID
	Values map[string]string
}

// Checker encapsulates one invariant.
// Check re-aggregates detail rows and collects mismatches, Build turns mismatches into
// actions, and Fix executes them and returns the ids of the changed stock units.
type Checker interface {
	Name() string
	Title() string
	Columns() []Column
	Labels() map[string]string
	Check(ctx context.Context) (bool, error)
	Build(ctx context.Context) error
	Fix(ctx context.Context) ([]uuid.UUID, error)
	Results() []Result
	Actions() []Action
}

type base struct {
	name     string
	title    string
	columns  []Column
	executor Executor
	results  []Result
	actions  []Action
}

// Name returns the checker name
func (b *base) Name() string {
	return b.name
}

// Title returns the checker title
func (b *base) Title() string {
	return b.title
}

// Columns returns the result columns in display order
func (b *base) Columns() []Column {
	return b.columns
}

// Labels returns the column key to label map
func (b *base) Labels() map[string]string {
	labels := make(map[string]string, len(b.columns))
	for _, c := range b.columns {
		labels[c.Key] = c.Label
	}
	return labels
}

// Results returns the rows collected by the last Check
func (b *base) Results() []Result {
	return b.results
}

// Actions returns the actions produced by the last Build
func (b *base) Actions() []Action {
	return b.actions
}

// Fix executes the built actions and returns the distinct ids of the affected units
func (b *base) Fix(ctx context.Context) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]struct{})
	var units []uuid.UUID
	for _, action := range b.actions {
		if err := b.executor.Execute(ctx, action); err != nil {
			return units, fmt.Errorf("%s: executing %s: %w", b.name, action, err)
		}
		if action.UnitID == uuid.Nil {
			continue
		}
		if _, ok := seen[action.UnitID]; !ok {
			seen[action.UnitID] = struct{}{}
			units = append(units, action.UnitID)
		}
	}
	b.actions = nil
	return units, nil
}

func (b *base) reset() {
	b.results = nil
	b.actions = nil
}

func (b *base) addResult(id uuid.UUID, values map[string]string) {
	b.results = append(b.results, Result{ID: id, Values: values})
}
