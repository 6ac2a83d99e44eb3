package integrity

import (
	"time"

	"github.com/erp/fulfillment/internal/domain/integrity"
	"github.com/google/uuid"
)

// CheckerReport is the outcome of one checker in a batch
type CheckerReport struct {
	Name    string
	Title   string
	Columns []integrity.Column
	Results []integrity.Result
	Actions []integrity.Action
	Fixed   int
	Err     error
}

// OK reports whether the checker found nothing and did not fail
func (c CheckerReport) OK() bool {
	return c.Err == nil && len(c.Results) == 0
}

// Report is the outcome of a batch
type Report struct {
	BatchID    uuid.UUID
	Fix        bool
	StartedAt  time.Time
	FinishedAt time.Time
	Checkers   []CheckerReport
	UnitIDs    []uuid.UUID // units changed by fixes, in first-seen order
	Fixes      int         // executed actions
}

// Mismatches returns the number of offending rows over all checkers
func (r *Report) Mismatches() int {
	n := 0
	for _, c := range r.Checkers {
		n += len(c.Results)
	}
	return n
}

// OK reports whether every checker passed
func (r *Report) OK() bool {
	for _, c := range r.Checkers {
		if !c.OK() {
			return false
		}
	}
	return true
}
