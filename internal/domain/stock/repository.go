package stock

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for stock unit and assignment persistence
type Repository interface {
	// FindAssignmentsBySaleItem loads the assignments of a sale item ordered by id.
	// Each assignment unit is loaded with all of its assignments so that sibling bounds can be computed.
	FindAssignmentsBySaleItem(ctx context.Context, saleItemID uuid.UUID) ([]*Assignment, error)

	// FindUnitsByIDs loads units with their assignments and adjustments
	FindUnitsByIDs(ctx context.Context, ids []uuid.UUID) ([]*Unit, error)

	// SaveChanges flushes a change set: saves units and assignments, deletes removed assignments
	SaveChanges(ctx context.Context, changes *ChangeSet) error
}
