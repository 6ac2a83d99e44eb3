package stock

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/domain/shared/valueobject"
	"github.com/erp/fulfillment/internal/domain/stock"
	"github.com/erp/fulfillment/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxLockAttempts = 3

// errUnitsChanged reports assignments moved to a unit that was not locked
var errUnitsChanged = errors.New("stock units of the sale item changed while locking")

// Assignment fields accepted by UpdateAssignmentsRequest
const (
	FieldSold    = "sold"
	FieldShipped = "shipped"
)

// UpdateAssignmentsRequest moves the sold or shipped quantity of a sale item across its
// stock assignments by Quantity (a signed decimal delta).
type UpdateAssignmentsRequest struct {
	SaleItemID uuid.UUID `json:"sale_item_id" validate:"required"`
	Field      string    `json:"field" validate:"required,oneof=sold shipped"`
	Quantity   string    `json:"quantity" validate:"required,numeric"`
}

// UpdateAssignmentsResult reports what was applied and what no assignment could take
type UpdateAssignmentsResult struct {
	SaleItemID uuid.UUID            `json:"sale_item_id"`
	Field      string               `json:"field"`
	Requested  valueobject.Quantity `json:"requested"`
	Applied    valueobject.Quantity `json:"applied"`
	Remaining  valueobject.Quantity `json:"remaining"`
	UnitIDs    []uuid.UUID          `json:"unit_ids"`
	Removed    int                  `json:"removed"`
}

// AssignmentService applies sold/shipped deltas to the stock assignments of a sale item
type AssignmentService struct {
	repo           stock.Repository
	scope          TransactionScope
	locker         UnitLocker
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewAssignmentService creates a new AssignmentService
func NewAssignmentService(
	repo stock.Repository,
	scope TransactionScope,
	locker UnitLocker,
	logger *zap.Logger,
) *AssignmentService {
	return &AssignmentService{
		repo:   repo,
		scope:  scope,
		locker: locker,
		logger: logger,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *AssignmentService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// Update applies the requested delta. Increases fill assignments in id order, decreases
// empty them in reverse order. Each assignment takes what its bounds allow and passes
// the remainder to the next one. All touched units are locked for the whole update.
func (s *AssignmentService) Update(ctx context.Context, req UpdateAssignmentsRequest) (*UpdateAssignmentsResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	delta, err := valueobject.QuantityFromString(req.Quantity)
	if err != nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("Invalid quantity %q", req.Quantity))
	}

	result := &UpdateAssignmentsResult{
		SaleItemID: req.SaleItemID,
		Field:      req.Field,
		Requested:  delta,
		Applied:    valueobject.ZeroQuantity(),
		Remaining:  delta,
	}
	if delta.IsZero() {
		return result, nil
	}
	ctx, log := logger.WithSaleItemID(ctx, s.logger.With(zap.String("field", req.Field)), req.SaleItemID.String())

	var changes *stock.ChangeSet
	for attempt := 1; ; attempt++ {
		assignments, err := s.repo.FindAssignmentsBySaleItem(ctx, req.SaleItemID)
		if err != nil {
			return nil, fmt.Errorf("failed to load stock assignments: %w", err)
		}
		if len(assignments) == 0 {
			log.Warn("sale item has no stock assignment", zap.String("quantity", delta.String()))
			return result, nil
		}

		changes, err = s.updateLocked(ctx, req, delta, stock.UnitIDs(assignments), result)
		if errors.Is(err, errUnitsChanged) {
			if attempt < maxLockAttempts {
				log.Debug("stock units changed before locking, retrying", zap.Int("attempt", attempt))
				continue
			}
			err = fmt.Errorf("%w: %w", errUnitsChanged, shared.ErrLockNotObtained)
		}
		if err != nil {
			log.Error("failed to update stock assignments", zap.Error(err))
			return nil, err
		}
		break
	}

	result.UnitIDs = changes.UnitIDs()
	result.Removed = len(changes.Removed())

	log.Info("stock assignments updated",
		zap.String("requested", delta.String()),
		zap.String("applied", result.Applied.String()),
		zap.String("remaining", result.Remaining.String()),
		zap.Int("removed", result.Removed),
	)

	if s.eventPublisher != nil && !changes.IsEmpty() {
		event := stock.NewAssignmentsUpdatedEvent(req.SaleItemID, req.Field, result.Applied.String(), changes)
		if err := s.eventPublisher.Publish(ctx, event); err != nil {
			log.Warn("failed to publish stock assignments updated event", zap.Error(err))
		}
	}
	return result, nil
}

// updateLocked locks unitIDs, reloads the assignments and applies the delta in one
// transaction. It fails with errUnitsChanged when the reload references a unit outside unitIDs.
func (s *AssignmentService) updateLocked(
	ctx context.Context,
	req UpdateAssignmentsRequest,
	delta valueobject.Quantity,
	unitIDs []uuid.UUID,
	result *UpdateAssignmentsResult,
) (*stock.ChangeSet, error) {
	release, err := s.locker.Acquire(ctx, unitIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to lock stock units: %w", err)
	}
	defer release()

	var changes *stock.ChangeSet
	err = s.scope.Execute(ctx, func(repo stock.Repository) error {
		locked, err := repo.FindAssignmentsBySaleItem(ctx, req.SaleItemID)
		if err != nil {
			return fmt.Errorf("failed to reload stock assignments: %w", err)
		}
		if !coveredBy(stock.UnitIDs(locked), unitIDs) {
			return errUnitsChanged
		}

		changes = stock.NewChangeSet()
		updater := stock.NewUpdater(stock.NewAggregateUnitUpdater(changes), changes)
		applied, remaining, err := s.apply(updater, req.Field, ordered(locked, delta), delta)
		if err != nil {
			return err
		}
		result.Applied = applied
		result.Remaining = remaining

		if changes.IsEmpty() {
			return nil
		}
		return repo.SaveChanges(ctx, changes)
	})
	return changes, err
}

// coveredBy reports whether every id is in held
func coveredBy(ids, held []uuid.UUID) bool {
	for _, id := range ids {
		if !slices.Contains(held, id) {
			return false
		}
	}
	return true
}

func (s *AssignmentService) apply(
	updater *stock.Updater,
	field string,
	assignments []*stock.Assignment,
	delta valueobject.Quantity,
) (valueobject.Quantity, valueobject.Quantity, error) {
	applied := valueobject.ZeroQuantity()
	remaining := delta
	for _, a := range assignments {
		if remaining.IsZero() {
			break
		}
		var (
			got valueobject.Quantity
			err error
		)
		switch field {
		case FieldSold:
			got, err = updater.UpdateSold(a, remaining, true)
		case FieldShipped:
			got, err = updater.UpdateShipped(a, remaining, true)
		}
		if err != nil {
			return applied, remaining, fmt.Errorf("stock assignment %s: %w", a.ID, err)
		}
		applied = applied.Add(got)
		remaining = remaining.Sub(got)
	}
	return applied, remaining, nil
}

// ordered returns the assignments in the order a delta should visit them
func ordered(assignments []*stock.Assignment, delta valueobject.Quantity) []*stock.Assignment {
	list := make([]*stock.Assignment, len(assignments))
	copy(list, assignments)
	if delta.IsNegative() {
		for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
			list[i], list[j] = list[j], list[i]
		}
	}
	return list
}
