package stock

import (
	"context"

	"github.com/erp/fulfillment/internal/domain/stock"
	"github.com/google/uuid"
)

// TransactionScope provides transactional access to the stock repository.
// Every repository operation made inside fn is committed or rolled back atomically.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repo stock.Repository) error) error
}

// Release frees the locks taken by UnitLocker.Acquire
type Release func()

// UnitLocker serializes assignment updates per stock unit.
// Implementations must lock ids in a stable order to avoid deadlocks.
type UnitLocker interface {
	Acquire(ctx context.Context, unitIDs []uuid.UUID) (Release, error)
}

// NoOpTransactionScope runs fn against a repository without a transaction.
// It is used by tests and by stores without transaction support.
type NoOpTransactionScope struct {
	repo stock.Repository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope
func NewNoOpTransactionScope(repo stock.Repository) *NoOpTransactionScope {
	return &NoOpTransactionScope{repo: repo}
}

// Execute implements TransactionScope
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repo stock.Repository) error) error {
	return fn(s.repo)
}

var _ TransactionScope = (*NoOpTransactionScope)(nil)
