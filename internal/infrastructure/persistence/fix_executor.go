package persistence

import (
	"context"
	"fmt"

	"github.com/erp/fulfillment/internal/domain/integrity"
	"github.com/erp/fulfillment/internal/domain/shared"
	"gorm.io/gorm"
)

// GormFixExecutor implements integrity.Executor by running the action statement
type GormFixExecutor struct {
	db *gorm.DB
}

// NewGormFixExecutor creates a new GormFixExecutor
func NewGormFixExecutor(db *gorm.DB) *GormFixExecutor {
	return &GormFixExecutor{db: db}
}

// Execute implements integrity.Executor
func (e *GormFixExecutor) Execute(ctx context.Context, action integrity.Action) error {
	result := e.db.WithContext(ctx).Exec(action.SQL(), action.Params())
	if result.Error != nil {
		return fmt.Errorf("executing %s: %w", action, result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError(shared.CodeNotFound,
			fmt.Sprintf("%s row %s not found", action.Table(), action.TargetID))
	}
	return nil
}

var _ integrity.Executor = (*GormFixExecutor)(nil)
