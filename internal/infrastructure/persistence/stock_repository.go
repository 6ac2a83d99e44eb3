package persistence

import (
	"context"
	"fmt"
	"sort"

	"github.com/erp/fulfillment/internal/domain/stock"
	"github.com/erp/fulfillment/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStockRepository implements stock.Repository using GORM
type GormStockRepository struct {
	db        *gorm.DB
	forUpdate bool
}

// NewGormStockRepository creates a new GormStockRepository
func NewGormStockRepository(db *gorm.DB) *GormStockRepository {
	return &GormStockRepository{db: db}
}

// newLockingStockRepository returns a repository reading units with SELECT ... FOR UPDATE.
// It must be used inside a transaction.
func newLockingStockRepository(tx *gorm.DB) *GormStockRepository {
	return &GormStockRepository{db: tx, forUpdate: true}
}

// FindUnitsByIDs implements stock.Repository
func (r *GormStockRepository) FindUnitsByIDs(ctx context.Context, ids []uuid.UUID) ([]*stock.Unit, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := r.db.WithContext(ctx).
		Preload("Assignments", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Adjustments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at, id") }).
		Where("id IN ?", ids).
		Order("id")
	if r.forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var unitModels []models.StockUnitModel
	if err := query.Find(&unitModels).Error; err != nil {
		return nil, fmt.Errorf("loading stock units: %w", err)
	}

	units := make([]*stock.Unit, 0, len(unitModels))
	for i := range unitModels {
		u, err := unitModels[i].ToDomain()
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, nil
}

// FindAssignmentsBySaleItem implements stock.Repository
func (r *GormStockRepository) FindAssignmentsBySaleItem(ctx context.Context, saleItemID uuid.UUID) ([]*stock.Assignment, error) {
	var unitIDs []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.StockAssignmentModel{}).
		Where("sale_item_id = ?", saleItemID).
		Distinct().
		Pluck("stock_unit_id", &unitIDs).Error; err != nil {
		return nil, fmt.Errorf("finding stock units of sale item %s: %w", saleItemID, err)
	}

	units, err := r.FindUnitsByIDs(ctx, unitIDs)
	if err != nil {
		return nil, err
	}

	var assignments []*stock.Assignment
	for _, u := range units {
		for _, a := range u.Assignments {
			if a.SaleItemID == saleItemID {
				assignments = append(assignments, a)
			}
		}
	}
	sort.Slice(assignments, func(i, j int) bool {
		return assignments[i].ID.String() < assignments[j].ID.String()
	})
	return assignments, nil
}

// SaveChanges implements stock.Repository.
// Adjustments are immutable: the ones already stored are left untouched.
func (r *GormStockRepository) SaveChanges(ctx context.Context, changes *stock.ChangeSet) error {
	if changes == nil || changes.IsEmpty() {
		return nil
	}
	db := r.db.WithContext(ctx)

	for _, u := range changes.Units() {
		if err := db.Omit(clause.Associations).Save(models.StockUnitModelFromDomain(u)).Error; err != nil {
			return fmt.Errorf("saving stock unit %s: %w", u.ID, err)
		}
		if len(u.Adjustments) == 0 {
			continue
		}
		adjustments := make([]*models.StockAdjustmentModel, 0, len(u.Adjustments))
		for _, a := range u.Adjustments {
			adjustments = append(adjustments, models.StockAdjustmentModelFromDomain(a))
		}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&adjustments).Error; err != nil {
			return fmt.Errorf("saving adjustments of stock unit %s: %w", u.ID, err)
		}
	}

	for _, a := range changes.Assignments() {
		if err := db.Save(models.StockAssignmentModelFromDomain(a)).Error; err != nil {
			return fmt.Errorf("saving stock assignment %s: %w", a.ID, err)
		}
	}

	if removed := changes.Removed(); len(removed) > 0 {
		ids := make([]uuid.UUID, 0, len(removed))
		for _, a := range removed {
			ids = append(ids, a.ID)
		}
		if err := db.Where("id IN ?", ids).Delete(&models.StockAssignmentModel{}).Error; err != nil {
			return fmt.Errorf("deleting stock assignments: %w", err)
		}
	}
	return nil
}

var _ stock.Repository = (*GormStockRepository)(nil)
