package persistence

import (
	"context"
	"testing"

	appstock "github.com/erp/fulfillment/internal/application/stock"
	"github.com/erp/fulfillment/internal/domain/stock"
	"github.com/erp/fulfillment/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type noopLocker struct{}

func (noopLocker) Acquire(context.Context, []uuid.UUID) (appstock.Release, error) {
	return func() {}, nil
}

func TestGormStockRepository_FindAssignmentsBySaleItem(t *testing.T) {
	db := newSQLiteDatabase(t)
	f := newFixture(t)
	_, err := f.unit.AddAdjustment(stock.AdjustmentReasonFaulty, qty(1), "scratched")
	require.NoError(t, err)
	f.save(t, db)

	repo := NewGormStockRepository(db)
	assignments, err := repo.FindAssignmentsBySaleItem(context.Background(), f.chair.ID)
	require.NoError(t, err)
	require.Len(t, assignments, 1)

	a := assignments[0]
	assert.Equal(t, f.assignment.ID, a.ID)
	assert.True(t, a.SoldQuantity.Equal(qty(3)))
	require.NotNil(t, a.Unit)
	assert.Equal(t, f.unit.ID, a.Unit.ID)
	assert.True(t, a.Unit.OrderedQuantity.Equal(qty(10)))
	assert.True(t, a.Unit.AdjustedQuantity.Equal(qty(-1)))
	require.Len(t, a.Unit.Adjustments, 1)
	assert.Equal(t, stock.AdjustmentReasonFaulty, a.Unit.Adjustments[0].Reason)

	none, err := repo.FindAssignmentsBySaleItem(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGormStockRepository_SaveChanges(t *testing.T) {
	db := newSQLiteDatabase(t)
	f := newFixture(t)
	f.save(t, db)
	ctx := context.Background()
	repo := NewGormStockRepository(db)

	units, err := repo.FindUnitsByIDs(ctx, []uuid.UUID{f.unit.ID})
	require.NoError(t, err)
	require.Len(t, units, 1)
	unit := units[0]

	_, err = unit.AddAdjustment(stock.AdjustmentReasonFound, qty(2), "recount")
	require.NoError(t, err)
	extra := stock.NewAssignment(unit, uuid.New())
	extra.SoldQuantity = qty(1)
	unit.SoldQuantity = unit.SoldQuantity.Add(qty(1))

	changes := stock.NewChangeSet()
	changes.PersistUnit(unit)
	changes.PersistAssignment(extra)
	changes.RemoveAssignment(unit.Assignments[0])
	require.NoError(t, repo.SaveChanges(ctx, changes))
	// saving again leaves the stored adjustment alone
	require.NoError(t, repo.SaveChanges(ctx, changes))

	var stored models.StockUnitModel
	require.NoError(t, db.Preload("Assignments").Preload("Adjustments").First(&stored, "id = ?", f.unit.ID).Error)
	assert.True(t, stored.SoldQuantity.Equal(qty(4).Decimal()))
	assert.True(t, stored.AdjustedQuantity.Equal(qty(2).Decimal()))
	require.Len(t, stored.Adjustments, 1)
	require.Len(t, stored.Assignments, 1)
	assert.Equal(t, extra.ID, stored.Assignments[0].ID)

	assert.NoError(t, repo.SaveChanges(ctx, stock.NewChangeSet()))
}

func TestAssignmentService_SQLite(t *testing.T) {
	db := newSQLiteDatabase(t)
	f := newFixture(t)
	f.save(t, db)

	svc := appstock.NewAssignmentService(NewGormStockRepository(db), NewGormTransactionScope(db), noopLocker{}, zap.NewNop())

	result, err := svc.Update(context.Background(), appstock.UpdateAssignmentsRequest{
		SaleItemID: f.chair.ID,
		Field:      appstock.FieldSold,
		Quantity:   "2",
	})
	require.NoError(t, err)
	assert.True(t, result.Applied.Equal(qty(2)), "applied %s", result.Applied)
	assert.True(t, result.Remaining.IsZero())
	assert.Equal(t, []uuid.UUID{f.unit.ID}, result.UnitIDs)

	var assignment models.StockAssignmentModel
	require.NoError(t, db.First(&assignment, "id = ?", f.assignment.ID).Error)
	assert.True(t, assignment.SoldQuantity.Equal(qty(5).Decimal()))

	var unit models.StockUnitModel
	require.NoError(t, db.First(&unit, "id = ?", f.unit.ID).Error)
	assert.True(t, unit.SoldQuantity.Equal(qty(5).Decimal()))

	// the stored aggregates now match the documents
	report, err := newSQLiteRunner(db).Run(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, report.OK())
}
