package persistence

import (
	"context"
	"testing"

	appintegrity "github.com/erp/fulfillment/internal/application/integrity"
	"github.com/erp/fulfillment/internal/domain/integrity"
	"github.com/erp/fulfillment/internal/domain/stock"
	"github.com/erp/fulfillment/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newSQLiteRunner(db *gorm.DB) *appintegrity.Runner {
	checkers := integrity.DefaultCheckers(NewGormIntegritySource(db), NewGormFixExecutor(db))
	return appintegrity.NewRunner(checkers, zap.NewNop())
}

func TestIntegrity_SQLite_Rows(t *testing.T) {
	db := newSQLiteDatabase(t)
	f := newFixture(t)
	_, err := f.unit.AddAdjustment(stock.AdjustmentReasonFound, qty(1), "recount")
	require.NoError(t, err)
	f.unit.AdjustedQuantity = qty(0)
	f.save(t, db)

	source := NewGormIntegritySource(db)
	ctx := context.Background()

	soldRows, err := source.ItemSoldRows(ctx)
	require.NoError(t, err)
	require.Len(t, soldRows, 1)
	assert.Equal(t, f.chair.ID, soldRows[0].SaleItemID)
	assert.Equal(t, f.sale.Number, soldRows[0].SaleNumber)
	assert.True(t, soldRows[0].Total.Equal(qty(5)), "total %s", soldRows[0].Total)
	assert.True(t, soldRows[0].Invoiced.Equal(qty(5)), "invoiced %s", soldRows[0].Invoiced)
	assert.True(t, soldRows[0].Credited.IsZero())
	assert.True(t, soldRows[0].Shipped.Equal(qty(2)), "shipped %s", soldRows[0].Shipped)
	assert.True(t, soldRows[0].Assigned.Equal(qty(3)), "assigned %s", soldRows[0].Assigned)

	shippedRows, err := source.ItemShippedRows(ctx)
	require.NoError(t, err)
	require.Len(t, shippedRows, 1)
	assert.True(t, shippedRows[0].ExpectedShipped().Equal(qty(2)))
	assert.True(t, shippedRows[0].Assigned.Equal(qty(2)))

	adjusted, err := source.UnitRows(ctx, integrity.UnitFieldAdjusted)
	require.NoError(t, err)
	require.Len(t, adjusted, 1)
	assert.True(t, adjusted[0].Stored.IsZero())
	assert.True(t, adjusted[0].Computed.Equal(qty(1)))

	assignments, err := source.AssignmentsOf(ctx, []uuid.UUID{f.chair.ID})
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, f.assignment.ID, assignments[0].ID)
	assert.Equal(t, f.unit.ID, assignments[0].UnitID)
	assert.True(t, assignments[0].UnitSupplied)
	assert.True(t, assignments[0].UnitOrdered.Equal(qty(10)))
	assert.True(t, assignments[0].UnitAssignedSold.Equal(qty(3)))
}

func TestIntegrity_SQLite_FixIsIdempotent(t *testing.T) {
	db := newSQLiteDatabase(t)
	f := newFixture(t)
	_, err := f.unit.AddAdjustment(stock.AdjustmentReasonFound, qty(1), "recount")
	require.NoError(t, err)
	f.unit.AdjustedQuantity = qty(0)
	f.save(t, db)
	ctx := context.Background()

	report, err := newSQLiteRunner(db).Run(ctx, false)
	require.NoError(t, err)
	assert.False(t, report.OK())
	assert.Zero(t, report.Fixes)

	report, err = newSQLiteRunner(db).Run(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Fixes, "assignment sold, unit sold and unit adjusted")
	assert.Equal(t, []uuid.UUID{f.unit.ID}, report.UnitIDs)

	var unit models.StockUnitModel
	require.NoError(t, db.First(&unit, "id = ?", f.unit.ID).Error)
	assert.True(t, unit.SoldQuantity.Equal(qty(5).Decimal()), "unit sold %s", unit.SoldQuantity)
	assert.True(t, unit.AdjustedQuantity.Equal(qty(1).Decimal()), "unit adjusted %s", unit.AdjustedQuantity)

	var assignment models.StockAssignmentModel
	require.NoError(t, db.First(&assignment, "id = ?", f.assignment.ID).Error)
	assert.True(t, assignment.SoldQuantity.Equal(qty(5).Decimal()), "assignment sold %s", assignment.SoldQuantity)

	report, err = newSQLiteRunner(db).Run(ctx, true)
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Zero(t, report.Fixes)
	assert.Empty(t, report.UnitIDs)
}

func TestIntegrity_SQLite_FinalAssertions(t *testing.T) {
	db := newSQLiteDatabase(t)
	f := newFixture(t)
	f.unit.ShippedQuantity = qty(7) // more than sold
	f.save(t, db)

	ids, err := NewGormIntegritySource(db).Violations(context.Background(), integrity.FinalAssertions[1])
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{f.unit.ID}, ids)
}
