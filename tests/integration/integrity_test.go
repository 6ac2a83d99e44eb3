//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	appintegrity "github.com/erp/fulfillment/internal/application/integrity"
	"github.com/erp/fulfillment/internal/domain/integrity"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/domain/stock"
	"github.com/erp/fulfillment/internal/infrastructure/event"
	"github.com/erp/fulfillment/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newRunner(db *gorm.DB, publisher shared.EventPublisher) *appintegrity.Runner {
	checkers := integrity.DefaultCheckers(persistence.NewGormIntegritySource(db), persistence.NewGormFixExecutor(db))
	r := appintegrity.NewRunner(checkers, zap.NewNop())
	if publisher != nil {
		r.SetEventPublisher(publisher)
	}
	return r
}

func TestIntegrity_Postgres_CheckFixCheck(t *testing.T) {
	tdb := NewSharedTestDB(t)
	tdb.CleanTables()
	t.Cleanup(tdb.CleanTables)

	o := newOrder(t)
	o.save(t, tdb.DB)
	ctx := context.Background()

	report, err := newRunner(tdb.DB, nil).Run(ctx, false)
	require.NoError(t, err)
	assert.False(t, report.OK())
	assert.Zero(t, report.Fixes)
	assert.True(t, o.storedUnit(t, tdb.DB).SoldQuantity.Equal(qty(3).Decimal()), "a check alone changes nothing")

	report, err = newRunner(tdb.DB, nil).Run(ctx, true)
	require.NoError(t, err)
	assert.Positive(t, report.Fixes)
	assert.Equal(t, []uuid.UUID{o.unit.ID}, report.UnitIDs)

	unit := o.storedUnit(t, tdb.DB)
	assert.True(t, unit.SoldQuantity.Equal(qty(5).Decimal()), "unit sold %s", unit.SoldQuantity)
	assert.True(t, unit.ShippedQuantity.Equal(qty(2).Decimal()), "unit shipped %s", unit.ShippedQuantity)
	assignment := o.storedAssignment(t, tdb.DB)
	assert.True(t, assignment.SoldQuantity.Equal(qty(5).Decimal()), "assignment sold %s", assignment.SoldQuantity)

	report, err = newRunner(tdb.DB, nil).Run(ctx, false)
	require.NoError(t, err)
	assert.True(t, report.OK(), "a fixed database checks clean")
}

func TestIntegrity_Postgres_FinalAssertions(t *testing.T) {
	tdb := NewSharedTestDB(t)
	tdb.CleanTables()
	t.Cleanup(tdb.CleanTables)

	o := newOrder(t)
	o.unit.ShippedQuantity = qty(7)
	o.save(t, tdb.DB)

	source := persistence.NewGormIntegritySource(tdb.DB)
	for _, assertion := range integrity.FinalAssertions {
		_, err := source.Violations(context.Background(), assertion)
		require.NoError(t, err, "%s runs on postgres", assertion.Name)
	}

	ids, err := source.Violations(context.Background(), integrity.FinalAssertions[1])
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{o.unit.ID}, ids, "shipped more than sold")
}

func TestIntegrity_Postgres_PublishesToOutbox(t *testing.T) {
	tdb := NewSharedTestDB(t)
	tdb.CleanTables()
	t.Cleanup(tdb.CleanTables)

	o := newOrder(t)
	o.save(t, tdb.DB)
	ctx := context.Background()

	outbox := event.NewGormOutboxRepository(tdb.DB)
	bus := event.NewInMemoryEventBus(zap.NewNop())
	bus.Subscribe(event.NewOutboxPublisher(outbox, event.NewStockEventSerializer()))

	_, err := newRunner(tdb.DB, bus).Run(ctx, true)
	require.NoError(t, err)

	counts, err := outbox.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[shared.OutboxStatusPending])

	entries, err := outbox.FindDue(ctx, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, stock.EventTypeStockUnitsReconciled, entries[0].EventType)
	assert.Contains(t, string(entries[0].Payload), o.unit.ID.String())
}
