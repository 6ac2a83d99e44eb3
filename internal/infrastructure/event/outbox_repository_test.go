package event

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newOutboxDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.OutboxEntryModel{}))
	return db
}

func newEntry(eventType string, createdAt time.Time) *shared.OutboxEntry {
	entry := shared.NewOutboxEntry(newTestEvent(eventType), []byte(`{"data":"test data"}`))
	entry.CreatedAt = createdAt
	entry.UpdatedAt = createdAt
	return entry
}

func TestGormOutboxRepository_FindDue(t *testing.T) {
	db := newOutboxDB(t)
	repo := NewGormOutboxRepository(db)
	ctx := context.Background()
	now := time.Now()

	pending := newEntry("A", now.Add(-3*time.Minute))
	sent := newEntry("B", now.Add(-4*time.Minute))
	sent.MarkSent()
	retryable := newEntry("C", now.Add(-5*time.Minute))
	retryable.MarkFailed("timeout")
	past := now.Add(-time.Minute)
	retryable.NextRetryAt = &past
	waiting := newEntry("D", now.Add(-6*time.Minute))
	waiting.MarkFailed("timeout")
	future := now.Add(time.Hour)
	waiting.NextRetryAt = &future
	dead := newEntry("E", now.Add(-7*time.Minute))
	dead.MaxRetries = 1
	dead.MarkFailed("gone")

	require.NoError(t, repo.Save(ctx, pending, sent, retryable, waiting, dead))
	require.NoError(t, repo.Save(ctx))

	due, err := repo.FindDue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, retryable.ID, due[0].ID, "oldest first")
	assert.Equal(t, pending.ID, due[1].ID)
	assert.Equal(t, "timeout", due[0].LastError)
	assert.Equal(t, []byte(`{"data":"test data"}`), due[1].Payload)

	limited, err := repo.FindDue(ctx, now, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestGormOutboxRepository_UpdateAndCount(t *testing.T) {
	db := newOutboxDB(t)
	repo := NewGormOutboxRepository(db)
	ctx := context.Background()

	first := newEntry("A", time.Now())
	second := newEntry("B", time.Now())
	require.NoError(t, repo.Save(ctx, first, second))

	first.MarkSent()
	require.NoError(t, repo.Update(ctx, first))

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[shared.OutboxStatusSent])
	assert.Equal(t, int64(1), counts[shared.OutboxStatusPending])
	assert.Zero(t, counts[shared.OutboxStatusDead])

	var stored models.OutboxEntryModel
	require.NoError(t, db.First(&stored, "id = ?", first.ID).Error)
	assert.Equal(t, shared.OutboxStatusSent, stored.Status)
	assert.NotNil(t, stored.ProcessedAt)
}

func TestGormOutboxRepository_WithTx(t *testing.T) {
	db := newOutboxDB(t)
	ctx := context.Background()

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := NewGormOutboxRepository(db).WithTx(tx).Save(ctx, newEntry("A", time.Now())); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	counts, err := NewGormOutboxRepository(db).CountByStatus(ctx)
	require.NoError(t, err)
	assert.Empty(t, counts)
}
