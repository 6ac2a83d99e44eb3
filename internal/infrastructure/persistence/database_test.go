package persistence

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/fulfillment/internal/infrastructure/config"
	"github.com/erp/fulfillment/internal/infrastructure/logger"
	"github.com/erp/fulfillment/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestNewDatabase(t *testing.T) {
	t.Run("opens sqlite with a single connection", func(t *testing.T) {
		database, err := NewDatabase(&config.DatabaseConfig{
			Driver:       config.DriverSQLite,
			DBName:       "file:newdb?mode=memory&cache=shared",
			MaxOpenConns: 25,
			MaxIdleConns: 5,
		},
			WithLogger(logger.NewGormLogger(zap.NewNop(), gormlogger.Warn)),
			WithTracing(telemetry.NewDBTracingPlugin(telemetry.DefaultDBTracingConfig(), zap.NewNop())),
		)
		require.NoError(t, err)
		defer database.Close()

		assert.Equal(t, 1, database.Stats().MaxOpenConnections)
		assert.NoError(t, database.Ping(context.Background()))
	})

	t.Run("rejects an unknown driver", func(t *testing.T) {
		_, err := NewDatabase(&config.DatabaseConfig{Driver: "mysql"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported database driver")
	})
}

func TestDatabase_Stats(t *testing.T) {
	db, _, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	stats := db.Stats()
	assert.GreaterOrEqual(t, stats.OpenConnections, 0)
	assert.Equal(t, stats.OpenConnections, stats.InUse+stats.Idle)
}

func TestDatabase_LogPoolStats(t *testing.T) {
	db, _, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	core, recorded := observer.New(zapcore.DebugLevel)
	db.LogPoolStats(zap.New(core))

	entries := recorded.FilterMessage("Database pool statistics").All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ContextMap(), "open")
	assert.Contains(t, entries[0].ContextMap(), "wait_count")
}

func TestDatabase_Ping(t *testing.T) {
	db, _, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	assert.NoError(t, db.Ping(context.Background()))
}

func TestDatabase_Close(t *testing.T) {
	db, mock, _ := newMockDatabase(t)

	mock.ExpectClose()

	assert.NoError(t, db.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransaction_OnMockDatabase(t *testing.T) {
	t.Run("commits on success", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE stock_units SET sold_quantity = sold_quantity \+ \$1`).
			WithArgs("2").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := db.DB.Transaction(func(tx *gorm.DB) error {
			return tx.Exec("UPDATE stock_units SET sold_quantity = sold_quantity + ?", "2").Error
		})

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := db.DB.Transaction(func(tx *gorm.DB) error {
			return assert.AnError
		})

		assert.ErrorIs(t, err, assert.AnError)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
