package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type tracedUnit struct {
	ID           uint `gorm:"primaryKey"`
	SoldQuantity string
}

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&tracedUnit{}))
	return db
}

func TestDefaultDBTracingConfig(t *testing.T) {
	cfg := DefaultDBTracingConfig()

	assert.False(t, cfg.Enabled)
	assert.False(t, cfg.LogFullSQL)
	assert.Equal(t, 200*time.Millisecond, cfg.SlowQueryThresh)
	assert.Equal(t, "postgresql", cfg.DBSystem)
}

func TestDBTracingPlugin_Disabled(t *testing.T) {
	db := setupTestDB(t)
	plugin := NewDBTracingPlugin(DefaultDBTracingConfig(), zap.NewNop())
	require.NoError(t, plugin.RegisterOtelGorm(db))
	assert.Nil(t, db.Callback().Query().Get("otel_slow_query:query"))
}

func TestDBTracingPlugin_Enabled(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(recorder))
	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(original) })

	db := setupTestDB(t)
	cfg := DefaultDBTracingConfig()
	cfg.Enabled = true
	cfg.DBSystem = "sqlite"
	require.NoError(t, NewDBTracingPlugin(cfg, zap.NewNop()).RegisterOtelGorm(db))
	assert.NotNil(t, db.Callback().Query().Get("otel_slow_query:query"))

	ctx := context.Background()
	require.NoError(t, db.WithContext(ctx).Create(&tracedUnit{SoldQuantity: "1"}).Error)
	var units []tracedUnit
	require.NoError(t, db.WithContext(ctx).Find(&units).Error)
	assert.Len(t, units, 1)
	assert.NotEmpty(t, recorder.Ended())
}

func TestDBTracingPlugin_AfterQuery(t *testing.T) {
	tests := []struct {
		name   string
		thresh time.Duration
		slow   bool
	}{
		{name: "slow query flagged", thresh: 10 * time.Millisecond, slow: true},
		{name: "fast query untouched", thresh: time.Hour, slow: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := tracetest.NewSpanRecorder()
			tp := trace.NewTracerProvider(trace.WithSpanProcessor(recorder))
			ctx, span := tp.Tracer("test").Start(context.Background(), "query")

			db := setupTestDB(t)
			plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: true, SlowQueryThresh: tt.thresh}, zap.NewNop())

			tx := db.Session(&gorm.Session{NewDB: true})
			tx.Statement.Context = context.WithValue(ctx, queryStartTimeKey, time.Now().Add(-time.Second))
			tx.Statement.Table = "traced_units"
			tx.Statement.RowsAffected = 3
			plugin.afterQuery(tx)
			span.End()

			spans := recorder.Ended()
			require.Len(t, spans, 1)
			var slow bool
			for _, e := range spans[0].Events() {
				if e.Name == "slow_query_warning" {
					slow = true
				}
			}
			assert.Equal(t, tt.slow, slow)

			attrs := make(map[string]bool)
			for _, a := range spans[0].Attributes() {
				attrs[string(a.Key)] = true
			}
			assert.True(t, attrs["db.sql.table"])
			assert.True(t, attrs["db.rows_affected"])
		})
	}
}
