package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erp/fulfillment/internal/infrastructure/config"
	"github.com/erp/fulfillment/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database owns the GORM handle shared by the repositories and its connection pool
type Database struct {
	DB    *gorm.DB
	sqlDB *sql.DB
}

// Option configures NewDatabase
type Option func(*databaseOptions)

type databaseOptions struct {
	logger  logger.Interface
	tracing *telemetry.DBTracingPlugin
}

// WithLogger sets the GORM logger, silent by default
func WithLogger(l logger.Interface) Option {
	return func(o *databaseOptions) {
		o.logger = l
	}
}

// WithTracing registers the otelgorm plugin on the connection
func WithTracing(p *telemetry.DBTracingPlugin) Option {
	return func(o *databaseOptions) {
		o.tracing = p
	}
}

// NewDatabase creates a new database connection with the given configuration
func NewDatabase(cfg *config.DatabaseConfig, opts ...Option) (*Database, error) {
	o := databaseOptions{logger: logger.Default.LogMode(logger.Silent)}
	for _, opt := range opts {
		opt(&o)
	}

	dialector, err := newDialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 o.logger,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if o.tracing != nil {
		if err := o.tracing.RegisterOtelGorm(db); err != nil {
			return nil, fmt.Errorf("failed to register database tracing: %w", err)
		}
	}

	database, err := wrap(db)
	if err != nil {
		return nil, err
	}

	maxOpen := cfg.MaxOpenConns
	if cfg.Driver == config.DriverSQLite {
		// sqlite serializes writers; a single connection also keeps :memory: databases shared
		maxOpen = 1
	}
	database.sqlDB.SetMaxOpenConns(maxOpen)
	database.sqlDB.SetMaxIdleConns(min(cfg.MaxIdleConns, maxOpen))
	database.sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	database.sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := database.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return database, nil
}

func wrap(db *gorm.DB) (*Database, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return &Database{DB: db, sqlDB: sqlDB}, nil
}

func newDialector(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case config.DriverPostgres, "":
		return postgres.Open(cfg.DSN()), nil
	case config.DriverSQLite:
		return sqlite.Open(cfg.DSN()), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

// Ping checks that a connection can be established
func (d *Database) Ping(ctx context.Context) error {
	return d.sqlDB.PingContext(ctx)
}

// Stats returns the connection pool statistics
func (d *Database) Stats() sql.DBStats {
	return d.sqlDB.Stats()
}

// LogPoolStats writes the pool usage of the process lifetime at debug level
func (d *Database) LogPoolStats(log *zap.Logger) {
	stats := d.Stats()
	log.Debug("Database pool statistics",
		zap.Int("max_open", stats.MaxOpenConnections),
		zap.Int("open", stats.OpenConnections),
		zap.Int("in_use", stats.InUse),
		zap.Int("idle", stats.Idle),
		zap.Int64("wait_count", stats.WaitCount),
		zap.Duration("wait_duration", stats.WaitDuration),
	)
}

// Close closes every pooled connection
func (d *Database) Close() error {
	return d.sqlDB.Close()
}
