package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	appintegrity "github.com/erp/fulfillment/internal/application/integrity"
	appstock "github.com/erp/fulfillment/internal/application/stock"
	"github.com/erp/fulfillment/internal/domain/integrity"
	"github.com/erp/fulfillment/internal/infrastructure/config"
	"github.com/erp/fulfillment/internal/infrastructure/event"
	"github.com/erp/fulfillment/internal/infrastructure/lock"
	"github.com/erp/fulfillment/internal/infrastructure/logger"
	"github.com/erp/fulfillment/internal/infrastructure/persistence"
	"github.com/erp/fulfillment/internal/infrastructure/redisconn"
	"github.com/erp/fulfillment/internal/infrastructure/telemetry"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const shutdownTimeout = 10 * time.Second

// app holds the process wide infrastructure shared by every command
type app struct {
	cfg        *config.Config
	log        *zap.Logger
	telemetry  *telemetry.Providers
	db         *persistence.Database
	redis      *redis.Client
	bus        *event.InMemoryEventBus
	outbox     *event.GormOutboxRepository
	serializer *event.EventSerializer
}

func bootstrap(ctx context.Context, cfg *config.Config) (*app, error) {
	logCfg := &logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}
	baseCore, err := logger.NewCore(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := zap.New(baseCore, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	a := &app{cfg: cfg, log: log}

	a.telemetry, err = telemetry.Setup(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
		ExportInterval:    cfg.Telemetry.ExportInterval,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	if a.telemetry.Enabled() {
		otelCore := a.telemetry.ZapCore(logger.ParseLevel(cfg.Log.Level))
		a.log = telemetry.NewBridgedLogger(baseCore, otelCore, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	}

	opts := []persistence.Option{
		persistence.WithLogger(logger.NewGormLogger(a.log, logger.MapGormLogLevel(cfg.Log.Level),
			logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
			logger.WithParameterizedQueries(!cfg.Telemetry.DBLogFullSQL))),
	}
	if cfg.Telemetry.DBTraceEnabled {
		system := "postgresql"
		if cfg.Database.Driver == config.DriverSQLite {
			system = "sqlite"
		}
		opts = append(opts, persistence.WithTracing(telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:         true,
			LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
			DBSystem:        system,
		}, a.log)))
	}
	a.db, err = persistence.NewDatabase(&cfg.Database, opts...)
	if err != nil {
		a.close()
		return nil, err
	}

	if cfg.Redis.Enabled {
		a.redis, err = redisconn.Open(ctx, cfg.Redis)
		if err != nil {
			a.close()
			return nil, err
		}
	}

	a.serializer = event.NewStockEventSerializer()
	a.outbox = event.NewGormOutboxRepository(a.db.DB)
	a.bus = event.NewInMemoryEventBus(a.log)
	a.bus.Subscribe(event.NewOutboxPublisher(a.outbox, a.serializer, event.WithMaxRetries(cfg.Outbox.MaxRetries)))

	a.log.Debug("Infrastructure ready",
		zap.String("env", cfg.App.Env),
		zap.String("database_driver", cfg.Database.Driver),
		zap.Bool("redis", cfg.Redis.Enabled),
		zap.String("lock_backend", cfg.Lock.Backend),
	)
	return a, nil
}

// runner builds the integrity runner over the selected checkers
func (a *app) runner(names []string) (*appintegrity.Runner, error) {
	checkers, err := integrity.Select(integrity.DefaultCheckers(
		persistence.NewGormIntegritySource(a.db.DB),
		persistence.NewGormFixExecutor(a.db.DB),
	), names)
	if err != nil {
		return nil, err
	}
	r := appintegrity.NewRunner(checkers, a.log)
	r.SetEventPublisher(a.bus)

	metrics, err := telemetry.NewIntegrityMetrics(a.telemetry.Meter("fulfillment/integrity"))
	if err != nil {
		return nil, fmt.Errorf("failed to create integrity metrics: %w", err)
	}
	r.SetMetrics(metrics)
	return r, nil
}

// assignmentService builds the stock assignment service with the configured locker
func (a *app) assignmentService() (*appstock.AssignmentService, error) {
	locker, err := lock.NewLocker(a.cfg.Lock, a.redis, a.log)
	if err != nil {
		return nil, err
	}
	svc := appstock.NewAssignmentService(
		persistence.NewGormStockRepository(a.db.DB),
		persistence.NewGormTransactionScope(a.db.DB),
		locker,
		a.log,
	)
	svc.SetEventPublisher(a.bus)
	return svc, nil
}

// relay builds the outbox relay: a redis stream when redis is enabled, the log otherwise
func (a *app) relay() *event.OutboxRelay {
	var sink event.Sink = event.NewLogSink(a.log)
	if a.redis != nil {
		sink = event.NewRedisStreamSink(a.redis,
			event.WithStream(a.cfg.Outbox.Stream),
			event.WithMaxLen(a.cfg.Outbox.StreamMaxLen),
		)
	}
	return event.NewOutboxRelay(a.outbox, sink, a.serializer, event.OutboxRelayConfig{
		BatchSize:    a.cfg.Outbox.BatchSize,
		PollInterval: a.cfg.Outbox.PollInterval,
	}, a.log)
}

func (a *app) close() {
	var errs []error
	if a.bus != nil {
		errs = append(errs, a.bus.Stop(context.Background()))
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		a.db.LogPoolStats(a.log)
		errs = append(errs, a.db.Close())
	}
	if a.telemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		errs = append(errs, a.telemetry.Shutdown(ctx))
		cancel()
	}
	if err := errors.Join(errs...); err != nil {
		a.log.Warn("Shutdown finished with errors", zap.Error(err))
	}
	_ = a.log.Sync()
}
