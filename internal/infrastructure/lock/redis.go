package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	appstock "github.com/erp/fulfillment/internal/application/stock"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisLocker locks stock units across processes with one Redis lock per unit
type RedisLocker struct {
	client  *redislock.Client
	ttl     time.Duration
	retry   redislock.RetryStrategy
	prefix  string
	logger  *zap.Logger
	timeout time.Duration
}

// NewRedisLocker creates a RedisLocker with an existing Redis client
func NewRedisLocker(client *redis.Client, cfg config.LockConfig, logger *zap.Logger) *RedisLocker {
	return &RedisLocker{
		client:  redislock.New(client),
		ttl:     cfg.TTL,
		retry:   redislock.LimitRetry(redislock.LinearBackoff(cfg.RetryBackoff), cfg.RetryCount),
		prefix:  cfg.KeyPrefix,
		logger:  logger,
		timeout: 5 * time.Second,
	}
}

// Acquire obtains the lock of every unit in ascending id order.
// When one lock cannot be obtained the ones already held are released.
func (l *RedisLocker) Acquire(ctx context.Context, unitIDs []uuid.UUID) (appstock.Release, error) {
	ids := sortedUnique(unitIDs)
	held := make([]*redislock.Lock, 0, len(ids))

	for _, id := range ids {
		lock, err := l.client.Obtain(ctx, l.key(id), l.ttl, &redislock.Options{RetryStrategy: l.retry})
		if err != nil {
			l.release(held)
			if errors.Is(err, redislock.ErrNotObtained) {
				return nil, fmt.Errorf("stock unit %s: %w", id, shared.ErrLockNotObtained)
			}
			return nil, fmt.Errorf("failed to lock stock unit %s: %w", id, err)
		}
		held = append(held, lock)
	}

	return func() { l.release(held) }, nil
}

func (l *RedisLocker) key(id uuid.UUID) string {
	return l.prefix + id.String()
}

// release frees the locks in reverse order. The caller's context may already be done,
// so each release gets its own timeout.
func (l *RedisLocker) release(locks []*redislock.Lock) {
	for i := len(locks) - 1; i >= 0; i-- {
		ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
		if err := locks[i].Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.Warn("failed to release stock unit lock",
				zap.String("key", locks[i].Key()),
				zap.Error(err),
			)
		}
		cancel()
	}
}

// NewLocker builds the locker selected by the configuration. The Redis client is only
// used by the redis backend.
func NewLocker(cfg config.LockConfig, client *redis.Client, logger *zap.Logger) (appstock.UnitLocker, error) {
	switch cfg.Backend {
	case config.LockBackendMemory, "":
		return NewMemoryLocker(), nil
	case config.LockBackendRedis:
		if client == nil {
			return nil, errors.New("redis lock backend requires a redis client")
		}
		return NewRedisLocker(client, cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported lock backend: %s", cfg.Backend)
	}
}

var _ appstock.UnitLocker = (*RedisLocker)(nil)
