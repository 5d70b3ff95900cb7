package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/propbill/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultLockTTL    = 30 * time.Second
	defaultRetryDelay = 250 * time.Millisecond
	keyPrefix         = "propbill:lock:"
)

// RedisLocker is a Locker backed by redsync, shared by every server instance
// pointing at the same Redis
type RedisLocker struct {
	rs         *redsync.Redsync
	ttl        time.Duration
	tries      int
	retryDelay time.Duration
	logger     *zap.Logger
}

// NewRedisClient connects to the lock Redis and checks it answers a ping
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// NewRedisLocker creates a RedisLocker. ttl bounds how long a crashed holder
// keeps the key; wait bounds how long a caller retries a busy key.
func NewRedisLocker(client redis.UniversalClient, ttl, wait time.Duration, logger *zap.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	tries := int(wait/defaultRetryDelay) + 1
	return &RedisLocker{
		rs:         redsync.New(goredis.NewPool(client)),
		ttl:        ttl,
		tries:      tries,
		retryDelay: defaultRetryDelay,
		logger:     logger,
	}
}

// WithLock implements Locker
func (l *RedisLocker) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	mutex := l.rs.NewMutex(keyPrefix+key,
		redsync.WithExpiry(l.ttl),
		redsync.WithTries(l.tries),
		redsync.WithRetryDelay(l.retryDelay),
	)

	if err := mutex.LockContext(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		var taken *redsync.ErrTaken
		if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
			return ErrLockBusy
		}
		return fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}

	defer func() {
		// release even when the caller's context is already cancelled
		ok, err := mutex.UnlockContext(context.WithoutCancel(ctx))
		if err != nil || !ok {
			l.logger.Warn("failed to release lock",
				zap.String("key", key),
				zap.Bool("released", ok),
				zap.Error(err),
			)
		}
	}()

	return fn(ctx)
}
