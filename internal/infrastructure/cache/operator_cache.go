package cache

import (
	"context"
	"errors"
	"time"

	"github.com/bizops/backend/internal/domain/identity"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	operatorKeyPrefix = "operator:"
	operatorYes       = "1"
	operatorNo        = "0"
)

// RedisOperatorChecker caches operator lookups in Redis.
// Both positive and negative answers are cached for the TTL. Concurrent misses
// for the same user share one repository call. Redis failures fall through to
// the repository; repository failures are returned unchanged.
type RedisOperatorChecker struct {
	next   identity.OperatorChecker
	client redis.UniversalClient
	ttl    time.Duration
	group  singleflight.Group
	logger *zap.Logger
}

// NewRedisOperatorChecker wraps next with a Redis cache
func NewRedisOperatorChecker(next identity.OperatorChecker, client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *RedisOperatorChecker {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisOperatorChecker{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// IsOperator implements identity.OperatorChecker
func (c *RedisOperatorChecker) IsOperator(ctx context.Context, userID uuid.UUID) (bool, error) {
	if userID == uuid.Nil {
		return false, nil
	}
	key := operatorKeyPrefix + userID.String()

	cached, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		return cached == operatorYes, nil
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("Operator cache read failed, querying store", zap.String("user_id", userID.String()), zap.Error(err))
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		ok, err := c.next.IsOperator(ctx, userID)
		if err != nil {
			return false, err
		}
		value := operatorNo
		if ok {
			value = operatorYes
		}
		if err := c.client.Set(ctx, key, value, c.ttl).Err(); err != nil {
			c.logger.Warn("Operator cache write failed", zap.String("user_id", userID.String()), zap.Error(err))
		}
		return ok, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// Invalidate drops the cached answer for userID
func (c *RedisOperatorChecker) Invalidate(ctx context.Context, userID uuid.UUID) error {
	return c.client.Del(ctx, operatorKeyPrefix+userID.String()).Err()
}

// NewRedisClient opens a Redis client and verifies the connection
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
