package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dan9191/vehicle-valuation/internal/integrations/gemini"
	"github.com/Dan9191/vehicle-valuation/internal/valuation"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const keyPrefix = "oracle:"

// ErrCacheMiss is returned when no estimate is cached for a market segment
var ErrCacheMiss = errors.New("cache miss")

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// OracleCache stores oracle estimates per market segment
type OracleCache struct {
	rdb *redis.Client
	ttl time.Duration
	log *logrus.Logger
}

// NewOracleCache creates a cache whose entries expire after ttl
func NewOracleCache(rdb *redis.Client, ttl time.Duration, log *logrus.Logger) *OracleCache {
	return &OracleCache{rdb: rdb, ttl: ttl, log: log}
}

func redisKey(key valuation.MarketCacheKey) string {
	return keyPrefix + key.String()
}

// Get returns the cached estimate for a market segment or ErrCacheMiss
func (c *OracleCache) Get(ctx context.Context, key valuation.MarketCacheKey) (gemini.OracleEstimate, error) {
	val, err := c.rdb.Get(ctx, redisKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return gemini.OracleEstimate{}, ErrCacheMiss
	}
	if err != nil {
		return gemini.OracleEstimate{}, fmt.Errorf("failed to read oracle cache: %w", err)
	}

	var est gemini.OracleEstimate
	if err := json.Unmarshal([]byte(val), &est); err != nil {
		c.log.Warnf("Dropping unreadable oracle cache entry %s: %v", key, err)
		c.rdb.Del(ctx, redisKey(key))
		return gemini.OracleEstimate{}, ErrCacheMiss
	}
	return est, nil
}

// Set caches an estimate for a market segment
func (c *OracleCache) Set(ctx context.Context, key valuation.MarketCacheKey, est gemini.OracleEstimate) error {
	payload, err := json.Marshal(est)
	if err != nil {
		return fmt.Errorf("failed to encode oracle estimate: %w", err)
	}
	if err := c.rdb.Set(ctx, redisKey(key), string(payload), c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write oracle cache: %w", err)
	}
	c.log.Debugf("Cached oracle estimate for %s for %s", key, c.ttl)
	return nil
}
