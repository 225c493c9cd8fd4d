package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iMDK-cs/SmoothFLow-Store-sub001/models"
)

func InitRedis(logger *zap.Logger) (*redis.Client, error) {
	host := getEnv("REDIS_HOST", "localhost")
	port := getEnv("REDIS_PORT", "6379")
	password := getEnv("REDIS_PASSWORD", "")

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established")
	return rdb, nil
}

// RedisCache shares service metadata across instances. Lookup failures count
// as misses; the caller falls back to the database either way.
type RedisCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl, logger: logger}
}

func (c *RedisCache) Get(ctx context.Context, serviceID int) (*models.Service, bool) {
	data, err := c.rdb.Get(ctx, serviceKey(serviceID)).Bytes()
	if err != nil {
		return nil, false
	}
	var svc models.Service
	if err := json.Unmarshal(data, &svc); err != nil {
		return nil, false
	}
	return &svc, true
}

func (c *RedisCache) Set(ctx context.Context, serviceID int, svc *models.Service) {
	data, err := json.Marshal(svc)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, serviceKey(serviceID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("Failed to cache service metadata", zap.Int("service_id", serviceID), zap.Error(err))
	}
}

func (c *RedisCache) Delete(ctx context.Context, serviceID int) {
	if err := c.rdb.Del(ctx, serviceKey(serviceID)).Err(); err != nil {
		c.logger.Warn("Failed to invalidate service metadata", zap.Int("service_id", serviceID), zap.Error(err))
	}
}

func serviceKey(id int) string {
	return fmt.Sprintf("service:%d", id)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
