package imagecache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrRedisConnect reports that the redis tier could not reach its server.
var ErrRedisConnect = errors.New("failed to connect to redis")

// RedisConfig configures the redis tier.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	// TTL of stored images; 0 keeps them until evicted by redis.
	TTL time.Duration
	// OpTimeout bounds every redis call.
	OpTimeout time.Duration
}

// DefaultRedisConfig returns the redis tier defaults.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:      "localhost:6379",
		KeyPrefix: "mdlatex:img:",
		TTL:       24 * time.Hour,
		OpTimeout: 500 * time.Millisecond,
	}
}

// Redis is a shared cache tier backed by redis.
type Redis struct {
	client *redis.Client
	config RedisConfig
	logger *zap.Logger
}

// NewRedis connects to redis and verifies the connection.
func NewRedis(config RedisConfig, logger *zap.Logger) (*Redis, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.OpTimeout <= 0 {
		config.OpTimeout = DefaultRedisConfig().OpTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w at %s: %w", ErrRedisConnect, config.Addr, err)
	}

	logger.Info("redis image cache connected", zap.String("addr", config.Addr))

	return &Redis{
		client: client,
		config: config,
		logger: logger.With(zap.String("component", "redis_cache")),
	}, nil
}

// Get fetches key from redis. Errors other than a miss are logged.
func (r *Redis) Get(key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.OpTimeout)
	defer cancel()

	data, err := r.client.Get(ctx, r.config.KeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		r.logger.Warn("redis cache get failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return data, len(data) > 0
}

// Put stores data under key with the configured TTL.
func (r *Redis) Put(key string, data []byte) {
	if len(data) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.config.OpTimeout)
	defer cancel()

	if err := r.client.Set(ctx, r.config.KeyPrefix+key, data, r.config.TTL).Err(); err != nil {
		r.logger.Warn("redis cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// ClearMemory is a no-op: redis memory is managed by the server.
func (r *Redis) ClearMemory() {}

// Close closes the redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}

var _ Cache = (*Redis)(nil)
