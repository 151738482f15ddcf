package database

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/synaptica-ai/radiology-console/pkg/common/config"
	"github.com/synaptica-ai/radiology-console/pkg/common/logger"
)

var (
	redisMu     sync.Mutex
	redisClient *redis.Client
)

// RedisOptions keeps timeouts short: the client only backs the report
// cache, and a slow cache must fall through to the repository quickly.
func RedisOptions(cfg *config.Config) *redis.Options {
	return &redis.Options{
		Addr:         net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
		MaxRetries:   1,
	}
}

// GetRedis returns the shared client, creating it on first use. A failed
// ping is logged, not fatal: the cache treats every Redis error as a miss.
func GetRedis(cfg *config.Config) *redis.Client {
	redisMu.Lock()
	defer redisMu.Unlock()
	if redisClient != nil {
		return redisClient
	}

	opts := RedisOptions(cfg)
	redisClient = redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout)
	defer cancel()

	log := logger.Log.WithField("addr", opts.Addr)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.WithError(err).Warn("Redis unreachable, report cache will pass through")
	} else {
		log.Info("Connected to Redis")
	}
	return redisClient
}

// CloseRedis closes the shared client; a later GetRedis opens a new one.
func CloseRedis() error {
	redisMu.Lock()
	defer redisMu.Unlock()
	if redisClient == nil {
		return nil
	}
	err := redisClient.Close()
	redisClient = nil
	return err
}
