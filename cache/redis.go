package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nick-seward/vibe-dj-sub000/config"
	"github.com/nick-seward/vibe-dj-sub000/logger"
)

// RedisClient is the shared redis client; nil when redis is not configured.
// Redis only backs the recent-playlist cache, so everything else must work
// without it.
var RedisClient *redis.Client

// ConnectRedis initializes the redis connection when REDIS_HOST is set.
// Returns false when redis is disabled or unreachable.
func ConnectRedis(cfg *config.Config) bool {
	if cfg.RedisHost == "" {
		return false
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, playlist cache disabled", logger.ErrorField(err))
		_ = client.Close()
		return false
	}

	RedisClient = client
	logger.Info("connected to redis", logger.String("addr", client.Options().Addr))
	return true
}

// CloseRedis closes the redis connection if one was established.
func CloseRedis() error {
	if RedisClient == nil {
		return nil
	}
	return RedisClient.Close()
}
