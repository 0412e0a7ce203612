package database

import (
	"context"

	"fuzzrunner/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type RedisParams struct {
	fx.In

	Config *config.AppConfig
	Logger *zap.Logger
}

// NewRedisClient returns nil when REDIS_URL is unset or the server cannot be reached.
func NewRedisClient(p RedisParams) *redis.Client {
	if p.Config.RedisUrl == "" {
		p.Logger.Debug("REDIS_URL not set, campaign status will not be cached")
		return nil
	}

	client, err := newRedisClient(p.Config.RedisUrl)
	if err != nil {
		p.Logger.Error("Failed to create Redis client", zap.Error(err))
		return nil
	}

	p.Logger.Debug("Redis client created successfully")
	return client
}

func newRedisClient(redisUrl string) (*redis.Client, error) {
	options, err := redis.ParseURL(redisUrl)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(options)

	// Test the connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return client, nil
}
