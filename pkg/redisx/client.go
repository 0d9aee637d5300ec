// Package redisx constructs the shared Redis client backing the task
// queues, caches, and the result pub/sub channel.
package redisx

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/halton/ai-answer-ninja-sub000/pkg/config"
)

// NewClient creates a Redis client and verifies connectivity with a bounded
// ping. A refused connection at startup is fatal to the process, so the
// error is returned rather than retried.
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.StartupTimeout)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	slog.Info("Connected to Redis", "addr", cfg.Addr, "db", cfg.DB)
	return rdb, nil
}
