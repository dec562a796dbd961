package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	domainRAG "github.com/ragchat/backend/internal/domain/rag"
	"github.com/ragchat/backend/internal/infrastructure/config"
	"github.com/ragchat/backend/internal/infrastructure/log"
)

// NewTurnLocker 配置了 Redis 时使用分布式锁，否则使用进程内锁
func NewTurnLocker(cfg *config.RedisConfig) (domainRAG.TurnLocker, func(), error) {
	logger := log.NewModuleLogger("lock", "factory")

	if cfg.Addr == "" {
		logger.Debug("Redis not configured, using in-process turn lock")
		return NewLocalLocker(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Using Redis turn lock", "addr", cfg.Addr, "ttl", cfg.LockTTL)
	cleanup := func() {
		client.Close()
	}
	return NewRedisLocker(client, cfg.LockTTL), cleanup, nil
}

// ProviderSet 锁 ProviderSet
var ProviderSet = wire.NewSet(
	NewTurnLocker,
)
