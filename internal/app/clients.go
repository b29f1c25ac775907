package app

import (
	"context"
	"fmt"

	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/coursetrack-backend/internal/clients/redis"
	"github.com/yungbote/coursetrack-backend/internal/platform/keylock"
	"github.com/yungbote/coursetrack-backend/internal/platform/logger"
	"github.com/yungbote/coursetrack-backend/internal/temporalx"
)

type Clients struct {
	// Locks is the redis locker when REDIS_ADDR is set, otherwise an in-process one.
	Locks       keylock.Locker
	RedisLocker *redis.Locker
	// Temporal is nil when TEMPORAL_ADDRESS is unset.
	Temporal temporalsdkclient.Client
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	// Redis
	if cfg.RedisAddr != "" {
		locker, err := redis.NewLocker(ctx, log, redis.LockConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.LockTTL,
		})
		if err != nil {
			return Clients{}, fmt.Errorf("init redis locker: %w", err)
		}
		out.RedisLocker = locker
		out.Locks = locker
	} else {
		log.Warn("REDIS_ADDR not set; progress locks are process-local")
		out.Locks = keylock.NewLocal()
	}

	// Temporal
	if cfg.Temporal.Enabled() {
		tc, err := temporalx.Dial(ctx, log, cfg.Temporal)
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init temporal client: %w", err)
		}
		out.Temporal = tc
	}
	return out, nil
}

func (c Clients) Close() {
	if c.Temporal != nil {
		c.Temporal.Close()
	}
	if c.RedisLocker != nil {
		_ = c.RedisLocker.Close()
	}
}
