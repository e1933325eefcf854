// Package notify forwards change notifications to other processes.
package notify

import (
	"context"

	"github.com/go-redis/redis/v8"

	"github.com/tofu-suite/tofu/internal/application/events"
	"github.com/tofu-suite/tofu/internal/infrastructure/logger"
)

const relayBuffer = 64

// RedisRelay publishes the name of every changed section on a Redis
// channel, so other Tofu processes sharing the document can reload.
type RedisRelay struct {
	client  *redis.Client
	channel string
	bus     *events.Bus
	logger  *logger.Logger
}

// NewRedisRelay creates a relay from bus to channel
func NewRedisRelay(client *redis.Client, channel string, bus *events.Bus, log *logger.Logger) *RedisRelay {
	if log == nil {
		log = logger.NewNop()
	}
	return &RedisRelay{
		client:  client,
		channel: channel,
		bus:     bus,
		logger:  log.WithComponent("redis-relay"),
	}
}

// Channel returns the Redis channel name
func (r *RedisRelay) Channel() string { return r.channel }

// Run forwards notifications until ctx is done. Events arriving faster than
// Redis accepts them are dropped by the bus.
func (r *RedisRelay) Run(ctx context.Context) error {
	sections, unsubscribe := r.bus.SubscribeChan(relayBuffer)
	defer unsubscribe()

	r.logger.Infow("Relaying change notifications", "channel", r.channel)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case section, ok := <-sections:
			if !ok {
				return nil
			}
			if err := r.client.Publish(ctx, r.channel, section.String()).Err(); err != nil {
				r.logger.Warnw("Failed to relay change notification", "section", section, "error", err)
			}
		}
	}
}
