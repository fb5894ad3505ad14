package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBus is a Bus over Redis PUBLISH/SUBSCRIBE, shared by every server
// process connected to the same Redis.
type RedisBus struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewRedisBus creates a RedisBus over an already-connected client.
//
// Precondition: rdb and logger must be non-nil.
func NewRedisBus(rdb *redis.Client, logger *zap.Logger) *RedisBus {
	return &RedisBus{rdb: rdb, logger: logger}
}

// Publish implements Bus.
func (b *RedisBus) Publish(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding envelope: %w", err)
	}
	if err := b.rdb.Publish(ctx, ChannelName(env.GameID), data).Err(); err != nil {
		return fmt.Errorf("publishing to redis channel %q: %w", ChannelName(env.GameID), err)
	}
	return nil
}

// Subscribe implements Bus.
func (b *RedisBus) Subscribe(ctx context.Context, gameID string, h Handler) error {
	channel := ChannelName(gameID)
	sub := b.rdb.Subscribe(ctx, channel)
	// Receive blocks until Redis acknowledges the subscription so messages
	// published right after Subscribe returns are not missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribing to redis channel %q: %w", channel, err)
	}
	msgs := sub.Channel()
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
					b.logger.Warn("dropping malformed envelope",
						zap.String("channel", channel),
						zap.Error(err),
					)
					continue
				}
				h(ctx, env)
			}
		}
	}()
	return nil
}

// Close implements Bus. The Redis client is owned by the caller.
func (b *RedisBus) Close() error { return nil }
