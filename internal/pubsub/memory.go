package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/zap"
)

// MemoryBus is an in-process Bus backed by watermill's GoChannel. It suits a
// single server process and tests.
type MemoryBus struct {
	ch     *gochannel.GoChannel
	logger *zap.Logger
}

// NewMemoryBus creates a MemoryBus.
//
// Precondition: logger must be non-nil.
func NewMemoryBus(logger *zap.Logger) *MemoryBus {
	ch := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
	}, NewZapAdapter(logger))
	return &MemoryBus{ch: ch, logger: logger}
}

// Publish implements Bus.
func (b *MemoryBus) Publish(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding envelope: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.SetContext(ctx)
	return b.ch.Publish(ChannelName(env.GameID), msg)
}

// Subscribe implements Bus.
func (b *MemoryBus) Subscribe(ctx context.Context, gameID string, h Handler) error {
	msgs, err := b.ch.Subscribe(ctx, ChannelName(gameID))
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", gameID, err)
	}
	go func() {
		for msg := range msgs {
			var env Envelope
			if err := json.Unmarshal(msg.Payload, &env); err != nil {
				b.logger.Warn("dropping malformed envelope",
					zap.String("game_id", gameID),
					zap.String("msg_id", msg.UUID),
					zap.Error(err),
				)
				msg.Ack()
				continue
			}
			h(ctx, env)
			msg.Ack()
		}
	}()
	return nil
}

// Close implements Bus.
func (b *MemoryBus) Close() error {
	return b.ch.Close()
}

// zapAdapter lets watermill log through zap.
type zapAdapter struct {
	logger *zap.Logger
}

// NewZapAdapter wraps logger as a watermill.LoggerAdapter.
func NewZapAdapter(logger *zap.Logger) watermill.LoggerAdapter {
	return &zapAdapter{logger: logger.Named("watermill")}
}

func (z *zapAdapter) Error(msg string, err error, fields watermill.LogFields) {
	z.logger.Error(msg, append(zapFields(fields), zap.Error(err))...)
}

func (z *zapAdapter) Info(msg string, fields watermill.LogFields) {
	z.logger.Info(msg, zapFields(fields)...)
}

func (z *zapAdapter) Debug(msg string, fields watermill.LogFields) {
	z.logger.Debug(msg, zapFields(fields)...)
}

func (z *zapAdapter) Trace(msg string, fields watermill.LogFields) {
	z.logger.Debug(msg, zapFields(fields)...)
}

func (z *zapAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &zapAdapter{logger: z.logger.With(zapFields(fields)...)}
}

func zapFields(fields watermill.LogFields) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}
