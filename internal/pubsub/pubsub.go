// Package pubsub carries per-game broadcast events between clients. Delivery
// is best effort: publishing never waits for subscribers, messages published
// while nobody listens are lost, and there is no ordering across games.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
)

// Envelope is one event on a game channel.
type Envelope struct {
	Event   string          `json:"event"`
	GameID  string          `json:"game_id"`
	Sender  string          `json:"sender,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// Handler processes one envelope. Handlers run on the subscription's
// goroutine and must not block for long.
type Handler func(ctx context.Context, env Envelope)

// Bus publishes and subscribes to per-game channels.
type Bus interface {
	// Publish sends env to every current subscriber of env.GameID.
	Publish(ctx context.Context, env Envelope) error
	// Subscribe delivers every envelope of gameID's channel to h until ctx is
	// cancelled.
	Subscribe(ctx context.Context, gameID string, h Handler) error
	Close() error
}

// ChannelName is the broker channel for a game.
func ChannelName(gameID string) string {
	return "game:" + gameID
}

// NewEnvelope marshals payload into an envelope.
func NewEnvelope(gameID, event, sender string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encoding %s payload: %w", event, err)
	}
	return Envelope{Event: event, GameID: gameID, Sender: sender, Payload: data}, nil
}

// Publish is a convenience that builds the envelope and publishes it.
func Publish(ctx context.Context, bus Bus, gameID, event, sender string, payload any) error {
	env, err := NewEnvelope(gameID, event, sender, payload)
	if err != nil {
		return err
	}
	return bus.Publish(ctx, env)
}

// Decode unmarshals an envelope payload.
func Decode[T any](env Envelope) (T, error) {
	var v T
	if err := json.Unmarshal(env.Payload, &v); err != nil {
		return v, fmt.Errorf("decoding %s payload: %w", env.Event, err)
	}
	return v, nil
}

// On wraps h so it only sees envelopes of the given event.
func On(event string, h Handler) Handler {
	return func(ctx context.Context, env Envelope) {
		if env.Event == event {
			h(ctx, env)
		}
	}
}
