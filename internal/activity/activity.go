// Package activity records the human-readable history of a game session:
// "Kara used Fireball on Goblin for 12 damage". Items are logged, broadcast
// on the game channel and kept in a capped per-game feed.
package activity

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/skirmish/internal/pubsub"
)

// Event is the pub/sub event name for activity items.
const Event = "activity"

// Item is one feed line.
type Item struct {
	GameID  string    `json:"game_id"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Feed stores the most recent items per game.
type Feed interface {
	Append(ctx context.Context, item Item) error
	// Recent returns up to n items, oldest first.
	Recent(ctx context.Context, gameID string, n int) ([]Item, error)
}

// Sink fans activity out to the log, the bus and the feed. Failures are
// logged and never returned: activity is a notification side effect.
type Sink struct {
	logger *zap.Logger
	bus    pubsub.Bus
	feed   Feed
	now    func() time.Time
}

// NewSink creates a Sink. bus and feed may be nil.
//
// Precondition: logger must be non-nil.
func NewSink(logger *zap.Logger, bus pubsub.Bus, feed Feed) *Sink {
	return &Sink{logger: logger.Named("activity"), bus: bus, feed: feed, now: time.Now}
}

// Emit records message for gameID.
func (s *Sink) Emit(ctx context.Context, gameID, message string) {
	item := Item{GameID: gameID, Message: message, At: s.now().UTC()}
	s.logger.Info(message, zap.String("game_id", gameID))

	if s.feed != nil {
		if err := s.feed.Append(ctx, item); err != nil {
			s.logger.Warn("appending activity", zap.String("game_id", gameID), zap.Error(err))
		}
	}
	if s.bus != nil {
		if err := pubsub.Publish(ctx, s.bus, gameID, Event, "", item); err != nil {
			s.logger.Warn("broadcasting activity", zap.String("game_id", gameID), zap.Error(err))
		}
	}
}

// Recent reads the feed. Without a feed it returns nothing.
func (s *Sink) Recent(ctx context.Context, gameID string, n int) ([]Item, error) {
	if s.feed == nil {
		return nil, nil
	}
	return s.feed.Recent(ctx, gameID, n)
}
