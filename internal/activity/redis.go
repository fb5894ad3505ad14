package activity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisFeed keeps each game's feed in a Redis list trimmed to a fixed length,
// so every server process sees the same history.
type RedisFeed struct {
	rdb   *redis.Client
	limit int64
}

// NewRedisFeed creates a RedisFeed keeping at most limit items per game.
//
// Precondition: rdb must be non-nil; limit >= 1.
func NewRedisFeed(rdb *redis.Client, limit int) *RedisFeed {
	return &RedisFeed{rdb: rdb, limit: int64(limit)}
}

func feedKey(gameID string) string { return "activity:" + gameID }

// Append implements Feed.
func (f *RedisFeed) Append(ctx context.Context, item Item) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encoding activity item: %w", err)
	}
	key := feedKey(item.GameID)
	_, err = f.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, key, data)
		p.LTrim(ctx, key, -f.limit, -1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("pushing to redis list %q: %w", key, err)
	}
	return nil
}

// Recent implements Feed.
func (f *RedisFeed) Recent(ctx context.Context, gameID string, n int) ([]Item, error) {
	if n <= 0 || int64(n) > f.limit {
		n = int(f.limit)
	}
	raw, err := f.rdb.LRange(ctx, feedKey(gameID), int64(-n), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading redis list %q: %w", feedKey(gameID), err)
	}
	out := make([]Item, 0, len(raw))
	for _, r := range raw {
		var it Item
		if err := json.Unmarshal([]byte(r), &it); err != nil {
			return nil, fmt.Errorf("decoding activity item: %w", err)
		}
		out = append(out, it)
	}
	return out, nil
}
