package activity

import (
	"context"
	"slices"
	"sync"
)

// MemoryFeed is an in-process Feed for single-server deployments and tests.
type MemoryFeed struct {
	mu    sync.Mutex
	limit int
	items map[string][]Item
}

// NewMemoryFeed creates a MemoryFeed keeping at most limit items per game.
func NewMemoryFeed(limit int) *MemoryFeed {
	return &MemoryFeed{limit: max(1, limit), items: make(map[string][]Item)}
}

// Append implements Feed.
func (f *MemoryFeed) Append(_ context.Context, item Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := append(f.items[item.GameID], item)
	if len(list) > f.limit {
		list = slices.Clone(list[len(list)-f.limit:])
	}
	f.items[item.GameID] = list
	return nil
}

// Recent implements Feed.
func (f *MemoryFeed) Recent(_ context.Context, gameID string, n int) ([]Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.items[gameID]
	if n > 0 && len(list) > n {
		list = list[len(list)-n:]
	}
	return slices.Clone(list), nil
}
