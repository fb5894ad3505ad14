package memory

import (
	"context"
	"slices"
	"strings"

	"github.com/cory-johannsen/skirmish/internal/game/combat"
)

// AppendLog implements combat.LogStore.
func (s *Store) AppendLog(_ context.Context, e combat.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[e.EncounterID] = append(s.logs[e.EncounterID], e)
	return nil
}

// ListLogs implements combat.LogStore.
func (s *Store) ListLogs(_ context.Context, encounterID string, limit int) ([]combat.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.logs[encounterID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return slices.Clone(all), nil
}

// CreateAction implements combat.ActionStore.
func (s *Store) CreateAction(_ context.Context, a combat.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions[a.ID] = a
	return nil
}

// GetAction implements combat.ActionStore.
func (s *Store) GetAction(_ context.Context, id string) (combat.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.actions[id]
	if !ok {
		return combat.Action{}, combat.ErrActionNotFound
	}
	return a, nil
}

// ListActions implements combat.ActionStore.
func (s *Store) ListActions(_ context.Context, gameID string) ([]combat.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]combat.Action, 0)
	for _, a := range s.actions {
		if a.GameID == gameID {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b combat.Action) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}
