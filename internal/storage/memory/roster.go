package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/cory-johannsen/skirmish/internal/game/authz"
	"github.com/cory-johannsen/skirmish/internal/game/combat"
)

// PutGame creates or replaces a game record.
func (s *Store) PutGame(g Game) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[g.ID] = g
}

// CreateGame creates or renames a game and sets its master.
func (s *Store) CreateGame(_ context.Context, id, name, masterID string) error {
	s.PutGame(Game{ID: id, Name: name, MasterID: masterID})
	return nil
}

// SetMaster assigns the game's master.
func (s *Store) SetMaster(_ context.Context, gameID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[gameID]
	if !ok {
		return authz.ErrGameNotFound
	}
	g.MasterID = userID
	s.games[gameID] = g
	return nil
}

// MasterOf implements authz.Games.
func (s *Store) MasterOf(_ context.Context, gameID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.games[gameID]
	if !ok {
		return "", authz.ErrGameNotFound
	}
	return g.MasterID, nil
}

// PutCombatant adds or replaces a roster member.
//
// Precondition: c.Kind is valid and c.ID is non-empty.
func (s *Store) PutCombatant(c combat.Combatant) error {
	if !c.Kind.Valid() || c.ID == "" {
		return fmt.Errorf("invalid combatant %s %q", c.Kind, c.ID)
	}
	if c.Status == "" {
		c.Status = combat.StatusActive
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.combatants[combat.Ref{Kind: c.Kind, ID: c.ID}] = c
	return nil
}

// AddCombatant inserts a roster member into an existing game.
//
// Postcondition: Returns authz.ErrGameNotFound when the game does not exist.
func (s *Store) AddCombatant(_ context.Context, c combat.Combatant) error {
	s.mu.RLock()
	_, ok := s.games[c.GameID]
	s.mu.RUnlock()
	if !ok {
		return authz.ErrGameNotFound
	}
	return s.PutCombatant(c)
}

// Get implements combat.Roster.
func (s *Store) Get(_ context.Context, ref combat.Ref) (combat.Combatant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.combatants[ref]
	if !ok {
		return combat.Combatant{}, combat.ErrNotFound
	}
	return c, nil
}

// UpdateHealth implements combat.Roster.
func (s *Store) UpdateHealth(_ context.Context, c combat.Combatant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref := combat.Ref{Kind: c.Kind, ID: c.ID}
	cur, ok := s.combatants[ref]
	if !ok {
		return combat.ErrNotFound
	}
	cur.CurrentHP = c.CurrentHP
	cur.Status = c.Status
	s.combatants[ref] = cur
	return nil
}

// Delete implements combat.Roster.
func (s *Store) Delete(_ context.Context, ref combat.Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.combatants[ref]; !ok {
		return combat.ErrNotFound
	}
	delete(s.combatants, ref)
	return nil
}

// ListCombatants returns the game's players then NPCs, each ordered by name.
func (s *Store) ListCombatants(_ context.Context, gameID string) ([]combat.Combatant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]combat.Combatant, 0)
	for _, c := range s.combatants {
		if c.GameID == gameID {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b combat.Combatant) int {
		if c := strings.Compare(string(b.Kind), string(a.Kind)); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out, nil
}
