package memory

import (
	"context"
	"slices"
	"strings"

	"github.com/cory-johannsen/skirmish/internal/game/encounter"
)

func cloneEntry(e encounter.Entry) encounter.Entry {
	if e.Initiative != nil {
		v := *e.Initiative
		e.Initiative = &v
	}
	if e.TurnOrder != nil {
		v := *e.TurnOrder
		e.TurnOrder = &v
	}
	return e
}

// CreateEncounter implements encounter.Store.
func (s *Store) CreateEncounter(_ context.Context, enc encounter.Encounter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if enc.Status.Open() {
		for _, e := range s.encounters {
			if e.GameID == enc.GameID && e.Status.Open() {
				return encounter.ErrEncounterExists
			}
		}
	}
	s.encounters[enc.ID] = enc
	return nil
}

// GetEncounter implements encounter.Store.
func (s *Store) GetEncounter(_ context.Context, id string) (encounter.Encounter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	enc, ok := s.encounters[id]
	if !ok {
		return encounter.Encounter{}, encounter.ErrNotFound
	}
	return enc, nil
}

// OpenEncounter implements encounter.Store.
func (s *Store) OpenEncounter(_ context.Context, gameID string) (encounter.Encounter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.encounters {
		if e.GameID == gameID && e.Status.Open() {
			return e, nil
		}
	}
	return encounter.Encounter{}, encounter.ErrNotFound
}

// ListEncounters implements encounter.Store.
func (s *Store) ListEncounters(_ context.Context, gameID string) ([]encounter.Encounter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]encounter.Encounter, 0)
	for _, e := range s.encounters {
		if e.GameID == gameID {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b encounter.Encounter) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return out, nil
}

// GetEntry implements encounter.Store.
func (s *Store) GetEntry(_ context.Context, id string) (encounter.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return encounter.Entry{}, encounter.ErrNotFound
	}
	return cloneEntry(e), nil
}

// ListEntries implements encounter.Store.
func (s *Store) ListEntries(_ context.Context, encounterID string) ([]encounter.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]encounter.Entry, 0)
	for _, e := range s.entries {
		if e.EncounterID == encounterID {
			out = append(out, cloneEntry(e))
		}
	}
	slices.SortFunc(out, func(a, b encounter.Entry) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

// InsertEntry implements encounter.Store.
func (s *Store) InsertEntry(_ context.Context, enc encounter.Encounter, expectedVersion int64, entry encounter.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkVersion(enc.ID, expectedVersion); err != nil {
		return err
	}
	s.encounters[enc.ID] = enc
	s.entries[entry.ID] = cloneEntry(entry)
	return nil
}

// DeleteEntry implements encounter.Store.
func (s *Store) DeleteEntry(_ context.Context, enc encounter.Encounter, expectedVersion int64, entryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkVersion(enc.ID, expectedVersion); err != nil {
		return err
	}
	if e, ok := s.entries[entryID]; !ok || e.EncounterID != enc.ID {
		return encounter.ErrNotFound
	}
	s.encounters[enc.ID] = enc
	delete(s.entries, entryID)
	return nil
}

// Save implements encounter.Store.
func (s *Store) Save(_ context.Context, enc encounter.Encounter, expectedVersion int64, entries []encounter.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkVersion(enc.ID, expectedVersion); err != nil {
		return err
	}
	for _, e := range entries {
		if prev, ok := s.entries[e.ID]; !ok || prev.EncounterID != enc.ID {
			return encounter.ErrNotFound
		}
	}
	s.encounters[enc.ID] = enc
	for _, e := range entries {
		s.entries[e.ID] = cloneEntry(e)
	}
	return nil
}

func (s *Store) checkVersion(id string, expected int64) error {
	cur, ok := s.encounters[id]
	if !ok {
		return encounter.ErrNotFound
	}
	if cur.Version != expected {
		return encounter.ErrStaleWrite
	}
	return nil
}
