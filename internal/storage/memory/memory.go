// Package memory provides in-process implementations of every store the
// engine uses. It backs tests and single-process development servers; all
// data is lost on exit.
package memory

import (
	"sync"

	"github.com/cory-johannsen/skirmish/internal/game/combat"
	"github.com/cory-johannsen/skirmish/internal/game/encounter"
)

// Store is a mutex-guarded in-memory database.
type Store struct {
	mu         sync.RWMutex
	games      map[string]Game
	combatants map[combat.Ref]combat.Combatant
	encounters map[string]encounter.Encounter
	entries    map[string]encounter.Entry
	logs       map[string][]combat.LogEntry
	actions    map[string]combat.Action
}

// Game is the session record the engine reads the master from.
type Game struct {
	ID       string
	Name     string
	MasterID string
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		games:      make(map[string]Game),
		combatants: make(map[combat.Ref]combat.Combatant),
		encounters: make(map[string]encounter.Encounter),
		entries:    make(map[string]encounter.Entry),
		logs:       make(map[string][]combat.LogEntry),
		actions:    make(map[string]combat.Action),
	}
}
