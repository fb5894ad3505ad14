// Package importer seeds games, their rosters and their move presets into a
// store. Runs are idempotent: combatants and moves that already exist are
// left untouched.
package importer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/skirmish/internal/game/combat"
)

// Games creates game records.
type Games interface {
	CreateGame(ctx context.Context, id, name, masterID string) error
}

// Roster inserts and reads combatants.
type Roster interface {
	AddCombatant(ctx context.Context, c combat.Combatant) error
	Get(ctx context.Context, ref combat.Ref) (combat.Combatant, error)
}

// Actions creates and lists a game's moves.
type Actions interface {
	CreateAction(ctx context.Context, a combat.Action) error
	ListActions(ctx context.Context, gameID string) ([]combat.Action, error)
}

// Summary counts what a run wrote.
type Summary struct {
	Games      int
	Combatants int
	Actions    int
	Skipped    int
	Elapsed    time.Duration
}

// Importer writes a Manifest into a store.
type Importer struct {
	games   Games
	roster  Roster
	actions Actions
	logger  *zap.Logger
}

// New constructs an Importer.
//
// Precondition: every argument must be non-nil.
// Postcondition: returns a non-nil Importer.
func New(games Games, roster Roster, actions Actions, logger *zap.Logger) *Importer {
	return &Importer{games: games, roster: roster, actions: actions, logger: logger}
}

// Run creates each game, adds its combatants at full health and installs
// the selected presets.
//
// Precondition: m.Validate() == nil; presets are validated actions.
// Postcondition: Returns the counts written, or the first store error.
func (imp *Importer) Run(ctx context.Context, m Manifest, presets []combat.Action) (Summary, error) {
	start := time.Now()
	var sum Summary
	for _, g := range m.Games {
		name := g.Name
		if name == "" {
			name = g.ID
		}
		if err := imp.games.CreateGame(ctx, g.ID, name, g.Master); err != nil {
			return sum, fmt.Errorf("creating game %q: %w", g.ID, err)
		}
		sum.Games++

		for _, c := range combatantsOf(g) {
			added, err := imp.addCombatant(ctx, c)
			if err != nil {
				return sum, err
			}
			if added {
				sum.Combatants++
			} else {
				sum.Skipped++
			}
		}

		added, skipped, err := imp.installMoves(ctx, g, presets)
		if err != nil {
			return sum, err
		}
		sum.Actions += added
		sum.Skipped += skipped

		imp.logger.Info("game imported",
			zap.String("game_id", g.ID),
			zap.String("master_id", g.Master),
			zap.Int("players", len(g.Players)),
			zap.Int("npcs", len(g.NPCs)),
		)
	}
	sum.Elapsed = time.Since(start)
	return sum, nil
}

func combatantsOf(g GameSpec) []combat.Combatant {
	out := make([]combat.Combatant, 0, len(g.Players)+len(g.NPCs))
	for _, p := range g.Players {
		out = append(out, combat.Combatant{
			ID: p.ID, GameID: g.ID, Kind: combat.KindPlayer, Name: p.Name, OwnerID: p.Owner,
			MaxHP: p.MaxHP, CurrentHP: p.MaxHP, Status: combat.StatusActive,
		})
	}
	for _, n := range g.NPCs {
		out = append(out, combat.Combatant{
			ID: n.ID, GameID: g.ID, Kind: combat.KindNPC, Name: n.Name,
			MaxHP: n.MaxHP, CurrentHP: n.MaxHP, Status: combat.StatusActive,
		})
	}
	return out
}

func (imp *Importer) addCombatant(ctx context.Context, c combat.Combatant) (bool, error) {
	ref := combat.Ref{Kind: c.Kind, ID: c.ID}
	_, err := imp.roster.Get(ctx, ref)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, combat.ErrNotFound) {
		return false, fmt.Errorf("looking up %s %q: %w", c.Kind, c.ID, err)
	}
	if err := imp.roster.AddCombatant(ctx, c); err != nil {
		return false, fmt.Errorf("adding %s %q: %w", c.Kind, c.ID, err)
	}
	return true, nil
}

// installMoves adds presets whose name the game does not already use.
func (imp *Importer) installMoves(ctx context.Context, g GameSpec, presets []combat.Action) (added, skipped int, err error) {
	existing, err := imp.actions.ListActions(ctx, g.ID)
	if err != nil {
		return 0, 0, fmt.Errorf("listing actions for %q: %w", g.ID, err)
	}
	names := make(map[string]bool, len(existing))
	for _, a := range existing {
		names[a.Name] = true
	}
	for _, p := range presets {
		if len(g.Moves) > 0 && !slices.Contains(g.Moves, p.Name) {
			continue
		}
		if names[p.Name] {
			skipped++
			continue
		}
		a := p
		a.ID = uuid.Must(uuid.NewV7()).String()
		a.GameID = g.ID
		if err := imp.actions.CreateAction(ctx, a); err != nil {
			return added, skipped, fmt.Errorf("creating action %q for %q: %w", a.Name, g.ID, err)
		}
		names[a.Name] = true
		added++
	}
	return added, skipped, nil
}
