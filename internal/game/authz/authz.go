// Package authz enforces who may drive an encounter: players act on their
// own turns and the game's master runs NPC turns and confirms hits.
package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/cory-johannsen/skirmish/internal/game/combat"
	"github.com/cory-johannsen/skirmish/internal/game/encounter"
)

var (
	ErrGameNotFound = errors.New("authz: game not found")
	ErrNotMaster    = errors.New("authz: only the game master may do this")
	ErrOutOfTurn    = errors.New("authz: it is not your turn")
	ErrNotOwner     = errors.New("authz: participant is controlled by someone else")
)

// Games reads session-level facts about a game.
type Games interface {
	// MasterOf returns the master's user ID or ErrGameNotFound.
	MasterOf(ctx context.Context, gameID string) (string, error)
}

// Checker answers authorization questions against the game and roster stores.
type Checker struct {
	games  Games
	roster combat.Roster
}

// NewChecker creates a Checker.
//
// Precondition: games and roster must be non-nil.
func NewChecker(games Games, roster combat.Roster) *Checker {
	return &Checker{games: games, roster: roster}
}

// IsMaster reports whether userID is gameID's master.
func (c *Checker) IsMaster(ctx context.Context, gameID, userID string) (bool, error) {
	master, err := c.games.MasterOf(ctx, gameID)
	if err != nil {
		return false, err
	}
	return master != "" && master == userID, nil
}

// RequireMaster returns ErrNotMaster unless userID is gameID's master.
func (c *Checker) RequireMaster(ctx context.Context, gameID, userID string) error {
	ok, err := c.IsMaster(ctx, gameID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotMaster
	}
	return nil
}

// RequireController checks that userID controls the participant: the master
// controls every NPC and may stand in for any player, a player controls only
// characters they own.
func (c *Checker) RequireController(ctx context.Context, gameID, userID string, ref combat.Ref) error {
	master, err := c.IsMaster(ctx, gameID, userID)
	if err != nil {
		return err
	}
	if master {
		return nil
	}
	if ref.Kind != combat.KindPlayer {
		return ErrNotMaster
	}
	cb, err := c.roster.Get(ctx, ref)
	if err != nil {
		return fmt.Errorf("loading participant %q: %w", ref.ID, err)
	}
	if cb.OwnerID != userID {
		return ErrNotOwner
	}
	return nil
}

// RequireTurn checks that userID may act for the participant whose turn it
// currently is in snap.
//
// Postcondition: Returns ErrOutOfTurn when the current participant belongs
// to someone else, or encounter.ErrNoTurnOrder when nobody is ordered.
func (c *Checker) RequireTurn(ctx context.Context, gameID, userID string, snap encounter.Snapshot) error {
	current, ok := snap.Current()
	if !ok {
		return encounter.ErrNoTurnOrder
	}
	err := c.RequireController(ctx, gameID, userID, RefOf(current))
	if errors.Is(err, ErrNotMaster) || errors.Is(err, ErrNotOwner) {
		return ErrOutOfTurn
	}
	return err
}

// RefOf maps an initiative entry onto its roster reference.
func RefOf(e encounter.Entry) combat.Ref {
	kind := combat.KindNPC
	if e.ParticipantType == encounter.ParticipantPlayer {
		kind = combat.KindPlayer
	}
	return combat.Ref{Kind: kind, ID: e.ParticipantID}
}
