// Package combat resolves attacks and heals against roster combatants and
// records each resolved action in the combat log.
package combat

import (
	"context"
	"errors"
)

// Kind distinguishes player combatants from NPC combatants.
type Kind string

const (
	KindPlayer Kind = "player"
	KindNPC    Kind = "npc"
)

// Valid reports whether k is a recognised kind.
func (k Kind) Valid() bool { return k == KindPlayer || k == KindNPC }

// Status is a roster member's condition outside of hit points.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive" // unconscious
	StatusDead     Status = "dead"
)

// Sentinel errors.
var (
	ErrNoTargets        = errors.New("combat: at least one target is required")
	ErrTooManyTargets   = errors.New("combat: single-target action given more than one target")
	ErrInvalidAction    = errors.New("combat: invalid action definition")
	ErrInvalidAmount    = errors.New("combat: amount must not be negative")
	ErrNotFound         = errors.New("combat: combatant not found")
	ErrActionNotFound   = errors.New("combat: action not found")
	ErrHealingAction    = errors.New("combat: healing actions must be resolved with Heal")
	ErrNotHealingAction = errors.New("combat: damaging actions must be resolved with Execute")
	ErrPartiallyApplied = errors.New("combat: action applied to some targets only")
)

// Combatant is the roster view of one participant: a player character or an NPC.
type Combatant struct {
	ID     string
	GameID string
	Kind   Kind
	Name   string
	// OwnerID is the user controlling a player character; empty for NPCs.
	OwnerID   string
	MaxHP     int
	CurrentHP int
	Status    Status
}

// IsPlayer reports whether this combatant is a player character.
func (c *Combatant) IsPlayer() bool { return c.Kind == KindPlayer }

// IsDown reports whether the combatant can no longer fight: HP at zero, or a
// player that is unconscious or dead.
func (c *Combatant) IsDown() bool {
	if c.CurrentHP <= 0 {
		return true
	}
	return c.Kind == KindPlayer && (c.Status == StatusInactive || c.Status == StatusDead)
}

// ApplyDamage reduces CurrentHP by amount, flooring at zero.
//
// Precondition: amount >= 0.
// Postcondition: CurrentHP >= 0.
func (c *Combatant) ApplyDamage(amount int) {
	c.CurrentHP = max(0, c.CurrentHP-amount)
}

// ApplyHealing raises CurrentHP by amount, capped at MaxHP. Status is left
// untouched: healing never revives.
//
// Precondition: amount >= 0.
// Postcondition: CurrentHP <= MaxHP.
func (c *Combatant) ApplyHealing(amount int) {
	c.CurrentHP = min(c.MaxHP, c.CurrentHP+amount)
}

// Ref identifies a combatant on the roster.
type Ref struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
}

// Roster reads and writes roster combatants. It is owned by the character
// and NPC subsystems; combat only adjusts health and status.
type Roster interface {
	// Get returns the combatant or ErrNotFound.
	Get(ctx context.Context, ref Ref) (Combatant, error)
	// UpdateHealth persists CurrentHP and Status.
	UpdateHealth(ctx context.Context, c Combatant) error
	// Delete removes an NPC from the roster.
	Delete(ctx context.Context, ref Ref) error
}

// SideWiped reports whether either side of a fight is out: every NPC is gone
// or at zero HP, or every player is down. Missing NPCs (deleted on death)
// simply do not appear in combatants; npcsExpected tells SideWiped whether the
// encounter had any NPC entries at all.
func SideWiped(combatants []Combatant, playersExpected, npcsExpected bool) bool {
	playersUp, npcsUp := false, false
	for i := range combatants {
		c := &combatants[i]
		if c.IsDown() {
			continue
		}
		if c.IsPlayer() {
			playersUp = true
		} else {
			npcsUp = true
		}
	}
	return (npcsExpected && !npcsUp) || (playersExpected && !playersUp)
}
