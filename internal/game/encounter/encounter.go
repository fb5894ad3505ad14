// Package encounter implements the encounter lifecycle state machine and the
// turn sequencer that walks participants through rounds in initiative order.
package encounter

import (
	"errors"
	"time"
)

// Status is the lifecycle state of an Encounter.
type Status string

const (
	StatusSetup    Status = "setup"
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
)

// Valid reports whether s is a recognised status.
func (s Status) Valid() bool {
	switch s {
	case StatusSetup, StatusActive, StatusFinished:
		return true
	}
	return false
}

// Open reports whether an encounter in this status counts against the
// one-open-encounter-per-game invariant.
func (s Status) Open() bool {
	return s == StatusSetup || s == StatusActive
}

// ParticipantType distinguishes player-controlled from master-controlled combatants.
type ParticipantType string

const (
	ParticipantPlayer ParticipantType = "player"
	ParticipantNPC    ParticipantType = "npc"
)

// Valid reports whether t is a recognised participant type.
func (t ParticipantType) Valid() bool {
	return t == ParticipantPlayer || t == ParticipantNPC
}

// Sentinel errors returned by the state machine and its stores.
var (
	ErrNotFound             = errors.New("encounter: not found")
	ErrEncounterExists      = errors.New("encounter: an open encounter already exists for this game")
	ErrInvalidTransition    = errors.New("encounter: invalid status transition")
	ErrFinished             = errors.New("encounter: encounter is finished")
	ErrNotInSetup           = errors.New("encounter: encounter is not in setup")
	ErrNotActive            = errors.New("encounter: encounter is not active")
	ErrNotReady             = errors.New("encounter: not every participant has an initiative and turn order")
	ErrNoTurnOrder          = errors.New("encounter: no participant has a turn order")
	ErrInvalidInitiative    = errors.New("encounter: initiative must be a d20 result between 1 and 20")
	ErrInvalidParticipant   = errors.New("encounter: invalid participant")
	ErrDuplicateParticipant = errors.New("encounter: participant already in encounter")
	ErrStaleWrite           = errors.New("encounter: stale write rejected, encounter changed concurrently")
)

// Encounter is one combat instance within a game.
//
// Invariant: CurrentTurn is 0 until activation and 1-indexed over the turn
// order afterwards. CurrentRound starts at 1. Version increases by one on
// every persisted mutation.
type Encounter struct {
	ID           string
	GameID       string
	Name         string
	Status       Status
	CurrentTurn  int
	CurrentRound int
	CreatedBy    string
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Entry is one participant's initiative record in an encounter.
//
// Invariant: TurnOrder is nil until turn order is calculated and then forms a
// dense 1..N ranking across all ordered entries.
type Entry struct {
	ID              string
	EncounterID     string
	ParticipantType ParticipantType
	ParticipantID   string
	Initiative      *int
	TurnOrder       *int
	HasActed        bool
	CreatedAt       time.Time
}

// Rolled reports whether the entry has an initiative value.
func (e Entry) Rolled() bool { return e.Initiative != nil }

// Ordered reports whether the entry participates in the turn order.
func (e Entry) Ordered() bool { return e.TurnOrder != nil }

// Snapshot is an encounter together with all of its entries, ordered by
// creation time.
type Snapshot struct {
	Encounter Encounter
	Entries   []Entry
}

// Entry returns the entry with the given ID.
func (s Snapshot) Entry(id string) (Entry, bool) {
	for _, e := range s.Entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// Current returns the participant whose turn it is.
//
// Postcondition: Returns (entry, true) only when at least one entry is ordered.
func (s Snapshot) Current() (Entry, bool) {
	return WhoseTurn(s.Encounter, s.Entries)
}

func intPtr(v int) *int { return &v }
