package gameserver

import (
	"time"

	"github.com/cory-johannsen/skirmish/internal/game/combat"
	"github.com/cory-johannsen/skirmish/internal/game/encounter"
)

// EncounterView is the wire form of an encounter snapshot.
type EncounterView struct {
	ID           string      `json:"id"`
	GameID       string      `json:"game_id"`
	Name         string      `json:"name"`
	Status       string      `json:"status"`
	CurrentTurn  int         `json:"current_turn"`
	CurrentRound int         `json:"current_round"`
	CreatedBy    string      `json:"created_by"`
	Version      int64       `json:"version"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	CurrentEntry string      `json:"current_entry_id,omitempty"`
	Entries      []EntryView `json:"entries"`
}

// EntryView is the wire form of an initiative entry.
type EntryView struct {
	ID              string    `json:"id"`
	ParticipantType string    `json:"participant_type"`
	ParticipantID   string    `json:"participant_id"`
	Initiative      *int      `json:"initiative"`
	TurnOrder       *int      `json:"turn_order"`
	HasActed        bool      `json:"has_acted"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewEncounterView renders snap with its entries in turn order, unordered
// entries last.
func NewEncounterView(snap encounter.Snapshot) EncounterView {
	enc := snap.Encounter
	v := NewEncounterSummary(enc)
	if enc.Status == encounter.StatusActive {
		if cur, ok := snap.Current(); ok {
			v.CurrentEntry = cur.ID
		}
	}
	ordered := encounter.TurnOrdered(snap.Entries)
	seen := make(map[string]bool, len(ordered))
	v.Entries = make([]EntryView, 0, len(snap.Entries))
	for _, e := range ordered {
		seen[e.ID] = true
		v.Entries = append(v.Entries, newEntryView(e))
	}
	for _, e := range snap.Entries {
		if !seen[e.ID] {
			v.Entries = append(v.Entries, newEntryView(e))
		}
	}
	return v
}

// NewEncounterSummary renders an encounter without entries.
func NewEncounterSummary(enc encounter.Encounter) EncounterView {
	return EncounterView{
		ID:           enc.ID,
		GameID:       enc.GameID,
		Name:         enc.Name,
		Status:       string(enc.Status),
		CurrentTurn:  enc.CurrentTurn,
		CurrentRound: enc.CurrentRound,
		CreatedBy:    enc.CreatedBy,
		Version:      enc.Version,
		CreatedAt:    enc.CreatedAt,
		UpdatedAt:    enc.UpdatedAt,
	}
}

func newEntryView(e encounter.Entry) EntryView {
	return EntryView{
		ID:              e.ID,
		ParticipantType: string(e.ParticipantType),
		ParticipantID:   e.ParticipantID,
		Initiative:      e.Initiative,
		TurnOrder:       e.TurnOrder,
		HasActed:        e.HasActed,
		CreatedAt:       e.CreatedAt,
	}
}

// CombatantView is the wire form of a roster member.
type CombatantView struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	OwnerID   string `json:"owner_id,omitempty"`
	CurrentHP int    `json:"current_hp"`
	MaxHP     int    `json:"max_hp"`
	Status    string `json:"status"`
}

func NewCombatantView(c combat.Combatant) CombatantView {
	return CombatantView{
		ID:        c.ID,
		Kind:      string(c.Kind),
		Name:      c.Name,
		OwnerID:   c.OwnerID,
		CurrentHP: c.CurrentHP,
		MaxHP:     c.MaxHP,
		Status:    string(c.Status),
	}
}

// OutcomeView is the combat_resolved payload.
type OutcomeView struct {
	EncounterID string                `json:"encounter_id"`
	Expression  string                `json:"expression"`
	Rolls       []int                 `json:"rolls"`
	Modifier    int                   `json:"modifier"`
	Amount      int                   `json:"amount"`
	Critical    bool                  `json:"critical"`
	Fumble      bool                  `json:"fumble"`
	Targets     []combat.TargetDamage `json:"targets"`
}

// NewOutcomeView renders a resolved action.
func NewOutcomeView(encounterID string, out combat.Outcome) OutcomeView {
	return OutcomeView{
		EncounterID: encounterID,
		Expression:  out.Roll.Expression,
		Rolls:       out.Roll.Dice,
		Modifier:    out.Roll.Modifier,
		Amount:      out.Amount,
		Critical:    out.Critical,
		Fumble:      out.Fumble,
		Targets:     out.Breakdown,
	}
}
