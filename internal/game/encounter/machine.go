package encounter

import (
	"fmt"
	"slices"
	"strings"
)

// transitions lists every permitted lifecycle edge. A setup encounter may be
// finished directly, which abandons it.
var transitions = map[Status][]Status{
	StatusSetup:  {StatusActive, StatusFinished},
	StatusActive: {StatusFinished},
}

// CanTransition reports whether an encounter may move from one status to another.
func CanTransition(from, to Status) bool {
	return slices.Contains(transitions[from], to)
}

// NewEncounter builds a fresh setup-status encounter.
//
// Postcondition: Status == StatusSetup, CurrentTurn == 0, CurrentRound == 1, Version == 1.
func NewEncounter(id, gameID, name, createdBy string) Encounter {
	return Encounter{
		ID:           id,
		GameID:       gameID,
		Name:         strings.TrimSpace(name),
		Status:       StatusSetup,
		CurrentTurn:  0,
		CurrentRound: 1,
		CreatedBy:    createdBy,
		Version:      1,
	}
}

// CalculateTurnOrder ranks rolled entries by initiative, highest first. Ties go
// to the entry created earlier; identical timestamps fall back to ID order.
// Unrolled entries get a nil TurnOrder.
//
// Postcondition: the returned slice has the same entries in the same order as
// the input; ordered entries hold a dense 1..N ranking. Calling it again on its
// own output yields the same ranking.
func CalculateTurnOrder(entries []Entry) []Entry {
	out := slices.Clone(entries)
	rolled := make([]int, 0, len(out))
	for i := range out {
		out[i].TurnOrder = nil
		if out[i].Rolled() {
			rolled = append(rolled, i)
		}
	}
	slices.SortStableFunc(rolled, func(a, b int) int {
		ea, eb := out[a], out[b]
		if *ea.Initiative != *eb.Initiative {
			return *eb.Initiative - *ea.Initiative
		}
		if c := ea.CreatedAt.Compare(eb.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(ea.ID, eb.ID)
	})
	for rank, idx := range rolled {
		out[idx].TurnOrder = intPtr(rank + 1)
	}
	return out
}

// Activate moves a setup encounter into play.
//
// Precondition: enc is in setup; every entry has rolled and has a turn order.
// Postcondition: Status == StatusActive, CurrentTurn == 1, CurrentRound == 1,
// and every returned entry has HasActed == false.
func Activate(enc *Encounter, entries []Entry) ([]Entry, error) {
	if err := checkTransition(enc.Status, StatusActive); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: encounter has no participants", ErrNotReady)
	}
	out := slices.Clone(entries)
	for i := range out {
		if !out[i].Rolled() || !out[i].Ordered() {
			return nil, ErrNotReady
		}
		out[i].HasActed = false
	}
	enc.Status = StatusActive
	enc.CurrentTurn = 1
	enc.CurrentRound = 1
	return out, nil
}

// Finish ends an encounter. It is terminal.
func Finish(enc *Encounter) error {
	if err := checkTransition(enc.Status, StatusFinished); err != nil {
		return err
	}
	enc.Status = StatusFinished
	return nil
}

func checkTransition(from, to Status) error {
	if from == StatusFinished {
		return ErrFinished
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
