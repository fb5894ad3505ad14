package encounter

import (
	"cmp"
	"slices"
)

// Advance summarises one turn step.
type Advance struct {
	// Acted is the entry that just completed its turn.
	Acted Entry
	// Next is the entry whose turn it is now.
	Next Entry
	// RoundComplete is true when the step closed the round.
	RoundComplete bool
	// Round is the encounter's round after the step.
	Round int
}

// TurnOrdered returns the entries that have a turn order, sorted ascending by it.
func TurnOrdered(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Ordered() {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b Entry) int { return cmp.Compare(*a.TurnOrder, *b.TurnOrder) })
	return out
}

// WhoseTurn maps the 1-indexed CurrentTurn onto the turn-ordered entries.
// A CurrentTurn of 0 resolves to the first entry.
//
// Postcondition: Returns (entry, false) only when no entry is ordered.
func WhoseTurn(enc Encounter, entries []Entry) (Entry, bool) {
	ordered := TurnOrdered(entries)
	if len(ordered) == 0 {
		return Entry{}, false
	}
	idx := max(enc.CurrentTurn-1, 0)
	if idx >= len(ordered) {
		idx = len(ordered) - 1
	}
	return ordered[idx], true
}

// AdvanceTurn marks the current participant as having acted and moves the
// encounter on. The round closes only once every ordered entry has acted,
// regardless of position; HasActed is the source of truth, not CurrentTurn.
//
// Precondition: enc is active.
// Postcondition: on round completion every ordered entry has HasActed reset,
// CurrentTurn == 1 and CurrentRound is incremented; otherwise CurrentTurn moves
// to the next position, wrapping, whose entry has not yet acted this round.
func AdvanceTurn(enc *Encounter, entries []Entry) ([]Entry, Advance, error) {
	switch enc.Status {
	case StatusFinished:
		return nil, Advance{}, ErrFinished
	case StatusActive:
	default:
		return nil, Advance{}, ErrNotActive
	}
	current, ok := WhoseTurn(*enc, entries)
	if !ok {
		return nil, Advance{}, ErrNoTurnOrder
	}

	out := slices.Clone(entries)
	for i := range out {
		if out[i].ID == current.ID {
			out[i].HasActed = true
			current = out[i]
		}
	}

	allActed := true
	for _, e := range out {
		if !e.Ordered() {
			continue
		}
		if !e.HasActed {
			allActed = false
		}
	}

	adv := Advance{Acted: current}
	if allActed {
		for i := range out {
			if out[i].Ordered() {
				out[i].HasActed = false
			}
		}
		enc.CurrentTurn = 1
		enc.CurrentRound++
		adv.RoundComplete = true
	} else {
		enc.CurrentTurn = nextUnacted(enc.CurrentTurn, TurnOrdered(out))
	}
	adv.Round = enc.CurrentRound
	adv.Next, _ = WhoseTurn(*enc, out)
	return out, adv, nil
}

// nextUnacted returns the first position after turn, wrapping, whose entry
// has not acted.
//
// Precondition: some entry in ordered has not acted.
func nextUnacted(turn int, ordered []Entry) int {
	n := len(ordered)
	pos := min(max(turn, 1), n)
	for range n {
		pos = pos%n + 1
		if !ordered[pos-1].HasActed {
			break
		}
	}
	return pos
}

// Reorder ranks entries with CalculateTurnOrder. In an active encounter
// CurrentTurn follows the entry that held the turn, so a reinforcement
// ranked ahead of it does not hand the turn back to someone who has acted.
func Reorder(enc *Encounter, entries []Entry) []Entry {
	out := CalculateTurnOrder(entries)
	if enc.Status != StatusActive {
		return out
	}
	current, ok := WhoseTurn(*enc, entries)
	if !ok {
		return out
	}
	for i, e := range TurnOrdered(out) {
		if e.ID == current.ID {
			enc.CurrentTurn = i + 1
			break
		}
	}
	return out
}
