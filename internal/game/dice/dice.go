// Package dice provides the randomness abstraction and roll-result types
// used by the initiative and combat resolution engines.
package dice

import (
	"errors"
	"fmt"
)

// CriticalSides is the only die size that carries critical/fumble tags.
const CriticalSides = 20

// ErrInvalidDice is returned when a die size or die count is not positive.
var ErrInvalidDice = errors.New("dice: sides and count must be positive")

// Die is the result of rolling a single die.
//
// Invariant: 1 <= Value <= Sides. Critical and Fumble are only ever set when
// Sides == CriticalSides.
type Die struct {
	Sides    int
	Value    int
	Critical bool
	Fumble   bool
}

// Total is the result of summing a set of dice with a flat modifier.
type Total struct {
	// Sum is the sum of all die values plus the modifier.
	Sum int
	// Critical is true when any die in the set rolled a natural 20 on a d20.
	Critical bool
	// Fumble is true when any die in the set rolled a natural 1 on a d20.
	Fumble bool
}

// RollResult holds the full audit trail for a single dice roll evaluation.
//
// Postcondition: Total() == sum(Dice) + Modifier.
type RollResult struct {
	Expression string // notation, e.g. "2d6+3"
	Dice       []int  // individual die values before modifier
	Modifier   int
	Critical   bool
	Fumble     bool
}

// Total returns the sum of all die results plus the modifier.
func (r RollResult) Total() int {
	total := r.Modifier
	for _, d := range r.Dice {
		total += d
	}
	return total
}

// String returns a human-readable audit string in the format:
//
//	"2d6+3 → [4 5] +3 = 12"
//
// Precondition: r.Expression is non-empty.
func (r RollResult) String() string {
	if r.Expression == "" {
		panic("dice: RollResult.String() precondition violated: Expression must be non-empty")
	}
	return fmt.Sprintf("%s → %v %+d = %d", r.Expression, r.Dice, r.Modifier, r.Total())
}

// Source is the randomness provider for dice rolls.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
}
