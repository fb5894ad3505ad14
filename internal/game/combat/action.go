package combat

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/cory-johannsen/skirmish/internal/game/dice"
)

// TargetType says how many targets an action may hit.
type TargetType string

const (
	TargetSingle   TargetType = "single"
	TargetMultiple TargetType = "multiple"
)

// AllowedDieSides lists the die sizes a master may use in an action definition.
var AllowedDieSides = []int{4, 6, 8, 12, 20}

// Action is a master-defined move: the dice it rolls and how many targets it hits.
type Action struct {
	ID         string     `yaml:"id" json:"id"`
	GameID     string     `yaml:"-" json:"game_id"`
	Name       string     `yaml:"name" json:"name"`
	DieSides   int        `yaml:"die_sides" json:"die_sides"`
	DieCount   int        `yaml:"die_count" json:"die_count"`
	Modifier   int        `yaml:"modifier" json:"modifier"`
	DamageType string     `yaml:"damage_type" json:"damage_type"`
	TargetType TargetType `yaml:"target_type" json:"target_type"`
	// Healing actions restore hit points and skip hit confirmation.
	Healing bool `yaml:"healing" json:"healing"`
}

// Validate checks the definition's invariants.
//
// Postcondition: Returns nil iff Name is non-empty, DieSides is an allowed
// size, DieCount >= 1 and TargetType is single or multiple.
func (a Action) Validate() error {
	var errs []string
	if strings.TrimSpace(a.Name) == "" {
		errs = append(errs, "name must not be empty")
	}
	if !slices.Contains(AllowedDieSides, a.DieSides) {
		errs = append(errs, fmt.Sprintf("die_sides must be one of %v, got %d", AllowedDieSides, a.DieSides))
	}
	if a.DieCount < 1 {
		errs = append(errs, fmt.Sprintf("die_count must be >= 1, got %d", a.DieCount))
	}
	if a.TargetType != TargetSingle && a.TargetType != TargetMultiple {
		errs = append(errs, fmt.Sprintf("target_type must be single or multiple, got %q", a.TargetType))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w %q: %s", ErrInvalidAction, a.Name, strings.Join(errs, "; "))
	}
	return nil
}

// Expression returns the action's dice notation.
func (a Action) Expression() dice.Expression {
	return dice.Expression{Count: a.DieCount, Sides: a.DieSides, Modifier: a.Modifier}
}

// CheckTargets enforces the target-count rules for this action.
func (a Action) CheckTargets(n int) error {
	if n == 0 {
		return ErrNoTargets
	}
	if a.TargetType == TargetSingle && n > 1 {
		return ErrTooManyTargets
	}
	return nil
}

// ActionStore persists action definitions.
type ActionStore interface {
	CreateAction(ctx context.Context, a Action) error
	// GetAction returns the action or ErrActionNotFound.
	GetAction(ctx context.Context, id string) (Action, error)
	ListActions(ctx context.Context, gameID string) ([]Action, error)
}
