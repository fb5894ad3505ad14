package dice

import (
	"fmt"
	"strconv"
	"strings"
)

// Expression represents dice notation such as "2d6+3".
//
// Invariant: Count >= 1 and Sides >= 1 after successful Parse or NewExpression.
type Expression struct {
	Count    int
	Sides    int
	Modifier int
}

// NewExpression builds an Expression from its parts.
//
// Postcondition: Returns ErrInvalidDice when count or sides is not positive.
func NewExpression(count, sides, modifier int) (Expression, error) {
	if count <= 0 || sides <= 0 {
		return Expression{}, ErrInvalidDice
	}
	return Expression{Count: count, Sides: sides, Modifier: modifier}, nil
}

// String renders the expression in canonical notation, omitting a zero modifier.
func (e Expression) String() string {
	if e.Modifier == 0 {
		return fmt.Sprintf("%dd%d", e.Count, e.Sides)
	}
	return fmt.Sprintf("%dd%d%+d", e.Count, e.Sides, e.Modifier)
}

// Parse parses a dice expression string.
// Supported forms: "d20", "2d6", "2d6+3", "4d8-2".
//
// Postcondition: Returns a valid Expression or a descriptive error.
func Parse(expr string) (Expression, error) {
	s := strings.ToLower(strings.TrimSpace(expr))
	if s == "" {
		return Expression{}, fmt.Errorf("dice: empty expression")
	}
	dIdx := strings.Index(s, "d")
	if dIdx < 0 {
		return Expression{}, fmt.Errorf("dice: missing 'd' in expression %q", expr)
	}

	count := 1
	if dIdx > 0 {
		n, err := strconv.Atoi(s[:dIdx])
		if err != nil {
			return Expression{}, fmt.Errorf("dice: invalid die count in %q: %w", expr, err)
		}
		count = n
	}

	rest := s[dIdx+1:]
	sidesStr, modStr := rest, ""
	if i := strings.IndexAny(rest, "+-"); i > 0 {
		sidesStr, modStr = rest[:i], rest[i:]
	}
	sides, err := strconv.Atoi(sidesStr)
	if err != nil {
		return Expression{}, fmt.Errorf("dice: invalid die sides in %q: %w", expr, err)
	}
	modifier := 0
	if modStr != "" {
		modifier, err = strconv.Atoi(modStr)
		if err != nil {
			return Expression{}, fmt.Errorf("dice: invalid modifier in %q: %w", expr, err)
		}
	}

	e, err := NewExpression(count, sides, modifier)
	if err != nil {
		return Expression{}, fmt.Errorf("dice: %q: %w", expr, err)
	}
	return e, nil
}

// MustParse parses expr and panics on error. Useful for package-level values.
func MustParse(expr string) Expression {
	e, err := Parse(expr)
	if err != nil {
		panic("dice: MustParse failed for expression " + expr + ": " + err.Error())
	}
	return e
}
