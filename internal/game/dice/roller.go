package dice

// RollDie rolls a single die with the given number of sides.
//
// Precondition: src must be non-nil.
// Postcondition: Returns a Die with Value in [1, sides]; a d20 showing 20 is
// tagged Critical and a d20 showing 1 is tagged Fumble. Returns ErrInvalidDice
// when sides <= 0.
func RollDie(src Source, sides int) (Die, error) {
	if sides <= 0 {
		return Die{}, ErrInvalidDice
	}
	v := src.Intn(sides) + 1
	d := Die{Sides: sides, Value: v}
	if sides == CriticalSides {
		d.Critical = v == CriticalSides
		d.Fumble = v == 1
	}
	return d, nil
}

// RollDice rolls count independent dice of the given size, preserving roll order.
//
// Postcondition: len(result) == count on success.
func RollDice(src Source, sides, count int) ([]Die, error) {
	if sides <= 0 || count <= 0 {
		return nil, ErrInvalidDice
	}
	out := make([]Die, count)
	for i := range out {
		d, err := RollDie(src, sides)
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}

// ApplyModifier sums rolls and adds a flat modifier. The set is Critical if any
// single die is Critical and a Fumble if any single die is a Fumble.
func ApplyModifier(rolls []Die, modifier int) Total {
	t := Total{Sum: modifier}
	for _, d := range rolls {
		t.Sum += d.Value
		t.Critical = t.Critical || d.Critical
		t.Fumble = t.Fumble || d.Fumble
	}
	return t
}

// ApplyCriticalDamage doubles amount. Detection and application are kept apart
// so callers can substitute a house rule.
func ApplyCriticalDamage(amount int) int {
	return amount * 2
}

// Values extracts the raw face values from rolls in order.
func Values(rolls []Die) []int {
	out := make([]int, len(rolls))
	for i, d := range rolls {
		out[i] = d.Value
	}
	return out
}

// Roll evaluates an Expression using src.
//
// Precondition: expr must come from Parse or NewExpression; src must be non-nil.
// Postcondition: len(result.Dice) == expr.Count and
// result.Total() == sum(result.Dice) + result.Modifier.
func Roll(expr Expression, src Source) (RollResult, error) {
	rolls, err := RollDice(src, expr.Sides, expr.Count)
	if err != nil {
		return RollResult{}, err
	}
	t := ApplyModifier(rolls, expr.Modifier)
	return RollResult{
		Expression: expr.String(),
		Dice:       Values(rolls),
		Modifier:   expr.Modifier,
		Critical:   t.Critical,
		Fumble:     t.Fumble,
	}, nil
}
