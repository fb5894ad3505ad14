package dice

import "go.uber.org/zap"

// Roller wraps a Source and logger. Every roll is logged at debug level
// with its notation, faces, modifier and tags.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewLoggedRoller creates a Roller that rolls with src and logs each roll to logger.
//
// Precondition: src and logger must be non-nil.
func NewLoggedRoller(src Source, logger *zap.Logger) *Roller {
	return &Roller{src: src, logger: logger}
}

// Roll evaluates expr and logs the result at debug level.
func (r *Roller) Roll(expr Expression) (RollResult, error) {
	result, err := Roll(expr, r.src)
	if err != nil {
		return RollResult{}, err
	}
	r.logger.Debug("dice roll",
		zap.String("expression", result.Expression),
		zap.Ints("dice", result.Dice),
		zap.Int("modifier", result.Modifier),
		zap.Int("total", result.Total()),
		zap.Bool("critical", result.Critical),
		zap.Bool("fumble", result.Fumble),
	)
	return result, nil
}

// RollInitiative rolls a single d20 for initiative and logs it.
func (r *Roller) RollInitiative() int {
	d, _ := RollDie(r.src, CriticalSides)
	r.logger.Debug("initiative roll", zap.Int("value", d.Value))
	return d.Value
}
