package scripting

import (
	"fmt"
	"sync"

	"github.com/spf13/afero"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/skirmish/internal/game/combat"
	"github.com/cory-johannsen/skirmish/internal/game/dice"
)

// criticalHook is the global a rule script defines: critical(total) -> damage.
const criticalHook = "critical"

// Rules holds one compiled house-rule script. Evaluations are serialised
// because an LState is single-threaded.
type Rules struct {
	mu     sync.Mutex
	L      *lua.LState
	limit  int
	roller *dice.Roller
	logger *zap.Logger
}

// LoadRulesFile reads a rule script from fs and compiles it.
//
// Precondition: fs, roller and logger must be non-nil.
func LoadRulesFile(fs afero.Fs, path string, roller *dice.Roller, logger *zap.Logger, instLimit int) (*Rules, error) {
	src, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("scripting: reading %q: %w", path, err)
	}
	return LoadRules(string(src), roller, logger, instLimit)
}

// LoadRules compiles src in a fresh sandbox with the dice module registered.
// A limit <= 0 uses DefaultInstructionLimit.
//
// Postcondition: Returns Rules ready for Critical, or the Lua load error.
func LoadRules(src string, roller *dice.Roller, logger *zap.Logger, instLimit int) (*Rules, error) {
	if instLimit <= 0 {
		instLimit = DefaultInstructionLimit
	}
	r := &Rules{L: newSandbox(), limit: instLimit, roller: roller, logger: logger.Named("rules")}
	r.registerDice()

	release := withBudget(r.L, r.limit)
	err := r.L.DoString(src)
	release()
	if err != nil {
		r.L.Close()
		return nil, fmt.Errorf("scripting: loading rules: %w", err)
	}
	return r, nil
}

// Close releases the Lua state.
func (r *Rules) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.L.Close()
}

// Critical scales a critical roll's total through the script's critical
// function. Scripts without one, runtime errors, budget exhaustion and
// non-numeric results all fall back to dice.ApplyCriticalDamage.
//
// Postcondition: the result is never negative.
func (r *Rules) Critical(total int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	fn := r.L.GetGlobal(criticalHook)
	if fn.Type() != lua.LTFunction {
		return dice.ApplyCriticalDamage(total)
	}

	release := withBudget(r.L, r.limit)
	defer release()
	if err := r.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, lua.LNumber(total)); err != nil {
		r.logger.Warn("critical rule failed, doubling instead", zap.Int("total", total), zap.Error(err))
		return dice.ApplyCriticalDamage(total)
	}
	ret := r.L.Get(-1)
	r.L.Pop(1)
	n, ok := ret.(lua.LNumber)
	if !ok {
		r.logger.Warn("critical rule returned a non-number, doubling instead",
			zap.Int("total", total),
			zap.String("type", ret.Type().String()),
		)
		return dice.ApplyCriticalDamage(total)
	}
	return max(0, int(n))
}

// CriticalRule adapts Critical for combat.WithCriticalRule.
func (r *Rules) CriticalRule() combat.CriticalRule {
	return r.Critical
}

// registerDice exposes dice.roll("2d6+1") -> total, critical to scripts.
func (r *Rules) registerDice() {
	mod := r.L.NewTable()
	r.L.SetField(mod, "roll", r.L.NewFunction(func(L *lua.LState) int {
		expr, err := dice.Parse(L.CheckString(1))
		if err != nil {
			L.ArgError(1, err.Error())
			return 0
		}
		res, err := r.roller.Roll(expr)
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		L.Push(lua.LNumber(res.Total()))
		L.Push(lua.LBool(res.Critical))
		return 2
	}))
	r.L.SetGlobal("dice", mod)
}
