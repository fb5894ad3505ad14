package scripting_test

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/skirmish/internal/config"
	"github.com/cory-johannsen/skirmish/internal/game/dice"
	"github.com/cory-johannsen/skirmish/internal/scripting"
)

func roller(faces ...int) *dice.Roller {
	return dice.NewLoggedRoller(dice.NewSeqSource(faces...), zap.NewNop())
}

func TestRules_CustomCritical(t *testing.T) {
	r, err := scripting.LoadRules(`function critical(total) return total * 3 end`, roller(1), zap.NewNop(), 0)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, 30, r.Critical(10))
	assert.Equal(t, 30, r.CriticalRule()(10))
}

func TestRules_DiceModule(t *testing.T) {
	src := `function critical(total) local extra = dice.roll("1d6") return total + extra end`
	r, err := scripting.LoadRules(src, roller(4), zap.NewNop(), 0)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, 14, r.Critical(10))
}

func TestRules_MissingHookDoubles(t *testing.T) {
	r, err := scripting.LoadRules(`x = 1`, roller(1), zap.NewNop(), 0)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, 20, r.Critical(10))
}

func TestRules_RuntimeErrorDoublesAndLogs(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	r, err := scripting.LoadRules(`function critical(total) error("nope") end`, roller(1), zap.New(core), 0)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, 8, r.Critical(4))
	assert.Equal(t, 1, logs.Len())
}

func TestRules_NonNumberAndNegative(t *testing.T) {
	r, err := scripting.LoadRules(`function critical(total) if total > 5 then return "big" end return -total end`, roller(1), zap.NewNop(), 0)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, 12, r.Critical(6))
	assert.Equal(t, 0, r.Critical(3))
}

func TestRules_InstructionBudget(t *testing.T) {
	r, err := scripting.LoadRules(`function critical(total) while true do end end`, roller(1), zap.NewNop(), 1000)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, 6, r.Critical(3), "runaway script falls back to doubling")
	assert.Equal(t, 6, r.Critical(3), "budget is renewed per evaluation")
}

func TestRules_SandboxStripsFileAccess(t *testing.T) {
	_, err := scripting.LoadRules(`dofile("/etc/passwd")`, roller(1), zap.NewNop(), 0)
	assert.Error(t, err)
	_, err = scripting.LoadRules(`local x = os.time()`, roller(1), zap.NewNop(), 0)
	assert.Error(t, err)
}

func TestLoadRulesFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "rules/critical.lua", []byte(`function critical(t) return t + 100 end`), 0o644))
	r, err := scripting.LoadRulesFile(fs, "rules/critical.lua", roller(1), zap.NewNop(), 0)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, 101, r.Critical(1))

	_, err = scripting.LoadRulesFile(fs, "rules/missing.lua", roller(1), zap.NewNop(), 0)
	assert.Error(t, err)
}

func TestDevConfigCriticalDoubles(t *testing.T) {
	cfg, err := config.Load("../../configs/dev.yaml")
	require.NoError(t, err)
	if cfg.Combat.CriticalScript == "" {
		return
	}
	r, err := scripting.LoadRulesFile(afero.NewOsFs(), filepath.Join("../..", cfg.Combat.CriticalScript), roller(4), zap.NewNop(), 0)
	require.NoError(t, err)
	defer r.Close()

	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 500).Draw(t, "total")
		if got := r.Critical(n); got != 2*n {
			t.Fatalf("Critical(%d) = %d, want %d", n, got, 2*n)
		}
	})
}

func TestCriticalBonusExample(t *testing.T) {
	r, err := scripting.LoadRulesFile(afero.NewOsFs(), "../../content/rules/critical_bonus_d6.example.lua", roller(4), zap.NewNop(), 0)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, 24, r.Critical(10))
}
