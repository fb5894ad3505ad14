// Package scripting hosts sandboxed GopherLua house rules. A rule script can
// replace how critical hits scale damage without a server rebuild.
package scripting

import (
	"context"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
)

// DefaultInstructionLimit caps the opcodes one rule evaluation may execute.
const DefaultInstructionLimit = 100_000

// budgetContext cancels itself once Done has been called limit times.
// GopherLua polls Done once per opcode, so the budget is an opcode count.
type budgetContext struct {
	context.Context
	cancel context.CancelFunc
	left   atomic.Int64
}

func (c *budgetContext) Done() <-chan struct{} {
	if c.left.Add(-1) <= 0 {
		c.cancel()
	}
	return c.Context.Done()
}

// withBudget installs a fresh opcode budget on L for one evaluation. The
// returned func releases it.
func withBudget(L *lua.LState, limit int) func() {
	base, cancel := context.WithCancel(context.Background())
	ctx := &budgetContext{Context: base, cancel: cancel}
	ctx.left.Store(int64(limit))
	L.SetContext(ctx)
	return func() {
		L.RemoveContext()
		cancel()
	}
}

// newSandbox creates an LState with only base, table, string and math
// loaded and the file-loading globals removed.
//
// Postcondition: the caller owns the state and must Close it.
func newSandbox() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "collectgarbage", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}
