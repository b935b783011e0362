package step

import (
	"context"
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// runLua evaluates script in a sandboxed state with the global `output` set and
// returns the chunk's last return value, or LNil if it returned nothing.
// The script is aborted once ctx is done.
func runLua(ctx context.Context, script, output string) (lua.LValue, error) {
	if err := ctx.Err(); err != nil {
		return lua.LNil, fmt.Errorf("lua script not started: %w", err)
	}
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()
	L.SetContext(ctx)

	openSafeLibs(L)
	L.SetGlobal("output", lua.LString(output))

	top := L.GetTop()
	if err := L.DoString(script); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return lua.LNil, fmt.Errorf("lua script interrupted: %w", ctxErr)
		}
		return lua.LNil, fmt.Errorf("lua script failed: %w", err)
	}
	if L.GetTop() <= top {
		return lua.LNil, nil
	}
	return L.Get(-1), nil
}

// openSafeLibs loads the deterministic subset of the standard library.
func openSafeLibs(L *lua.LState) {
	lua.OpenBase(L)
	for _, name := range []string{"loadfile", "dofile", "load", "loadstring", "print"} {
		L.SetGlobal(name, lua.LNil)
	}

	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	if tbl, ok := L.GetGlobal("math").(*lua.LTable); ok {
		L.SetField(tbl, "random", lua.LNil)
		L.SetField(tbl, "randomseed", lua.LNil)
	}
}
