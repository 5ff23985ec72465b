// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package filters

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	"github.com/holomush/optplug/internal/plugin"
)

// Compile-time interface check.
var _ plugin.Filter = (*Lua)(nil)

// decideFn is the function a filter script must define.
const decideFn = "decide"

// Lua runs a user-provided script as a filter. The script defines
//
//	function decide(name, version)
//
// returning "include" or "exclude"; any other return value counts as
// no opinion. One interpreter state serves all calls, guarded by a
// mutex since LState is not goroutine safe.
type Lua struct {
	path string

	mu    sync.Mutex
	state *lua.LState
}

// NewLua loads the script and verifies it defines decide().
func NewLua(path string) (*Lua, error) {
	errb := oops.In("filters").With("script", path)

	code, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, errb.Hint("failed to read filter script").Wrap(err)
	}

	state := lua.NewState()
	if err := state.DoString(string(code)); err != nil {
		state.Close()
		return nil, errb.Hint("syntax error").Wrap(err)
	}
	if state.GetGlobal(decideFn).Type() != lua.LTFunction {
		state.Close()
		return nil, errb.Errorf("script does not define a %s function", decideFn)
	}

	return &Lua{path: path, state: state}, nil
}

// Name identifies the filter in logs.
func (l *Lua) Name() string {
	return "lua:" + filepath.Base(l.path)
}

// Decide calls the script's decide function with the candidate's short
// name and version.
func (l *Lua) Decide(_ context.Context, c *plugin.Candidate, _ string) (plugin.Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	err := l.state.CallByParam(lua.P{
		Fn:      l.state.GetGlobal(decideFn),
		NRet:    1,
		Protect: true,
	}, lua.LString(c.ShortName), lua.LString(c.Version.String()))
	if err != nil {
		return plugin.NoOpinion, oops.In("filters").With("script", l.path).With("plugin", c.ShortName).Wrap(err)
	}

	ret := l.state.Get(-1)
	l.state.Pop(1)

	switch lua.LVAsString(ret) {
	case "include":
		return plugin.Include, nil
	case "exclude":
		return plugin.Exclude, nil
	default:
		return plugin.NoOpinion, nil
	}
}

// Close releases the interpreter state.
func (l *Lua) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.Close()
}
