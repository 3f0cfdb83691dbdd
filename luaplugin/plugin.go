// Package luaplugin runs plugins written as embedded Lua scripts. A script
// is loaded into its own interpreter state, given a `host` table bound to
// the capability API, and torn down by closing the state. Every callback
// executes on the host loop, so a single interpreter state is never touched
// concurrently.
package luaplugin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	lua "github.com/yuin/gopher-lua"

	pluginhost "github.com/igne-dev/pluginhost"
	"github.com/igne-dev/pluginhost/plugin/entities"
	"github.com/igne-dev/pluginhost/plugin/values"
)

// Factory constructs Lua script plugins.
type Factory struct {
	logger *slog.Logger
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithLogger sets the logger scripts log through.
func WithLogger(l *slog.Logger) FactoryOption {
	return func(f *Factory) { f.logger = l }
}

// NewFactory creates a Lua plugin factory.
func NewFactory(opts ...FactoryOption) *Factory {
	f := &Factory{logger: slog.Default()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// New wraps a Lua script as a plugin.
func (f *Factory) New(ctx context.Context, manifest entities.Manifest, code []byte) (pluginhost.Plugin, error) {
	if len(code) == 0 {
		return nil, fmt.Errorf("plugin %s: empty script", manifest.ID)
	}
	return &luaPlugin{
		manifest: manifest,
		script:   code,
		logger:   f.logger.With("plugin", manifest.ID),
	}, nil
}

type luaPlugin struct {
	manifest entities.Manifest
	script   []byte
	logger   *slog.Logger

	state *lua.LState
}

var _ pluginhost.Plugin = (*luaPlugin)(nil)

// Load creates the interpreter state, installs the host table, runs the
// script, and invokes its on_load function when one is defined.
func (p *luaPlugin) Load(ctx context.Context, api pluginhost.API) error {
	state := lua.NewState()
	p.state = state

	state.SetGlobal("host", p.hostTable(ctx, state, api))

	if err := state.DoString(string(p.script)); err != nil {
		state.Close()
		p.state = nil
		return fmt.Errorf("running script: %w", err)
	}

	if fn, ok := state.GetGlobal("on_load").(*lua.LFunction); ok {
		if err := state.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}); err != nil {
			state.Close()
			p.state = nil
			return fmt.Errorf("on_load failed: %w", err)
		}
	}
	return nil
}

// Unload invokes the script's on_unload function when defined, then closes
// the interpreter. Best-effort; the ledger drain is the mandatory cleanup.
func (p *luaPlugin) Unload(ctx context.Context) error {
	if p.state == nil {
		return nil
	}
	var callErr error
	if fn, ok := p.state.GetGlobal("on_unload").(*lua.LFunction); ok {
		if err := p.state.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}); err != nil {
			callErr = fmt.Errorf("on_unload failed: %w", err)
		}
	}
	p.state.Close()
	p.state = nil
	return callErr
}

// hostTable builds the `host` table the script sees. Every function routes
// through the capability API so all acquisitions stay ledger-tracked.
func (p *luaPlugin) hostTable(ctx context.Context, state *lua.LState, api pluginhost.API) *lua.LTable {
	tbl := state.NewTable()

	state.SetField(tbl, "add_command", state.NewFunction(func(l *lua.LState) int {
		opts := l.CheckTable(1)
		cmd, err := p.commandFromTable(state, opts)
		if err == nil {
			err = api.AddCommand(cmd)
		}
		if err != nil {
			l.Push(lua.LString(err.Error()))
			return 1
		}
		return 0
	}))

	state.SetField(tbl, "on", state.NewFunction(func(l *lua.LState) int {
		event := l.CheckString(1)
		fn := l.CheckFunction(2)
		err := api.On(event, func(payload any) {
			p.call(state, fn, lua.LString(fmt.Sprint(payload)))
		})
		if err != nil {
			l.Push(lua.LString(err.Error()))
			return 1
		}
		return 0
	}))

	state.SetField(tbl, "set_interval", state.NewFunction(func(l *lua.LState) int {
		millis := l.CheckInt(1)
		fn := l.CheckFunction(2)
		err := api.SetInterval(time.Duration(millis)*time.Millisecond, func() {
			p.call(state, fn)
		})
		if err != nil {
			l.Push(lua.LString(err.Error()))
			return 1
		}
		return 0
	}))

	state.SetField(tbl, "load_settings", state.NewFunction(func(l *lua.LState) int {
		data, err := api.LoadSettings(ctx)
		if err != nil {
			l.Push(lua.LNil)
			l.Push(lua.LString(err.Error()))
			return 2
		}
		l.Push(lua.LString(data))
		return 1
	}))

	state.SetField(tbl, "save_settings", state.NewFunction(func(l *lua.LState) int {
		data := l.CheckString(1)
		if err := api.SaveSettings(ctx, []byte(data)); err != nil {
			l.Push(lua.LString(err.Error()))
			return 1
		}
		return 0
	}))

	state.SetField(tbl, "log", state.NewFunction(func(l *lua.LState) int {
		api.Logger().Info(l.CheckString(1), "source", "lua")
		return 0
	}))

	return tbl
}

func (p *luaPlugin) commandFromTable(state *lua.LState, opts *lua.LTable) (pluginhost.Command, error) {
	cmd := pluginhost.Command{
		ID:   lua.LVAsString(state.GetField(opts, "id")),
		Name: lua.LVAsString(state.GetField(opts, "name")),
	}

	if key := lua.LVAsString(state.GetField(opts, "key")); key != "" {
		var mods []values.Modifier
		if modTbl, ok := state.GetField(opts, "modifiers").(*lua.LTable); ok {
			modTbl.ForEach(func(_, v lua.LValue) {
				mods = append(mods, values.Modifier(lua.LVAsString(v)))
			})
		}
		hotkey, err := values.NewHotkey(key, mods...)
		if err != nil {
			return pluginhost.Command{}, err
		}
		cmd.Hotkey = hotkey
	}

	if fn, ok := state.GetField(opts, "run").(*lua.LFunction); ok {
		cmd.Run = func() { p.call(state, fn) }
	}
	if fn, ok := state.GetField(opts, "check").(*lua.LFunction); ok {
		cmd.Check = func() bool {
			if err := state.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}); err != nil {
				p.logger.Warn("check callback failed", "error", err)
				return false
			}
			ret := state.Get(-1)
			state.Pop(1)
			return lua.LVAsBool(ret)
		}
	}
	return cmd, nil
}

// call invokes a Lua function, logging failures instead of propagating
// them: one broken script callback must not take the host loop down.
func (p *luaPlugin) call(state *lua.LState, fn *lua.LFunction, args ...lua.LValue) {
	if err := state.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, args...); err != nil {
		p.logger.Warn("script callback failed", "error", err)
	}
}
