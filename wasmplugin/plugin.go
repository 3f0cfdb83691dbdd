package wasmplugin

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	pluginhost "github.com/igne-dev/pluginhost"
	"github.com/igne-dev/pluginhost/plugin/entities"
	"github.com/igne-dev/pluginhost/plugin/values"
)

// commandDecl is the JSON shape guests return from their "commands" export.
type commandDecl struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Key       string   `json:"key,omitempty"`
	Modifiers []string `json:"modifiers,omitempty"`
}

// wasmPlugin adapts one WASM module onto the Plugin interface.
type wasmPlugin struct {
	runtime  wazero.Runtime
	manifest entities.Manifest
	code     []byte
	logger   *slog.Logger

	module api.Module
}

var _ pluginhost.Plugin = (*wasmPlugin)(nil)

// Load instantiates the module, runs its exported load function, and
// registers the commands it declares through the capability API. A command
// the registry rejects is logged and skipped; the plugin keeps loading.
func (p *wasmPlugin) Load(ctx context.Context, hostAPI pluginhost.API) error {
	mod, err := p.runtime.InstantiateWithConfig(ctx, p.code,
		wazero.NewModuleConfig().WithName(p.manifest.ID))
	if err != nil {
		return fmt.Errorf("instantiating module: %w", err)
	}
	p.module = mod

	if load := mod.ExportedFunction("load"); load != nil {
		if _, err := load.Call(ctx); err != nil {
			_ = mod.Close(ctx)
			p.module = nil
			return fmt.Errorf("guest load failed: %w", err)
		}
	}

	decls, err := p.declaredCommands(ctx)
	if err != nil {
		_ = mod.Close(ctx)
		p.module = nil
		return err
	}
	for _, decl := range decls {
		if err := p.registerCommand(ctx, hostAPI, decl); err != nil {
			p.logger.Warn("command registration rejected",
				"command", decl.ID, "error", err)
		}
	}
	return nil
}

func (p *wasmPlugin) registerCommand(ctx context.Context, hostAPI pluginhost.API, decl commandDecl) error {
	var hotkey values.Hotkey
	if decl.Key != "" {
		mods := make([]values.Modifier, len(decl.Modifiers))
		for i, m := range decl.Modifiers {
			mods[i] = values.Modifier(m)
		}
		hk, err := values.NewHotkey(decl.Key, mods...)
		if err != nil {
			return err
		}
		hotkey = hk
	}
	id := decl.ID
	return hostAPI.AddCommand(pluginhost.Command{
		ID:     id,
		Name:   decl.Name,
		Hotkey: hotkey,
		Run: func() {
			if err := p.invoke(ctx, id); err != nil {
				p.logger.Warn("command invocation failed", "command", id, "error", err)
			}
		},
	})
}

// declaredCommands reads the guest's "commands" export, if any.
func (p *wasmPlugin) declaredCommands(ctx context.Context) ([]commandDecl, error) {
	if p.module.ExportedFunction("commands") == nil {
		return nil, nil
	}
	packed, err := p.callRaw(ctx, "commands", nil)
	if err != nil {
		return nil, fmt.Errorf("reading guest commands: %w", err)
	}
	var decls []commandDecl
	if err := p.unmarshalPacked(packed, &decls); err != nil {
		return nil, fmt.Errorf("decoding guest commands: %w", err)
	}
	return decls, nil
}

// invoke calls the guest's "invoke" export with a command id.
func (p *wasmPlugin) invoke(ctx context.Context, commandID string) error {
	payload, err := json.Marshal(map[string]string{"command": commandID})
	if err != nil {
		return err
	}
	_, err = p.callRaw(ctx, "invoke", payload)
	return err
}

// Unload runs the guest's unload export and closes the module. Best-effort;
// the host's ledger drain does not depend on this succeeding.
func (p *wasmPlugin) Unload(ctx context.Context) error {
	if p.module == nil {
		return nil
	}
	var callErr error
	if unload := p.module.ExportedFunction("unload"); unload != nil {
		if _, err := unload.Call(ctx); err != nil {
			callErr = fmt.Errorf("guest unload failed: %w", err)
		}
	}
	if err := p.module.Close(ctx); err != nil && callErr == nil {
		callErr = fmt.Errorf("closing module: %w", err)
	}
	p.module = nil
	return callErr
}

// callRaw invokes a guest function with raw bytes, using the guest's
// allocate export for input and the packed ptr+len convention both ways.
func (p *wasmPlugin) callRaw(ctx context.Context, name string, input []byte) (uint64, error) {
	fn := p.module.ExportedFunction(name)
	if fn == nil {
		return 0, fmt.Errorf("function %q not exported", name)
	}

	var packedInput uint64
	if len(input) > 0 {
		allocate := p.module.ExportedFunction("allocate")
		if allocate == nil {
			return 0, fmt.Errorf("function 'allocate' not exported")
		}
		res, err := allocate.Call(ctx, uint64(len(input)))
		if err != nil {
			return 0, fmt.Errorf("allocate failed: %w", err)
		}
		ptr := res[0]
		//nolint:gosec // WASM pointers are 32-bit
		if !p.module.Memory().Write(uint32(ptr), input) {
			return 0, fmt.Errorf("writing input to guest memory failed")
		}
		packedInput = pack(ptr, uint64(len(input)))
	}

	res, err := fn.Call(ctx, packedInput)
	if err != nil {
		return 0, fmt.Errorf("call %q failed: %w", name, err)
	}
	if len(res) == 0 {
		return 0, nil
	}
	return res[0], nil
}

// unmarshalPacked reads JSON at a packed ptr+len and decodes it.
func (p *wasmPlugin) unmarshalPacked(packed uint64, v any) error {
	ptr, length := unpack(packed)
	if length == 0 {
		return nil
	}
	data, ok := p.module.Memory().Read(ptr, length)
	if !ok {
		return fmt.Errorf("reading guest result failed")
	}
	return json.Unmarshal(data, v)
}
