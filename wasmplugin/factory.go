// Package wasmplugin runs plugin code compiled to WebAssembly. It adapts a
// WASM module onto the host's Plugin interface: the module's exported load
// and unload functions become the lifecycle hooks, and the commands it
// declares are registered through the capability API like any other
// plugin's.
package wasmplugin

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	pluginhost "github.com/igne-dev/pluginhost"
	"github.com/igne-dev/pluginhost/plugin/entities"
)

// Factory instantiates WASM plugins on a shared runtime.
type Factory struct {
	runtime wazero.Runtime
	logger  *slog.Logger
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithLogger sets the logger guest log messages are forwarded to.
func WithLogger(l *slog.Logger) FactoryOption {
	return func(f *Factory) { f.logger = l }
}

// NewFactory creates a WASM plugin factory with WASI and the host's guest
// logging function installed.
func NewFactory(ctx context.Context, opts ...FactoryOption) (*Factory, error) {
	f := &Factory{logger: slog.Default()}
	for _, opt := range opts {
		opt(f)
	}

	rt := wazero.NewRuntime(ctx)
	wasi_snapshot_preview1.MustInstantiate(ctx, rt)
	f.runtime = rt

	if err := f.registerHostFunctions(ctx); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("registering host functions: %w", err)
	}
	return f, nil
}

// registerHostFunctions installs the env module guests import. Currently
// just log_message: a packed ptr+len pointing at {"level","message"} JSON.
func (f *Factory) registerHostFunctions(ctx context.Context) error {
	_, err := f.runtime.NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, m api.Module, stack []uint64) {
			ptr, length := unpack(stack[0])
			payload, ok := m.Memory().Read(ptr, length)
			if !ok {
				f.logger.Error("wasm guest log out of bounds", "ptr", ptr, "len", length)
				return
			}
			var msg struct {
				Level   string `json:"level"`
				Message string `json:"message"`
			}
			if err := json.Unmarshal(payload, &msg); err != nil {
				f.logger.Error("wasm guest log unmarshal failed", "error", err)
				return
			}
			f.logger.Log(ctx, parseLevel(msg.Level), msg.Message, "source", "wasm")
		}), []api.ValueType{api.ValueTypeI64}, nil).
		Export("log_message").
		Instantiate(ctx)
	return err
}

// New constructs a plugin around compiled module bytes. The module is not
// instantiated until its Load hook runs on the host.
func (f *Factory) New(ctx context.Context, manifest entities.Manifest, code []byte) (pluginhost.Plugin, error) {
	if len(code) == 0 {
		return nil, fmt.Errorf("plugin %s: empty wasm module", manifest.ID)
	}
	return &wasmPlugin{
		runtime:  f.runtime,
		manifest: manifest,
		code:     code,
		logger:   f.logger.With("plugin", manifest.ID),
	}, nil
}

// Close releases the shared runtime and every module instantiated on it.
func (f *Factory) Close(ctx context.Context) error {
	return f.runtime.Close(ctx)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// unpack splits a packed pointer+length pair. WASM pointers and lengths
// are 32-bit.
func unpack(packed uint64) (ptr, length uint32) {
	//nolint:gosec // high and low halves are 32-bit by construction
	return uint32(packed >> 32), uint32(packed)
}

func pack(ptr, length uint64) uint64 {
	return (ptr << 32) | length
}
