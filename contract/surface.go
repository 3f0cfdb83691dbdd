// Package contract verifies that the API surface the host exposes to
// plugins has not drifted from the frozen description plugins were written
// against. Verification runs once at host startup; a drift is fatal to the
// plugin subsystem, never a silent skip.
package contract

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"github.com/invopop/jsonschema"

	pluginhost "github.com/igne-dev/pluginhost"
	"github.com/igne-dev/pluginhost/plugin/entities"
	"github.com/igne-dev/pluginhost/plugin/ports"
	"github.com/igne-dev/pluginhost/plugin/values"
)

// SurfaceFileName keys the API surface entry inside a contract snapshot.
const SurfaceFileName = "api-surface.json"

// methodDescription is one method of the capability interface, rendered as
// signature strings so any change to parameters or results changes the
// serialized surface.
type methodDescription struct {
	Name    string   `json:"name"`
	Params  []string `json:"params"`
	Results []string `json:"results"`
}

// surfaceDescription is the serialized shape of everything a plugin can
// observe about the host: the capability interface's method set plus the
// JSON schemas of the data types exchanged through it.
type surfaceDescription struct {
	APIVersion string                     `json:"apiVersion"`
	Methods    []methodDescription        `json:"methods"`
	Types      map[string]json.RawMessage `json:"types"`
}

// DescribeSurface serializes the host's live plugin-facing API surface.
// The description is deterministic: methods sorted by name, schema
// properties in declaration order, so byte-identical input produces
// byte-identical output across runs.
func DescribeSurface(apiVersion values.Version) ([]byte, error) {
	apiType := reflect.TypeOf((*pluginhost.API)(nil)).Elem()

	methods := make([]methodDescription, 0, apiType.NumMethod())
	for i := 0; i < apiType.NumMethod(); i++ {
		m := apiType.Method(i)
		desc := methodDescription{Name: m.Name}
		for p := 0; p < m.Type.NumIn(); p++ {
			desc.Params = append(desc.Params, m.Type.In(p).String())
		}
		for r := 0; r < m.Type.NumOut(); r++ {
			desc.Results = append(desc.Results, m.Type.Out(r).String())
		}
		methods = append(methods, desc)
	}
	sort.Slice(methods, func(i, j int) bool { return methods[i].Name < methods[j].Name })

	types, err := exchangedTypeSchemas()
	if err != nil {
		return nil, err
	}

	doc := surfaceDescription{
		APIVersion: apiVersion.String(),
		Methods:    methods,
		Types:      types,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serializing api surface: %w", err)
	}
	return data, nil
}

// exchangedTypeSchemas generates JSON schemas for the struct types plugins
// exchange with the host. Field renames, additions, and removals all show
// up here even when the method signatures keep compiling.
func exchangedTypeSchemas() (map[string]json.RawMessage, error) {
	reflector := new(jsonschema.Reflector)
	reflector.ExpandedStruct = true
	reflector.DoNotReference = true

	subjects := map[string]any{
		"Command":  pluginhost.Command{},
		"Manifest": entities.Manifest{},
		"FileStat": ports.FileStat{},
	}

	out := make(map[string]json.RawMessage, len(subjects))
	for name, model := range subjects {
		schema := reflector.Reflect(model)
		data, err := json.Marshal(schema)
		if err != nil {
			return nil, fmt.Errorf("reflecting schema for %s: %w", name, err)
		}
		out[name] = data
	}
	return out, nil
}
