package parser

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	schemavalidator "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/igne-dev/pluginhost/plugin/entities"
)

// JSONManifestParser implements ManifestParser for JSON manifests. The
// validation schema is generated from the Manifest type itself, so the
// parser and the type cannot drift apart.
type JSONManifestParser struct {
	schema *schemavalidator.Schema
}

// NewJSONManifestParser creates a parser with its schema compiled.
func NewJSONManifestParser() (*JSONManifestParser, error) {
	reflector := new(jsonschema.Reflector)
	reflector.AllowAdditionalProperties = true
	reflector.DoNotReference = true

	generated := reflector.Reflect(&entities.Manifest{})
	raw, err := json.Marshal(generated)
	if err != nil {
		return nil, fmt.Errorf("marshaling manifest schema: %w", err)
	}

	compiler := schemavalidator.NewCompiler()
	if err := compiler.AddResource("manifest.schema.json", bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("adding manifest schema resource: %w", err)
	}
	schema, err := compiler.Compile("manifest.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compiling manifest schema: %w", err)
	}

	return &JSONManifestParser{schema: schema}, nil
}

// Parse unmarshals and validates manifest bytes.
func (p *JSONManifestParser) Parse(data []byte) (*entities.Manifest, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("manifest is not valid JSON: %w", err)
	}
	if err := p.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("manifest failed schema validation: %w", err)
	}

	var manifest entities.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, err
	}
	if err := manifest.Validate(); err != nil {
		return nil, err
	}
	return &manifest, nil
}
