// Package parser parses and validates plugin manifests. Manifests arrive
// from an untrusted catalog, so parsing always includes schema validation.
package parser

import "github.com/igne-dev/pluginhost/plugin/entities"

// ManifestParser parses raw manifest bytes into a Manifest.
type ManifestParser interface {
	// Parse unmarshals and validates manifest bytes.
	Parse(data []byte) (*entities.Manifest, error)
}
