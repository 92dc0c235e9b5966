// Package plugin discovers declared extensions and loads them into a
// registry.Set.
//
// DESIGN: An installable extension ships a YAML manifest (plugin.yaml,
// or <anything>.plugin.yaml) in one of the configured plugin
// directories. The manifest names the plugin and the entry point that
// builds it. Entry points resolve against an explicit Catalog supplied
// by the composition root, so nothing here depends on package-level
// globals and tests wire fake catalogs freely.
//
// FLOW:
//  1. Discover() scans the directories and parses manifests: cheap,
//     side-effect free, no plugin code runs.
//  2. Load()/LoadAll() resolve each entry point, build the plugin
//     value, and invoke whichever registration capabilities it exposes.
//  3. A loaded record is never reprocessed; one broken plugin never
//     aborts the rest of the pass.
package plugin

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// manifestValidate checks required manifest fields.
var manifestValidate = validator.New(validator.WithRequiredStructEnabled())

// Manifest is the on-disk plugin declaration. It is the only contract
// between the core and the packaging tooling that installed the plugin.
type Manifest struct {
	// Name uniquely identifies the plugin across all plugin directories.
	Name string `yaml:"name" validate:"required"`

	// Entrypoint names the Catalog builder that constructs the plugin.
	Entrypoint string `yaml:"entrypoint" validate:"required"`

	Version     string `yaml:"version"`
	Description string `yaml:"description"`
}

// ParseManifest reads and validates a manifest file.
func ParseManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if err := manifestValidate.Struct(&m); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", path, err)
	}
	return &m, nil
}
