// Package config provides declarative object manifests: a YAML file
// listing tracked objects to register at startup, applied to a registry.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aaronkwan/synced-object/pkg/object"
	"github.com/aaronkwan/synced-object/pkg/registry"
)

// ObjectManifest declares one tracked object.
type ObjectManifest struct {
	// Key is the object's unique identity.
	Key string `yaml:"key"`

	// Mode is one of none, durable or custom. Custom hooks cannot be
	// declared in YAML, so manifests normally use none or durable.
	Mode string `yaml:"mode"`

	// DefaultValue is the initial payload.
	DefaultValue any `yaml:"defaultValue,omitempty"`

	// Debounce is the coalescing window as a duration string, e.g. "500ms".
	Debounce string `yaml:"debounce,omitempty"`

	// UnloadPolicy is one of allow, flush or block. Empty means allow.
	UnloadPolicy string `yaml:"unloadPolicy,omitempty"`

	// Strict toggles precondition checks. Omitted means strict.
	Strict *bool `yaml:"strict,omitempty"`
}

// Manifest is the root of an object declaration file.
type Manifest struct {
	Objects []ObjectManifest `yaml:"objects"`
}

// Load reads and parses a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from trusted configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %q: %w", path, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest %q: %w", path, err)
	}
	return m, nil
}

// Parse parses manifest YAML.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Options converts the manifest entry into object construction options.
func (om *ObjectManifest) Options() (object.Options, error) {
	opts := object.Options{
		DefaultValue:     om.DefaultValue,
		UnloadPolicy:     object.UnloadPolicy(om.UnloadPolicy),
		StrictValidation: om.Strict,
	}
	if om.Debounce != "" {
		d, err := time.ParseDuration(om.Debounce)
		if err != nil {
			return object.Options{}, fmt.Errorf("object %q: invalid debounce %q: %w", om.Key, om.Debounce, err)
		}
		opts.DebounceInterval = d
	}
	return opts, nil
}

// Apply registers every declared object with the registry. Creation
// failures surface per object, wrapped with the object's key.
func (m *Manifest) Apply(reg *registry.Registry) error {
	for i := range m.Objects {
		om := &m.Objects[i]
		opts, err := om.Options()
		if err != nil {
			return err
		}
		if _, err := reg.Create(om.Key, object.Mode(om.Mode), opts); err != nil {
			return fmt.Errorf("failed to register object %q: %w", om.Key, err)
		}
	}
	return nil
}
