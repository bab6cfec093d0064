package scenario

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed profiles/*.yaml
var builtin embed.FS

// Registry holds all available scenarios
type Registry struct {
	scenarios map[string]*Scenario
}

// NewRegistry creates a new scenario registry
func NewRegistry() *Registry {
	return &Registry{
		scenarios: make(map[string]*Scenario),
	}
}

// DefaultRegistry returns a registry holding the built-in building profiles
func DefaultRegistry() (*Registry, error) {
	r := NewRegistry()
	if err := r.LoadFromEmbedded(builtin, "profiles"); err != nil {
		return nil, err
	}
	return r, nil
}

// Parse decodes and validates one scenario document
func Parse(data []byte) (*Scenario, error) {
	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("failed to parse scenario YAML: %w", err)
	}
	if err := scenario.Validate(); err != nil {
		return nil, err
	}
	return &scenario, nil
}

// LoadFromFile loads a scenario from a YAML file
func (r *Registry) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read scenario file: %w", err)
	}
	scenario, err := Parse(data)
	if err != nil {
		return err
	}
	r.scenarios[scenario.Name] = scenario
	return nil
}

// LoadFromDir loads all scenarios from a directory
func (r *Registry) LoadFromDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read scenarios directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}
		p := filepath.Join(dir, entry.Name())
		if err := r.LoadFromFile(p); err != nil {
			return fmt.Errorf("failed to load scenario from %s: %w", p, err)
		}
	}
	return nil
}

// LoadFromEmbedded loads scenarios from an embedded filesystem
func (r *Registry) LoadFromEmbedded(fsys fs.ReadDirFS, dir string) error {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read embedded scenarios: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}
		p := path.Join(dir, entry.Name())
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("failed to read embedded file %s: %w", p, err)
		}
		scenario, err := Parse(data)
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		r.scenarios[scenario.Name] = scenario
	}
	return nil
}

func isYAML(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}

// Get retrieves a scenario by name
func (r *Registry) Get(name string) (*Scenario, error) {
	scenario, ok := r.scenarios[name]
	if !ok {
		return nil, fmt.Errorf("scenario '%s' not found (available: %s)", name, strings.Join(r.List(), ", "))
	}
	return scenario, nil
}

// List returns all scenario names in order
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.scenarios))
	for name := range r.scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListWithDescriptions returns all scenarios with their descriptions
func (r *Registry) ListWithDescriptions() map[string]string {
	result := make(map[string]string)
	for name, scenario := range r.scenarios {
		result[name] = scenario.Description
	}
	return result
}
