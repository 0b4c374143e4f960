package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"dashcore/pkg/bundle"
	"dashcore/pkg/dashboard"
	"dashcore/pkg/filter"
	"dashcore/pkg/table"
	"dashcore/pkg/view"
)

// DashboardFile is the YAML form of a dashboard definition.
type DashboardFile struct {
	Key         string               `yaml:"key"`
	Title       string               `yaml:"title"`
	Description string               `yaml:"description"`
	Source      dashboard.Source     `yaml:"source"`
	Schema      []table.ColumnSpec   `yaml:"schema"`
	Steps       []dashboard.StepSpec `yaml:"steps"`
	Controls    []filter.Spec        `yaml:"controls"`
	Views       []view.Spec          `yaml:"views"`
	Outputs     bundle.Specs         `yaml:"outputs"`
}

// Definition converts the file into a validated definition.
func (f DashboardFile) Definition() (dashboard.Definition, error) {
	steps, err := dashboard.BuildSteps(f.Steps)
	if err != nil {
		return dashboard.Definition{}, fmt.Errorf("dashboard %s: %w", f.Key, err)
	}
	def := dashboard.Definition{
		Key:         f.Key,
		Title:       f.Title,
		Description: f.Description,
		Source:      f.Source,
		Schema:      f.Schema,
		Steps:       steps,
		Controls:    f.Controls,
		Views:       f.Views,
		Outputs:     f.Outputs,
	}
	if err := def.Validate(); err != nil {
		return dashboard.Definition{}, err
	}
	return def, nil
}

// ParseDashboard decodes one YAML document. Unknown fields are rejected.
func ParseDashboard(data []byte) (dashboard.Definition, error) {
	var f DashboardFile
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return dashboard.Definition{}, fmt.Errorf("config: decode dashboard: %w", err)
	}
	return f.Definition()
}

// LoadDashboards parses every *.yaml and *.yml file in dir, sorted by name.
// An empty dir yields nothing.
func LoadDashboards(dir string) ([]dashboard.Definition, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	defs := make([]dashboard.Definition, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name)) // #nosec G304 -- files listed from the dashboards dir
		if err != nil {
			return nil, err
		}
		def, err := ParseDashboard(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}
