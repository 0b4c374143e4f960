package dashboard

import (
	"fmt"

	"dashcore/pkg/table"
)

// StepSpec is the declarative form of a derivation step, used by YAML
// dashboards. Op selects the step; the other fields feed it.
type StepSpec struct {
	Op       string             `yaml:"op" json:"op"`
	Column   string             `yaml:"column,omitempty" json:"column,omitempty"`
	As       string             `yaml:"as,omitempty" json:"as,omitempty"`
	Required bool               `yaml:"required,omitempty" json:"required,omitempty"`
	Replace  map[string]float64 `yaml:"replace,omitempty" json:"replace,omitempty"`
	Edges    []float64          `yaml:"edges,omitempty" json:"edges,omitempty"`
	Labels   []string           `yaml:"labels,omitempty" json:"labels,omitempty"`
	Factor   float64            `yaml:"factor,omitempty" json:"factor,omitempty"`
	Places   int                `yaml:"places,omitempty" json:"places,omitempty"`
	Left     string             `yaml:"left,omitempty" json:"left,omitempty"`
	Right    string             `yaml:"right,omitempty" json:"right,omitempty"`
	ID       []string           `yaml:"id,omitempty" json:"id,omitempty"`
	Values   []string           `yaml:"values,omitempty" json:"values,omitempty"`
	Columns  []string           `yaml:"columns,omitempty" json:"columns,omitempty"`
	Variable string             `yaml:"variable,omitempty" json:"variable,omitempty"`
	Value    string             `yaml:"value,omitempty" json:"value,omitempty"`
}

// Build returns the table step s describes.
func (s StepSpec) Build() (table.Step, error) {
	switch s.Op {
	case "parse_number":
		return table.ParseNumber{Column: s.Column, As: s.As, Replace: s.Replace, Required: s.Required}, nil
	case "parse_clock":
		return table.ParseClock{Column: s.Column, As: s.As, Required: s.Required}, nil
	case "year":
		return table.Year{Column: s.Column, As: s.As}, nil
	case "bucket":
		return table.Bucket{Column: s.Column, As: s.As, Edges: s.Edges, Labels: s.Labels}, nil
	case "scale":
		if s.Factor == 0 {
			return nil, fmt.Errorf("dashboard: step scale on %s needs a factor", s.Column)
		}
		return table.Scale{Column: s.Column, As: s.As, Factor: s.Factor}, nil
	case "share":
		return table.Share{Column: s.Column, As: s.As}, nil
	case "normalize_percent":
		return table.NormalizePercent{Column: s.Column, As: s.As}, nil
	case "difference":
		return table.Difference{Left: s.Left, Right: s.Right, As: s.As}, nil
	case "title_case":
		return table.TitleCase{Column: s.Column, As: s.As}, nil
	case "melt":
		return table.Melt{ID: s.ID, Values: s.Values, Variable: s.Variable, Value: s.Value}, nil
	case "keep_rows":
		return table.KeepRows{Column: s.Column, Values: s.Values}, nil
	case "drop_rows":
		return table.DropRows{Column: s.Column, Values: s.Values}, nil
	case "drop_missing":
		return table.DropMissing{Columns: s.Columns}, nil
	case "round":
		return table.Round{Column: s.Column, As: s.As, Places: s.Places}, nil
	case "":
		return nil, fmt.Errorf("dashboard: step op required")
	default:
		return nil, fmt.Errorf("dashboard: unknown step op %q", s.Op)
	}
}

// BuildSteps builds every spec in order.
func BuildSteps(specs []StepSpec) ([]table.Step, error) {
	steps := make([]table.Step, 0, len(specs))
	for i, spec := range specs {
		step, err := spec.Build()
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		steps = append(steps, step)
	}
	return steps, nil
}
