// Package view derives filtered, optionally grouped and ranked views of a
// dataset from a filter state.
package view

import (
	"errors"
	"fmt"
	"strings"

	"dashcore/pkg/filter"
	"dashcore/pkg/table"
)

// Stage names one predicate family of a view.
type Stage string

const (
	StageRange     Stage = "range"
	StageToggle    Stage = "toggle"
	StageSelection Stage = "selection"
)

// DefaultOrder is the predicate composition order used when a view declares
// none.
var DefaultOrder = []Stage{StageRange, StageToggle, StageSelection}

// EmptySelection decides what a view shows while its selection controls are
// all empty.
type EmptySelection string

const (
	// EmptyAll ignores the selection filter.
	EmptyAll EmptySelection = "all"
	// EmptyNone shows no rows.
	EmptyNone EmptySelection = "none"
	// EmptyTopN ignores the selection filter and applies TopN; once a
	// selection is made TopN is skipped.
	EmptyTopN EmptySelection = "top_n"
)

// Aggregate functions.
const (
	FuncSum    = "sum"
	FuncMean   = "mean"
	FuncCount  = "count"
	FuncMin    = "min"
	FuncMax    = "max"
	FuncFirst  = "first"
	FuncLast   = "last"
	FuncUnique = "nunique"
)

// Aggregate reduces Column within each group. Count with no Column counts
// rows.
type Aggregate struct {
	Column string `yaml:"column,omitempty" json:"column,omitempty"`
	Func   string `yaml:"func" json:"func"`
	As     string `yaml:"as,omitempty" json:"as,omitempty"`
}

// Name returns the output column name.
func (a Aggregate) Name() string {
	if a.As != "" {
		return a.As
	}
	if a.Column == "" {
		return a.Func
	}
	return a.Func + "_" + a.Column
}

// Order sorts the output by one column. Ties keep their prior order.
type Order struct {
	By         string `yaml:"by" json:"by"`
	Descending bool   `yaml:"descending,omitempty" json:"descending,omitempty"`
}

// TopN keeps the first N rows after ordering by By.
type TopN struct {
	N          int    `yaml:"n" json:"n"`
	By         string `yaml:"by" json:"by"`
	Descending bool   `yaml:"descending,omitempty" json:"descending,omitempty"`
}

// Match is a fixed row predicate: Column must render to one of Values.
type Match struct {
	Column string   `yaml:"column" json:"column"`
	Values []string `yaml:"values" json:"values"`
}

// Spec declares a view.
type Spec struct {
	ID string `yaml:"id" json:"id"`
	// Where restricts the view before any control applies.
	Where []Match `yaml:"where,omitempty" json:"where,omitempty"`
	// Listens names controls or toggle groups whose values filter the view.
	Listens        []string       `yaml:"listens,omitempty" json:"listens,omitempty"`
	Order          []Stage        `yaml:"order,omitempty" json:"order,omitempty"`
	Columns        []string       `yaml:"columns,omitempty" json:"columns,omitempty"`
	GroupBy        []string       `yaml:"group_by,omitempty" json:"group_by,omitempty"`
	Aggregates     []Aggregate    `yaml:"aggregates,omitempty" json:"aggregates,omitempty"`
	Sort           *Order         `yaml:"sort,omitempty" json:"sort,omitempty"`
	TopN           *TopN          `yaml:"top_n,omitempty" json:"top_n,omitempty"`
	EmptySelection EmptySelection `yaml:"empty_selection,omitempty" json:"empty_selection,omitempty"`
}

// order returns the declared stages followed by any stage left out, so every
// listened control filters the view.
func (s Spec) order() []Stage {
	if len(s.Order) == 0 {
		return DefaultOrder
	}
	out := append([]Stage(nil), s.Order...)
	for _, stage := range DefaultOrder {
		missing := true
		for _, declared := range s.Order {
			if declared == stage {
				missing = false
			}
		}
		if missing {
			out = append(out, stage)
		}
	}
	return out
}

func (s Spec) emptySelection() EmptySelection {
	if s.EmptySelection == "" {
		return EmptyAll
	}
	return s.EmptySelection
}

// Validate checks the spec against the dataset columns and the registry.
func Validate(ds *table.Dataset, reg *filter.Registry, spec Spec) error {
	if strings.TrimSpace(spec.ID) == "" {
		return errors.New("view: id required")
	}
	if _, err := reg.Expand(spec.Listens); err != nil {
		return fmt.Errorf("view %s: %w", spec.ID, err)
	}
	seen := make(map[Stage]bool)
	for _, stage := range spec.Order {
		switch stage {
		case StageRange, StageToggle, StageSelection:
		default:
			return fmt.Errorf("view %s: unknown stage %q", spec.ID, stage)
		}
		if seen[stage] {
			return fmt.Errorf("view %s: stage %s listed twice", spec.ID, stage)
		}
		seen[stage] = true
	}
	switch spec.emptySelection() {
	case EmptyAll, EmptyNone:
	case EmptyTopN:
		if spec.TopN == nil {
			return fmt.Errorf("view %s: empty_selection top_n needs top_n", spec.ID)
		}
	default:
		return fmt.Errorf("view %s: unknown empty_selection %q", spec.ID, spec.EmptySelection)
	}
	need := append([]string(nil), spec.Columns...)
	need = append(need, spec.GroupBy...)
	for _, m := range spec.Where {
		if len(m.Values) == 0 {
			return fmt.Errorf("view %s: where on %s lists no values", spec.ID, m.Column)
		}
		need = append(need, m.Column)
	}
	for _, agg := range spec.Aggregates {
		switch agg.Func {
		case FuncSum, FuncMean, FuncMin, FuncMax:
			col, ok := ds.Column(agg.Column)
			if ok && col.Kind == table.KindCategory && agg.Func != FuncMin && agg.Func != FuncMax {
				return fmt.Errorf("view %s: %s over category column %s", spec.ID, agg.Func, agg.Column)
			}
		case FuncCount, FuncFirst, FuncLast, FuncUnique:
		default:
			return fmt.Errorf("view %s: unknown aggregate %q", spec.ID, agg.Func)
		}
		if agg.Column != "" {
			need = append(need, agg.Column)
		} else if agg.Func != FuncCount {
			return fmt.Errorf("view %s: aggregate %s needs a column", spec.ID, agg.Func)
		}
	}
	if len(spec.Aggregates) > 0 && len(spec.Columns) > 0 {
		return fmt.Errorf("view %s: columns and aggregates are exclusive", spec.ID)
	}
	for _, name := range need {
		if _, ok := ds.Column(name); !ok {
			return fmt.Errorf("view %s: column %q: %w", spec.ID, name, table.ErrColumnMissing)
		}
	}
	out := outputColumns(ds, spec)
	if spec.Sort != nil && indexOf(out, spec.Sort.By) < 0 {
		return fmt.Errorf("view %s: sort column %q not in output", spec.ID, spec.Sort.By)
	}
	if spec.TopN != nil {
		if spec.TopN.N <= 0 {
			return fmt.Errorf("view %s: top_n must be positive", spec.ID)
		}
		if indexOf(out, spec.TopN.By) < 0 {
			return fmt.Errorf("view %s: top_n column %q not in output", spec.ID, spec.TopN.By)
		}
	}
	return nil
}

func outputColumns(ds *table.Dataset, spec Spec) []string {
	if len(spec.GroupBy) > 0 || len(spec.Aggregates) > 0 {
		out := make([]string, 0, len(spec.GroupBy)+len(spec.Aggregates))
		for _, g := range spec.GroupBy {
			col, _ := ds.Column(g)
			out = append(out, col.Name)
		}
		for _, agg := range spec.Aggregates {
			out = append(out, agg.Name())
		}
		return out
	}
	if len(spec.Columns) > 0 {
		out := make([]string, len(spec.Columns))
		for i, name := range spec.Columns {
			col, _ := ds.Column(name)
			out[i] = col.Name
		}
		return out
	}
	out := make([]string, 0)
	for _, info := range ds.Schema() {
		out = append(out, info.Name)
	}
	return out
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	for i, n := range names {
		if strings.EqualFold(n, name) {
			return i
		}
	}
	return -1
}
