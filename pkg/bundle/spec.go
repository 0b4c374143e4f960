// Package bundle renders derived views and filter state into the output
// bundle handed to the UI layer.
package bundle

import (
	"errors"
	"fmt"
	"strings"

	"dashcore/pkg/filter"
	"dashcore/pkg/view"
)

// Output is implemented by every output spec. Views and Controls name what
// the output reads, so a caller can skip re-rendering when neither changed.
type Output interface {
	OutputID() string
	ViewID() string
	Controls() []string
}

// Annotation kinds.
const (
	AnnotateMax  = "max"
	AnnotateMin  = "min"
	AnnotateLast = "last"
)

// ChartSpec describes a chart. Long-format data names a Color column whose
// values become series; wide data lists several Y columns.
type ChartSpec struct {
	ID       string   `yaml:"id" json:"id"`
	View     string   `yaml:"view" json:"view"`
	Title    string   `yaml:"title,omitempty" json:"title,omitempty"`
	Type     string   `yaml:"type" json:"type"`
	X        string   `yaml:"x,omitempty" json:"x,omitempty"`
	Y        []string `yaml:"y" json:"y"`
	Color    string   `yaml:"color,omitempty" json:"color,omitempty"`
	Size     string   `yaml:"size,omitempty" json:"size,omitempty"`
	Series   string   `yaml:"series,omitempty" json:"series,omitempty"`
	YFormat  string   `yaml:"y_format,omitempty" json:"y_format,omitempty"`
	Annotate []string `yaml:"annotate,omitempty" json:"annotate,omitempty"`
}

func (s ChartSpec) OutputID() string { return s.ID }
func (s ChartSpec) ViewID() string   { return s.View }
func (s ChartSpec) Controls() []string {
	if s.Series == "" {
		return nil
	}
	return []string{s.Series}
}

// KPI statistics.
const (
	StatCurrent = "current"
	StatAvg     = "avg"
	StatPeak    = "peak"
	StatMin     = "min"
	StatSum     = "sum"
	StatCount   = "count"
	StatUnique  = "nunique"
)

// DefaultSentinel is shown for statistics of an empty view.
const DefaultSentinel = "N/A"

// KPISpec describes scalar indicators over one view column. With Series
// set, one group of stats is produced per active toggle of that group.
type KPISpec struct {
	ID       string   `yaml:"id" json:"id"`
	View     string   `yaml:"view" json:"view"`
	Label    string   `yaml:"label,omitempty" json:"label,omitempty"`
	Column   string   `yaml:"column,omitempty" json:"column,omitempty"`
	X        string   `yaml:"x,omitempty" json:"x,omitempty"`
	Stats    []string `yaml:"stats" json:"stats"`
	Series   string   `yaml:"series,omitempty" json:"series,omitempty"`
	Scale    float64  `yaml:"scale,omitempty" json:"scale,omitempty"`
	Format   string   `yaml:"format,omitempty" json:"format,omitempty"`
	Sentinel string   `yaml:"sentinel,omitempty" json:"sentinel,omitempty"`
}

func (s KPISpec) OutputID() string { return s.ID }
func (s KPISpec) ViewID() string   { return s.View }
func (s KPISpec) Controls() []string {
	if s.Series == "" {
		return nil
	}
	return []string{s.Series}
}

// SummarySpec describes a text block listing the extrema of Column and
// where they occur.
type SummarySpec struct {
	ID     string `yaml:"id" json:"id"`
	View   string `yaml:"view" json:"view"`
	Title  string `yaml:"title,omitempty" json:"title,omitempty"`
	Column string `yaml:"column" json:"column"`
	At     string `yaml:"at" json:"at"`
	Series string `yaml:"series,omitempty" json:"series,omitempty"`
	Range  string `yaml:"range,omitempty" json:"range,omitempty"`
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
}

func (s SummarySpec) OutputID() string { return s.ID }
func (s SummarySpec) ViewID() string   { return s.View }
func (s SummarySpec) Controls() []string {
	var out []string
	if s.Series != "" {
		out = append(out, s.Series)
	}
	if s.Range != "" {
		out = append(out, s.Range)
	}
	return out
}

// ToggleSpec renders the on/off style of every toggle of a group.
type ToggleSpec struct {
	ID       string `yaml:"id" json:"id"`
	Group    string `yaml:"group" json:"group"`
	OnClass  string `yaml:"on_class,omitempty" json:"on_class,omitempty"`
	OffClass string `yaml:"off_class,omitempty" json:"off_class,omitempty"`
}

func (s ToggleSpec) OutputID() string   { return s.ID }
func (s ToggleSpec) ViewID() string     { return "" }
func (s ToggleSpec) Controls() []string { return []string{s.Group} }

// GridSpec renders view rows as a table widget.
type GridSpec struct {
	ID      string   `yaml:"id" json:"id"`
	View    string   `yaml:"view" json:"view"`
	Title   string   `yaml:"title,omitempty" json:"title,omitempty"`
	Columns []string `yaml:"columns,omitempty" json:"columns,omitempty"`
	Limit   int      `yaml:"limit,omitempty" json:"limit,omitempty"`
}

func (s GridSpec) OutputID() string   { return s.ID }
func (s GridSpec) ViewID() string     { return s.View }
func (s GridSpec) Controls() []string { return nil }

// Specs groups every output of a dashboard.
type Specs struct {
	Charts    []ChartSpec   `yaml:"charts,omitempty" json:"charts,omitempty"`
	KPIs      []KPISpec     `yaml:"kpis,omitempty" json:"kpis,omitempty"`
	Summaries []SummarySpec `yaml:"summaries,omitempty" json:"summaries,omitempty"`
	Toggles   []ToggleSpec  `yaml:"toggles,omitempty" json:"toggles,omitempty"`
	Grids     []GridSpec    `yaml:"grids,omitempty" json:"grids,omitempty"`
}

// Outputs lists every spec in bundle order.
func (s Specs) Outputs() []Output {
	var out []Output
	for _, c := range s.Charts {
		out = append(out, c)
	}
	for _, k := range s.KPIs {
		out = append(out, k)
	}
	for _, m := range s.Summaries {
		out = append(out, m)
	}
	for _, t := range s.Toggles {
		out = append(out, t)
	}
	for _, g := range s.Grids {
		out = append(out, g)
	}
	return out
}

// Chart returns the chart spec with the given id.
func (s Specs) Chart(id string) (ChartSpec, bool) {
	for _, c := range s.Charts {
		if c.ID == id {
			return c, true
		}
	}
	return ChartSpec{}, false
}

// Validate checks output references against the registry and the columns of
// views derived once, typically for the initial state.
func (s Specs) Validate(reg *filter.Registry, views map[string]view.Derived) error {
	seen := make(map[string]struct{})
	for _, out := range s.Outputs() {
		id := strings.TrimSpace(out.OutputID())
		if id == "" {
			return errors.New("bundle: output id required")
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("bundle: output %s declared twice", id)
		}
		seen[id] = struct{}{}
		if _, err := reg.Expand(out.Controls()); err != nil {
			return fmt.Errorf("bundle: output %s: %w", id, err)
		}
		if out.ViewID() == "" {
			continue
		}
		d, ok := views[out.ViewID()]
		if !ok {
			return fmt.Errorf("bundle: output %s: unknown view %q", id, out.ViewID())
		}
		for _, col := range columnsOf(reg, out) {
			if col != "" && d.Index(col) < 0 {
				return fmt.Errorf("bundle: output %s: view %s has no column %q", id, d.View, col)
			}
		}
	}
	for _, out := range s.Outputs() {
		var series string
		switch o := out.(type) {
		case ChartSpec:
			series = o.Series
		case KPISpec:
			series = o.Series
		case SummarySpec:
			series = o.Series
		}
		if series != "" && len(reg.Group(series)) == 0 {
			return fmt.Errorf("bundle: output %s: series %q is not a toggle group", out.OutputID(), series)
		}
	}
	for _, t := range s.Toggles {
		if len(reg.Group(t.Group)) == 0 {
			return fmt.Errorf("bundle: output %s: unknown toggle group %q", t.ID, t.Group)
		}
	}
	for _, k := range s.KPIs {
		if k.Column == "" {
			for _, stat := range k.Stats {
				if stat != StatCount {
					return fmt.Errorf("bundle: output %s: stat %s needs a column", k.ID, stat)
				}
			}
		}
		for _, stat := range k.Stats {
			switch stat {
			case StatCurrent, StatAvg, StatPeak, StatMin, StatSum, StatCount, StatUnique:
			default:
				return fmt.Errorf("bundle: output %s: unknown stat %q", k.ID, stat)
			}
		}
	}
	for _, c := range s.Charts {
		if len(c.Y) == 0 {
			return fmt.Errorf("bundle: output %s: chart needs a y column", c.ID)
		}
		for _, a := range c.Annotate {
			switch a {
			case AnnotateMax, AnnotateMin, AnnotateLast:
			default:
				return fmt.Errorf("bundle: output %s: unknown annotation %q", c.ID, a)
			}
		}
	}
	return nil
}

func columnsOf(reg *filter.Registry, out Output) []string {
	switch o := out.(type) {
	case ChartSpec:
		return append([]string{o.X, o.Color, o.Size, seriesColumn(reg, o.Series)}, o.Y...)
	case KPISpec:
		return []string{o.Column, o.X, seriesColumn(reg, o.Series)}
	case SummarySpec:
		return []string{o.Column, o.At, seriesColumn(reg, o.Series)}
	case GridSpec:
		return o.Columns
	default:
		return nil
	}
}

// seriesColumn returns the column a toggle group filters on, or "".
func seriesColumn(reg *filter.Registry, group string) string {
	if group == "" {
		return ""
	}
	members := reg.Group(group)
	if len(members) == 0 {
		return ""
	}
	return members[0].Column
}
