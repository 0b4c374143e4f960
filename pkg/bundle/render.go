package bundle

import (
	"fmt"
	"strings"

	"dashcore/pkg/filter"
	"dashcore/pkg/table"
	"dashcore/pkg/view"
)

// Point is one chart datum.
type Point struct {
	X    table.Value `json:"x"`
	Y    table.Value `json:"y"`
	Size table.Value `json:"size"`
}

// Series is a named sequence of points.
type Series struct {
	Name   string  `json:"name"`
	Points []Point `json:"points"`
}

// Annotation labels one point of a series.
type Annotation struct {
	Series string      `json:"series"`
	Kind   string      `json:"kind"`
	X      table.Value `json:"x"`
	Y      table.Value `json:"y"`
	Text   string      `json:"text"`
}

// Chart is a rendered chart description.
type Chart struct {
	ID          string       `json:"id"`
	Title       string       `json:"title,omitempty"`
	Type        string       `json:"type"`
	X           string       `json:"x,omitempty"`
	YFormat     string       `json:"y_format,omitempty"`
	Series      []Series     `json:"series"`
	Annotations []Annotation `json:"annotations,omitempty"`
	Empty       bool         `json:"empty,omitempty"`
}

// RenderChart builds a chart from a derived view.
func RenderChart(spec ChartSpec, d view.Derived, reg *filter.Registry, state filter.State) Chart {
	chart := Chart{ID: spec.ID, Title: spec.Title, Type: spec.Type, X: spec.X, YFormat: spec.YFormat, Series: []Series{}, Empty: d.Empty()}
	xi, si := d.Index(spec.X), d.Index(spec.Size)
	point := func(row []table.Value, r, yi int) Point {
		p := Point{Y: row[yi]}
		if xi >= 0 {
			p.X = row[xi]
		} else {
			p.X = table.Number(float64(r))
		}
		if si >= 0 {
			p.Size = row[si]
		}
		return p
	}
	allowed := seriesFilter(spec.Series, reg, state)
	if spec.Color != "" {
		ci, yi := d.Index(spec.Color), d.Index(spec.Y[0])
		index := make(map[string]int)
		for r, row := range d.Rows {
			name := row[ci].String()
			if allowed != nil && !allowed[name] {
				continue
			}
			i, ok := index[name]
			if !ok {
				i = len(chart.Series)
				index[name] = i
				chart.Series = append(chart.Series, Series{Name: name})
			}
			chart.Series[i].Points = append(chart.Series[i].Points, point(row, r, yi))
		}
	} else {
		for _, y := range spec.Y {
			if allowed != nil && !allowed[y] {
				continue
			}
			yi := d.Index(y)
			s := Series{Name: d.Columns[yi], Points: make([]Point, 0, len(d.Rows))}
			for r, row := range d.Rows {
				s.Points = append(s.Points, point(row, r, yi))
			}
			chart.Series = append(chart.Series, s)
		}
	}
	for _, s := range chart.Series {
		for _, kind := range spec.Annotate {
			if p, ok := pick(s.Points, kind); ok {
				chart.Annotations = append(chart.Annotations, Annotation{
					Series: s.Name,
					Kind:   kind,
					X:      p.X,
					Y:      p.Y,
					Text:   fmt.Sprintf("%s: %s (%s)", kind, Format(p.Y, spec.YFormat, DefaultSentinel), p.X.String()),
				})
			}
		}
	}
	return chart
}

// seriesFilter returns the series names admitted by the active toggles of
// group, or nil when every series passes.
func seriesFilter(group string, reg *filter.Registry, state filter.State) map[string]bool {
	if group == "" {
		return nil
	}
	values, all := reg.ActiveValues(state, group)
	if all {
		return nil
	}
	out := make(map[string]bool, len(values))
	for _, v := range values {
		out[v] = true
	}
	return out
}

// seriesNames lists the series of a group to report on: the active toggles,
// or every toggle when none is active.
func seriesNames(group string, reg *filter.Registry, state filter.State) []string {
	values, all := reg.ActiveValues(state, group)
	if !all {
		return values
	}
	for _, spec := range reg.Group(group) {
		values = append(values, spec.Value)
	}
	return values
}

// pick returns the first point with the extreme (or last valid) Y.
func pick(points []Point, kind string) (Point, bool) {
	var best Point
	found := false
	for _, p := range points {
		if !p.Y.Valid {
			continue
		}
		switch {
		case !found:
			best, found = p, true
		case kind == AnnotateMax && p.Y.Compare(best.Y) > 0:
			best = p
		case kind == AnnotateMin && p.Y.Compare(best.Y) < 0:
			best = p
		case kind == AnnotateLast:
			best = p
		}
	}
	return best, found
}

// Stat is one KPI value with its display text.
type Stat struct {
	Series string      `json:"series,omitempty"`
	Name   string      `json:"name"`
	Value  table.Value `json:"value"`
	Text   string      `json:"text"`
}

// KPI is a rendered indicator group.
type KPI struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
	Stats []Stat `json:"stats"`
}

// RenderKPI computes the statistics of a KPI spec. Statistics of an empty
// selection render as 0 for sums and counts and as the sentinel otherwise.
func RenderKPI(spec KPISpec, d view.Derived, reg *filter.Registry, state filter.State) KPI {
	kpi := KPI{ID: spec.ID, Label: spec.Label, Stats: []Stat{}}
	sentinel := spec.Sentinel
	if sentinel == "" {
		sentinel = DefaultSentinel
	}
	if spec.Series == "" {
		for _, name := range spec.Stats {
			kpi.Stats = append(kpi.Stats, stat(spec, name, "", d, d.Rows, sentinel))
		}
		return kpi
	}
	si := d.Index(seriesColumn(reg, spec.Series))
	for _, series := range seriesNames(spec.Series, reg, state) {
		var rows [][]table.Value
		for _, row := range d.Rows {
			if row[si].Valid && row[si].String() == series {
				rows = append(rows, row)
			}
		}
		for _, name := range spec.Stats {
			kpi.Stats = append(kpi.Stats, stat(spec, name, series, d, rows, sentinel))
		}
	}
	return kpi
}

func stat(spec KPISpec, name, series string, d view.Derived, rows [][]table.Value, sentinel string) Stat {
	out := Stat{Series: series, Name: name}
	if name == StatCount && spec.Column == "" {
		out.Value = table.Number(float64(len(rows)))
		out.Text = Format(out.Value, spec.Format, sentinel)
		return out
	}
	ci, xi := d.Index(spec.Column), d.Index(spec.X)
	var (
		n           int
		sum         float64
		peak, low   table.Value
		current, at table.Value
		unique      = make(map[string]struct{})
	)
	for _, row := range rows {
		v := row[ci]
		if !v.Valid {
			continue
		}
		unique[v.String()] = struct{}{}
		if n == 0 || v.Compare(peak) > 0 {
			peak = v
		}
		if n == 0 || v.Compare(low) < 0 {
			low = v
		}
		// current is the value at the greatest X, or the last row
		if xi < 0 || !at.Valid || row[xi].Compare(at) >= 0 {
			current = v
			if xi >= 0 {
				at = row[xi]
			}
		}
		n++
		sum += v.Num
	}
	switch name {
	case StatSum:
		out.Value = table.Number(sum)
	case StatCount:
		out.Value = table.Number(float64(n))
	case StatUnique:
		out.Value = table.Number(float64(len(unique)))
	case StatAvg:
		if n > 0 {
			out.Value = table.Number(sum / float64(n))
		}
	case StatPeak:
		out.Value = peak
	case StatMin:
		out.Value = low
	case StatCurrent:
		out.Value = current
	}
	if !out.Value.Valid {
		out.Value = table.Missing(table.KindNumber)
	}
	if spec.Scale != 0 && out.Value.Valid && out.Value.Kind == table.KindNumber && name != StatCount && name != StatUnique {
		out.Value = table.Number(out.Value.Num * spec.Scale)
	}
	out.Text = Format(out.Value, spec.Format, sentinel)
	return out
}

// Summary is a rendered text block.
type Summary struct {
	ID    string   `json:"id"`
	Title string   `json:"title,omitempty"`
	Lines []string `json:"lines"`
}

// NoDataText is the summary line for an empty selection.
const NoDataText = "No data for the selected filters"

// RenderSummary lists, per series, the maximum and minimum of Column with
// the At location where each occurs.
func RenderSummary(spec SummarySpec, d view.Derived, reg *filter.Registry, state filter.State) Summary {
	sum := Summary{ID: spec.ID, Title: spec.Title, Lines: []string{}}
	if spec.Range != "" {
		if r, ok := state.Range(spec.Range); ok {
			sum.Lines = append(sum.Lines, fmt.Sprintf("From %s to %s", r.Low, r.High))
		}
	}
	ci, ai := d.Index(spec.Column), d.Index(spec.At)
	type group struct {
		name   string
		points []Point
	}
	var groups []group
	if spec.Series == "" {
		g := group{}
		for _, row := range d.Rows {
			g.points = append(g.points, Point{X: row[ai], Y: row[ci]})
		}
		groups = append(groups, g)
	} else {
		si := d.Index(seriesColumn(reg, spec.Series))
		for _, name := range seriesNames(spec.Series, reg, state) {
			g := group{name: name}
			for _, row := range d.Rows {
				if row[si].Valid && row[si].String() == name {
					g.points = append(g.points, Point{X: row[ai], Y: row[ci]})
				}
			}
			groups = append(groups, g)
		}
	}
	wrote := false
	for _, g := range groups {
		hi, ok := pick(g.points, AnnotateMax)
		if !ok {
			continue
		}
		lo, _ := pick(g.points, AnnotateMin)
		var b strings.Builder
		if g.name != "" {
			b.WriteString(g.name)
			b.WriteString(": ")
		}
		fmt.Fprintf(&b, "highest %s on %s, lowest %s on %s",
			Format(hi.Y, spec.Format, DefaultSentinel), hi.X,
			Format(lo.Y, spec.Format, DefaultSentinel), lo.X)
		sum.Lines = append(sum.Lines, b.String())
		wrote = true
	}
	if !wrote {
		sum.Lines = append(sum.Lines, NoDataText)
	}
	return sum
}

// ControlStyle is the visual state of one toggle.
type ControlStyle struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Active bool   `json:"active"`
	Class  string `json:"class"`
}

// ToggleGroup is the rendered state of a toggle group.
type ToggleGroup struct {
	ID       string         `json:"id"`
	Group    string         `json:"group"`
	Controls []ControlStyle `json:"controls"`
}

// RenderToggles derives toggle styles from the filter state alone.
func RenderToggles(spec ToggleSpec, reg *filter.Registry, state filter.State) ToggleGroup {
	on, off := spec.OnClass, spec.OffClass
	if on == "" {
		on = "on"
	}
	if off == "" {
		off = "off"
	}
	out := ToggleGroup{ID: spec.ID, Group: spec.Group, Controls: []ControlStyle{}}
	for _, t := range reg.Group(spec.Group) {
		label := t.Label
		if label == "" {
			label = t.Value
		}
		style := ControlStyle{ID: t.ID, Label: label, Active: state.Active(t.ID), Class: off}
		if style.Active {
			style.Class = on
		}
		out.Controls = append(out.Controls, style)
	}
	return out
}

// Grid is a rendered table widget.
type Grid struct {
	ID      string          `json:"id"`
	Title   string          `json:"title,omitempty"`
	Columns []string        `json:"columns"`
	Rows    [][]table.Value `json:"rows"`
}

// RenderGrid projects view rows onto the grid columns.
func RenderGrid(spec GridSpec, d view.Derived) Grid {
	cols := spec.Columns
	if len(cols) == 0 {
		cols = d.Columns
	}
	idx := make([]int, len(cols))
	names := make([]string, len(cols))
	for i, c := range cols {
		idx[i] = d.Index(c)
		names[i] = d.Columns[idx[i]]
	}
	rows := d.Rows
	if spec.Limit > 0 && len(rows) > spec.Limit {
		rows = rows[:spec.Limit]
	}
	grid := Grid{ID: spec.ID, Title: spec.Title, Columns: names, Rows: make([][]table.Value, len(rows))}
	for r, row := range rows {
		out := make([]table.Value, len(idx))
		for i, j := range idx {
			out[i] = row[j]
		}
		grid.Rows[r] = out
	}
	return grid
}
