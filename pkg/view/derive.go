package view

import (
	"sort"
	"strings"

	"dashcore/pkg/filter"
	"dashcore/pkg/table"
)

// Derived is the materialised result of a view for one filter state.
// An empty result is valid and has zero rows.
type Derived struct {
	View    string          `json:"view"`
	Columns []string        `json:"columns"`
	Kinds   []table.Kind    `json:"kinds"`
	Rows    [][]table.Value `json:"rows"`
	// Matched counts source rows that passed every filter.
	Matched int `json:"matched"`
}

// Len returns the number of rows.
func (d Derived) Len() int { return len(d.Rows) }

// Empty reports whether no row survived filtering.
func (d Derived) Empty() bool { return len(d.Rows) == 0 }

// Index returns the position of a column or -1.
func (d Derived) Index(name string) int { return indexOf(d.Columns, name) }

// Column returns the values of one output column, nil when absent.
func (d Derived) Column(name string) []table.Value {
	i := d.Index(name)
	if i < 0 {
		return nil
	}
	out := make([]table.Value, len(d.Rows))
	for r, row := range d.Rows {
		out[r] = row[i]
	}
	return out
}

// Kind returns the kind of an output column.
func (d Derived) Kind(name string) (table.Kind, bool) {
	i := d.Index(name)
	if i < 0 {
		return "", false
	}
	return d.Kinds[i], true
}

// Derive computes the view of ds under state. It is a pure function of its
// inputs.
func Derive(ds *table.Dataset, reg *filter.Registry, state filter.State, spec Spec) (Derived, error) {
	if err := Validate(ds, reg, spec); err != nil {
		return Derived{}, err
	}
	ids, _ := reg.Expand(spec.Listens)
	preds := collect(reg, ids)

	rows := make([]int, ds.Rows())
	for i := range rows {
		rows[i] = i
	}
	for _, m := range spec.Where {
		rows = keepMatch(ds, m, rows)
	}
	selectionEmpty := true
	for _, id := range preds.selections {
		if state.Selection(id) != "" {
			selectionEmpty = false
		}
	}
	policy := spec.emptySelection()
	if selectionEmpty && len(preds.selections) > 0 && policy == EmptyNone {
		rows = rows[:0]
	}
	for _, stage := range spec.order() {
		switch stage {
		case StageRange:
			for _, id := range preds.ranges {
				rows = keepRange(ds, reg, state, id, rows)
			}
		case StageToggle:
			for _, group := range preds.groups {
				rows = keepToggles(ds, reg, state, group, rows)
			}
		case StageSelection:
			for _, id := range preds.selections {
				rows = keepSelection(ds, reg, state, id, rows)
			}
		}
	}

	out := Derived{View: spec.ID, Matched: len(rows)}
	if len(spec.GroupBy) > 0 || len(spec.Aggregates) > 0 {
		group(ds, spec, rows, &out)
	} else {
		project(ds, outputColumns(ds, spec), rows, &out)
	}
	if spec.Sort != nil {
		orderBy(&out, spec.Sort.By, spec.Sort.Descending)
	}
	if spec.TopN != nil && (policy != EmptyTopN || selectionEmpty) {
		orderBy(&out, spec.TopN.By, spec.TopN.Descending)
		if len(out.Rows) > spec.TopN.N {
			out.Rows = out.Rows[:spec.TopN.N]
		}
	}
	if out.Rows == nil {
		out.Rows = [][]table.Value{}
	}
	return out, nil
}

type predicates struct {
	ranges     []string
	groups     []string
	selections []string
}

func collect(reg *filter.Registry, ids []string) predicates {
	var p predicates
	seenGroup := make(map[string]bool)
	for _, id := range ids {
		spec, _ := reg.Spec(id)
		switch spec.Kind {
		case filter.KindRange:
			p.ranges = append(p.ranges, id)
		case filter.KindToggle:
			if !seenGroup[spec.Group] {
				seenGroup[spec.Group] = true
				p.groups = append(p.groups, spec.Group)
			}
		case filter.KindSelect, filter.KindCrossFilter:
			p.selections = append(p.selections, id)
		}
	}
	sort.Strings(p.groups)
	return p
}

func keepRange(ds *table.Dataset, reg *filter.Registry, state filter.State, id string, rows []int) []int {
	spec, _ := reg.Spec(id)
	r, ok := state.Range(id)
	if !ok {
		return rows
	}
	col, _ := ds.Column(spec.Column)
	return keep(rows, func(row int) bool { return r.Contains(col.Values[row]) })
}

func keepToggles(ds *table.Dataset, reg *filter.Registry, state filter.State, group string, rows []int) []int {
	values, all := reg.ActiveValues(state, group)
	if all {
		return rows
	}
	members := reg.Group(group)
	col, _ := ds.Column(members[0].Column)
	admit := make(map[string]struct{}, len(values))
	for _, v := range values {
		admit[v] = struct{}{}
	}
	return keep(rows, func(row int) bool {
		v := col.Values[row]
		_, ok := admit[v.String()]
		return ok && v.Valid
	})
}

func keepSelection(ds *table.Dataset, reg *filter.Registry, state filter.State, id string, rows []int) []int {
	selected := state.Selection(id)
	if selected == "" {
		return rows
	}
	spec, _ := reg.Spec(id)
	col, _ := ds.Column(spec.Column)
	return keep(rows, func(row int) bool {
		v := col.Values[row]
		return v.Valid && v.String() == selected
	})
}

func keepMatch(ds *table.Dataset, m Match, rows []int) []int {
	col, _ := ds.Column(m.Column)
	admit := make(map[string]struct{}, len(m.Values))
	for _, v := range m.Values {
		admit[v] = struct{}{}
	}
	return keep(rows, func(row int) bool {
		v := col.Values[row]
		_, ok := admit[v.String()]
		return ok && v.Valid
	})
}

func keep(rows []int, pred func(int) bool) []int {
	out := make([]int, 0, len(rows))
	for _, r := range rows {
		if pred(r) {
			out = append(out, r)
		}
	}
	return out
}

func project(ds *table.Dataset, names []string, rows []int, out *Derived) {
	cols := make([]*table.Column, len(names))
	for i, name := range names {
		cols[i], _ = ds.Column(name)
		out.Columns = append(out.Columns, cols[i].Name)
		out.Kinds = append(out.Kinds, cols[i].Kind)
	}
	out.Rows = make([][]table.Value, len(rows))
	for i, r := range rows {
		row := make([]table.Value, len(cols))
		for c, col := range cols {
			row[c] = col.Values[r]
		}
		out.Rows[i] = row
	}
}

func orderBy(out *Derived, column string, descending bool) {
	i := out.Index(column)
	if i < 0 {
		return
	}
	sort.SliceStable(out.Rows, func(a, b int) bool {
		c := out.Rows[a][i].Compare(out.Rows[b][i])
		if descending {
			// missing values stay last in descending order too
			if !out.Rows[a][i].Valid || !out.Rows[b][i].Valid {
				return out.Rows[a][i].Valid && !out.Rows[b][i].Valid
			}
			return c > 0
		}
		return c < 0
	})
}

func joinKey(values []table.Value) string {
	parts := make([]string, len(values))
	for i, v := range values {
		if !v.Valid {
			parts[i] = "\x00"
			continue
		}
		parts[i] = v.String()
	}
	return strings.Join(parts, "\x1f")
}
