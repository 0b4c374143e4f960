// Package filter holds the control registry and the immutable filter state
// that every view of a dashboard is derived from.
package filter

import (
	"sort"

	"dashcore/pkg/table"
)

// Kind identifies a control variant.
type Kind string

const (
	// KindRange bounds a number or date column, inclusive on both ends.
	KindRange Kind = "range"
	// KindToggle is one category of a toggle group.
	KindToggle Kind = "toggle"
	// KindSelect picks at most one category from a dropdown or radio.
	KindSelect Kind = "select"
	// KindCrossFilter is a selection driven by clicks on another chart.
	KindCrossFilter Kind = "crossfilter"
)

// Spec declares a control and its default value.
type Spec struct {
	ID     string `yaml:"id" json:"id"`
	Kind   Kind   `yaml:"kind" json:"kind"`
	Label  string `yaml:"label,omitempty" json:"label,omitempty"`
	Column string `yaml:"column" json:"column"`

	// Toggle: the group this toggle belongs to (defaults to Column) and the
	// category it admits.
	Group  string `yaml:"group,omitempty" json:"group,omitempty"`
	Value  string `yaml:"value,omitempty" json:"value,omitempty"`
	Active bool   `yaml:"active,omitempty" json:"active,omitempty"`

	// Select and cross-filter.
	Source   string `yaml:"source,omitempty" json:"source,omitempty"`
	AllValue string `yaml:"all_value,omitempty" json:"all_value,omitempty"`
	Default  string `yaml:"default,omitempty" json:"default,omitempty"`

	// Range defaults; empty means the column bound.
	Low  string `yaml:"low,omitempty" json:"low,omitempty"`
	High string `yaml:"high,omitempty" json:"high,omitempty"`
}

// Range is an inclusive interval.
type Range struct {
	Low  table.Value
	High table.Value
}

// Contains reports whether v lies within the range. Missing values never do.
func (r Range) Contains(v table.Value) bool {
	if !v.Valid {
		return false
	}
	return v.Compare(r.Low) >= 0 && v.Compare(r.High) <= 0
}

// Equal compares both bounds.
func (r Range) Equal(o Range) bool {
	return r.Low.Equal(o.Low) && r.High.Equal(o.High)
}

// State is the value of every control at one point in time. States are
// immutable; Registry.Apply returns a new one.
type State struct {
	ranges     map[string]Range
	toggles    map[string]bool
	selections map[string]string
}

// Range returns the current interval of a range control.
func (s State) Range(id string) (Range, bool) {
	r, ok := s.ranges[id]
	return r, ok
}

// Active reports whether a toggle control is on.
func (s State) Active(id string) bool { return s.toggles[id] }

// Selection returns the selected category of a select or cross-filter
// control; "" means none.
func (s State) Selection(id string) string { return s.selections[id] }

// Equal reports whether both states hold the same control values.
func (s State) Equal(o State) bool {
	if len(s.ranges) != len(o.ranges) || len(s.toggles) != len(o.toggles) || len(s.selections) != len(o.selections) {
		return false
	}
	for id, r := range s.ranges {
		if other, ok := o.ranges[id]; !ok || !r.Equal(other) {
			return false
		}
	}
	for id, on := range s.toggles {
		if other, ok := o.toggles[id]; !ok || other != on {
			return false
		}
	}
	for id, sel := range s.selections {
		if other, ok := o.selections[id]; !ok || other != sel {
			return false
		}
	}
	return true
}

func (s State) clone() State {
	next := State{
		ranges:     make(map[string]Range, len(s.ranges)),
		toggles:    make(map[string]bool, len(s.toggles)),
		selections: make(map[string]string, len(s.selections)),
	}
	for k, v := range s.ranges {
		next.ranges[k] = v
	}
	for k, v := range s.toggles {
		next.toggles[k] = v
	}
	for k, v := range s.selections {
		next.selections[k] = v
	}
	return next
}

// Snapshot is the serialisable form of a State.
type Snapshot struct {
	Ranges     map[string][2]string `json:"ranges,omitempty"`
	Toggles    map[string]bool      `json:"toggles,omitempty"`
	Selections map[string]string    `json:"selections,omitempty"`
}

// Snapshot renders the state for output bundles.
func (s State) Snapshot() Snapshot {
	snap := Snapshot{}
	if len(s.ranges) > 0 {
		snap.Ranges = make(map[string][2]string, len(s.ranges))
		for id, r := range s.ranges {
			snap.Ranges[id] = [2]string{r.Low.String(), r.High.String()}
		}
	}
	if len(s.toggles) > 0 {
		snap.Toggles = make(map[string]bool, len(s.toggles))
		for id, on := range s.toggles {
			snap.Toggles[id] = on
		}
	}
	if len(s.selections) > 0 {
		snap.Selections = make(map[string]string, len(s.selections))
		for id, sel := range s.selections {
			snap.Selections[id] = sel
		}
	}
	return snap
}

// Change lists the controls whose value differs after an event.
type Change struct {
	Controls []string
	Reset    bool
}

// Empty reports whether nothing changed.
func (c Change) Empty() bool { return len(c.Controls) == 0 && !c.Reset }

// Touches reports whether any of ids changed. A reset touches everything.
func (c Change) Touches(ids ...string) bool {
	if c.Reset {
		return true
	}
	for _, id := range ids {
		for _, changed := range c.Controls {
			if changed == id {
				return true
			}
		}
	}
	return false
}

func diff(prev, next State) Change {
	var ids []string
	for id, r := range next.ranges {
		if old, ok := prev.ranges[id]; !ok || !old.Equal(r) {
			ids = append(ids, id)
		}
	}
	for id, on := range next.toggles {
		if prev.toggles[id] != on {
			ids = append(ids, id)
		}
	}
	for id, sel := range next.selections {
		if prev.selections[id] != sel {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return Change{Controls: ids}
}
