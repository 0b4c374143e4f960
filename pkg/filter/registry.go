package filter

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"dashcore/pkg/table"
)

// Registry validates control specs against a dataset and applies events to
// states. A Registry is immutable after construction and safe for concurrent
// use.
type Registry struct {
	ds      *table.Dataset
	specs   []Spec
	byID    map[string]Spec
	groups  map[string][]string
	order   []string
	bounds  map[string]Range
	kinds   map[string]table.Kind
	initial State
	logger  *zap.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger routes ignored-event diagnostics to logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry validates specs against ds and records the default state.
func NewRegistry(ds *table.Dataset, specs []Spec, opts ...Option) (*Registry, error) {
	if ds == nil {
		return nil, errors.New("filter: dataset nil")
	}
	r := &Registry{
		ds:     ds,
		byID:   make(map[string]Spec, len(specs)),
		groups: make(map[string][]string),
		bounds: make(map[string]Range),
		kinds:  make(map[string]table.Kind),
		logger: zap.NewNop(),
		initial: State{
			ranges:     make(map[string]Range),
			toggles:    make(map[string]bool),
			selections: make(map[string]string),
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	groupColumn := make(map[string]string)
	for _, spec := range specs {
		spec.ID = strings.TrimSpace(spec.ID)
		if spec.ID == "" {
			return nil, errors.New("filter: control id required")
		}
		if _, dup := r.byID[spec.ID]; dup {
			return nil, fmt.Errorf("filter: control %s already registered", spec.ID)
		}
		col, ok := ds.Column(spec.Column)
		if !ok {
			return nil, fmt.Errorf("filter: control %s: column %q: %w", spec.ID, spec.Column, table.ErrColumnMissing)
		}
		r.kinds[spec.ID] = col.Kind
		switch spec.Kind {
		case KindRange:
			if err := r.registerRange(spec, col); err != nil {
				return nil, err
			}
		case KindToggle:
			if spec.Value == "" {
				return nil, fmt.Errorf("filter: toggle %s requires a value", spec.ID)
			}
			if spec.Group == "" {
				spec.Group = col.Name
			}
			if prev, ok := groupColumn[spec.Group]; ok && prev != col.Name {
				return nil, fmt.Errorf("filter: toggle group %s spans columns %s and %s", spec.Group, prev, col.Name)
			}
			if _, clash := r.byID[spec.Group]; clash {
				return nil, fmt.Errorf("filter: toggle group %s collides with a control id", spec.Group)
			}
			groupColumn[spec.Group] = col.Name
			r.groups[spec.Group] = append(r.groups[spec.Group], spec.ID)
			r.initial.toggles[spec.ID] = spec.Active
		case KindSelect, KindCrossFilter:
			if spec.Kind == KindCrossFilter && strings.TrimSpace(spec.Source) == "" {
				return nil, fmt.Errorf("filter: cross-filter %s requires a source chart", spec.ID)
			}
			r.initial.selections[spec.ID] = normalizeSelection(spec, spec.Default)
		default:
			return nil, fmt.Errorf("filter: control %s has unsupported kind %q", spec.ID, spec.Kind)
		}
		if _, clash := r.groups[spec.ID]; clash && spec.Kind != KindToggle {
			return nil, fmt.Errorf("filter: control %s collides with a toggle group", spec.ID)
		}
		r.byID[spec.ID] = spec
		r.specs = append(r.specs, spec)
		r.order = append(r.order, spec.ID)
	}
	return r, nil
}

func (r *Registry) registerRange(spec Spec, col *table.Column) error {
	if col.Kind != table.KindNumber && col.Kind != table.KindDate {
		return fmt.Errorf("filter: range %s needs a number or date column, %s is %s", spec.ID, col.Name, col.Kind)
	}
	lo, hi, ok := col.Bounds()
	if !ok {
		return &table.DerivationError{Dataset: r.ds.Name(), Column: col.Name, Reason: "range control over a column without values"}
	}
	bounds := Range{Low: lo, High: hi}
	r.bounds[spec.ID] = bounds
	def := bounds
	if spec.Low != "" || spec.High != "" {
		ev, err := r.parseRange(spec.ID, col.Kind, spec.Low, spec.High)
		if err != nil {
			return err
		}
		def, err = r.clamp(ev)
		if err != nil {
			return err
		}
	}
	r.initial.ranges[spec.ID] = def
	return nil
}

func normalizeSelection(spec Spec, value string) string {
	value = strings.TrimSpace(value)
	if spec.AllValue != "" && value == spec.AllValue {
		return ""
	}
	return value
}

// Dataset returns the dataset the registry validated against.
func (r *Registry) Dataset() *table.Dataset { return r.ds }

// Initial returns the default state.
func (r *Registry) Initial() State { return r.initial }

// Specs returns the control specs in declaration order, with defaults filled.
func (r *Registry) Specs() []Spec { return append([]Spec(nil), r.specs...) }

// Spec looks up a control by id.
func (r *Registry) Spec(id string) (Spec, bool) {
	spec, ok := r.byID[id]
	return spec, ok
}

// Bounds returns the dataset bounds of a range control.
func (r *Registry) Bounds(id string) (Range, bool) {
	b, ok := r.bounds[id]
	return b, ok
}

// Groups returns the toggle group names in sorted order.
func (r *Registry) Groups() []string {
	names := make([]string, 0, len(r.groups))
	for name := range r.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Group returns the toggle specs of a group in declaration order.
func (r *Registry) Group(name string) []Spec {
	ids := r.groups[name]
	out := make([]Spec, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.byID[id])
	}
	return out
}

// ActiveValues returns the categories admitted by the active toggles of a
// group. When no toggle is active every category passes and all is true.
func (r *Registry) ActiveValues(state State, group string) (values []string, all bool) {
	for _, id := range r.groups[group] {
		if state.Active(id) {
			values = append(values, r.byID[id].Value)
		}
	}
	return values, len(values) == 0
}

// CrossFilterFor returns the cross-filter control fed by clicks on chart.
func (r *Registry) CrossFilterFor(chart string) (Spec, bool) {
	for _, spec := range r.specs {
		if spec.Kind == KindCrossFilter && spec.Source == chart {
			return spec, true
		}
	}
	return Spec{}, false
}

// Expand resolves names to control ids. A toggle group name expands to all
// of its toggles; a toggle id also pulls in its siblings, since the group
// filter depends on every member.
func (r *Registry) Expand(names []string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	add := func(id string) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	for _, name := range names {
		if ids, ok := r.groups[name]; ok {
			for _, id := range ids {
				add(id)
			}
			continue
		}
		spec, ok := r.byID[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownControl, name)
		}
		if spec.Kind == KindToggle {
			for _, id := range r.groups[spec.Group] {
				add(id)
			}
			continue
		}
		add(name)
	}
	sort.Strings(out)
	return out, nil
}

// ParseRange builds a RangeChanged event from textual bounds, coerced by the
// kind of the control's column. Empty bounds stay open.
func (r *Registry) ParseRange(id, low, high string) (RangeChanged, error) {
	spec, ok := r.byID[id]
	if !ok || spec.Kind != KindRange {
		return RangeChanged{}, fmt.Errorf("%w: %s", ErrUnknownControl, id)
	}
	return r.parseRange(id, r.kinds[id], low, high)
}

func (r *Registry) parseRange(id string, kind table.Kind, low, high string) (RangeChanged, error) {
	lo, err := table.Parse(kind, low, nil)
	if err != nil {
		return RangeChanged{}, fmt.Errorf("filter: range %s low: %w", id, err)
	}
	hi, err := table.Parse(kind, high, nil)
	if err != nil {
		return RangeChanged{}, fmt.Errorf("filter: range %s high: %w", id, err)
	}
	return RangeChanged{ControlID: id, Low: lo, High: hi}, nil
}

func (r *Registry) clamp(ev RangeChanged) (Range, error) {
	bounds := r.bounds[ev.ControlID]
	lo, hi := ev.Low, ev.High
	if lo.Valid && hi.Valid && lo.Compare(hi) > 0 {
		return Range{}, &InvalidRangeError{ControlID: ev.ControlID, Low: lo, High: hi}
	}
	if !lo.Valid || lo.Compare(bounds.Low) < 0 {
		lo = bounds.Low
	}
	if lo.Compare(bounds.High) > 0 {
		lo = bounds.High
	}
	if !hi.Valid || hi.Compare(bounds.High) > 0 {
		hi = bounds.High
	}
	if hi.Compare(bounds.Low) < 0 {
		hi = bounds.Low
	}
	return Range{Low: lo, High: hi}, nil
}

// Apply returns the state that results from ev. Events naming unknown or
// mismatched controls are logged and leave the state unchanged.
func (r *Registry) Apply(state State, ev Event) (State, Change, error) {
	switch e := ev.(type) {
	case RangeChanged:
		spec, ok := r.byID[e.ControlID]
		if !ok || spec.Kind != KindRange {
			r.ignore(ev, e.ControlID)
			return state, Change{}, nil
		}
		if kind := r.kinds[e.ControlID]; (e.Low.Valid && e.Low.Kind != kind) || (e.High.Valid && e.High.Kind != kind) {
			r.ignore(ev, e.ControlID)
			return state, Change{}, nil
		}
		bounded, err := r.clamp(e)
		if err != nil {
			return state, Change{}, err
		}
		next := state.clone()
		next.ranges[e.ControlID] = bounded
		return next, diff(state, next), nil
	case ToggleActivated:
		spec, ok := r.byID[e.ControlID]
		if !ok || spec.Kind != KindToggle {
			r.ignore(ev, e.ControlID)
			return state, Change{}, nil
		}
		next := state.clone()
		next.toggles[e.ControlID] = !state.toggles[e.ControlID]
		return next, diff(state, next), nil
	case SelectionChanged:
		spec, ok := r.byID[e.ControlID]
		if !ok || (spec.Kind != KindSelect && spec.Kind != KindCrossFilter) {
			r.ignore(ev, e.ControlID)
			return state, Change{}, nil
		}
		next := state.clone()
		next.selections[e.ControlID] = normalizeSelection(spec, e.Value)
		return next, diff(state, next), nil
	case ResetRequested:
		return r.initial, Change{Controls: diff(state, r.initial).Controls, Reset: true}, nil
	default:
		r.logger.Warn("filter: unsupported event", zap.String("type", fmt.Sprintf("%T", ev)))
		return state, Change{}, nil
	}
}

func (r *Registry) ignore(ev Event, id string) {
	r.logger.Warn("filter: event ignored", zap.String("event", ev.EventName()), zap.String("control", id))
}
