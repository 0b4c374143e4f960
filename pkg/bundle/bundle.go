package bundle

import (
	"fmt"

	"dashcore/pkg/filter"
	"dashcore/pkg/view"
)

// Bundle is every output of one recompute cycle together with the filter
// state it was computed from.
type Bundle struct {
	Dashboard string          `json:"dashboard"`
	Charts    []Chart         `json:"charts"`
	KPIs      []KPI           `json:"kpis"`
	Summaries []Summary       `json:"summaries"`
	Toggles   []ToggleGroup   `json:"toggles"`
	Grids     []Grid          `json:"grids"`
	State     filter.Snapshot `json:"state"`
	// Cycle is the engine cycle that committed the bundle; 0 for the
	// initial bundle.
	Cycle     uint64          `json:"cycle"`
}

// Chart returns the rendered chart with the given id.
func (b Bundle) Chart(id string) (Chart, bool) {
	for _, c := range b.Charts {
		if c.ID == id {
			return c, true
		}
	}
	return Chart{}, false
}

// KPI returns the rendered KPI with the given id.
func (b Bundle) KPI(id string) (KPI, bool) {
	for _, k := range b.KPIs {
		if k.ID == id {
			return k, true
		}
	}
	return KPI{}, false
}

// Summary returns the rendered summary with the given id.
func (b Bundle) Summary(id string) (Summary, bool) {
	for _, s := range b.Summaries {
		if s.ID == id {
			return s, true
		}
	}
	return Summary{}, false
}

// Grid returns the rendered grid with the given id.
func (b Bundle) Grid(id string) (Grid, bool) {
	for _, g := range b.Grids {
		if g.ID == id {
			return g, true
		}
	}
	return Grid{}, false
}

// Input is everything one assembly reads. Views must hold the derivation of
// every view for State.
type Input struct {
	Dashboard string
	Registry  *filter.Registry
	State     filter.State
	Views     map[string]view.Derived
}

// Assemble renders every output of specs. When prev is a bundle assembled
// from the same specs and reuse reports true for an output, the previous
// rendering is carried over instead.
func Assemble(in Input, specs Specs, prev *Bundle, reuse func(Output) bool) (Bundle, error) {
	b := Bundle{
		Dashboard: in.Dashboard,
		Charts:    make([]Chart, 0, len(specs.Charts)),
		KPIs:      make([]KPI, 0, len(specs.KPIs)),
		Summaries: make([]Summary, 0, len(specs.Summaries)),
		Toggles:   make([]ToggleGroup, 0, len(specs.Toggles)),
		Grids:     make([]Grid, 0, len(specs.Grids)),
		State:     in.State.Snapshot(),
	}
	keep := func(out Output, have int, i int) bool {
		return prev != nil && reuse != nil && i < have && reuse(out)
	}
	derived := func(out Output) (view.Derived, error) {
		d, ok := in.Views[out.ViewID()]
		if !ok {
			return view.Derived{}, fmt.Errorf("bundle: output %s: view %q not derived", out.OutputID(), out.ViewID())
		}
		return d, nil
	}
	var have [5]int
	if prev != nil {
		have = [5]int{len(prev.Charts), len(prev.KPIs), len(prev.Summaries), len(prev.Toggles), len(prev.Grids)}
	}
	for i, spec := range specs.Charts {
		if keep(spec, have[0], i) {
			b.Charts = append(b.Charts, prev.Charts[i])
			continue
		}
		d, err := derived(spec)
		if err != nil {
			return Bundle{}, err
		}
		b.Charts = append(b.Charts, RenderChart(spec, d, in.Registry, in.State))
	}
	for i, spec := range specs.KPIs {
		if keep(spec, have[1], i) {
			b.KPIs = append(b.KPIs, prev.KPIs[i])
			continue
		}
		d, err := derived(spec)
		if err != nil {
			return Bundle{}, err
		}
		b.KPIs = append(b.KPIs, RenderKPI(spec, d, in.Registry, in.State))
	}
	for i, spec := range specs.Summaries {
		if keep(spec, have[2], i) {
			b.Summaries = append(b.Summaries, prev.Summaries[i])
			continue
		}
		d, err := derived(spec)
		if err != nil {
			return Bundle{}, err
		}
		b.Summaries = append(b.Summaries, RenderSummary(spec, d, in.Registry, in.State))
	}
	for i, spec := range specs.Toggles {
		if keep(spec, have[3], i) {
			b.Toggles = append(b.Toggles, prev.Toggles[i])
			continue
		}
		b.Toggles = append(b.Toggles, RenderToggles(spec, in.Registry, in.State))
	}
	for i, spec := range specs.Grids {
		if keep(spec, have[4], i) {
			b.Grids = append(b.Grids, prev.Grids[i])
			continue
		}
		d, err := derived(spec)
		if err != nil {
			return Bundle{}, err
		}
		b.Grids = append(b.Grids, RenderGrid(spec, d))
	}
	return b, nil
}
