package bundle

import (
	"fmt"
	"testing"

	"dashcore/pkg/filter"
	"dashcore/pkg/table"
	"dashcore/pkg/view"
)

// ridership is a long-format table of two services over four days.
func ridership(t *testing.T) (*table.Dataset, *filter.Registry) {
	t.Helper()
	riders := map[string][]float64{
		"Subway": {0.5, 0.8, 0.6, 0.7},
		"Bus":    {0.4, 0.3, 0.9, 0.2},
	}
	var dates, services, values []table.Value
	for _, svc := range []string{"Subway", "Bus"} {
		for d, v := range riders[svc] {
			dates = append(dates, table.MustParse(table.KindDate, fmt.Sprintf("2021-03-%02d", d+1)))
			services = append(services, table.Category(svc))
			values = append(values, table.Number(v))
		}
	}
	ds, err := table.New("mta", []*table.Column{
		{Name: "date", Kind: table.KindDate, Values: dates},
		{Name: "service", Kind: table.KindCategory, Values: services},
		{Name: "recovery", Kind: table.KindNumber, Values: values},
	})
	if err != nil {
		t.Fatalf("dataset: %v", err)
	}
	reg, err := filter.NewRegistry(ds, []filter.Spec{
		{ID: "dates", Kind: filter.KindRange, Column: "date"},
		{ID: "subway", Kind: filter.KindToggle, Column: "service", Group: "services", Value: "Subway", Label: "Subways"},
		{ID: "bus", Kind: filter.KindToggle, Column: "service", Group: "services", Value: "Bus"},
		{ID: "ferry", Kind: filter.KindToggle, Column: "service", Group: "services", Value: "Ferry"},
	})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return ds, reg
}

func derive(t *testing.T, ds *table.Dataset, reg *filter.Registry, state filter.State) view.Derived {
	t.Helper()
	d, err := view.Derive(ds, reg, state, view.Spec{ID: "rows", Listens: []string{"dates", "services"}})
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	return d
}

func toggle(t *testing.T, reg *filter.Registry, state filter.State, ids ...string) filter.State {
	t.Helper()
	for _, id := range ids {
		var err error
		if state, _, err = reg.Apply(state, filter.ToggleActivated{ControlID: id}); err != nil {
			t.Fatalf("toggle: %v", err)
		}
	}
	return state
}
