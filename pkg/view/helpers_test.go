package view

import (
	"fmt"
	"testing"

	"dashcore/pkg/filter"
	"dashcore/pkg/table"
)

func abcDataset(t *testing.T) *table.Dataset {
	t.Helper()
	var dates, cats, amounts []table.Value
	for day := 1; day <= 10; day++ {
		for i, c := range []string{"A", "B", "C"} {
			dates = append(dates, table.MustParse(table.KindDate, fmt.Sprintf("2020-01-%02d", day)))
			cats = append(cats, table.Category(c))
			amounts = append(amounts, table.Number(float64(day*10+i)))
		}
	}
	ds, err := table.New("abc", []*table.Column{
		{Name: "date", Kind: table.KindDate, Values: dates},
		{Name: "category", Kind: table.KindCategory, Values: cats},
		{Name: "amount", Kind: table.KindNumber, Values: amounts},
	})
	if err != nil {
		t.Fatalf("dataset: %v", err)
	}
	return ds
}

func abcRegistry(t *testing.T, ds *table.Dataset) *filter.Registry {
	t.Helper()
	reg, err := filter.NewRegistry(ds, []filter.Spec{
		{ID: "dates", Kind: filter.KindRange, Column: "date"},
		{ID: "toggle-a", Kind: filter.KindToggle, Column: "category", Value: "A"},
		{ID: "toggle-b", Kind: filter.KindToggle, Column: "category", Value: "B"},
		{ID: "toggle-c", Kind: filter.KindToggle, Column: "category", Value: "C"},
		{ID: "toggle-z", Kind: filter.KindToggle, Column: "category", Value: "Z"},
		{ID: "pick", Kind: filter.KindSelect, Column: "category", AllValue: "All"},
	})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return reg
}

func apply(t *testing.T, reg *filter.Registry, state filter.State, events ...filter.Event) filter.State {
	t.Helper()
	for _, ev := range events {
		var err error
		if state, _, err = reg.Apply(state, ev); err != nil {
			t.Fatalf("apply %s: %v", ev.EventName(), err)
		}
	}
	return state
}

func day(d int) table.Value {
	return table.MustParse(table.KindDate, fmt.Sprintf("2020-01-%02d", d))
}
