package engine

import (
	"fmt"
	"testing"

	"dashcore/pkg/bundle"
	"dashcore/pkg/filter"
	"dashcore/pkg/table"
	"dashcore/pkg/view"
)

func abcConfig(t *testing.T) Config {
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
	return Config{
		Name:    "abc",
		Dataset: ds,
		Controls: []filter.Spec{
			{ID: "dates", Kind: filter.KindRange, Column: "date"},
			{ID: "toggle-a", Kind: filter.KindToggle, Column: "category", Value: "A"},
			{ID: "toggle-b", Kind: filter.KindToggle, Column: "category", Value: "B"},
			{ID: "toggle-c", Kind: filter.KindToggle, Column: "category", Value: "C"},
			{ID: "toggle-z", Kind: filter.KindToggle, Column: "category", Value: "Z"},
			{ID: "pick", Kind: filter.KindSelect, Column: "category", AllValue: "All"},
		},
		Views: []view.Spec{
			{ID: "rows", Listens: []string{"dates", "category"}},
			{ID: "by-category", Listens: []string{"dates", "category"}, GroupBy: []string{"category"},
				Aggregates: []view.Aggregate{{Column: "amount", Func: view.FuncSum, As: "total"}}},
			{ID: "picked", Listens: []string{"pick"}, Columns: []string{"date", "amount"}},
			{ID: "everything", Columns: []string{"amount"}},
		},
		Outputs: bundle.Specs{
			Charts: []bundle.ChartSpec{
				{ID: "trend", View: "rows", Type: "line", X: "date", Y: []string{"amount"}, Color: "category", Series: "category", Annotate: []string{bundle.AnnotateMax}},
				{ID: "totals", View: "by-category", Type: "bar", X: "category", Y: []string{"total"}},
			},
			KPIs: []bundle.KPISpec{
				{ID: "amount", View: "rows", Column: "amount", X: "date", Stats: []string{bundle.StatCurrent, bundle.StatAvg, bundle.StatPeak, bundle.StatSum}},
				{ID: "overall", View: "everything", Column: "amount", Stats: []string{bundle.StatCount}},
			},
			Summaries: []bundle.SummarySpec{
				{ID: "extrema", View: "rows", Column: "amount", At: "date", Range: "dates"},
			},
			Toggles: []bundle.ToggleSpec{{ID: "buttons", Group: "category"}},
			Grids:   []bundle.GridSpec{{ID: "picked-rows", View: "picked"}},
		},
	}
}

func grantsConfig(t *testing.T) Config {
	t.Helper()
	rows := []struct {
		gender, field string
		amount       float64
	}{
		{"Female", "Music", 10}, {"Male", "Music", 20}, {"Female", "Dance", 30},
		{"Male", "Theatre", 40}, {"Female", "Theatre", 50}, {"Male", "Dance", 60},
	}
	var gender, field, amount []table.Value
	for _, r := range rows {
		gender = append(gender, table.Category(r.gender))
		field = append(field, table.Category(r.field))
		amount = append(amount, table.Number(r.amount))
	}
	ds, err := table.New("grants", []*table.Column{
		{Name: "gender", Kind: table.KindCategory, Values: gender},
		{Name: "field", Kind: table.KindCategory, Values: field},
		{Name: "amount", Kind: table.KindNumber, Values: amount},
	})
	if err != nil {
		t.Fatalf("dataset: %v", err)
	}
	return Config{
		Name:    "grants",
		Dataset: ds,
		Controls: []filter.Spec{
			{ID: "gender", Kind: filter.KindCrossFilter, Column: "gender", Source: "gender-pie"},
			{ID: "field", Kind: filter.KindCrossFilter, Column: "field", Source: "field-bar"},
		},
		Views: []view.Spec{
			{ID: "by-gender", Listens: []string{"field"}, GroupBy: []string{"gender"}, Aggregates: []view.Aggregate{{Func: view.FuncCount, As: "grants"}}},
			{ID: "by-field", Listens: []string{"gender"}, GroupBy: []string{"field"}, Aggregates: []view.Aggregate{{Column: "amount", Func: view.FuncSum, As: "total"}}},
			{ID: "detail", Listens: []string{"gender", "field"}, Columns: []string{"gender", "field", "amount"}},
		},
		Outputs: bundle.Specs{
			Charts: []bundle.ChartSpec{
				{ID: "gender-pie", View: "by-gender", Type: "pie", X: "gender", Y: []string{"grants"}},
				{ID: "field-bar", View: "by-field", Type: "bar", X: "field", Y: []string{"total"}},
			},
			Grids: []bundle.GridSpec{{ID: "detail-grid", View: "detail"}},
		},
	}
}

func newEngine(t *testing.T, cfg Config, opts ...Option) *Engine {
	t.Helper()
	e, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	return e
}

func day(d int) table.Value {
	return table.MustParse(table.KindDate, fmt.Sprintf("2020-01-%02d", d))
}
