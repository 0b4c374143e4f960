package view

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"dashcore/pkg/filter"
	"dashcore/pkg/table"
)

func TestDeriveRangeAndToggle(t *testing.T) {
	ds := abcDataset(t)
	reg := abcRegistry(t, ds)
	state := apply(t, reg, reg.Initial(),
		filter.RangeChanged{ControlID: "dates", Low: day(3), High: day(5)},
		filter.ToggleActivated{ControlID: "toggle-c"},
	)
	got, err := Derive(ds, reg, state, Spec{ID: "rows", Listens: []string{"dates", "category"}, Columns: []string{"date", "category"}})
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if got.Len() != 3 {
		t.Fatalf("expected 3 rows, got %d", got.Len())
	}
	var dates []string
	for _, row := range got.Rows {
		if row[1].Str != "C" {
			t.Fatalf("unexpected category %v", row[1])
		}
		dates = append(dates, row[0].String())
	}
	if diff := cmp.Diff([]string{"2020-01-03", "2020-01-04", "2020-01-05"}, dates); diff != "" {
		t.Fatalf("dates mismatch (-want +got):\n%s", diff)
	}
}

func TestDeriveRangeInclusive(t *testing.T) {
	ds := abcDataset(t)
	reg := abcRegistry(t, ds)
	state := apply(t, reg, reg.Initial(), filter.RangeChanged{ControlID: "dates", Low: day(4), High: day(4)})
	got, err := Derive(ds, reg, state, Spec{ID: "v", Listens: []string{"dates"}})
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if got.Len() != 3 || got.Matched != 3 {
		t.Fatalf("single-day range should keep 3 rows, got %d", got.Len())
	}
}

func TestDeriveEmptyToggleSetMeansAll(t *testing.T) {
	ds := abcDataset(t)
	reg := abcRegistry(t, ds)
	spec := Spec{ID: "v", Listens: []string{"category"}}
	base, err := Derive(ds, reg, reg.Initial(), Spec{ID: "base"})
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	got, err := Derive(ds, reg, reg.Initial(), spec)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if got.Len() != base.Len() || got.Len() != ds.Rows() {
		t.Fatalf("expected %d rows, got %d", base.Len(), got.Len())
	}
	// toggling on and off again returns to "all"
	state := apply(t, reg, reg.Initial(), filter.ToggleActivated{ControlID: "toggle-a"}, filter.ToggleActivated{ControlID: "toggle-a"})
	if again, _ := Derive(ds, reg, state, spec); again.Len() != ds.Rows() {
		t.Fatalf("expected all rows after double toggle, got %d", again.Len())
	}
}

func TestDeriveNoMatchIsEmptyNotError(t *testing.T) {
	ds := abcDataset(t)
	reg := abcRegistry(t, ds)
	state := apply(t, reg, reg.Initial(), filter.ToggleActivated{ControlID: "toggle-z"})
	got, err := Derive(ds, reg, state, Spec{ID: "v", Listens: []string{"category"}, Aggregates: []Aggregate{{Column: "amount", Func: FuncSum}}})
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if !got.Empty() || got.Rows == nil {
		t.Fatalf("expected empty non-nil rows, got %+v", got.Rows)
	}
	if diff := cmp.Diff([]string{"sum_amount"}, got.Columns); diff != "" {
		t.Fatalf("columns mismatch (-want +got):\n%s", diff)
	}
}

func TestDeriveGroupByAggregates(t *testing.T) {
	ds := abcDataset(t)
	reg := abcRegistry(t, ds)
	state := apply(t, reg, reg.Initial(), filter.RangeChanged{ControlID: "dates", Low: day(1), High: day(2)})
	got, err := Derive(ds, reg, state, Spec{
		ID:      "by-cat",
		Listens: []string{"dates"},
		GroupBy: []string{"category"},
		Aggregates: []Aggregate{
			{Column: "amount", Func: FuncSum, As: "total"},
			{Column: "amount", Func: FuncMean},
			{Func: FuncCount},
			{Column: "date", Func: FuncMax, As: "latest"},
			{Column: "date", Func: FuncUnique, As: "days"},
		},
	})
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	want := [][]string{
		{"A", "30", "15", "2", "2020-01-02", "2"},
		{"B", "32", "16", "2", "2020-01-02", "2"},
		{"C", "34", "17", "2", "2020-01-02", "2"},
	}
	if diff := cmp.Diff(want, render(got)); diff != "" {
		t.Fatalf("grouped rows mismatch (-want +got):\n%s", diff)
	}
	if kind, _ := got.Kind("latest"); kind != table.KindDate {
		t.Fatalf("max keeps source kind, got %s", kind)
	}
}

func TestDeriveTopNStableTies(t *testing.T) {
	ds, err := table.New("ties", []*table.Column{
		{Name: "name", Kind: table.KindCategory, Values: []table.Value{table.Category("p"), table.Category("q"), table.Category("r"), table.Category("s")}},
		{Name: "score", Kind: table.KindNumber, Values: []table.Value{table.Number(5), table.Number(9), table.Number(5), table.Number(5)}},
	})
	if err != nil {
		t.Fatalf("dataset: %v", err)
	}
	reg, err := filter.NewRegistry(ds, nil)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	got, err := Derive(ds, reg, reg.Initial(), Spec{ID: "top", TopN: &TopN{N: 3, By: "score", Descending: true}})
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if diff := cmp.Diff([][]string{{"q", "9"}, {"p", "5"}, {"r", "5"}}, render(got)); diff != "" {
		t.Fatalf("top-n mismatch (-want +got):\n%s", diff)
	}
}

func TestDeriveEmptySelectionPolicies(t *testing.T) {
	ds := abcDataset(t)
	reg := abcRegistry(t, ds)
	top := &TopN{N: 2, By: "amount", Descending: true}
	cases := []struct {
		name   string
		policy EmptySelection
		pick   string
		want   int
	}{
		{"all empty", EmptyAll, "", 2},
		{"all picked", EmptyAll, "A", 2},
		{"none empty", EmptyNone, "", 0},
		{"none picked", EmptyNone, "B", 2},
		{"topn empty", EmptyTopN, "", 2},
		{"topn picked", EmptyTopN, "C", 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			state := apply(t, reg, reg.Initial(), filter.SelectionChanged{ControlID: "pick", Value: tc.pick})
			got, err := Derive(ds, reg, state, Spec{ID: "v", Listens: []string{"pick"}, TopN: top, EmptySelection: tc.policy})
			if err != nil {
				t.Fatalf("derive: %v", err)
			}
			if got.Len() != tc.want {
				t.Fatalf("expected %d rows, got %d", tc.want, got.Len())
			}
		})
	}
}

func TestDeriveSortAndOrder(t *testing.T) {
	ds := abcDataset(t)
	reg := abcRegistry(t, ds)
	state := apply(t, reg, reg.Initial(), filter.SelectionChanged{ControlID: "pick", Value: "B"})
	got, err := Derive(ds, reg, state, Spec{
		ID:      "v",
		Listens: []string{"pick", "dates"},
		Order:   []Stage{StageSelection},
		Columns: []string{"amount"},
		Sort:    &Order{By: "amount", Descending: true},
	})
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if got.Len() != 10 || got.Rows[0][0].Num != 101 || got.Rows[9][0].Num != 11 {
		t.Fatalf("unexpected sorted rows %v", render(got))
	}
}

func TestDeriveIsPure(t *testing.T) {
	ds := abcDataset(t)
	reg := abcRegistry(t, ds)
	spec := Spec{ID: "v", Listens: []string{"category"}, GroupBy: []string{"category"}, Aggregates: []Aggregate{{Column: "amount", Func: FuncSum}}}
	a, _ := Derive(ds, reg, reg.Initial(), spec)
	b, _ := Derive(ds, reg, reg.Initial(), spec)
	if diff := cmp.Diff(render(a), render(b)); diff != "" {
		t.Fatalf("derive not deterministic:\n%s", diff)
	}
}

func TestDeriveWhereAppliesBeforeControls(t *testing.T) {
	ds := abcDataset(t)
	reg := abcRegistry(t, ds)
	spec := Spec{
		ID:         "ab",
		Where:      []Match{{Column: "category", Values: []string{"A", "B"}}},
		Listens:    []string{"pick"},
		GroupBy:    []string{"category"},
		Aggregates: []Aggregate{{Func: FuncCount, As: "n"}},
	}
	got, err := Derive(ds, reg, reg.Initial(), spec)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if diff := cmp.Diff([][]string{{"A", "10"}, {"B", "10"}}, render(got)); diff != "" {
		t.Fatalf("where mismatch (-want +got):\n%s", diff)
	}
	state := apply(t, reg, reg.Initial(), filter.SelectionChanged{ControlID: "pick", Value: "C"})
	got, err = Derive(ds, reg, state, spec)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if !got.Empty() {
		t.Fatalf("selection outside the where clause must match nothing, got %v", render(got))
	}
}

func TestValidate(t *testing.T) {
	ds := abcDataset(t)
	reg := abcRegistry(t, ds)
	bad := map[string]Spec{
		"no id":            {},
		"unknown control":  {ID: "v", Listens: []string{"nope"}},
		"unknown column":   {ID: "v", Columns: []string{"nope"}},
		"unknown func":     {ID: "v", Aggregates: []Aggregate{{Column: "amount", Func: "median"}}},
		"sum of category":  {ID: "v", Aggregates: []Aggregate{{Column: "category", Func: FuncSum}}},
		"topn missing col": {ID: "v", TopN: &TopN{N: 1, By: "nope"}},
		"topn zero":        {ID: "v", TopN: &TopN{N: 0, By: "amount"}},
		"policy no topn":   {ID: "v", EmptySelection: EmptyTopN},
		"bad stage":        {ID: "v", Order: []Stage{"sideways"}},
		"mixed":            {ID: "v", Columns: []string{"amount"}, Aggregates: []Aggregate{{Func: FuncCount}}},
		"where no values":  {ID: "v", Where: []Match{{Column: "category"}}},
		"where no column":  {ID: "v", Where: []Match{{Column: "nope", Values: []string{"A"}}}},
	}
	for name, spec := range bad {
		if err := Validate(ds, reg, spec); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func render(d Derived) [][]string {
	out := make([][]string, len(d.Rows))
	for i, row := range d.Rows {
		out[i] = make([]string, len(row))
		for j, v := range row {
			out[i][j] = v.String()
		}
	}
	return out
}
