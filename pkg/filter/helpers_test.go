package filter

import (
	"testing"

	"dashcore/pkg/table"
)

// abcDataset has categories A, B, C repeated on every date 2020-01-01..10.
func abcDataset(t *testing.T) *table.Dataset {
	t.Helper()
	var dates, cats, amounts []table.Value
	for day := 1; day <= 10; day++ {
		for i, c := range []string{"A", "B", "C"} {
			dates = append(dates, table.MustParse(table.KindDate, dateOf(day)))
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

func dateOf(day int) string {
	if day < 10 {
		return "2020-01-0" + string(rune('0'+day))
	}
	return "2020-01-10"
}

func abcSpecs() []Spec {
	return []Spec{
		{ID: "dates", Kind: KindRange, Column: "date"},
		{ID: "toggle-a", Kind: KindToggle, Column: "category", Value: "A"},
		{ID: "toggle-b", Kind: KindToggle, Column: "category", Value: "B"},
		{ID: "toggle-c", Kind: KindToggle, Column: "category", Value: "C"},
		{ID: "pick", Kind: KindSelect, Column: "category", AllValue: "All"},
		{ID: "clicked", Kind: KindCrossFilter, Column: "category", Source: "pie"},
	}
}

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewRegistry(abcDataset(t), abcSpecs())
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return reg
}

func date(s string) table.Value { return table.MustParse(table.KindDate, s) }
