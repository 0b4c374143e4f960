package table

import (
	"context"
	"errors"
	"math"
	"testing"
)

func mustLoad(t *testing.T, header []string, schema []ColumnSpec, records ...[]string) *Dataset {
	t.Helper()
	ds, err := Load(context.Background(), rawSource(header, records...), "test", schema)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return ds
}

func TestParseNumberStripsCurrencyAndCommas(t *testing.T) {
	ds := mustLoad(t, []string{"price"}, nil,
		[]string{"£1,299.50"}, []string{"Free To Play"}, []string{"$12"}, []string{"45%"}, []string{"n/a"})
	out, err := DeriveColumns(ds, ParseNumber{Column: "price", Replace: map[string]float64{"Free To Play": 0}})
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	col, _ := out.Column("price")
	want := []float64{1299.5, 0, 12, 45}
	for i, w := range want {
		if !col.Values[i].Valid || col.Values[i].Num != w {
			t.Fatalf("row %d: got %+v want %v", i, col.Values[i], w)
		}
	}
	if col.Values[4].Valid {
		t.Fatalf("expected missing marker for n/a")
	}
	if !col.Derived || col.Kind != KindNumber {
		t.Fatalf("expected derived number column")
	}
}

func TestParseNumberRequiredAllInvalid(t *testing.T) {
	ds := mustLoad(t, []string{"x"}, nil, []string{"a"}, []string{"b"})
	_, err := DeriveColumns(ds, ParseNumber{Column: "x", Required: true})
	var de *DerivationError
	if !errors.As(err, &de) || de.Column != "x" {
		t.Fatalf("expected DerivationError, got %v", err)
	}
}

func TestDeriveMissingColumn(t *testing.T) {
	ds := mustLoad(t, []string{"x"}, nil, []string{"1"})
	_, err := DeriveColumns(ds, Scale{Column: "y", Factor: 2})
	if !errors.Is(err, ErrColumnMissing) {
		t.Fatalf("expected ErrColumnMissing, got %v", err)
	}
}

func TestParseClockAndBucket(t *testing.T) {
	ds := mustLoad(t, []string{"pace", "age"}, []ColumnSpec{{Name: "age", Kind: KindNumber}},
		[]string{"7:30", "10"}, []string{"1:02:00", "89"}, []string{"bad", "90"})
	out, err := DeriveColumns(ds,
		ParseClock{Column: "pace", As: "pace_min"},
		Bucket{Column: "age", As: "age_group", Edges: []float64{10, 20, 90}, Labels: []string{"10-19", "20-89"}},
	)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	pace, _ := out.Column("pace_min")
	if pace.Values[0].Num != 7.5 || pace.Values[1].Num != 62 || pace.Values[2].Valid {
		t.Fatalf("unexpected pace %+v", pace.Values)
	}
	group, _ := out.Column("age_group")
	if group.Values[0].Str != "10-19" || group.Values[1].Str != "20-89" || group.Values[2].Valid {
		t.Fatalf("unexpected buckets %+v", group.Values)
	}
}

func TestYearDifferenceTitleCase(t *testing.T) {
	ds := mustLoad(t, []string{"granted", "born", "gender"}, []ColumnSpec{
		{Name: "granted", Kind: KindDate},
		{Name: "born", Kind: KindNumber},
	}, []string{"1990-05-01", "1950", " FEMALE "}, []string{"2001-01-01", "1970", "male"})
	out, err := DeriveColumns(ds,
		Year{Column: "granted", As: "grant_year"},
		Difference{Left: "grant_year", Right: "born", As: "age"},
		TitleCase{Column: "gender"},
	)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	age, _ := out.Column("age")
	if age.Values[0].Num != 40 || age.Values[1].Num != 31 {
		t.Fatalf("unexpected ages %+v", age.Values)
	}
	gender, _ := out.Column("gender")
	if gender.Values[0].Str != "Female" || gender.Values[1].Str != "Male" {
		t.Fatalf("unexpected gender %+v", gender.Values)
	}
	if orig, _ := ds.Column("gender"); orig.Values[0].Str != "FEMALE" {
		t.Fatalf("source dataset mutated: %+v", orig.Values[0])
	}
}

func TestNormalizePercentAndShare(t *testing.T) {
	ds := mustLoad(t, []string{"p"}, []ColumnSpec{{Name: "p", Kind: KindNumber}}, []string{"50"}, []string{"150"})
	out, err := DeriveColumns(ds, NormalizePercent{Column: "p"}, Share{Column: "p", As: "share"})
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	p, _ := out.Column("p")
	if p.Values[0].Num != 0.5 || p.Values[1].Num != 1.5 {
		t.Fatalf("unexpected normalised %+v", p.Values)
	}
	share, _ := out.Column("share")
	if math.Abs(share.Values[0].Num-25) > 1e-9 {
		t.Fatalf("unexpected share %+v", share.Values)
	}

	small := mustLoad(t, []string{"p"}, []ColumnSpec{{Name: "p", Kind: KindNumber}}, []string{"0.4"})
	out, err = DeriveColumns(small, NormalizePercent{Column: "p"})
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if v := out.Value(0, "p"); v.Num != 0.4 {
		t.Fatalf("ratio should be untouched, got %v", v)
	}
}

func TestMeltWideToLong(t *testing.T) {
	ds := mustLoad(t, []string{"country", "2000", "2001"}, []ColumnSpec{
		{Name: "2000", Kind: KindNumber}, {Name: "2001", Kind: KindNumber},
	}, []string{"NO", "1", "2"}, []string{"SE", "3", ""})
	out, err := DeriveColumns(ds, Melt{ID: []string{"country"}, Variable: "year", Value: "users"})
	if err != nil {
		t.Fatalf("melt: %v", err)
	}
	if out.Rows() != 4 {
		t.Fatalf("expected 4 rows, got %d", out.Rows())
	}
	if got := out.Value(2, "year").Str; got != "2001" {
		t.Fatalf("unexpected variable %q", got)
	}
	if out.Value(3, "users").Valid {
		t.Fatalf("expected missing cell to survive melt")
	}
	if len(out.Schema()) != 3 {
		t.Fatalf("unexpected schema %+v", out.Schema())
	}
}

func TestKeepRowsToEmptyIsEmptyDataset(t *testing.T) {
	ds := mustLoad(t, []string{"c"}, nil, []string{"a"}, []string{"b"})
	out, err := DeriveColumns(ds, KeepRows{Column: "c", Values: []string{"b"}})
	if err != nil || out.Rows() != 1 {
		t.Fatalf("keep rows: %v %v", out, err)
	}
	var ee *EmptyDatasetError
	if _, err := DeriveColumns(ds, KeepRows{Column: "c", Values: []string{"z"}}); !errors.As(err, &ee) {
		t.Fatalf("expected EmptyDatasetError, got %v", err)
	}
}

func TestDropRowsKeepsMissing(t *testing.T) {
	ds := mustLoad(t, []string{"c"}, nil, []string{"a"}, []string{"b"}, []string{""})
	out, err := DeriveColumns(ds, DropRows{Column: "c", Values: []string{"b"}})
	if err != nil {
		t.Fatalf("drop rows: %v", err)
	}
	if out.Rows() != 2 || out.Value(0, "c").Str != "a" || out.Value(1, "c").Valid {
		t.Fatalf("unexpected rows after drop: %d", out.Rows())
	}
}

func TestDropMissingAndRound(t *testing.T) {
	ds := mustLoad(t, []string{"n"}, []ColumnSpec{{Name: "n", Kind: KindNumber}}, []string{"1.256"}, []string{""})
	out, err := DeriveColumns(ds, DropMissing{Columns: []string{"n"}}, Round{Column: "n", Places: 2})
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if out.Rows() != 1 || out.Value(0, "n").Num != 1.26 {
		t.Fatalf("unexpected result rows=%d v=%v", out.Rows(), out.Value(0, "n"))
	}
}

func TestBucketValidation(t *testing.T) {
	ds := mustLoad(t, []string{"n"}, []ColumnSpec{{Name: "n", Kind: KindNumber}}, []string{"1"})
	var de *DerivationError
	if _, err := DeriveColumns(ds, Bucket{Column: "n", Edges: []float64{2, 1}}); !errors.As(err, &de) {
		t.Fatalf("expected DerivationError, got %v", err)
	}
	out, err := DeriveColumns(ds, Bucket{Column: "n", As: "b", Edges: []float64{0, 5}})
	if err != nil || out.Value(0, "b").Str != "0-5" {
		t.Fatalf("default label: %v %v", out, err)
	}
}
