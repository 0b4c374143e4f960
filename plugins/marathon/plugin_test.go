package marathon

import (
	"context"
	"testing"

	"dashcore/pkg/bundle"
	"dashcore/pkg/filter"
	"dashcore/plugins/testhelper"
)

const sample = `firstName,age,gender,pace
Ann,25,W,8:00
Bob,35,M,9:30
Ann,28,W,10:00
Cid,45,X,DNF
Dee,38,W,7:30
`

func kpi(t *testing.T, b bundle.Bundle, id string) string {
	t.Helper()
	k, ok := b.KPI(id)
	if !ok || len(k.Stats) != 1 {
		t.Fatalf("kpi %s missing: %+v", id, k)
	}
	return k.Stats[0].Text
}

func TestPluginRegistration(t *testing.T) {
	def := testhelper.Registered(t, New())
	if def.Key != "marathon" || def.Source.URL != DefaultURL {
		t.Fatalf("unexpected definition %s %s", def.Key, def.Source.URL)
	}
}

func TestPaceParsing(t *testing.T) {
	ds := testhelper.Dataset(t, Definition("nyc.csv"), sample)
	if ds.Rows() != 4 {
		t.Fatalf("unparseable paces must be dropped, got %d rows", ds.Rows())
	}
	if got := ds.Value(1, "pace_minutes").Num; got != 9.5 {
		t.Fatalf("pace = %v, want 9.5", got)
	}
	if got := ds.Value(3, "age_group").String(); got != "30-40" {
		t.Fatalf("age group = %s", got)
	}
}

func TestAgeGroupSelection(t *testing.T) {
	eng := testhelper.Engine(t, Definition("nyc.csv"), sample)
	ctx := context.Background()

	b := eng.Bundle()
	if got := kpi(t, b, "runners"); got != "3" {
		t.Fatalf("runners = %s", got)
	}
	if got := kpi(t, b, "pace"); got != "8.75 min/mile" {
		t.Fatalf("pace = %s", got)
	}

	b, err := eng.Process(ctx, filter.SelectionChanged{ControlID: "age_group", Value: "30-40"})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if got := kpi(t, b, "runners"); got != "2" {
		t.Fatalf("runners in 30-40 = %s", got)
	}
	if got := kpi(t, b, "pace"); got != "8.50 min/mile" {
		t.Fatalf("pace in 30-40 = %s", got)
	}

	b, err = eng.Process(ctx, filter.SelectionChanged{ControlID: "age_group", Value: "80-90"})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if got := kpi(t, b, "runners"); got != "0" {
		t.Fatalf("empty group runners = %s", got)
	}
	if got := kpi(t, b, "pace"); got != bundle.DefaultSentinel {
		t.Fatalf("empty group pace = %s", got)
	}

	b, err = eng.Process(ctx, filter.SelectionChanged{ControlID: "age_group", Value: "All"})
	if err != nil {
		t.Fatalf("select all: %v", err)
	}
	if got := kpi(t, b, "runners"); got != "3" {
		t.Fatalf("runners after All = %s", got)
	}
}
