// Package grants contributes the NEA literature grant dashboard. Clicking the
// gender pie or a year bar cross-filters every other chart.
package grants

import (
	"dashcore/pkg/bundle"
	"dashcore/pkg/dashboard"
	"dashcore/pkg/filter"
	"dashcore/pkg/table"
	"dashcore/pkg/view"
)

// DefaultURL is the published grant extract.
const DefaultURL = "https://raw.githubusercontent.com/plotly/Figure-Friday/refs/heads/main/2025/week-4/Post45_NEAData_Final.csv"

// AgeEdges bin the writer's age at the time of the grant.
var AgeEdges = []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}

// Plugin registers the grants dashboard.
type Plugin struct{}

// New constructs a grants plugin instance.
func New() Plugin { return Plugin{} }

func (Plugin) Name() string    { return "grants" }
func (Plugin) Version() string { return "0.1.0" }

func (Plugin) Register(registry *dashboard.Registry) error {
	return registry.RegisterDashboard(Definition(DefaultURL))
}

// Definition builds the dashboard over the CSV at url.
func Definition(url string) dashboard.Definition {
	listens := []string{"gender", "year"}
	count := []view.Aggregate{{Func: view.FuncCount, As: "grants"}}
	return dashboard.Definition{
		Key:         "grants",
		Title:       "NEA Grant Data Dashboard 1996-2024 in US",
		Description: "Creative writing fellowships by gender, year, age and state.",
		Source:      dashboard.Source{URL: url, Format: dashboard.FormatCSV},
		Schema: []table.ColumnSpec{
			{Name: "gender", Kind: table.KindCategory, Required: true},
			{Name: "nea_grant_year", Kind: table.KindNumber, Required: true, Rename: "year"},
			{Name: "birth_year", Kind: table.KindNumber},
			{Name: "us_state", Kind: table.KindCategory},
		},
		Steps: []table.Step{
			table.TitleCase{Column: "gender"},
			table.Difference{Left: "year", Right: "birth_year", As: "age"},
			table.Bucket{Column: "age", As: "age_group", Edges: AgeEdges},
		},
		Controls: []filter.Spec{
			{ID: "gender", Kind: filter.KindCrossFilter, Label: "Gender", Column: "gender", Source: "gender-pie"},
			{ID: "year", Kind: filter.KindCrossFilter, Label: "Grant year", Column: "year", Source: "year-bar"},
		},
		Views: []view.Spec{
			{ID: "grants", Listens: listens, Columns: []string{"gender", "year", "age", "us_state"}},
			{ID: "by-gender", Listens: listens, GroupBy: []string{"gender"}, Aggregates: count,
				Sort: &view.Order{By: "grants", Descending: true}},
			{ID: "by-year", Listens: listens, GroupBy: []string{"year", "gender"}, Aggregates: count,
				Sort: &view.Order{By: "year"}},
			{ID: "by-age", Listens: listens, GroupBy: []string{"age_group", "gender"}, Aggregates: count,
				Sort: &view.Order{By: "age_group"}},
			{ID: "by-state", Listens: listens, GroupBy: []string{"us_state"}, Aggregates: count,
				Sort: &view.Order{By: "grants", Descending: true}},
		},
		Outputs: bundle.Specs{
			Charts: []bundle.ChartSpec{
				{ID: "gender-pie", View: "by-gender", Title: "Gender Distribution", Type: "pie", X: "gender", Y: []string{"grants"}},
				{ID: "age-histogram", View: "by-age", Title: "Age Distribution of Writers", Type: "bar", X: "age_group", Y: []string{"grants"}, Color: "gender"},
				{ID: "year-bar", View: "by-year", Title: "Grant Counts by Year (Stacked by Gender)", Type: "bar", X: "year", Y: []string{"grants"}, Color: "gender"},
				{ID: "state-treemap", View: "by-state", Title: "Grant Distribution Across US States", Type: "treemap", X: "us_state", Y: []string{"grants"}},
			},
			KPIs: []bundle.KPISpec{{
				ID: "totals", View: "grants", Label: "Grants", Column: "age",
				Stats: []string{bundle.StatCount, bundle.StatAvg},
			}},
			Grids: []bundle.GridSpec{{ID: "states", View: "by-state", Title: "Grants by state", Limit: 20}},
		},
	}
}
