// Package marathon contributes the NYC marathon pace dashboard.
package marathon

import (
	"dashcore/pkg/bundle"
	"dashcore/pkg/dashboard"
	"dashcore/pkg/filter"
	"dashcore/pkg/table"
	"dashcore/pkg/view"
)

// DefaultURL is the 2024 results extract.
const DefaultURL = "https://raw.githubusercontent.com/banana0000/NYC_Marathon2024/refs/heads/main/NYCMaraton2024.csv"

// AgeEdges bin runners into decades; runners outside 10-90 have no group.
var AgeEdges = []float64{10, 20, 30, 40, 50, 60, 70, 80, 90}

// Plugin registers the marathon dashboard.
type Plugin struct{}

// New constructs a marathon plugin instance.
func New() Plugin { return Plugin{} }

func (Plugin) Name() string    { return "marathon" }
func (Plugin) Version() string { return "0.1.0" }

func (Plugin) Register(registry *dashboard.Registry) error {
	return registry.RegisterDashboard(Definition(DefaultURL))
}

// Definition builds the dashboard over the CSV at url.
func Definition(url string) dashboard.Definition {
	return dashboard.Definition{
		Key:         "marathon",
		Title:       "NYC Marathon 2024 Age Groups",
		Description: "Minutes per mile by gender for each age group.",
		Source:      dashboard.Source{URL: url, Format: dashboard.FormatCSV},
		Schema: []table.ColumnSpec{
			{Name: "firstName", Kind: table.KindCategory, Rename: "first_name"},
			{Name: "age", Kind: table.KindNumber, Required: true},
			{Name: "gender", Kind: table.KindCategory},
			{Name: "pace", Kind: table.KindCategory, Required: true},
		},
		Steps: []table.Step{
			table.ParseClock{Column: "pace", As: "pace_minutes", Required: true},
			table.DropMissing{Columns: []string{"pace_minutes"}},
			table.Bucket{Column: "age", As: "age_group", Edges: AgeEdges},
		},
		Controls: []filter.Spec{
			{ID: "age_group", Kind: filter.KindSelect, Label: "Age group", Column: "age_group", AllValue: "All"},
		},
		Views: []view.Spec{
			{ID: "runners", Listens: []string{"age_group"}, Columns: []string{"first_name", "gender", "age_group", "pace_minutes"}},
			{ID: "by-gender", Listens: []string{"age_group"}, GroupBy: []string{"gender"}, Aggregates: []view.Aggregate{
				{Column: "pace_minutes", Func: view.FuncMean, As: "pace"},
				{Func: view.FuncCount, As: "runners"},
			}},
		},
		Outputs: bundle.Specs{
			Charts: []bundle.ChartSpec{
				{ID: "pace-violin", View: "runners", Title: "Distribution of Minutes per Mile, by Gender", Type: "violin", Y: []string{"pace_minutes"}, Color: "gender"},
				{ID: "gender-pace", View: "by-gender", Title: "Average pace by gender", Type: "bar", X: "gender", Y: []string{"pace"}, YFormat: "%.2f"},
			},
			KPIs: []bundle.KPISpec{
				{ID: "runners", View: "runners", Label: "Total Runners", Column: "first_name", Stats: []string{bundle.StatUnique}},
				{ID: "pace", View: "runners", Label: "Average Pace", Column: "pace_minutes", Stats: []string{bundle.StatAvg}, Format: "%.2f min/mile"},
			},
		},
	}
}
