// Package occupations contributes the sitting and standing hours dashboard
// built on the occupational requirements survey.
package occupations

import (
	"dashcore/pkg/bundle"
	"dashcore/pkg/dashboard"
	"dashcore/pkg/filter"
	"dashcore/pkg/table"
	"dashcore/pkg/view"
)

// DefaultURL is the limited survey extract.
const DefaultURL = "https://raw.githubusercontent.com/plotly/Figure-Friday/refs/heads/main/2024/week-51/ors-limited-dataset.csv"

// Survey measures kept by the dashboard.
const (
	MeasureSit   = "Hours of the day that workers were required to sit, mean"
	MeasureStand = "Hours of the day that workers were required to stand, mean"
)

// TopCount is the number of occupations shown while nothing is selected.
const TopCount = 10

// Excluded occupations report inconsistent estimates.
var Excluded = []string{
	"Firefighters",
	"First-line supervisors of fire fighting and prevention workers",
}

// Plugin registers the occupations dashboard.
type Plugin struct{}

// New constructs an occupations plugin instance.
func New() Plugin { return Plugin{} }

func (Plugin) Name() string    { return "occupations" }
func (Plugin) Version() string { return "0.1.0" }

func (Plugin) Register(registry *dashboard.Registry) error {
	return registry.RegisterDashboard(Definition(DefaultURL))
}

func hoursView(id, measure string) view.Spec {
	return view.Spec{
		ID:             id,
		Where:          []view.Match{{Column: "measure", Values: []string{measure}}},
		Listens:        []string{"occupation"},
		Columns:        []string{"occupation", "hours"},
		TopN:           &view.TopN{N: TopCount, By: "hours"},
		EmptySelection: view.EmptyTopN,
	}
}

// Definition builds the dashboard over the CSV at url.
func Definition(url string) dashboard.Definition {
	return dashboard.Definition{
		Key:         "occupations",
		Title:       "Top Jobs for Standing and Sitting",
		Description: "Occupations ranked by the mean hours a day workers must sit or stand.",
		Source:      dashboard.Source{URL: url, Format: dashboard.FormatCSV},
		Schema: []table.ColumnSpec{
			{Name: "OCCUPATION", Kind: table.KindCategory, Required: true, Rename: "occupation"},
			{Name: "ESTIMATE TEXT", Kind: table.KindCategory, Required: true, Rename: "measure"},
			{Name: "ESTIMATE", Kind: table.KindNumber, Required: true, Rename: "hours"},
		},
		Steps: []table.Step{
			table.KeepRows{Column: "measure", Values: []string{MeasureSit, MeasureStand}},
			table.DropRows{Column: "occupation", Values: Excluded},
			table.DropMissing{Columns: []string{"hours"}},
		},
		Controls: []filter.Spec{
			{ID: "occupation", Kind: filter.KindSelect, Label: "Occupation", Column: "occupation"},
		},
		Views: []view.Spec{
			hoursView("sitting", MeasureSit),
			hoursView("standing", MeasureStand),
		},
		Outputs: bundle.Specs{
			Charts: []bundle.ChartSpec{
				{ID: "sitting-bar", View: "sitting", Title: "Top Sitting Jobs", Type: "bar", X: "occupation", Y: []string{"hours"}},
				{ID: "standing-bar", View: "standing", Title: "Top Standing Jobs", Type: "bar", X: "occupation", Y: []string{"hours"}},
			},
			KPIs: []bundle.KPISpec{
				{ID: "sitting-hours", View: "sitting", Label: "Sitting Hours", Column: "hours", Stats: []string{bundle.StatSum}, Format: "%.2f Hours"},
				{ID: "standing-hours", View: "standing", Label: "Standing Hours", Column: "hours", Stats: []string{bundle.StatSum}, Format: "%.2f Hours"},
			},
		},
	}
}
