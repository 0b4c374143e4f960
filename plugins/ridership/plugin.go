// Package ridership contributes the transit recovery dashboard: daily
// ridership of each service as a share of the comparable pre-pandemic day.
package ridership

import (
	"strings"

	"dashcore/pkg/bundle"
	"dashcore/pkg/dashboard"
	"dashcore/pkg/filter"
	"dashcore/pkg/table"
	"dashcore/pkg/view"
)

// DefaultURL is the public ridership extract.
const DefaultURL = "https://raw.githubusercontent.com/plotly/datasets/master/MTA_Ridership_by_DATA_NY_GOV.csv"

const pctSuffix = ": % of Comparable Pre-Pandemic Day"

// Services are the transit services with a recovery column.
var Services = []string{
	"Subways",
	"Buses",
	"LIRR",
	"Metro-North",
	"Access-A-Ride",
	"Bridges and Tunnels",
	"Staten Island Railway",
}

// Plugin registers the ridership dashboard.
type Plugin struct{}

// New constructs a ridership plugin instance.
func New() Plugin { return Plugin{} }

func (Plugin) Name() string    { return "ridership" }
func (Plugin) Version() string { return "0.1.0" }

func (Plugin) Register(registry *dashboard.Registry) error {
	return registry.RegisterDashboard(Definition(DefaultURL))
}

// Definition builds the dashboard over the CSV at url.
func Definition(url string) dashboard.Definition {
	schema := []table.ColumnSpec{{Name: "Date", Kind: table.KindDate, Required: true, Rename: "date"}}
	var steps []table.Step
	controls := []filter.Spec{{ID: "dates", Kind: filter.KindRange, Label: "Date range", Column: "date"}}
	for _, svc := range Services {
		schema = append(schema, table.ColumnSpec{Name: svc + pctSuffix, Kind: table.KindNumber, Rename: svc})
		// each service column is normalised on its own before reshaping
		steps = append(steps, table.NormalizePercent{Column: svc})
		controls = append(controls, filter.Spec{
			ID:     toggleID(svc),
			Kind:   filter.KindToggle,
			Label:  svc,
			Column: "service",
			Value:  svc,
		})
	}
	steps = append(steps,
		table.Melt{ID: []string{"date"}, Values: Services, Variable: "service", Value: "recovery"},
		table.DropMissing{Columns: []string{"recovery"}},
	)

	return dashboard.Definition{
		Key:         "ridership",
		Title:       "MTA Ridership Dashboard",
		Description: "Ridership recovery trends for transit services during the pandemic.",
		Source:      dashboard.Source{URL: url, Format: dashboard.FormatCSV},
		Schema:      schema,
		Steps:       steps,
		Controls:    controls,
		Views: []view.Spec{{
			ID:      "recovery",
			Listens: []string{"dates", "service"},
			Columns: []string{"date", "service", "recovery"},
		}},
		Outputs: bundle.Specs{
			Charts: []bundle.ChartSpec{{
				ID: "trend", View: "recovery", Title: "Ridership Recovery Trends", Type: "area",
				X: "date", Y: []string{"recovery"}, Color: "service", Series: "service",
				YFormat: bundle.FormatPercent,
			}},
			KPIs: []bundle.KPISpec{{
				ID: "services", View: "recovery", Column: "recovery", X: "date", Series: "service",
				Stats:  []string{bundle.StatCurrent, bundle.StatAvg, bundle.StatPeak},
				Format: bundle.FormatPercent,
			}},
			Summaries: []bundle.SummarySpec{{
				ID: "extrema", View: "recovery", Title: "Summary", Column: "recovery", At: "date",
				Series: "service", Range: "dates", Format: bundle.FormatPercent,
			}},
			Toggles: []bundle.ToggleSpec{{ID: "service-buttons", Group: "service", OnClass: "service-on", OffClass: "service-off"}},
		},
	}
}

func toggleID(service string) string {
	return "svc-" + strings.ToLower(strings.ReplaceAll(service, " ", "-"))
}
