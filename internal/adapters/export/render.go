package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html/template"

	"github.com/dustin/go-humanize"

	"dashcore/pkg/bundle"
)

type rendered struct {
	contentType string
	payload     []byte
	metadata    map[string]string
}

func render(format Format, in Input) (rendered, error) {
	switch format {
	case FormatJSON:
		b, err := json.MarshalIndent(in.Bundle, "", "  ")
		if err != nil {
			return rendered{}, fmt.Errorf("encode bundle: %w", err)
		}
		return rendered{contentType: "application/json", payload: b}, nil
	case FormatCSV:
		grid, ok := pickGrid(in.Bundle, in.Grid)
		if !ok {
			return rendered{}, fmt.Errorf("dashboard %s has no grid to export", in.Bundle.Dashboard)
		}
		b, err := GridCSV(grid)
		if err != nil {
			return rendered{}, err
		}
		return rendered{
			contentType: "text/csv",
			payload:     b,
			metadata:    map[string]string{"grid": grid.ID, "rows": fmt.Sprint(len(grid.Rows))},
		}, nil
	case FormatHTML:
		b, err := buildHTML(in.Bundle)
		if err != nil {
			return rendered{}, err
		}
		return rendered{contentType: "text/html; charset=utf-8", payload: b}, nil
	case FormatPNG:
		chart, ok := pickChart(in.Bundle, in.Chart)
		if !ok {
			return rendered{}, fmt.Errorf("dashboard %s has no chart to export", in.Bundle.Dashboard)
		}
		b, placeholder, err := buildPNG(chart)
		if err != nil {
			return rendered{}, err
		}
		meta := map[string]string{"chart": chart.ID}
		if placeholder {
			meta["placeholder"] = "true"
		}
		return rendered{contentType: "image/png", payload: b, metadata: meta}, nil
	}
	return rendered{}, fmt.Errorf("export: unsupported format %q", format)
}

func pickGrid(b bundle.Bundle, id string) (bundle.Grid, bool) {
	if id != "" {
		return b.Grid(id)
	}
	if len(b.Grids) == 0 {
		return bundle.Grid{}, false
	}
	return b.Grids[0], true
}

func pickChart(b bundle.Bundle, id string) (bundle.Chart, bool) {
	if id != "" {
		return b.Chart(id)
	}
	if len(b.Charts) == 0 {
		return bundle.Chart{}, false
	}
	return b.Charts[0], true
}

// GridCSV encodes a grid with a header row. Missing cells are empty.
func GridCSV(g bundle.Grid) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(g.Columns); err != nil {
		return nil, err
	}
	record := make([]string, len(g.Columns))
	for _, row := range g.Rows {
		for i := range record {
			record[i] = ""
			if i < len(row) {
				record[i] = row[i].String()
			}
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var pageTemplate = template.Must(template.New("bundle").Funcs(template.FuncMap{
	"cell": func(v interface{ String() string }) string { return v.String() },
	"rows": func(n int) string { return humanize.Comma(int64(n)) },
}).Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.Dashboard}}</title></head>
<body>
<h1>{{.Dashboard}}</h1>
{{- range .KPIs}}
<section class="kpi" id="{{.ID}}"><h2>{{.Label}}</h2><dl>
{{- range .Stats}}<dt>{{if .Series}}{{.Series}} {{end}}{{.Name}}</dt><dd>{{.Text}}</dd>{{end}}
</dl></section>
{{- end}}
{{- range .Summaries}}
<section class="summary" id="{{.ID}}"><h2>{{.Title}}</h2>
{{- range .Lines}}<p>{{.}}</p>{{end}}
</section>
{{- end}}
{{- range .Toggles}}
<nav class="toggles" id="{{.ID}}">
{{- range .Controls}}<button class="{{.Class}}"{{if .Active}} aria-pressed="true"{{end}}>{{.Label}}</button>{{end}}
</nav>
{{- end}}
{{- range .Charts}}
<section class="chart" id="{{.ID}}"><h2>{{.Title}}</h2>
{{- if .Empty}}<p>No data</p>{{else}}<ul>
{{- range .Series}}<li>{{.Name}}: {{len .Points}} points</li>{{end}}
</ul>{{end}}
</section>
{{- end}}
{{- range .Grids}}
<section class="grid" id="{{.ID}}"><h2>{{.Title}}</h2><p>{{rows (len .Rows)}} rows</p>
<table><thead><tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr></thead><tbody>
{{- range .Rows}}<tr>{{range .}}<td>{{cell .}}</td>{{end}}</tr>{{end}}
</tbody></table>
</section>
{{- end}}
</body></html>
`))

func buildHTML(b bundle.Bundle) ([]byte, error) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, b); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return buf.Bytes(), nil
}
