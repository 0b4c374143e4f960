package export

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"dashcore/pkg/bundle"
	"dashcore/pkg/table"
)

const (
	pngWidth  = 800
	pngHeight = 400
)

// buildPNG rasterises a chart. Charts go-chart cannot draw (no points, a
// single point, all-zero pies) become a blank placeholder and report true.
func buildPNG(c bundle.Chart) ([]byte, bool, error) {
	if c.Empty || pointCount(c) < 2 {
		b, err := placeholderPNG()
		return b, true, err
	}
	var buf bytes.Buffer
	var err error
	switch c.Type {
	case "bar":
		err = barChart(c).Render(chart.PNG, &buf)
	case "pie":
		err = pieChart(c).Render(chart.PNG, &buf)
	default:
		err = lineChart(c).Render(chart.PNG, &buf)
	}
	if err != nil {
		b, perr := placeholderPNG()
		return b, true, perr
	}
	return buf.Bytes(), false, nil
}

func pointCount(c bundle.Chart) int {
	n := 0
	for _, s := range c.Series {
		n += len(s.Points)
	}
	return n
}

func lineChart(c bundle.Chart) *chart.Chart {
	g := &chart.Chart{Title: c.Title, Width: pngWidth, Height: pngHeight}
	for _, s := range c.Series {
		ys := make([]float64, 0, len(s.Points))
		times := make([]time.Time, 0, len(s.Points))
		xs := make([]float64, 0, len(s.Points))
		dates := true
		for i, p := range s.Points {
			y, ok := p.Y.Float()
			if !ok {
				continue
			}
			ys = append(ys, y)
			if p.X.Kind == table.KindDate && p.X.Valid {
				times = append(times, p.X.Time)
			} else {
				dates = false
			}
			if x, ok := p.X.Float(); ok && p.X.Kind == table.KindNumber {
				xs = append(xs, x)
			} else {
				xs = append(xs, float64(i))
			}
		}
		if len(ys) == 0 {
			continue
		}
		if dates && len(times) == len(ys) {
			g.XAxis.ValueFormatter = chart.TimeValueFormatter
			g.Series = append(g.Series, chart.TimeSeries{Name: s.Name, XValues: times, YValues: ys})
			continue
		}
		g.Series = append(g.Series, chart.ContinuousSeries{Name: s.Name, XValues: xs, YValues: ys})
	}
	if len(c.Series) > 1 {
		g.Elements = []chart.Renderable{chart.Legend(g)}
	}
	return g
}

// barChart draws the first series; category X values label the bars.
func barChart(c bundle.Chart) *chart.BarChart {
	g := &chart.BarChart{Title: c.Title, Width: pngWidth, Height: pngHeight, BarWidth: 40}
	if len(c.Series) == 0 {
		return g
	}
	for _, p := range c.Series[0].Points {
		y, ok := p.Y.Float()
		if !ok {
			continue
		}
		g.Bars = append(g.Bars, chart.Value{Label: p.X.String(), Value: y})
	}
	return g
}

func pieChart(c bundle.Chart) *chart.PieChart {
	g := &chart.PieChart{Title: c.Title, Width: pngHeight, Height: pngHeight}
	if len(c.Series) == 0 {
		return g
	}
	for _, p := range c.Series[0].Points {
		y, ok := p.Y.Float()
		if !ok || y <= 0 {
			continue
		}
		g.Values = append(g.Values, chart.Value{Label: p.X.String(), Value: y})
	}
	return g
}

func placeholderPNG() ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, pngWidth/2, pngHeight/2))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)
	border := color.RGBA{0, 102, 204, 255}
	b := img.Bounds()
	for x := b.Min.X; x < b.Max.X; x++ {
		img.Set(x, b.Min.Y, border)
		img.Set(x, b.Max.Y-1, border)
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		img.Set(b.Min.X, y, border)
		img.Set(b.Max.X-1, y, border)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
