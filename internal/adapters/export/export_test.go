package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"dashcore/internal/blob"
	"dashcore/pkg/bundle"
	"dashcore/pkg/table"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func day(d int) table.Value {
	return table.Date(time.Date(2023, 1, d, 0, 0, 0, 0, time.UTC))
}

func sampleBundle() bundle.Bundle {
	return bundle.Bundle{
		Dashboard: "ridership",
		Charts: []bundle.Chart{{
			ID: "trend", Title: "Recovery", Type: "area", X: "date",
			Series: []bundle.Series{{Name: "Subways", Points: []bundle.Point{
				{X: day(1), Y: table.Number(61)},
				{X: day(2), Y: table.Number(64)},
				{X: day(3), Y: table.Number(70)},
			}}},
		}, {
			ID: "regions", Title: "By region", Type: "bar",
			Series: []bundle.Series{{Name: "sales", Points: []bundle.Point{
				{X: table.Category("North"), Y: table.Number(2200)},
				{X: table.Category("South"), Y: table.Number(1200)},
			}}},
		}, {
			ID: "nothing", Type: "line", Empty: true,
		}},
		KPIs: []bundle.KPI{{ID: "current", Label: "Current", Stats: []bundle.Stat{
			{Series: "Subways", Name: "current", Value: table.Number(70), Text: "70%"},
		}}},
		Summaries: []bundle.Summary{{ID: "notes", Title: "Notes", Lines: []string{"Peak <b>70%</b>"}}},
		Grids: []bundle.Grid{{
			ID: "projects", Title: "Projects", Columns: []string{"country", "amount"},
			Rows: [][]table.Value{
				{table.Category("Kenya"), table.Number(1200.5)},
				{table.Category("Peru, Lima"), table.Missing(table.KindNumber)},
			},
		}},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" PNG ")
	require.NoError(t, err)
	assert.Equal(t, FormatPNG, f)
	_, err = ParseFormat("parquet")
	assert.Error(t, err)
}

func TestGridCSV(t *testing.T) {
	b, err := GridCSV(sampleBundle().Grids[0])
	require.NoError(t, err)
	assert.Equal(t, "country,amount\nKenya,1200.5\n\"Peru, Lima\",\n", string(b))
}

func TestRenderHTMLEscapes(t *testing.T) {
	r, err := render(FormatHTML, Input{Bundle: sampleBundle()})
	require.NoError(t, err)
	html := string(r.payload)
	assert.Contains(t, html, "<h1>ridership</h1>")
	assert.Contains(t, html, "Peak &lt;b&gt;70%&lt;/b&gt;")
	assert.Contains(t, html, "<td>Kenya</td>")
	assert.Contains(t, html, "<p>No data</p>")
}

func TestRenderPNG(t *testing.T) {
	for _, id := range []string{"trend", "regions"} {
		r, err := render(FormatPNG, Input{Bundle: sampleBundle(), Chart: id})
		require.NoError(t, err, id)
		assert.True(t, bytes.HasPrefix(r.payload, pngMagic), id)
		assert.Equal(t, id, r.metadata["chart"])
	}

	r, err := render(FormatPNG, Input{Bundle: sampleBundle(), Chart: "nothing"})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(r.payload, pngMagic))
	assert.Equal(t, "true", r.metadata["placeholder"])
}

func TestRenderMissingTargets(t *testing.T) {
	b := bundle.Bundle{Dashboard: "bare"}
	_, err := render(FormatCSV, Input{Bundle: b})
	assert.ErrorContains(t, err, "no grid")
	_, err = render(FormatPNG, Input{Bundle: b})
	assert.ErrorContains(t, err, "no chart")
}

func TestWorkerProcessesExport(t *testing.T) {
	store := blob.NewMemory()
	core, logs := observer.New(zap.InfoLevel)
	w := NewWorker(store, WithLogger(zap.New(core)), WithPrefix("/out/"))
	w.Start()
	t.Cleanup(func() { _ = w.Stop(context.Background()) })

	ctx := context.Background()
	rec, err := w.Enqueue(ctx, Input{Bundle: sampleBundle(), Formats: []Format{"json", "CSV", FormatJSON}, RequestedBy: "tester"})
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, rec.Status)
	assert.Equal(t, []Format{FormatJSON, FormatCSV}, rec.Formats)

	require.Eventually(t, func() bool {
		cur, _ := w.Get(rec.ID)
		return cur.Status == StatusSucceeded || cur.Status == StatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	done, ok := w.Get(rec.ID)
	require.True(t, ok)
	require.Equal(t, StatusSucceeded, done.Status, done.Error)
	require.Len(t, done.Artifacts, 2)
	require.NotNil(t, done.CompletedAt)

	js := done.Artifacts[0]
	assert.True(t, strings.HasPrefix(js.Key, "out/ridership/"+rec.ID+"/"), js.Key)
	_, payload, err := blob.ReadAll(ctx, store, js.Key)
	require.NoError(t, err)
	var decoded struct {
		Dashboard string `json:"dashboard"`
	}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, "ridership", decoded.Dashboard)

	info, err := store.Head(ctx, done.Artifacts[1].Key)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", info.ContentType)
	assert.Equal(t, "projects", info.Metadata["grid"])
	assert.Equal(t, rec.ID, info.Metadata["export"])

	assert.Equal(t, 1, logs.FilterMessage("export queued").Len())
	assert.Equal(t, 1, logs.FilterMessage("export succeeded").Len())
}

func TestWorkerRunWithoutStart(t *testing.T) {
	w := NewWorker(nil)
	rec, err := w.Run(context.Background(), Input{Bundle: sampleBundle(), Formats: []Format{FormatHTML, FormatPNG}})
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, rec.Status)
	require.Len(t, rec.Artifacts, 2)
	assert.Empty(t, rec.Artifacts[0].Key)
	assert.Positive(t, rec.Artifacts[1].SizeBytes)
}

func TestWorkerRunFailure(t *testing.T) {
	w := NewWorker(blob.NewMemory())
	rec, err := w.Run(context.Background(), Input{Bundle: bundle.Bundle{Dashboard: "bare"}, Formats: []Format{FormatCSV}})
	require.Error(t, err)
	assert.Equal(t, StatusFailed, rec.Status)
	assert.Contains(t, rec.Error, "no grid")
}

func TestWorkerEnqueueValidation(t *testing.T) {
	w := NewWorker(nil, WithQueueSize(1))
	ctx := context.Background()

	_, err := w.Enqueue(ctx, Input{})
	assert.ErrorContains(t, err, "no dashboard")
	_, err = w.Enqueue(ctx, Input{Bundle: sampleBundle(), Formats: []Format{"xml"}})
	assert.ErrorContains(t, err, "unsupported format")
	_, err = w.Enqueue(ctx, Input{Bundle: sampleBundle(), Chart: "missing"})
	assert.ErrorContains(t, err, "chart missing")
	_, err = w.Enqueue(ctx, Input{Bundle: sampleBundle(), Grid: "missing"})
	assert.ErrorContains(t, err, "grid missing")

	first, err := w.Enqueue(ctx, Input{Bundle: sampleBundle()})
	require.NoError(t, err)
	assert.Equal(t, []Format{FormatJSON, FormatCSV}, first.Formats)
	_, err = w.Enqueue(ctx, Input{Bundle: sampleBundle()})
	assert.True(t, errors.Is(err, ErrQueueFull))

	_, ok := w.Get("unknown")
	assert.False(t, ok)
}

func TestWorkerStopIdempotent(t *testing.T) {
	w := NewWorker(nil)
	require.NoError(t, w.Stop(context.Background()))
	w.Start()
	w.Start()
	require.NoError(t, w.Stop(context.Background()))
	require.NoError(t, w.Stop(context.Background()))
}
