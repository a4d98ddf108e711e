package pipeline

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/contour-mcp/internal/config"
	"github.com/ironsheep/contour-mcp/internal/detection"
	"github.com/ironsheep/contour-mcp/internal/raster"
)

// squareFixture is a 701x375 RGBA raster, fully transparent except for an
// opaque white square covering rows 10-276 and columns 114-689.
func squareFixture(t *testing.T) *raster.Raster {
	t.Helper()
	r, err := raster.New(701, 375, 4)
	require.NoError(t, err)
	for y := 10; y <= 276; y++ {
		for x := 114; x <= 689; x++ {
			for c := 0; c < 4; c++ {
				r.Set(x, y, c, 255)
			}
		}
	}
	return r
}

func TestRun_SquareFixture(t *testing.T) {
	p := New(nil, nil)
	report, err := p.Run(squareFixture(t), DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 701, report.Width)
	assert.Equal(t, 375, report.Height)
	assert.Equal(t, 1, report.ContourCount)
	assert.Equal(t, 0, report.SelectedIndex)
	assert.Equal(t, 575.0*266.0, report.SelectedArea)
	assert.Equal(t, detection.Bounds{X1: 114, Y1: 10, X2: 689, Y2: 276}, report.SelectedBounds)

	assert.Equal(t, 115*369, report.RectCount)
	assert.Equal(t, report.RectCount, report.IntersectionCount)
	assert.True(t, report.Contained)

	require.NotNil(t, report.Region)
	n, err := raster.CountNonZero(report.Region)
	require.NoError(t, err)
	assert.Equal(t, 267*576, n, "filled region covers the whole square")
}

func TestRun_NotContained(t *testing.T) {
	opts := DefaultOptions()
	opts.Rect.Right = 695 // six columns past the square

	report, err := New(nil, nil).Run(squareFixture(t), opts)
	require.NoError(t, err, "a completed run is not an error")
	assert.False(t, report.Contained)
	// 191-77+1 = 115 rows; 695-217+1 = 479 columns, of which 689-217+1 = 473
	// lie inside the square.
	assert.Equal(t, 115*479, report.RectCount)
	assert.Equal(t, 115*473, report.IntersectionCount)
}

func TestRun_Deterministic(t *testing.T) {
	p := New(nil, nil)
	src := squareFixture(t)

	a, err := p.Run(src, DefaultOptions())
	require.NoError(t, err)
	b, err := p.Run(src, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, a.Contours, b.Contours)
	assert.Equal(t, a.Region.Pix, b.Region.Pix)
}

func TestRun_ApproxModesAgree(t *testing.T) {
	p := New(nil, nil)
	src := squareFixture(t)

	simple, err := p.Run(src, DefaultOptions())
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.Approx = detection.ApproxNone
	none, err := p.Run(src, opts)
	require.NoError(t, err)

	assert.Equal(t, simple.SelectedArea, none.SelectedArea)
	assert.Equal(t, simple.IntersectionCount, none.IntersectionCount)
	assert.Equal(t, simple.Region.Pix, none.Region.Pix)
	assert.Less(t, simple.Contours[0].Points, none.Contours[0].Points)
}

func TestExtract_Hierarchy(t *testing.T) {
	src := squareFixture(t)
	for y := 100; y <= 150; y++ {
		for x := 300; x <= 400; x++ {
			src.Set(x, y, 3, 0)
		}
	}

	set, err := New(nil, nil).Extract(src, DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, 2, set.Len())
	require.NoError(t, set.Forest.Validate())

	assert.False(t, set.Holes[0])
	assert.Equal(t, -1, set.Forest.Parent(0))
	assert.Equal(t, []int{1}, set.Forest.Children(0))
	assert.True(t, set.Holes[1])
	assert.Equal(t, 0, set.Forest.Parent(1))

	summaries := Summarize(set, 0)
	assert.Equal(t, 0, summaries[0].Depth)
	assert.Equal(t, 1, summaries[1].Depth)
}

func TestExtract_EmptyMask(t *testing.T) {
	src, err := raster.New(64, 32, 4)
	require.NoError(t, err)

	set, err := New(nil, nil).Extract(src, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())
}

func TestRun_EmptyAlpha(t *testing.T) {
	src, err := raster.New(64, 32, 4)
	require.NoError(t, err)

	_, err = New(nil, nil).Run(src, DefaultOptions())
	require.Error(t, err)

	var se *StepError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StepSelect, se.Step)
	assert.ErrorIs(t, err, detection.ErrNotFound)
}

func TestRun_SmallSquareFiltered(t *testing.T) {
	src, err := raster.New(200, 200, 4)
	require.NoError(t, err)
	for y := 50; y < 150; y++ {
		for x := 50; x < 150; x++ {
			for c := 0; c < 4; c++ {
				src.Set(x, y, c, 255)
			}
		}
	}

	// 100x100 pixels encloses 99*99 = 9801 < 10000.
	_, err = New(nil, nil).Run(src, DefaultOptions())
	assert.ErrorIs(t, err, detection.ErrNotFound)

	opts := DefaultOptions()
	opts.MinArea = 9801
	opts.Rect = raster.Rect{Top: 60, Left: 60, Bottom: 140, Right: 140}
	report, err := New(nil, nil).Run(src, opts)
	require.NoError(t, err)
	assert.True(t, report.Contained)
}

func TestRun_InvalidChannel(t *testing.T) {
	src, err := raster.New(8, 8, 3)
	require.NoError(t, err)

	_, err = New(nil, nil).Run(src, DefaultOptions())
	var se *StepError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StepIsolate, se.Step)
	assert.ErrorIs(t, err, raster.ErrInvalidChannel)
}

func TestRun_OtherChannel(t *testing.T) {
	// Opaque everywhere, but only the square has red > 230.
	src := squareFixture(t)
	for i := 3; i < len(src.Pix); i += 4 {
		src.Pix[i] = 255
	}
	opts := DefaultOptions()
	opts.Channel = 0

	report, err := New(nil, nil).Run(src, opts)
	require.NoError(t, err)
	assert.True(t, report.Contained)
	assert.Equal(t, 575.0*266.0, report.SelectedArea)
}

func TestReport_JSON(t *testing.T) {
	report, err := New(nil, nil).Run(squareFixture(t), DefaultOptions())
	require.NoError(t, err)

	data, err := json.Marshal(report)
	require.NoError(t, err)

	var decoded Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Nil(t, decoded.Region)
	assert.Equal(t, report.Options, decoded.Options)
	assert.Equal(t, report.Contained, decoded.Contained)
	assert.Contains(t, string(data), `"approx":"simple"`)
}

func TestKey(t *testing.T) {
	src := squareFixture(t)
	opts := DefaultOptions()

	k := Key(src, opts)
	assert.Len(t, k, 32)
	assert.Equal(t, k, Key(src.Clone(), opts))

	changed := opts
	changed.MinArea++
	assert.NotEqual(t, k, Key(src, changed))

	changed = opts
	changed.Rect.Top++
	assert.NotEqual(t, k, Key(src, changed))

	other := src.Clone()
	other.Pix[0] = 1
	assert.NotEqual(t, k, Key(other, opts))
}

func TestOptionsFromConfig(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	opts, err := OptionsFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, DefaultOptions(), opts)
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, label, value string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if hasLabel(m, label, value) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func hasLabel(m *dto.Metric, name, value string) bool {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name && lp.GetValue() == value {
			return true
		}
	}
	return false
}

func TestRun_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)
	p := New(nil, m)

	_, err = p.Run(squareFixture(t), DefaultOptions())
	require.NoError(t, err)

	empty, err := raster.New(16, 16, 4)
	require.NoError(t, err)
	_, err = p.Run(empty, DefaultOptions())
	require.Error(t, err)

	assert.Equal(t, 1.0, counterValue(t, reg, "contour_pipeline_runs_total", "outcome", "contained"))
	assert.Equal(t, 1.0, counterValue(t, reg, "contour_pipeline_runs_total", "outcome", "error"))

	families, err := reg.Gather()
	require.NoError(t, err)
	var steps int
	for _, mf := range families {
		if mf.GetName() == "contour_pipeline_step_duration_seconds" {
			steps = len(mf.GetMetric())
		}
	}
	assert.Equal(t, 7, steps, "every step observed at least once")
}

func TestNewMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	require.NoError(t, err)
	_, err = NewMetrics(reg)
	assert.Error(t, err)
}
