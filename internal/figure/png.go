package figure

import (
	"bytes"
	"io"
	"math"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"vqtlbrowser/internal/errors"
)

var (
	pointColor = drawing.ColorFromHex("1F77B4")
	barColor   = drawing.ColorFromHex("7F7F7F")
)

// pointStyle draws markers only, no connecting line
func pointStyle() chart.Style {
	return chart.Style{
		StrokeWidth: 0,
		StrokeColor: drawing.ColorTransparent,
		DotWidth:    3,
		DotColor:    pointColor,
	}
}

func barStyle() chart.Style {
	return chart.Style{
		StrokeWidth: 1,
		StrokeColor: barColor,
	}
}

// RenderPNG draws a wired figure as a static scatter plot. Each error bar is
// a two-point vertical segment beneath the markers.
func RenderPNG(f *Figure, w io.Writer) error {
	if !f.Wired() {
		return errors.NotFound("data for figure " + string(f.ID))
	}
	trace := f.Data[0]
	if len(trace.X) == 0 {
		return errors.ValidationError("figure " + string(f.ID) + " has no points")
	}

	var series []chart.Series
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range trace.X {
		top, bottom := trace.Y[i], trace.Y[i]
		if trace.ErrorY != nil {
			top += trace.ErrorY.Array[i]
			bottom -= trace.ErrorY.ArrayMinus[i]
		}
		lo, hi = math.Min(lo, bottom), math.Max(hi, top)
		if top > bottom {
			series = append(series, chart.ContinuousSeries{
				XValues: []float64{trace.X[i], trace.X[i]},
				YValues: []float64{bottom, top},
				Style:   barStyle(),
			})
		}
	}
	series = append(series, chart.ContinuousSeries{
		Name:    f.Layout.YAxis.Title.Text,
		XValues: trace.X,
		YValues: trace.Y,
		Style:   pointStyle(),
	})

	xlo, xhi := bounds(trace.X)
	ch := chart.Chart{
		Width:      f.Layout.Width,
		Height:     f.Layout.Height,
		Background: chart.Style{Padding: chart.Box{Top: 20, Left: 20, Right: 20, Bottom: 20}},
		XAxis: chart.XAxis{
			Name:  f.Layout.XAxis.Title.Text,
			Range: padded(xlo, xhi),
		},
		YAxis: chart.YAxis{
			Name:  f.Layout.YAxis.Title.Text,
			Range: padded(lo, hi),
		},
		Series: series,
	}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return errors.Wrapf(err, "failed to render figure %s", f.ID)
	}
	_, err := buf.WriteTo(w)
	return err
}

func bounds(values []float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	return lo, hi
}

// padded widens [lo, hi] by 5% each side, or by 0.5 when it has no width
func padded(lo, hi float64) *chart.ContinuousRange {
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = 0.5
	}
	return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}
