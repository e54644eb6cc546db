// Package render draws a reconciled chart state as a static PNG or as an
// interactive HTML page.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"PenguinWatch.dashboard/internal/reconcile"
)

const (
	DefaultWidth  = 900
	DefaultHeight = 400
)

// Options sizes and titles a rendered chart.
type Options struct {
	Title  string
	Width  int
	Height int
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Title == "" {
		o.Title = "Weight History"
	}
	return o
}

// transparent hides the connecting line of the dot-only subject series.
var transparent = drawing.Color{R: 255, G: 255, B: 255, A: 0}

func hexColor(hex string) drawing.Color {
	return drawing.ColorFromHex(strings.TrimPrefix(hex, "#"))
}

// dotStyle renders points only, in the subject's color.
func dotStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeColor: transparent,
		DotWidth:    4,
		DotColor:    col,
	}
}

// PNG writes the chart as a PNG image. Points without a weight leave a gap
// in the line. A chart with no valid weight renders as a blank image.
func PNG(w io.Writer, s reconcile.ChartState, o Options) error {
	o = o.withDefaults()
	if s.Valid() == 0 {
		return png.Encode(w, blank(o.Width, o.Height))
	}

	n := len(s.Points)
	ticks := make([]chart.Tick, 0, n+1)
	for i, p := range s.Points {
		ticks = append(ticks, chart.Tick{Value: float64(i + 1), Label: p.Label})
	}
	maxX := float64(n) + 0.5
	if n == 1 {
		maxX = 2.0
		ticks = append(ticks, chart.Tick{Value: 2, Label: ""})
	}

	var series []chart.Series
	for _, run := range contiguousRuns(s) {
		series = append(series, chart.ContinuousSeries{
			Name:    "Weight (kg)",
			XValues: run.xs,
			YValues: run.ys,
			Style: chart.Style{
				StrokeColor: hexColor(reconcile.DefaultColor),
				StrokeWidth: 2,
			},
		})
	}
	for _, sub := range subjectDots(s) {
		series = append(series, chart.ContinuousSeries{
			Name:    sub.id,
			XValues: sub.xs,
			YValues: sub.ys,
			Style:   dotStyle(hexColor(sub.color)),
		})
	}

	ch := chart.Chart{
		Title:      o.Title,
		Width:      o.Width,
		Height:     o.Height,
		Background: chart.Style{Padding: chart.Box{Top: 24, Left: 16, Right: 16, Bottom: 48}},
		XAxis: chart.XAxis{
			Name:      "Date & Time",
			Ticks:     ticks,
			Range:     &chart.ContinuousRange{Min: 0.5, Max: maxX},
			TickStyle: chart.Style{TextRotationDegrees: 45},
		},
		YAxis: chart.YAxis{
			Name:  "Weight (kg)",
			Range: &chart.ContinuousRange{Min: s.YMin, Max: s.YMax},
		},
		Series: series,
	}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	_, err := buf.WriteTo(w)
	return err
}

type xy struct {
	id, color string
	xs, ys    []float64
}

// contiguousRuns splits the valid points into runs broken by null weights.
// Single points are doubled so every series has two values.
func contiguousRuns(s reconcile.ChartState) []xy {
	var runs []xy
	var cur xy
	flush := func() {
		if len(cur.xs) == 1 {
			cur.xs = append(cur.xs, cur.xs[0])
			cur.ys = append(cur.ys, cur.ys[0])
		}
		if len(cur.xs) > 0 {
			runs = append(runs, cur)
		}
		cur = xy{}
	}
	for i, p := range s.Points {
		if p.Value == nil {
			flush()
			continue
		}
		cur.xs = append(cur.xs, float64(i+1))
		cur.ys = append(cur.ys, *p.Value)
	}
	flush()
	return runs
}

// subjectDots groups valid points by subject in first-seen order.
func subjectDots(s reconcile.ChartState) []xy {
	var out []xy
	index := map[string]int{}
	for i, p := range s.Points {
		if p.Value == nil {
			continue
		}
		k, ok := index[p.SubjectID]
		if !ok {
			k = len(out)
			index[p.SubjectID] = k
			out = append(out, xy{id: p.SubjectID, color: p.Color})
		}
		out[k].xs = append(out[k].xs, float64(i+1))
		out[k].ys = append(out[k].ys, *p.Value)
	}
	for k := range out {
		if len(out[k].xs) == 1 {
			out[k].xs = append(out[k].xs, out[k].xs[0])
			out[k].ys = append(out[k].ys, out[k].ys[0])
		}
	}
	return out
}

func blank(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	return img
}
