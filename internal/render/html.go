package render

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"PenguinWatch.dashboard/internal/reconcile"
)

// tooltipFormat uses the series name for the penguin id and the data item
// name for the readable timestamp.
const tooltipFormat = "{b}<br/>Penguin ID: {a}<br/>Weight: {c} kg"

// HTML writes a self-contained interactive chart page.
func HTML(w io.Writer, s reconcile.ChartState, o Options) error {
	o = o.withDefaults()

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: o.Title,
			ChartID:   "weight-chart",
			Width:     fmt.Sprintf("%dpx", o.Width),
			Height:    fmt.Sprintf("%dpx", o.Height),
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    o.Title,
			Subtitle: "Average: " + s.Average,
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Trigger:   "item",
			Formatter: tooltipFormat,
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Date & Time"}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: "Weight (kg)",
			Min:  s.YMin,
			Max:  s.YMax,
		}),
	)

	// The base line draws no symbols, so only the per penguin dots answer
	// hover and the tooltip always names a penguin.
	base := make([]opts.LineData, len(s.Points))
	for i, p := range s.Points {
		base[i] = lineData(p)
		base[i].Symbol = "none"
	}
	line.SetXAxis(s.Labels()).
		AddSeries("Weight (kg)", base,
			charts.WithLineStyleOpts(opts.LineStyle{Color: reconcile.DefaultColor}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: reconcile.DefaultColor}),
		)

	// One dot series per penguin so each point carries its subject color.
	seen := map[string]bool{}
	for _, p := range s.Points {
		if seen[p.SubjectID] {
			continue
		}
		seen[p.SubjectID] = true
		data := make([]opts.LineData, len(s.Points))
		for i, q := range s.Points {
			if q.SubjectID == p.SubjectID {
				data[i] = lineData(q)
			} else {
				data[i] = opts.LineData{Value: "-"}
			}
		}
		line.AddSeries(p.SubjectID, data,
			charts.WithLineStyleOpts(opts.LineStyle{Color: p.Color}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: p.Color}),
		)
	}
	return line.Render(w)
}

func lineData(p reconcile.Point) opts.LineData {
	if p.Value == nil {
		return opts.LineData{Name: reconcile.TooltipTitle(p.Label), Value: "-"}
	}
	return opts.LineData{Name: reconcile.TooltipTitle(p.Label), Value: *p.Value}
}
