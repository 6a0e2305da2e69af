package report

import (
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/barn.report/internal/livestock"
	"github.com/banshee-data/barn.report/internal/units"
)

// RenderChart writes an HTML page with one stacked bar per animal, one
// segment per state, in minutes.
func RenderChart(w io.Writer, snap livestock.Snapshot, subtitle string) error {
	ids := livestock.SortedAnimalIDs(snap)
	x := make([]string, len(ids))
	for i, id := range ids {
		x[i] = string(id)
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Barn Report", Width: "100%", Height: "640px"}),
		charts.WithTitleOpts(opts.Title{Title: "Accumulated time per animal", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Animal"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Minutes"}),
	)
	bar.SetXAxis(x)
	for _, state := range livestock.States {
		data := make([]opts.BarData, len(ids))
		for i, id := range ids {
			acc, _ := snap.Get(id, state)
			data[i] = opts.BarData{Name: string(id), Value: units.Round(acc.TotalSeconds/60, 1)}
		}
		bar.AddSeries(string(state), data, charts.WithBarChartOpts(opts.BarChart{Stack: "time"}))
	}
	return bar.Render(w)
}
