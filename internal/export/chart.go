package export

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/piwi3910/CutYield/internal/engine"
)

// ExportComparisonChart renders the kerf what-if results as an HTML bar
// chart: utilization and waste per scenario, in percent.
func ExportComparisonChart(w io.Writer, comparisons []engine.ComparisonResult) error {
	if len(comparisons) == 0 {
		return fmt.Errorf("no scenarios to chart")
	}

	names := make([]string, 0, len(comparisons))
	utilization := make([]opts.BarData, 0, len(comparisons))
	waste := make([]opts.BarData, 0, len(comparisons))
	for _, c := range comparisons {
		names = append(names, fmt.Sprintf("%s (%d placed)", c.Scenario.Name, c.PlacedCount))
		utilization = append(utilization, opts.BarData{Value: math.Round(c.Utilization*100) / 100})
		waste = append(waste, opts.BarData{Value: math.Round(c.WastePercent*100) / 100})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Kerf comparison"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Kerf comparison",
			Subtitle: "Sheet utilization per blade width",
		}),
		charts.WithYAxisOpts(opts.YAxis{Name: "%"}),
	)
	bar.SetXAxis(names).
		AddSeries("Utilization", utilization).
		AddSeries("Waste", waste)

	if err := bar.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}
