package ui

import (
	"fmt"
	"sort"

	"github.com/xunia-labs/carbon-dashboard/internal/dataset"
	"github.com/xunia-labs/carbon-dashboard/internal/delivery"
	"github.com/xunia-labs/carbon-dashboard/internal/weather"
)

func PrintStatistics(stats *delivery.Statistics) {
	fmt.Fprintf(Out, "%sAverage Carbon Storage (tons/ha): %.2f%s\n", ColorGreen, stats.MeanCarbon, ColorReset)
	fmt.Fprintf(Out, "%sTotal Carbon Storage (tons): %.0f%s\n", ColorGreen, stats.TotalCarbon, ColorReset)
	fmt.Fprintf(Out, "Mean NDVI: %.3f\n", stats.MeanNDVI)
	fmt.Fprintf(Out, "Area: %.0f ha, %d valid pixels, %d scenes\n", stats.AreaHectares, stats.ValidPixels, stats.Scenes)
}

func PrintClimate(climate *weather.Summary) {
	fmt.Fprintf(Out, "Climate: mean temperature %.1f °C, total precipitation %.0f mm over %d days\n",
		climate.MeanTemperature, climate.TotalPrecipitation, climate.Days)
}

func PrintTimeSeries(rows []dataset.Row) {
	fmt.Fprintf(Out, "%s%-12s %14s %10s %8s %8s%s\n", ColorBlue, "Date", "Carbon (t/ha)", "NDVI", "Pixels", "Cloud %", ColorReset)
	for _, r := range rows {
		fmt.Fprintf(Out, "%-12s %14.2f %10.3f %8d %8.1f\n", r.Date, r.CarbonStorage, r.MeanNDVI, r.ValidPixels, r.CloudCover)
	}
}

// PrintPanelErrors lists the failed panels of a report, sorted by name.
func PrintPanelErrors(report *delivery.Report) {
	panels := make([]string, 0, len(report.Errors))
	for panel := range report.Errors {
		panels = append(panels, panel)
	}
	sort.Strings(panels)
	for _, panel := range panels {
		PrintError(fmt.Sprintf("%s: %s", panel, report.Errors[panel]))
	}
}
