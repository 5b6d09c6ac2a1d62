package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xunia-labs/carbon-dashboard/internal/dataset"
	"github.com/xunia-labs/carbon-dashboard/internal/delivery"
	"github.com/xunia-labs/carbon-dashboard/internal/weather"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := Out
	Out = &buf
	t.Cleanup(func() { Out = prev })
	return &buf
}

func TestPrintStatistics(t *testing.T) {
	buf := capture(t)
	PrintStatistics(&delivery.Statistics{MeanCarbon: 120.456, TotalCarbon: 1234567, MeanNDVI: 0.6, AreaHectares: 10249, ValidPixels: 40, Scenes: 3})
	PrintClimate(&weather.Summary{MeanTemperature: 8.25, TotalPrecipitation: 1100, Days: 365})

	out := buf.String()
	assert.Contains(t, out, "Average Carbon Storage (tons/ha): 120.46")
	assert.Contains(t, out, "Total Carbon Storage (tons): 1234567")
	assert.Contains(t, out, "3 scenes")
	assert.Contains(t, out, "over 365 days")
}

func TestPrintTimeSeries(t *testing.T) {
	buf := capture(t)
	PrintTimeSeries([]dataset.Row{
		{Date: "2024-06-01", CarbonStorage: 100, MeanNDVI: 0.5, ValidPixels: 4},
		{Date: "2024-07-01", CarbonStorage: 110, MeanNDVI: 0.55, ValidPixels: 3},
	})
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[2], "2024-07-01"))
}

func TestPrintPanelErrors(t *testing.T) {
	buf := capture(t)
	PrintPanelErrors(&delivery.Report{Errors: map[string]string{"map": "boom", "climate": "offline"}})
	out := buf.String()
	assert.Less(t, strings.Index(out, "climate: offline"), strings.Index(out, "map: boom"))
}

func TestPrintHelpers(t *testing.T) {
	buf := capture(t)
	PrintWarning("careful")
	PrintSuccess("done")
	PrintInfo("note")
	out := buf.String()
	assert.Contains(t, out, ColorYellow+"careful")
	assert.Contains(t, out, ColorGreen+"done")
	assert.Contains(t, out, ColorBlue+"note")
}
