package output

import (
	"errors"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/fogleman/gg"
	"github.com/xunia-labs/carbon-dashboard/internal/dataset"
)

var ErrNoData = errors.New("no time series data to plot")

type ChartOptions struct {
	Width  int
	Height int
	Title  string
	YLabel string
}

func (o ChartOptions) withDefaults() ChartOptions {
	if o.Width <= 0 {
		o.Width = 900
	}
	if o.Height <= 0 {
		o.Height = 450
	}
	if o.Title == "" {
		o.Title = "Carbon Storage Trends"
	}
	if o.YLabel == "" {
		o.YLabel = "Carbon Storage (tons/ha)"
	}
	return o
}

const (
	marginLeft   = 80.0
	marginRight  = 30.0
	marginTop    = 50.0
	marginBottom = 60.0
	yTicks       = 5
	maxXLabels   = 6
)

// RenderTimeSeriesChart draws carbon storage against acquisition date.
func RenderTimeSeriesChart(rows []dataset.Row, opts ChartOptions) (image.Image, error) {
	if len(rows) == 0 {
		return nil, ErrNoData
	}
	opts = opts.withDefaults()

	dates := make([]time.Time, len(rows))
	for i, row := range rows {
		d, err := time.Parse(dataset.DateLayout, row.Date)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q: %w", row.Date, err)
		}
		dates[i] = d
	}

	minT, maxT := dates[0], dates[0]
	minV, maxV := rows[0].CarbonStorage, rows[0].CarbonStorage
	for i, row := range rows {
		if dates[i].Before(minT) {
			minT = dates[i]
		}
		if dates[i].After(maxT) {
			maxT = dates[i]
		}
		minV = math.Min(minV, row.CarbonStorage)
		maxV = math.Max(maxV, row.CarbonStorage)
	}
	if maxV == minV {
		minV, maxV = minV-1, maxV+1
	}
	pad := (maxV - minV) * 0.1
	minV, maxV = minV-pad, maxV+pad

	w, h := float64(opts.Width), float64(opts.Height)
	plotW := w - marginLeft - marginRight
	plotH := h - marginTop - marginBottom

	xOf := func(t time.Time) float64 {
		span := maxT.Sub(minT)
		if span == 0 {
			return marginLeft + plotW/2
		}
		return marginLeft + plotW*float64(t.Sub(minT))/float64(span)
	}
	yOf := func(v float64) float64 {
		return marginTop + plotH*(1-(v-minV)/(maxV-minV))
	}

	dc := gg.NewContext(opts.Width, opts.Height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	// Grid and y ticks
	dc.SetLineWidth(1)
	for i := 0; i <= yTicks; i++ {
		v := minV + (maxV-minV)*float64(i)/yTicks
		y := yOf(v)
		dc.SetRGB(0.9, 0.9, 0.9)
		dc.DrawLine(marginLeft, y, marginLeft+plotW, y)
		dc.Stroke()
		dc.SetRGB(0.2, 0.2, 0.2)
		dc.DrawStringAnchored(fmt.Sprintf("%.1f", v), marginLeft-8, y, 1, 0.5)
	}

	// Axes
	dc.SetRGB(0, 0, 0)
	dc.DrawLine(marginLeft, marginTop, marginLeft, marginTop+plotH)
	dc.DrawLine(marginLeft, marginTop+plotH, marginLeft+plotW, marginTop+plotH)
	dc.Stroke()

	// X labels
	step := max(1, int(math.Ceil(float64(len(rows))/maxXLabels)))
	for i := 0; i < len(rows); i += step {
		x := xOf(dates[i])
		dc.DrawLine(x, marginTop+plotH, x, marginTop+plotH+4)
		dc.Stroke()
		dc.DrawStringAnchored(rows[i].Date, x, marginTop+plotH+16, 0.5, 0.5)
	}

	// Series
	dc.SetRGB255(0, 128, 0)
	dc.SetLineWidth(2)
	for i, row := range rows {
		x, y := xOf(dates[i]), yOf(row.CarbonStorage)
		if i == 0 {
			dc.MoveTo(x, y)
		} else {
			dc.LineTo(x, y)
		}
	}
	dc.Stroke()
	for i, row := range rows {
		dc.DrawCircle(xOf(dates[i]), yOf(row.CarbonStorage), 3)
		dc.Fill()
	}

	// Titles
	dc.SetRGB(0, 0, 0)
	dc.DrawStringAnchored(opts.Title, w/2, marginTop/2, 0.5, 0.5)
	dc.DrawStringAnchored("Date", marginLeft+plotW/2, h-16, 0.5, 0.5)
	dc.Push()
	dc.RotateAbout(gg.Radians(-90), 18, marginTop+plotH/2)
	dc.DrawStringAnchored(opts.YLabel, 18, marginTop+plotH/2, 0.5, 0.5)
	dc.Pop()

	return dc.Image(), nil
}
