package delivery

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/xunia-labs/carbon-dashboard/internal/carbon"
	"github.com/xunia-labs/carbon-dashboard/internal/dataset"
	"github.com/xunia-labs/carbon-dashboard/internal/sentinel"
	"go.uber.org/zap"
)

// ImageSource yields NDVI grids for the scenes of a region.
// *sentinel.Archive implements it.
type ImageSource interface {
	Region() *sentinel.Region
	Scenes(ctx context.Context, from, to time.Time) ([]sentinel.Scene, error)
	EachNDVI(ctx context.Context, scenes []sentinel.Scene, fn func(sentinel.Scene, *carbon.Grid) error) error
}

type SceneNDVI struct {
	Scene sentinel.Scene
	NDVI  *carbon.Grid
}

// Frame is the carbon grid of a single scene, used for the timelapse.
type Frame struct {
	Date   time.Time
	Carbon *carbon.Grid
}

type Statistics struct {
	MeanCarbon   float64 `json:"mean_carbon"`
	TotalCarbon  float64 `json:"total_carbon"`
	MeanNDVI     float64 `json:"mean_ndvi"`
	AreaHectares float64 `json:"area_hectares"`
	ValidPixels  int     `json:"valid_pixels"`
	Scenes       int     `json:"scenes"`
}

// Analysis is the outcome of one pass over the scenes of a range.
type Analysis struct {
	Composite *carbon.Grid
	Rows      []dataset.Row
	Frames    []Frame
}

type Processor struct {
	source ImageSource
	factor float64
	logger *zap.Logger
}

func NewProcessor(source ImageSource, factor float64, logger *zap.Logger) *Processor {
	if factor == 0 {
		factor = carbon.DefaultFactor
	}
	return &Processor{source: source, factor: factor, logger: logger}
}

func (p *Processor) Region() *sentinel.Region {
	return p.source.Region()
}

func (p *Processor) Factor() float64 {
	return p.factor
}

// NDVITimeSeries returns the NDVI grid of every usable scene in the range.
func (p *Processor) NDVITimeSeries(ctx context.Context, r DateRange) ([]SceneNDVI, error) {
	scenes, err := p.source.Scenes(ctx, r.Start, r.End)
	if err != nil {
		return nil, err
	}
	var series []SceneNDVI
	err = p.source.EachNDVI(ctx, scenes, func(s sentinel.Scene, g *carbon.Grid) error {
		series = append(series, SceneNDVI{Scene: s, NDVI: g})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return series, nil
}

func (p *Processor) EstimateCarbonStorage(ndvi *carbon.Grid) *carbon.Grid {
	return carbon.EstimateCarbon(ndvi, p.factor)
}

// Analyze streams the scenes of the range once, building the NDVI composite
// and one time series row per scene. Frames are kept only when requested.
func (p *Processor) Analyze(ctx context.Context, r DateRange, withFrames bool) (*Analysis, error) {
	start := time.Now()
	scenes, err := p.source.Scenes(ctx, r.Start, r.End)
	if err != nil {
		return nil, err
	}
	p.logger.Info("Processing scenes",
		zap.String("range", r.String()),
		zap.Int("scenes", len(scenes)))

	var composite carbon.Composite
	analysis := &Analysis{}
	err = p.source.EachNDVI(ctx, scenes, func(s sentinel.Scene, ndvi *carbon.Grid) error {
		if err := composite.Add(ndvi); err != nil {
			return err
		}
		mean, valid, err := carbon.ReduceMean(ndvi)
		if err != nil {
			return nil
		}
		analysis.Rows = append(analysis.Rows, dataset.Row{
			Date:          s.Date.Format(dataset.DateLayout),
			CarbonStorage: mean * p.factor,
			MeanNDVI:      mean,
			ValidPixels:   valid,
			CloudCover:    s.CloudCover,
		})
		if withFrames {
			analysis.Frames = append(analysis.Frames, Frame{Date: s.Date, Carbon: p.EstimateCarbonStorage(ndvi)})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	analysis.Composite, err = composite.Mean()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r, err)
	}
	dataset.SortRows(analysis.Rows)
	sort.Slice(analysis.Frames, func(i, j int) bool {
		return analysis.Frames[i].Date.Before(analysis.Frames[j].Date)
	})

	p.logger.Info("Scenes processed",
		zap.Int("used", composite.Len()),
		zap.Duration("took", time.Since(start)))
	return analysis, nil
}

// Statistics reduces the composite of an analysis over the region.
func (p *Processor) Statistics(a *Analysis) (*Statistics, error) {
	meanNDVI, valid, err := carbon.ReduceMean(a.Composite)
	if err != nil {
		return nil, err
	}
	meanCarbon := meanNDVI * p.factor
	area := p.source.Region().AreaHectares()
	return &Statistics{
		MeanCarbon:   meanCarbon,
		TotalCarbon:  meanCarbon * area,
		MeanNDVI:     meanNDVI,
		AreaHectares: area,
		ValidPixels:  valid,
		Scenes:       len(a.Rows),
	}, nil
}

// AreaStatistics returns the mean and total carbon storage of the range.
func (p *Processor) AreaStatistics(ctx context.Context, r DateRange) (*Statistics, error) {
	a, err := p.Analyze(ctx, r, false)
	if err != nil {
		return nil, err
	}
	return p.Statistics(a)
}

func (p *Processor) TimeSeriesData(ctx context.Context, r DateRange) ([]dataset.Row, error) {
	a, err := p.Analyze(ctx, r, false)
	if err != nil {
		return nil, err
	}
	return a.Rows, nil
}

// CarbonMap returns the carbon storage of the mean NDVI composite.
func (p *Processor) CarbonMap(ctx context.Context, r DateRange) (*carbon.Grid, error) {
	a, err := p.Analyze(ctx, r, false)
	if err != nil {
		return nil, err
	}
	return p.EstimateCarbonStorage(a.Composite), nil
}
