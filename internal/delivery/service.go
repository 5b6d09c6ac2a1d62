package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xunia-labs/carbon-dashboard/internal/carbon"
	"github.com/xunia-labs/carbon-dashboard/internal/dataset"
	"github.com/xunia-labs/carbon-dashboard/internal/sentinel"
	"github.com/xunia-labs/carbon-dashboard/internal/weather"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	PanelStatistics = "statistics"
	PanelTimeSeries = "timeseries"
	PanelMap        = "map"
	PanelClimate    = "climate"
)

// Panels lists every report panel in display order.
var Panels = []string{PanelStatistics, PanelTimeSeries, PanelMap, PanelClimate}

type ClimateSource interface {
	Climate(ctx context.Context, latitude, longitude float64, startDate, endDate time.Time) (*weather.Summary, error)
}

// Notifier is satisfied by *notification.Notifier.
type Notifier interface {
	Error(ctx context.Context, message string) error
	Warn(ctx context.Context, message string) error
}

type Request struct {
	Range  DateRange
	Frames bool
}

// Report holds every dashboard panel for one date range. A failed panel
// leaves its field empty and its message in Errors.
type Report struct {
	Range       DateRange         `json:"-"`
	Start       string            `json:"start"`
	End         string            `json:"end"`
	Region      string            `json:"region"`
	Statistics  *Statistics       `json:"statistics,omitempty"`
	Series      []dataset.Row     `json:"series"`
	Carbon      *carbon.Grid      `json:"-"`
	Frames      []Frame           `json:"-"`
	Climate     *weather.Summary  `json:"climate,omitempty"`
	Errors      map[string]string `json:"errors,omitempty"`
	GeneratedAt time.Time         `json:"generated_at"`
	panelErrors map[string]error
}

// Err returns the error of a panel, if it failed.
func (r *Report) Err(panel string) error {
	return r.panelErrors[panel]
}

// Settled reports whether the report is worth keeping: every failed panel
// failed for lack of imagery, which will not change on a retry.
func (r *Report) Settled() bool {
	for _, err := range r.panelErrors {
		if !errors.Is(err, sentinel.ErrNoScenes) && !errors.Is(err, carbon.ErrNoValidPixels) {
			return false
		}
	}
	return true
}

func (r *Report) fail(panel string, err error) {
	if r.panelErrors == nil {
		r.panelErrors = map[string]error{}
		r.Errors = map[string]string{}
	}
	r.panelErrors[panel] = err
	r.Errors[panel] = err.Error()
}

type Service struct {
	processor *Processor
	climate   ClimateSource
	notifier  Notifier
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(processor *Processor, climate ClimateSource, notifier Notifier, logger *zap.Logger) *Service {
	return &Service{
		processor: processor,
		climate:   climate,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *Service) Processor() *Processor {
	return s.processor
}

// Build computes the report of a range. Only an invalid range or a
// cancelled context fail the whole report.
func (s *Service) Build(ctx context.Context, req Request) (*Report, error) {
	if err := req.Range.Validate(s.now()); err != nil {
		return nil, err
	}

	region := s.processor.Region()
	report := &Report{
		Range:  req.Range,
		Start:  req.Range.Start.Format(dataset.DateLayout),
		End:    req.Range.End.Format(dataset.DateLayout),
		Region: region.Name,
	}

	var (
		analysis    *Analysis
		analysisErr error
		climate     *weather.Summary
		climateErr  error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		analysis, analysisErr = s.processor.Analyze(gctx, req.Range, req.Frames)
		return nil
	})
	if s.climate != nil {
		g.Go(func() error {
			lat, lon, err := region.Centroid()
			if err != nil {
				climateErr = err
				return nil
			}
			climate, climateErr = s.climate.Climate(gctx, lat, lon, req.Range.Start, req.Range.End)
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if analysisErr != nil {
		for _, panel := range []string{PanelStatistics, PanelTimeSeries, PanelMap} {
			report.fail(panel, analysisErr)
		}
	} else {
		report.Series = analysis.Rows
		report.Frames = analysis.Frames
		report.Carbon = s.processor.EstimateCarbonStorage(analysis.Composite)
		if stats, err := s.processor.Statistics(analysis); err != nil {
			report.fail(PanelStatistics, err)
		} else {
			report.Statistics = stats
		}
	}

	if climateErr != nil {
		report.fail(PanelClimate, climateErr)
	} else {
		report.Climate = climate
	}

	report.GeneratedAt = s.now()
	s.notifyFailures(ctx, report)
	return report, nil
}

// notifyFailures reports each distinct panel error once. Missing imagery is
// a warning, anything else an error.
func (s *Service) notifyFailures(ctx context.Context, report *Report) {
	seen := map[string]bool{}
	for _, panel := range Panels {
		err := report.Err(panel)
		if err == nil || seen[err.Error()] {
			continue
		}
		seen[err.Error()] = true

		msg := fmt.Sprintf("%s panel failed for %s (%s to %s): %v", panel, report.Region, report.Start, report.End, err)
		s.logger.Warn("Dashboard panel failed", zap.String("panel", panel), zap.Error(err))
		if s.notifier == nil {
			continue
		}
		var notifyErr error
		if errors.Is(err, sentinel.ErrNoScenes) || errors.Is(err, carbon.ErrNoValidPixels) {
			notifyErr = s.notifier.Warn(ctx, msg)
		} else {
			notifyErr = s.notifier.Error(ctx, msg)
		}
		if notifyErr != nil {
			s.logger.Error("Failed to send notification", zap.Error(notifyErr))
		}
	}
}
