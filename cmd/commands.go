package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xunia-labs/carbon-dashboard/internal/dataset"
	"github.com/xunia-labs/carbon-dashboard/internal/delivery"
	"github.com/xunia-labs/carbon-dashboard/internal/ui"
	"github.com/xunia-labs/carbon-dashboard/internal/web"
	"github.com/xunia-labs/carbon-dashboard/output"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	csvPath       string
	chartPath     string
	pngPath       string
	tifPath       string
	timelapsePath string
	geojsonPath   string
	mapScale      int
	timelapseFPS  int32
	geojsonStep   int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the web dashboard and the gRPC health service",
	RunE:  runServe,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print average and total carbon storage for a date range",
	RunE:  runStats,
}

var timeSeriesCmd = &cobra.Command{
	Use:   "timeseries",
	Short: "Print the per-scene carbon time series",
	RunE:  runTimeSeries,
}

var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "Render the carbon storage map",
	Long: `Render the carbon storage map of the composite NDVI.

Without any output flag a PNG is written to the result directory.`,
	RunE: runMap,
}

func init() {
	timeSeriesCmd.Flags().StringVar(&csvPath, "csv", "", "write the series as CSV to this path")
	timeSeriesCmd.Flags().StringVar(&chartPath, "chart", "", "write a PNG chart of the series to this path")

	mapCmd.Flags().StringVar(&pngPath, "png", "", "write the colored map as PNG")
	mapCmd.Flags().StringVar(&tifPath, "tif", "", "write carbon values as a GeoTIFF")
	mapCmd.Flags().StringVar(&timelapsePath, "timelapse", "", "write a per-scene MJPEG timelapse")
	mapCmd.Flags().StringVar(&geojsonPath, "geojson", "", "write sampled carbon points as GeoJSON")
	mapCmd.Flags().IntVar(&mapScale, "scale", 4, "PNG pixels per raster cell")
	mapCmd.Flags().Int32Var(&timelapseFPS, "fps", 2, "timelapse frames per second")
	mapCmd.Flags().IntVar(&geojsonStep, "step", 10, "GeoJSON sampling step in pixels")

	rootCmd.AddCommand(serveCmd, statsCmd, timeSeriesCmd, mapCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	gin.SetMode(web.GinMode(cfg.LogLevel))

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}

	srv, err := web.NewServer(a.service(nil), a.region, web.Config{
		Addr:        cfg.Dashboard.Addr,
		DefaultDays: cfg.Dashboard.DefaultDays,
		CacheTTL:    cfg.Dashboard.CacheTTL,
		MaxReports:  cfg.Dashboard.MaxReports,
		MapMin:      cfg.Carbon.MapMin,
		MapMax:      cfg.Carbon.MapMax,
		Center:      cfg.Region.Center,
		Zoom:        cfg.Region.Zoom,
		Source:      sourceLabel(a.collection),
		ResultDir:   cfg.ResultDir(),
	}, logger)
	if err != nil {
		return err
	}

	lis, err := web.ListenHealth(cfg.Dashboard.GrpcPort)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	ui.PrintSuccess(fmt.Sprintf("Dashboard for %s at http://localhost%s", a.region.Name, cfg.Dashboard.Addr))
	if err := a.notifier.Success(ctx, fmt.Sprintf("Carbon dashboard started on %s", cfg.Dashboard.Addr)); err != nil {
		logger.Warn("Failed to send notification", zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return web.ServeHealth(gctx, lis, logger) })
	return g.Wait()
}

// buildReport runs one report with a progress bar on the scene downloads.
func buildReport(ctx context.Context, frames bool) (*app, *delivery.Report, error) {
	r, err := dateRange()
	if err != nil {
		return nil, nil, err
	}
	a, err := newApp(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	ui.PrintInfo(fmt.Sprintf("%s, %s to %s", a.region.Name, r.Start.Format(dataset.DateLayout), r.End.Format(dataset.DateLayout)))
	bar := ui.NewProgressBar("Downloading scenes")
	report, err := a.service(bar).Build(ctx, delivery.Request{Range: r, Frames: frames})
	if err != nil {
		return nil, nil, err
	}
	ui.PrintPanelErrors(report)
	return a, report, nil
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	_, report, err := buildReport(ctx, false)
	if err != nil {
		return err
	}
	if report.Climate != nil {
		ui.PrintClimate(report.Climate)
	}
	if err := report.Err(delivery.PanelStatistics); err != nil {
		return err
	}
	ui.PrintStatistics(report.Statistics)
	return nil
}

func runTimeSeries(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	_, report, err := buildReport(ctx, false)
	if err != nil {
		return err
	}
	if err := report.Err(delivery.PanelTimeSeries); err != nil {
		return err
	}
	ui.PrintTimeSeries(report.Series)

	if csvPath != "" {
		if err := dataset.SaveCSV(csvPath, report.Series); err != nil {
			return err
		}
		ui.PrintSuccess(fmt.Sprintf("Time series saved to %s", csvPath))
	}
	if chartPath != "" {
		img, err := output.RenderTimeSeriesChart(report.Series, output.ChartOptions{})
		if err != nil {
			return err
		}
		if err := output.SavePNG(chartPath, img); err != nil {
			return err
		}
		ui.PrintSuccess(fmt.Sprintf("Chart saved to %s", chartPath))
	}
	return nil
}

func runMap(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, report, err := buildReport(ctx, timelapsePath != "")
	if err != nil {
		return err
	}
	if err := report.Err(delivery.PanelMap); err != nil {
		return err
	}

	if pngPath == "" && tifPath == "" && timelapsePath == "" && geojsonPath == "" {
		pngPath = filepath.Join(cfg.ResultDir(), fmt.Sprintf("carbon_map_%s.png", report.Range))
	}

	opts := output.MapOptions{
		Min:     cfg.Carbon.MapMin,
		Max:     cfg.Carbon.MapMax,
		Scale:   mapScale,
		Outline: a.region.Geometry,
	}

	if pngPath != "" {
		opts.Label = fmt.Sprintf("%s to %s", report.Start, report.End)
		if err := output.SavePNG(pngPath, output.RenderCarbonMap(report.Carbon, opts)); err != nil {
			return err
		}
		ui.PrintSuccess(fmt.Sprintf("Map saved to %s", pngPath))
	}
	if tifPath != "" {
		if err := output.WriteCarbonGeoTIFF(tifPath, report.Carbon); err != nil {
			return err
		}
		ui.PrintSuccess(fmt.Sprintf("GeoTIFF saved to %s", tifPath))
	}
	if geojsonPath != "" {
		if err := output.SaveGeoJSON(geojsonPath, output.CarbonGeoJSON(report.Carbon, a.region, geojsonStep)); err != nil {
			return err
		}
		ui.PrintSuccess(fmt.Sprintf("GeoJSON saved to %s", geojsonPath))
	}
	if timelapsePath != "" {
		opts.Label = ""
		path, err := output.CreateTimelapse(report.Frames, opts, timelapsePath, timelapseFPS)
		if err != nil {
			return err
		}
		ui.PrintSuccess(fmt.Sprintf("Timelapse saved to %s", path))
	}
	return nil
}
