package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/xunia-labs/carbon-dashboard/internal/delivery"
	"github.com/xunia-labs/carbon-dashboard/internal/sentinel"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

//go:embed templates/*.html
var templatesFS embed.FS

type ReportBuilder interface {
	Build(ctx context.Context, req delivery.Request) (*delivery.Report, error)
}

type Config struct {
	Addr        string
	DefaultDays int
	CacheTTL    time.Duration
	MapMin      float64
	MapMax      float64
	Center      [2]float64
	Zoom        int
	Source      string
	ResultDir   string
	// MaxReports bounds the number of cached reports.
	MaxReports int
}

const defaultMaxReports = 32

type cachedReport struct {
	report  *delivery.Report
	expires time.Time
}

// Server is the dashboard HTTP front end. Reports are memoised per date
// range, least recently used first out, and concurrent requests for the
// same range share one build. Reports with a failed panel that may recover
// are not kept, nor are the per-scene frames of a timelapse.
type Server struct {
	builder ReportBuilder
	region  *sentinel.Region
	cfg     Config
	tmpl    *template.Template
	engine  *gin.Engine
	logger  *zap.Logger
	now     func() time.Time

	group   singleflight.Group
	reports *lru.Cache[string, cachedReport]
}

func NewServer(builder ReportBuilder, region *sentinel.Region, cfg Config, logger *zap.Logger) (*Server, error) {
	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	if cfg.DefaultDays <= 0 {
		cfg.DefaultDays = 365
	}
	if cfg.MaxReports <= 0 {
		cfg.MaxReports = defaultMaxReports
	}
	reports, err := lru.New[string, cachedReport](cfg.MaxReports)
	if err != nil {
		return nil, err
	}
	if cfg.Source == "" {
		cfg.Source = "Landsat 8 via Copernicus Data Space"
	}

	s := &Server{
		builder: builder,
		region:  region,
		cfg:     cfg,
		tmpl:    tmpl,
		logger:  logger,
		now:     time.Now,
		reports: reports,
	}
	s.engine = s.routes()
	return s, nil
}

// GinMode is the gin mode for a log level: debug routing output only at the
// debug level.
func GinMode(logLevel string) string {
	if logLevel == "debug" {
		return gin.DebugMode
	}
	return gin.ReleaseMode
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger))
	r.SetHTMLTemplate(s.tmpl)

	r.GET("/", s.index)
	r.GET("/healthz", s.healthz)
	r.GET("/map.png", s.mapPNG)
	r.GET("/chart.png", s.chartPNG)
	r.GET("/carbon.tif", s.carbonTIFF)
	r.GET("/timelapse.avi", s.timelapse)

	api := r.Group("/api")
	api.GET("/statistics", s.statistics)
	api.GET("/timeseries", s.timeSeries)
	api.GET("/timeseries.csv", s.timeSeriesCSV)
	api.GET("/region.geojson", s.regionGeoJSON)
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Dashboard listening", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down dashboard: %w", err)
	}
	return nil
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("query", c.Request.URL.RawQuery),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)))
	}
}

func (s *Server) dateRange(c *gin.Context) (delivery.DateRange, error) {
	return delivery.ParseRange(c.Query("start"), c.Query("end"), s.now(), s.cfg.DefaultDays)
}

// report returns the report of the requested range, building it at most once
// per TTL. The build is detached from the request so that a disconnecting
// client does not cancel it for the others waiting on it.
func (s *Server) report(c *gin.Context, frames bool) (*delivery.Report, error) {
	r, err := s.dateRange(c)
	if err != nil {
		return nil, err
	}
	key := r.String()
	if frames {
		key += "+frames"
	}

	if rep, ok := s.cached(key); ok {
		return rep, nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		if rep, ok := s.cached(key); ok {
			return rep, nil
		}
		rep, err := s.builder.Build(context.WithoutCancel(c.Request.Context()), delivery.Request{Range: r, Frames: frames})
		if err != nil {
			return nil, err
		}
		if !frames && rep.Settled() {
			s.store(key, rep)
		}
		return rep, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*delivery.Report), nil
}

func (s *Server) expired(entry cachedReport) bool {
	return s.cfg.CacheTTL > 0 && s.now().After(entry.expires)
}

func (s *Server) cached(key string) (*delivery.Report, bool) {
	entry, ok := s.reports.Get(key)
	if !ok {
		return nil, false
	}
	if s.expired(entry) {
		s.reports.Remove(key)
		return nil, false
	}
	return entry.report, true
}

// store adds a report after dropping every expired one.
func (s *Server) store(key string, rep *delivery.Report) {
	for _, k := range s.reports.Keys() {
		if entry, ok := s.reports.Peek(k); ok && s.expired(entry) {
			s.reports.Remove(k)
		}
	}
	s.reports.Add(key, cachedReport{report: rep, expires: s.now().Add(s.cfg.CacheTTL)})
}
