package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"math"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xunia-labs/carbon-dashboard/internal/carbon"
	"github.com/xunia-labs/carbon-dashboard/internal/dataset"
	"github.com/xunia-labs/carbon-dashboard/internal/delivery"
	"github.com/xunia-labs/carbon-dashboard/internal/sentinel"
	"github.com/xunia-labs/carbon-dashboard/output"
	"go.uber.org/zap"
)

var templateFuncs = template.FuncMap{
	"number": formatNumber,
	"json": func(v any) (template.JS, error) {
		b, err := json.Marshal(v)
		return template.JS(b), err
	},
}

// formatNumber renders v with thousands separators.
func formatNumber(v float64, decimals int) string {
	s := strconv.FormatFloat(math.Abs(v), 'f', decimals, 64)
	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	if v < 0 {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, delivery.ErrInvalidRange):
		return http.StatusBadRequest
	case errors.Is(err, sentinel.ErrNoScenes), errors.Is(err, carbon.ErrNoValidPixels), errors.Is(err, output.ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, carbon.ErrTooManyPixels):
		return http.StatusUnprocessableEntity
	case errors.Is(err, sentinel.ErrUnauthorized):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusFor(err), gin.H{"error": err.Error()})
}

type pageData struct {
	Title     string
	Region    string
	Start     string
	End       string
	Today     string
	Query     template.URL
	Error     string
	Report    *delivery.Report
	Center    [2]float64
	Zoom      int
	BBox      [4]float64
	Overlay   *[4]float64
	Source    string
	HasSeries bool
	HasCarbon bool
}

func (s *Server) index(c *gin.Context) {
	data := pageData{
		Title:  "Carbon Sequestration Dashboard",
		Region: s.region.Name,
		Today:  s.now().UTC().Format(dataset.DateLayout),
		Center: s.cfg.Center,
		Zoom:   s.cfg.Zoom,
		BBox:   s.region.BBox(),
		Source: s.cfg.Source,
	}

	rep, err := s.report(c, false)
	if err != nil {
		data.Error = err.Error()
		data.Start, data.End = c.Query("start"), c.Query("end")
		c.HTML(statusFor(err), "index.html", data)
		return
	}

	data.Report = rep
	data.Start, data.End = rep.Start, rep.End
	data.Query = template.URL(url.Values{"start": {rep.Start}, "end": {rep.End}}.Encode())
	data.HasSeries = len(rep.Series) > 0
	if rep.Carbon != nil {
		b := rep.Carbon.Bounds()
		data.Overlay = &b
		data.HasCarbon = true
	}
	c.HTML(http.StatusOK, "index.html", data)
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) statistics(c *gin.Context) {
	rep, err := s.report(c, false)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if err := rep.Err(delivery.PanelStatistics); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"start":      rep.Start,
		"end":        rep.End,
		"region":     rep.Region,
		"statistics": rep.Statistics,
		"climate":    rep.Climate,
		"errors":     rep.Errors,
	})
}

func (s *Server) timeSeries(c *gin.Context) {
	rep, err := s.report(c, false)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if err := rep.Err(delivery.PanelTimeSeries); err != nil {
		abortWithError(c, err)
		return
	}
	rows := rep.Series
	if rows == nil {
		rows = []dataset.Row{}
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) timeSeriesCSV(c *gin.Context) {
	rep, err := s.report(c, false)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if err := rep.Err(delivery.PanelTimeSeries); err != nil {
		abortWithError(c, err)
		return
	}
	var buf bytes.Buffer
	if err := dataset.WriteCSV(&buf, rep.Series); err != nil {
		abortWithError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="carbon_timeseries_%s.csv"`, rep.Range))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (s *Server) regionGeoJSON(c *gin.Context) {
	data, err := json.Marshal(s.region.FeatureCollection())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/geo+json", data)
}

func (s *Server) mapOptions(c *gin.Context) output.MapOptions {
	opts := output.MapOptions{Min: s.cfg.MapMin, Max: s.cfg.MapMax}
	if scale, err := strconv.Atoi(c.Query("scale")); err == nil && scale > 0 && scale <= 8 {
		opts.Scale = scale
	}
	if c.Query("outline") == "1" {
		opts.Outline = s.region.Geometry
	}
	return opts
}

func (s *Server) mapPNG(c *gin.Context) {
	rep, err := s.report(c, false)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if err := rep.Err(delivery.PanelMap); err != nil {
		abortWithError(c, err)
		return
	}
	var buf bytes.Buffer
	if err := output.EncodePNG(&buf, output.RenderCarbonMap(rep.Carbon, s.mapOptions(c))); err != nil {
		abortWithError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (s *Server) chartPNG(c *gin.Context) {
	rep, err := s.report(c, false)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if err := rep.Err(delivery.PanelTimeSeries); err != nil {
		abortWithError(c, err)
		return
	}
	img, err := output.RenderTimeSeriesChart(rep.Series, output.ChartOptions{})
	if err != nil {
		abortWithError(c, err)
		return
	}
	var buf bytes.Buffer
	if err := output.EncodePNG(&buf, img); err != nil {
		abortWithError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

// scratchDir holds files that are only written to be streamed back once.
func (s *Server) scratchDir() (string, error) {
	base := s.cfg.ResultDir
	if base == "" {
		base = os.TempDir()
	}
	if err := os.MkdirAll(base, os.ModePerm); err != nil {
		return "", err
	}
	return os.MkdirTemp(base, "dashboard-")
}

func (s *Server) carbonTIFF(c *gin.Context) {
	rep, err := s.report(c, false)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if err := rep.Err(delivery.PanelMap); err != nil {
		abortWithError(c, err)
		return
	}
	dir, err := s.scratchDir()
	if err != nil {
		abortWithError(c, err)
		return
	}
	defer s.removeScratch(dir)

	path := filepath.Join(dir, "carbon.tif")
	if err := output.WriteCarbonGeoTIFF(path, rep.Carbon); err != nil {
		abortWithError(c, err)
		return
	}
	c.FileAttachment(path, fmt.Sprintf("carbon_%s.tif", rep.Range))
}

func (s *Server) timelapse(c *gin.Context) {
	rep, err := s.report(c, true)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if err := rep.Err(delivery.PanelMap); err != nil {
		abortWithError(c, err)
		return
	}
	dir, err := s.scratchDir()
	if err != nil {
		abortWithError(c, err)
		return
	}
	defer s.removeScratch(dir)

	path, err := output.CreateTimelapse(rep.Frames, s.mapOptions(c), filepath.Join(dir, "timelapse.avi"), 2)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.FileAttachment(path, fmt.Sprintf("carbon_timelapse_%s.avi", rep.Range))
}

func (s *Server) removeScratch(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		s.logger.Warn("Failed to remove scratch directory", zap.String("dir", dir), zap.Error(err))
	}
}
