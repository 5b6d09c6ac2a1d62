package output

import (
	"bytes"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xunia-labs/carbon-dashboard/internal/carbon"
	"github.com/xunia-labs/carbon-dashboard/internal/dataset"
	"github.com/xunia-labs/carbon-dashboard/internal/delivery"
	"github.com/xunia-labs/carbon-dashboard/internal/sentinel"
)

var testTransform = [6]float64{-73.5, 0.25, 0, 42.5, 0, -0.25}

func testGrid() *carbon.Grid {
	return &carbon.Grid{
		Width:        2,
		Height:       2,
		GeoTransform: testTransform,
		Data:         []float64{0, 100, 200, math.NaN()},
	}
}

func TestValueToColor(t *testing.T) {
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, valueToColor(0))
	assert.Equal(t, color.RGBA{255, 255, 0, 255}, valueToColor(0.5))
	assert.Equal(t, color.RGBA{0, 128, 0, 255}, valueToColor(1))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, 0.5, normalize(100, 0, 200))
	assert.Equal(t, 0.0, normalize(-5, 0, 200))
	assert.Equal(t, 1.0, normalize(500, 0, 200))
	assert.Equal(t, 0.0, normalize(3, 1, 1))
}

func TestRenderCarbonMap(t *testing.T) {
	img := RenderCarbonMap(testGrid(), MapOptions{Min: 0, Max: 200, Scale: 3})
	require.Equal(t, 6, img.Bounds().Dx())
	require.Equal(t, 6, img.Bounds().Dy())

	assertRGBA(t, color.RGBA{255, 0, 0, 255}, img.At(1, 1))
	assertRGBA(t, color.RGBA{255, 255, 0, 255}, img.At(4, 1))
	assertRGBA(t, color.RGBA{0, 128, 0, 255}, img.At(1, 4))

	_, _, _, a := img.At(4, 4).RGBA()
	assert.Zero(t, a, "nodata stays transparent")
}

func TestRenderCarbonMap_Outline(t *testing.T) {
	bound := orb.Bound{Min: orb.Point{-73.5, 42.0}, Max: orb.Point{-73.0, 42.5}}
	img := RenderCarbonMap(testGrid(), MapOptions{Min: 0, Max: 200, Scale: 20, Outline: bound})

	// The outline runs along the image border, here over a green cell.
	r, g, b, _ := img.At(0, 30).RGBA()
	assert.Greater(t, b, r)
	assert.Greater(t, b, g)
}

func assertRGBA(t *testing.T, want color.RGBA, got color.Color) {
	t.Helper()
	assert.Equal(t, want, color.RGBAModel.Convert(got))
}

func TestEncodePNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodePNG(&buf, RenderCarbonMap(testGrid(), MapOptions{Max: 200})))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 2, img.Bounds().Dx())
}

func TestRenderTimeSeriesChart(t *testing.T) {
	rows := []dataset.Row{
		{Date: "2024-05-01", CarbonStorage: 90},
		{Date: "2024-06-01", CarbonStorage: 120},
		{Date: "2024-07-01", CarbonStorage: 140},
	}
	img, err := RenderTimeSeriesChart(rows, ChartOptions{Width: 400, Height: 300})
	require.NoError(t, err)
	assert.Equal(t, 400, img.Bounds().Dx())
	assert.Equal(t, 300, img.Bounds().Dy())

	single, err := RenderTimeSeriesChart(rows[:1], ChartOptions{})
	require.NoError(t, err)
	assert.Equal(t, 900, single.Bounds().Dx())

	_, err = RenderTimeSeriesChart(nil, ChartOptions{})
	assert.ErrorIs(t, err, ErrNoData)

	_, err = RenderTimeSeriesChart([]dataset.Row{{Date: "June"}}, ChartOptions{})
	assert.Error(t, err)
}

func TestCreateTimelapse(t *testing.T) {
	frames := []delivery.Frame{
		{Date: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), Carbon: testGrid()},
		{Date: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), Carbon: testGrid()},
	}
	path, err := CreateTimelapse(frames, MapOptions{Max: 200, Scale: 40}, filepath.Join(t.TempDir(), "out", "timelapse"), 2)
	require.NoError(t, err)
	assert.Equal(t, ".avi", filepath.Ext(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(data[:4]))

	_, err = CreateTimelapse(nil, MapOptions{}, path, 2)
	assert.Error(t, err)
}

func TestCarbonGeoJSON(t *testing.T) {
	region, err := sentinel.NewRegionFromBBox("Test", [4]float64{-73.5, 42.0, -73.0, 42.5})
	require.NoError(t, err)

	fc := CarbonGeoJSON(testGrid(), region, 1)
	require.Len(t, fc.Features, 4, "outline plus three valid pixels")
	assert.Equal(t, "Test", fc.Features[0].Properties["name"])
	assert.Equal(t, orb.Point{-73.375, 42.375}, fc.Features[1].Geometry)
	assert.Equal(t, 0.0, fc.Features[1].Properties["carbon"])

	path := filepath.Join(t.TempDir(), "carbon.geojson")
	require.NoError(t, SaveGeoJSON(path, fc))
	_, err = os.Stat(path)
	assert.NoError(t, err)
}
