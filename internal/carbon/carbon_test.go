package carbon

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTransform = [6]float64{-73.5, 0.25, 0, 42.5, 0, -0.25}

func TestNormalizedDifference(t *testing.T) {
	assert.InDelta(t, 0.6, NormalizedDifference(0.4, 0.1), 1e-9)
	assert.InDelta(t, -0.6, NormalizedDifference(0.1, 0.4), 1e-9)
	assert.Equal(t, 0.0, NormalizedDifference(0, 0))
	assert.Equal(t, 0.0, NormalizedDifference(0.2, -0.2))
}

func TestNDVI(t *testing.T) {
	bands := &Bands{
		Width:        2,
		Height:       2,
		GeoTransform: testTransform,
		Red:          []float64{0.1, 0.1, 0.1, 0},
		NIR:          []float64{0.4, 0.3, math.NaN(), 0},
		Mask:         []float64{1, 0, 1, 1},
	}

	grid, err := NDVI(bands)
	require.NoError(t, err)

	assert.InDelta(t, 0.6, grid.At(0, 0), 1e-9)
	assert.True(t, math.IsNaN(grid.At(1, 0)), "masked pixel")
	assert.True(t, math.IsNaN(grid.At(0, 1)), "NaN input")
	assert.True(t, math.IsNaN(grid.At(1, 1)), "no reflectance")
	assert.Equal(t, 1, ValidPixels(grid))
}

func TestNDVI_SceneClassification(t *testing.T) {
	bands := &Bands{
		Width:  4,
		Height: 1,
		Red:    []float64{0.1, 0.1, 0.1, 0.1},
		NIR:    []float64{0.3, 0.3, 0.3, 0.3},
		SCL:    []float64{4, 3, 9, 5},
	}

	grid, err := NDVI(bands)
	require.NoError(t, err)
	assert.Equal(t, 2, ValidPixels(grid))
	assert.InDelta(t, 0.5, grid.At(0, 0), 1e-9)
	assert.True(t, math.IsNaN(grid.At(1, 0)))
	assert.True(t, math.IsNaN(grid.At(2, 0)))
}

func TestNDVI_Mismatch(t *testing.T) {
	_, err := NDVI(&Bands{Width: 2, Height: 2, Red: []float64{1}, NIR: []float64{1}})
	assert.ErrorIs(t, err, ErrGridMismatch)
}

func TestEstimateCarbon(t *testing.T) {
	g := &Grid{Width: 3, Height: 1, Data: []float64{0.5, math.NaN(), -0.1}}
	c := EstimateCarbon(g, DefaultFactor)
	assert.InDelta(t, 100, c.Data[0], 1e-9)
	assert.True(t, math.IsNaN(c.Data[1]))
	assert.InDelta(t, -20, c.Data[2], 1e-9)
	assert.Equal(t, 0.5, g.Data[0], "input untouched")
}

func TestMeanComposite(t *testing.T) {
	a := &Grid{Width: 3, Height: 1, Data: []float64{0.2, math.NaN(), math.NaN()}}
	b := &Grid{Width: 3, Height: 1, Data: []float64{0.4, 0.6, math.NaN()}}

	m, err := MeanComposite(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 0.3, m.Data[0], 1e-9)
	assert.InDelta(t, 0.6, m.Data[1], 1e-9)
	assert.True(t, math.IsNaN(m.Data[2]))

	_, err = MeanComposite()
	assert.ErrorIs(t, err, ErrNoValidPixels)

	_, err = MeanComposite(a, &Grid{Width: 1, Height: 1, Data: []float64{1}})
	assert.ErrorIs(t, err, ErrGridMismatch)
}

func TestComposite_Streaming(t *testing.T) {
	var c Composite
	assert.Equal(t, 0, c.Len())
	require.NoError(t, c.Add(&Grid{Width: 2, Height: 1, Data: []float64{0.1, math.NaN()}}))
	require.NoError(t, c.Add(&Grid{Width: 2, Height: 1, Data: []float64{0.3, 0.8}}))
	assert.Equal(t, 2, c.Len())

	m, err := c.Mean()
	require.NoError(t, err)
	assert.InDelta(t, 0.2, m.Data[0], 1e-9)
	assert.InDelta(t, 0.8, m.Data[1], 1e-9)
}

func TestReduceMean(t *testing.T) {
	mean, n, err := ReduceMean(&Grid{Width: 3, Height: 1, Data: []float64{100, math.NaN(), 50}})
	require.NoError(t, err)
	assert.InDelta(t, 75, mean, 1e-9)
	assert.Equal(t, 2, n)

	_, _, err = ReduceMean(&Grid{Width: 1, Height: 1, Data: []float64{math.NaN()}})
	assert.ErrorIs(t, err, ErrNoValidPixels)
}

func TestGridGeoreferencing(t *testing.T) {
	g := NewGrid(2, 2, testTransform)

	lon, lat := g.PixelCenter(0, 0)
	assert.InDelta(t, -73.375, lon, 1e-9)
	assert.InDelta(t, 42.375, lat, 1e-9)

	x, y, err := g.PixelAt(-73.1, 42.1)
	require.NoError(t, err)
	assert.Equal(t, 1, x)
	assert.Equal(t, 1, y)

	_, _, err = g.PixelAt(-72.0, 42.1)
	assert.Error(t, err)

	assert.Equal(t, [4]float64{-73.5, 42.0, -73.0, 42.5}, g.Bounds())
}

func TestCheckPixels(t *testing.T) {
	assert.NoError(t, CheckPixels(100, 100, 0))
	assert.NoError(t, CheckPixels(100, 100, 10_000))
	assert.ErrorIs(t, CheckPixels(101, 100, 10_000), ErrTooManyPixels)
}
