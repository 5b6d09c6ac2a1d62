package carbon

import (
	"fmt"
	"math"
)

// DefaultFactor converts NDVI to carbon storage in tons per hectare.
const DefaultFactor = 200.0

// EstimateCarbon scales an NDVI grid into carbon storage (tons/ha). It is a
// linear proxy, not a validated biomass model.
func EstimateCarbon(ndvi *Grid, factor float64) *Grid {
	out := NewGrid(ndvi.Width, ndvi.Height, ndvi.GeoTransform)
	for i, v := range ndvi.Data {
		out.Data[i] = v * factor
	}
	return out
}

// Composite accumulates grids for a per-pixel mean without keeping them.
type Composite struct {
	first *Grid
	sum   []float64
	count []int
	n     int
}

func (c *Composite) Add(g *Grid) error {
	if c.first == nil {
		c.first = &Grid{Width: g.Width, Height: g.Height, GeoTransform: g.GeoTransform}
		c.sum = make([]float64, len(g.Data))
		c.count = make([]int, len(g.Data))
	}
	if !g.sameShape(c.first) {
		return fmt.Errorf("%w: %dx%d vs %dx%d", ErrGridMismatch, g.Width, g.Height, c.first.Width, c.first.Height)
	}
	for i, v := range g.Data {
		if math.IsNaN(v) {
			continue
		}
		c.sum[i] += v
		c.count[i]++
	}
	c.n++
	return nil
}

// Len is the number of grids added so far.
func (c *Composite) Len() int {
	return c.n
}

// Mean returns the composite. Pixels without any valid observation stay NaN.
func (c *Composite) Mean() (*Grid, error) {
	if c.n == 0 {
		return nil, fmt.Errorf("%w: empty collection", ErrNoValidPixels)
	}
	out := NewGrid(c.first.Width, c.first.Height, c.first.GeoTransform)
	for i := range out.Data {
		if c.count[i] == 0 {
			out.Data[i] = math.NaN()
			continue
		}
		out.Data[i] = c.sum[i] / float64(c.count[i])
	}
	return out, nil
}

// MeanComposite averages grids pixel by pixel, skipping NaN.
func MeanComposite(grids ...*Grid) (*Grid, error) {
	var c Composite
	for _, g := range grids {
		if err := c.Add(g); err != nil {
			return nil, err
		}
	}
	return c.Mean()
}

// ReduceMean returns the mean of the valid pixels and how many there were.
func ReduceMean(g *Grid) (float64, int, error) {
	var sum float64
	count := 0
	for _, v := range g.Data {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		count++
	}
	if count == 0 {
		return 0, 0, ErrNoValidPixels
	}
	return sum / float64(count), count, nil
}
