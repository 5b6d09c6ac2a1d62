package carbon

import (
	"fmt"
	"math"
	"slices"
)

// Scene classification values that are never vegetation: cloud shadow,
// medium and high probability cloud, thin cirrus.
var invalidSCL = []float64{3, 8, 9, 10}

// Bands holds the reflectance bands of one acquisition. Mask is the service
// dataMask (0 outside the footprint). SCL is empty for collections without a
// scene classification layer.
type Bands struct {
	Width        int
	Height       int
	GeoTransform [6]float64
	Red          []float64
	NIR          []float64
	Mask         []float64
	SCL          []float64
}

func (b *Bands) validate() error {
	n := b.Width * b.Height
	if len(b.Red) != n || len(b.NIR) != n {
		return fmt.Errorf("%w: red=%d nir=%d want %d", ErrGridMismatch, len(b.Red), len(b.NIR), n)
	}
	if b.Mask != nil && len(b.Mask) != n {
		return fmt.Errorf("%w: mask=%d want %d", ErrGridMismatch, len(b.Mask), n)
	}
	if b.SCL != nil && len(b.SCL) != n {
		return fmt.Errorf("%w: scl=%d want %d", ErrGridMismatch, len(b.SCL), n)
	}
	return nil
}

// NormalizedDifference is (a-b)/(a+b), or 0 when a+b is 0.
func NormalizedDifference(a, b float64) float64 {
	denominator := a + b
	if denominator == 0 {
		return 0
	}
	return (a - b) / denominator
}

func (b *Bands) pixelValid(i int) bool {
	red, nir := b.Red[i], b.NIR[i]
	if math.IsNaN(red) || math.IsNaN(nir) || math.IsInf(red, 0) || math.IsInf(nir, 0) {
		return false
	}
	if red == 0 && nir == 0 {
		return false
	}
	if b.Mask != nil && b.Mask[i] == 0 {
		return false
	}
	if b.SCL != nil && slices.Contains(invalidSCL, b.SCL[i]) {
		return false
	}
	return true
}

// NDVI computes (NIR-Red)/(NIR+Red) per pixel. Masked pixels are NaN.
func NDVI(b *Bands) (*Grid, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	grid := NewGrid(b.Width, b.Height, b.GeoTransform)
	for i := range grid.Data {
		if !b.pixelValid(i) {
			grid.Data[i] = math.NaN()
			continue
		}
		grid.Data[i] = NormalizedDifference(b.NIR[i], b.Red[i])
	}
	return grid, nil
}

// ValidPixels counts the finite pixels of a grid.
func ValidPixels(g *Grid) int {
	count := 0
	for _, v := range g.Data {
		if !math.IsNaN(v) {
			count++
		}
	}
	return count
}
