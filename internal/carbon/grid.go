package carbon

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrNoValidPixels = errors.New("no valid pixels in region")
	ErrTooManyPixels = errors.New("region exceeds the maximum number of pixels")
	ErrGridMismatch  = errors.New("grids have different dimensions")
)

// Grid is a single-band raster in row-major order. GeoTransform follows the
// GDAL convention: origin x, pixel width, row rotation, origin y, column
// rotation, pixel height (negative for north-up images).
type Grid struct {
	Width        int
	Height       int
	GeoTransform [6]float64
	Data         []float64
}

func NewGrid(width, height int, geoTransform [6]float64) *Grid {
	return &Grid{
		Width:        width,
		Height:       height,
		GeoTransform: geoTransform,
		Data:         make([]float64, width*height),
	}
}

func (g *Grid) At(x, y int) float64 {
	return g.Data[y*g.Width+x]
}

func (g *Grid) sameShape(o *Grid) bool {
	return g.Width == o.Width && g.Height == o.Height
}

// PixelCenter returns the lon/lat of the center of pixel (x, y).
func (g *Grid) PixelCenter(x, y int) (float64, float64) {
	gt := g.GeoTransform
	lon := gt[0] + gt[1]*(float64(x)+0.5) + gt[2]*(float64(y)+0.5)
	lat := gt[3] + gt[4]*(float64(x)+0.5) + gt[5]*(float64(y)+0.5)
	return lon, lat
}

// PixelAt maps lon/lat to the pixel containing it.
func (g *Grid) PixelAt(lon, lat float64) (int, int, error) {
	gt := g.GeoTransform
	if gt[1] == 0 || gt[5] == 0 {
		return 0, 0, errors.New("grid has no geotransform")
	}
	col := int(math.Floor((lon - gt[0]) / gt[1]))
	row := int(math.Floor((lat - gt[3]) / gt[5]))
	if col < 0 || col >= g.Width || row < 0 || row >= g.Height {
		return 0, 0, fmt.Errorf("latitude %f and longitude %f are out of bounds for the grid", lat, lon)
	}
	return col, row, nil
}

// Bounds returns minLon, minLat, maxLon, maxLat of a north-up grid.
func (g *Grid) Bounds() [4]float64 {
	gt := g.GeoTransform
	x0, y0 := gt[0], gt[3]
	x1 := x0 + gt[1]*float64(g.Width)
	y1 := y0 + gt[5]*float64(g.Height)
	return [4]float64{math.Min(x0, x1), math.Min(y0, y1), math.Max(x0, x1), math.Max(y0, y1)}
}

// CheckPixels fails when the grid is larger than maxPixels. Zero disables the
// check.
func CheckPixels(width, height int, maxPixels int64) error {
	if maxPixels > 0 && int64(width)*int64(height) > maxPixels {
		return fmt.Errorf("%w: %dx%d > %d", ErrTooManyPixels, width, height, maxPixels)
	}
	return nil
}
