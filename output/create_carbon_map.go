package output

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/fogleman/gg"
	"github.com/paulmach/orb"
	"github.com/xunia-labs/carbon-dashboard/internal/carbon"
	"github.com/xunia-labs/carbon-dashboard/internal/properties"
)

type MapOptions struct {
	Min float64
	Max float64
	// Scale is the number of image pixels per grid cell.
	Scale int
	// Outline is drawn on top of the raster in lon/lat.
	Outline orb.Geometry
	Label   string
}

func normalize(value, min, max float64) float64 {
	if max == min {
		return 0
	}
	norm := (value - min) / (max - min)
	if norm < 0 {
		return 0
	}
	if norm > 1 {
		return 1
	}
	return norm
}

// valueToColor interpolates the carbon palette, red for no storage through
// yellow to green for full storage.
func valueToColor(norm float64) color.RGBA {
	p := properties.CarbonPalette
	pos := norm * float64(len(p)-1)
	i := int(math.Floor(pos))
	if i >= len(p)-1 {
		i = len(p) - 2
	}
	ratio := pos - float64(i)
	from, to := p[i], p[i+1]
	lerp := func(a, b uint8) uint8 {
		return uint8(math.Round(float64(a) + (float64(b)-float64(a))*ratio))
	}
	return color.RGBA{R: lerp(from.R, to.R), G: lerp(from.G, to.G), B: lerp(from.B, to.B), A: 255}
}

// RenderCarbonMap colors every valid cell of the grid. NaN cells stay
// transparent.
func RenderCarbonMap(grid *carbon.Grid, opts MapOptions) image.Image {
	scale := max(opts.Scale, 1)
	img := image.NewRGBA(image.Rect(0, 0, grid.Width*scale, grid.Height*scale))

	for y := 0; y < grid.Height; y++ {
		for x := 0; x < grid.Width; x++ {
			v := grid.At(x, y)
			if math.IsNaN(v) {
				continue
			}
			clr := valueToColor(normalize(v, opts.Min, opts.Max))
			for dy := 0; dy < scale; dy++ {
				for dx := 0; dx < scale; dx++ {
					img.SetRGBA(x*scale+dx, y*scale+dy, clr)
				}
			}
		}
	}

	if opts.Outline == nil && opts.Label == "" {
		return img
	}

	dc := gg.NewContextForRGBA(img)
	gt := grid.GeoTransform
	if opts.Outline != nil && gt[1] != 0 && gt[5] != 0 {
		dc.SetRGB255(int(properties.OutlineColor.R), int(properties.OutlineColor.G), int(properties.OutlineColor.B))
		dc.SetLineWidth(2)
		for _, ring := range outlineRings(opts.Outline) {
			for i, pt := range ring {
				px := (pt.Lon() - gt[0]) / gt[1] * float64(scale)
				py := (pt.Lat() - gt[3]) / gt[5] * float64(scale)
				if i == 0 {
					dc.MoveTo(px, py)
				} else {
					dc.LineTo(px, py)
				}
			}
			dc.ClosePath()
			dc.Stroke()
		}
	}

	if opts.Label != "" {
		w, h := dc.MeasureString(opts.Label)
		dc.SetRGBA(1, 1, 1, 0.8)
		dc.DrawRectangle(4, 4, w+8, h+8)
		dc.Fill()
		dc.SetRGB(0, 0, 0)
		dc.DrawStringAnchored(opts.Label, 8, 8+h/2, 0, 0.5)
	}
	return dc.Image()
}

func outlineRings(g orb.Geometry) []orb.Ring {
	switch g := g.(type) {
	case orb.Bound:
		return []orb.Ring{g.ToRing()}
	case orb.Ring:
		return []orb.Ring{g}
	case orb.Polygon:
		if len(g) > 0 {
			return []orb.Ring{g[0]}
		}
	case orb.MultiPolygon:
		var rings []orb.Ring
		for _, p := range g {
			if len(p) > 0 {
				rings = append(rings, p[0])
			}
		}
		return rings
	}
	return nil
}

func EncodePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("failed to encode PNG: %w", err)
	}
	return nil
}

func SavePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create result folder: %w", err)
	}
	if err := gg.SavePNG(path, img); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}
