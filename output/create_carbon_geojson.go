package output

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/xunia-labs/carbon-dashboard/internal/carbon"
	"github.com/xunia-labs/carbon-dashboard/internal/sentinel"
)

// CarbonGeoJSON returns the region outline followed by one point per step
// pixels carrying its carbon storage.
func CarbonGeoJSON(grid *carbon.Grid, region *sentinel.Region, step int) *geojson.FeatureCollection {
	step = max(step, 1)
	fc := region.FeatureCollection()
	for y := 0; y < grid.Height; y += step {
		for x := 0; x < grid.Width; x += step {
			v := grid.At(x, y)
			if math.IsNaN(v) {
				continue
			}
			lon, lat := grid.PixelCenter(x, y)
			f := geojson.NewFeature(orb.Point{lon, lat})
			f.Properties["carbon"] = v
			fc.Append(f)
		}
	}
	return fc
}

func SaveGeoJSON(path string, fc *geojson.FeatureCollection) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create result folder: %w", err)
	}
	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding GeoJSON: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("error creating GeoJSON file: %w", err)
	}
	return nil
}
