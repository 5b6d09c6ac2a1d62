package sentinel

import (
	"errors"
	"fmt"
	"math"

	"github.com/airbusgeo/godal"
)

// openDataset opens a raster with GDAL warnings silenced.
func openDataset(path string) (*godal.Dataset, error) {
	ds, err := godal.Open(path, godal.ErrLogger(func(ec godal.ErrorCategory, code int, msg string) error {
		if ec == godal.CE_Warning {
			return nil
		}
		return errors.New(msg)
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return ds, nil
}

// BandStats summarizes one band of a raster, ignoring NaN.
type BandStats struct {
	Min   float64
	Max   float64
	Mean  float64
	Valid int
	Total int
}

func ComputeBandStats(data []float64) BandStats {
	stats := BandStats{Min: math.Inf(1), Max: math.Inf(-1), Total: len(data)}
	var sum float64
	for _, v := range data {
		if math.IsNaN(v) {
			continue
		}
		stats.Valid++
		sum += v
		stats.Min = math.Min(stats.Min, v)
		stats.Max = math.Max(stats.Max, v)
	}
	if stats.Valid == 0 {
		return BandStats{Total: len(data)}
	}
	stats.Mean = sum / float64(stats.Valid)
	return stats
}
