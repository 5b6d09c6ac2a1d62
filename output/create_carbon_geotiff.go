package output

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/airbusgeo/godal"
	"github.com/xunia-labs/carbon-dashboard/internal/carbon"
	"github.com/xunia-labs/carbon-dashboard/internal/utils"
)

// WriteCarbonGeoTIFF stores the grid as a single float32 band in EPSG:4326
// with NaN as nodata.
func WriteCarbonGeoTIFF(path string, grid *carbon.Grid) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create result folder: %w", err)
	}
	var err error
	utils.ExecuteWithMutex(func() {
		err = writeGeoTIFF(path, grid)
	})
	return err
}

func writeGeoTIFF(path string, grid *carbon.Grid) error {
	ds, err := godal.Create(godal.GTiff, path, 1, godal.Float32, grid.Width, grid.Height,
		godal.CreationOption("COMPRESS=DEFLATE"))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := fillGeoTIFF(ds, grid); err != nil {
		ds.Close()
		os.Remove(path)
		return err
	}
	return ds.Close()
}

func fillGeoTIFF(ds *godal.Dataset, grid *carbon.Grid) error {
	if err := ds.SetGeoTransform(grid.GeoTransform); err != nil {
		return fmt.Errorf("failed to set geotransform: %w", err)
	}

	sr, err := godal.NewSpatialRefFromEPSG(4326)
	if err != nil {
		return err
	}
	defer sr.Close()
	if err := ds.SetSpatialRef(sr); err != nil {
		return fmt.Errorf("failed to set spatial reference: %w", err)
	}

	band := ds.Bands()[0]
	if err := band.SetNoData(math.NaN()); err != nil {
		return fmt.Errorf("failed to set nodata: %w", err)
	}

	data := make([]float32, len(grid.Data))
	for i, v := range grid.Data {
		data[i] = float32(v)
	}
	if err := band.Write(0, 0, data, grid.Width, grid.Height); err != nil {
		return fmt.Errorf("failed to write raster data: %w", err)
	}
	return nil
}
