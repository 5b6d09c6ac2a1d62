package sentinel

import (
	"fmt"

	"github.com/airbusgeo/godal"
	"github.com/xunia-labs/carbon-dashboard/internal/carbon"
	"github.com/xunia-labs/carbon-dashboard/internal/utils"
)

// Band order written by Collection.Evalscript.
const (
	bandRed = iota
	bandNIR
	bandMask
	bandSCL
)

// ReadBands loads the NDVI input bands of a downloaded scene. GDAL calls are
// serialized process wide.
func ReadBands(path string, collection Collection) (*carbon.Bands, error) {
	var bands *carbon.Bands
	var err error
	utils.ExecuteWithMutex(func() {
		bands, err = readBands(path, collection)
	})
	return bands, err
}

func readBands(path string, collection Collection) (*carbon.Bands, error) {
	ds, err := openDataset(path)
	if err != nil {
		return nil, err
	}
	defer ds.Close()

	structure := ds.Structure()
	width, height := structure.SizeX, structure.SizeY
	if structure.NBands < 3 {
		return nil, fmt.Errorf("scene %s has %d bands, expected at least 3", path, structure.NBands)
	}

	geoTransform, err := ds.GeoTransform()
	if err != nil {
		return nil, fmt.Errorf("failed to read geotransform of %s: %w", path, err)
	}

	bandsData := ds.Bands()
	readBand := func(i int) ([]float64, error) {
		data := make([]float64, width*height)
		if err := bandsData[i].Read(0, 0, data, width, height); err != nil {
			return nil, fmt.Errorf("failed to read band %d of %s: %w", i+1, path, err)
		}
		return data, nil
	}

	result := &carbon.Bands{
		Width:        width,
		Height:       height,
		GeoTransform: geoTransform,
	}
	if result.Red, err = readBand(bandRed); err != nil {
		return nil, err
	}
	if result.NIR, err = readBand(bandNIR); err != nil {
		return nil, err
	}
	if result.Mask, err = readBand(bandMask); err != nil {
		return nil, err
	}
	if collection.SCL && structure.NBands > bandSCL {
		if result.SCL, err = readBand(bandSCL); err != nil {
			return nil, err
		}
	}
	return result, nil
}
