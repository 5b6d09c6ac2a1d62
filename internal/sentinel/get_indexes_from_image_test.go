package sentinel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/airbusgeo/godal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sceneTransform = [6]float64{-73.5, 0.25, 0, 42.5, 0, -0.25}

func TestMain(m *testing.M) {
	godal.RegisterAll()
	os.Exit(m.Run())
}

// writeScene creates a float32 GeoTIFF with one 2x2 band per slice.
func writeScene(t *testing.T, bands ...[]float32) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scene.tif")
	ds, err := godal.Create(godal.GTiff, path, len(bands), godal.Float32, 2, 2)
	require.NoError(t, err)
	require.NoError(t, ds.SetGeoTransform(sceneTransform))
	for i, data := range bands {
		require.NoError(t, ds.Bands()[i].Write(0, 0, data, 2, 2))
	}
	require.NoError(t, ds.Close())
	return path
}

func TestReadBands(t *testing.T) {
	red := []float32{0.1, 0.2, 0.3, 0.4}
	nir := []float32{0.5, 0.6, 0.7, 0.8}
	mask := []float32{1, 1, 0, 1}
	scl := []float32{4, 8, 4, 4}
	path := writeScene(t, red, nir, mask, scl)

	bands, err := ReadBands(path, Collection{ID: "sentinel-2-l2a", SCL: true})
	require.NoError(t, err)
	assert.Equal(t, 2, bands.Width)
	assert.Equal(t, 2, bands.Height)
	assert.Equal(t, sceneTransform, bands.GeoTransform)
	assert.InDeltaSlice(t, []float64{0.1, 0.2, 0.3, 0.4}, bands.Red, 1e-6)
	assert.InDeltaSlice(t, []float64{0.5, 0.6, 0.7, 0.8}, bands.NIR, 1e-6)
	assert.Equal(t, []float64{1, 1, 0, 1}, bands.Mask)
	assert.Equal(t, []float64{4, 8, 4, 4}, bands.SCL)

	// Collections without a classification layer ignore the fourth band.
	bands, err = ReadBands(path, Collection{ID: "landsat-ot-l2"})
	require.NoError(t, err)
	assert.Nil(t, bands.SCL)
}

func TestReadBands_TooFewBands(t *testing.T) {
	path := writeScene(t, []float32{0, 0, 0, 0}, []float32{0, 0, 0, 0})

	_, err := ReadBands(path, Collection{ID: "landsat-ot-l2"})
	assert.ErrorContains(t, err, "expected at least 3")
}

func TestReadBands_NotARaster(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.tif")
	require.NoError(t, os.WriteFile(path, []byte(`{"error":"quota"}`), 0o644))

	_, err := ReadBands(path, Collection{ID: "landsat-ot-l2"})
	assert.Error(t, err)
}
