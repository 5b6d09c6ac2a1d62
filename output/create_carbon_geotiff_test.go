package output

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/airbusgeo/godal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	godal.RegisterAll()
	os.Exit(m.Run())
}

func TestWriteCarbonGeoTIFF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "carbon.tif")
	require.NoError(t, WriteCarbonGeoTIFF(path, testGrid()))

	ds, err := godal.Open(path)
	require.NoError(t, err)
	defer ds.Close()

	structure := ds.Structure()
	assert.Equal(t, 2, structure.SizeX)
	assert.Equal(t, 2, structure.SizeY)
	assert.Equal(t, 1, structure.NBands)

	gt, err := ds.GeoTransform()
	require.NoError(t, err)
	assert.Equal(t, testTransform, gt)

	sr := ds.SpatialRef()
	assert.Equal(t, "EPSG", sr.AuthorityName(""))
	assert.Equal(t, "4326", sr.AuthorityCode(""))

	band := ds.Bands()[0]
	assert.Equal(t, godal.Float32, band.Structure().DataType)
	nodata, ok := band.NoData()
	require.True(t, ok)
	assert.True(t, math.IsNaN(nodata))

	data := make([]float64, 4)
	require.NoError(t, band.Read(0, 0, data, 2, 2))
	assert.Equal(t, []float64{0, 100, 200}, data[:3])
	assert.True(t, math.IsNaN(data[3]))
}
