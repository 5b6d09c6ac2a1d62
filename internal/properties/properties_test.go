package properties

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CARBON_CONFIG", "")
	t.Setenv("ROOT_PATH", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, [4]float64{-73.5, 42.0, -73.0, 42.5}, cfg.Region.BBox)
	assert.Equal(t, CollectionLandsat, cfg.Imagery.Collection)
	assert.Equal(t, 200.0, cfg.Carbon.Factor)
	assert.Equal(t, 365, cfg.Dashboard.DefaultDays)
	assert.Equal(t, 32, cfg.Dashboard.MaxReports)
	assert.Equal(t, int64(1_000_000_000), cfg.Imagery.MaxPixels)
}

func TestLoad_YAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := `
region:
  name: Test Forest
  bbox: [10, 20, 11, 21]
imagery:
  collection: sentinel-2-l2a
  max_cloud_cover: 10
  retry_delay: 2s
carbon:
  factor: 150
dashboard:
  addr: ":9000"
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	t.Setenv("ROOT_PATH", "/srv/carbon")
	t.Setenv("COPERNICUS_CLIENT_ID", "a, b")
	t.Setenv("COPERNICUS_CLIENT_SECRET", "x,y")
	t.Setenv("DASHBOARD_ADDR", ":7000")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Test Forest", cfg.Region.Name)
	assert.Equal(t, [4]float64{10, 20, 11, 21}, cfg.Region.BBox)
	assert.Equal(t, CollectionSentinel2, cfg.Imagery.Collection)
	assert.Equal(t, 10.0, cfg.Imagery.MaxCloudCover)
	assert.Equal(t, 2*time.Second, cfg.Imagery.RetryDelay)
	assert.Equal(t, 150.0, cfg.Carbon.Factor)
	assert.Equal(t, ":7000", cfg.Dashboard.Addr)
	assert.Equal(t, filepath.Join("/srv/carbon", "data"), cfg.DataDir)
	assert.Equal(t, []string{"a", "b"}, cfg.Imagery.ClientIDs)
	assert.Equal(t, []string{"x", "y"}, cfg.Imagery.ClientSecrets)
}

func TestValidate(t *testing.T) {
	t.Run("inverted bbox", func(t *testing.T) {
		cfg := Default()
		cfg.Region.BBox = [4]float64{1, 1, 0, 2}
		assert.Error(t, cfg.Validate())
	})

	t.Run("unknown collection", func(t *testing.T) {
		cfg := Default()
		cfg.Imagery.Collection = "modis"
		assert.Error(t, cfg.Validate())
	})

	t.Run("map range", func(t *testing.T) {
		cfg := Default()
		cfg.Carbon.MapMax = cfg.Carbon.MapMin
		assert.Error(t, cfg.Validate())
	})

	t.Run("zero factor", func(t *testing.T) {
		cfg := Default()
		cfg.Carbon.Factor = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("defaults are valid", func(t *testing.T) {
		assert.NoError(t, Default().Validate())
	})
}
