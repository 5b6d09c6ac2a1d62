package properties

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	CollectionLandsat   = "landsat-ot-l2"
	CollectionSentinel2 = "sentinel-2-l2a"
)

type RegionConfig struct {
	Name    string     `yaml:"name"`
	BBox    [4]float64 `yaml:"bbox"`
	GeoJSON string     `yaml:"geojson"`
	Center  [2]float64 `yaml:"center"`
	Zoom    int        `yaml:"zoom"`
}

type ImageryConfig struct {
	Collection     string        `yaml:"collection"`
	BaseURL        string        `yaml:"base_url"`
	TokenURL       string        `yaml:"token_url"`
	ClientIDs      []string      `yaml:"client_ids"`
	ClientSecrets  []string      `yaml:"client_secrets"`
	MaxCloudCover  float64       `yaml:"max_cloud_cover"`
	Resolution     float64       `yaml:"resolution"`
	MaxPixels      int64         `yaml:"max_pixels"`
	Retries        int           `yaml:"retries"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
	Workers        int           `yaml:"workers"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type CarbonConfig struct {
	Factor float64 `yaml:"factor"`
	MapMin float64 `yaml:"map_min"`
	MapMax float64 `yaml:"map_max"`
}

type DashboardConfig struct {
	Addr        string        `yaml:"addr"`
	GrpcPort    int           `yaml:"grpc_port"`
	DefaultDays int           `yaml:"default_days"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
	MaxReports  int           `yaml:"max_reports"`
}

type NotificationConfig struct {
	DiscordErrorURL   string `yaml:"discord_error_url"`
	DiscordWarnURL    string `yaml:"discord_warn_url"`
	DiscordSuccessURL string `yaml:"discord_success_url"`
}

type WeatherConfig struct {
	BaseURL string `yaml:"base_url"`
	Retries int    `yaml:"retries"`
}

// Config is the full application configuration. Defaults describe the
// Berkshire Taconic Landscape study area observed by Landsat 8.
type Config struct {
	Region       RegionConfig       `yaml:"region"`
	Imagery      ImageryConfig      `yaml:"imagery"`
	Carbon       CarbonConfig       `yaml:"carbon"`
	Dashboard    DashboardConfig    `yaml:"dashboard"`
	Notification NotificationConfig `yaml:"notification"`
	Weather      WeatherConfig      `yaml:"weather"`
	DataDir      string             `yaml:"data_dir"`
	LogLevel     string             `yaml:"log_level"`
	LogJSON      bool               `yaml:"log_json"`
}

func Default() *Config {
	return &Config{
		Region: RegionConfig{
			Name:   "Berkshire Taconic Landscape",
			BBox:   [4]float64{-73.5, 42.0, -73.0, 42.5},
			Center: [2]float64{42.25, -73.25},
			Zoom:   10,
		},
		Imagery: ImageryConfig{
			Collection:     CollectionLandsat,
			BaseURL:        "https://sh.dataspace.copernicus.eu",
			TokenURL:       "https://identity.dataspace.copernicus.eu/auth/realms/CDSE/protocol/openid-connect/token",
			MaxCloudCover:  30,
			MaxPixels:      1_000_000_000,
			Retries:        10,
			RetryDelay:     5 * time.Second,
			Workers:        4,
			RequestTimeout: 2 * time.Minute,
		},
		Carbon: CarbonConfig{
			Factor: 200,
			MapMin: 0,
			MapMax: 200,
		},
		Dashboard: DashboardConfig{
			Addr:        ":8501",
			GrpcPort:    50051,
			DefaultDays: 365,
			CacheTTL:    time.Hour,
			MaxReports:  32,
		},
		Weather: WeatherConfig{
			BaseURL: "https://archive-api.open-meteo.com/v1/archive",
			Retries: 5,
		},
		DataDir:  "data",
		LogLevel: "info",
	}
}

// LoadEnv loads the first .env file found walking up to two directories.
func LoadEnv() {
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(p); err == nil {
			return
		}
	}
}

// Load builds the configuration from defaults, the optional YAML file and
// the environment, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("CARBON_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if root := os.Getenv("ROOT_PATH"); root != "" {
		c.DataDir = filepath.Join(root, "data")
	}
	if ids := os.Getenv("COPERNICUS_CLIENT_ID"); ids != "" {
		c.Imagery.ClientIDs = splitList(ids)
	}
	if secrets := os.Getenv("COPERNICUS_CLIENT_SECRET"); secrets != "" {
		c.Imagery.ClientSecrets = splitList(secrets)
	}
	if v := os.Getenv("COPERNICUS_TOKEN_URL"); v != "" {
		c.Imagery.TokenURL = v
	}
	if v := os.Getenv("SENTINEL_HUB_URL"); v != "" {
		c.Imagery.BaseURL = strings.TrimSuffix(v, "/")
	}
	if v := os.Getenv("DISCORD_ERROR_NOTIFICATION_URL"); v != "" {
		c.Notification.DiscordErrorURL = v
	}
	if v := os.Getenv("DISCORD_WARN_NOTIFICATION_URL"); v != "" {
		c.Notification.DiscordWarnURL = v
	}
	if v := os.Getenv("DISCORD_SUCCESS_NOTIFICATION_URL"); v != "" {
		c.Notification.DiscordSuccessURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("DASHBOARD_ADDR"); v != "" {
		c.Dashboard.Addr = v
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) Validate() error {
	b := c.Region.BBox
	if c.Region.GeoJSON == "" && (b[0] >= b[2] || b[1] >= b[3]) {
		return fmt.Errorf("invalid region bbox %v: min must be lower than max", b)
	}
	switch c.Imagery.Collection {
	case CollectionLandsat, CollectionSentinel2:
	default:
		return fmt.Errorf("unknown imagery collection %q", c.Imagery.Collection)
	}
	if c.Imagery.Workers < 1 {
		return fmt.Errorf("imagery workers must be at least 1, got %d", c.Imagery.Workers)
	}
	if c.Imagery.MaxCloudCover < 0 || c.Imagery.MaxCloudCover > 100 {
		return fmt.Errorf("max cloud cover must be within [0, 100], got %v", c.Imagery.MaxCloudCover)
	}
	if c.Carbon.Factor == 0 {
		return fmt.Errorf("carbon factor must not be zero")
	}
	if c.Carbon.MapMax <= c.Carbon.MapMin {
		return fmt.Errorf("carbon map max (%v) must be greater than min (%v)", c.Carbon.MapMax, c.Carbon.MapMin)
	}
	return nil
}

func (c *Config) ImagesDir() string {
	return filepath.Join(c.DataDir, "images")
}

func (c *Config) CacheDir(sub string) string {
	return filepath.Join(c.DataDir, "cache", sub)
}

func (c *Config) ResultDir() string {
	return filepath.Join(c.DataDir, "result")
}

type Color struct {
	R, G, B uint8
}

// CarbonPalette is the map ramp from no storage to full storage.
var CarbonPalette = []Color{
	{255, 0, 0},
	{255, 255, 0},
	{0, 128, 0},
}

var OutlineColor = Color{0, 0, 255}
