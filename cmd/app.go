package main

import (
	"fmt"

	"github.com/xunia-labs/carbon-dashboard/internal/delivery"
	"github.com/xunia-labs/carbon-dashboard/internal/notification"
	"github.com/xunia-labs/carbon-dashboard/internal/properties"
	"github.com/xunia-labs/carbon-dashboard/internal/sentinel"
	"github.com/xunia-labs/carbon-dashboard/internal/weather"
	"go.uber.org/zap"
)

// app holds the long-lived dependencies shared by every command.
type app struct {
	cfg        *properties.Config
	logger     *zap.Logger
	notifier   *notification.Notifier
	region     *sentinel.Region
	collection sentinel.Collection
	archive    *sentinel.Archive
	weather    *weather.Client
}

func notifierFromConfig(cfg *properties.Config) *notification.Notifier {
	n := cfg.Notification
	return notification.NewNotifier(n.DiscordErrorURL, n.DiscordWarnURL, n.DiscordSuccessURL)
}

func loadRegion(cfg properties.RegionConfig) (*sentinel.Region, error) {
	if cfg.GeoJSON != "" {
		return sentinel.LoadRegionFromGeoJSON(cfg.Name, cfg.GeoJSON)
	}
	return sentinel.NewRegionFromBBox(cfg.Name, cfg.BBox)
}

func newApp(cfg *properties.Config, logger *zap.Logger) (*app, error) {
	region, err := loadRegion(cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("failed to load region: %w", err)
	}

	collection, err := sentinel.LookupCollection(cfg.Imagery.Collection)
	if err != nil {
		return nil, err
	}

	client, err := sentinel.NewClient(sentinel.ClientConfig{
		BaseURL:        cfg.Imagery.BaseURL,
		TokenURL:       cfg.Imagery.TokenURL,
		ClientIDs:      cfg.Imagery.ClientIDs,
		ClientSecrets:  cfg.Imagery.ClientSecrets,
		Retries:        cfg.Imagery.Retries,
		RetryDelay:     cfg.Imagery.RetryDelay,
		RequestTimeout: cfg.Imagery.RequestTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	archive := sentinel.NewArchive(client, region, collection, sentinel.ArchiveConfig{
		ImagesDir:     cfg.ImagesDir(),
		CacheDir:      cfg.CacheDir("scenes"),
		CacheTTL:      cfg.Dashboard.CacheTTL,
		Resolution:    cfg.Imagery.Resolution,
		MaxCloudCover: cfg.Imagery.MaxCloudCover,
		MaxPixels:     cfg.Imagery.MaxPixels,
		Workers:       cfg.Imagery.Workers,
	}, logger)

	return &app{
		cfg:        cfg,
		logger:     logger,
		notifier:   notifierFromConfig(cfg),
		region:     region,
		collection: collection,
		archive:    archive,
		weather:    weather.NewClient(cfg.Weather.BaseURL, cfg.Weather.Retries, cfg.CacheDir("weather"), logger),
	}, nil
}

// service wires a report service. Downloads are reported to progress when
// it is not nil.
func (a *app) service(progress sentinel.Progress) *delivery.Service {
	var source delivery.ImageSource = a.archive
	if progress != nil {
		source = a.archive.WithProgress(progress)
	}
	processor := delivery.NewProcessor(source, a.cfg.Carbon.Factor, a.logger)
	return delivery.NewService(processor, a.weather, a.notifier, a.logger)
}

func sourceLabel(collection sentinel.Collection) string {
	switch collection.ID {
	case properties.CollectionSentinel2:
		return "Sentinel-2 L2A via Copernicus Data Space"
	default:
		return "Landsat 8 via Copernicus Data Space"
	}
}
