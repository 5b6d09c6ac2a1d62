package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/airbusgeo/godal"
	"github.com/spf13/cobra"
	"github.com/xunia-labs/carbon-dashboard/internal/carbon"
	"github.com/xunia-labs/carbon-dashboard/internal/dataset"
	"github.com/xunia-labs/carbon-dashboard/internal/logging"
	"github.com/xunia-labs/carbon-dashboard/internal/properties"
	"github.com/xunia-labs/carbon-dashboard/internal/sentinel"
	"github.com/xunia-labs/carbon-dashboard/internal/ui"
)

var (
	configPath string
	sceneDate  string
	searchDays int
)

// Downloads the scenes around one date and prints per-band statistics, to
// check credentials and the evalscript against the live service.
var rootCmd = &cobra.Command{
	Use:          "test_download",
	Short:        "Download scenes around a date and print band statistics",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.Flags().StringVar(&sceneDate, "date", "2024-07-01", "center date YYYY-MM-DD")
	rootCmd.Flags().IntVar(&searchDays, "days", 5, "days searched on each side of the date")
}

func run(cmd *cobra.Command, args []string) error {
	properties.LoadEnv()
	cfg, err := properties.Load(configPath)
	if err != nil {
		ui.PrintInfo("Make sure you have set COPERNICUS_CLIENT_ID, COPERNICUS_CLIENT_SECRET and COPERNICUS_TOKEN_URL")
		return err
	}
	logger, err := logging.New(cfg.LogLevel, false)
	if err != nil {
		return err
	}
	defer logger.Sync()

	godal.RegisterAll()

	date, err := time.Parse(dataset.DateLayout, sceneDate)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", sceneDate, err)
	}

	region, err := sentinel.NewRegionFromBBox(cfg.Region.Name, cfg.Region.BBox)
	if err != nil {
		return err
	}
	collection, err := sentinel.LookupCollection(cfg.Imagery.Collection)
	if err != nil {
		return err
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
		return err
	}

	fmt.Println("=== Test Image Download ===")
	fmt.Printf("Region: %s %v\n", region.Name, region.BBox())
	fmt.Printf("Collection: %s\n", collection.ID)
	fmt.Printf("Date: %s (+/- %d days)\n\n", sceneDate, searchDays)

	ctx := context.Background()
	from, to := date.AddDate(0, 0, -searchDays), date.AddDate(0, 0, searchDays)
	scenes, err := client.SearchScenes(ctx, region, collection, from, to, cfg.Imagery.MaxCloudCover)
	if err != nil {
		return err
	}
	fmt.Printf("Scenes found: %d\n", len(scenes))

	dir := filepath.Join(cfg.ImagesDir(), "test_download")
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return err
	}

	for _, scene := range scenes {
		fmt.Printf("\n- %s (cloud cover %.1f%%)\n", scene.Date.Format(dataset.DateLayout), scene.CloudCover)

		data, err := client.RequestImage(ctx, region, collection, cfg.Imagery.Resolution, scene.Date)
		if err != nil {
			ui.PrintError(err.Error())
			continue
		}
		path := filepath.Join(dir, scene.Date.Format(dataset.DateLayout)+".tif")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return err
		}

		bands, err := sentinel.ReadBands(path, collection)
		if err != nil {
			ui.PrintError(err.Error())
			continue
		}
		fmt.Printf("  size: %dx%d, file: %s\n", bands.Width, bands.Height, path)
		printStats("red", bands.Red)
		printStats("nir", bands.NIR)

		ndvi, err := carbon.NDVI(bands)
		if err != nil {
			ui.PrintWarning(err.Error())
			continue
		}
		printStats("ndvi", ndvi.Data)
	}

	ui.PrintSuccess("Test completed successfully!")
	return nil
}

func printStats(name string, data []float64) {
	s := sentinel.ComputeBandStats(data)
	fmt.Printf("  %-5s min %.4f max %.4f mean %.4f (%d/%d valid)\n", name, s.Min, s.Max, s.Mean, s.Valid, s.Total)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
