package sentinel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/xunia-labs/carbon-dashboard/internal/cache"
	"github.com/xunia-labs/carbon-dashboard/internal/carbon"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Progress receives scene download progress. *progressbar.ProgressBar
// satisfies it.
type Progress interface {
	ChangeMax(int)
	Add(int) error
	Finish() error
}

type ImageRequester interface {
	SearchScenes(ctx context.Context, region *Region, collection Collection, from, to time.Time, maxCloudCover float64) ([]Scene, error)
	RequestImage(ctx context.Context, region *Region, collection Collection, resolution float64, date time.Time) ([]byte, error)
}

type ArchiveConfig struct {
	ImagesDir     string
	CacheDir      string
	CacheTTL      time.Duration
	Resolution    float64
	MaxCloudCover float64
	MaxPixels     int64
	Workers       int
}

// Archive fetches scenes for a single region and collection, keeping
// downloaded GeoTIFFs on disk so repeated ranges are served locally. It is
// safe for concurrent use; concurrent requests for one scene share a single
// download.
type Archive struct {
	requester  ImageRequester
	region     *Region
	collection Collection
	cfg        ArchiveConfig
	sceneCache cache.CacheService[[]Scene]
	readBands  func(path string, collection Collection) (*carbon.Bands, error)
	progress   Progress
	logger     *zap.Logger
	invalidMu  *sync.Mutex
	fetches    *singleflight.Group
}

func NewArchive(requester ImageRequester, region *Region, collection Collection, cfg ArchiveConfig, logger *zap.Logger) *Archive {
	if cfg.Resolution <= 0 {
		cfg.Resolution = collection.Resolution
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Archive{
		requester:  requester,
		region:     region,
		collection: collection,
		cfg:        cfg,
		sceneCache: cache.NewFileCache[[]Scene](cfg.CacheDir, cfg.CacheTTL),
		readBands:  ReadBands,
		logger:     logger,
		invalidMu:  &sync.Mutex{},
		fetches:    &singleflight.Group{},
	}
}

// WithProgress returns a copy of the archive reporting downloads to p.
func (a *Archive) WithProgress(p Progress) *Archive {
	return &Archive{
		requester:  a.requester,
		region:     a.region,
		collection: a.collection,
		cfg:        a.cfg,
		sceneCache: a.sceneCache,
		readBands:  a.readBands,
		progress:   p,
		logger:     a.logger,
		invalidMu:  a.invalidMu,
		fetches:    a.fetches,
	}
}

func (a *Archive) Region() *Region {
	return a.region
}

func (a *Archive) Collection() Collection {
	return a.collection
}

// Scenes returns the catalog entries for the range, excluding scenes
// previously found to hold no valid pixel.
func (a *Archive) Scenes(ctx context.Context, from, to time.Time) ([]Scene, error) {
	key := a.sceneCache.GenerateKey(a.collection.ID, a.region.BBox(), from.Format("2006-01-02"), to.Format("2006-01-02"), a.cfg.MaxCloudCover)

	scenes, ok := a.sceneCache.Get(key)
	if !ok {
		var err error
		scenes, err = a.requester.SearchScenes(ctx, a.region, a.collection, from, to, a.cfg.MaxCloudCover)
		if err != nil {
			return nil, err
		}
		if err := a.sceneCache.Set(key, scenes); err != nil {
			a.logger.Warn("Failed to cache scene list", zap.Error(err))
		}
	}

	invalid, err := a.loadInvalid()
	if err != nil {
		return nil, err
	}
	filtered := scenes[:0:0]
	for _, s := range scenes {
		if slices.Contains(invalid, a.imageName(s)) {
			continue
		}
		filtered = append(filtered, s)
	}
	if len(filtered) == 0 {
		return nil, fmt.Errorf("%w: %s to %s", ErrNoScenes, from.Format("2006-01-02"), to.Format("2006-01-02"))
	}
	return filtered, nil
}

// EachNDVI downloads missing scenes, then calls fn with the NDVI grid of
// every scene holding at least one valid pixel, in date order.
func (a *Archive) EachNDVI(ctx context.Context, scenes []Scene, fn func(Scene, *carbon.Grid) error) error {
	width, height := ImageSize(a.region, a.cfg.Resolution)
	if err := carbon.CheckPixels(width, height, a.cfg.MaxPixels); err != nil {
		return err
	}

	sorted := slices.Clone(scenes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	paths, err := a.download(ctx, sorted)
	if err != nil {
		return err
	}

	for i, scene := range sorted {
		if err := ctx.Err(); err != nil {
			return err
		}
		bands, err := a.readBands(paths[i], a.collection)
		if err != nil {
			return fmt.Errorf("scene %s: %w", scene.Date.Format("2006-01-02"), err)
		}
		grid, err := carbon.NDVI(bands)
		if err != nil {
			return fmt.Errorf("scene %s: %w", scene.Date.Format("2006-01-02"), err)
		}
		if carbon.ValidPixels(grid) == 0 {
			a.logger.Info("Skipping scene without valid pixels", zap.Time("date", scene.Date))
			if err := a.markInvalid(scene); err != nil {
				a.logger.Warn("Failed to record invalid scene", zap.Error(err))
			}
			continue
		}
		if err := fn(scene, grid); err != nil {
			return err
		}
	}
	return nil
}

func (a *Archive) sceneDir() string {
	return filepath.Join(a.cfg.ImagesDir, a.region.Slug())
}

func (a *Archive) imageName(s Scene) string {
	return fmt.Sprintf("%s_%s.tif", a.collection.ID, s.Date.Format("2006-01-02"))
}

func (a *Archive) invalidFile() string {
	return filepath.Join(a.sceneDir(), "invalid_images.json")
}

// download fetches every scene not already on disk using the worker pool.
func (a *Archive) download(ctx context.Context, scenes []Scene) ([]string, error) {
	if err := os.MkdirAll(a.sceneDir(), os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", a.sceneDir(), err)
	}

	if a.progress != nil {
		a.progress.ChangeMax(len(scenes))
		defer a.progress.Finish()
	}

	paths := make([]string, len(scenes))
	var mu sync.Mutex
	var errs []error

	wp := workerpool.New(a.cfg.Workers)
	for i, scene := range scenes {
		path := filepath.Join(a.sceneDir(), a.imageName(scene))
		paths[i] = path
		wp.Submit(func() {
			defer func() {
				if a.progress != nil {
					a.progress.Add(1)
				}
			}()
			if ctx.Err() != nil {
				return
			}
			if err := a.ensure(ctx, scene, path); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		})
	}
	wp.StopWait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to download %d of %d scenes: %w", len(errs), len(scenes), errors.Join(errs...))
	}
	return paths, nil
}

// ensure makes sure the scene is on disk. The download is shared with any
// other caller waiting on the same path and is not tied to the first
// caller's cancellation.
func (a *Archive) ensure(ctx context.Context, scene Scene, path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	_, err, _ := a.fetches.Do(path, func() (any, error) {
		if _, err := os.Stat(path); err == nil {
			return nil, nil
		}
		return nil, a.fetch(context.WithoutCancel(ctx), scene, path)
	})
	return err
}

func (a *Archive) fetch(ctx context.Context, scene Scene, path string) error {
	start := time.Now()
	imageBytes, err := a.requester.RequestImage(ctx, a.region, a.collection, a.cfg.Resolution, scene.Date)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.part")
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}
	_, err = tmp.Write(imageBytes)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write image file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to move image file: %w", err)
	}
	a.logger.Debug("Scene downloaded",
		zap.Time("date", scene.Date),
		zap.Float64("cloud_cover", scene.CloudCover),
		zap.Int("bytes", len(imageBytes)),
		zap.Duration("took", time.Since(start)))
	return nil
}

func (a *Archive) loadInvalid() ([]string, error) {
	a.invalidMu.Lock()
	defer a.invalidMu.Unlock()
	return readInvalidFile(a.invalidFile())
}

func readInvalidFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("invalid JSON in %s: %w", path, err)
	}
	return names, nil
}

// markInvalid records a scene without valid pixels. The image stays on disk
// since a concurrent pass may still be reading it; Scenes filters it out
// from now on.
func (a *Archive) markInvalid(scene Scene) error {
	a.invalidMu.Lock()
	defer a.invalidMu.Unlock()

	names, err := readInvalidFile(a.invalidFile())
	if err != nil {
		return err
	}
	name := a.imageName(scene)
	if !slices.Contains(names, name) {
		names = append(names, name)
		sort.Strings(names)
	}
	data, err := json.Marshal(names)
	if err != nil {
		return err
	}
	return os.WriteFile(a.invalidFile(), data, 0o644)
}
