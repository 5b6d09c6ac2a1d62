package sentinel

import (
	"errors"
	"fmt"
	"math"
	"os"
	"regexp"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Region is the area of interest every request is clipped to.
type Region struct {
	Name     string
	Geometry orb.Geometry
}

func NewRegionFromBBox(name string, bbox [4]float64) (*Region, error) {
	if bbox[0] >= bbox[2] || bbox[1] >= bbox[3] {
		return nil, fmt.Errorf("invalid bbox %v", bbox)
	}
	bound := orb.Bound{
		Min: orb.Point{bbox[0], bbox[1]},
		Max: orb.Point{bbox[2], bbox[3]},
	}
	return &Region{Name: name, Geometry: bound.ToPolygon()}, nil
}

// LoadRegionFromGeoJSON uses the geometry of the first polygonal feature of
// a FeatureCollection file.
func LoadRegionFromGeoJSON(name, path string) (*Region, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read region file: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse region file %s: %w", path, err)
	}
	for _, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
			if name == "" {
				if n, ok := f.Properties["name"].(string); ok {
					name = n
				}
			}
			return &Region{Name: name, Geometry: g}, nil
		}
	}
	return nil, fmt.Errorf("no polygon found in %s", path)
}

func (r *Region) Bound() orb.Bound {
	return r.Geometry.Bound()
}

// BBox returns minLon, minLat, maxLon, maxLat.
func (r *Region) BBox() [4]float64 {
	b := r.Bound()
	return [4]float64{b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat()}
}

// AreaHectares is the geodesic area of the region.
func (r *Region) AreaHectares() float64 {
	return math.Abs(geo.Area(r.Geometry)) / 10_000
}

func (r *Region) Centroid() (lat, lon float64, err error) {
	centroid, area := planar.CentroidArea(r.Geometry)
	if area <= 0 {
		return 0, 0, errors.New("error getting centroid")
	}
	return centroid.Lat(), centroid.Lon(), nil
}

func (r *Region) FeatureCollection() *geojson.FeatureCollection {
	f := geojson.NewFeature(r.Geometry)
	f.Properties["name"] = r.Name
	f.Properties["area_ha"] = r.AreaHectares()
	fc := geojson.NewFeatureCollection()
	fc.Append(f)
	return fc
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slug is a filesystem friendly form of the region name.
func (r *Region) Slug() string {
	s := strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(r.Name), "-"), "-")
	if s == "" {
		return "region"
	}
	return s
}
