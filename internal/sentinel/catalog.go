package sentinel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

var ErrNoScenes = errors.New("no scenes found for the selected period")

const catalogPageSize = 100

// Scene is one acquisition day of a collection over the region.
type Scene struct {
	ID         string    `json:"id"`
	Date       time.Time `json:"date"`
	Acquired   time.Time `json:"acquired"`
	CloudCover float64   `json:"cloud_cover"`
}

type catalogSearch struct {
	BBox        [4]float64     `json:"bbox"`
	Datetime    string         `json:"datetime"`
	Collections []string       `json:"collections"`
	Limit       int            `json:"limit"`
	Filter      string         `json:"filter,omitempty"`
	FilterLang  string         `json:"filter-lang,omitempty"`
	Fields      map[string]any `json:"fields"`
	Next        int            `json:"next,omitempty"`
}

type catalogResponse struct {
	Features []struct {
		ID         string `json:"id"`
		Properties struct {
			Datetime   time.Time `json:"datetime"`
			CloudCover *float64  `json:"eo:cloud_cover"`
		} `json:"properties"`
	} `json:"features"`
	Context struct {
		Next int `json:"next"`
	} `json:"context"`
}

// SearchScenes lists acquisitions intersecting the region between from and
// to (inclusive days) whose cloud cover does not exceed maxCloudCover. Scenes
// are grouped per UTC day, keeping the least cloudy, and sorted by date.
func (c *Client) SearchScenes(ctx context.Context, region *Region, collection Collection, from, to time.Time, maxCloudCover float64) ([]Scene, error) {
	search := catalogSearch{
		BBox:        region.BBox(),
		Datetime:    fmt.Sprintf("%s/%s", startOfDay(from).Format(time.RFC3339), endOfDay(to).Format(time.RFC3339)),
		Collections: []string{collection.ID},
		Limit:       catalogPageSize,
		Fields: map[string]any{
			"include": []string{"id", "properties.datetime", "properties.eo:cloud_cover"},
			"exclude": []string{},
		},
	}
	if maxCloudCover < 100 {
		search.Filter = fmt.Sprintf("eo:cloud_cover <= %g", maxCloudCover)
		search.FilterLang = "cql2-text"
	}

	var scenes []Scene
	for {
		body, err := c.post(ctx, "/api/v1/catalog/1.0.0/search", search)
		if err != nil {
			return nil, fmt.Errorf("catalog search failed: %w", err)
		}
		var page catalogResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("failed to parse catalog response: %w", err)
		}
		for _, f := range page.Features {
			cloud := 0.0
			if f.Properties.CloudCover != nil {
				cloud = *f.Properties.CloudCover
			}
			if cloud > maxCloudCover {
				continue
			}
			acquired := f.Properties.Datetime.UTC()
			scenes = append(scenes, Scene{
				ID:         f.ID,
				Date:       startOfDay(acquired),
				Acquired:   acquired,
				CloudCover: cloud,
			})
		}
		if page.Context.Next == 0 || len(page.Features) == 0 {
			break
		}
		search.Next = page.Context.Next
	}

	scenes = groupByDay(scenes)
	c.logger.Debug("Catalog search finished",
		zap.String("collection", collection.ID),
		zap.Int("scenes", len(scenes)))

	if len(scenes) == 0 {
		return nil, fmt.Errorf("%w: %s to %s", ErrNoScenes, from.Format("2006-01-02"), to.Format("2006-01-02"))
	}
	return scenes, nil
}

func groupByDay(scenes []Scene) []Scene {
	best := make(map[time.Time]Scene)
	for _, s := range scenes {
		if cur, ok := best[s.Date]; !ok || s.CloudCover < cur.CloudCover {
			best[s.Date] = s
		}
	}
	out := make([]Scene, 0, len(best))
	for _, s := range best {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).Add(24*time.Hour - time.Second)
}
