package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"github.com/xunia-labs/carbon-dashboard/internal/cache"
	"go.uber.org/zap"
)

type DailyData struct {
	Time          []string   `json:"time"`
	Temperature   []*float64 `json:"temperature_2m_mean"`
	Precipitation []*float64 `json:"precipitation_sum"`
}

type WeatherResponse struct {
	Daily DailyData `json:"daily"`
}

type Weather struct {
	Precipitation float64 `json:"precipitation"`
	Temperature   float64 `json:"temperature"`
}

type HistoricalWeather map[string]Weather

// Summary is the climate context shown next to the carbon estimate.
type Summary struct {
	MeanTemperature    float64 `json:"mean_temperature"`
	TotalPrecipitation float64 `json:"total_precipitation"`
	Days               int     `json:"days"`
}

// The archive lags a few days behind, so ranges ending within recentDays
// are only cached for recentTTL.
const (
	recentDays = 5
	recentTTL  = 6 * time.Hour
)

// Client reads daily history from the Open-Meteo archive API.
type Client struct {
	baseURL    string
	retries    int
	retryDelay time.Duration
	httpClient *http.Client
	cache      cache.CacheService[HistoricalWeather]
	recent     cache.CacheService[HistoricalWeather]
	now        func() time.Time
	logger     *zap.Logger
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("weather API returned status %d", e.code)
}

// retryable reports whether a failed request may succeed when repeated:
// transport errors, rate limiting and server errors.
func retryable(err error) bool {
	var se *statusError
	if !errors.As(err, &se) {
		return true
	}
	return se.code == http.StatusTooManyRequests || se.code >= 500
}

func NewClient(baseURL string, retries int, cacheDir string, logger *zap.Logger) *Client {
	if retries < 1 {
		retries = 1
	}
	return &Client{
		baseURL:    baseURL,
		retries:    retries,
		retryDelay: 10 * time.Second,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cache:      cache.NewFileCache[HistoricalWeather](cacheDir, 0),
		recent:     cache.NewFileCache[HistoricalWeather](filepath.Join(cacheDir, "recent"), recentTTL),
		now:        time.Now,
		logger:     logger,
	}
}

func (c *Client) FetchWeather(ctx context.Context, latitude, longitude float64, startDate, endDate time.Time) (HistoricalWeather, error) {
	store := c.cacheFor(endDate)
	cacheKey := store.GenerateKey(fmt.Sprintf("%f_%f_%s_%s", latitude, longitude, startDate.Format("2006-01-02"), endDate.Format("2006-01-02")))
	if cached, ok := store.Get(cacheKey); ok {
		return cached, nil
	}

	params := url.Values{}
	params.Set("latitude", fmt.Sprintf("%f", latitude))
	params.Set("longitude", fmt.Sprintf("%f", longitude))
	params.Set("start_date", startDate.Format("2006-01-02"))
	params.Set("end_date", endDate.Format("2006-01-02"))
	params.Set("daily", "temperature_2m_mean,precipitation_sum")
	params.Set("timezone", "UTC")

	var weatherData WeatherResponse
	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		lastErr = c.get(ctx, c.baseURL+"?"+params.Encode(), &weatherData)
		if lastErr == nil {
			break
		}
		c.logger.Debug("Failed to retrieve weather data",
			zap.Int("attempt", attempt),
			zap.Int("retries", c.retries),
			zap.Error(lastErr))
		if !retryable(lastErr) {
			return nil, fmt.Errorf("failed to retrieve weather data: %w", lastErr)
		}
		if attempt == c.retries {
			return nil, fmt.Errorf("failed to retrieve weather data after %d attempts: %w", c.retries, lastErr)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.retryDelay):
		}
	}

	dataParsed := HistoricalWeather{}
	for i, date := range weatherData.Daily.Time {
		if i >= len(weatherData.Daily.Temperature) || i >= len(weatherData.Daily.Precipitation) {
			break
		}
		t, p := weatherData.Daily.Temperature[i], weatherData.Daily.Precipitation[i]
		if t == nil || p == nil {
			continue
		}
		dataParsed[date] = Weather{Temperature: *t, Precipitation: *p}
	}

	if err := store.Set(cacheKey, dataParsed); err != nil {
		c.logger.Warn("Failed to cache weather data", zap.Error(err))
	}
	return dataParsed, nil
}

// cacheFor picks the short-lived cache for ranges the archive may still
// fill in.
func (c *Client) cacheFor(endDate time.Time) cache.CacheService[HistoricalWeather] {
	if endDate.After(c.now().AddDate(0, 0, -recentDays)) {
		return c.recent
	}
	return c.cache
}

func (c *Client) get(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &statusError{code: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// Summarize reduces daily history to mean temperature and total
// precipitation.
func Summarize(history HistoricalWeather) Summary {
	var s Summary
	var tempSum float64
	for _, w := range history {
		tempSum += w.Temperature
		s.TotalPrecipitation += w.Precipitation
		s.Days++
	}
	if s.Days > 0 {
		s.MeanTemperature = tempSum / float64(s.Days)
	}
	return s
}

// Climate fetches and summarizes the history of a location.
func (c *Client) Climate(ctx context.Context, latitude, longitude float64, startDate, endDate time.Time) (*Summary, error) {
	history, err := c.FetchWeather(ctx, latitude, longitude, startDate, endDate)
	if err != nil {
		return nil, err
	}
	s := Summarize(history)
	return &s, nil
}
