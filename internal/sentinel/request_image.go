package sentinel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

var ErrUnauthorized = errors.New("unauthorized access, check your client ID and secret")

const maxImageSide = 2500

type ClientConfig struct {
	BaseURL        string
	TokenURL       string
	ClientIDs      []string
	ClientSecrets  []string
	Retries        int
	RetryDelay     time.Duration
	RequestTimeout time.Duration
}

// Client talks to the Sentinel Hub Catalog and Process APIs. Each credential
// pair gets its own OAuth2 client; a pair rejected by the service is skipped
// in favour of the next one.
type Client struct {
	baseURL    string
	clients    []*http.Client
	retries    int
	retryDelay time.Duration
	logger     *zap.Logger
}

func NewClient(cfg ClientConfig, logger *zap.Logger) (*Client, error) {
	if len(cfg.ClientIDs) == 0 || len(cfg.ClientSecrets) == 0 || cfg.TokenURL == "" {
		return nil, fmt.Errorf("missing required environment variables: COPERNICUS_CLIENT_ID, COPERNICUS_CLIENT_SECRET, or COPERNICUS_TOKEN_URL")
	}
	if len(cfg.ClientIDs) != len(cfg.ClientSecrets) {
		return nil, fmt.Errorf("mismatched number of client IDs and secrets")
	}
	if cfg.Retries < 1 {
		cfg.Retries = 1
	}

	clients := make([]*http.Client, 0, len(cfg.ClientIDs))
	for i, clientID := range cfg.ClientIDs {
		config := &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: cfg.ClientSecrets[i],
			TokenURL:     cfg.TokenURL,
		}
		httpClient := config.Client(context.Background())
		httpClient.Timeout = cfg.RequestTimeout
		clients = append(clients, httpClient)
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		clients:    clients,
		retries:    cfg.Retries,
		retryDelay: cfg.RetryDelay,
		logger:     logger,
	}, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.code, e.body)
}

// post sends the payload with retries, rotating credentials on 401/403.
func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	requestBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}
	url := c.baseURL + path

	var lastErr error
	for i, httpClient := range c.clients {
		body, err := c.postWithRetry(ctx, httpClient, url, requestBody)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		c.logger.Warn("Credential failed, trying next",
			zap.Int("credential", i),
			zap.String("path", path),
			zap.Error(err))
	}
	return nil, lastErr
}

func (c *Client) postWithRetry(ctx context.Context, httpClient *http.Client, url string, requestBody []byte) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		body, err := c.doPost(ctx, httpClient, url, requestBody)
		if err == nil {
			return body, nil
		}
		if errors.Is(err, ErrUnauthorized) {
			return nil, err
		}
		var se *statusError
		if errors.As(err, &se) && se.code >= 400 && se.code < 500 && se.code != http.StatusTooManyRequests {
			return nil, err
		}
		lastErr = err
		c.logger.Debug("Request attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("retries", c.retries),
			zap.Error(err))

		if attempt == c.retries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.retryDelay):
		}
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", c.retries, lastErr)
}

func (c *Client) doPost(ctx context.Context, httpClient *http.Client, url string, requestBody []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(requestBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil && re.Response.StatusCode < 500 {
			return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		return nil, &statusError{code: resp.StatusCode, body: truncate(string(body), 300)}
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func calculatePixels(distance float64, resolution float64) int {
	pixels := distance * (111_000.0 / resolution)
	if pixels < 1 {
		return 1
	}
	if pixels > maxImageSide {
		return maxImageSide
	}
	return int(pixels)
}

// ImageSize returns the output raster size for a region at a resolution in
// metres.
func ImageSize(region *Region, resolution float64) (int, int) {
	bbox := region.BBox()
	return calculatePixels(bbox[2]-bbox[0], resolution), calculatePixels(bbox[3]-bbox[1], resolution)
}

func buildProcessRequest(region *Region, collection Collection, date time.Time, width, height int) map[string]any {
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24*time.Hour - time.Second)

	return map[string]any{
		"input": map[string]any{
			"bounds": map[string]any{
				"geometry": geojson.NewGeometry(region.Geometry),
				"properties": map[string]string{
					"crs": "http://www.opengis.net/def/crs/OGC/1.3/CRS84",
				},
			},
			"data": []map[string]any{
				{
					"type": collection.ID,
					"dataFilter": map[string]any{
						"timeRange": map[string]string{
							"from": start.Format(time.RFC3339),
							"to":   end.Format(time.RFC3339),
						},
						"mosaickingOrder": "leastCC",
					},
				},
			},
		},
		"output": map[string]any{
			"width":  width,
			"height": height,
			"responses": []map[string]any{
				{
					"identifier": "default",
					"format": map[string]string{
						"type": "image/tiff",
					},
				},
			},
		},
		"evalscript": collection.Evalscript(),
	}
}

// RequestImage downloads a GeoTIFF with the NDVI input bands of a single
// acquisition day.
func (c *Client) RequestImage(ctx context.Context, region *Region, collection Collection, resolution float64, date time.Time) ([]byte, error) {
	width, height := ImageSize(region, resolution)
	payload := buildProcessRequest(region, collection, date, width, height)

	body, err := c.post(ctx, "/api/v1/process", payload)
	if err != nil {
		return nil, fmt.Errorf("failed to request image for %s: %w", date.Format("2006-01-02"), err)
	}
	return body, nil
}
