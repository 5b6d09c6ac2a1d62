package weather

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const archiveResponse = `{"daily":{
	"time":["2024-06-01","2024-06-02","2024-06-03"],
	"temperature_2m_mean":[18.0,20.0,null],
	"precipitation_sum":[0.0,5.5,1.0]
}}`

func TestClimate(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		assert.Equal(t, "2024-06-01", r.URL.Query().Get("start_date"))
		assert.Equal(t, "temperature_2m_mean,precipitation_sum", r.URL.Query().Get("daily"))
		io.WriteString(w, archiveResponse)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 3, t.TempDir(), zap.NewNop())
	c.retryDelay = time.Millisecond

	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

	summary, err := c.Climate(context.Background(), 42.25, -73.25, start, end)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Days)
	assert.InDelta(t, 19.0, summary.MeanTemperature, 1e-9)
	assert.InDelta(t, 5.5, summary.TotalPrecipitation, 1e-9)

	// Served from the cache.
	_, err = c.Climate(context.Background(), 42.25, -73.25, start, end)
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestFetchWeather_GivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 2, t.TempDir(), zap.NewNop())
	c.retryDelay = time.Millisecond

	_, err := c.FetchWeather(context.Background(), 0, 0, time.Now(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
}

func TestFetchWeather_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5, t.TempDir(), zap.NewNop())
	c.retryDelay = time.Hour

	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	_, err := c.FetchWeather(context.Background(), 0, 0, start, start.AddDate(0, 0, 2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestFetchWeather_RateLimitedIsRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		io.WriteString(w, archiveResponse)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 3, t.TempDir(), zap.NewNop())
	c.retryDelay = time.Millisecond

	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	history, err := c.FetchWeather(context.Background(), 0, 0, start, start.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Len(t, history, 2)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestFetchWeather_RecentRangesUseShortCache(t *testing.T) {
	dir := t.TempDir()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, archiveResponse)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 1, dir, zap.NewNop())
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	assert.Same(t, c.recent, c.cacheFor(now.AddDate(0, 0, -2)))
	assert.Same(t, c.cache, c.cacheFor(now.AddDate(0, 0, -30)))

	_, err := c.FetchWeather(context.Background(), 0, 0, now.AddDate(0, 0, -9), now.AddDate(0, 0, -1))
	require.NoError(t, err)

	recent, err := os.ReadDir(filepath.Join(dir, "recent"))
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestSummarize_Empty(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))
}
