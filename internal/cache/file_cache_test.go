package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

func TestFileCache_SetGet(t *testing.T) {
	fc := NewFileCache[[]point](t.TempDir(), 0)
	key := fc.GenerateKey("landsat", "2024-01-01", 30.0)

	_, ok := fc.Get(key)
	assert.False(t, ok)

	want := []point{{"2024-01-01", 0.5}, {"2024-01-17", 0.6}}
	require.NoError(t, fc.Set(key, want))

	got, ok := fc.Get(key)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestFileCache_GenerateKey(t *testing.T) {
	fc := NewFileCache[int](t.TempDir(), 0)
	assert.Equal(t, fc.GenerateKey("a", 1), fc.GenerateKey("a", 1))
	assert.NotEqual(t, fc.GenerateKey("a", 1), fc.GenerateKey("a", 2))
}

func TestFileCache_Expiry(t *testing.T) {
	fc := NewFileCache[int](t.TempDir(), time.Hour)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	fc.now = func() time.Time { return now }

	require.NoError(t, fc.Set("k", 42))

	now = now.Add(30 * time.Minute)
	v, ok := fc.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 42, v)

	now = now.Add(time.Hour)
	_, ok = fc.Get("k")
	assert.False(t, ok)
}

func TestFileCache_CorruptEntry(t *testing.T) {
	dir := t.TempDir()
	fc := NewFileCache[int](dir, 0)
	require.NoError(t, fc.Set("k", 1))

	path := filepath.Join(dir, "k.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"data":2,"created_at":"2024-01-01T00:00:00Z","checksum":"bad"}`), 0o644))
	_, ok := fc.Get("k")
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o644))
	_, ok = fc.Get("k")
	assert.False(t, ok)
}
