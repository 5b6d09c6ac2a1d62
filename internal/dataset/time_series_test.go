package dataset

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gocarina/gocsv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCSV(t *testing.T) {
	rows := []Row{
		{Date: "2024-06-01", CarbonStorage: 120.5, MeanNDVI: 0.6025, ValidPixels: 10, CloudCover: 3},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Date,Carbon_Storage,Mean_NDVI,Valid_Pixels,Cloud_Cover", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "2024-06-01,120.5,"))
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Contains(t, buf.String(), "Date,Carbon_Storage")
}

func TestSaveCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "series.csv")
	rows := []Row{
		{Date: "2024-06-01", CarbonStorage: 100, MeanNDVI: 0.5, ValidPixels: 4},
		{Date: "2024-06-17", CarbonStorage: 110, MeanNDVI: 0.55, ValidPixels: 3, CloudCover: 12},
	}
	require.NoError(t, SaveCSV(path, rows))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var loaded []Row
	require.NoError(t, gocsv.UnmarshalFile(file, &loaded))
	assert.Equal(t, rows, loaded)
}

func TestSortRows(t *testing.T) {
	rows := []Row{{Date: "2024-07-01"}, {Date: "2024-05-01"}, {Date: "2024-06-01"}}
	SortRows(rows)
	assert.Equal(t, "2024-05-01", rows[0].Date)
	assert.Equal(t, "2024-07-01", rows[2].Date)
}
