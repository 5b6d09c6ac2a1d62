package dataset

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/gocarina/gocsv"
)

const DateLayout = "2006-01-02"

// Row is one point of the carbon storage time series.
type Row struct {
	Date          string  `csv:"Date" json:"date"`
	CarbonStorage float64 `csv:"Carbon_Storage" json:"carbon_storage"`
	MeanNDVI      float64 `csv:"Mean_NDVI" json:"mean_ndvi"`
	ValidPixels   int     `csv:"Valid_Pixels" json:"valid_pixels"`
	CloudCover    float64 `csv:"Cloud_Cover" json:"cloud_cover"`
}

// SortRows orders rows by date ascending.
func SortRows(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Date < rows[j].Date
	})
}

func WriteCSV(w io.Writer, rows []Row) error {
	if rows == nil {
		rows = []Row{}
	}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("failed to write time series CSV: %w", err)
	}
	return nil
}

func SaveCSV(path string, rows []Row) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create folder for %s: %w", path, err)
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return WriteCSV(file, rows)
}
