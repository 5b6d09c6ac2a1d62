package output

import (
	"bytes"
	"errors"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"

	"github.com/fogleman/gg"
	"github.com/icza/mjpeg"
	"github.com/xunia-labs/carbon-dashboard/internal/dataset"
	"github.com/xunia-labs/carbon-dashboard/internal/delivery"
)

// CreateTimelapse writes one carbon map per frame, labeled with its date,
// into an MJPEG AVI.
func CreateTimelapse(frames []delivery.Frame, opts MapOptions, outputPath string, fps int32) (string, error) {
	if len(frames) == 0 {
		return "", errors.New("no frames to write")
	}
	if !strings.HasSuffix(outputPath, ".avi") {
		outputPath += ".avi"
	}
	if fps <= 0 {
		fps = 2
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create result folder: %w", err)
	}

	encoded := make([][]byte, len(frames))
	var width, height int
	for i, frame := range frames {
		o := opts
		o.Label = frame.Date.Format(dataset.DateLayout)
		img := RenderCarbonMap(frame.Carbon, o)

		b := img.Bounds()
		if i == 0 {
			width, height = b.Dx(), b.Dy()
		} else if b.Dx() != width || b.Dy() != height {
			return "", fmt.Errorf("frame %s is %dx%d, expected %dx%d", o.Label, b.Dx(), b.Dy(), width, height)
		}

		// JPEG has no alpha; flatten onto white.
		dc := gg.NewContext(width, height)
		dc.SetRGB(1, 1, 1)
		dc.Clear()
		dc.DrawImage(img, 0, 0)

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, dc.Image(), &jpeg.Options{Quality: 90}); err != nil {
			return "", err
		}
		encoded[i] = buf.Bytes()
	}

	writer, err := mjpeg.New(outputPath, int32(width), int32(height), fps)
	if err != nil {
		return "", err
	}
	for _, frame := range encoded {
		if err := writer.AddFrame(frame); err != nil {
			writer.Close()
			return "", err
		}
	}
	if err := writer.Close(); err != nil {
		return "", err
	}
	return outputPath, nil
}
