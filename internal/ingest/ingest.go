// Package ingest is the field station side of the pipeline: it picks the
// photo the camera just took and builds the metadata sent with it.
package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"PenguinWatch.dashboard/internal/models"
)

// DefaultThreshold is how old the newest photo may be.
const DefaultThreshold = 10 * time.Second

// ErrNoRecentImage is returned when no photo was taken within the threshold.
var ErrNoRecentImage = errors.New("no recent image found")

// FindRecentImage walks dir in reverse name order and returns the first .jpg
// modified at most threshold before now. Camera file names carry a sortable
// timestamp, so reverse name order is newest first.
func FindRecentImage(dir string, threshold time.Duration, now time.Time) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read image dir: %w", err)
	}
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".jpg") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) <= threshold {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", fmt.Errorf("%w in the last %s", ErrNoRecentImage, threshold)
}

// Metadata stamps a weight with the local date and time of now.
func Metadata(weight float64, now time.Time) models.IngestMetadata {
	return models.IngestMetadata{
		Weight: weight,
		Date:   now.Format("2006-01-02"),
		Time:   now.Format("15:04:05"),
	}
}

// ImageID is the file name without its extension.
func ImageID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
