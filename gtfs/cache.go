package gtfs

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Retexc/ETSignage/internal/logging"
)

// SerializeIndex encodes a ScheduleIndex to bytes using gob encoding.
func SerializeIndex(index *ScheduleIndex) ([]byte, error) {
	var buf bytes.Buffer
	if err := SerializeIndexToWriter(index, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DeserializeIndex decodes a ScheduleIndex from bytes using gob encoding.
func DeserializeIndex(data []byte) (*ScheduleIndex, error) {
	return DeserializeIndexFromReader(bytes.NewReader(data))
}

// SerializeIndexToWriter writes a ScheduleIndex to an io.Writer using gob encoding.
func SerializeIndexToWriter(index *ScheduleIndex, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(index); err != nil {
		return fmt.Errorf("failed to encode ScheduleIndex: %w", err)
	}
	return nil
}

// DeserializeIndexFromReader reads a ScheduleIndex from an io.Reader using gob encoding.
// Maps that were empty when encoded come back allocated.
func DeserializeIndexFromReader(r io.Reader) (*ScheduleIndex, error) {
	index := NewScheduleIndex()
	if err := gob.NewDecoder(r).Decode(index); err != nil {
		return nil, fmt.Errorf("failed to decode ScheduleIndex: %w", err)
	}
	return index, nil
}

// SerializeIndexToFile writes a ScheduleIndex to a file using gob encoding.
func SerializeIndexToFile(index *ScheduleIndex, path string) error {
	data, err := SerializeIndex(index)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// DeserializeIndexFromFile reads a ScheduleIndex from a file using gob encoding.
func DeserializeIndexFromFile(path string) (*ScheduleIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}
	return DeserializeIndex(data)
}

// LoadCached returns the index stored at cachePath when it is newer than every
// required table, and otherwise loads the tables and refreshes the cache.
// Cache problems are logged, never returned.
func LoadCached(paths Paths, cachePath string, logger *slog.Logger) (*ScheduleIndex, error) {
	logger = logging.OrDefault(logger)
	if cachePath == "" {
		return Load(paths, logger)
	}
	if cacheIsFresh(paths, cachePath) {
		index, err := DeserializeIndexFromFile(cachePath)
		if err == nil {
			logger.Debug("schedule index loaded from cache", slog.String("path", cachePath))
			return index, nil
		}
		logging.LogWarn(logger, "schedule cache unreadable, reloading", err, slog.String("path", cachePath))
	}
	index, err := Load(paths, logger)
	if err != nil {
		return nil, err
	}
	if err := SerializeIndexToFile(index, cachePath); err != nil {
		logging.LogWarn(logger, "failed to write schedule cache", err, slog.String("path", cachePath))
	}
	return index, nil
}

func cacheIsFresh(paths Paths, cachePath string) bool {
	ci, err := os.Stat(cachePath)
	if err != nil {
		return false
	}
	for _, p := range paths.required() {
		fi, err := os.Stat(p)
		if err != nil || fi.ModTime().After(ci.ModTime()) {
			return false
		}
	}
	return true
}
