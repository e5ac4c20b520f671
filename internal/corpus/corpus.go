// Package corpus walks a directory of per-document JSON records and feeds
// them one at a time to the build pipeline.
package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Record is one fetched document as stored on disk.
type Record struct {
	URL     string `json:"url"`
	Content string `json:"content"`
	Path    string `json:"-"`
}

// WalkStats summarises a walk.
type WalkStats struct {
	Files     int
	Malformed int
}

// Walk visits every *.json file under dir in lexical order and calls fn with
// the decoded record. Files that fail to decode are logged and counted, not
// returned as errors. A non-nil error from fn stops the walk.
func Walk(ctx context.Context, dir string, fn func(Record) error) (WalkStats, error) {
	var stats WalkStats
	logger := slog.Default().With("component", "corpus")

	info, err := os.Stat(dir)
	if err != nil {
		return stats, fmt.Errorf("opening corpus directory: %w", err)
	}
	if !info.IsDir() {
		return stats, fmt.Errorf("corpus path %s is not a directory", dir)
	}

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".json") {
			return nil
		}
		stats.Files++
		rec, err := readRecord(path)
		if err != nil {
			stats.Malformed++
			logger.Warn("skipping malformed document", "path", path, "error", err)
			return nil
		}
		return fn(rec)
	})
	if err != nil {
		return stats, fmt.Errorf("walking corpus %s: %w", dir, err)
	}
	return stats, nil
}

func readRecord(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, fmt.Errorf("reading: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("decoding: %w", err)
	}
	rec.URL = strings.TrimSpace(rec.URL)
	rec.Path = path
	return rec, nil
}
