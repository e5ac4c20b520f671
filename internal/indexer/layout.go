package indexer

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/fsutil"
)

// CurrentFile is the pointer inside the data directory naming the published
// generation directory. Replacing it is the single switch that publishes a
// build.
const CurrentFile = "CURRENT"

const generationPrefix = "gen-"

// ResolveDir returns the directory holding the artifacts published in
// dataDir. A data directory without CURRENT is read as a flat layout with
// the artifacts directly inside it.
func ResolveDir(dataDir string) (string, error) {
	name, err := currentGeneration(dataDir)
	if err != nil {
		return "", err
	}
	if name == "" {
		return dataDir, nil
	}
	return filepath.Join(dataDir, name), nil
}

// currentGeneration returns the generation CURRENT points to, or "" when
// nothing has been published yet.
func currentGeneration(dataDir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dataDir, CurrentFile))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", CurrentFile, err)
	}
	name := strings.TrimSpace(string(data))
	if _, ok := parseGeneration(name); !ok {
		return "", apperrors.Corruptf("%s names invalid generation %q", CurrentFile, name)
	}
	return name, nil
}

func parseGeneration(name string) (int, bool) {
	if !strings.HasPrefix(name, generationPrefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(name, generationPrefix))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// nextGeneration creates a fresh, empty generation directory numbered
// above every generation already present in dataDir.
func nextGeneration(dataDir string) (string, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return "", fmt.Errorf("reading data directory: %w", err)
	}
	highest := 0
	for _, e := range entries {
		if n, ok := parseGeneration(e.Name()); ok && e.IsDir() && n > highest {
			highest = n
		}
	}
	name := fmt.Sprintf("%s%06d", generationPrefix, highest+1)
	if err := os.Mkdir(filepath.Join(dataDir, name), 0755); err != nil {
		return "", fmt.Errorf("creating generation directory: %w", err)
	}
	return name, nil
}

// publishGeneration points CURRENT at name with a single rename.
func publishGeneration(dataDir, name string) error {
	s, err := fsutil.Create(filepath.Join(dataDir, CurrentFile))
	if err != nil {
		return fmt.Errorf("staging %s: %w", CurrentFile, err)
	}
	if _, err := s.Write([]byte(name + "\n")); err != nil {
		s.Abort()
		return fmt.Errorf("writing %s: %w", CurrentFile, err)
	}
	if err := s.Commit(); err != nil {
		s.Abort()
		return err
	}
	return nil
}

// pruneGenerations removes generation directories other than keep. Failures
// are logged; a leftover directory is retried on the next publish.
func pruneGenerations(dataDir string, keep map[string]bool, logger *slog.Logger) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		logger.Warn("listing generations", "error", err)
		return
	}
	for _, e := range entries {
		name := e.Name()
		if _, ok := parseGeneration(name); !ok || !e.IsDir() || keep[name] {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dataDir, name)); err != nil {
			logger.Warn("removing old generation", "generation", name, "error", err)
			continue
		}
		logger.Debug("old generation removed", "generation", name)
	}
}
