// Package fsutil provides write-then-rename helpers so that readers never
// observe a partially written artifact.
package fsutil

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
)

const tmpSuffix = ".tmp"

// Staged is a buffered file written under path+".tmp" and published to path
// by Commit.
type Staged struct {
	path   string
	tmp    string
	f      *os.File
	w      *bufio.Writer
	closed bool
}

// Create opens a staged file for path, creating parent directories.
func Create(path string) (*Staged, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating directory for %s: %w", path, err)
	}
	tmp := path + tmpSuffix
	f, err := os.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("creating temp file %s: %w", tmp, err)
	}
	return &Staged{
		path: path,
		tmp:  tmp,
		f:    f,
		w:    bufio.NewWriterSize(f, 1<<16),
	}, nil
}

func (s *Staged) Write(p []byte) (int, error) {
	return s.w.Write(p)
}

// Path is the final (published) path.
func (s *Staged) Path() string {
	return s.path
}

// Close flushes and fsyncs the temp file without publishing it.
func (s *Staged) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.w.Flush(); err != nil {
		s.f.Close()
		return fmt.Errorf("flushing %s: %w", s.tmp, err)
	}
	if err := s.f.Sync(); err != nil {
		s.f.Close()
		return fmt.Errorf("syncing %s: %w", s.tmp, err)
	}
	if err := s.f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", s.tmp, err)
	}
	return nil
}

// Commit closes the temp file and renames it over the final path.
func (s *Staged) Commit() error {
	if err := s.Close(); err != nil {
		return err
	}
	if err := os.Rename(s.tmp, s.path); err != nil {
		return fmt.Errorf("publishing %s: %w", s.path, err)
	}
	return nil
}

// Abort discards the temp file. The final path is left untouched.
func (s *Staged) Abort() {
	if !s.closed {
		s.closed = true
		s.f.Close()
	}
	os.Remove(s.tmp)
}
