// Package segment persists weighted partial indexes as sorted text segments
// and merges them into the final inverted index.
package segment

import (
	"fmt"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/fsutil"
)

// Ext is the file extension of segment files.
const Ext = ".seg"

// Writer writes numbered segment files into a directory. Segment numbers are
// assigned in flush order starting at zero.
type Writer struct {
	dir  string
	next int
}

// NewWriter creates a Writer that writes segments into dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Dir is the segment directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Count is the number of segments written so far.
func (w *Writer) Count() int {
	return w.next
}

// Write creates the next segment from entries, which must be ordered by
// ascending term id. It writes to a .tmp file first and renames on success.
func (w *Writer) Write(entries []index.TermEntry) (string, error) {
	if len(entries) == 0 {
		return "", fmt.Errorf("cannot write empty segment")
	}
	path := filepath.Join(w.dir, fmt.Sprintf("seg_%06d%s", w.next, Ext))
	s, err := fsutil.Create(path)
	if err != nil {
		return "", err
	}

	var buf []byte
	prev := int64(-1)
	for _, e := range entries {
		if int64(e.TermID) <= prev {
			s.Abort()
			return "", fmt.Errorf("segment entries out of order at term %d", e.TermID)
		}
		prev = int64(e.TermID)
		buf = index.AppendLine(buf[:0], e)
		if _, err := s.Write(buf); err != nil {
			s.Abort()
			return "", fmt.Errorf("writing segment %s: %w", path, err)
		}
	}
	if err := s.Commit(); err != nil {
		s.Abort()
		return "", err
	}
	w.next++
	return path, nil
}
