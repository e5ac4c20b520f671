package segment

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/index"
)

// Reader streams the records of one segment in file order.
type Reader struct {
	closer io.Closer
	path   string
	br     *bufio.Reader
	line   int
}

// OpenReader opens the segment at path for sequential reading.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	return NewReader(f, path), nil
}

// NewReader reads records from r. name is used in error messages. If r is
// an io.Closer it is closed by Close.
func NewReader(r io.Reader, name string) *Reader {
	c, _ := r.(io.Closer)
	return &Reader{
		closer: c,
		path:   name,
		br:     bufio.NewReaderSize(r, 1<<16),
	}
}

// Next returns the next record, or io.EOF once the segment is exhausted.
// Blank lines are skipped.
func (r *Reader) Next() (index.TermEntry, error) {
	for {
		line, err := r.br.ReadBytes('\n')
		if len(line) > 0 {
			r.line++
			if len(line) == 1 && line[0] == '\n' {
				continue
			}
			e, perr := index.ParseLine(line)
			if perr != nil {
				return index.TermEntry{}, fmt.Errorf("%s line %d: %w", r.path, r.line, perr)
			}
			return e, nil
		}
		if errors.Is(err, io.EOF) {
			return index.TermEntry{}, io.EOF
		}
		if err != nil {
			return index.TermEntry{}, fmt.Errorf("reading %s: %w", r.path, err)
		}
	}
}

// Path is the segment's file name.
func (r *Reader) Path() string {
	return r.path
}

func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
