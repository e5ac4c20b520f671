// Package mmap maps a read-only file into memory and serves newline-terminated
// records by byte offset. Where mapping is unavailable it falls back to
// positioned reads on the open file; both paths honour the same offset
// contract. A File is safe for concurrent readers.
package mmap

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrOffsetOutOfRange is returned when an offset lies outside the file.
var ErrOffsetOutOfRange = errors.New("offset out of range")

var errUnsupported = errors.New("mmap unsupported on this platform")

// File is a read-only view of a file on disk.
type File struct {
	f    *os.File
	data []byte
	size int64
}

// Open maps path into memory, falling back to positioned reads if mapping
// fails.
func Open(path string) (*File, error) {
	return open(path, true)
}

// OpenBuffered opens path without mapping it.
func OpenBuffered(path string) (*File, error) {
	return open(path, false)
}

func open(path string, tryMap bool) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	m := &File{f: f, size: info.Size()}
	if tryMap && m.size > 0 {
		data, err := mapFile(f, m.size)
		if err == nil {
			m.data = data
		}
	}
	return m, nil
}

// Len returns the file size in bytes.
func (m *File) Len() int64 {
	return m.size
}

// Mapped reports whether the file is served from a memory mapping.
func (m *File) Mapped() bool {
	return m.data != nil
}

// ReadLine returns the record starting at off, without its trailing newline.
// On the mapped path the returned slice aliases the mapping and is valid
// until Close.
func (m *File) ReadLine(off int64) ([]byte, error) {
	if off < 0 || off >= m.size {
		return nil, fmt.Errorf("%w: %d (size %d)", ErrOffsetOutOfRange, off, m.size)
	}
	if m.data != nil {
		rest := m.data[off:]
		if i := bytes.IndexByte(rest, '\n'); i >= 0 {
			return rest[:i], nil
		}
		return rest, nil
	}
	r := bufio.NewReader(io.NewSectionReader(m.f, off, m.size-off))
	line, err := r.ReadBytes('\n')
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("reading at offset %d: %w", off, err)
	}
	return bytes.TrimSuffix(line, []byte{'\n'}), nil
}

// Close unmaps the file and closes the descriptor.
func (m *File) Close() error {
	var unmapErr error
	if m.data != nil {
		unmapErr = unmapFile(m.data)
		m.data = nil
	}
	if err := m.f.Close(); err != nil {
		return err
	}
	return unmapErr
}
