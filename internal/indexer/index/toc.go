package index

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/errors"
)

// TOC maps a term id to the byte offset of its record in the final index.
type TOC map[uint32]int64

// WriteTo writes one "term_id<TAB>offset" line per entry in ascending term
// id order.
func (t TOC) WriteTo(w io.Writer) (int64, error) {
	ids := make([]uint32, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	bw := bufio.NewWriter(w)
	var n int64
	buf := make([]byte, 0, 32)
	for _, id := range ids {
		buf = strconv.AppendUint(buf[:0], uint64(id), 10)
		buf = append(buf, '\t')
		buf = strconv.AppendInt(buf, t[id], 10)
		buf = append(buf, '\n')
		m, err := bw.Write(buf)
		n += int64(m)
		if err != nil {
			return n, fmt.Errorf("writing toc: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return n, fmt.Errorf("flushing toc: %w", err)
	}
	return n, nil
}

// ReadTOC parses the format produced by WriteTo.
func ReadTOC(r io.Reader) (TOC, error) {
	toc := make(TOC)
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		idStr, offStr, ok := strings.Cut(line, "\t")
		if !ok {
			return nil, apperrors.Corruptf("toc line %d: missing tab", lineNo)
		}
		id, err := strconv.ParseUint(idStr, 10, 32)
		if err != nil {
			return nil, apperrors.Corruptf("toc line %d: bad term id %q", lineNo, idStr)
		}
		off, err := strconv.ParseInt(offStr, 10, 64)
		if err != nil || off < 0 {
			return nil, apperrors.Corruptf("toc line %d: bad offset %q", lineNo, offStr)
		}
		if _, dup := toc[uint32(id)]; dup {
			return nil, apperrors.Corruptf("toc line %d: duplicate term id %d", lineNo, id)
		}
		toc[uint32(id)] = off
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading toc: %w", err)
	}
	return toc, nil
}

// LoadTOC reads a TOC file from disk.
func LoadTOC(path string) (TOC, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening toc: %w", err)
	}
	defer f.Close()
	return ReadTOC(f)
}
