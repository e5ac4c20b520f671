package segment

import (
	"container/heap"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/fsutil"
)

// Source yields records in strictly ascending term id order and io.EOF when
// exhausted.
type Source interface {
	Next() (index.TermEntry, error)
}

// MergeStats summarises one merge.
type MergeStats struct {
	Terms    int
	Postings int
	Bytes    int64
}

// Merge performs a k-way merge of sources into w. Records for the same term
// are combined into one line whose postings are ordered by doc id. The
// returned TOC maps every written term id to the byte offset of its line.
func Merge(sources []Source, w io.Writer) (index.TOC, MergeStats, error) {
	var stats MergeStats
	h := make(cursorHeap, 0, len(sources))
	for i, src := range sources {
		c := &cursor{src: src, seq: i, last: -1}
		ok, err := c.advance()
		if err != nil {
			return nil, stats, err
		}
		if ok {
			h = append(h, c)
		}
	}
	heap.Init(&h)

	toc := make(index.TOC)
	var buf []byte
	for h.Len() > 0 {
		top := h[0]
		merged := index.TermEntry{TermID: top.cur.TermID}
		for h.Len() > 0 && h[0].cur.TermID == merged.TermID {
			c := h[0]
			merged.Postings = append(merged.Postings, c.cur.Postings...)
			ok, err := c.advance()
			if err != nil {
				return nil, stats, err
			}
			if ok {
				heap.Fix(&h, 0)
			} else {
				heap.Pop(&h)
			}
		}
		sort.SliceStable(merged.Postings, func(i, j int) bool {
			return merged.Postings[i].DocID < merged.Postings[j].DocID
		})

		toc[merged.TermID] = stats.Bytes
		buf = index.AppendLine(buf[:0], merged)
		n, err := w.Write(buf)
		stats.Bytes += int64(n)
		if err != nil {
			return nil, stats, fmt.Errorf("writing term %d: %w", merged.TermID, err)
		}
		stats.Terms++
		stats.Postings += len(merged.Postings)
	}
	return toc, stats, nil
}

// MergeFiles merges the segment files at paths into the staged index file
// out and returns the TOC for it. out is left uncommitted.
func MergeFiles(paths []string, out *fsutil.Staged) (index.TOC, MergeStats, error) {
	sources := make([]Source, 0, len(paths))
	readers := make([]*Reader, 0, len(paths))
	defer func() {
		for _, r := range readers {
			r.Close()
		}
	}()
	for _, p := range paths {
		r, err := OpenReader(p)
		if err != nil {
			return nil, MergeStats{}, err
		}
		readers = append(readers, r)
		sources = append(sources, r)
	}
	return Merge(sources, out)
}

type cursor struct {
	src  Source
	seq  int
	cur  index.TermEntry
	last int64
}

// advance loads the next record. It reports false at end of input.
func (c *cursor) advance() (bool, error) {
	e, err := c.src.Next()
	if errors.Is(err, io.EOF) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if int64(e.TermID) <= c.last {
		return false, apperrors.Corruptf("segment %d: term %d follows term %d", c.seq, e.TermID, c.last)
	}
	c.last = int64(e.TermID)
	c.cur = e
	return true, nil
}

type cursorHeap []*cursor

func (h cursorHeap) Len() int { return len(h) }

func (h cursorHeap) Less(i, j int) bool {
	if h[i].cur.TermID != h[j].cur.TermID {
		return h[i].cur.TermID < h[j].cur.TermID
	}
	return h[i].seq < h[j].seq
}

func (h cursorHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *cursorHeap) Push(x interface{}) {
	*h = append(*h, x.(*cursor))
}

func (h *cursorHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
