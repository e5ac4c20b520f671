// Package fetcher reads one term's postings from the final index by seeking
// to the offset recorded in the TOC.
package fetcher

import (
	"errors"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/mmap"
)

// LineSource returns the record starting at a byte offset. *mmap.File
// satisfies it.
type LineSource interface {
	ReadLine(off int64) ([]byte, error)
}

type Fetcher struct {
	toc index.TOC
	src LineSource
}

func New(toc index.TOC, src LineSource) *Fetcher {
	return &Fetcher{toc: toc, src: src}
}

// Fetch returns the postings of termID in doc id order. Every term in the
// dictionary has a TOC entry, so a miss, an unreadable offset or a record
// for a different term all mean the index is corrupted.
func (f *Fetcher) Fetch(termID uint32) (index.PostingList, error) {
	off, ok := f.toc[termID]
	if !ok {
		return nil, apperrors.Corruptf("term %d has no toc entry", termID)
	}
	line, err := f.src.ReadLine(off)
	if err != nil {
		if errors.Is(err, mmap.ErrOffsetOutOfRange) {
			return nil, apperrors.Corruptf("term %d: %v", termID, err)
		}
		return nil, err
	}
	e, err := index.ParseLine(line)
	if err != nil {
		return nil, err
	}
	if e.TermID != termID {
		return nil, apperrors.Corruptf("toc offset %d for term %d holds term %d", off, termID, e.TermID)
	}
	return e.Postings, nil
}

// Len is the number of terms in the TOC.
func (f *Fetcher) Len() int {
	return len(f.toc)
}
