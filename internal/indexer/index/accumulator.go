package index

import (
	"fmt"
	"sort"
)

type rawPosting struct {
	docID uint32
	tf    int
}

// Accumulator collects raw term-frequency postings for the documents seen
// since the last flush. It is owned by a single builder and is not safe for
// concurrent use.
type Accumulator struct {
	postings map[uint32][]rawPosting
	docCount int
	size     int
}

func NewAccumulator() *Accumulator {
	return &Accumulator{
		postings: make(map[uint32][]rawPosting),
	}
}

// Add records one document's term frequencies. Each document must be added
// at most once per batch, so a term's list length is its document frequency.
func (a *Accumulator) Add(docID uint32, termFreqs map[uint32]int) {
	for termID, tf := range termFreqs {
		a.postings[termID] = append(a.postings[termID], rawPosting{docID: docID, tf: tf})
		a.size++
	}
	a.docCount++
}

// DocCount is the number of documents in the current batch.
func (a *Accumulator) DocCount() int {
	return a.docCount
}

// Terms is the number of distinct terms in the current batch.
func (a *Accumulator) Terms() int {
	return len(a.postings)
}

// Size is the number of postings held in memory.
func (a *Accumulator) Size() int {
	return a.size
}

// Weighted converts the batch to TF-IDF postings using only this batch's
// statistics, ordered by ascending term id with doc ids ascending within
// each list.
func (a *Accumulator) Weighted() ([]TermEntry, error) {
	termIDs := make([]uint32, 0, len(a.postings))
	for termID := range a.postings {
		termIDs = append(termIDs, termID)
	}
	sort.Slice(termIDs, func(i, j int) bool { return termIDs[i] < termIDs[j] })

	entries := make([]TermEntry, 0, len(termIDs))
	for _, termID := range termIDs {
		raw := a.postings[termID]
		df := len(raw)
		pl := make(PostingList, 0, df)
		for _, rp := range raw {
			w, err := TFIDF(rp.tf, df, a.docCount)
			if err != nil {
				return nil, fmt.Errorf("weighting term %d doc %d: %w", termID, rp.docID, err)
			}
			pl = append(pl, Posting{DocID: rp.docID, Weight: w})
		}
		sort.Slice(pl, func(i, j int) bool { return pl[i].DocID < pl[j].DocID })
		entries = append(entries, TermEntry{TermID: termID, Postings: pl})
	}
	return entries, nil
}

// Reset clears the batch.
func (a *Accumulator) Reset() {
	a.postings = make(map[uint32][]rawPosting)
	a.docCount = 0
	a.size = 0
}
