// Package verify checks a published index directory against the invariants
// the query engine relies on.
package verify

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/RoaringBitmap/roaring"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/dictionary"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/errors"
)

// maxProblems bounds how many individual findings a report keeps.
const maxProblems = 50

// Report is the outcome of a verification pass.
type Report struct {
	Root           string
	Terms          int
	Docs           int
	Lines          int
	Postings       int
	ReferencedDocs uint64
	Problems       []string
	truncated      int
}

// OK reports whether no problems were found.
func (r *Report) OK() bool {
	return len(r.Problems) == 0
}

// Truncated is the number of findings dropped after the first maxProblems.
func (r *Report) Truncated() int {
	return r.truncated
}

func (r *Report) addf(format string, args ...any) {
	if len(r.Problems) >= maxProblems {
		r.truncated++
		return
	}
	r.Problems = append(r.Problems, fmt.Sprintf(format, args...))
}

// Dir verifies the generation currently published in dataDir. It returns
// an error wrapping ErrIndexCorrupted when any invariant is violated; the
// report is returned either way once the artifacts could be read.
func Dir(dataDir string) (*Report, error) {
	logger := slog.Default().With("component", "verify")

	dir, err := indexer.ResolveDir(dataDir)
	if err != nil {
		return nil, err
	}
	terms, err := dictionary.LoadTerms(filepath.Join(dir, indexer.TermsFile))
	if err != nil {
		return nil, err
	}
	docs, err := dictionary.LoadDocs(filepath.Join(dir, indexer.DocsFile))
	if err != nil {
		return nil, err
	}
	toc, err := index.LoadTOC(filepath.Join(dir, indexer.TOCFile))
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(dir, indexer.IndexFile))
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}
	defer f.Close()

	r, err := Check(f, toc, terms.Len(), docs.Len())
	if err != nil {
		return nil, err
	}
	r.Root = dir
	logger.Info("verification finished",
		"dir", dir,
		"terms", r.Terms,
		"docs", r.Docs,
		"lines", r.Lines,
		"postings", r.Postings,
		"problems", len(r.Problems)+r.truncated,
	)
	if !r.OK() {
		return r, apperrors.Corruptf("%d problems found in %s", len(r.Problems)+r.truncated, dir)
	}
	return r, nil
}

// Check streams an index and compares it with its TOC and dictionary sizes.
func Check(indexFile io.Reader, toc index.TOC, termCount, docCount int) (*Report, error) {
	r := &Report{Terms: termCount, Docs: docCount}
	seenTerms := roaring.New()
	referenced := roaring.New()

	br := bufio.NewReaderSize(indexFile, 1<<16)
	var offset int64
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			r.checkLine(line, offset, toc, seenTerms, referenced)
			offset += int64(len(line))
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading index: %w", err)
		}
	}

	if len(toc) != r.Lines {
		r.addf("toc has %d entries but index has %d lines", len(toc), r.Lines)
	}
	if termCount != r.Lines {
		r.addf("dictionary has %d terms but index has %d lines", termCount, r.Lines)
	}
	for tid := range toc {
		if !seenTerms.Contains(tid) {
			r.addf("toc entry for term %d has no index line", tid)
		}
	}
	r.ReferencedDocs = referenced.GetCardinality()
	if docCount > 0 {
		all := roaring.New()
		all.AddRange(0, uint64(docCount))
		all.AndNot(referenced)
		if n := all.GetCardinality(); n > 0 {
			r.addf("%d documents are not referenced by any posting", n)
		}
	}
	return r, nil
}

func (r *Report) checkLine(line []byte, offset int64, toc index.TOC, seen, referenced *roaring.Bitmap) {
	r.Lines++
	e, err := index.ParseLine(line)
	if err != nil {
		r.addf("offset %d: %v", offset, err)
		return
	}
	if seen.Contains(e.TermID) {
		r.addf("term %d appears on more than one line", e.TermID)
	}
	seen.Add(e.TermID)

	if int(e.TermID) >= r.Terms {
		r.addf("term %d is not in the dictionary", e.TermID)
	}
	off, ok := toc[e.TermID]
	switch {
	case !ok:
		r.addf("term %d is missing from the toc", e.TermID)
	case off != offset:
		r.addf("term %d: toc offset %d, line starts at %d", e.TermID, off, offset)
	}
	if len(e.Postings) == 0 {
		r.addf("term %d has no postings", e.TermID)
	}

	for i, p := range e.Postings {
		if i > 0 && p.DocID <= e.Postings[i-1].DocID {
			r.addf("term %d: doc ids not strictly ascending at %d", e.TermID, p.DocID)
		}
		if int(p.DocID) >= r.Docs {
			r.addf("term %d references unknown doc %d", e.TermID, p.DocID)
		}
		referenced.Add(p.DocID)
	}
	r.Postings += len(e.Postings)
}
