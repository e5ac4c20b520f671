// Package dictionary assigns dense, never-reused integer ids to terms and
// documents and persists the mappings for the query engine.
//
// terms.txt holds one "term<TAB>term_id" line per term and docs.txt one
// "doc_id<TAB>url" line per document, both in ascending id order.
package dictionary

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/errors"
)

// Terms maps term strings to ids.
type Terms struct {
	ids   map[string]uint32
	terms []string
}

func NewTerms() *Terms {
	return &Terms{ids: make(map[string]uint32)}
}

// Assign returns the id of term, allocating the next id on first sight.
func (t *Terms) Assign(term string) uint32 {
	if id, ok := t.ids[term]; ok {
		return id
	}
	id := uint32(len(t.terms))
	t.ids[term] = id
	t.terms = append(t.terms, term)
	return id
}

// Lookup returns the id of a known term.
func (t *Terms) Lookup(term string) (uint32, bool) {
	id, ok := t.ids[term]
	return id, ok
}

// Term returns the string for id.
func (t *Terms) Term(id uint32) (string, bool) {
	if int(id) >= len(t.terms) {
		return "", false
	}
	return t.terms[id], true
}

func (t *Terms) Len() int {
	return len(t.terms)
}

// Docs maps document URLs to ids and back.
type Docs struct {
	ids  map[string]uint32
	urls []string
}

func NewDocs() *Docs {
	return &Docs{ids: make(map[string]uint32)}
}

// Assign returns the id of url and whether it was newly allocated. A URL seen
// before keeps its id and does not advance the counter.
func (d *Docs) Assign(url string) (uint32, bool) {
	if id, ok := d.ids[url]; ok {
		return id, false
	}
	id := uint32(len(d.urls))
	d.ids[url] = id
	d.urls = append(d.urls, url)
	return id, true
}

// Lookup returns the id of a known url.
func (d *Docs) Lookup(url string) (uint32, bool) {
	id, ok := d.ids[url]
	return id, ok
}

// URL returns the url for id.
func (d *Docs) URL(id uint32) (string, bool) {
	if int(id) >= len(d.urls) {
		return "", false
	}
	return d.urls[id], true
}

func (d *Docs) Len() int {
	return len(d.urls)
}

// WriteTerms writes the term dictionary in ascending id order.
func WriteTerms(w io.Writer, t *Terms) error {
	bw := bufio.NewWriter(w)
	for id, term := range t.terms {
		if _, err := fmt.Fprintf(bw, "%s\t%d\n", term, id); err != nil {
			return fmt.Errorf("writing term %d: %w", id, err)
		}
	}
	return bw.Flush()
}

// WriteDocs writes the document dictionary in ascending id order.
func WriteDocs(w io.Writer, d *Docs) error {
	bw := bufio.NewWriter(w)
	for id, url := range d.urls {
		if _, err := fmt.Fprintf(bw, "%d\t%s\n", id, url); err != nil {
			return fmt.Errorf("writing doc %d: %w", id, err)
		}
	}
	return bw.Flush()
}

// ReadTerms parses a terms.txt stream. Ids must be dense and ascending.
func ReadTerms(r io.Reader) (*Terms, error) {
	t := NewTerms()
	err := scanPairs(r, func(lineNo int, left, right string) error {
		id, err := strconv.ParseUint(right, 10, 32)
		if err != nil {
			return apperrors.Corruptf("terms line %d: bad id %q", lineNo, right)
		}
		if int(id) != len(t.terms) {
			return apperrors.Corruptf("terms line %d: id %d out of sequence (want %d)", lineNo, id, len(t.terms))
		}
		if _, dup := t.ids[left]; dup {
			return apperrors.Corruptf("terms line %d: duplicate term %q", lineNo, left)
		}
		t.Assign(left)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ReadDocs parses a docs.txt stream. Ids must be dense and ascending.
func ReadDocs(r io.Reader) (*Docs, error) {
	d := NewDocs()
	err := scanPairs(r, func(lineNo int, left, right string) error {
		id, err := strconv.ParseUint(left, 10, 32)
		if err != nil {
			return apperrors.Corruptf("docs line %d: bad id %q", lineNo, left)
		}
		if int(id) != len(d.urls) {
			return apperrors.Corruptf("docs line %d: id %d out of sequence (want %d)", lineNo, id, len(d.urls))
		}
		if _, isNew := d.Assign(right); !isNew {
			return apperrors.Corruptf("docs line %d: duplicate url %q", lineNo, right)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func scanPairs(r io.Reader, fn func(lineNo int, left, right string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		left, right, ok := strings.Cut(line, "\t")
		if !ok {
			return apperrors.Corruptf("line %d: missing tab", lineNo)
		}
		if err := fn(lineNo, left, right); err != nil {
			return err
		}
	}
	return sc.Err()
}

// LoadTerms reads terms.txt from disk.
func LoadTerms(path string) (*Terms, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening term dictionary: %w", err)
	}
	defer f.Close()
	t, err := ReadTerms(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return t, nil
}

// LoadDocs reads docs.txt from disk.
func LoadDocs(path string) (*Docs, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening document dictionary: %w", err)
	}
	defer f.Close()
	d, err := ReadDocs(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return d, nil
}
