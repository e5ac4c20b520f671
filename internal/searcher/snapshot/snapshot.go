// Package snapshot loads the read-only state the query engine serves from:
// both dictionaries, the TOC and a memory-mapped view of index.txt.
package snapshot

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/dictionary"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/mmap"
)

// Snapshot is immutable once opened and safe for concurrent queries. The
// mapped index stays valid until Close.
type Snapshot struct {
	Dir        string
	Root       string // generation directory the artifacts were read from
	Generation uint64
	LoadedAt   time.Time
	Terms      *dictionary.Terms
	Docs       *dictionary.Docs
	TOC        index.TOC
	Index      *mmap.File
}

// Stats describes a loaded snapshot.
type Stats struct {
	Dir        string    `json:"dir"`
	Root       string    `json:"root"`
	Generation uint64    `json:"generation"`
	LoadedAt   time.Time `json:"loaded_at"`
	Terms      int       `json:"terms"`
	Documents  int       `json:"documents"`
	IndexBytes int64     `json:"index_bytes"`
	Mapped     bool      `json:"mapped"`
}

// Open loads the generation currently published in dir. CURRENT is read
// once, so every artifact comes from the same build even if a newer one is
// published while loading. A missing artifact is reported as ErrNotFound.
func Open(dir string, generation uint64) (*Snapshot, error) {
	root, err := indexer.ResolveDir(dir)
	if err != nil {
		return nil, err
	}
	toc, err := index.LoadTOC(filepath.Join(root, indexer.TOCFile))
	if err != nil {
		return nil, artifactError(dir, indexer.TOCFile, err)
	}
	terms, err := dictionary.LoadTerms(filepath.Join(root, indexer.TermsFile))
	if err != nil {
		return nil, artifactError(dir, indexer.TermsFile, err)
	}
	docs, err := dictionary.LoadDocs(filepath.Join(root, indexer.DocsFile))
	if err != nil {
		return nil, artifactError(dir, indexer.DocsFile, err)
	}
	if len(toc) != terms.Len() {
		return nil, apperrors.Corruptf("toc has %d entries but dictionary has %d terms", len(toc), terms.Len())
	}
	idx, err := mmap.Open(filepath.Join(root, indexer.IndexFile))
	if err != nil {
		return nil, artifactError(dir, indexer.IndexFile, err)
	}

	s := &Snapshot{
		Dir:        dir,
		Root:       root,
		Generation: generation,
		LoadedAt:   time.Now(),
		Terms:      terms,
		Docs:       docs,
		TOC:        toc,
		Index:      idx,
	}
	slog.Default().With("component", "snapshot").Info("index loaded",
		"dir", dir,
		"root", filepath.Base(root),
		"generation", generation,
		"terms", terms.Len(),
		"docs", docs.Len(),
		"index_bytes", idx.Len(),
		"mapped", idx.Mapped(),
	)
	return s, nil
}

func (s *Snapshot) Stats() Stats {
	return Stats{
		Dir:        s.Dir,
		Root:       s.Root,
		Generation: s.Generation,
		LoadedAt:   s.LoadedAt,
		Terms:      s.Terms.Len(),
		Documents:  s.Docs.Len(),
		IndexBytes: s.Index.Len(),
		Mapped:     s.Index.Mapped(),
	}
}

func artifactError(dir, name string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return apperrors.Newf(apperrors.ErrNotFound, http.StatusServiceUnavailable, "no published %s in %s", name, dir)
	}
	return fmt.Errorf("loading %s: %w", name, err)
}

// Close releases the mapped index.
func (s *Snapshot) Close() error {
	return s.Index.Close()
}
