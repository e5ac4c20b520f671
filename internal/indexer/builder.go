// Package indexer builds the on-disk inverted index: documents are
// accumulated in memory, flushed as weighted segments every FlushEvery
// documents, and finally merged into index.txt with its TOC (mmap.txt)
// alongside the exported term and document dictionaries. Each build is
// written to its own generation directory and published through CURRENT.
package indexer

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/dictionary"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/fsutil"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/metrics"
)

// Artifact file names inside a generation directory.
const (
	TermsFile = "terms.txt"
	DocsFile  = "docs.txt"
	IndexFile = "index.txt"
	TOCFile   = "mmap.txt"
)

// SkipReason says why a document was left out of the index.
type SkipReason string

const (
	SkipNoURL         SkipReason = "no_url"
	SkipInvalidURL    SkipReason = "invalid_url"
	SkipDuplicate     SkipReason = "duplicate"
	SkipEmpty         SkipReason = "empty"
	SkipExtractFailed SkipReason = "extract_failed"
	SkipDecodeFailed  SkipReason = "decode_failed"
)

// Result describes the artifacts published by Finish.
type Result struct {
	// Generation names the directory CURRENT points to after the build.
	Generation string
	Documents  int
	Terms      int
	Segments   int
	Postings   int
	IndexBytes int64
	Skipped    map[SkipReason]int
}

// SkippedTotal is the number of documents skipped for any reason.
func (r Result) SkippedTotal() int {
	n := 0
	for _, c := range r.Skipped {
		n += c
	}
	return n
}

// Builder owns all mutable state of one build. It is single-writer and must
// be discarded after Finish.
type Builder struct {
	cfg      config.IndexerConfig
	terms    *dictionary.Terms
	docs     *dictionary.Docs
	acc      *index.Accumulator
	writer   *segment.Writer
	segments []string
	skipped  map[SkipReason]int
	metrics  *metrics.Metrics
	logger   *slog.Logger
	finished bool
}

// NewBuilder prepares the data and segment directories. Segments left over
// from an interrupted build are removed. m may be nil.
func NewBuilder(cfg config.IndexerConfig, m *metrics.Metrics) (*Builder, error) {
	if cfg.FlushEvery <= 0 {
		return nil, fmt.Errorf("flush threshold must be positive, got %d", cfg.FlushEvery)
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating index data directory: %w", err)
	}
	segDir := cfg.SegmentPath()
	if err := os.MkdirAll(segDir, 0755); err != nil {
		return nil, fmt.Errorf("creating segment directory: %w", err)
	}
	b := &Builder{
		cfg:     cfg,
		terms:   dictionary.NewTerms(),
		docs:    dictionary.NewDocs(),
		acc:     index.NewAccumulator(),
		writer:  segment.NewWriter(segDir),
		skipped: make(map[SkipReason]int),
		metrics: m,
		logger:  slog.Default().With("component", "indexer"),
	}
	if err := b.removeStaleSegments(); err != nil {
		return nil, err
	}
	return b, nil
}

// Observe adds one document. It reports the reason when the document is
// skipped; an empty reason means the document was indexed. A URL seen
// before keeps its first id and its content is not indexed again.
func (b *Builder) Observe(url string, tokens []string) (SkipReason, error) {
	if b.finished {
		return "", errors.New("builder already finished")
	}
	url = strings.TrimSpace(url)
	if url == "" {
		b.Skip(SkipNoURL)
		return SkipNoURL, nil
	}
	// docs.txt holds one document per line.
	if strings.ContainsAny(url, "\r\n") {
		b.Skip(SkipInvalidURL)
		b.logger.Debug("document with multi-line url skipped", "url", url)
		return SkipInvalidURL, nil
	}
	if _, seen := b.docs.Lookup(url); seen {
		b.Skip(SkipDuplicate)
		b.logger.Debug("duplicate document skipped", "url", url)
		return SkipDuplicate, nil
	}
	if len(tokens) == 0 {
		b.Skip(SkipEmpty)
		b.logger.Debug("empty document skipped", "url", url)
		return SkipEmpty, nil
	}

	freqs := make(map[uint32]int, len(tokens))
	for _, tok := range tokens {
		freqs[b.terms.Assign(tok)]++
	}
	docID, _ := b.docs.Assign(url)
	b.acc.Add(docID, freqs)
	if b.metrics != nil {
		b.metrics.DocsIndexedTotal.Inc()
	}

	if b.acc.DocCount() >= b.cfg.FlushEvery {
		if err := b.Flush(); err != nil {
			return "", fmt.Errorf("flushing partial index: %w", err)
		}
	}
	return "", nil
}

// Skip records a document rejected before it reached Observe.
func (b *Builder) Skip(reason SkipReason) {
	b.skipped[reason]++
	if b.metrics != nil {
		b.metrics.DocsSkippedTotal.WithLabelValues(string(reason)).Inc()
	}
}

// Flush weights the current batch with its own statistics and writes it as
// the next segment. The accumulator is cleared only after the segment is on
// disk. Flushing an empty batch is a no-op.
func (b *Builder) Flush() error {
	if b.acc.DocCount() == 0 {
		return nil
	}
	start := time.Now()
	entries, err := b.acc.Weighted()
	if err != nil {
		b.observeFlush("error", start)
		return fmt.Errorf("weighting batch: %w", err)
	}
	path, err := b.writer.Write(entries)
	if err != nil {
		b.observeFlush("error", start)
		return fmt.Errorf("writing segment: %w", err)
	}
	b.segments = append(b.segments, path)
	b.logger.Info("segment flushed",
		"segment", filepath.Base(path),
		"docs", b.acc.DocCount(),
		"terms", len(entries),
		"postings", b.acc.Size(),
		"segments", len(b.segments),
	)
	b.acc.Reset()
	b.observeFlush("success", start)
	return nil
}

func (b *Builder) observeFlush(status string, start time.Time) {
	if b.metrics == nil {
		return
	}
	b.metrics.SegmentFlushesTotal.WithLabelValues(status).Inc()
	b.metrics.SegmentFlushDuration.Observe(time.Since(start).Seconds())
}

// Finish flushes the last batch, merges all segments and publishes the four
// artifacts. They are written into a fresh generation directory that no
// reader can see; rewriting CURRENT to name it is the single step that
// publishes the build. On failure the generation directory is removed and
// the previously published index stays current. Segments are removed only
// after publication succeeds.
func (b *Builder) Finish() (Result, error) {
	if b.finished {
		return Result{}, errors.New("builder already finished")
	}
	b.finished = true
	if err := b.Flush(); err != nil {
		return Result{}, fmt.Errorf("final flush: %w", err)
	}

	// An unreadable CURRENT is replaced by this build.
	prev, err := currentGeneration(b.cfg.DataDir)
	if err != nil {
		b.logger.Warn("ignoring unreadable publication pointer", "error", err)
	}
	gen, err := nextGeneration(b.cfg.DataDir)
	if err != nil {
		return Result{}, err
	}
	genDir := filepath.Join(b.cfg.DataDir, gen)

	ms, mergeTime, err := b.writeGeneration(genDir)
	if err == nil {
		err = publishGeneration(b.cfg.DataDir, gen)
	}
	if err != nil {
		if rmErr := os.RemoveAll(genDir); rmErr != nil {
			b.logger.Warn("removing unpublished generation", "generation", gen, "error", rmErr)
		}
		return Result{}, err
	}

	b.logger.Info("index published",
		"dir", b.cfg.DataDir,
		"generation", gen,
		"docs", b.docs.Len(),
		"terms", b.terms.Len(),
		"segments", len(b.segments),
		"index_bytes", ms.Bytes,
		"merge_ms", mergeTime.Milliseconds(),
	)
	pruneGenerations(b.cfg.DataDir, map[string]bool{gen: true, prev: true}, b.logger)
	b.removeSegments()

	if b.metrics != nil {
		b.metrics.IndexTerms.Set(float64(b.terms.Len()))
		b.metrics.IndexDocs.Set(float64(b.docs.Len()))
	}
	skipped := make(map[SkipReason]int, len(b.skipped))
	for k, v := range b.skipped {
		skipped[k] = v
	}
	return Result{
		Generation: gen,
		Documents:  b.docs.Len(),
		Terms:      b.terms.Len(),
		Segments:   len(b.segments),
		Postings:   ms.Postings,
		IndexBytes: ms.Bytes,
		Skipped:    skipped,
	}, nil
}

// writeGeneration writes docs, terms, index and TOC into dir. Each file is
// staged and renamed into place, so a generation directory left behind by a
// crash never holds a truncated artifact under its final name.
func (b *Builder) writeGeneration(dir string) (segment.MergeStats, time.Duration, error) {
	var staged []*fsutil.Staged
	abort := func() {
		for _, s := range staged {
			s.Abort()
		}
	}
	stage := func(name string) (*fsutil.Staged, error) {
		s, err := fsutil.Create(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		staged = append(staged, s)
		return s, nil
	}
	fail := func(err error) (segment.MergeStats, time.Duration, error) {
		abort()
		return segment.MergeStats{}, 0, err
	}

	docsOut, err := stage(DocsFile)
	if err != nil {
		return fail(err)
	}
	if err := dictionary.WriteDocs(docsOut, b.docs); err != nil {
		return fail(fmt.Errorf("exporting documents: %w", err))
	}
	termsOut, err := stage(TermsFile)
	if err != nil {
		return fail(err)
	}
	if err := dictionary.WriteTerms(termsOut, b.terms); err != nil {
		return fail(fmt.Errorf("exporting terms: %w", err))
	}

	indexOut, err := stage(IndexFile)
	if err != nil {
		return fail(err)
	}
	mergeStart := time.Now()
	toc, ms, err := segment.MergeFiles(b.segments, indexOut)
	if err != nil {
		return fail(fmt.Errorf("merging segments: %w", err))
	}
	mergeTime := time.Since(mergeStart)
	if b.metrics != nil {
		b.metrics.MergeDuration.Observe(mergeTime.Seconds())
	}
	if len(toc) != b.terms.Len() {
		return fail(fmt.Errorf("merged %d terms but dictionary holds %d", len(toc), b.terms.Len()))
	}

	tocOut, err := stage(TOCFile)
	if err != nil {
		return fail(err)
	}
	if _, err := toc.WriteTo(tocOut); err != nil {
		return fail(err)
	}

	for _, s := range staged {
		if err := s.Commit(); err != nil {
			return fail(err)
		}
	}
	return ms, mergeTime, nil
}

func (b *Builder) removeSegments() {
	for _, p := range b.segments {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			b.logger.Warn("removing merged segment", "segment", p, "error", err)
		}
	}
}

func (b *Builder) removeStaleSegments() error {
	entries, err := os.ReadDir(b.writer.Dir())
	if err != nil {
		return fmt.Errorf("reading segment directory: %w", err)
	}
	var stale []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(name, segment.Ext) || strings.HasSuffix(name, segment.Ext+".tmp") {
			stale = append(stale, name)
		}
	}
	sort.Strings(stale)
	for _, name := range stale {
		if err := os.Remove(filepath.Join(b.writer.Dir(), name)); err != nil {
			return fmt.Errorf("removing stale segment %s: %w", name, err)
		}
	}
	if len(stale) > 0 {
		b.logger.Info("removed stale segments", "count", len(stale))
	}
	return nil
}
