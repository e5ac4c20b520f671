// Package executor runs queries against the current index snapshot:
// resolve, fetch, intersect, rank. Snapshots can be swapped at runtime
// without interrupting in-flight queries.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/searcher/fetcher"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/searcher/intersect"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/searcher/resolver"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/searcher/snapshot"
	apperrors "github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/tracing"
)

var errClosed = apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "executor closed")

// Query stages, in execution order.
const (
	StageResolve   = "resolve"
	StageFetch     = "fetch"
	StageIntersect = "intersect"
	StageRank      = "rank"
)

// Stages lists the query stages in execution order.
var Stages = []string{StageResolve, StageFetch, StageIntersect, StageRank}

type SearchResult struct {
	Query      string             `json:"query"`
	Terms      []string           `json:"terms"`
	Unknown    []string           `json:"unknown_terms,omitempty"`
	TotalHits  int                `json:"total_hits"`
	Results    []ranker.ScoredDoc `json:"results"`
	Generation uint64             `json:"generation"`
	Timings    map[string]float64 `json:"timings_ms,omitempty"`
}

// Empty reports whether the query matched nothing.
func (r *SearchResult) Empty() bool {
	return len(r.Results) == 0
}

type Executor struct {
	mu        sync.RWMutex
	reloadMu  sync.Mutex
	snap      *snapshot.Snapshot
	closed    bool
	dir       string
	normalize resolver.Normalizer
	metrics   *metrics.Metrics
	traceLog  bool
	logger    *slog.Logger
}

// Options configure an Executor. Metrics may be nil.
type Options struct {
	Metrics *metrics.Metrics
	// TraceLog writes each query's span tree at debug level.
	TraceLog bool
}

// New loads the index in dir as generation 1.
func New(dir string, normalize resolver.Normalizer, opts Options) (*Executor, error) {
	snap, err := snapshot.Open(dir, 1)
	if err != nil {
		return nil, err
	}
	e := &Executor{
		snap:      snap,
		dir:       dir,
		normalize: normalize,
		metrics:   opts.Metrics,
		traceLog:  opts.TraceLog,
		logger:    slog.Default().With("component", "query-executor"),
	}
	e.publishGauges(snap)
	return e, nil
}

// Search answers query with up to limit results. A query with no known
// terms, or whose terms share no document, yields an empty result.
func (e *Executor) Search(ctx context.Context, query string, limit int) (*SearchResult, error) {
	start := time.Now()
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, errClosed
	}
	snap := e.snap

	ctx, root := tracing.StartSpan(ctx, "search", tracing.NewTraceID())
	root.SetAttr("query", query)
	result, err := e.run(ctx, snap, query, limit)
	root.End()
	if e.traceLog {
		root.Log(logger.FromContext(ctx))
	}

	e.observe(result, err, root, start)
	if err != nil {
		return nil, err
	}
	result.Timings = make(map[string]float64, len(Stages))
	for stage, d := range root.ChildDurations() {
		result.Timings[stage] = float64(d.Microseconds()) / 1000
	}
	return result, nil
}

func (e *Executor) run(ctx context.Context, snap *snapshot.Snapshot, query string, limit int) (*SearchResult, error) {
	result := &SearchResult{
		Query:      query,
		Results:    []ranker.ScoredDoc{},
		Generation: snap.Generation,
	}

	_, span := tracing.StartChildSpan(ctx, StageResolve)
	res := resolver.New(snap.Terms, e.normalize).Resolve(query)
	span.End()
	result.Terms = res.Tokens
	result.Unknown = res.Unknown
	if res.Empty() {
		return result, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Newf(apperrors.ErrTimeout, http.StatusGatewayTimeout, "query %q: %v", query, err)
	}

	_, span = tracing.StartChildSpan(ctx, StageFetch)
	f := fetcher.New(snap.TOC, snap.Index)
	lists := make([]index.PostingList, 0, len(res.TermIDs))
	for _, id := range res.TermIDs {
		pl, err := f.Fetch(id)
		if err != nil {
			span.End()
			return nil, fmt.Errorf("fetching term %d: %w", id, err)
		}
		lists = append(lists, pl)
	}
	span.End()

	_, span = tracing.StartChildSpan(ctx, StageIntersect)
	matches := intersect.All(lists)
	span.End()
	result.TotalHits = len(matches)

	_, span = tracing.StartChildSpan(ctx, StageRank)
	ranked, err := ranker.Rank(matches, limit, snap.Docs)
	span.End()
	if err != nil {
		return nil, err
	}
	result.Results = ranked
	return result, nil
}

func (e *Executor) observe(result *SearchResult, err error, root *tracing.Span, start time.Time) {
	if e.metrics == nil {
		return
	}
	switch {
	case err != nil:
		e.metrics.SearchQueriesTotal.WithLabelValues("error").Inc()
		return
	case result.Empty():
		e.metrics.SearchQueriesTotal.WithLabelValues("zero_result").Inc()
	default:
		e.metrics.SearchQueriesTotal.WithLabelValues("hit").Inc()
	}
	e.metrics.SearchLatency.WithLabelValues("uncached").Observe(time.Since(start).Seconds())
	e.metrics.SearchResultsCount.Observe(float64(len(result.Results)))
	for stage, d := range root.ChildDurations() {
		e.metrics.SearchStageLatency.WithLabelValues(stage).Observe(d.Seconds())
	}
}

// Reload opens the artifacts on disk as the next generation and swaps it
// in. Queries already running finish on the old snapshot, which is closed
// once they have drained. On failure the current snapshot stays in service.
func (e *Executor) Reload() (snapshot.Stats, error) {
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()
	if e.isClosed() {
		return snapshot.Stats{}, errClosed
	}
	next, err := snapshot.Open(e.dir, e.Generation()+1)
	if err != nil {
		e.countReload("error")
		e.logger.Error("reload failed, keeping current index", "dir", e.dir, "error", err)
		return snapshot.Stats{}, err
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		next.Close()
		return snapshot.Stats{}, errClosed
	}
	old := e.snap
	e.snap = next
	e.mu.Unlock()

	if err := old.Close(); err != nil {
		e.logger.Warn("closing previous snapshot", "generation", old.Generation, "error", err)
	}
	e.countReload("success")
	e.publishGauges(next)
	e.logger.Info("index reloaded", "generation", next.Generation)
	return next.Stats(), nil
}

func (e *Executor) countReload(status string) {
	if e.metrics != nil {
		e.metrics.IndexReloadsTotal.WithLabelValues(status).Inc()
	}
}

func (e *Executor) publishGauges(s *snapshot.Snapshot) {
	if e.metrics == nil {
		return
	}
	e.metrics.IndexTerms.Set(float64(s.Terms.Len()))
	e.metrics.IndexDocs.Set(float64(s.Docs.Len()))
}

// Generation is the generation of the snapshot currently served.
func (e *Executor) Generation() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snap.Generation
}

// Dir is the data directory the executor serves.
func (e *Executor) Dir() string {
	return e.dir
}

func (e *Executor) Stats() snapshot.Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snap.Stats()
}

func (e *Executor) isClosed() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.closed
}

// Close waits for running queries and unmaps the index. Later searches and
// reloads fail with ErrUnavailable.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.snap.Close()
}
