package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/extract"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/tracing"
	"github.com/google/uuid"
)

// Extractor turns a raw document payload into plain text.
type Extractor func(raw []byte) (string, error)

// Normalizer turns text into the ordered token stream that is indexed.
type Normalizer func(text string) []string

// Stats summarises one build run.
type Stats struct {
	BuildID   string
	CorpusDir string
	DataDir   string
	StartedAt time.Time
	Duration  time.Duration
	Files     int
	Phases    map[string]time.Duration
	Result
}

// IndexKB is the size of index.txt in kilobytes.
func (s *Stats) IndexKB() float64 {
	return float64(s.IndexBytes) / 1024
}

// Pipeline wires corpus ingestion, extraction and normalization into a
// Builder.
type Pipeline struct {
	cfg       config.IndexerConfig
	extract   Extractor
	normalize Normalizer
	buildID   string
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewPipeline returns a pipeline using the HTML extractor and the standard
// tokenizer. m may be nil.
func NewPipeline(cfg config.IndexerConfig, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		extract:   extract.Text,
		normalize: tokenizer.Tokenize,
		metrics:   m,
		logger:    slog.Default().With("component", "build-pipeline"),
	}
}

// WithExtractor replaces the content extractor.
func (p *Pipeline) WithExtractor(fn Extractor) *Pipeline {
	p.extract = fn
	return p
}

// WithNormalizer replaces the token normalizer.
func (p *Pipeline) WithNormalizer(fn Normalizer) *Pipeline {
	p.normalize = fn
	return p
}

// WithBuildID fixes the id of the next run instead of generating one.
func (p *Pipeline) WithBuildID(id string) *Pipeline {
	p.buildID = id
	return p
}

// Run builds the index for every record under corpusDir. Documents are
// processed one at a time in lexical file order.
func (p *Pipeline) Run(ctx context.Context, corpusDir string) (*Stats, error) {
	buildID := p.buildID
	if buildID == "" {
		buildID = uuid.NewString()
	}
	stats := &Stats{
		BuildID:   buildID,
		CorpusDir: corpusDir,
		DataDir:   p.cfg.DataDir,
		StartedAt: time.Now(),
	}
	ctx, root := tracing.StartSpan(ctx, "build", stats.BuildID)
	defer func() {
		root.End()
		root.Log(p.logger)
	}()

	b, err := NewBuilder(p.cfg, p.metrics)
	if err != nil {
		return nil, err
	}
	p.logger.Info("build started",
		"build_id", stats.BuildID,
		"corpus", corpusDir,
		"data_dir", p.cfg.DataDir,
		"flush_every", p.cfg.FlushEvery,
	)

	_, ingest := tracing.StartChildSpan(ctx, "ingest")
	ws, err := corpus.Walk(ctx, corpusDir, func(rec corpus.Record) error {
		return p.observe(b, rec)
	})
	ingest.End()
	if err != nil {
		return nil, err
	}
	for i := 0; i < ws.Malformed; i++ {
		b.Skip(SkipDecodeFailed)
	}
	stats.Files = ws.Files

	_, publish := tracing.StartChildSpan(ctx, "merge")
	res, err := b.Finish()
	publish.End()
	if err != nil {
		return nil, err
	}
	stats.Result = res
	stats.Duration = time.Since(stats.StartedAt)
	stats.Phases = root.ChildDurations()

	p.logger.Info("build complete",
		"build_id", stats.BuildID,
		"generation", res.Generation,
		"files", stats.Files,
		"docs", res.Documents,
		"skipped", res.SkippedTotal(),
		"terms", res.Terms,
		"segments", res.Segments,
		"index_kb", fmt.Sprintf("%.1f", stats.IndexKB()),
		"duration_ms", stats.Duration.Milliseconds(),
	)
	return stats, nil
}

func (p *Pipeline) observe(b *Builder, rec corpus.Record) error {
	if rec.URL == "" {
		b.Skip(SkipNoURL)
		p.logger.Warn("document without url skipped", "path", rec.Path)
		return nil
	}
	text, err := p.extract([]byte(rec.Content))
	if err != nil {
		if errors.Is(err, extract.ErrNoContent) {
			text = ""
		} else {
			b.Skip(SkipExtractFailed)
			p.logger.Warn("content extraction failed", "url", rec.URL, "path", rec.Path, "error", err)
			return nil
		}
	}
	reason, err := b.Observe(rec.URL, p.normalize(text))
	if err != nil {
		return err
	}
	if reason != "" {
		p.logger.Debug("document skipped", "url", rec.URL, "reason", reason)
	}
	return nil
}
