package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/history"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/notify"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/verify"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/postgres"
	"github.com/google/uuid"
)

const usage = `usage: indexer [-config path] build <corpus_dir>
       indexer [-config path] verify <data_dir>
       indexer [-config path] history [limit]
`

func main() {
	configPath := flag.String("config", "", "path to config file (YAML or TOML)")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case args[0] == "build" && len(args) == 2:
		err = runBuild(ctx, cfg, args[1], os.Stdout)
	case args[0] == "verify" && len(args) == 2:
		err = runVerify(args[1], os.Stdout)
	case args[0] == "history" && len(args) <= 2:
		limit := 10
		if len(args) == 2 {
			if limit, err = strconv.Atoi(args[1]); err != nil || limit < 1 {
				flag.Usage()
				os.Exit(1)
			}
		}
		err = runHistory(ctx, cfg, limit, os.Stdout)
	default:
		flag.Usage()
		os.Exit(1)
	}
	if err != nil {
		slog.Error("indexer failed", "command", args[0], "error", err)
		stop()
		os.Exit(1)
	}
}

func runBuild(ctx context.Context, cfg *config.Config, corpusDir string, out io.Writer) error {
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdown, err := metrics.StartServer(cfg.Metrics.Port)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
	}

	builds, closeHistory := openHistory(ctx, cfg.Postgres)
	defer closeHistory()

	var pub notify.Publisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		defer producer.Close()
		pub = producer
		slog.Info("build events enabled", "topic", producer.Topic(), "brokers", cfg.Kafka.Brokers)
	}
	notifier := notify.New(pub)

	buildID := uuid.NewString()
	if err := builds.Start(ctx, buildID, corpusDir, cfg.Indexer.DataDir, time.Now()); err != nil {
		slog.Warn("build history unavailable", "error", err)
	}

	stats, err := indexer.NewPipeline(cfg.Indexer, m).WithBuildID(buildID).Run(ctx, corpusDir)
	if err != nil {
		if herr := builds.Fail(context.WithoutCancel(ctx), buildID, err); herr != nil {
			slog.Warn("recording failed build", "error", herr)
		}
		return fmt.Errorf("building index from %s: %w", corpusDir, err)
	}
	if err := builds.Complete(ctx, stats); err != nil {
		slog.Warn("recording completed build", "error", err)
	}
	if err := notifier.IndexComplete(ctx, stats); err != nil {
		slog.Warn("index complete event not delivered", "error", err)
	}

	printStats(out, stats)
	return nil
}

// openHistory connects to PostgreSQL when enabled. Any failure leaves a nil
// store, which records nothing.
func openHistory(ctx context.Context, cfg config.PostgresConfig) (*history.Store, func()) {
	if !cfg.Enabled {
		return nil, func() {}
	}
	client, err := postgres.New(ctx, cfg)
	if err != nil {
		slog.Warn("postgres unavailable, build history disabled", "error", err)
		return nil, func() {}
	}
	store := history.New(client)
	if err := store.EnsureSchema(ctx); err != nil {
		slog.Warn("build history schema", "error", err)
		client.Close()
		return nil, func() {}
	}
	return store, func() { client.Close() }
}

func printStats(out io.Writer, s *indexer.Stats) {
	fmt.Fprintf(out, "build %s complete in %s\n", s.BuildID, s.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "  files read:         %d\n", s.Files)
	fmt.Fprintf(out, "  documents indexed:  %d\n", s.Documents)
	fmt.Fprintf(out, "  documents skipped:  %d%s\n", s.SkippedTotal(), skipDetail(s.Skipped))
	fmt.Fprintf(out, "  unique terms:       %d\n", s.Terms)
	fmt.Fprintf(out, "  segments merged:    %d\n", s.Segments)
	fmt.Fprintf(out, "  postings:           %d\n", s.Postings)
	fmt.Fprintf(out, "  index size:         %.1f KB\n", s.IndexKB())
	for _, phase := range []string{"ingest", "merge"} {
		if d, ok := s.Phases[phase]; ok {
			fmt.Fprintf(out, "  %-19s %s\n", phase+" time:", d.Round(time.Millisecond))
		}
	}
	fmt.Fprintf(out, "  output:             %s\n", filepath.Join(s.DataDir, s.Generation))
}

func skipDetail(skipped map[indexer.SkipReason]int) string {
	if len(skipped) == 0 {
		return ""
	}
	parts := make([]string, 0, len(skipped))
	for reason, n := range skipped {
		parts = append(parts, fmt.Sprintf("%s=%d", reason, n))
	}
	sort.Strings(parts)
	return " (" + strings.Join(parts, " ") + ")"
}

func runVerify(dataDir string, out io.Writer) error {
	report, err := verify.Dir(dataDir)
	if report != nil {
		fmt.Fprintf(out, "%s: %d terms, %d docs, %d lines, %d postings, %d docs referenced\n",
			report.Root, report.Terms, report.Docs, report.Lines, report.Postings, report.ReferencedDocs)
		for _, p := range report.Problems {
			fmt.Fprintf(out, "  problem: %s\n", p)
		}
		if n := report.Truncated(); n > 0 {
			fmt.Fprintf(out, "  ... and %d more\n", n)
		}
		if report.OK() {
			fmt.Fprintln(out, "  ok")
		}
	}
	return err
}

func runHistory(ctx context.Context, cfg *config.Config, limit int, out io.Writer) error {
	if !cfg.Postgres.Enabled {
		return errors.New("build history requires postgres.enabled")
	}
	client, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer client.Close()

	builds, err := history.New(client).Recent(ctx, limit)
	if err != nil {
		return err
	}
	for _, b := range builds {
		fmt.Fprintf(out, "%s  %-9s  %s  docs=%d skipped=%d terms=%d segments=%d bytes=%d  %s -> %s\n",
			b.StartedAt.Format(time.RFC3339), b.Status, b.ID,
			b.Documents, b.Skipped, b.Terms, b.Segments, b.IndexBytes,
			b.CorpusDir, b.DataDir)
		if b.Error != "" {
			fmt.Fprintf(out, "    error: %s\n", b.Error)
		}
	}
	return nil
}
