package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/searcher/reload"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/searcher/repl"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/redis"
)

func main() {
	configPath := flag.String("config", "", "path to config file (YAML or TOML)")
	serveOnly := flag.Bool("serve-only", false, "skip the interactive loop and only serve HTTP")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: searcher [-config path] [-serve-only] [data_dir]")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() > 1 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if flag.NArg() == 1 {
		cfg.Indexer.DataDir = flag.Arg(0)
	}
	if *serveOnly && cfg.Server.Port == 0 {
		fmt.Fprintln(os.Stderr, "-serve-only requires server.port")
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg, !*serveOnly); err != nil {
		slog.Error("searcher failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, interactive bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	exec, err := executor.New(cfg.Indexer.DataDir, tokenizer.Tokenize, executor.Options{
		Metrics:  m,
		TraceLog: cfg.Tracing.Enabled,
	})
	if err != nil {
		return fmt.Errorf("loading index from %s: %w", cfg.Indexer.DataDir, err)
	}
	defer exec.Close()
	st := exec.Stats()
	slog.Info("index loaded", "dir", st.Dir, "terms", st.Terms, "documents", st.Documents, "mapped", st.Mapped)

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		s := exec.Stats()
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("generation %d, %d terms, %d documents", s.Generation, s.Terms, s.Documents),
		}
	})

	var (
		searcher    handler.Searcher = exec
		invalidator handler.Invalidator
	)
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache := cache.New(redisClient, exec, tokenizer.Tokenize, cfg.Redis.CacheTTL.Duration, m)
			searcher = queryCache
			invalidator = queryCache
			checker.RegisterOptional("redis", health.FromError(redisClient.Ping))
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL.Duration)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Kafka.Enabled {
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete, reload.HandleMessage(exec, invalidator, reload.DefaultRetry))
		listener := reload.New(consumer)
		g.Go(func() error { return listener.Start(gctx) })
	}

	if cfg.Server.Port > 0 {
		server := newServer(cfg, m, handler.New(searcher, exec, invalidator, cfg.Search.DefaultLimit, cfg.Search.MaxResults), checker)
		g.Go(func() error {
			slog.Info("search service listening", "addr", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	if interactive {
		loop := repl.New(searcher, os.Stdin, os.Stdout, repl.Options{
			Limit:       cfg.Search.DefaultLimit,
			ShowTimings: cfg.Search.ShowTimings,
			Timeout:     cfg.Search.QueryTimeout.Duration,
		})
		g.Go(func() error {
			err := loop.Run(gctx)
			// Without an HTTP API there is nothing left to serve.
			if cfg.Server.Port == 0 {
				stop()
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("search service stopped")
	return nil
}

func newServer(cfg *config.Config, m *metrics.Metrics, h *handler.Handler, checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	h.Routes(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.RequestID(chain)
	chain = middleware.Timeout(cfg.Server.WriteTimeout.Duration)(chain)
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}
}
