// Package notify announces published builds so that running searchers can
// reload.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/events"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/resilience"
)

// Publisher writes one keyed event. *kafka.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, key string, value any) error
}

// Notifier publishes IndexComplete events with retry. A Notifier without a
// Publisher does nothing.
type Notifier struct {
	pub    Publisher
	retry  resilience.RetryConfig
	logger *slog.Logger
}

func New(pub Publisher) *Notifier {
	return &Notifier{
		pub: pub,
		retry: resilience.RetryConfig{
			MaxAttempts:  4,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     2 * time.Second,
		},
		logger: slog.Default().With("component", "notify"),
	}
}

// IndexComplete publishes the event for stats, keyed by the absolute data
// directory so that all events for one index land on the same partition.
func (n *Notifier) IndexComplete(ctx context.Context, stats *indexer.Stats) error {
	if n == nil || n.pub == nil {
		return nil
	}
	dataDir, err := filepath.Abs(stats.DataDir)
	if err != nil {
		dataDir = stats.DataDir
	}
	ev := events.IndexComplete{
		BuildID:     stats.BuildID,
		DataDir:     dataDir,
		Documents:   stats.Documents,
		Terms:       stats.Terms,
		IndexBytes:  stats.IndexBytes,
		CompletedAt: time.Now().UTC(),
	}
	err = resilience.Retry(ctx, "publish-index-complete", n.retry, func() error {
		return n.pub.Publish(ctx, dataDir, ev)
	})
	if err != nil {
		return fmt.Errorf("announcing build %s: %w", stats.BuildID, err)
	}
	n.logger.Info("build announced", "build_id", stats.BuildID, "data_dir", dataDir)
	return nil
}
