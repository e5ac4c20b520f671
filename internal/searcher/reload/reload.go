// Package reload listens for index-complete events and swaps the freshly
// built index into a running searcher.
package reload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/events"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/searcher/snapshot"
	apperrors "github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/resilience"
)

// Index is the part of the executor a reload touches.
type Index interface {
	Dir() string
	Reload() (snapshot.Stats, error)
}

// Invalidator drops cached results.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Listener wraps a Kafka consumer subscribed to index-complete events.
type Listener struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

// New creates a Listener backed by the given Kafka consumer.
func New(consumer *kafka.Consumer) *Listener {
	return &Listener{
		consumer: consumer,
		logger:   slog.Default().With("component", "reload-listener"),
	}
}

// Start consumes events until ctx is cancelled.
func (l *Listener) Start(ctx context.Context) error {
	l.logger.Info("reload listener starting")
	return l.consumer.Start(ctx)
}

// DefaultRetry bounds how long a reload is retried before the event is
// given up on.
var DefaultRetry = resilience.RetryConfig{
	MaxAttempts:  5,
	InitialDelay: 200 * time.Millisecond,
	MaxDelay:     5 * time.Second,
}

// transient reports whether a failed reload may succeed on a later attempt.
// A corrupted index or a closed executor will not.
func transient(err error) bool {
	return !errors.Is(err, apperrors.ErrIndexCorrupted) && !errors.Is(err, apperrors.ErrUnavailable)
}

// HandleMessage returns a MessageHandler that reloads idx when an event
// names the directory it serves. A failed reload is retried with backoff
// per retry before the handler reports the error. Events for other
// directories and undecodable payloads are acknowledged and ignored. cache
// may be nil.
func HandleMessage(idx Index, cache Invalidator, retry resilience.RetryConfig) kafka.MessageHandler {
	retry.ShouldRetry = transient
	logger := slog.Default().With("component", "reload-listener")
	served, err := filepath.Abs(idx.Dir())
	if err != nil {
		served = filepath.Clean(idx.Dir())
	}
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[events.IndexComplete](value)
		if err != nil {
			logger.Error("failed to decode index event", "error", err, "key", string(key))
			return nil
		}
		if filepath.Clean(event.DataDir) != served {
			logger.Debug("ignoring event for another index", "data_dir", event.DataDir, "build_id", event.BuildID)
			return nil
		}

		var stats snapshot.Stats
		err = resilience.Retry(ctx, "index reload", retry, func() error {
			var err error
			stats, err = idx.Reload()
			return err
		})
		if err != nil {
			return fmt.Errorf("reloading index for build %s: %w", event.BuildID, err)
		}
		if cache != nil {
			if err := cache.Invalidate(ctx); err != nil {
				logger.Warn("cache invalidation after reload failed", "error", err)
			}
		}
		logger.Info("index reloaded from event",
			"build_id", event.BuildID,
			"generation", stats.Generation,
			"terms", stats.Terms,
			"documents", stats.Documents,
		)
		return nil
	}
}
