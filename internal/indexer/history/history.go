// Package history records build runs in PostgreSQL. A nil *Store is valid
// and records nothing, so callers need not branch on whether PostgreSQL is
// configured.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/postgres"
)

// Status is the lifecycle state of a build row.
type Status string

const (
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

const schema = `
CREATE TABLE IF NOT EXISTS index_builds (
	id           UUID PRIMARY KEY,
	corpus_dir   TEXT NOT NULL,
	data_dir     TEXT NOT NULL,
	status       TEXT NOT NULL,
	documents    INTEGER NOT NULL DEFAULT 0,
	skipped      INTEGER NOT NULL DEFAULT 0,
	terms        INTEGER NOT NULL DEFAULT 0,
	segments     INTEGER NOT NULL DEFAULT 0,
	index_bytes  BIGINT NOT NULL DEFAULT 0,
	error        TEXT,
	started_at   TIMESTAMPTZ NOT NULL,
	finished_at  TIMESTAMPTZ
)`

const statusIndex = `CREATE INDEX IF NOT EXISTS index_builds_started_at_idx ON index_builds (started_at DESC)`

// Build is one row of history.
type Build struct {
	ID         string
	CorpusDir  string
	DataDir    string
	Status     Status
	Documents  int
	Skipped    int
	Terms      int
	Segments   int
	IndexBytes int64
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

type Store struct {
	client *postgres.Client
	logger *slog.Logger
}

func New(client *postgres.Client) *Store {
	return &Store{
		client: client,
		logger: slog.Default().With("component", "build-history"),
	}
}

// EnsureSchema creates the history table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.client.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("creating index_builds: %w", err)
		}
		if _, err := tx.ExecContext(ctx, statusIndex); err != nil {
			return fmt.Errorf("creating index_builds index: %w", err)
		}
		return nil
	})
}

// Start inserts a RUNNING row for buildID.
func (s *Store) Start(ctx context.Context, buildID, corpusDir, dataDir string, startedAt time.Time) error {
	if s == nil {
		return nil
	}
	_, err := s.client.DB.ExecContext(ctx,
		`INSERT INTO index_builds (id, corpus_dir, data_dir, status, started_at) VALUES ($1, $2, $3, $4, $5)`,
		buildID, corpusDir, dataDir, string(StatusRunning), startedAt,
	)
	if err != nil {
		return fmt.Errorf("recording build start: %w", err)
	}
	return nil
}

// Complete marks a build COMPLETED with its statistics.
func (s *Store) Complete(ctx context.Context, stats *indexer.Stats) error {
	if s == nil {
		return nil
	}
	_, err := s.client.DB.ExecContext(ctx,
		`UPDATE index_builds
		 SET status = $2, documents = $3, skipped = $4, terms = $5, segments = $6,
		     index_bytes = $7, finished_at = NOW()
		 WHERE id = $1`,
		stats.BuildID, string(StatusCompleted), stats.Documents, stats.SkippedTotal(),
		stats.Terms, stats.Segments, stats.IndexBytes,
	)
	if err != nil {
		return fmt.Errorf("recording build completion: %w", err)
	}
	s.logger.Info("build recorded", "build_id", stats.BuildID, "status", StatusCompleted)
	return nil
}

// Fail marks a build FAILED with the error text.
func (s *Store) Fail(ctx context.Context, buildID string, cause error) error {
	if s == nil {
		return nil
	}
	_, err := s.client.DB.ExecContext(ctx,
		`UPDATE index_builds SET status = $2, error = $3, finished_at = NOW() WHERE id = $1`,
		buildID, string(StatusFailed), cause.Error(),
	)
	if err != nil {
		return fmt.Errorf("recording build failure: %w", err)
	}
	s.logger.Info("build recorded", "build_id", buildID, "status", StatusFailed)
	return nil
}

// Recent returns up to limit builds, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Build, error) {
	if s == nil {
		return nil, nil
	}
	rows, err := s.client.DB.QueryContext(ctx,
		`SELECT id, corpus_dir, data_dir, status, documents, skipped, terms, segments,
		        index_bytes, COALESCE(error, ''), started_at, finished_at
		 FROM index_builds ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying build history: %w", err)
	}
	defer rows.Close()

	var builds []Build
	for rows.Next() {
		var b Build
		var status string
		var finished sql.NullTime
		if err := rows.Scan(&b.ID, &b.CorpusDir, &b.DataDir, &status, &b.Documents, &b.Skipped,
			&b.Terms, &b.Segments, &b.IndexBytes, &b.Error, &b.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("scanning build row: %w", err)
		}
		b.Status = Status(status)
		if finished.Valid {
			t := finished.Time
			b.FinishedAt = &t
		}
		builds = append(builds, b)
	}
	return builds, rows.Err()
}
