package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer"
)

func TestNilStoreIsNoop(t *testing.T) {
	var s *Store
	ctx := context.Background()
	if err := s.EnsureSchema(ctx); err != nil {
		t.Errorf("EnsureSchema: %v", err)
	}
	if err := s.Start(ctx, "id", "corpus", "data", time.Now()); err != nil {
		t.Errorf("Start: %v", err)
	}
	if err := s.Complete(ctx, &indexer.Stats{BuildID: "id"}); err != nil {
		t.Errorf("Complete: %v", err)
	}
	if err := s.Fail(ctx, "id", errors.New("boom")); err != nil {
		t.Errorf("Fail: %v", err)
	}
	builds, err := s.Recent(ctx, 10)
	if err != nil || builds != nil {
		t.Errorf("Recent = %v, %v", builds, err)
	}
}
