package reload

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/events"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/searcher/snapshot"
	apperrors "github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/resilience"
)

type fakeIndex struct {
	dir      string
	reloads  int
	attempts int
	// failures is how many calls fail with err before Reload succeeds;
	// negative fails every call.
	failures int
	err      error
}

func (f *fakeIndex) Dir() string { return f.dir }

func (f *fakeIndex) Reload() (snapshot.Stats, error) {
	f.attempts++
	if f.failures != 0 {
		f.failures--
		return snapshot.Stats{}, f.err
	}
	f.reloads++
	return snapshot.Stats{Generation: uint64(f.reloads + 1)}, nil
}

type fakeCache struct{ calls int }

func (f *fakeCache) Invalidate(context.Context) error {
	f.calls++
	return nil
}

var fastRetry = resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond}

func encode(t *testing.T, dir string) []byte {
	t.Helper()
	b, err := json.Marshal(events.IndexComplete{BuildID: "b1", DataDir: dir, CompletedAt: time.Now()})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestHandleMessage(t *testing.T) {
	dir := t.TempDir()
	other := t.TempDir()

	tests := []struct {
		name        string
		value       []byte
		wantReloads int
	}{
		{"matching dir", encode(t, dir), 1},
		{"other dir", encode(t, other), 0},
		{"garbage", []byte("{not json"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := &fakeIndex{dir: dir}
			c := &fakeCache{}
			if err := HandleMessage(idx, c, fastRetry)(context.Background(), []byte(dir), tt.value); err != nil {
				t.Fatalf("handler: %v", err)
			}
			if idx.reloads != tt.wantReloads || c.calls != tt.wantReloads {
				t.Errorf("reloads = %d, invalidations = %d, want %d", idx.reloads, c.calls, tt.wantReloads)
			}
		})
	}
}

func TestHandleMessageRelativeDir(t *testing.T) {
	abs, err := filepath.Abs("testdata-index")
	if err != nil {
		t.Fatal(err)
	}
	idx := &fakeIndex{dir: "testdata-index"}
	if err := HandleMessage(idx, nil, fastRetry)(context.Background(), nil, encode(t, abs)); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if idx.reloads != 1 {
		t.Errorf("reloads = %d, want 1", idx.reloads)
	}
}

func TestHandleMessageReloadError(t *testing.T) {
	dir := t.TempDir()
	idx := &fakeIndex{dir: dir, failures: -1, err: errors.New("toc missing")}
	c := &fakeCache{}
	if err := HandleMessage(idx, c, fastRetry)(context.Background(), nil, encode(t, dir)); err == nil {
		t.Fatal("expected error once retries are exhausted")
	}
	if idx.attempts != fastRetry.MaxAttempts {
		t.Errorf("attempts = %d, want %d", idx.attempts, fastRetry.MaxAttempts)
	}
	if c.calls != 0 {
		t.Error("cache invalidated after failed reload")
	}
}

func TestHandleMessageRetriesTransientReloadFailure(t *testing.T) {
	dir := t.TempDir()
	idx := &fakeIndex{
		dir:      dir,
		failures: 1,
		err:      apperrors.Newf(apperrors.ErrNotFound, http.StatusServiceUnavailable, "no published mmap.txt"),
	}
	c := &fakeCache{}
	if err := HandleMessage(idx, c, fastRetry)(context.Background(), nil, encode(t, dir)); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if idx.attempts != 2 || idx.reloads != 1 {
		t.Errorf("attempts = %d, reloads = %d; want 2 and 1", idx.attempts, idx.reloads)
	}
	if c.calls != 1 {
		t.Errorf("invalidations = %d, want 1", c.calls)
	}
}

func TestHandleMessageDoesNotRetryCorruption(t *testing.T) {
	dir := t.TempDir()
	idx := &fakeIndex{dir: dir, failures: -1, err: apperrors.Corruptf("toc has 1 entries but dictionary has 2 terms")}
	err := HandleMessage(idx, nil, fastRetry)(context.Background(), nil, encode(t, dir))
	if !errors.Is(err, apperrors.ErrIndexCorrupted) {
		t.Fatalf("err = %v, want ErrIndexCorrupted", err)
	}
	if idx.attempts != 1 {
		t.Errorf("attempts = %d, want 1", idx.attempts)
	}
}
