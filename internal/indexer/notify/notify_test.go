package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/events"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer"
)

type fakePublisher struct {
	failures int
	calls    int
	keys     []string
	values   []any
}

func (f *fakePublisher) Publish(_ context.Context, key string, value any) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("broker unavailable")
	}
	f.keys = append(f.keys, key)
	f.values = append(f.values, value)
	return nil
}

func testStats(dir string) *indexer.Stats {
	return &indexer.Stats{
		BuildID: "build-1",
		DataDir: dir,
		Result:  indexer.Result{Documents: 2, Terms: 3, IndexBytes: 40},
	}
}

func TestIndexCompleteRetries(t *testing.T) {
	pub := &fakePublisher{failures: 1}
	n := New(pub)
	n.retry.InitialDelay = time.Millisecond
	n.retry.MaxDelay = time.Millisecond

	dir := t.TempDir()
	if err := n.IndexComplete(context.Background(), testStats(dir)); err != nil {
		t.Fatalf("IndexComplete: %v", err)
	}
	if pub.calls != 2 {
		t.Errorf("calls = %d, want 2", pub.calls)
	}
	ev, ok := pub.values[0].(events.IndexComplete)
	if !ok {
		t.Fatalf("value type %T", pub.values[0])
	}
	if ev.BuildID != "build-1" || ev.Documents != 2 || ev.Terms != 3 {
		t.Errorf("event = %+v", ev)
	}
	if pub.keys[0] != ev.DataDir {
		t.Errorf("key %q != data dir %q", pub.keys[0], ev.DataDir)
	}
}

func TestIndexCompleteGivesUp(t *testing.T) {
	pub := &fakePublisher{failures: 100}
	n := New(pub)
	n.retry.InitialDelay = time.Millisecond
	n.retry.MaxDelay = time.Millisecond
	if err := n.IndexComplete(context.Background(), testStats(t.TempDir())); err == nil {
		t.Error("expected error")
	}
	if pub.calls != n.retry.MaxAttempts {
		t.Errorf("calls = %d, want %d", pub.calls, n.retry.MaxAttempts)
	}
}

func TestNilPublisher(t *testing.T) {
	if err := New(nil).IndexComplete(context.Background(), testStats("x")); err != nil {
		t.Errorf("err = %v", err)
	}
	var n *Notifier
	if err := n.IndexComplete(context.Background(), testStats("x")); err != nil {
		t.Errorf("nil notifier err = %v", err)
	}
}
