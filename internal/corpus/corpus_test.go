package corpus

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWalk(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b", "2.json"), `{"url":"http://b","content":"<p>b</p>"}`)
	writeFile(t, filepath.Join(dir, "a", "1.json"), `{"url":"  http://a  ","content":"<p>a</p>"}`)
	writeFile(t, filepath.Join(dir, "a", "broken.json"), `{"url":`)
	writeFile(t, filepath.Join(dir, "notes.txt"), `ignored`)

	var got []Record
	stats, err := Walk(context.Background(), dir, func(r Record) error {
		got = append(got, r)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if stats.Files != 3 || stats.Malformed != 1 {
		t.Errorf("stats = %+v, want 3 files 1 malformed", stats)
	}
	if len(got) != 2 {
		t.Fatalf("records = %d, want 2", len(got))
	}
	if got[0].URL != "http://a" || got[1].URL != "http://b" {
		t.Errorf("order/trim wrong: %q, %q", got[0].URL, got[1].URL)
	}
}

func TestWalkStopsOnCallbackError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "1.json"), `{"url":"u1","content":"x"}`)
	writeFile(t, filepath.Join(dir, "2.json"), `{"url":"u2","content":"y"}`)
	stop := errors.New("stop")
	calls := 0
	_, err := Walk(context.Background(), dir, func(Record) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("err = %v, want stop", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestWalkMissingDir(t *testing.T) {
	if _, err := Walk(context.Background(), filepath.Join(t.TempDir(), "missing"), func(Record) error { return nil }); err == nil {
		t.Fatal("expected error")
	}
}
