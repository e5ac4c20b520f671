package indexer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/dictionary"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func testConfig(t *testing.T, flushEvery int) config.IndexerConfig {
	t.Helper()
	return config.IndexerConfig{DataDir: t.TempDir(), FlushEvery: flushEvery}
}

func readArtifact(t *testing.T, dataDir, name string) string {
	t.Helper()
	dir, err := ResolveDir(dataDir)
	if err != nil {
		t.Fatalf("ResolveDir: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("reading %s: %v", name, err)
	}
	return string(data)
}

func readCurrent(t *testing.T, dataDir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dataDir, CurrentFile))
	if err != nil {
		t.Fatalf("reading %s: %v", CurrentFile, err)
	}
	return string(data)
}

func TestBuilderSingleBatch(t *testing.T) {
	cfg := testConfig(t, 1000)
	b, err := NewBuilder(cfg, nil)
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	if _, err := b.Observe("http://a", []string{"cat", "dog"}); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Observe("http://b", []string{"cat"}); err != nil {
		t.Fatal(err)
	}
	res, err := b.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if res.Documents != 2 || res.Terms != 2 || res.Segments != 1 {
		t.Errorf("result = %+v", res)
	}

	tests := []struct {
		file string
		want string
	}{
		{DocsFile, "0\thttp://a\n1\thttp://b\n"},
		{TermsFile, "cat\t0\ndog\t1\n"},
		{IndexFile, "0 : 0,0 1,0\n1 : 0,0.69315\n"},
		{TOCFile, "0\t0\n1\t12\n"},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			if got := readArtifact(t, cfg.DataDir, tt.file); got != tt.want {
				t.Errorf("%s = %q, want %q", tt.file, got, tt.want)
			}
		})
	}
}

func TestBuilderFlushesEveryN(t *testing.T) {
	cfg := testConfig(t, 1)
	b, err := NewBuilder(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	b.Observe("http://a", []string{"cat", "dog"})
	b.Observe("http://b", []string{"cat"})
	if got := b.writer.Count(); got != 2 {
		t.Fatalf("segments before finish = %d, want 2", got)
	}
	res, err := b.Finish()
	if err != nil {
		t.Fatal(err)
	}
	if res.Segments != 2 {
		t.Errorf("Segments = %d, want 2", res.Segments)
	}
	// Each batch holds one document, so every weight is ln(1/1) = 0.
	if got := readArtifact(t, cfg.DataDir, IndexFile); got != "0 : 0,0 1,0\n1 : 0,0\n" {
		t.Errorf("index = %q", got)
	}

	entries, err := os.ReadDir(cfg.SegmentPath())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("segment directory not cleaned: %d entries", len(entries))
	}
}

func TestBuilderSkips(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)
	b, err := NewBuilder(testConfig(t, 10), m)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		url    string
		tokens []string
		want   SkipReason
	}{
		{"http://a", []string{"cat"}, ""},
		{"  http://a  ", []string{"dog"}, SkipDuplicate},
		{"", []string{"cat"}, SkipNoURL},
		{"http://a/x\ny", []string{"cat"}, SkipInvalidURL},
		{"http://a/x\ry", []string{"cat"}, SkipInvalidURL},
		{"http://c", nil, SkipEmpty},
		{"http://c", []string{"bird"}, ""},
	}
	for _, tt := range tests {
		got, err := b.Observe(tt.url, tt.tokens)
		if err != nil {
			t.Fatalf("Observe(%q): %v", tt.url, err)
		}
		if got != tt.want {
			t.Errorf("Observe(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
	if b.docs.Len() != 2 {
		t.Errorf("docs = %d, want 2", b.docs.Len())
	}
	if id, _ := b.docs.Lookup("http://c"); id != 1 {
		t.Errorf("http://c id = %d, want 1", id)
	}
	if _, ok := b.terms.Lookup("dog"); ok {
		t.Error("duplicate document content should not be indexed")
	}
	if got := testutil.ToFloat64(m.DocsIndexedTotal); got != 2 {
		t.Errorf("docs_indexed_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.DocsSkippedTotal.WithLabelValues("duplicate")); got != 1 {
		t.Errorf("duplicate skips = %v, want 1", got)
	}

	res, err := b.Finish()
	if err != nil {
		t.Fatal(err)
	}
	if res.SkippedTotal() != 5 {
		t.Errorf("SkippedTotal = %d, want 5", res.SkippedTotal())
	}
	if res.Skipped[SkipInvalidURL] != 2 {
		t.Errorf("invalid_url skips = %d, want 2", res.Skipped[SkipInvalidURL])
	}
	if _, err := b.Observe("http://d", []string{"x"}); err == nil {
		t.Error("Observe after Finish should fail")
	}
}

func TestBuilderEmptyCorpus(t *testing.T) {
	cfg := testConfig(t, 10)
	b, err := NewBuilder(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	res, err := b.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if res.Documents != 0 || res.Terms != 0 {
		t.Errorf("result = %+v", res)
	}
	for _, name := range []string{DocsFile, TermsFile, IndexFile, TOCFile} {
		if got := readArtifact(t, cfg.DataDir, name); got != "" {
			t.Errorf("%s = %q, want empty", name, got)
		}
	}
}

func TestNewBuilderRemovesStaleSegments(t *testing.T) {
	cfg := testConfig(t, 10)
	segDir := cfg.SegmentPath()
	if err := os.MkdirAll(segDir, 0755); err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(segDir, "seg_000003.seg")
	if err := os.WriteFile(stale, []byte("0 : 0,1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewBuilder(cfg, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale segment not removed")
	}
}

func TestNewBuilderRejectsZeroThreshold(t *testing.T) {
	if _, err := NewBuilder(testConfig(t, 0), nil); err == nil {
		t.Error("expected error")
	}
}

func TestBuilderMultiLineURLKeepsDocsLoadable(t *testing.T) {
	cfg := testConfig(t, 10)
	b, err := NewBuilder(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if reason, _ := b.Observe("http://a/x\ny", []string{"cat"}); reason != SkipInvalidURL {
		t.Errorf("reason = %q, want %q", reason, SkipInvalidURL)
	}
	if reason, _ := b.Observe("http://b", []string{"cat"}); reason != "" {
		t.Errorf("reason = %q, want indexed", reason)
	}
	if _, err := b.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	dir, err := ResolveDir(cfg.DataDir)
	if err != nil {
		t.Fatal(err)
	}
	docs, err := dictionary.LoadDocs(filepath.Join(dir, DocsFile))
	if err != nil {
		t.Fatalf("LoadDocs: %v", err)
	}
	if docs.Len() != 1 {
		t.Errorf("docs = %d, want 1", docs.Len())
	}
	if id, ok := docs.Lookup("http://b"); !ok || id != 0 {
		t.Errorf("http://b = %d, %v; want 0, true", id, ok)
	}
}

func buildOnce(t *testing.T, cfg config.IndexerConfig, url string) (Result, error) {
	t.Helper()
	b, err := NewBuilder(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Observe(url, []string{"cat"}); err != nil {
		t.Fatal(err)
	}
	return b.Finish()
}

func generations(t *testing.T, dataDir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), generationPrefix) {
			names = append(names, e.Name())
		}
	}
	return names
}

func TestFinishPublishesThroughCurrent(t *testing.T) {
	cfg := testConfig(t, 10)
	var gens []string
	for _, url := range []string{"http://a", "http://b", "http://c"} {
		res, err := buildOnce(t, cfg, url)
		if err != nil {
			t.Fatalf("build %s: %v", url, err)
		}
		gens = append(gens, res.Generation)
	}
	if gens[0] != "gen-000001" || gens[2] != "gen-000003" {
		t.Errorf("generations = %v", gens)
	}
	if got := readCurrent(t, cfg.DataDir); got != "gen-000003\n" {
		t.Errorf("CURRENT = %q", got)
	}
	if got := readArtifact(t, cfg.DataDir, DocsFile); got != "0\thttp://c\n" {
		t.Errorf("docs = %q", got)
	}
	// The current and the previous generation are kept.
	if got := generations(t, cfg.DataDir); len(got) != 2 || got[0] != "gen-000002" || got[1] != "gen-000003" {
		t.Errorf("generation dirs = %v", got)
	}
}

func TestFailedPublishKeepsPreviousIndex(t *testing.T) {
	cfg := testConfig(t, 10)
	if _, err := buildOnce(t, cfg, "http://old"); err != nil {
		t.Fatal(err)
	}

	// A directory in the way of the staged pointer makes the final switch
	// fail after every artifact of the new generation has been written.
	blocker := filepath.Join(cfg.DataDir, CurrentFile+".tmp")
	if err := os.MkdirAll(filepath.Join(blocker, "x"), 0755); err != nil {
		t.Fatal(err)
	}
	if _, err := buildOnce(t, cfg, "http://new"); err == nil {
		t.Fatal("expected publish to fail")
	}

	if got := readCurrent(t, cfg.DataDir); got != "gen-000001\n" {
		t.Errorf("CURRENT = %q, want gen-000001", got)
	}
	if got := readArtifact(t, cfg.DataDir, DocsFile); got != "0\thttp://old\n" {
		t.Errorf("docs = %q", got)
	}
	if got := generations(t, cfg.DataDir); len(got) != 1 {
		t.Errorf("unpublished generation left behind: %v", got)
	}

	if err := os.RemoveAll(blocker); err != nil {
		t.Fatal(err)
	}
	res, err := buildOnce(t, cfg, "http://new")
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if res.Generation != "gen-000002" {
		t.Errorf("Generation = %q", res.Generation)
	}
	if got := readArtifact(t, cfg.DataDir, DocsFile); got != "0\thttp://new\n" {
		t.Errorf("docs = %q", got)
	}
}

func TestResolveDirFlatLayout(t *testing.T) {
	dir := t.TempDir()
	got, err := ResolveDir(dir)
	if err != nil || got != dir {
		t.Errorf("ResolveDir = %q, %v; want %q", got, err, dir)
	}
	if err := os.WriteFile(filepath.Join(dir, CurrentFile), []byte("../etc\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ResolveDir(dir); err == nil {
		t.Error("expected error for invalid CURRENT")
	}
}
