package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeDoc(t *testing.T, dir, name, url, content string) {
	t.Helper()
	data, err := json.Marshal(map[string]string{"url": url, "content": content})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
		t.Fatal(err)
	}
}

func TestPipelineRun(t *testing.T) {
	corpusDir := t.TempDir()
	writeDoc(t, corpusDir, "001.json", "http://a", "<html><body><p>Cats and dogs</p><script>var x;</script></body></html>")
	writeDoc(t, corpusDir, "002.json", "http://b", "<p>A cat</p>")
	writeDoc(t, corpusDir, "003.json", "http://a", "<p>duplicate</p>")
	writeDoc(t, corpusDir, "004.json", "", "<p>no url</p>")
	writeDoc(t, corpusDir, "005.json", "http://e", "<script>only()</script>")
	if err := os.WriteFile(filepath.Join(corpusDir, "006.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig(t, 1000)
	stats, err := NewPipeline(cfg, nil).Run(context.Background(), corpusDir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Files != 6 {
		t.Errorf("Files = %d, want 6", stats.Files)
	}
	if stats.Documents != 2 {
		t.Errorf("Documents = %d, want 2", stats.Documents)
	}
	want := map[SkipReason]int{SkipDuplicate: 1, SkipNoURL: 1, SkipEmpty: 1, SkipDecodeFailed: 1}
	for reason, n := range want {
		if stats.Skipped[reason] != n {
			t.Errorf("Skipped[%s] = %d, want %d", reason, stats.Skipped[reason], n)
		}
	}
	if stats.BuildID == "" {
		t.Error("missing build id")
	}
	if _, ok := stats.Phases["merge"]; !ok {
		t.Errorf("phases = %v", stats.Phases)
	}

	terms := readArtifact(t, cfg.DataDir, TermsFile)
	for _, term := range []string{"cat\t", "dog\t", "and\t", "a\t"} {
		if !strings.Contains(terms, term) {
			t.Errorf("terms.txt missing %q:\n%s", term, terms)
		}
	}
	if strings.Contains(terms, "var") {
		t.Error("script content was indexed")
	}
}

func TestPipelineCustomCollaborators(t *testing.T) {
	corpusDir := t.TempDir()
	writeDoc(t, corpusDir, "a.json", "http://a", "raw")
	writeDoc(t, corpusDir, "b.json", "http://b", "broken")

	cfg := testConfig(t, 1000)
	p := NewPipeline(cfg, nil).
		WithExtractor(func(raw []byte) (string, error) {
			if string(raw) == "broken" {
				return "", fmt.Errorf("bad payload")
			}
			return "x y", nil
		}).
		WithNormalizer(strings.Fields)

	stats, err := p.Run(context.Background(), corpusDir)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Documents != 1 || stats.Skipped[SkipExtractFailed] != 1 {
		t.Errorf("stats = %+v", stats.Result)
	}
	if got := readArtifact(t, cfg.DataDir, TermsFile); got != "x\t0\ny\t1\n" {
		t.Errorf("terms = %q", got)
	}
}

func TestPipelineMissingCorpus(t *testing.T) {
	cfg := testConfig(t, 10)
	if _, err := NewPipeline(cfg, nil).Run(context.Background(), filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing corpus directory")
	}
}
