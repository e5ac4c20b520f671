package verify

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/errors"
)

func TestDirOnFreshBuild(t *testing.T) {
	dir := t.TempDir()
	b, err := indexer.NewBuilder(config.IndexerConfig{DataDir: dir, FlushEvery: 1}, nil)
	if err != nil {
		t.Fatal(err)
	}
	b.Observe("http://a", []string{"cat", "dog"})
	b.Observe("http://b", []string{"cat"})
	b.Observe("http://c", []string{"bird", "cat"})
	if _, err := b.Finish(); err != nil {
		t.Fatal(err)
	}

	r, err := Dir(dir)
	if err != nil {
		t.Fatalf("Dir: %v (problems: %v)", err, r)
	}
	if r.Lines != 3 || r.Postings != 5 || r.ReferencedDocs != 3 {
		t.Errorf("report = %+v", r)
	}
	if filepath.Dir(r.Root) != dir || !strings.HasPrefix(filepath.Base(r.Root), "gen-") {
		t.Errorf("Root = %q, want a generation under %q", r.Root, dir)
	}
}

func TestCheckFindsProblems(t *testing.T) {
	tests := []struct {
		name  string
		index string
		toc   index.TOC
		terms int
		docs  int
		want  string
	}{
		{
			name:  "wrong offset",
			index: "0 : 0,1\n1 : 0,2\n",
			toc:   index.TOC{0: 0, 1: 3},
			terms: 2, docs: 1,
			want: "toc offset",
		},
		{
			name:  "unsorted postings",
			index: "0 : 1,1 0,2\n",
			toc:   index.TOC{0: 0},
			terms: 1, docs: 2,
			want: "not strictly ascending",
		},
		{
			name:  "unknown doc",
			index: "0 : 5,1\n",
			toc:   index.TOC{0: 0},
			terms: 1, docs: 1,
			want: "unknown doc",
		},
		{
			name:  "missing toc entry",
			index: "0 : 0,1\n",
			toc:   index.TOC{},
			terms: 1, docs: 1,
			want: "missing from the toc",
		},
		{
			name:  "dangling toc entry",
			index: "0 : 0,1\n",
			toc:   index.TOC{0: 0, 4: 8},
			terms: 1, docs: 1,
			want: "has no index line",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Check(strings.NewReader(tt.index), tt.toc, tt.terms, tt.docs)
			if err != nil {
				t.Fatal(err)
			}
			if r.OK() {
				t.Fatal("expected problems")
			}
			found := false
			for _, p := range r.Problems {
				if strings.Contains(p, tt.want) {
					found = true
				}
			}
			if !found {
				t.Errorf("problems %v do not mention %q", r.Problems, tt.want)
			}
		})
	}
}

func TestDirReportsCorruption(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		indexer.TermsFile: "cat\t0\n",
		indexer.DocsFile:  "0\thttp://a\n",
		indexer.IndexFile: "0 : 0,1\n",
		indexer.TOCFile:   "0\t2\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	r, err := Dir(dir)
	if !errors.Is(err, apperrors.ErrIndexCorrupted) {
		t.Fatalf("err = %v, want ErrIndexCorrupted", err)
	}
	if r == nil || r.OK() {
		t.Errorf("report = %+v", r)
	}
}
