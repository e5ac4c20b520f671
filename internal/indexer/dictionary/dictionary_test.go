package dictionary

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/errors"
)

func TestTermsAssignIsStable(t *testing.T) {
	terms := NewTerms()
	if id := terms.Assign("cat"); id != 0 {
		t.Errorf("cat = %d, want 0", id)
	}
	if id := terms.Assign("dog"); id != 1 {
		t.Errorf("dog = %d, want 1", id)
	}
	if id := terms.Assign("cat"); id != 0 {
		t.Errorf("cat reassigned to %d", id)
	}
	if terms.Len() != 2 {
		t.Errorf("Len = %d, want 2", terms.Len())
	}
	if _, ok := terms.Lookup("bird"); ok {
		t.Error("unknown term found")
	}
}

func TestDocsAssignIdempotent(t *testing.T) {
	docs := NewDocs()
	id, isNew := docs.Assign("http://a")
	if id != 0 || !isNew {
		t.Fatalf("first assign = %d,%v", id, isNew)
	}
	id, isNew = docs.Assign("http://a")
	if id != 0 || isNew {
		t.Fatalf("second assign = %d,%v, want 0,false", id, isNew)
	}
	if docs.Len() != 1 {
		t.Errorf("Len = %d, want 1", docs.Len())
	}
	id, _ = docs.Assign("http://b")
	if id != 1 {
		t.Errorf("next id = %d, want 1", id)
	}
	if url, ok := docs.URL(1); !ok || url != "http://b" {
		t.Errorf("URL(1) = %q,%v", url, ok)
	}
	if _, ok := docs.URL(9); ok {
		t.Error("URL(9) should be missing")
	}
}

func TestWriteAndLoad(t *testing.T) {
	dir := t.TempDir()
	terms := NewTerms()
	terms.Assign("cat")
	terms.Assign("dog")
	docs := NewDocs()
	docs.Assign("http://a")
	docs.Assign("http://b?q=1")

	tp, dp := filepath.Join(dir, "terms.txt"), filepath.Join(dir, "docs.txt")
	var tb, db bytes.Buffer
	if err := WriteTerms(&tb, terms); err != nil {
		t.Fatal(err)
	}
	if err := WriteDocs(&db, docs); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(tp, tb.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dp, db.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	lt, err := LoadTerms(tp)
	if err != nil {
		t.Fatalf("LoadTerms: %v", err)
	}
	if id, ok := lt.Lookup("dog"); !ok || id != 1 {
		t.Errorf("dog = %d,%v", id, ok)
	}
	ld, err := LoadDocs(dp)
	if err != nil {
		t.Fatalf("LoadDocs: %v", err)
	}
	if url, _ := ld.URL(1); url != "http://b?q=1" {
		t.Errorf("URL(1) = %q", url)
	}
}

func TestWriteFormats(t *testing.T) {
	terms := NewTerms()
	terms.Assign("cat")
	docs := NewDocs()
	docs.Assign("http://a")

	var tb, db bytes.Buffer
	if err := WriteTerms(&tb, terms); err != nil {
		t.Fatal(err)
	}
	if err := WriteDocs(&db, docs); err != nil {
		t.Fatal(err)
	}
	if tb.String() != "cat\t0\n" {
		t.Errorf("terms = %q", tb.String())
	}
	if db.String() != "0\thttp://a\n" {
		t.Errorf("docs = %q", db.String())
	}
}

func TestReadRejectsGaps(t *testing.T) {
	if _, err := ReadTerms(bytes.NewBufferString("cat\t0\ndog\t2\n")); !errors.Is(err, apperrors.ErrIndexCorrupted) {
		t.Errorf("terms gap err = %v", err)
	}
	if _, err := ReadDocs(bytes.NewBufferString("0\thttp://a\n1\thttp://a\n")); !errors.Is(err, apperrors.ErrIndexCorrupted) {
		t.Errorf("docs duplicate err = %v", err)
	}
}
