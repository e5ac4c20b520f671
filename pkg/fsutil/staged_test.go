package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStagedCommit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "out.txt")
	s, err := Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Write([]byte("hello\n")); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("final path must not exist before Commit")
	}
	if err := s.Commit(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello\n" {
		t.Errorf("content = %q", data)
	}
	if _, err := os.Stat(path + tmpSuffix); !os.IsNotExist(err) {
		t.Error("temp file should be gone after Commit")
	}
}

func TestStagedAbortKeepsPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.txt")
	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Create(path)
	if err != nil {
		t.Fatal(err)
	}
	s.Write([]byte("partial"))
	s.Abort()

	data, _ := os.ReadFile(path)
	if string(data) != "old" {
		t.Errorf("previous content replaced: %q", data)
	}
	if _, err := os.Stat(path + tmpSuffix); !os.IsNotExist(err) {
		t.Error("temp file should be removed by Abort")
	}
}
