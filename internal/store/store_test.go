package store

import (
	"bytes"
	"path/filepath"
	"testing"
)

func backends(t *testing.T) map[string]BlobStore {
	t.Helper()
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ss, err := OpenSQLite(filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { ss.Close() })
	return map[string]BlobStore{"file": fs, "sqlite": ss}
}

func TestSaveLoadDelete(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, found, err := s.Load("task"); err != nil || found {
				t.Fatalf("empty store: found=%v err=%v", found, err)
			}

			blob := []byte(`{"task":{"id":"t1"}}`)
			if err := s.Save("task", blob); err != nil {
				t.Fatalf("Save: %v", err)
			}
			got, found, err := s.Load("task")
			if err != nil || !found {
				t.Fatalf("Load: found=%v err=%v", found, err)
			}
			if !bytes.Equal(got, blob) {
				t.Errorf("blob mismatch: got %q", got)
			}

			// Overwrite.
			if err := s.Save("task", []byte("v2")); err != nil {
				t.Fatalf("Save overwrite: %v", err)
			}
			got, _, _ = s.Load("task")
			if string(got) != "v2" {
				t.Errorf("expected overwritten blob, got %q", got)
			}

			if err := s.Delete("task"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, found, _ := s.Load("task"); found {
				t.Error("blob still present after delete")
			}
			// Deleting again must not error.
			if err := s.Delete("task"); err != nil {
				t.Errorf("Delete twice: %v", err)
			}
		})
	}
}

func TestFileStoreKeyFlattening(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := fs.Save("../escape", []byte("x")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, found, err := fs.Load("../escape")
	if err != nil || !found || string(got) != "x" {
		t.Fatalf("path-like key did not round-trip: found=%v err=%v", found, err)
	}
}
