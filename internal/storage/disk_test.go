package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path string, data string, mtime time.Time) {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	if !mtime.IsZero() {
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			t.Fatal(err)
		}
	}
}

func TestDiskUsageBytes(t *testing.T) {
	dir := t.TempDir()

	// Single file
	f1 := filepath.Join(dir, "f1.bin")
	writeFile(t, f1, "hello", time.Time{})
	got, err := DiskUsageBytes(f1)
	if err != nil {
		t.Fatal(err)
	}
	if got != 5 {
		t.Errorf("single file: got %d bytes, want 5", got)
	}

	// Directory
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(sub, "a"), "ab", time.Time{})
	writeFile(t, filepath.Join(sub, "b"), "c", time.Time{})
	got, err = DiskUsageBytes(sub)
	if err != nil {
		t.Fatal(err)
	}
	if got != 3 {
		t.Errorf("dir: got %d bytes, want 3", got)
	}

	// Missing and empty paths are skipped
	got, err = DiskUsageBytes("", f1, filepath.Join(dir, "nonexistent"), sub)
	if err != nil {
		t.Fatal(err)
	}
	if got != 8 {
		t.Errorf("with missing: got %d bytes, want 8", got)
	}
}

func TestScanEntries_WithoutManifest(t *testing.T) {
	dir := t.TempDir()
	old := time.Now().Add(-2 * time.Hour)
	recent := time.Now().Add(-time.Minute)
	writeFile(t, filepath.Join(dir, "doc_bbb.bin"), "12345", recent)
	writeFile(t, filepath.Join(dir, "doc_aaa.bin"), "12", old)
	writeFile(t, filepath.Join(dir, "other_ccc.bin"), "x", old)
	writeFile(t, filepath.Join(dir, "doc_ddd.txt"), "x", old)
	if err := os.Mkdir(filepath.Join(dir, "doc_dir.bin"), 0755); err != nil {
		t.Fatal(err)
	}

	entries, err := ScanEntries(context.Background(), dir, "doc_", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Hash != "aaa" || entries[1].Hash != "bbb" {
		t.Errorf("order = %s, %s; want aaa, bbb", entries[0].Hash, entries[1].Hash)
	}
	if entries[1].Bytes != 5 {
		t.Errorf("bbb bytes = %d, want 5", entries[1].Bytes)
	}
	if entries[0].Path != filepath.Join(dir, "doc_aaa.bin") {
		t.Errorf("path = %s", entries[0].Path)
	}
}

func TestScanEntries_MissingDir(t *testing.T) {
	_, err := ScanEntries(context.Background(), filepath.Join(t.TempDir(), "missing"), "doc_", nil)
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
}
