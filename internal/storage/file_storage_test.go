// internal/storage/file_storage_test.go
package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveAndLoadJSON(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStorage failed: %v", err)
	}

	type record struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	if err := fs.SaveJSONFile("songs/a", "song.json", record{Name: "x", Count: 3}); err != nil {
		t.Fatalf("SaveJSONFile failed: %v", err)
	}
	if !fs.FileExists("songs/a", "song.json") {
		t.Fatal("saved file not found")
	}

	var loaded record
	if err := fs.LoadJSONFile("songs/a", "song.json", &loaded); err != nil {
		t.Fatalf("LoadJSONFile failed: %v", err)
	}
	if loaded.Name != "x" || loaded.Count != 3 {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestSaveFileLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	fs, _ := NewFileStorage(dir)

	if err := fs.SaveFile("d", "f.txt", []byte("hello")); err != nil {
		t.Fatalf("SaveFile failed: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "d"))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", entry.Name())
		}
	}
}

func TestBackupFile(t *testing.T) {
	dir := t.TempDir()
	fs, _ := NewFileStorage(dir)

	// Backing up a missing file is a no-op
	path, err := fs.BackupFile("d", "f.json")
	if err != nil || path != "" {
		t.Fatalf("missing-file backup = (%q, %v), want empty no-op", path, err)
	}

	fs.SaveFile("d", "f.json", []byte("v1"))
	path, err = fs.BackupFile("d", "f.json")
	if err != nil {
		t.Fatalf("BackupFile failed: %v", err)
	}
	if !strings.HasSuffix(path, ".bak") {
		t.Errorf("backup path = %q", path)
	}

	data, err := os.ReadFile(path)
	if err != nil || string(data) != "v1" {
		t.Errorf("backup content = %q, %v", data, err)
	}

	// The original is still in place
	if !fs.FileExists("d", "f.json") {
		t.Error("original file vanished after backup")
	}
}

func TestCacheInvalidationOnSave(t *testing.T) {
	fs, _ := NewFileStorage(t.TempDir())

	fs.SaveFile("d", "f.txt", []byte("v1"))
	if data, _ := fs.LoadFile("d", "f.txt"); string(data) != "v1" {
		t.Fatalf("first load = %q", data)
	}

	fs.SaveFile("d", "f.txt", []byte("v2"))
	if data, _ := fs.LoadFile("d", "f.txt"); string(data) != "v2" {
		t.Errorf("cached stale content after overwrite: %q", data)
	}
}

func TestListDirs(t *testing.T) {
	fs, _ := NewFileStorage(t.TempDir())

	if dirs, err := fs.ListDirs("songs"); err != nil || dirs != nil {
		t.Fatalf("missing parent dir = (%v, %v), want empty no-op", dirs, err)
	}

	fs.SaveFile("songs/b", "x", []byte("1"))
	fs.SaveFile("songs/a", "x", []byte("1"))

	dirs, err := fs.ListDirs("songs")
	if err != nil {
		t.Fatalf("ListDirs failed: %v", err)
	}
	if len(dirs) != 2 || dirs[0] != "a" || dirs[1] != "b" {
		t.Errorf("dirs = %v, want [a b]", dirs)
	}
}
