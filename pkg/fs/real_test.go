package fs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/calvinalkan/ringfile/pkg/fs"
)

func Test_Real_WriteFileAtomic_Replaces_Content_And_Applies_Perm(t *testing.T) {
	t.Parallel()

	fsys := fs.NewReal()
	path := filepath.Join(t.TempDir(), "file")

	err := fsys.WriteFileAtomic(path, []byte("first"), 0o600)
	if err != nil {
		t.Fatalf("first write: %v", err)
	}

	err = fsys.WriteFileAtomic(path, []byte("second"), 0o644)
	if err != nil {
		t.Fatalf("second write: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if string(got) != "second" {
		t.Fatalf("content=%q, want %q", got, "second")
	}

	info, err := fsys.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}

	if perm := info.Mode().Perm(); perm != 0o644 {
		t.Fatalf("perm=%o, want 644", perm)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func Test_Real_Remove_Deletes_File(t *testing.T) {
	t.Parallel()

	fsys := fs.NewReal()
	path := filepath.Join(t.TempDir(), "a", "b")

	err := fsys.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	err = fsys.WriteFileAtomic(path, []byte("x"), 0o644)
	if err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}

	err = fsys.Remove(path)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}

	_, err = fsys.Stat(path)
	if !os.IsNotExist(err) {
		t.Fatalf("Stat after Remove: %v", err)
	}
}
