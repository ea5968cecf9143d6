package sqlite

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/mwantia/asyncvfs/async/asynctest"
	"github.com/mwantia/asyncvfs/data"
	"github.com/mwantia/asyncvfs/log"
	"github.com/mwantia/asyncvfs/vfs"
)

func newSQLite(t *testing.T, dsn string) *SQLiteBackend {
	t.Helper()

	sb, err := New(dsn, WithLogger(log.Discard()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { sb.Close() })
	return sb
}

func TestSQLiteBackend_ReadWrite(t *testing.T) {
	ctx := asynctest.Context(t)
	sb := newSQLite(t, ":memory:")
	file := sb.Root().Child("hello.txt")

	if err := file.WriteString(ctx, "hello", vfs.MimeType("text/plain")); err != nil {
		t.Fatalf("WriteString failed: %v", err)
	}

	s, err := file.Open(ctx, data.ModeAppend)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := s.Write([]byte(" world")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	content, err := file.ReadString(ctx)
	if err != nil {
		t.Fatalf("ReadString failed: %v", err)
	}
	if content != "hello world" {
		t.Errorf("Expected %q, got %q", "hello world", content)
	}

	stat, err := file.Stat(ctx)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if stat.Size != 11 || stat.ContentType != "text/plain" {
		t.Errorf("Expected 11 bytes of text/plain, got %d bytes of %q", stat.Size, stat.ContentType)
	}

	if err := file.SetSize(ctx, 5); err != nil {
		t.Fatalf("SetSize failed: %v", err)
	}
	if content, _ := file.ReadString(ctx); content != "hello" {
		t.Errorf("Expected %q after truncate, got %q", "hello", content)
	}
}

func TestSQLiteBackend_ReadStreamRejectsWrites(t *testing.T) {
	ctx := asynctest.Context(t)
	sb := newSQLite(t, ":memory:")
	sb.Root().Child("file.txt").WriteString(ctx, "content")

	s, err := sb.Root().Child("file.txt").Open(ctx, data.ModeRead)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if _, err := s.Write([]byte("x")); !errors.Is(err, data.ErrReadOnly) {
		t.Errorf("Expected read-only error, got %v", err)
	}
}

func TestSQLiteBackend_Tree(t *testing.T) {
	ctx := asynctest.Context(t)
	sb := newSQLite(t, ":memory:")
	root := sb.Root()

	if err := root.Child("a/b/c").Mkdirs(ctx); err != nil {
		t.Fatalf("Mkdirs failed: %v", err)
	}
	root.Child("a/two.txt").WriteString(ctx, "2")
	root.Child("a/one.txt").WriteString(ctx, "1")
	root.Child("a/b/c/deep.txt").WriteString(ctx, "deep")

	if created, _ := root.Child("a").Mkdir(ctx); created {
		t.Errorf("Expected Mkdir of an existing directory to report false")
	}
	if _, err := root.Child("missing/dir").Mkdir(ctx); !errors.Is(err, data.ErrNotExist) {
		t.Errorf("Expected missing parent to fail, got %v", err)
	}
	if _, err := root.Child("a/one.txt/x").Open(ctx, data.ModeCreate); !errors.Is(err, data.ErrNotDirectory) {
		t.Errorf("Expected file parent to fail, got %v", err)
	}

	it, err := root.Child("a").List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	files, err := vfs.Collect(ctx, it)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	var paths []string
	for _, f := range files {
		paths = append(paths, f.Path())
	}
	expected := []string{"/a/b", "/a/one.txt", "/a/two.txt"}
	if len(paths) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, paths)
	}
	for i := range expected {
		if paths[i] != expected[i] {
			t.Errorf("Expected %q at %d, got %q", expected[i], i, paths[i])
		}
	}

	if _, err := root.Child("a/one.txt").List(ctx); !errors.Is(err, data.ErrNotDirectory) {
		t.Errorf("Expected not a directory, got %v", err)
	}
	if _, err := root.Child("a").Open(ctx, data.ModeRead); !errors.Is(err, data.ErrIsDirectory) {
		t.Errorf("Expected is a directory, got %v", err)
	}
}

func TestSQLiteBackend_RenameAndDelete(t *testing.T) {
	ctx := asynctest.Context(t)
	sb := newSQLite(t, ":memory:")
	root := sb.Root()

	root.Child("src/nested").Mkdirs(ctx)
	root.Child("src/nested/file.txt").WriteString(ctx, "moved")

	var events []vfs.Event
	sub, _ := sb.Watch(ctx, "/", func(e vfs.Event) {
		events = append(events, e)
	})
	defer sub.Close()

	renamed, err := root.Child("src").Rename(ctx, "dst")
	if err != nil || !renamed {
		t.Fatalf("Rename failed: %v (renamed=%v)", err, renamed)
	}
	if root.Child("src").Exists(ctx) {
		t.Errorf("Expected source to be gone")
	}
	if content, _ := root.Child("dst/nested/file.txt").ReadString(ctx); content != "moved" {
		t.Errorf("Expected content to move with its directory, got %q", content)
	}
	if len(events) != 1 || events[0].Kind != vfs.Renamed || events[0].NewPath != "/dst" {
		t.Errorf("Expected one rename event, got %v", events)
	}

	if _, err := root.Child("dst").Rename(ctx, "dst/nested/inner"); !errors.Is(err, data.ErrInvalid) {
		t.Errorf("Expected moving below itself to fail, got %v", err)
	}

	deleted, err := root.Child("dst").Delete(ctx)
	if err != nil || !deleted {
		t.Fatalf("Delete failed: %v (deleted=%v)", err, deleted)
	}
	if root.Child("dst/nested/file.txt").Exists(ctx) {
		t.Errorf("Expected descendants to be deleted")
	}
	if deleted, _ := root.Child("dst").Delete(ctx); deleted {
		t.Errorf("Expected deleting a missing path to report false")
	}
}

func TestSQLiteBackend_Persistence(t *testing.T) {
	ctx := asynctest.Context(t)
	dsn := filepath.Join(t.TempDir(), "vfs.db")

	sb, err := New(dsn, WithLogger(log.Discard()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	sb.Root().Child("dir").Mkdir(ctx)
	if err := sb.Root().Child("dir/kept.txt").WriteString(ctx, "kept"); err != nil {
		t.Fatalf("WriteString failed: %v", err)
	}
	if err := sb.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := newSQLite(t, dsn)
	content, err := reopened.Root().Child("dir/kept.txt").ReadString(ctx)
	if err != nil {
		t.Fatalf("ReadString failed: %v", err)
	}
	if content != "kept" {
		t.Errorf("Expected %q after reopening, got %q", "kept", content)
	}
}
