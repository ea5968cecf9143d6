package backend_test

import (
	stdzip "archive/zip"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/mwantia/asyncvfs/async/asynctest"
	"github.com/mwantia/asyncvfs/backend"
	"github.com/mwantia/asyncvfs/data"
	"github.com/mwantia/asyncvfs/log"
	"github.com/mwantia/asyncvfs/vfs"
)

// TestBackendFactory creates a new backend instance for testing.
type TestBackendFactory func(t *testing.T) (vfs.Backend, error)

// GetTestBackendFactories returns all writable backend implementations to test.
func GetTestBackendFactories() map[string]TestBackendFactory {
	open := func(location string) TestBackendFactory {
		return func(t *testing.T) (vfs.Backend, error) {
			b, err := backend.Open(asynctest.Context(t), location, backend.WithLogger(log.Discard()))
			if err == nil {
				t.Cleanup(func() { backend.Close(b) })
			}
			return b, err
		}
	}

	return map[string]TestBackendFactory{
		"memory": open("memory:"),
		"sqlite": open("sqlite::memory:"),
		"local": func(t *testing.T) (vfs.Backend, error) {
			return open(t.TempDir())(t)
		},
		"union": func(t *testing.T) (vfs.Backend, error) {
			b, err := backend.Union(asynctest.Context(t), []string{"memory:", "memory:"}, backend.WithLogger(log.Discard()))
			if err == nil {
				t.Cleanup(func() { backend.Close(b) })
			}
			return b, err
		},
	}
}

func forEachBackend(t *testing.T, test func(t *testing.T, root vfs.File)) {
	for name, factory := range GetTestBackendFactories() {
		t.Run(name, func(tst *testing.T) {
			b, err := factory(tst)
			if err != nil {
				tst.Fatalf("Backend init failed: %v", err)
			}
			test(tst, vfs.Root(b))
		})
	}
}

// TestAllBackends_FileOperations verifies basic file create, write, and read operations
// across all backend implementations.
func TestAllBackends_FileOperations(t *testing.T) {
	forEachBackend(t, func(t *testing.T, root vfs.File) {
		ctx := asynctest.Context(t)
		file := root.Child("test.txt")

		if err := file.WriteString(ctx, "hello world"); err != nil {
			t.Fatalf("WriteString failed: %v", err)
		}

		got, err := file.ReadString(ctx)
		if err != nil {
			t.Fatalf("ReadString failed: %v", err)
		}
		if got != "hello world" {
			t.Errorf("Expected %q, got %q", "hello world", got)
		}

		deleted, err := file.Delete(ctx)
		if err != nil || !deleted {
			t.Fatalf("Delete failed: %v (deleted=%v)", err, deleted)
		}

		if file.Exists(ctx) {
			t.Errorf("Expected file to be gone after Delete")
		}
		if _, err := file.Open(ctx, data.ModeRead); !errors.Is(err, data.ErrNotExist) {
			t.Errorf("Expected ErrNotExist, got %v", err)
		}
	})
}

// TestAllBackends_DirectoryOperations verifies directory creation, listing, and removal
// across all backend implementations.
func TestAllBackends_DirectoryOperations(t *testing.T) {
	forEachBackend(t, func(t *testing.T, root vfs.File) {
		ctx := asynctest.Context(t)
		dir := root.Child("data")

		created, err := dir.Mkdir(ctx)
		if err != nil || !created {
			t.Fatalf("Mkdir failed: %v (created=%v)", err, created)
		}
		if created, _ := dir.Mkdir(ctx); created {
			t.Errorf("Expected second Mkdir to report false")
		}

		for _, name := range []string{"file3.txt", "file1.txt", "file2.txt"} {
			if err := dir.Child(name).WriteString(ctx, name); err != nil {
				t.Fatalf("WriteString %s failed: %v", name, err)
			}
		}

		it, err := dir.List(ctx)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		files, err := vfs.Collect(ctx, it)
		if err != nil {
			t.Fatalf("Collect failed: %v", err)
		}

		var names []string
		for _, f := range files {
			names = append(names, f.Base())
		}
		slices.Sort(names)
		if !slices.Equal(names, []string{"file1.txt", "file2.txt", "file3.txt"}) {
			t.Errorf("Expected three files, got %v", names)
		}

		isDir, err := dir.IsDirectory(ctx)
		if err != nil || !isDir {
			t.Errorf("Expected directory, got %v (err=%v)", isDir, err)
		}
	})
}

// TestAllBackends_NestedPaths verifies deeply nested directory and file operations
// across all backend implementations.
func TestAllBackends_NestedPaths(t *testing.T) {
	forEachBackend(t, func(t *testing.T, root vfs.File) {
		ctx := asynctest.Context(t)
		deep := root.Child("a/b/c/deep.txt")

		if _, err := deep.EnsureParents(ctx); err != nil {
			t.Fatalf("EnsureParents failed: %v", err)
		}
		if err := deep.WriteString(ctx, "deep"); err != nil {
			t.Fatalf("WriteString failed: %v", err)
		}

		files, err := vfs.Collect(ctx, root.Child("a").ListRecursive(nil))
		if err != nil {
			t.Fatalf("ListRecursive failed: %v", err)
		}

		var paths []string
		for _, f := range files {
			paths = append(paths, f.Path())
		}
		expected := []string{"/a/b", "/a/b/c", "/a/b/c/deep.txt"}
		if !slices.Equal(paths, expected) {
			t.Errorf("Expected %v, got %v", expected, paths)
		}
	})
}

// TestAllBackends_ErrorCases verifies the error taxonomy across all backend implementations.
func TestAllBackends_ErrorCases(t *testing.T) {
	forEachBackend(t, func(t *testing.T, root vfs.File) {
		ctx := asynctest.Context(t)
		root.Child("dir").Mkdir(ctx)
		root.Child("file.txt").WriteString(ctx, "x")

		if _, err := root.Child("missing.txt").Open(ctx, data.ModeRead); !errors.Is(err, data.ErrNotExist) {
			t.Errorf("Expected ErrNotExist, got %v", err)
		}
		if _, err := root.Child("dir").Open(ctx, data.ModeRead); !errors.Is(err, data.ErrIsDirectory) {
			t.Errorf("Expected ErrIsDirectory, got %v", err)
		}
		if deleted, err := root.Child("missing").Delete(ctx); err != nil || deleted {
			t.Errorf("Expected deleting a missing path to report false, got %v (err=%v)", deleted, err)
		}

		// A union skips members that cannot list a path instead of failing
		if root.Backend().Name() == "union" {
			return
		}
		if _, err := root.Child("file.txt").List(ctx); !errors.Is(err, data.ErrNotDirectory) {
			t.Errorf("Expected ErrNotDirectory, got %v", err)
		}
		if _, err := root.Child("missing").List(ctx); !errors.Is(err, data.ErrNotExist) {
			t.Errorf("Expected ErrNotExist, got %v", err)
		}
	})
}

// TestAllBackends_StatOperations verifies Stat on files, directories and missing paths.
func TestAllBackends_StatOperations(t *testing.T) {
	forEachBackend(t, func(t *testing.T, root vfs.File) {
		ctx := asynctest.Context(t)
		root.Child("file.txt").WriteString(ctx, "12345")

		stat, err := root.Child("file.txt").Stat(ctx)
		if err != nil {
			t.Fatalf("Stat failed: %v", err)
		}
		if !stat.Exists || stat.IsDirectory || stat.Size != 5 {
			t.Errorf("Expected 5 byte file, got %+v", stat)
		}
		if stat.File.Path() != "/file.txt" {
			t.Errorf("Expected stat for /file.txt, got %s", stat.File.Path())
		}

		stat, err = root.Stat(ctx)
		if err != nil {
			t.Fatalf("Stat failed: %v", err)
		}
		if !stat.Exists || !stat.IsDirectory {
			t.Errorf("Expected root to be a directory, got %+v", stat)
		}

		stat, err = root.Child("missing").Stat(ctx)
		if err != nil {
			t.Fatalf("Stat failed: %v", err)
		}
		if stat.Exists {
			t.Errorf("Expected missing path to not exist")
		}
	})
}

// TestAllBackends_Rename verifies moving files between directories.
func TestAllBackends_Rename(t *testing.T) {
	forEachBackend(t, func(t *testing.T, root vfs.File) {
		ctx := asynctest.Context(t)
		root.Child("src").Mkdir(ctx)
		root.Child("dst").Mkdir(ctx)
		root.Child("src/file.txt").WriteString(ctx, "moved")

		renamed, err := root.Child("src/file.txt").Rename(ctx, "/dst/renamed.txt")
		if err != nil || !renamed {
			t.Fatalf("Rename failed: %v (renamed=%v)", err, renamed)
		}

		if root.Child("src/file.txt").Exists(ctx) {
			t.Errorf("Expected source to be gone")
		}
		if content, _ := root.Child("dst/renamed.txt").ReadString(ctx); content != "moved" {
			t.Errorf("Expected %q at destination, got %q", "moved", content)
		}
	})
}

// TestAllBackends_FileAppend verifies that append mode keeps existing content.
func TestAllBackends_FileAppend(t *testing.T) {
	forEachBackend(t, func(t *testing.T, root vfs.File) {
		ctx := asynctest.Context(t)
		file := root.Child("log.txt")

		for _, line := range []string{"one\n", "two\n"} {
			s, err := file.Open(ctx, data.ModeAppend)
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			if _, err := s.Write([]byte(line)); err != nil {
				t.Fatalf("Write failed: %v", err)
			}
			if err := s.Close(); err != nil {
				t.Fatalf("Close failed: %v", err)
			}
		}

		if content, _ := file.ReadString(ctx); content != "one\ntwo\n" {
			t.Errorf("Expected %q, got %q", "one\ntwo\n", content)
		}
	})
}

// TestAllBackends_FileTruncate verifies SetSize and chunk writes.
func TestAllBackends_FileTruncate(t *testing.T) {
	forEachBackend(t, func(t *testing.T, root vfs.File) {
		ctx := asynctest.Context(t)
		file := root.Child("data.bin")
		file.WriteString(ctx, "0123456789")

		if err := file.SetSize(ctx, 4); err != nil {
			t.Fatalf("SetSize failed: %v", err)
		}
		if err := file.WriteChunk(ctx, []byte("xy"), 6, true); err != nil {
			t.Fatalf("WriteChunk failed: %v", err)
		}

		got, err := file.Read(ctx)
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if string(got) != "0123\x00\x00xy" {
			t.Errorf("Expected %q, got %q", "0123\x00\x00xy", got)
		}
	})
}

// TestAllBackends_EmptyDirectory verifies listing an empty directory.
func TestAllBackends_EmptyDirectory(t *testing.T) {
	forEachBackend(t, func(t *testing.T, root vfs.File) {
		ctx := asynctest.Context(t)
		root.Child("empty").Mkdir(ctx)

		it, err := root.Child("empty").List(ctx)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		files, err := vfs.Collect(ctx, it)
		if err != nil {
			t.Fatalf("Collect failed: %v", err)
		}
		if len(files) != 0 {
			t.Errorf("Expected empty listing, got %v", files)
		}
	})
}

func TestOpen_ReadOnly(t *testing.T) {
	ctx := asynctest.Context(t)
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "kept.txt"), []byte("kept"), 0o644)

	b, err := backend.Open(ctx, "file://"+filepath.ToSlash(dir), backend.WithReadOnly(), backend.WithLogger(log.Discard()))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer backend.Close(b)

	root := vfs.Root(b)
	if content, _ := root.Child("kept.txt").ReadString(ctx); content != "kept" {
		t.Errorf("Expected %q, got %q", "kept", content)
	}
	if err := root.Child("new.txt").WriteString(ctx, "x"); !errors.Is(err, data.ErrReadOnly) {
		t.Errorf("Expected ErrReadOnly, got %v", err)
	}
}

func TestOpen_Zip(t *testing.T) {
	ctx := asynctest.Context(t)
	archive := filepath.Join(t.TempDir(), "archive.zip")

	out, err := os.Create(archive)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	w := stdzip.NewWriter(out)
	entry, _ := w.Create("docs/readme.md")
	entry.Write([]byte("# readme"))
	w.Close()
	out.Close()

	b, err := backend.Open(ctx, "zip:"+archive, backend.WithLogger(log.Discard()))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer backend.Close(b)

	content, err := vfs.Root(b).Child("docs/readme.md").ReadString(ctx)
	if err != nil {
		t.Fatalf("ReadString failed: %v", err)
	}
	if content != "# readme" {
		t.Errorf("Expected %q, got %q", "# readme", content)
	}
}

func TestOpen_Locations(t *testing.T) {
	ctx := asynctest.Context(t)

	cases := map[string]string{
		"memory:":                     "memory",
		"sqlite::memory:":             "sqlite",
		"http://localhost:8080/files": "remote",
		"s3://localhost:9000/bucket":  "s3",
		t.TempDir():                   "local",
	}

	for location, name := range cases {
		b, err := backend.Open(ctx, location, backend.WithLogger(log.Discard()))
		if err != nil {
			t.Errorf("Open %s failed: %v", location, err)
			continue
		}
		if b.Name() != name {
			t.Errorf("Expected %s backend for %s, got %s", name, location, b.Name())
		}
		backend.Close(b)
	}

	if _, err := backend.Open(ctx, "ftp://example.com"); !errors.Is(err, data.ErrInvalid) {
		t.Errorf("Expected unknown scheme to be invalid, got %v", err)
	}
	if _, err := backend.Union(ctx, nil); !errors.Is(err, data.ErrInvalid) {
		t.Errorf("Expected empty union to be invalid, got %v", err)
	}
	if _, err := backend.Open(ctx, "memory:", backend.WithRateLimit(-1)); !errors.Is(err, data.ErrInvalid) {
		t.Errorf("Expected negative rate limit to be invalid, got %v", err)
	}
}
