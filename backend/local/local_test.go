package local

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mwantia/asyncvfs/async/asynctest"
	"github.com/mwantia/asyncvfs/data"
	"github.com/mwantia/asyncvfs/log"
	"github.com/mwantia/asyncvfs/vfs"
)

func newLocal(t *testing.T) (*LocalBackend, string) {
	t.Helper()

	dir := t.TempDir()
	lb, err := New(dir, WithLogger(log.Discard()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return lb, dir
}

func TestLocalBackend_New(t *testing.T) {
	dir := t.TempDir()

	if _, err := New(filepath.Join(dir, "missing")); !errors.Is(err, data.ErrNotExist) {
		t.Errorf("Expected missing root to fail with not found, got %v", err)
	}

	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := New(file); !errors.Is(err, data.ErrNotDirectory) {
		t.Errorf("Expected file root to fail with not a directory, got %v", err)
	}

	if _, err := New(filepath.Join(dir, "a", "b"), WithCreateRoot()); err != nil {
		t.Fatalf("New with WithCreateRoot failed: %v", err)
	}
	if info, err := os.Stat(filepath.Join(dir, "a", "b")); err != nil || !info.IsDir() {
		t.Errorf("Expected root to be created, got %v", err)
	}
}

func TestLocalBackend_ReadWrite(t *testing.T) {
	ctx := asynctest.Context(t)
	lb, dir := newLocal(t)
	file := lb.Root().Child("hello.txt")

	if err := file.WriteString(ctx, "hello"); err != nil {
		t.Fatalf("WriteString failed: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "hello.txt"))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(raw) != "hello" {
		t.Errorf("Expected %q on disk, got %q", "hello", raw)
	}

	s, err := file.Open(ctx, data.ModeAppend)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := s.Write([]byte(" world")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if length, _ := s.Length(); length != 11 {
		t.Errorf("Expected length 11, got %d", length)
	}
	s.Close()

	if err := s.Close(); err != nil {
		t.Errorf("Expected second Close to be a no-op, got %v", err)
	}
	if _, err := s.Read(make([]byte, 1)); !errors.Is(err, data.ErrClosed) {
		t.Errorf("Expected read after close to fail, got %v", err)
	}

	content, err := file.ReadString(ctx)
	if err != nil {
		t.Fatalf("ReadString failed: %v", err)
	}
	if content != "hello world" {
		t.Errorf("Expected %q, got %q", "hello world", content)
	}

	chunk, err := file.ReadChunk(ctx, 6, 5)
	if err != nil {
		t.Fatalf("ReadChunk failed: %v", err)
	}
	if string(chunk) != "world" {
		t.Errorf("Expected %q, got %q", "world", chunk)
	}

	if err := file.SetSize(ctx, 5); err != nil {
		t.Fatalf("SetSize failed: %v", err)
	}
	if size, _ := file.Size(ctx); size != 5 {
		t.Errorf("Expected size 5 after truncate, got %d", size)
	}
}

func TestLocalBackend_OpenErrors(t *testing.T) {
	ctx := asynctest.Context(t)
	lb, _ := newLocal(t)
	root := lb.Root()

	if _, err := root.Child("missing.txt").Open(ctx, data.ModeRead); !errors.Is(err, data.ErrNotExist) {
		t.Errorf("Expected not found, got %v", err)
	}

	if _, err := root.Child("dir").Mkdir(ctx); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}
	if _, err := root.Child("dir").Open(ctx, data.ModeRead); !errors.Is(err, data.ErrIsDirectory) {
		t.Errorf("Expected is a directory, got %v", err)
	}
}

func TestLocalBackend_StatAndList(t *testing.T) {
	ctx := asynctest.Context(t)
	lb, _ := newLocal(t)
	root := lb.Root()

	if err := root.Child("dir/a.txt").Parent().Mkdirs(ctx); err != nil {
		t.Fatalf("Mkdirs failed: %v", err)
	}
	root.Child("dir/a.txt").WriteString(ctx, "a")
	root.Child("dir/b.txt").WriteString(ctx, "bb")

	stat, err := root.Child("missing").Stat(ctx)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if stat.Exists {
		t.Errorf("Expected missing path to not exist")
	}

	stat, err = root.Child("dir/b.txt").Stat(ctx)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if !stat.Exists || stat.IsDirectory || stat.Size != 2 {
		t.Errorf("Expected 2 byte file, got %+v", stat)
	}

	it, err := root.Child("dir").List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	files, err := vfs.Collect(ctx, it)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(files) != 2 || files[0].Path() != "/dir/a.txt" || files[1].Path() != "/dir/b.txt" {
		t.Errorf("Expected [/dir/a.txt /dir/b.txt], got %v", files)
	}

	if _, err := root.Child("dir/a.txt").List(ctx); !errors.Is(err, data.ErrNotDirectory) {
		t.Errorf("Expected not a directory, got %v", err)
	}
	if _, err := root.Child("nowhere").List(ctx); !errors.Is(err, data.ErrNotExist) {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestLocalBackend_Mutations(t *testing.T) {
	ctx := asynctest.Context(t)
	lb, dir := newLocal(t)
	root := lb.Root()

	created, err := root.Child("dir").Mkdir(ctx, vfs.Mode(0o700))
	if err != nil || !created {
		t.Fatalf("Mkdir failed: %v (created=%v)", err, created)
	}
	if info, _ := os.Stat(filepath.Join(dir, "dir")); info.Mode().Perm() != 0o700 {
		t.Errorf("Expected permission 0700, got %o", info.Mode().Perm())
	}
	if created, _ := root.Child("dir").Mkdir(ctx); created {
		t.Errorf("Expected Mkdir of an existing directory to report false")
	}

	root.Child("dir/file.txt").WriteString(ctx, "content")

	renamed, err := root.Child("dir/file.txt").Rename(ctx, "/moved.txt")
	if err != nil || !renamed {
		t.Fatalf("Rename failed: %v (renamed=%v)", err, renamed)
	}
	if root.Child("dir/file.txt").Exists(ctx) || !root.Child("moved.txt").Exists(ctx) {
		t.Errorf("Expected file to be moved")
	}
	if _, err := root.Rename(ctx, "/elsewhere"); !errors.Is(err, data.ErrInvalid) {
		t.Errorf("Expected renaming root to be invalid, got %v", err)
	}

	root.Child("dir/nested.txt").WriteString(ctx, "x")
	deleted, err := root.Child("dir").Delete(ctx)
	if err != nil || !deleted {
		t.Fatalf("Delete failed: %v (deleted=%v)", err, deleted)
	}
	if _, err := os.Stat(filepath.Join(dir, "dir")); !os.IsNotExist(err) {
		t.Errorf("Expected directory to be removed with its content, got %v", err)
	}
	if deleted, _ := root.Child("dir").Delete(ctx); deleted {
		t.Errorf("Expected deleting a missing path to report false")
	}
}

func TestLocalBackend_PathsStayBelowRoot(t *testing.T) {
	ctx := asynctest.Context(t)
	lb, dir := newLocal(t)

	if err := lb.Root().Child("../../escape.txt").WriteString(ctx, "x"); err != nil {
		t.Fatalf("WriteString failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "escape.txt")); err != nil {
		t.Errorf("Expected write to land below root, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(dir), "escape.txt")); !os.IsNotExist(err) {
		t.Errorf("Expected nothing outside root, got %v", err)
	}
}

func TestLocalBackend_Watch(t *testing.T) {
	ctx := asynctest.Context(t)
	lb, dir := newLocal(t)

	var mu sync.Mutex
	var events []vfs.Event

	sub, err := lb.Root().Watch(ctx, func(e vfs.Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	})
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer sub.Close()

	if err := os.WriteFile(filepath.Join(dir, "watched.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		for _, e := range events {
			if e.Kind == vfs.Created && e.Path == "/watched.txt" {
				mu.Unlock()
				return
			}
		}
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("Expected a Created event for /watched.txt, got %v", events)
}

func TestLocalBackend_Exec(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh available")
	}

	ctx := asynctest.Context(t)
	lb, _ := newLocal(t)
	root := lb.Root()
	root.Child("marker.txt").WriteString(ctx, "x")

	handler := &vfs.BufferedProcessHandler{}
	code, err := root.Exec(ctx, []string{"/bin/sh", "-c", "ls; echo oops >&2; exit 3"}, handler)
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if code != 3 {
		t.Errorf("Expected exit code 3, got %d", code)
	}
	if handler.Stdout() != "marker.txt\n" {
		t.Errorf("Expected %q, got %q", "marker.txt\n", handler.Stdout())
	}
	if handler.Stderr() != "oops\n" {
		t.Errorf("Expected %q, got %q", "oops\n", handler.Stderr())
	}

	out, err := root.Child("marker.txt").ExecToString(ctx, "/bin/sh", "-c", "cat marker.txt")
	if err != nil {
		t.Fatalf("ExecToString failed: %v", err)
	}
	if out != "x" {
		t.Errorf("Expected file exec to run in its parent, got %q", out)
	}

	if _, err := root.Exec(ctx, nil, nil); !errors.Is(err, data.ErrInvalid) {
		t.Errorf("Expected empty command to be invalid, got %v", err)
	}
}

func TestLocalBackend_OpenClosesFileAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(asynctest.Context(t))
	defer cancel()

	path := filepath.Join(t.TempDir(), "late.txt")
	if err := os.WriteFile(path, []byte("late"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	opened := make(chan *os.File, 1)
	_, err := openFile(ctx, func() (*os.File, error) {
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		opened <- file
		cancel()
		return file, nil
	})
	if !errors.Is(err, data.ErrCancelled) {
		t.Fatalf("Expected ErrCancelled, got %v", err)
	}

	file := <-opened
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := file.Stat(); errors.Is(err, os.ErrClosed) {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("Expected the file opened after cancellation to be closed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
