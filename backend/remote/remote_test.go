package remote

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/mwantia/asyncvfs/async"
	"github.com/mwantia/asyncvfs/async/asynctest"
	"github.com/mwantia/asyncvfs/backend/local"
	"github.com/mwantia/asyncvfs/data"
	"github.com/mwantia/asyncvfs/log"
	"github.com/mwantia/asyncvfs/stream"
	"github.com/mwantia/asyncvfs/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fileServer struct {
	mu      sync.Mutex
	files   map[string][]byte
	headers map[string]http.Header

	gets  atomic.Int32
	heads atomic.Int32
}

func newFileServer(t *testing.T, files map[string]string) (*fileServer, *httptest.Server) {
	t.Helper()

	fs := &fileServer{
		files:   make(map[string][]byte),
		headers: make(map[string]http.Header),
	}
	for path, content := range files {
		fs.files[path] = []byte(content)
	}

	router := httprouter.New()
	router.HEAD("/files/*path", fs.serve)
	router.GET("/files/*path", fs.serve)
	router.PUT("/files/*path", fs.put)
	router.DELETE("/files/*path", fs.delete)
	router.GET("/plain/*path", fs.plain)
	router.HEAD("/plain/*path", fs.serve)
	router.HEAD("/broken/*path", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return fs, srv
}

func (fs *fileServer) lookup(ps httprouter.Params) ([]byte, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	content, ok := fs.files[ps.ByName("path")]
	return content, ok
}

// serve answers HEAD and ranged GET requests.
func (fs *fileServer) serve(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if r.Method == http.MethodHead {
		fs.heads.Add(1)
	} else {
		fs.gets.Add(1)
	}

	content, ok := fs.lookup(ps)
	if !ok {
		http.NotFound(w, r)
		return
	}
	http.ServeContent(w, r, ps.ByName("path"), time.Unix(1700000000, 0), bytes.NewReader(content))
}

// plain ignores range headers.
func (fs *fileServer) plain(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	fs.gets.Add(1)

	content, ok := fs.lookup(ps)
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Write(content)
}

func (fs *fileServer) put(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	header := r.Header.Clone()
	header.Set("X-Received-Length", strconv.FormatInt(r.ContentLength, 10))

	fs.files[ps.ByName("path")] = body
	fs.headers[ps.ByName("path")] = header
	w.WriteHeader(http.StatusCreated)
}

func (fs *fileServer) delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, ok := fs.files[ps.ByName("path")]; !ok {
		http.NotFound(w, r)
		return
	}
	delete(fs.files, ps.ByName("path"))
	w.WriteHeader(http.StatusNoContent)
}

func newBackend(t *testing.T, baseURL string, opts ...Option) *RemoteBackend {
	t.Helper()

	rb, err := New(baseURL, append([]Option{WithLogger(log.Discard())}, opts...)...)
	require.NoError(t, err)
	return rb
}

func TestStat(t *testing.T) {
	ctx := asynctest.Context(t)
	_, srv := newFileServer(t, map[string]string{"/docs/a.txt": "hello"})
	rb := newBackend(t, srv.URL+"/files")

	stat, err := rb.Stat(ctx, "/docs/a.txt")
	require.NoError(t, err)
	assert.True(t, stat.Exists)
	assert.Equal(t, int64(5), stat.Size)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), stat.ModTime.UTC())

	// Directory-ness of a remote resource is unknown, so it is reported as a file.
	assert.False(t, stat.IsDirectory)

	stat, err = rb.Stat(ctx, "/docs/missing.txt")
	require.NoError(t, err)
	assert.False(t, stat.Exists)
}

func TestLegacyDirectoryFlag(t *testing.T) {
	_, srv := newFileServer(t, map[string]string{"/a.txt": "hello"})
	rb := newBackend(t, srv.URL+"/files", WithLegacyDirectoryFlag())

	stat, err := rb.Stat(asynctest.Context(t), "/a.txt")
	require.NoError(t, err)
	assert.True(t, stat.Exists)
	assert.True(t, stat.IsDirectory, "legacy mode flags every existing resource as a directory")
}

func TestStatServerError(t *testing.T) {
	_, srv := newFileServer(t, nil)
	rb := newBackend(t, srv.URL+"/broken")

	_, err := rb.Stat(asynctest.Context(t), "/a.txt")
	assert.ErrorIs(t, err, data.ErrTransport)
}

func TestOpenMissingSkipsGet(t *testing.T) {
	fs, srv := newFileServer(t, nil)
	rb := newBackend(t, srv.URL+"/files")

	_, err := rb.Open(asynctest.Context(t), "/missing", data.ModeRead)
	assert.ErrorIs(t, err, data.ErrNotExist)
	assert.Equal(t, int32(1), fs.heads.Load())
	assert.Equal(t, int32(0), fs.gets.Load())
}

func TestBufferedRangedReads(t *testing.T) {
	content := strings.Repeat("0123456789", 100)
	fs, srv := newFileServer(t, map[string]string{"/data.bin": content})
	rb := newBackend(t, srv.URL+"/files", WithBufferSize(256))

	s, err := rb.Open(asynctest.Context(t), "/data.bin", data.ModeRead)
	require.NoError(t, err)
	defer s.Close()

	length, err := s.Length()
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), length)

	// Ten small reads stay inside the first window.
	for i := 0; i < 10; i++ {
		chunk, err := stream.ReadBytes(s, 10)
		require.NoError(t, err)
		assert.Equal(t, content[i*10:i*10+10], string(chunk))
	}
	assert.Equal(t, int32(1), fs.gets.Load())

	require.NoError(t, stream.SetPosition(s, 995))
	tail, err := stream.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, content[995:], string(tail))
	assert.Equal(t, int32(2), fs.gets.Load())
}

func TestReadIgnoringRange(t *testing.T) {
	content := strings.Repeat("abcdef", 50)
	_, srv := newFileServer(t, map[string]string{"/x": content})
	rb := newBackend(t, srv.URL+"/plain", WithBufferSize(16))

	s, err := rb.Open(asynctest.Context(t), "/x", data.ModeRead)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, stream.SetPosition(s, 100))
	chunk, err := stream.ReadBytes(s, 20)
	require.NoError(t, err)
	assert.Equal(t, content[100:120], string(chunk))
}

func TestPut(t *testing.T) {
	ctx := asynctest.Context(t)
	fs, srv := newFileServer(t, nil)
	root := newBackend(t, srv.URL+"/files").Root()

	err := root.Child("out/report.csv").WriteString(ctx, "a,b\n1,2\n",
		vfs.MimeType("text/csv"),
		vfs.Headers{"X-Trace": []string{"abc"}},
	)
	require.NoError(t, err)

	fs.mu.Lock()
	defer fs.mu.Unlock()

	assert.Equal(t, "a,b\n1,2\n", string(fs.files["/out/report.csv"]))
	header := fs.headers["/out/report.csv"]
	assert.Equal(t, "text/csv", header.Get("Content-Type"))
	assert.Equal(t, "8", header.Get("X-Received-Length"))
	assert.Equal(t, "abc", header.Get("X-Trace"))
}

func TestCopyFromLocal(t *testing.T) {
	ctx := asynctest.Context(t)
	fs, srv := newFileServer(t, nil)
	remoteRoot := newBackend(t, srv.URL+"/files").Root()

	dir := t.TempDir()
	content := strings.Repeat("local to remote\n", 4096)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src.txt"), []byte(content), 0o644))

	lb, err := local.New(dir, local.WithLogger(log.Discard()))
	require.NoError(t, err)

	n, err := lb.Root().Child("src.txt").CopyTo(ctx, remoteRoot.Child("dst.txt"))
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), n)

	fs.mu.Lock()
	defer fs.mu.Unlock()
	assert.Equal(t, content, string(fs.files["/dst.txt"]))
}

func TestPutLeavesStreamOpen(t *testing.T) {
	ctx := asynctest.Context(t)
	_, srv := newFileServer(t, nil)
	rb := newBackend(t, srv.URL+"/files")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("abc"), 0o644))

	lb, err := local.New(dir, local.WithLogger(log.Discard()))
	require.NoError(t, err)

	s, err := lb.Open(ctx, "/a.txt", data.ModeRead)
	require.NoError(t, err)

	require.NoError(t, rb.Put(ctx, "/a.txt", s))
	require.NoError(t, stream.SetPosition(s, 0))
	chunk, err := stream.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(chunk))
	assert.NoError(t, s.Close())
}

func TestRequestKeepsSchedulerBusy(t *testing.T) {
	s := asynctest.Scheduler(t)
	ctx := async.WithScheduler(t.Context(), s)

	entered := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		w.Header().Set("Content-Length", "3")
	}))
	t.Cleanup(srv.Close)

	rb := newBackend(t, srv.URL)
	done := make(chan error, 1)
	go func() {
		_, err := rb.Stat(ctx, "/slow")
		done <- err
	}()

	<-entered
	assert.Equal(t, int64(1), s.Suspended())
	assert.False(t, s.Idle())

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, int64(0), s.Suspended())
	assert.True(t, s.Idle())
}

func TestPutDefaultsToJSON(t *testing.T) {
	fs, srv := newFileServer(t, nil)
	root := newBackend(t, srv.URL+"/files").Root()

	require.NoError(t, root.Child("v.json").WriteString(asynctest.Context(t), `{"a":1}`))

	fs.mu.Lock()
	defer fs.mu.Unlock()
	assert.Equal(t, "application/json", fs.headers["/v.json"].Get("Content-Type"))
}

func TestDelete(t *testing.T) {
	ctx := asynctest.Context(t)
	_, srv := newFileServer(t, map[string]string{"/gone": "x"})
	rb := newBackend(t, srv.URL+"/files")

	deleted, err := rb.Delete(ctx, "/gone")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = rb.Delete(ctx, "/gone")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestUnsupportedOperations(t *testing.T) {
	ctx := asynctest.Context(t)
	_, srv := newFileServer(t, map[string]string{"/a": "x"})
	rb := newBackend(t, srv.URL+"/files")

	_, err := rb.List(ctx, "/")
	assert.ErrorIs(t, err, data.ErrUnsupported)

	_, err = rb.Open(ctx, "/a", data.ModeWrite)
	assert.ErrorIs(t, err, data.ErrUnsupported)

	_, err = rb.Mkdir(ctx, "/dir")
	assert.ErrorIs(t, err, data.ErrUnsupported)
}

func TestOptionsValidation(t *testing.T) {
	_, err := New("ftp://example.com")
	assert.ErrorIs(t, err, data.ErrInvalid)

	_, err = New("http://example.com", WithRateLimit(10, 0))
	assert.ErrorIs(t, err, data.ErrInvalid)

	_, err = New("http://example.com", WithBufferSize(0))
	assert.ErrorIs(t, err, data.ErrInvalid)

	rb, err := New("http://example.com/base/", WithRateLimit(10, 1), WithLogger(log.Discard()))
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/base/a%20b/c.txt", rb.URL("a b/./c.txt"))
}
