// Package remote exposes resources below a base URL as files. Directories
// cannot be enumerated over plain HTTP, so List is not supported.
package remote

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mwantia/asyncvfs/async"
	"github.com/mwantia/asyncvfs/data"
	"github.com/mwantia/asyncvfs/data/errors"
	"github.com/mwantia/asyncvfs/log"
	"github.com/mwantia/asyncvfs/stream"
	"github.com/mwantia/asyncvfs/vfs"
	"golang.org/x/time/rate"
)

type RemoteBackend struct {
	vfs.Base

	baseURL string
	client  HttpClient
	log     *log.Logger

	bufferSize      int
	legacyDirectory bool
}

type Option func(*Options) error

type Options struct {
	Client          HttpClient
	Limiter         *rate.Limiter
	Logger          *log.Logger
	BufferSize      int
	LegacyDirectory bool
}

// WithClient replaces the default pooled client.
func WithClient(client HttpClient) Option {
	return func(o *Options) error {
		if client == nil {
			return errors.Invalid(nil, "http client must not be nil")
		}
		o.Client = client
		return nil
	}
}

// WithRateLimit limits the default client to limit requests per second.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(o *Options) error {
		if burst < 1 {
			return errors.Invalid(nil, "rate limit burst must be at least 1, got %d", burst)
		}
		o.Limiter = rate.NewLimiter(limit, burst)
		return nil
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(o *Options) error {
		o.Logger = logger
		return nil
	}
}

// WithBufferSize sets the read window, and with it the size of each ranged GET.
func WithBufferSize(size int) Option {
	return func(o *Options) error {
		if size < 1 {
			return errors.Invalid(nil, "buffer size must be positive, got %d", size)
		}
		o.BufferSize = size
		return nil
	}
}

// WithLegacyDirectoryFlag reports every existing resource as a directory.
func WithLegacyDirectoryFlag() Option {
	return func(o *Options) error {
		o.LegacyDirectory = true
		return nil
	}
}

func New(baseURL string, opts ...Option) (*RemoteBackend, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Invalid(err, "invalid base url '%s'", baseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Invalid(nil, "unsupported url scheme '%s'", u.Scheme)
	}

	options := &Options{
		BufferSize: stream.DefaultBufferSize,
	}
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	logger := options.Logger
	if logger == nil {
		logger = log.Default("vfs")
	}

	client := options.Client
	if client == nil {
		client = NewDefaultClient(options.Limiter)
	}

	return &RemoteBackend{
		Base:            vfs.Base{BackendName: "remote"},
		baseURL:         strings.TrimRight(u.String(), "/"),
		client:          client,
		log:             logger.Named("remote"),
		bufferSize:      options.BufferSize,
		legacyDirectory: options.LegacyDirectory,
	}, nil
}

func (rb *RemoteBackend) Name() string {
	return "remote"
}

func (rb *RemoteBackend) Root() vfs.File {
	return vfs.Root(rb)
}

// URL returns the absolute url for path.
func (rb *RemoteBackend) URL(path string) string {
	segments := data.Split(path)
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return rb.baseURL + "/" + strings.Join(segments, "/")
}

// Stat checks path with a HEAD request. Client errors mean the resource does
// not exist; server errors are returned as transport failures.
func (rb *RemoteBackend) Stat(ctx context.Context, path string) (*vfs.Stat, error) {
	path = data.Normalize(path)
	file := vfs.NewFile(rb, path)
	target := rb.URL(path)

	resp, err := rb.request(ctx, http.MethodHead, target, nil, nil)
	if err != nil {
		return nil, err
	}
	resp.Body.Close()

	rb.log.Debug("Stat: HEAD %s returned %d", target, resp.Status)

	if resp.Status >= 500 {
		return nil, errors.TransportStatus(resp.Status, http.MethodHead, target)
	}
	if !resp.Success() {
		return vfs.NotExists(file), nil
	}

	size, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)
	if err != nil || size < 0 {
		size = 0
	}

	modTime, err := http.ParseTime(resp.Header.Get("Last-Modified"))
	if err != nil {
		modTime = time.Time{}
	}

	stat := vfs.NewFileStat(file, size, modTime)
	if contentType := resp.Header.Get("Content-Type"); contentType != "" {
		stat.ContentType = data.ContentType(contentType)
	}
	stat.IsDirectory = rb.legacyDirectory

	return stat, nil
}

// Open returns a buffered read stream. The resource is checked first, so a
// missing path fails before any GET is sent.
func (rb *RemoteBackend) Open(ctx context.Context, path string, mode data.OpenMode) (stream.Stream, error) {
	path = data.Normalize(path)

	if mode.CanWrite() || mode.HasCreate() {
		return nil, errors.Unsupported(nil, "write", rb.Name())
	}

	stat, err := rb.Stat(ctx, path)
	if err != nil {
		return nil, err
	}
	if !stat.Exists {
		return nil, errors.NotFound(nil, path)
	}

	return stream.Buffered(&rangeStream{
		Unsupported: stream.Unsupported{Name: "remote"},
		ctx:         ctx,
		backend:     rb,
		url:         rb.URL(path),
		path:        path,
		size:        stat.Size,
	}, rb.bufferSize), nil
}

// Put uploads content from its current position. The content type is taken from
// a MimeType attribute and defaults to application/json; Headers are sent as given.
func (rb *RemoteBackend) Put(ctx context.Context, path string, content stream.Stream, attrs ...vfs.Attribute) error {
	path = data.Normalize(path)
	target := rb.URL(path)

	length, err := stream.Available(content)
	if err != nil {
		return err
	}

	header := http.Header{}
	if headers, ok := vfs.Lookup[vfs.Headers](attrs); ok {
		for key, values := range headers {
			header[http.CanonicalHeaderKey(key)] = values
		}
	}

	contentType := string(data.ContentTypeApplicationJSON)
	if mimeType, ok := vfs.Lookup[vfs.MimeType](attrs); ok {
		contentType = string(mimeType)
	}

	header.Set("Content-Length", strconv.FormatInt(length, 10))
	header.Set("Content-Type", contentType)

	resp, err := rb.request(ctx, http.MethodPut, target, header, content)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	rb.log.Debug("Put: PUT %s (%d bytes) returned %d", target, length, resp.Status)
	return rb.check(resp, http.MethodPut, path, target)
}

// Delete sends a DELETE request. A missing resource reports false.
func (rb *RemoteBackend) Delete(ctx context.Context, path string) (bool, error) {
	path = data.Normalize(path)
	target := rb.URL(path)

	resp, err := rb.request(ctx, http.MethodDelete, target, nil, nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.Status == http.StatusNotFound || resp.Status == http.StatusGone {
		return false, nil
	}
	if err := rb.check(resp, http.MethodDelete, path, target); err != nil {
		return false, err
	}
	return true, nil
}

// request sends one request from its own goroutine while the caller is
// suspended on the scheduler.
func (rb *RemoteBackend) request(ctx context.Context, method, target string, header http.Header, body io.Reader) (*Response, error) {
	return async.Suspend(ctx, func(c *async.Continuation[*Response]) {
		go func() {
			resp, err := rb.client.Request(ctx, method, target, header, body)
			if err != nil {
				c.ResumeWithError(err)
				return
			}
			if c.Token().Cancelled() {
				resp.Body.Close()
				c.ResumeWithError(errors.Cancelled(nil, method+" "+target))
				return
			}
			c.Resume(resp)
		}()
	})
}

func (rb *RemoteBackend) check(resp *Response, method, path, target string) error {
	switch {
	case resp.Success():
		return nil
	case resp.Status == http.StatusNotFound || resp.Status == http.StatusGone:
		return errors.NotFound(errors.TransportStatus(resp.Status, method, target), path)
	default:
		return errors.TransportStatus(resp.Status, method, target)
	}
}
