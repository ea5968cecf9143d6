package s3

import (
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/mwantia/asyncvfs/data"
	"github.com/mwantia/asyncvfs/data/errors"
	"github.com/mwantia/asyncvfs/log"
	"github.com/mwantia/asyncvfs/stream"
	"github.com/mwantia/asyncvfs/vfs"
)

const directoryContentType = "application/x-directory"

// S3Backend maps a bucket onto a file tree. Objects whose key ends with a slash
// mark directories; prefixes without a marker are directories too.
type S3Backend struct {
	vfs.Base

	store      ObjectStore
	log        *log.Logger
	bufferSize int
}

type Option func(*Options) error

type Options struct {
	AccessKey  string
	SecretKey  string
	Region     string
	UseSSL     bool
	BufferSize int
	Logger     *log.Logger
}

func WithCredentials(accessKey, secretKey string) Option {
	return func(o *Options) error {
		o.AccessKey = accessKey
		o.SecretKey = secretKey
		return nil
	}
}

func WithRegion(region string) Option {
	return func(o *Options) error {
		o.Region = region
		return nil
	}
}

func WithSSL() Option {
	return func(o *Options) error {
		o.UseSSL = true
		return nil
	}
}

// WithBufferSize sets the read-ahead window of opened streams, which is also
// the size of each ranged GET.
func WithBufferSize(size int) Option {
	return func(o *Options) error {
		if size <= 0 {
			return errors.Invalid(nil, "buffer size must be positive, got %d", size)
		}
		o.BufferSize = size
		return nil
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(o *Options) error {
		o.Logger = logger
		return nil
	}
}

// New creates a backend for bucket on the S3 compatible endpoint (host:port, no scheme).
// No request is sent until the first operation.
func New(endpoint, bucket string, opts ...Option) (*S3Backend, error) {
	options, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	if bucket == "" {
		return nil, errors.Invalid(nil, "bucket name is required")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(options.AccessKey, options.SecretKey, ""),
		Secure: options.UseSSL,
		Region: options.Region,
	})
	if err != nil {
		return nil, errors.Invalid(err, "invalid endpoint '%s'", endpoint)
	}

	return newBackend(&minioStore{client: client, bucket: bucket}, options), nil
}

// NewWithStore creates a backend on top of an existing object store.
func NewWithStore(store ObjectStore, opts ...Option) (*S3Backend, error) {
	options, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	return newBackend(store, options), nil
}

func newOptions(opts []Option) (*Options, error) {
	options := &Options{
		BufferSize: stream.DefaultBufferSize,
	}
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}
	return options, nil
}

func newBackend(store ObjectStore, options *Options) *S3Backend {
	logger := options.Logger
	if logger == nil {
		logger = log.Default("vfs")
	}

	return &S3Backend{
		Base:       vfs.Base{BackendName: "s3"},
		store:      store,
		log:        logger.Named("s3"),
		bufferSize: options.BufferSize,
	}
}

// Returns the identifier name defined for this backend
func (*S3Backend) Name() string {
	return "s3"
}

func (sb *S3Backend) Root() vfs.File {
	return vfs.Root(sb)
}

// objectKey maps a normalized path to its object key; the root maps to "".
func objectKey(path string) string {
	return data.ToRelativePath(data.Normalize(path), "/")
}

// prefixKey is the key of the directory marker for path, and the prefix of its children.
func prefixKey(path string) string {
	key := objectKey(path)
	if key == "" {
		return ""
	}
	return key + "/"
}

func isNoSuchKey(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}

func mapError(err error, path string) error {
	switch {
	case err == nil:
		return nil
	case isNoSuchKey(err):
		return errors.NotFound(err, path)
	default:
		return err
	}
}
