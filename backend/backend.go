// Package backend creates backends from location strings, so tools can address
// every backend implementation through a single argument.
package backend

import (
	"context"
	"io"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/mwantia/asyncvfs/backend/local"
	"github.com/mwantia/asyncvfs/backend/memory"
	"github.com/mwantia/asyncvfs/backend/readonly"
	"github.com/mwantia/asyncvfs/backend/remote"
	"github.com/mwantia/asyncvfs/backend/s3"
	"github.com/mwantia/asyncvfs/backend/sqlite"
	"github.com/mwantia/asyncvfs/backend/union"
	"github.com/mwantia/asyncvfs/backend/zip"
	"github.com/mwantia/asyncvfs/data"
	"github.com/mwantia/asyncvfs/data/errors"
	"github.com/mwantia/asyncvfs/log"
	"github.com/mwantia/asyncvfs/vfs"
	"golang.org/x/time/rate"
)

type Option func(*Options) error

type Options struct {
	Logger      *log.Logger
	ReadOnly    bool
	S3AccessKey string
	S3SecretKey string
	S3UseSSL    bool
	RateLimit   rate.Limit
}

func WithLogger(logger *log.Logger) Option {
	return func(o *Options) error {
		o.Logger = logger
		return nil
	}
}

// WithReadOnly wraps every opened backend so that mutations fail.
func WithReadOnly() Option {
	return func(o *Options) error {
		o.ReadOnly = true
		return nil
	}
}

func WithS3Credentials(accessKey, secretKey string, useSSL bool) Option {
	return func(o *Options) error {
		o.S3AccessKey = accessKey
		o.S3SecretKey = secretKey
		o.S3UseSSL = useSSL
		return nil
	}
}

// WithRateLimit limits requests per second of HTTP backends. Zero disables limiting.
func WithRateLimit(limit float64) Option {
	return func(o *Options) error {
		if limit < 0 {
			return errors.Invalid(nil, "rate limit must not be negative, got %v", limit)
		}
		o.RateLimit = rate.Limit(limit)
		return nil
	}
}

// Open creates the backend a location refers to:
//
//	memory:                      empty in-memory tree
//	file:///dir or /dir          local directory
//	zip:archive.zip              zip archive on the local disk
//	sqlite:vfs.db                sqlite database, ":memory:" included
//	http://host/base             remote HTTP resource
//	s3://endpoint/bucket         S3 compatible bucket
//
// Backends holding resources implement io.Closer; use Close to release them.
func Open(ctx context.Context, location string, opts ...Option) (vfs.Backend, error) {
	options, logger, err := newOptions(opts)
	if err != nil {
		return nil, err
	}

	b, err := open(ctx, location, options, logger)
	if err != nil {
		return nil, err
	}

	logger.Debug("Open: opened %s backend for %s", b.Name(), location)
	if options.ReadOnly {
		return readonly.New(b), nil
	}
	return b, nil
}

func newOptions(opts []Option) (*Options, *log.Logger, error) {
	options := &Options{}
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, nil, err
		}
	}

	logger := options.Logger
	if logger == nil {
		logger = log.Default("vfs")
	}
	return options, logger, nil
}

func open(ctx context.Context, location string, options *Options, logger *log.Logger) (vfs.Backend, error) {
	scheme, rest, found := strings.Cut(location, ":")
	if !found || len(scheme) == 1 {
		// Plain paths, Windows drive letters included
		return local.New(location, local.WithLogger(logger))
	}

	switch scheme {
	case "memory", "mem":
		return memory.NewMemoryBackend(memory.WithLogger(logger))

	case "file":
		u, err := url.Parse(location)
		if err != nil {
			return nil, errors.Invalid(err, "invalid location '%s'", location)
		}
		return local.New(filepath.FromSlash(u.Path), local.WithLogger(logger))

	case "zip":
		return openZip(ctx, rest, logger)

	case "sqlite":
		return sqlite.New(rest, sqlite.WithLogger(logger))

	case "http", "https":
		remoteOpts := []remote.Option{remote.WithLogger(logger)}
		if options.RateLimit > 0 {
			remoteOpts = append(remoteOpts, remote.WithRateLimit(options.RateLimit, 1))
		}
		return remote.New(location, remoteOpts...)

	case "s3":
		u, err := url.Parse(location)
		if err != nil {
			return nil, errors.Invalid(err, "invalid location '%s'", location)
		}
		s3Opts := []s3.Option{
			s3.WithCredentials(options.S3AccessKey, options.S3SecretKey),
			s3.WithLogger(logger),
		}
		if options.S3UseSSL {
			s3Opts = append(s3Opts, s3.WithSSL())
		}
		return s3.New(u.Host, strings.Trim(u.Path, "/"), s3Opts...)

	default:
		return nil, errors.Invalid(nil, "unknown backend scheme '%s'", scheme)
	}
}

func openZip(ctx context.Context, archive string, logger *log.Logger) (vfs.Backend, error) {
	abs, err := filepath.Abs(archive)
	if err != nil {
		return nil, errors.Invalid(err, "invalid archive '%s'", archive)
	}

	dir, err := local.New(filepath.Dir(abs), local.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	return zip.OpenFile(ctx, dir.Root().Child(filepath.Base(abs)), zip.WithLogger(logger))
}

// Union opens every location and layers them in the given order.
func Union(ctx context.Context, locations []string, opts ...Option) (vfs.Backend, error) {
	_, logger, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	if len(locations) == 0 {
		return nil, errors.Invalid(nil, "at least one location is required")
	}

	members := make([]vfs.File, 0, len(locations))
	backends := make([]vfs.Backend, 0, len(locations))

	for _, location := range locations {
		b, err := Open(ctx, location, opts...)
		if err != nil {
			for _, opened := range backends {
				Close(opened)
			}
			return nil, err
		}
		backends = append(backends, b)
		members = append(members, vfs.Root(b))
	}

	if len(members) == 1 {
		return backends[0], nil
	}
	return union.New(members, union.WithLogger(logger))
}

// Close releases b when it holds resources, looking through read-only views
// and union members.
func Close(b vfs.Backend) error {
	switch b := b.(type) {
	case *readonly.ReadOnlyBackend:
		return Close(b.Unwrap())
	case *union.UnionBackend:
		errs := data.Errors{}
		for _, member := range b.Members() {
			errs.Add(Close(member.Backend()))
		}
		return errs.Errors()
	case io.Closer:
		return b.Close()
	default:
		return nil
	}
}
