// Package zip mounts a ZIP archive read-only. Only the stored and deflate
// compression methods are supported.
package zip

import (
	"context"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/mwantia/asyncvfs/data"
	"github.com/mwantia/asyncvfs/data/errors"
	"github.com/mwantia/asyncvfs/log"
	"github.com/mwantia/asyncvfs/stream"
	"github.com/mwantia/asyncvfs/vfs"
	"github.com/tidwall/btree"
)

// ZipBackend serves the entries of one parsed archive. The index is built once
// and never changes. Entry streams share the archive stream, so reads on
// different entries must not run concurrently.
type ZipBackend struct {
	vfs.Base

	log    *log.Logger
	source stream.Stream
	closer io.Closer

	entries map[string]*Entry
	folders map[string]*btree.Map[string, *Entry]
}

type Option func(*Options) error

type Options struct {
	Logger *log.Logger
}

func WithLogger(logger *log.Logger) Option {
	return func(o *Options) error {
		o.Logger = logger
		return nil
	}
}

// Open parses the central directory of the archive in source.
func Open(ctx context.Context, source stream.Stream, opts ...Option) (*ZipBackend, error) {
	options := &Options{}
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	logger := options.Logger
	if logger == nil {
		logger = log.Default("vfs")
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.Cancelled(err, "zip open")
	}

	eocd, err := readEndOfDirectory(source)
	if err != nil {
		return nil, err
	}

	entries, err := readDirectory(source, eocd)
	if err != nil {
		return nil, err
	}

	zb := &ZipBackend{
		Base:    vfs.Base{BackendName: "zip"},
		log:     logger.Named("zip"),
		source:  source,
		entries: make(map[string]*Entry),
		folders: make(map[string]*btree.Map[string, *Entry]),
	}
	zb.folders["/"] = btree.NewMap[string, *Entry](0)

	for _, entry := range entries {
		zb.index(entry)
	}

	zb.log.Debug("Open: indexed %d entries (%d folders)", len(zb.entries), len(zb.folders))
	return zb, nil
}

// OpenFile opens file for reading and parses it as an archive.
// Closing the backend closes the underlying stream.
func OpenFile(ctx context.Context, file vfs.File, opts ...Option) (*ZipBackend, error) {
	source, err := file.Open(ctx, data.ModeRead)
	if err != nil {
		return nil, err
	}

	zb, err := Open(ctx, source, opts...)
	if err != nil {
		source.Close()
		return nil, err
	}

	zb.closer = source
	return zb, nil
}

// index registers entry and synthesizes the folders above it.
func (zb *ZipBackend) index(entry *Entry) {
	if entry.Path == "/" {
		return
	}

	if entry.Dir {
		if existing, ok := zb.entries[entry.Path]; ok && existing.Dir {
			existing.ModTime = entry.ModTime
			return
		}
		zb.folders[entry.Path] = btree.NewMap[string, *Entry](0)
	}

	zb.entries[entry.Path] = entry

	child := entry
	for parent := data.Dir(child.Path); ; parent = data.Dir(parent) {
		folder, ok := zb.folders[parent]
		if !ok {
			folder = btree.NewMap[string, *Entry](0)
			zb.folders[parent] = folder
		}
		folder.Set(data.Base(child.Path), child)

		if parent == "/" || ok {
			return
		}

		child = &Entry{Path: parent, Dir: true, ModTime: entry.ModTime}
		zb.entries[parent] = child
	}
}

func (zb *ZipBackend) Name() string {
	return "zip"
}

func (zb *ZipBackend) Root() vfs.File {
	return vfs.Root(zb)
}

// Entry returns the central directory record for path.
func (zb *ZipBackend) Entry(path string) (Entry, bool) {
	entry, ok := zb.entries[data.Normalize(path)]
	if !ok {
		return Entry{}, false
	}
	return *entry, true
}

// Entries returns every record sorted by path, including synthesized folders.
func (zb *ZipBackend) Entries() []Entry {
	entries := make([]Entry, 0, len(zb.entries))
	for _, entry := range zb.entries {
		entries = append(entries, *entry)
	}

	slices.SortFunc(entries, func(a, b Entry) int {
		return strings.Compare(a.Path, b.Path)
	})
	return entries
}

func (zb *ZipBackend) Open(ctx context.Context, path string, mode data.OpenMode) (stream.Stream, error) {
	path = data.Normalize(path)

	if mode.CanWrite() || mode.HasCreate() {
		return nil, errors.Unsupported(nil, "write", zb.Name())
	}

	entry, ok := zb.entries[path]
	if !ok {
		if path == "/" {
			return nil, errors.IsDirectory(nil, path)
		}
		return nil, errors.NotFound(nil, path)
	}
	if entry.Dir {
		return nil, errors.IsDirectory(nil, path)
	}

	start, err := payloadStart(zb.source, entry)
	if err != nil {
		return nil, err
	}

	payload, err := stream.Slice(zb.source, start, entry.CompressedSize)
	if err != nil {
		return nil, err
	}

	zb.log.Debug("Open: %s (method=%d, offset=%d, size=%d)", path, entry.Method, start, entry.CompressedSize)

	switch entry.Method {
	case MethodStore:
		return storedStream{payload}, nil
	case MethodDeflate:
		return newInflateStream(ctx, payload, entry), nil
	default:
		return nil, errors.UnsupportedCompression(entry.Method, path)
	}
}

func (zb *ZipBackend) Stat(ctx context.Context, path string) (*vfs.Stat, error) {
	path = data.Normalize(path)
	file := vfs.NewFile(zb, path)

	if path == "/" {
		return vfs.NewDirectoryStat(file, time.Time{}), nil
	}

	entry, ok := zb.entries[path]
	if !ok {
		return vfs.NotExists(file), nil
	}
	if entry.Dir {
		return vfs.NewDirectoryStat(file, entry.ModTime), nil
	}
	return vfs.NewFileStat(file, entry.UncompressedSize, entry.ModTime), nil
}

func (zb *ZipBackend) List(ctx context.Context, path string) (vfs.Iterator, error) {
	path = data.Normalize(path)

	folder, ok := zb.folders[path]
	if !ok {
		if _, exists := zb.entries[path]; exists {
			return nil, errors.NotDirectory(nil, path)
		}
		return nil, errors.NotFound(nil, path)
	}

	files := make([]vfs.File, 0, folder.Len())
	folder.Scan(func(name string, _ *Entry) bool {
		files = append(files, vfs.NewFile(zb, data.Combine(path, name)))
		return true
	})
	return vfs.SliceIterator(files), nil
}

// Close releases the archive stream when the backend was created by OpenFile.
func (zb *ZipBackend) Close() error {
	if zb.closer == nil {
		return nil
	}
	return zb.closer.Close()
}
