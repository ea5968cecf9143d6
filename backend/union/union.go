package union

import (
	"context"
	"io"

	"github.com/mwantia/asyncvfs/data"
	"github.com/mwantia/asyncvfs/data/errors"
	"github.com/mwantia/asyncvfs/log"
	"github.com/mwantia/asyncvfs/stream"
	"github.com/mwantia/asyncvfs/vfs"
)

// UnionBackend overlays an ordered list of member roots. For reads the first member
// that reports existence wins. Each member stays authoritative for its own content.
type UnionBackend struct {
	members []vfs.File
	log     *log.Logger
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

// New creates a union over members. Every member is a root: a handle below the
// root of its backend exposes only that subtree.
func New(members []vfs.File, opts ...Option) (*UnionBackend, error) {
	if len(members) == 0 {
		return nil, errors.Invalid(nil, "union requires at least one member")
	}

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

	return &UnionBackend{
		members: members,
		log:     logger.Named("union"),
	}, nil
}

func (*UnionBackend) Name() string {
	return "union"
}

func (u *UnionBackend) Root() vfs.File {
	return vfs.Root(u)
}

// Members returns the member roots in lookup order.
func (u *UnionBackend) Members() []vfs.File {
	return u.members
}

func (u *UnionBackend) member(root vfs.File, path string) vfs.File {
	return root.Child(data.ToRelativePath(data.Normalize(path), "/"))
}

func (u *UnionBackend) unionPath(root vfs.File, path string) string {
	if path == "" {
		return ""
	}
	return data.Normalize(data.ToRelativePath(path, root.Path()))
}

// Access returns the member handle of the first member where path exists.
func (u *UnionBackend) Access(ctx context.Context, path string) (vfs.File, error) {
	for _, root := range u.members {
		file := u.member(root, path)

		stat, err := file.Stat(ctx)
		if err != nil {
			u.log.Debug("Access: skipping %s - %v", file, err)
			continue
		}
		if stat.Exists {
			return file, nil
		}
	}

	return vfs.File{}, errors.NotFound(nil, path)
}

// target picks the member a mutation of path goes to: the first member that
// has path, otherwise the first member.
func (u *UnionBackend) target(ctx context.Context, path string) vfs.File {
	if file, err := u.Access(ctx, path); err == nil {
		return file
	}
	return u.member(u.members[0], path)
}

func (u *UnionBackend) Open(ctx context.Context, path string, mode data.OpenMode) (stream.Stream, error) {
	if mode.CanWrite() || mode.HasCreate() {
		return u.target(ctx, path).Open(ctx, mode)
	}

	file, err := u.Access(ctx, path)
	if err != nil {
		return nil, err
	}
	return file.Open(ctx, mode)
}

// Stat returns the stat of the first member reporting existence, rebound to this backend.
func (u *UnionBackend) Stat(ctx context.Context, path string) (*vfs.Stat, error) {
	path = data.Normalize(path)

	for _, root := range u.members {
		stat, err := u.member(root, path).Stat(ctx)
		if err != nil {
			u.log.Debug("Stat: skipping %s on %s - %v", path, root, err)
			continue
		}
		if stat.Exists {
			merged := *stat
			merged.File = vfs.NewFile(u, path)
			return &merged, nil
		}
	}

	return vfs.NotExists(vfs.NewFile(u, path)), nil
}

// List merges the listings of every member. A name seen in an earlier member shadows
// the same name in later ones; members that fail to enumerate are skipped.
func (u *UnionBackend) List(ctx context.Context, path string) (vfs.Iterator, error) {
	path = data.Normalize(path)

	return vfs.LazyIterator(func(ctx context.Context) ([]vfs.File, error) {
		seen := make(map[string]struct{})
		var files []vfs.File

		for _, root := range u.members {
			it, err := u.member(root, path).List(ctx)
			if err != nil {
				u.log.Debug("List: skipping %s on %s - %v", path, root, err)
				continue
			}

			children, err := vfs.Collect(ctx, it)
			if err != nil {
				u.log.Debug("List: enumeration of %s on %s failed - %v", path, root, err)
			}

			for _, child := range children {
				name := child.Base()
				if _, ok := seen[name]; ok {
					continue
				}

				seen[name] = struct{}{}
				files = append(files, vfs.NewFile(u, data.Combine(path, name)))
			}
		}

		return files, nil
	}), nil
}

func (u *UnionBackend) Put(ctx context.Context, path string, content stream.Stream, attrs ...vfs.Attribute) error {
	return u.target(ctx, path).Put(ctx, content, attrs...)
}

func (u *UnionBackend) Delete(ctx context.Context, path string) (bool, error) {
	file, err := u.Access(ctx, path)
	if err != nil {
		return false, nil
	}
	return file.Delete(ctx)
}

func (u *UnionBackend) Mkdir(ctx context.Context, path string, attrs ...vfs.Attribute) (bool, error) {
	if _, err := u.Access(ctx, path); err == nil {
		return false, nil
	}
	return u.member(u.members[0], path).Mkdir(ctx, attrs...)
}

// Rename only moves within the member that holds src.
func (u *UnionBackend) Rename(ctx context.Context, src, dst string) (bool, error) {
	file, err := u.Access(ctx, src)
	if err != nil {
		return false, err
	}

	for _, root := range u.members {
		if file.Backend() == root.Backend() && data.HasPrefix(file.Path(), root.Path()) {
			return root.Backend().Rename(ctx, file.Path(), u.member(root, dst).Path())
		}
	}
	return false, errors.NotFound(nil, src)
}

func (u *UnionBackend) SetAttributes(ctx context.Context, path string, attrs ...vfs.Attribute) error {
	file, err := u.Access(ctx, path)
	if err != nil {
		return err
	}
	return file.SetAttributes(ctx, attrs...)
}

func (u *UnionBackend) SetSize(ctx context.Context, path string, size int64) error {
	file, err := u.Access(ctx, path)
	if err != nil {
		return err
	}
	return file.SetSize(ctx, size)
}

// Watch subscribes on every member that supports watching. Paths in delivered
// events are mapped back into the union.
func (u *UnionBackend) Watch(ctx context.Context, path string, handler func(vfs.Event)) (vfs.Subscription, error) {
	var subs []vfs.Subscription

	for _, root := range u.members {
		sub, err := u.member(root, path).Watch(ctx, func(e vfs.Event) {
			handler(vfs.Event{
				Kind:    e.Kind,
				Path:    u.unionPath(root, e.Path),
				NewPath: u.unionPath(root, e.NewPath),
			})
		})
		if err != nil {
			if errors.IsUnsupported(err) {
				continue
			}
			closeAll(subs)
			return nil, err
		}
		subs = append(subs, sub)
	}

	if len(subs) == 0 {
		return nil, errors.Unsupported(nil, "watch", u.Name())
	}

	return vfs.SubscriptionFunc(func() error {
		return closeAll(subs)
	}), nil
}

func (u *UnionBackend) Exec(ctx context.Context, path string, args []string, handler vfs.ProcessHandler) (int, error) {
	file, err := u.Access(ctx, path)
	if err != nil {
		return -1, err
	}
	return file.Exec(ctx, args, handler)
}

func closeAll[T io.Closer](closers []T) error {
	errs := &data.Errors{}
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs.Add(err)
		}
	}
	return errs.Errors()
}
