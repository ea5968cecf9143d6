package vfs

import (
	"context"
	"io"

	"github.com/mwantia/asyncvfs/async"
	"github.com/mwantia/asyncvfs/data"
	"github.com/mwantia/asyncvfs/log"
)

// CopyTo streams the content of f into target and returns the number of bytes copied.
func (f File) CopyTo(ctx context.Context, target File, attrs ...Attribute) (int64, error) {
	src, err := f.Open(ctx, data.ModeRead)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	return target.WriteStream(ctx, src, attrs...)
}

// CopyToTree mirrors f into target. Directories are created before their children
// and progress, when set, is called once per (source, target) pair. A directory
// below f that cannot be enumerated is skipped; failed file copies are collected
// and returned together once the walk is complete.
func (f File) CopyToTree(ctx context.Context, target File, progress func(src, dst File), attrs ...Attribute) error {
	errs := &data.Errors{}
	if err := f.copyTree(ctx, target, progress, attrs, errs, true); err != nil {
		return err
	}
	return errs.Errors()
}

func (f File) copyTree(ctx context.Context, target File, progress func(src, dst File), attrs []Attribute, errs *data.Errors, root bool) error {
	if progress != nil {
		progress(f, target)
	}

	stat, err := f.Stat(ctx)
	if err != nil {
		return err
	}

	if !stat.IsDirectory {
		_, err := f.CopyTo(ctx, target, attrs...)
		return err
	}

	if _, err := target.Mkdir(ctx, attrs...); err != nil {
		return err
	}

	children, err := f.List(ctx)
	if err != nil {
		if root {
			return err
		}
		loggerFrom(ctx).Warn("CopyToTree: skipping '%s' - %v", f, err)
		return nil
	}
	defer children.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		child, err := children.Next(ctx)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			loggerFrom(ctx).Warn("CopyToTree: enumeration of '%s' stopped - %v", f, err)
			return nil
		}

		if err := child.copyTree(ctx, target.Child(child.Base()), progress, attrs, errs, false); err != nil {
			errs.Add(err)
		}
	}
}

func loggerFrom(ctx context.Context) *log.Logger {
	if s, ok := async.FromContext(ctx); ok {
		return s.Logger()
	}
	return log.Discard()
}
