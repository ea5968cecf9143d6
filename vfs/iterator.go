package vfs

import (
	"context"
	"io"
	"iter"
)

// Iterator is a pull-based sequence of handles. Next returns io.EOF once exhausted.
// Each call to Backend.List produces a new iterator.
type Iterator interface {
	Next(ctx context.Context) (File, error)
	Close() error
}

type sliceIterator struct {
	files []File
	index int
}

// SliceIterator iterates over an already materialized listing.
func SliceIterator(files []File) Iterator {
	return &sliceIterator{files: files}
}

func (it *sliceIterator) Next(ctx context.Context) (File, error) {
	if err := ctx.Err(); err != nil {
		return File{}, err
	}

	if it.index >= len(it.files) {
		return File{}, io.EOF
	}

	file := it.files[it.index]
	it.index++
	return file, nil
}

func (it *sliceIterator) Close() error {
	it.index = len(it.files)
	return nil
}

type lazyIterator struct {
	load  func(ctx context.Context) ([]File, error)
	inner Iterator
}

// LazyIterator defers load until the first call to Next.
func LazyIterator(load func(ctx context.Context) ([]File, error)) Iterator {
	return &lazyIterator{load: load}
}

func (it *lazyIterator) Next(ctx context.Context) (File, error) {
	if it.inner == nil {
		files, err := it.load(ctx)
		if err != nil {
			return File{}, err
		}
		it.inner = SliceIterator(files)
	}

	return it.inner.Next(ctx)
}

func (it *lazyIterator) Close() error {
	if it.inner == nil {
		it.inner = SliceIterator(nil)
	}
	return it.inner.Close()
}

type mapIterator struct {
	inner Iterator
	fn    func(File) File
}

// MapIterator rewrites every handle produced by inner.
func MapIterator(inner Iterator, fn func(File) File) Iterator {
	return &mapIterator{inner: inner, fn: fn}
}

func (it *mapIterator) Next(ctx context.Context) (File, error) {
	file, err := it.inner.Next(ctx)
	if err != nil {
		return File{}, err
	}
	return it.fn(file), nil
}

func (it *mapIterator) Close() error {
	return it.inner.Close()
}

// Collect drains and closes it.
func Collect(ctx context.Context, it Iterator) ([]File, error) {
	defer it.Close()

	var files []File
	for {
		file, err := it.Next(ctx)
		if err == io.EOF {
			return files, nil
		}
		if err != nil {
			return files, err
		}
		files = append(files, file)
	}
}

// All adapts it for range loops. The iterator is closed when the loop ends.
func All(ctx context.Context, it Iterator) iter.Seq2[File, error] {
	return func(yield func(File, error) bool) {
		defer it.Close()

		for {
			file, err := it.Next(ctx)
			if err == io.EOF {
				return
			}
			if !yield(file, err) || err != nil {
				return
			}
		}
	}
}
