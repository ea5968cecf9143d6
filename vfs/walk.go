package vfs

import (
	"context"
	"io"
)

type recursiveIterator struct {
	root    File
	filter  func(File) bool
	started bool
	pending *File
	stack   []Iterator
}

// ListRecursive returns a lazy depth-first iterator over every descendant of f.
// Entries rejected by filter are skipped together with their subtree. List is
// called for a directory only when the iterator advances past it.
func (f File) ListRecursive(filter func(File) bool) Iterator {
	return &recursiveIterator{
		root:   f,
		filter: filter,
	}
}

func (it *recursiveIterator) Next(ctx context.Context) (File, error) {
	if !it.started {
		it.started = true
		it.pending = &it.root
	}

	if it.pending != nil {
		dir := *it.pending
		it.pending = nil

		children, err := dir.List(ctx)
		if err != nil {
			return File{}, err
		}
		it.stack = append(it.stack, children)
	}

	for len(it.stack) > 0 {
		top := it.stack[len(it.stack)-1]

		file, err := top.Next(ctx)
		if err == io.EOF {
			top.Close()
			it.stack = it.stack[:len(it.stack)-1]
			continue
		}
		if err != nil {
			return File{}, err
		}

		if it.filter != nil && !it.filter(file) {
			continue
		}

		stat, err := file.Stat(ctx)
		if err != nil {
			return File{}, err
		}
		if stat.IsDirectory {
			it.pending = &file
		}

		return file, nil
	}

	return File{}, io.EOF
}

func (it *recursiveIterator) Close() error {
	for _, inner := range it.stack {
		inner.Close()
	}

	it.stack = nil
	it.pending = nil
	it.started = true
	return nil
}
