package data

import (
	"errors"
	"sync"
)

// Standard errors every backend and stream should wrap, so callers can use errors.Is.
var (
	// Taxonomy
	ErrNotExist      = errors.New("vfs: file does not exist")
	ErrUnsupported   = errors.New("vfs: unsupported operation")
	ErrInvalidFormat = errors.New("vfs: invalid format")
	ErrTruncated     = errors.New("vfs: truncated data")
	ErrCancelled     = errors.New("vfs: operation cancelled")
	ErrTransport     = errors.New("vfs: transport failure")

	// File operation errors
	ErrExist        = errors.New("vfs: file already exists")
	ErrIsDirectory  = errors.New("vfs: is a directory")
	ErrNotDirectory = errors.New("vfs: not a directory")
	ErrReadOnly     = errors.New("vfs: read-only filesystem")
	ErrPermission   = errors.New("vfs: permission denied")

	// I/O errors
	ErrClosed  = errors.New("vfs: stream already closed")
	ErrInvalid = errors.New("vfs: invalid argument")
)

// Errors collects failures of independent steps and joins them once all steps ran.
type Errors struct {
	mu     sync.RWMutex
	errors []error
}

func (e *Errors) Add(err error) {
	if err == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.errors = append(e.errors, err)
}

func (e *Errors) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return len(e.errors)
}

func (e *Errors) Errors() error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.errors) == 0 {
		return nil
	}

	return errors.Join(e.errors...)
}
