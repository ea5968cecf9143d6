package errors

import (
	"fmt"

	"github.com/mwantia/asyncvfs/data"
)

// vfsError carries a readable message while keeping both the taxonomy
// sentinel and the underlying cause reachable through errors.Is and errors.As.
type vfsError struct {
	kind  error
	text  string
	cause error
}

func (e *vfsError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("vfs: %s: %v", e.text, e.cause)
	}
	return "vfs: " + e.text
}

func (e *vfsError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.kind, e.cause}
	}
	return []error{e.kind}
}

func newError(kind, err error, format string, args ...any) error {
	return &vfsError{
		kind:  kind,
		text:  fmt.Sprintf(format, args...),
		cause: err,
	}
}

func NotFound(err error, path string) error {
	return newError(data.ErrNotExist, err, "file '%s' does not exist", path)
}

func Exists(err error, path string) error {
	return newError(data.ErrExist, err, "file '%s' already exists", path)
}

func IsDirectory(err error, path string) error {
	return newError(data.ErrIsDirectory, err, "'%s' is a directory", path)
}

func NotDirectory(err error, path string) error {
	return newError(data.ErrNotDirectory, err, "'%s' is not a directory", path)
}

func ReadOnly(err error, op, path string) error {
	return newError(data.ErrReadOnly, err, "%s on '%s' rejected by read-only filesystem", op, path)
}

func Permission(err error, path string) error {
	return newError(data.ErrPermission, err, "permission denied for '%s'", path)
}

func Unsupported(err error, op, backend string) error {
	return newError(data.ErrUnsupported, err, "operation '%s' unsupported by %s", op, backend)
}

func Invalid(err error, format string, args ...any) error {
	return newError(data.ErrInvalid, err, format, args...)
}

func Closed(err error, path string) error {
	return newError(data.ErrClosed, err, "stream for '%s' already closed", path)
}

func ShutDown(name string) error {
	return newError(data.ErrClosed, nil, "%s is shut down", name)
}
