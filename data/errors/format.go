package errors

import (
	"github.com/mwantia/asyncvfs/data"
)

func InvalidFormat(err error, format string, args ...any) error {
	return newError(data.ErrInvalidFormat, err, format, args...)
}

func UnsupportedCompression(method uint16, path string) error {
	return newError(data.ErrUnsupported, nil, "unsupported compression method %d for '%s'", method, path)
}

func Truncated(err error, expected, actual int) error {
	return newError(data.ErrTruncated, err, "expected %d bytes, got %d", expected, actual)
}

func Cancelled(err error, op string) error {
	return newError(data.ErrCancelled, err, "%s cancelled", op)
}

func Transport(err error, method, url string) error {
	return newError(data.ErrTransport, err, "%s %s failed", method, url)
}

func TransportStatus(status int, method, url string) error {
	return newError(data.ErrTransport, nil, "%s %s returned status %d", method, url, status)
}
