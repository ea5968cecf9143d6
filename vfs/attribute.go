package vfs

import (
	"io/fs"
	"net/http"

	"github.com/mwantia/asyncvfs/data"
)

// Attribute is a typed tag attached to put, mkdir and setAttributes.
// Backends look up the types they understand and ignore the rest.
type Attribute interface {
	AttributeName() string
}

// MimeType declares the content type of written data.
type MimeType data.ContentType

func (MimeType) AttributeName() string { return "mime-type" }

// Headers are passed through to transports that speak HTTP.
type Headers http.Header

func (Headers) AttributeName() string { return "headers" }

// Mode requests permission bits on backends that keep them.
type Mode fs.FileMode

func (Mode) AttributeName() string { return "mode" }

// Lookup returns the first attribute of type T.
func Lookup[T Attribute](attrs []Attribute) (T, bool) {
	for _, attr := range attrs {
		if typed, ok := attr.(T); ok {
			return typed, true
		}
	}

	var zero T
	return zero, false
}
