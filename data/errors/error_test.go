package errors

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/mwantia/asyncvfs/data"
)

func TestErrorsWrapTaxonomy(t *testing.T) {
	tests := map[string]struct {
		err  error
		kind error
	}{
		"notfound":    {NotFound(nil, "/a"), data.ErrNotExist},
		"unsupported": {Unsupported(nil, "watch", "zip"), data.ErrUnsupported},
		"format":      {InvalidFormat(nil, "bad signature 0x%08X", 0), data.ErrInvalidFormat},
		"method":      {UnsupportedCompression(12, "/a.bz"), data.ErrUnsupported},
		"truncated":   {Truncated(nil, 4, 2), data.ErrTruncated},
		"cancelled":   {Cancelled(nil, "inflate"), data.ErrCancelled},
		"transport":   {TransportStatus(500, "GET", "http://x"), data.ErrTransport},
		"readonly":    {ReadOnly(nil, "put", "/a"), data.ErrReadOnly},
	}

	for name, tc := range tests {
		t.Run(name, func(tst *testing.T) {
			if !errors.Is(tc.err, tc.kind) {
				tst.Errorf("Expected %v to wrap %v", tc.err, tc.kind)
			}
		})
	}
}

func TestErrorKeepsCause(t *testing.T) {
	err := NotFound(fs.ErrNotExist, "/a/b")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Expected cause to be reachable")
	}
	if !errors.Is(err, data.ErrNotExist) {
		t.Errorf("Expected sentinel to be reachable")
	}

	expected := "vfs: file '/a/b' does not exist: file does not exist"
	if err.Error() != expected {
		t.Errorf("Expected %q, got %q", expected, err.Error())
	}
}

func TestUnsupportedCompressionMessage(t *testing.T) {
	err := UnsupportedCompression(14, "/x.lzma")
	expected := "vfs: unsupported compression method 14 for '/x.lzma'"
	if err.Error() != expected {
		t.Errorf("Expected %q, got %q", expected, err.Error())
	}
}
