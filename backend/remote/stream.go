package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/mwantia/asyncvfs/data/errors"
	"github.com/mwantia/asyncvfs/stream"
)

// rangeStream issues one ranged GET per read. The length is fixed at open time.
type rangeStream struct {
	stream.Unsupported

	ctx     context.Context
	backend *RemoteBackend
	url     string
	path    string
	size    int64
	pos     int64
}

func (s *rangeStream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if s.pos >= s.size {
		return 0, io.EOF
	}

	want := min(int64(len(p)), s.size-s.pos)
	header := http.Header{}
	header.Set("Range", fmt.Sprintf("bytes=%d-%d", s.pos, s.pos+want-1))

	resp, err := s.backend.request(s.ctx, http.MethodGet, s.url, header, nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	switch {
	case resp.Status == http.StatusPartialContent:
	case resp.Status == http.StatusOK:
		// The server ignored the range and sends the whole resource.
		if _, err := io.CopyN(io.Discard, resp.Body, s.pos); err != nil {
			return 0, errors.Transport(err, http.MethodGet, s.url)
		}
	case resp.Status == http.StatusRequestedRangeNotSatisfiable:
		return 0, io.EOF
	case resp.Status == http.StatusNotFound || resp.Status == http.StatusGone:
		return 0, errors.NotFound(errors.TransportStatus(resp.Status, http.MethodGet, s.url), s.path)
	default:
		return 0, errors.TransportStatus(resp.Status, http.MethodGet, s.url)
	}

	n, err := io.ReadFull(resp.Body, p[:want])
	s.pos += int64(n)

	if err == io.ErrUnexpectedEOF || err == io.EOF {
		if n == 0 {
			return 0, io.EOF
		}
		return n, nil
	}
	if err != nil {
		return n, errors.Transport(err, http.MethodGet, s.url)
	}
	return n, nil
}

func (s *rangeStream) Seek(offset int64, whence int) (int64, error) {
	target, err := stream.SeekOffset(s.pos, s.size, offset, whence)
	if err != nil {
		return 0, err
	}

	s.pos = target
	return s.pos, nil
}

func (s *rangeStream) Length() (int64, error) {
	return s.size, nil
}
