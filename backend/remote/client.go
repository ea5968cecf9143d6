package remote

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/mwantia/asyncvfs/data/errors"
	"golang.org/x/time/rate"
)

// Response is the part of an HTTP exchange the backend consumes.
// Body must be closed by the caller.
type Response struct {
	Status int
	Header http.Header
	Body   io.ReadCloser
}

func (r *Response) Success() bool {
	return r.Status >= 200 && r.Status < 300
}

// HttpClient performs a single request. Implementations decide about retries;
// the backend never retries on its own.
type HttpClient interface {
	Request(ctx context.Context, method, url string, header http.Header, body io.Reader) (*Response, error)
}

// DefaultClient sends requests through a pooled net/http client.
type DefaultClient struct {
	client  *http.Client
	limiter *rate.Limiter
}

// NewDefaultClient creates a client on a pooled transport. A nil limiter disables rate limiting.
func NewDefaultClient(limiter *rate.Limiter) *DefaultClient {
	return &DefaultClient{
		client:  cleanhttp.DefaultPooledClient(),
		limiter: limiter,
	}
}

func (c *DefaultClient) Request(ctx context.Context, method, url string, header http.Header, body io.Reader) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errors.Transport(err, method, url)
		}
	}

	// The transport closes request bodies; the stream belongs to the caller.
	if body != nil {
		body = io.NopCloser(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, errors.Transport(err, method, url)
	}

	for key, values := range header {
		req.Header[key] = values
	}
	if length := header.Get("Content-Length"); length != "" {
		if n, err := strconv.ParseInt(length, 10, 64); err == nil {
			req.ContentLength = n
			if n == 0 {
				req.Body = http.NoBody
			}
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Transport(err, method, url)
	}

	return &Response{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   resp.Body,
	}, nil
}
