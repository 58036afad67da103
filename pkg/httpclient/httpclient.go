package httpclient

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
)

// Package httpclient wraps resty for the two call shapes this codebase has:
// plain GETs (feed and image downloads) behind the Client interface, and raw
// resty clients for the multipart sinks.

const defaultUserAgent = "nashra-dispatch/1.0 (+https://github.com/nashra-hq/nashra-dispatch)"

// Response is a minimal HTTP response contract.
type Response interface {
	Body() []byte
	StatusCode() int
}

// Client abstracts HTTP GETs so callers can inject mocks or different
// transports. Sinks that need multipart uploads use a resty.Client from
// NewRestyHTTPClient directly instead of growing this interface.
type Client interface {
	Get(ctx context.Context, url string, headers map[string]string) (Response, error)
}

// RestyClient adapts resty.Client to the Client interface. Feeds are polled
// repeatedly, so transient failures get a couple of quick retries instead of
// waiting a full cycle.
type RestyClient struct {
	client *resty.Client
}

// NewRestyClient creates a GET client with the given timeout.
func NewRestyClient(timeout time.Duration) *RestyClient {
	c := newRestyBaseClient(timeout)
	c.SetRetryCount(2)
	c.SetRetryWaitTime(500 * time.Millisecond)
	return &RestyClient{client: c}
}

// NewRestyHTTPClient exposes a configured resty.Client for callers needing
// custom verbs or multipart bodies. No automatic retries: the pipeline's
// cycle-level retry owns delivery attempts.
func NewRestyHTTPClient(timeout time.Duration) *resty.Client {
	return newRestyBaseClient(timeout)
}

func newRestyBaseClient(timeout time.Duration) *resty.Client {
	c := resty.New()
	c.SetTimeout(timeout)
	c.SetHeader("User-Agent", defaultUserAgent)
	return c
}

// Get performs an HTTP GET. Headers passed here override the client defaults.
func (r *RestyClient) Get(ctx context.Context, url string, headers map[string]string) (Response, error) {
	req := r.client.R().SetContext(ctx)
	if len(headers) > 0 {
		req.SetHeaders(headers)
	}
	resp, err := req.Get(url)
	if err != nil {
		return nil, err
	}
	return &restyResponse{resp: resp}, nil
}

type restyResponse struct {
	resp *resty.Response
}

func (r *restyResponse) Body() []byte    { return r.resp.Body() }
func (r *restyResponse) StatusCode() int { return r.resp.StatusCode() }
