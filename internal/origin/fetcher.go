package origin

import (
	"fmt"
	"net/http"
)

// Fetcher performs the "network" side of every strategy: same-origin
// requests are rewritten to a healthy origin endpoint, cross-origin
// requests (seed assets such as font stylesheets) go out as-is.
type Fetcher interface {
	Fetch(req *http.Request) (*http.Response, error)
}

type Client struct {
	Pool      *Pool
	Transport http.RoundTripper
}

func NewClient(pool *Pool, transport http.RoundTripper) *Client {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &Client{Pool: pool, Transport: transport}
}

func (c *Client) Fetch(req *http.Request) (*http.Response, error) {
	if req.URL.IsAbs() && req.URL.Host != "" {
		outReq := req.Clone(req.Context())
		outReq.RequestURI = ""
		return c.Transport.RoundTrip(outReq)
	}

	ep, err := c.Pool.Pick()
	if err != nil {
		return nil, fmt.Errorf("pick origin endpoint: %w", err)
	}

	outReq := req.Clone(req.Context())
	outReq.URL.Scheme = ep.URL.Scheme
	outReq.URL.Host = ep.URL.Host
	outReq.Host = ep.URL.Host
	outReq.RequestURI = ""

	resp, err := c.Transport.RoundTrip(outReq)
	if err != nil {
		c.Pool.ReportFailure(ep)
		return nil, err
	}
	c.Pool.ReportSuccess(ep)
	return resp, nil
}

var _ Fetcher = (*Client)(nil)
