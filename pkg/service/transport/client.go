package transport

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gridcore/pkg/domain/model"
	"github.com/secmon-lab/gridcore/pkg/utils/logging"
	"github.com/secmon-lab/gridcore/pkg/utils/safe"
)

// DefaultMaxBodySize caps the response body read from a server
const DefaultMaxBodySize int64 = 10 << 20

// Client is the HTTP transport of the engine. GET sends parameters in the
// query string and POST sends them form encoded.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	header     http.Header
	maxBody    int64
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithBaseURL resolves relative endpoints against base
func WithBaseURL(base *url.URL) Option {
	return func(client *Client) {
		client.baseURL = base
	}
}

// WithHeader adds a header to every request
func WithHeader(key, value string) Option {
	return func(client *Client) {
		client.header.Add(key, value)
	}
}

// WithMaxBodySize caps the response body at n bytes. A larger response
// fails with ErrTransport. n <= 0 keeps DefaultMaxBodySize.
func WithMaxBodySize(n int64) Option {
	return func(client *Client) {
		if n > 0 {
			client.maxBody = n
		}
	}
}

// New creates a transport client
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		header:     http.Header{},
		maxBody:    DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get sends a GET request with params in the query string
func (c *Client) Get(ctx context.Context, endpoint string, params model.Params) (json.RawMessage, error) {
	u, err := c.resolve(endpoint)
	if err != nil {
		return nil, err
	}
	if values := params.Values(); len(values) > 0 {
		q := u.Query()
		for k, vs := range values {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create request", goerr.V(model.EndpointKey, endpoint))
	}
	return c.do(ctx, req, endpoint)
}

// Post sends a form encoded POST request
func (c *Client) Post(ctx context.Context, endpoint string, data model.Params) (json.RawMessage, error) {
	u, err := c.resolve(endpoint)
	if err != nil {
		return nil, err
	}

	encoded := data.Values().Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), strings.NewReader(encoded))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create request", goerr.V(model.EndpointKey, endpoint))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.ContentLength = int64(len(encoded))

	return c.do(ctx, req, endpoint)
}

func (c *Client) resolve(endpoint string) (*url.URL, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, goerr.Wrap(model.ErrTransport, "invalid endpoint", goerr.V(model.EndpointKey, endpoint))
	}
	if c.baseURL != nil && !u.IsAbs() {
		u = c.baseURL.ResolveReference(u)
	}
	return u, nil
}

func (c *Client) do(ctx context.Context, req *http.Request, endpoint string) (json.RawMessage, error) {
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	logging.From(ctx).Debug("sending request",
		slog.String("method", req.Method),
		slog.String("endpoint", endpoint),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(model.ErrTransport, "request failed",
			goerr.V(model.EndpointKey, endpoint), goerr.V("cause", err.Error()))
	}
	defer safe.DrainClose(ctx, resp.Body)

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, goerr.Wrap(model.ErrTransport, "failed to read response body",
			goerr.V(model.EndpointKey, endpoint), goerr.V("cause", err.Error()))
	}
	if int64(len(body)) > c.maxBody {
		return nil, goerr.Wrap(model.ErrTransport, "response body is too large",
			goerr.V(model.EndpointKey, endpoint), goerr.V("limit", c.maxBody))
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, goerr.Wrap(model.ErrUnauthorized, "server rejected credentials",
			goerr.V(model.EndpointKey, endpoint), goerr.V(model.StatusCodeKey, resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, goerr.Wrap(model.ErrTransport, "unexpected status code",
			goerr.V(model.EndpointKey, endpoint),
			goerr.V(model.StatusCodeKey, resp.StatusCode),
			goerr.V("body", truncate(string(body), 512)))
	}

	if json.Valid(body) {
		return json.RawMessage(body), nil
	}

	// plain text bodies are treated as a success message
	wrapped, err := json.Marshal(model.Envelope{Result: model.ResultOK, Message: string(body)})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to wrap text response")
	}
	return wrapped, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
