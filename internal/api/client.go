// Package api talks to the sales-analysis backend over its JSON HTTP API.
package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// Client issues JSON requests against the backend
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	location   *time.Location
	logger     zerolog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds every JSON request. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLocation sets the zone used for timestamps that carry no offset
func WithLocation(loc *time.Location) Option {
	return func(c *Client) {
		if loc != nil {
			c.location = loc
		}
	}
}

// WithLogger sets the logger used for failed requests
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a client for the backend at baseURL
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		location:   time.Local,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend root the client was created with
func (c *Client) BaseURL() string {
	return c.baseURL
}

// RequestOptions describe a single request
type RequestOptions struct {
	Method  string
	Headers map[string]string
	Body    io.Reader
}

// Request sends a request to path and decodes a JSON success body into out.
// Content-Type defaults to application/json; headers in opts override it.
// A non-2xx response returns a *StatusError.
func (c *Client) Request(ctx context.Context, path string, opts RequestOptions, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.do(ctx, path, opts)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		err = fmt.Errorf("decoding %s response: %w", path, err)
		c.logger.Error().Err(err).Str("path", path).Msg("api request failed")
		return err
	}
	return nil
}

// do performs the round trip and turns non-2xx responses into errors.
// The caller owns the returned body.
func (c *Client) do(ctx context.Context, path string, opts RequestOptions) (*http.Response, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, opts.Body)
	if err != nil {
		return nil, fmt.Errorf("building %s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("%s %s: %w", method, path, err)
		c.logger.Error().Err(err).Str("method", method).Str("path", path).Msg("api request failed")
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		statusErr := newStatusError(resp)
		c.logger.Error().
			Int("status", resp.StatusCode).
			Str("method", method).
			Str("path", path).
			Str("message", statusErr.Message).
			Msg("api request failed")
		return nil, statusErr
	}

	return resp, nil
}

// Get issues a GET request
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Request(ctx, path, RequestOptions{Method: http.MethodGet}, out)
}

// Post sends payload as a JSON body
func (c *Client) Post(ctx context.Context, path string, payload, out any) error {
	body, err := encode(payload)
	if err != nil {
		return err
	}
	return c.Request(ctx, path, RequestOptions{Method: http.MethodPost, Body: body}, out)
}

// Put sends payload as a JSON body
func (c *Client) Put(ctx context.Context, path string, payload, out any) error {
	body, err := encode(payload)
	if err != nil {
		return err
	}
	return c.Request(ctx, path, RequestOptions{Method: http.MethodPut, Body: body}, out)
}

// Delete issues a DELETE request
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Request(ctx, path, RequestOptions{Method: http.MethodDelete}, out)
}

func encode(payload any) (io.Reader, error) {
	if payload == nil {
		return nil, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}
	return bytes.NewReader(data), nil
}
