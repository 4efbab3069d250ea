package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"
)

// ClientOption configures Client.
type ClientOption func(*Client)

// Client is a thin HTTP client with configurable timeout and optional
// cookie persistence, for upstream data sources that gate access behind
// session cookies.
type Client struct {
	timeout   time.Duration
	useCookie bool
	headers   map[string]string
	client    *http.Client
}

// NewClient creates a new HTTP client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		timeout: 30 * time.Second,
		headers: map[string]string{},
	}

	for _, opt := range opts {
		opt(c)
	}

	c.client = &http.Client{Timeout: c.timeout}
	if c.useCookie {
		jar, _ := cookiejar.New(nil)
		c.client.Jar = jar
	}
	return c
}

// ResetCookies replaces the cookie jar, dropping any accumulated session.
func (c *Client) ResetCookies() {
	if c.useCookie {
		jar, _ := cookiejar.New(nil)
		c.client.Jar = jar
	}
}

// Get issues a GET request with the client's default headers plus query
// parameters, returning status code and raw body.
func (c *Client) Get(ctx context.Context, rawURL string, query map[string]string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("new request: %w", err)
	}

	if len(query) > 0 {
		q := req.URL.Query()
		for k, v := range query {
			q.Set(k, v)
		}
		req.URL.RawQuery = q.Encode()
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, body, nil
}

// WithTimeout sets the client timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithCookieJar enables cookie persistence across requests.
func WithCookieJar() ClientOption {
	return func(c *Client) {
		c.useCookie = true
	}
}

// WithHeader adds a default header sent on every request.
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.headers[key] = value
	}
}
