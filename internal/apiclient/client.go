package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/feeta/feeta/pkg/cerr"
	"github.com/feeta/feeta/pkg/clog"
)

const maxResponseBytes = 8 << 20

// Client talks to the dashboard REST API.
type Client struct {
	baseURL string
	http    *http.Client
}

type Option func(*clientConfig)

type clientConfig struct {
	timeout time.Duration
	base    http.RoundTripper
}

func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = d
	}
}

// WithTransport replaces the innermost round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *clientConfig) {
		c.base = rt
	}
}

// New returns a client for baseURL. When tokens is non-nil every request
// carries its token as a bearer credential.
func New(baseURL string, tokens oauth2.TokenSource, opts ...Option) *Client {
	cfg := clientConfig{timeout: 30 * time.Second, base: http.DefaultTransport}
	for _, opt := range opts {
		opt(&cfg)
	}

	var rt http.RoundTripper = clog.NewTransport(cfg.base)
	if tokens != nil {
		rt = &oauth2.Transport{Source: tokens, Base: rt}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Transport: rt, Timeout: cfg.timeout},
	}
}

// errorBody is the error envelope the API uses on any status code.
type errorBody struct {
	Error string `json:"error"`
}

// do sends body as JSON and decodes the response into out. op names the
// operation in fallback error messages.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return cerr.NewError(cerr.InvalidArgument, "invalid request", fmt.Errorf("%s: failed to encode body: %w", op, err))
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return cerr.NewError(cerr.InvalidArgument, "invalid request", fmt.Errorf("%s: %w", op, err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		var ce *cerr.Error
		if errors.As(err, &ce) {
			return ce
		}
		return cerr.FromTransport(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return cerr.FromTransport(err)
	}

	var eb errorBody
	// Non-JSON bodies simply leave eb empty.
	_ = json.Unmarshal(data, &eb)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := eb.Error
		if msg == "" {
			msg = op + " failed"
		}
		return cerr.NewError(cerr.FromHTTPStatus(resp.StatusCode), msg,
			fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode))
	}
	if eb.Error != "" {
		return cerr.NewError(cerr.Unknown, eb.Error, fmt.Errorf("%s %s: error in 2xx response", method, path))
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return cerr.NewError(cerr.Internal, "unexpected response from server", fmt.Errorf("%s: %w", op, err))
	}
	return nil
}
