package http

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"

	"github.com/nppfbt/ndi-verifier/internal/log"
)

// DefaultTimeout is applied to every outbound call whose context carries no
// earlier deadline.
const DefaultTimeout = 15 * time.Second

// DefaultHTTPClientWithRetry http client with retry behavior.
var DefaultHTTPClientWithRetry = NewClient(http.Client{
	Transport: &retryablehttp.RoundTripper{
		Client: retryablehttp.NewClient(),
	},
}, DefaultTimeout)

// NewClientWithRetry returns a client with retry behavior and the given
// per-call timeout
func NewClientWithRetry(timeout time.Duration) *Client {
	return NewClient(http.Client{
		Transport: &retryablehttp.RoundTripper{
			Client: retryablehttp.NewClient(),
		},
	}, timeout)
}

// Client represents default http client that can be used to send requests to third party services
type Client struct {
	base    http.Client
	timeout time.Duration
}

// NewClient returns new instance of custom client
func NewClient(c http.Client, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		base:    c,
		timeout: timeout,
	}
}

// Get sends a GET request to url with requestID headers
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, err
	}

	addRequestIDToHeader(ctx, request)

	return executeRequest(ctx, c, request)
}

// Post sends a POST request to url with additional headers
func (c *Client) Post(ctx context.Context, url string, req []byte) ([]byte, error) {
	return c.send(ctx, http.MethodPost, url, req)
}

// Put sends a PUT request to url with additional headers
func (c *Client) Put(ctx context.Context, url string, req []byte) ([]byte, error) {
	return c.send(ctx, http.MethodPut, url, req)
}

func (c *Client) send(ctx context.Context, method, url string, req []byte) ([]byte, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	request, err := http.NewRequestWithContext(ctx, method, url, bytes.NewBuffer(req))
	if err != nil {
		return nil, err
	}

	addRequestIDToHeader(ctx, request)

	return executeRequest(ctx, c, request)
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// addRequestIDToHeader adds headers to request
func addRequestIDToHeader(ctx context.Context, r *http.Request) {
	requestID := middleware.GetReqID(ctx)

	r.Header.Add("Content-Type", "application/json")
	r.Header.Add(middleware.RequestIDHeader, requestID)
}

// executeRequest contains common logic of request execution
func executeRequest(ctx context.Context, c *Client, r *http.Request) ([]byte, error) {
	resp, err := c.base.Do(r)
	if err != nil {
		return nil, err
	}

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			log.Error(ctx, "can not close body", "err", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, errors.Errorf("http request failed with status %v, error: %v", resp.StatusCode, string(body))
	}

	return body, nil
}
