package revue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"go.miloapis.com/email-provider-revue/pkg/version"
)

const (
	// APIVersion is the Revue API version every request is sent to.
	APIVersion = "v2"

	defaultHost = "https://www.getrevue.co/api"
)

// HTTPDoer is the interface for executing HTTP requests.
// *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is the Revue API client.
type Client struct {
	token      string
	host       string
	baseURL    string
	userAgent  string
	httpClient HTTPDoer
}

// ClientOption defines a functional option for configuring the Client.
type ClientOption func(*Client)

// WithHost sets the API host. The version prefix is appended to it.
func WithHost(host string) ClientOption {
	return func(c *Client) {
		c.host = host
	}
}

// WithHTTPClient sets a custom transport.
func WithHTTPClient(client HTTPDoer) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithUserAgent overrides the User-Agent header sent with every request.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a new Revue API client.
//
// An empty token is accepted; Revue rejects it with 401 on the first call.
func NewClient(token string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		token:      token,
		host:       defaultHost,
		userAgent:  version.UserAgent(),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.host == "" {
		return nil, fmt.Errorf("host is required")
	}
	if c.httpClient == nil {
		return nil, fmt.Errorf("http client is required")
	}

	c.baseURL = strings.TrimRight(c.host, "/") + "/" + APIVersion + "/"

	return c, nil
}

// Version returns the API version the client talks to.
func (c *Client) Version() string {
	return APIVersion
}

// BaseURL returns the resolved base address, including the version prefix and a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Request describes a single call against the API. Path is relative to the base URL.
// At most one of JSON and Form may be set.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	JSON   any
	Form   url.Values
}

// Do sends req and returns the response. Method defaults to GET.
//
// A non-2xx status is returned as *Error. The response is never returned
// together with an error.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	if req.JSON != nil && req.Form != nil {
		return nil, fmt.Errorf("%w: request cannot carry both a JSON and a form body", ErrInvalidArgument)
	}

	var (
		bodyReader  io.Reader
		contentType string
	)
	switch {
	case req.JSON != nil:
		data, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
		contentType = "application/json"
	case req.Form != nil:
		bodyReader = strings.NewReader(req.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	target := c.baseURL + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Token "+c.token)
	httpReq.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	log := logr.FromContextOrDiscard(ctx).WithValues("method", method, "path", req.Path)
	log.V(1).Info("Sending Revue request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	log.V(1).Info("Received Revue response", "status", resp.StatusCode, "bytes", len(respBody))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	return newResponse(resp.StatusCode, resp.Header, respBody), nil
}
