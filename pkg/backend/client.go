// Package backend is the HTTP client used to talk to the marketplace REST
// API. Responses carry the decoded JSON payload in Data; non-2xx statuses are
// reported as *StatusError so callers can tell "gone" from "unreachable".
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rubiojr/marketsearch/pkg/log"
	"github.com/rubiojr/marketsearch/pkg/version"
	"golang.org/x/oauth2"
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 10 * 1024 * 1024

// Response is a decoded backend response.
type Response struct {
	Status int
	Header http.Header
	// Data is the decoded JSON body, or nil for empty bodies and HEAD requests.
	Data any
}

// StatusError is returned for responses outside the 2xx range.
type StatusError struct {
	Method string
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: http %d", e.Method, e.URL, e.Status)
}

// IsStatus reports whether err carries one of the given HTTP status codes.
func IsStatus(err error, codes ...int) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	for _, c := range codes {
		if se.Status == c {
			return true
		}
	}
	return false
}

// Doer is the subset of the client used by the search pipeline: list and
// search calls plus existence probes.
type Doer interface {
	Get(ctx context.Context, path string, params url.Values) (*Response, error)
	Head(ctx context.Context, path string) (*Response, error)
}

var _ Doer = (*Client)(nil)

type Options struct {
	BaseURL string
	// Token, when set, is sent as a bearer token on every request.
	Token   string
	Timeout time.Duration
	// HTTPClient overrides the underlying client. Token is ignored when set.
	HTTPClient *http.Client
}

type Client struct {
	baseURL *url.URL
	http    *http.Client
	logger  *log.Logger
}

func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, fmt.Errorf("backend base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q must use http or https", opts.BaseURL)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
		if opts.Token != "" {
			ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
			ctx := context.WithValue(context.Background(), oauth2.HTTPClient, client)
			client = oauth2.NewClient(ctx, ts)
			client.Timeout = timeout
		}
	}

	return &Client{
		baseURL: base,
		http:    client,
		logger:  log.ForService("backend"),
	}, nil
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

func (c *Client) Get(ctx context.Context, path string, params url.Values) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, params, nil)
}

func (c *Client) Head(ctx context.Context, path string) (*Response, error) {
	return c.do(ctx, http.MethodHead, path, nil, nil)
}

func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.do(ctx, http.MethodPost, path, nil, body)
}

func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.do(ctx, http.MethodPut, path, nil, body)
}

func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) resolve(path string, params url.Values) (*url.URL, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("parsing path %q: %w", path, err)
	}
	u := ref
	if !ref.IsAbs() {
		joined := *c.baseURL
		joined.Path = strings.TrimRight(c.baseURL.Path, "/") + "/" + strings.TrimLeft(ref.Path, "/")
		joined.RawPath = strings.TrimRight(c.baseURL.EscapedPath(), "/") + "/" + strings.TrimLeft(ref.EscapedPath(), "/")
		joined.RawQuery = ref.RawQuery
		u = &joined
	}
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u, nil
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body any) (*Response, error) {
	u, err := c.resolve(path, params)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debugf("%s %s failed: %v", method, u, err)
		return nil, fmt.Errorf("%s %s: %w", method, u, err)
	}
	defer resp.Body.Close()
	c.logger.Debugf("%s %s -> %d (%s)", method, u, resp.StatusCode, time.Since(started).Round(time.Millisecond))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return nil, &StatusError{Method: method, URL: u.String(), Status: resp.StatusCode}
	}

	out := &Response{Status: resp.StatusCode, Header: resp.Header}
	if method == http.MethodHead {
		return out, nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return out, nil
	}
	// Numbers stay json.Number so large identifiers keep every digit.
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&out.Data); err != nil {
		return nil, fmt.Errorf("decoding %s %s: %w", method, u, err)
	}
	return out, nil
}
