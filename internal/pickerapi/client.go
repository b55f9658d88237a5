// Package pickerapi is the HTTP client for the shop's dashboard API. It hides
// the server's inconsistent field naming behind the canonical model types.
package pickerapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"
)

// Client talks to one shop.
type Client struct {
	baseURL *url.URL
	shopID  int64
	http    *http.Client
	log     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the logger used for skipped records and request failures.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// New creates a Client for the shop at baseURL.
func New(baseURL string, shopID int64, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	c := &Client{
		baseURL: u,
		shopID:  shopID,
		http:    http.DefaultClient,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ShopID returns the shop this client is scoped to.
func (c *Client) ShopID() int64 {
	return c.shopID
}

// do sends a request and returns the body of a 2xx JSON response. A 2xx
// body that is not JSON is discarded and returned as nil rather than as
// text; every caller reads a nil body as "no payload".
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("parse path %q: %w", path, err)
	}
	u := c.baseURL.ResolveReference(ref)

	if query == nil {
		query = url.Values{}
	}
	query.Set("shop_id", strconv.FormatInt(c.shopID, 10))
	u.RawQuery = query.Encode()

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("shop api request failed",
			zap.String("method", method), zap.String("url", u.String()), zap.Error(err))
		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, method, u.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrTransport, err)
	}

	ct := resp.Header.Get("Content-Type")
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newAPIError(resp.StatusCode, u.String(), ct, raw)
		c.log.Debug("shop api error response",
			zap.String("method", method), zap.String("url", u.String()),
			zap.Int("status", resp.StatusCode), zap.Bool("misconfigured", apiErr.Misconfigured))
		return nil, apiErr
	}
	if !isJSON(ct) {
		return nil, nil
	}
	return raw, nil
}
