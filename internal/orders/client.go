package orders

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
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/theirongolddev/household/internal/model"
	"github.com/theirongolddev/household/internal/orderid"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodySize    = 1 << 20 // 1 MB
	enrichLimit    = 4
)

var (
	// ErrNotFound indicates the worker has no such order.
	ErrNotFound = errors.New("orders: order not found")
	// ErrUnauthorized indicates the worker rejected the API key.
	ErrUnauthorized = errors.New("orders: unauthorized")
	// ErrUnavailable indicates the worker could not be reached or failed.
	ErrUnavailable = errors.New("orders: worker unavailable")
	// ErrNotConfigured is returned when no worker URL is set.
	ErrNotConfigured = errors.New("orders: worker url not configured")
)

// Cache stores fetched orders between lookups. Any error from
// GetCachedOrder is treated as a miss.
type Cache interface {
	GetCachedOrder(ctx context.Context, orderID string, maxAge time.Duration) (model.AmazonOrder, error)
	CacheOrder(ctx context.Context, o model.AmazonOrder) error
}

// Client talks to an orders worker.
type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	http    *http.Client

	cache  Cache
	maxAge time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPIKey sends key as a bearer token.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) { c.apiKey = strings.TrimSpace(key) }
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// WithCache serves FetchOrder from cache entries younger than maxAge and
// stores fresh results.
func WithCache(cache Cache, maxAge time.Duration) ClientOption {
	return func(c *Client) {
		c.cache = cache
		c.maxAge = maxAge
	}
}

// NewClient creates a client for the worker at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		timeout: defaultTimeout,
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether the client has a worker to talk to.
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != ""
}

// Health returns the worker's health report.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var out HealthResponse
	err := c.do(ctx, http.MethodGet, "/health", nil, &out)
	return out, err
}

// FetchOrder returns order details, from the cache when fresh.
func (c *Client) FetchOrder(ctx context.Context, id string) (model.AmazonOrder, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return model.AmazonOrder{}, fmt.Errorf("%w: empty order id", ErrNotFound)
	}
	if c.cache != nil {
		if o, err := c.cache.GetCachedOrder(ctx, id, c.maxAge); err == nil {
			return o, nil
		}
	}

	var resp struct {
		Success bool              `json:"success"`
		Data    model.AmazonOrder `json:"data"`
		Error   string            `json:"error"`
	}
	if err := c.do(ctx, http.MethodGet, "/order/"+url.PathEscape(id), nil, &resp); err != nil {
		return model.AmazonOrder{}, err
	}
	if !resp.Success {
		return model.AmazonOrder{}, fmt.Errorf("%w: %s", ErrUnavailable, resp.Error)
	}
	if resp.Data.OrderID == "" {
		resp.Data.OrderID = id
	}

	if c.cache != nil {
		// A failed cache write only costs a refetch later.
		_ = c.cache.CacheOrder(ctx, resp.Data)
	}
	return resp.Data, nil
}

// Parse asks the worker to extract an order id from merchant.
func (c *Client) Parse(ctx context.Context, merchant string) (ParseResult, error) {
	var resp struct {
		Success bool `json:"success"`
		ParseResult
	}
	err := c.do(ctx, http.MethodPost, "/parse", map[string]string{"merchant": merchant}, &resp)
	return resp.ParseResult, err
}

// Bulk asks the worker to extract order ids from many merchants.
func (c *Client) Bulk(ctx context.Context, merchants []string) ([]ParseResult, error) {
	var resp struct {
		Success bool          `json:"success"`
		Results []ParseResult `json:"results"`
	}
	if merchants == nil {
		merchants = []string{}
	}
	if err := c.do(ctx, http.MethodPost, "/bulk", map[string][]string{"merchants": merchants}, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Enriched pairs a charge with its order details.
type Enriched struct {
	ChargeID int64
	OrderID  string
	Order    *model.AmazonOrder
	Err      error
}

// ProgressFunc reports how many lookups have finished.
type ProgressFunc func(done, total int)

// Enrich fetches order details for every Amazon charge with an order id,
// at most four at a time. Per-charge failures are recorded in the result;
// only context cancellation aborts the batch.
func (c *Client) Enrich(ctx context.Context, charges []model.Charge, progress ProgressFunc) ([]Enriched, error) {
	var out []Enriched
	for _, ch := range charges {
		if id, ok := orderid.ExtractFromMerchant(ch.Merchant); ok {
			out = append(out, Enriched{ChargeID: ch.ID, OrderID: id})
		}
	}
	if len(out) == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichLimit)
	var done atomic.Int64
	for i := range out {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			o, err := c.FetchOrder(gctx, out[i].OrderID)
			if err != nil {
				out[i].Err = err
			} else {
				out[i].Order = &o
			}
			n := done.Add(1)
			if progress != nil {
				progress(int(n), len(out))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, ctx.Err()
}

// do sends a JSON request and decodes a JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("orders: encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("orders: creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("orders: reading response: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("orders: parsing response: %w", err)
	}
	return nil
}
