// Package eve is a client for the paginated Eve-style REST API that serves
// FlowMaps collections.
package eve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/flowmaps/flowmaps-data/internal/domain"
	"github.com/flowmaps/flowmaps-data/internal/domain/document"
	"github.com/flowmaps/flowmaps-data/internal/metrics"
)

// DefaultBaseURL is the public FlowMaps API.
const DefaultBaseURL = "https://flowmaps.life.bsc.es/api"

const errorBodyLimit = 1024

// Config holds the API client settings.
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64 // 0 disables throttling
	HTTPClient        *http.Client
	Logger            *zap.Logger
	Metrics           *metrics.Fetch
}

// Client issues single GET requests and decodes one Page per call.
// It never retries.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
	metrics *metrics.Fetch
}

// Params are the query parameters of a first-page request.
type Params struct {
	Where      string
	MaxResults int
	Projection string
	Sort       string
}

// Page is one decoded API response.
type Page struct {
	Items    []document.Value
	Total    int
	HasTotal bool
	HasLinks bool
	Next     string
}

// NewClient creates an API client.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid api base url %q", cfg.BaseURL)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		baseURL: base,
		http:    hc,
		logger:  logger,
		metrics: cfg.Metrics,
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c, nil
}

// BaseURL returns the API root without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// URL renders the first-page request URL for collection.
func (c *Client) URL(collection string, p Params) string {
	v := url.Values{}
	v.Set("where", p.Where)
	if p.MaxResults > 0 {
		v.Set("max_results", strconv.Itoa(p.MaxResults))
	}
	v.Set("projection", p.Projection)
	if p.Sort != "" {
		v.Set("sort", p.Sort)
	}
	return c.baseURL + "/" + collection + "?" + v.Encode()
}

// Get fetches the first page of a query.
func (c *Client) Get(ctx context.Context, collection string, p Params) (Page, error) {
	return c.do(ctx, collection, c.URL(collection, p))
}

// Follow fetches the page a `_links.next.href` points at. Relative hrefs
// are resolved against the base URL.
func (c *Client) Follow(ctx context.Context, collection, href string) (Page, error) {
	return c.do(ctx, collection, c.resolve(href))
}

func (c *Client) resolve(href string) string {
	if u, err := url.Parse(href); err == nil && u.IsAbs() {
		return href
	}
	return c.baseURL + "/" + strings.TrimPrefix(href, "/")
}

func (c *Client) do(ctx context.Context, collection, rawURL string) (Page, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Page{}, &domain.RemoteError{URL: rawURL, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return Page{}, &domain.RemoteError{URL: rawURL, Err: fmt.Errorf("new request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(collection, 0, time.Since(start))
		c.logger.Debug("api request failed", zap.String("url", rawURL), zap.Error(err))
		return Page{}, &domain.RemoteError{URL: rawURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		c.metrics.ObserveRequest(collection, resp.StatusCode, time.Since(start))
		return Page{}, &domain.RemoteError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(body))),
		}
	}

	body, err := io.ReadAll(resp.Body)
	c.metrics.ObserveRequest(collection, resp.StatusCode, time.Since(start))
	if err != nil {
		return Page{}, &domain.RemoteError{URL: rawURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	page, err := decodePage(body)
	if err != nil {
		return Page{}, &domain.RemoteError{URL: rawURL, StatusCode: resp.StatusCode, Err: err}
	}

	c.logger.Debug("api page",
		zap.String("collection", collection),
		zap.String("url", rawURL),
		zap.Int("items", len(page.Items)),
		zap.Int("total", page.Total),
		zap.Bool("has_next", page.Next != ""),
		zap.Duration("latency", time.Since(start)),
	)
	return page, nil
}

var errMalformed = errors.New("malformed page")

func decodePage(body []byte) (Page, error) {
	v, err := document.Parse(body)
	if err != nil {
		return Page{}, fmt.Errorf("%w: %w", errMalformed, err)
	}
	doc, ok := v.AsObject()
	if !ok {
		return Page{}, fmt.Errorf("%w: body is %s, want object", errMalformed, v.Kind())
	}

	itemsVal, ok := doc.Get("_items")
	if !ok {
		return Page{}, fmt.Errorf("%w: _items missing", errMalformed)
	}
	items, ok := itemsVal.AsArray()
	if !ok {
		return Page{}, fmt.Errorf("%w: _items is %s, want array", errMalformed, itemsVal.Kind())
	}

	page := Page{Items: items}
	if total, ok := doc.Path("_meta.total"); ok {
		if n, ok := total.AsNumber(); ok {
			page.Total = int(n)
			page.HasTotal = true
		}
	}
	if links, ok := doc.Get("_links"); ok && !links.IsNull() {
		page.HasLinks = true
		if href, ok := doc.Path("_links.next.href"); ok {
			page.Next, _ = href.AsString()
		}
	}
	return page, nil
}
