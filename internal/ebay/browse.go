package ebay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/skireal/ebay-tracker/internal/metrics"
	domain "github.com/skireal/ebay-tracker/pkg/types"
)

const (
	defaultBrowseURL   = "https://api.ebay.com/buy/browse/v1/item_summary/search"
	defaultMarketplace = "EBAY_US"

	// The Browse API caps item_summary/search at 200 results per page.
	browseMaxLimit = 200
)

// BrowseClient implements Client using the eBay Browse API.
type BrowseClient struct {
	tokens      TokenProvider
	browseURL   string
	marketplace string
	client      *http.Client
	rateLimiter *RateLimiter
	nowFunc     func() time.Time
}

// BrowseOption configures the BrowseClient.
type BrowseOption func(*BrowseClient)

// WithBrowseURL overrides the default Browse API endpoint.
func WithBrowseURL(u string) BrowseOption {
	return func(c *BrowseClient) {
		c.browseURL = u
	}
}

// WithMarketplace overrides the default marketplace.
func WithMarketplace(m string) BrowseOption {
	return func(c *BrowseClient) {
		c.marketplace = m
	}
}

// WithBrowseHTTPClient overrides the default HTTP client.
func WithBrowseHTTPClient(hc *http.Client) BrowseOption {
	return func(c *BrowseClient) {
		c.client = hc
	}
}

// WithRateLimiter injects a rate limiter that controls per-second and daily
// API call limits. When set, every Search() call goes through Wait() first.
func WithRateLimiter(r *RateLimiter) BrowseOption {
	return func(c *BrowseClient) {
		c.rateLimiter = r
	}
}

// WithBrowseNowFunc overrides the time function for testing. The Browse API
// does not report a listing start time, so items are stamped with the
// current time when first seen.
func WithBrowseNowFunc(f func() time.Time) BrowseOption {
	return func(c *BrowseClient) {
		c.nowFunc = f
	}
}

// NewBrowseClient creates a new eBay Browse API client.
func NewBrowseClient(tokens TokenProvider, opts ...BrowseOption) *BrowseClient {
	c := &BrowseClient{
		tokens:      tokens,
		browseURL:   defaultBrowseURL,
		marketplace: defaultMarketplace,
		client:      &http.Client{Timeout: 15 * time.Second},
		nowFunc:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type browseAPIResponse struct {
	ItemSummaries []ItemSummary `json:"itemSummaries"`
	Total         int           `json:"total"`
}

// Search implements Client.Search by querying the Browse API, newest first.
func (c *BrowseClient) Search(
	ctx context.Context,
	req SearchRequest,
) ([]domain.Item, error) {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}
	metrics.EbayAPICallsTotal.WithLabelValues("browse").Inc()

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting auth token: %w", err)
	}

	u := c.buildSearchURL(req)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("X-EBAY-C-MARKETPLACE-ID", c.marketplace)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("executing search request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf(
			"eBay Browse API error (status %d): %s",
			resp.StatusCode,
			string(body),
		)
	}

	var apiResp browseAPIResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}

	return ToItems(apiResp.ItemSummaries, req.Keyword, c.nowFunc()), nil
}

func (c *BrowseClient) buildSearchURL(req SearchRequest) string {
	params := url.Values{}
	params.Set("q", req.Keyword)
	params.Set("sort", "newlyListed")

	limit := req.Limit
	if limit <= 0 || limit > browseMaxLimit {
		limit = browseMaxLimit
	}
	params.Set("limit", strconv.Itoa(limit))

	if f := buildBrowseFilters(req); f != "" {
		params.Set("filter", f)
	}

	// Proximity search is a separate parameter pair in the Browse API.
	if req.PostalCode != "" {
		params.Set("buyerPostalCode", req.PostalCode)
		if req.Radius != "" {
			params.Set("searchRadius", req.Radius)
		}
	}

	return c.browseURL + "?" + params.Encode()
}

// buildBrowseFilters assembles the comma-separated Browse API filter string.
func buildBrowseFilters(req SearchRequest) string {
	var filters []string

	switch {
	case req.MinPrice != "" && req.MaxPrice != "":
		filters = append(filters, fmt.Sprintf("price:[%s..%s]", req.MinPrice, req.MaxPrice))
	case req.MinPrice != "":
		filters = append(filters, fmt.Sprintf("price:[%s..]", req.MinPrice))
	case req.MaxPrice != "":
		filters = append(filters, fmt.Sprintf("price:[..%s]", req.MaxPrice))
	}

	if len(req.Conditions) > 0 {
		filters = append(
			filters,
			fmt.Sprintf("conditions:{%s}", strings.Join(req.Conditions, "|")),
		)
	}

	if country := browseLocationCountry(req); country != "" {
		filters = append(filters, "itemLocationCountry:"+country)
	}

	return strings.Join(filters, ",")
}

// browseLocationCountry resolves the itemLocationCountry filter: an explicit
// country wins, otherwise the first located_in code is used.
func browseLocationCountry(req SearchRequest) string {
	if req.LocationCountry != "" {
		return req.LocationCountry
	}
	if req.LocatedIn != "" {
		first, _, _ := strings.Cut(req.LocatedIn, ",")
		return strings.TrimSpace(first)
	}
	return ""
}
