package ebay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/skireal/ebay-tracker/internal/metrics"
	domain "github.com/skireal/ebay-tracker/pkg/types"
)

const (
	defaultFindingURL = "https://svcs.ebay.com/services/search/FindingService/v1"

	// The Finding API caps entriesPerPage at 100.
	findingMaxEntries = 100
)

// FindingClient implements Client using the legacy eBay Finding API
// (findItemsAdvanced). It needs no OAuth token, only the application ID,
// which makes it a usable fallback when the Browse API is unavailable.
type FindingClient struct {
	appID       string
	findingURL  string
	client      *http.Client
	rateLimiter *RateLimiter
	nowFunc     func() time.Time
}

// FindingOption configures the FindingClient.
type FindingOption func(*FindingClient)

// WithFindingURL overrides the default Finding API endpoint.
func WithFindingURL(u string) FindingOption {
	return func(c *FindingClient) {
		c.findingURL = u
	}
}

// WithFindingHTTPClient overrides the default HTTP client.
func WithFindingHTTPClient(hc *http.Client) FindingOption {
	return func(c *FindingClient) {
		c.client = hc
	}
}

// WithFindingRateLimiter injects a shared rate limiter.
func WithFindingRateLimiter(r *RateLimiter) FindingOption {
	return func(c *FindingClient) {
		c.rateLimiter = r
	}
}

// WithFindingNowFunc overrides the time function for testing.
func WithFindingNowFunc(f func() time.Time) FindingOption {
	return func(c *FindingClient) {
		c.nowFunc = f
	}
}

// NewFindingClient creates a new Finding API client.
func NewFindingClient(appID string, opts ...FindingOption) *FindingClient {
	c := &FindingClient{
		appID:      appID,
		findingURL: defaultFindingURL,
		client:     &http.Client{Timeout: 15 * time.Second},
		nowFunc:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search implements Client.Search via findItemsAdvanced, newest first.
func (c *FindingClient) Search(
	ctx context.Context,
	req SearchRequest,
) ([]domain.Item, error) {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}
	metrics.EbayAPICallsTotal.WithLabelValues("finding").Inc()

	u := c.buildSearchURL(req)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}

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
			"eBay Finding API error (status %d): %s",
			resp.StatusCode,
			string(body),
		)
	}

	var apiResp findingAPIResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}

	return c.parseResponse(&apiResp, req.Keyword)
}

func (c *FindingClient) buildSearchURL(req SearchRequest) string {
	params := url.Values{}
	params.Set("OPERATION-NAME", "findItemsAdvanced")
	params.Set("SERVICE-VERSION", "1.0.0")
	params.Set("SECURITY-APPNAME", c.appID)
	params.Set("RESPONSE-DATA-FORMAT", "JSON")
	params.Set("REST-PAYLOAD", "")
	params.Set("keywords", req.Keyword)
	params.Set("sortOrder", "StartTimeNewest")

	limit := req.Limit
	if limit <= 0 || limit > findingMaxEntries {
		limit = findingMaxEntries
	}
	params.Set("paginationInput.entriesPerPage", strconv.Itoa(limit))

	// Item filters use the indexed itemFilter(n).name/.value encoding.
	idx := 0
	addFilter := func(name, value string) {
		params.Set(fmt.Sprintf("itemFilter(%d).name", idx), name)
		params.Set(fmt.Sprintf("itemFilter(%d).value", idx), value)
		idx++
	}

	if req.MinPrice != "" {
		addFilter("MinPrice", req.MinPrice)
	}
	if req.MaxPrice != "" {
		addFilter("MaxPrice", req.MaxPrice)
	}
	if len(req.Conditions) > 0 {
		params.Set(fmt.Sprintf("itemFilter(%d).name", idx), "Condition")
		for i, cond := range req.Conditions {
			params.Set(fmt.Sprintf("itemFilter(%d).value(%d)", idx, i), cond)
		}
		idx++
	}
	if req.LocatedIn != "" {
		addFilter("LocatedIn", req.LocatedIn)
	}
	if req.ShipsTo != "" {
		addFilter("AvailableTo", req.ShipsTo)
	}

	if req.PostalCode != "" {
		params.Set("buyerPostalCode", req.PostalCode)
	}

	return c.findingURL + "?" + params.Encode()
}

// Finding API responses wrap every value in a single-element array.
type findingAPIResponse struct {
	FindItemsAdvancedResponse []findingResponseBody `json:"findItemsAdvancedResponse"`
}

type findingResponseBody struct {
	Ack          []string              `json:"ack"`
	SearchResult []findingSearchResult `json:"searchResult"`
}

type findingSearchResult struct {
	Item []findingItem `json:"item"`
}

type findingItem struct {
	ItemID        []string              `json:"itemId"`
	Title         []string              `json:"title"`
	ViewItemURL   []string              `json:"viewItemURL"`
	GalleryURL    []string              `json:"galleryURL"`
	Location      []string              `json:"location"`
	Country       []string              `json:"country"`
	Condition     []findingCondition    `json:"condition"`
	SellerInfo    []findingSellerInfo   `json:"sellerInfo"`
	SellingStatus []findingSellingState `json:"sellingStatus"`
	ListingInfo   []findingListingInfo  `json:"listingInfo"`
	ShippingInfo  []findingShippingInfo `json:"shippingInfo"`
}

type findingCondition struct {
	ConditionDisplayName []string `json:"conditionDisplayName"`
}

type findingSellerInfo struct {
	SellerUserName []string `json:"sellerUserName"`
}

type findingSellingState struct {
	CurrentPrice []findingMoney `json:"currentPrice"`
	BidCount     []string       `json:"bidCount"`
}

type findingListingInfo struct {
	StartTime   []string `json:"startTime"`
	EndTime     []string `json:"endTime"`
	ListingType []string `json:"listingType"`
}

type findingShippingInfo struct {
	ShippingServiceCost []findingMoney `json:"shippingServiceCost"`
	ShipToLocations     []string       `json:"shipToLocations"`
}

type findingMoney struct {
	Value    string `json:"__value__"`
	Currency string `json:"@currencyId"`
}

func (c *FindingClient) parseResponse(
	resp *findingAPIResponse,
	keyword string,
) ([]domain.Item, error) {
	if len(resp.FindItemsAdvancedResponse) == 0 {
		return nil, fmt.Errorf("empty findItemsAdvanced response")
	}

	body := &resp.FindItemsAdvancedResponse[0]
	if first(body.Ack) != "Success" {
		return nil, fmt.Errorf("findItemsAdvanced ack: %q", first(body.Ack))
	}

	if len(body.SearchResult) == 0 {
		return nil, nil
	}

	rawItems := body.SearchResult[0].Item
	items := make([]domain.Item, 0, len(rawItems))
	for i := range rawItems {
		items = append(items, c.parseItem(&rawItems[i], keyword))
	}
	return items, nil
}

func (c *FindingClient) parseItem(raw *findingItem, keyword string) domain.Item {
	item := domain.Item{
		ItemID:   first(raw.ItemID),
		Title:    first(raw.Title),
		ItemURL:  first(raw.ViewItemURL),
		ImageURL: first(raw.GalleryURL),
		Location: first(raw.Location),
		Country:  first(raw.Country),
		Keyword:  keyword,
		ListedAt: c.nowFunc(),
	}

	if len(raw.SellingStatus) > 0 {
		ss := &raw.SellingStatus[0]
		if len(ss.CurrentPrice) > 0 {
			item.Price = ss.CurrentPrice[0].Value
			item.Currency = ss.CurrentPrice[0].Currency
		}
		if n, err := strconv.Atoi(first(ss.BidCount)); err == nil {
			item.BidCount = n
		}
	}

	if len(raw.Condition) > 0 {
		item.Condition = first(raw.Condition[0].ConditionDisplayName)
	}

	if len(raw.SellerInfo) > 0 {
		item.Seller = first(raw.SellerInfo[0].SellerUserName)
	}

	if len(raw.ListingInfo) > 0 {
		li := &raw.ListingInfo[0]
		if t, err := time.Parse(time.RFC3339, first(li.StartTime)); err == nil {
			item.ListedAt = t
		}
		if t, err := time.Parse(time.RFC3339, first(li.EndTime)); err == nil {
			item.EndsAt = &t
		}
		item.ListingType = parseFindingListingType(first(li.ListingType))
	}

	if len(raw.ShippingInfo) > 0 {
		si := &raw.ShippingInfo[0]
		if len(si.ShippingServiceCost) > 0 {
			item.ShippingCost = si.ShippingServiceCost[0].Value
			item.ShippingCurrency = si.ShippingServiceCost[0].Currency
		}
		// Some listings only report a ship-to region where the item
		// location would be.
		if item.Country == "" && len(si.ShipToLocations) > 0 {
			item.Country = si.ShipToLocations[0]
		}
	}

	return item
}

func parseFindingListingType(t string) domain.ListingType {
	switch t {
	case "Auction", "AuctionWithBIN":
		return domain.ListingAuction
	case "FixedPrice", "StoreInventory":
		return domain.ListingFixed
	case "":
		return domain.ListingUnknown
	default:
		return domain.ListingUnknown
	}
}

// first returns the first element of a Finding API value array, or "".
func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
