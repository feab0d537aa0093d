package ebay

import (
	"slices"
	"strings"
	"time"

	domain "github.com/skireal/ebay-tracker/pkg/types"
)

// ToItems converts Browse API item summaries into domain items tagged with
// the keyword that found them. seenAt stamps the listing date; the Browse
// API does not expose the actual listing start time.
func ToItems(summaries []ItemSummary, keyword string, seenAt time.Time) []domain.Item {
	items := make([]domain.Item, 0, len(summaries))
	for i := range summaries {
		items = append(items, toItem(&summaries[i], keyword, seenAt))
	}
	return items
}

func toItem(s *ItemSummary, keyword string, seenAt time.Time) domain.Item {
	item := domain.Item{
		ItemID:      s.ItemID,
		Title:       s.Title,
		ItemURL:     s.ItemWebURL,
		Price:       s.Price.Value,
		Currency:    s.Price.Currency,
		Condition:   s.Condition,
		ListingType: parseListingType(s.BuyingOptions),
		BidCount:    s.BidCount,
		Keyword:     keyword,
		ListedAt:    seenAt,
	}

	if s.Image != nil {
		item.ImageURL = s.Image.ImageURL
	}

	if s.Seller != nil {
		item.Seller = s.Seller.Username
	}

	if len(s.ShippingOptions) > 0 {
		if sc := s.ShippingOptions[0].ShippingCost; sc != nil {
			item.ShippingCost = sc.Value
			item.ShippingCurrency = sc.Currency
		}
	}

	if s.ItemEndDate != "" {
		if t, err := time.Parse(time.RFC3339, s.ItemEndDate); err == nil {
			item.EndsAt = &t
		}
	}

	if s.ItemLocation != nil {
		item.Country = s.ItemLocation.Country
		loc := s.ItemLocation.City
		if s.ItemLocation.PostalCode != "" {
			loc = strings.TrimSpace(loc + " " + s.ItemLocation.PostalCode)
		}
		item.Location = loc
	}

	return item
}

func parseListingType(buyingOptions []string) domain.ListingType {
	if slices.Contains(buyingOptions, "AUCTION") {
		return domain.ListingAuction
	}
	if slices.Contains(buyingOptions, "BEST_OFFER") {
		return domain.ListingBestOffer
	}
	if slices.Contains(buyingOptions, "FIXED_PRICE") {
		return domain.ListingFixed
	}
	return domain.ListingUnknown
}
