package ebay

import (
	"log/slog"
	"strings"

	"github.com/skireal/ebay-tracker/internal/metrics"
	domain "github.com/skireal/ebay-tracker/pkg/types"
)

// Filter drops items that match an exclude keyword or fall outside the
// configured located-in countries. The eBay APIs do not apply location
// filters reliably, so the location check is enforced again client-side.
type Filter struct {
	exclude     []string // lower-case substrings matched against titles
	locatedIn   []string // upper-case country codes; empty disables the check
	marketplace string   // marketplace ID used when an item has no location data
	log         *slog.Logger
}

// NewFilter creates a Filter. excludeKeywords must already be lower-cased;
// locatedIn must be upper-case country codes (config normalizes both).
func NewFilter(
	excludeKeywords []string,
	locatedIn []string,
	marketplace string,
	log *slog.Logger,
) *Filter {
	if log == nil {
		log = slog.Default()
	}
	return &Filter{
		exclude:     excludeKeywords,
		locatedIn:   locatedIn,
		marketplace: marketplace,
		log:         log,
	}
}

// Apply returns the items that pass all filters, preserving order.
func (f *Filter) Apply(items []domain.Item) []domain.Item {
	kept := make([]domain.Item, 0, len(items))
	for i := range items {
		if word, ok := f.excludedBy(&items[i]); ok {
			f.log.Debug("item excluded by keyword",
				"word", word,
				"title", items[i].Title,
			)
			metrics.ScanFilteredTotal.WithLabelValues("excluded_keyword").Inc()
			continue
		}
		if !f.locationMatches(&items[i]) {
			f.log.Debug("item filtered by location",
				"location", items[i].FullLocation(),
				"title", items[i].Title,
			)
			metrics.ScanFilteredTotal.WithLabelValues("location").Inc()
			continue
		}
		kept = append(kept, items[i])
	}
	return kept
}

func (f *Filter) excludedBy(item *domain.Item) (string, bool) {
	title := strings.ToLower(item.Title)
	for _, word := range f.exclude {
		if strings.Contains(title, word) {
			return word, true
		}
	}
	return "", false
}

// locationMatches applies the strict located-in check. Items with no
// location data pass only when the marketplace itself already restricts
// results to one of the wanted countries.
func (f *Filter) locationMatches(item *domain.Item) bool {
	if len(f.locatedIn) == 0 {
		return true
	}

	location := strings.ToUpper(item.FullLocation())
	if location == "" {
		return f.trustMarketplace()
	}

	for _, code := range f.locatedIn {
		if strings.Contains(location, code) {
			return true
		}
		for _, alias := range countryAliases(code) {
			if strings.Contains(location, alias) {
				return true
			}
		}
	}
	return false
}

// trustMarketplace reports whether items without location data should be
// kept because the marketplace is country-specific. Searching EBAY_GB for
// GB-located items, results with no location are overwhelmingly domestic.
func (f *Filter) trustMarketplace() bool {
	for _, code := range f.locatedIn {
		if f.marketplace == "EBAY_"+code {
			return true
		}
	}
	return false
}

// countryAliases returns the spelled-out names commonly used in item
// location strings for a country code.
func countryAliases(code string) []string {
	switch code {
	case "GB":
		return []string{"UNITED KINGDOM", "UK"}
	case "US":
		return []string{"UNITED STATES", "USA"}
	default:
		return nil
	}
}
