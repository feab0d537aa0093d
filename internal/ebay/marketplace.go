package ebay

// marketplaces is the set of Browse API marketplace IDs accepted as a
// configured site_id.
var marketplaces = map[string]bool{
	"EBAY_US": true,
	"EBAY_GB": true,
	"EBAY_DE": true,
	"EBAY_AU": true,
	"EBAY_AT": true,
	"EBAY_BE": true,
	"EBAY_CA": true,
	"EBAY_CH": true,
	"EBAY_ES": true,
	"EBAY_FR": true,
	"EBAY_IE": true,
	"EBAY_IT": true,
	"EBAY_NL": true,
	"EBAY_PL": true,
}

// legacySites maps legacy site IDs that differ from their Browse API
// marketplace ID.
var legacySites = map[string]string{
	"EBAY_UK": "EBAY_GB",
}

// MarketplaceID normalizes a configured site ID to a Browse API marketplace
// ID. Valid marketplace IDs pass through unchanged, legacy site IDs are
// translated, and anything else falls back to EBAY_US.
func MarketplaceID(siteID string) string {
	if marketplaces[siteID] {
		return siteID
	}
	if m, ok := legacySites[siteID]; ok {
		return m
	}
	return "EBAY_US"
}
