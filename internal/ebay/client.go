// Package ebay provides eBay search clients (Browse API with a legacy
// Finding API fallback) abstracted behind interfaces for testability.
package ebay

import (
	"context"

	domain "github.com/skireal/ebay-tracker/pkg/types"
)

// SearchRequest defines the parameters for a keyword search.
type SearchRequest struct {
	Keyword string
	Limit   int

	// Price filters, decimal strings as accepted by the eBay APIs.
	MinPrice string
	MaxPrice string

	// Condition filter values (API condition names/ids).
	Conditions []string

	// Location filters.
	LocationCountry string // itemLocationCountry (Browse)
	PostalCode      string // buyerPostalCode, both APIs
	Radius          string // searchRadius, used with PostalCode
	LocatedIn       string // LocatedIn (Finding), comma-separated codes
	ShipsTo         string // AvailableTo (Finding)
}

// Client defines the interface for searching eBay listings.
type Client interface {
	Search(ctx context.Context, req SearchRequest) ([]domain.Item, error)
}

// TokenProvider defines the interface for obtaining OAuth2 tokens.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}
