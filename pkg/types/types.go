// Package domain defines the core business types for the eBay tracker.
package domain

import (
	"time"
)

// ListingType represents the eBay listing format.
type ListingType string

// Listing type constants.
const (
	ListingAuction   ListingType = "auction"
	ListingFixed     ListingType = "fixed_price"
	ListingBestOffer ListingType = "best_offer"
	ListingUnknown   ListingType = "unknown"
)

// Item represents a single eBay listing discovered by a keyword search.
type Item struct {
	ItemID   string `json:"item_id"             db:"item_id"`
	Title    string `json:"title"               db:"title"`
	ItemURL  string `json:"item_url"            db:"item_url"`
	ImageURL string `json:"image_url,omitempty" db:"image_url"`

	// Pricing
	Price            string      `json:"price,omitempty"             db:"price"`
	Currency         string      `json:"currency,omitempty"          db:"currency"`
	ShippingCost     string      `json:"shipping_cost,omitempty"     db:"shipping_cost"`
	ShippingCurrency string      `json:"shipping_currency,omitempty" db:"shipping_currency"`
	ListingType      ListingType `json:"listing_type"                db:"listing_type"`

	// Seller & condition
	Seller    string `json:"seller,omitempty"    db:"seller"`
	Condition string `json:"condition,omitempty" db:"condition"`

	// Location as reported by the API; may be empty.
	Location string `json:"location,omitempty" db:"location"`
	Country  string `json:"country,omitempty"  db:"country"`

	// Auction details
	BidCount int        `json:"bid_count,omitempty" db:"bid_count"`
	EndsAt   *time.Time `json:"ends_at,omitempty"   db:"ends_at"`

	// Tracking
	Keyword     string    `json:"keyword"       db:"keyword"`
	ListedAt    time.Time `json:"listed_at"     db:"listed_at"`
	FirstSeenAt time.Time `json:"first_seen_at" db:"first_seen_at"`
	Notified    bool      `json:"notified"      db:"notified"`
}

// FullLocation joins the city-level location and country fields for display
// and filtering. Either part may be empty.
func (i *Item) FullLocation() string {
	switch {
	case i.Location == "":
		return i.Country
	case i.Country == "":
		return i.Location
	default:
		return i.Location + " " + i.Country
	}
}

// Stats summarizes the tracked item database.
type Stats struct {
	TotalItems     int            `json:"total_items"`
	ItemsToday     int            `json:"items_today"`
	ItemsByKeyword map[string]int `json:"items_by_keyword"`
}

// Subscriber represents a Telegram chat subscribed to notifications.
type Subscriber struct {
	ChatID       string    `json:"chat_id"              db:"chat_id"`
	Username     string    `json:"username,omitempty"   db:"username"`
	FirstName    string    `json:"first_name,omitempty" db:"first_name"`
	LastName     string    `json:"last_name,omitempty"  db:"last_name"`
	Active       bool      `json:"active"               db:"active"`
	SubscribedAt time.Time `json:"subscribed_at"        db:"subscribed_at"`
}

// ScanRun records a single execution of the scan cycle.
type ScanRun struct {
	ID          string     `json:"id"                     db:"id"`
	StartedAt   time.Time  `json:"started_at"             db:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	Status      string     `json:"status"                 db:"status"`
	Error       string     `json:"error,omitempty"        db:"error"`
	ItemsSeen   int        `json:"items_seen"             db:"items_seen"`
	NewItems    int        `json:"new_items"              db:"new_items"`
}

// Scan run status values.
const (
	ScanRunning   = "running"
	ScanCompleted = "completed"
	ScanFailed    = "failed"
)
