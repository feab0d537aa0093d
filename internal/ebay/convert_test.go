package ebay_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skireal/ebay-tracker/internal/ebay"
	domain "github.com/skireal/ebay-tracker/pkg/types"
)

func TestToItems(t *testing.T) {
	t.Parallel()

	seenAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	summaries := []ebay.ItemSummary{
		{
			ItemID:        "v1|110|0",
			Title:         "Canon AE-1 35mm camera",
			ItemWebURL:    "https://www.ebay.com/itm/110",
			Price:         ebay.ItemPrice{Value: "120.00", Currency: "USD"},
			Condition:     "Used",
			BuyingOptions: []string{"AUCTION"},
			BidCount:      7,
			Image:         &ebay.ItemImage{ImageURL: "https://i.ebayimg.com/110.jpg"},
			Seller:        &ebay.ItemSeller{Username: "camera_corner"},
			ItemEndDate:   "2025-06-05T18:30:00.000Z",
			ItemLocation: &ebay.ItemLocation{
				City:       "Portland",
				PostalCode: "97201",
				Country:    "US",
			},
			ShippingOptions: []ebay.ShippingOption{
				{ShippingCost: &ebay.ItemPrice{Value: "12.50", Currency: "USD"}},
			},
		},
		{
			ItemID:        "v1|220|0",
			Title:         "Canon FD 50mm lens",
			ItemWebURL:    "https://www.ebay.com/itm/220",
			Price:         ebay.ItemPrice{Value: "45.00", Currency: "USD"},
			BuyingOptions: []string{"FIXED_PRICE", "BEST_OFFER"},
		},
	}

	items := ebay.ToItems(summaries, "canon ae-1", seenAt)
	require.Len(t, items, 2)

	got := items[0]
	assert.Equal(t, "v1|110|0", got.ItemID)
	assert.Equal(t, "120.00", got.Price)
	assert.Equal(t, "USD", got.Currency)
	assert.Equal(t, "12.50", got.ShippingCost)
	assert.Equal(t, domain.ListingAuction, got.ListingType)
	assert.Equal(t, 7, got.BidCount)
	assert.Equal(t, "camera_corner", got.Seller)
	assert.Equal(t, "https://i.ebayimg.com/110.jpg", got.ImageURL)
	assert.Equal(t, "Portland 97201", got.Location)
	assert.Equal(t, "US", got.Country)
	assert.Equal(t, "canon ae-1", got.Keyword)
	assert.Equal(t, seenAt, got.ListedAt)
	require.NotNil(t, got.EndsAt)
	assert.Equal(t, time.Date(2025, 6, 5, 18, 30, 0, 0, time.UTC), got.EndsAt.UTC())

	// BEST_OFFER wins over FIXED_PRICE when both are present.
	assert.Equal(t, domain.ListingBestOffer, items[1].ListingType)
	assert.Nil(t, items[1].EndsAt)
	assert.Empty(t, items[1].Location)
}

func TestToItems_ListingTypes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		buyingOptions []string
		want          domain.ListingType
	}{
		{"auction", []string{"AUCTION"}, domain.ListingAuction},
		{"fixed price", []string{"FIXED_PRICE"}, domain.ListingFixed},
		{"best offer", []string{"BEST_OFFER"}, domain.ListingBestOffer},
		{"auction with fixed price", []string{"FIXED_PRICE", "AUCTION"}, domain.ListingAuction},
		{"none", nil, domain.ListingUnknown},
		{"unrecognized", []string{"CLASSIFIED_AD"}, domain.ListingUnknown},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			items := ebay.ToItems(
				[]ebay.ItemSummary{{ItemID: "x", BuyingOptions: tt.buyingOptions}},
				"k",
				time.Now(),
			)
			require.Len(t, items, 1)
			assert.Equal(t, tt.want, items[0].ListingType)
		})
	}
}

func TestToItems_InvalidEndDate(t *testing.T) {
	t.Parallel()

	items := ebay.ToItems(
		[]ebay.ItemSummary{{ItemID: "x", ItemEndDate: "not-a-date"}},
		"k",
		time.Now(),
	)
	require.Len(t, items, 1)
	assert.Nil(t, items[0].EndsAt)
}
