package ebay

import (
	"context"
	"errors"
	"log/slog"

	"github.com/skireal/ebay-tracker/internal/metrics"
	domain "github.com/skireal/ebay-tracker/pkg/types"
)

// FallbackClient tries a primary Client and falls back to a secondary one
// when the primary fails. The tracker uses it to pair the Browse API with
// the legacy Finding API, which needs no OAuth credentials.
//
// A daily rate limit error is not retried against the secondary: both
// clients share the same quota.
type FallbackClient struct {
	primary   Client
	secondary Client
	log       *slog.Logger
}

// NewFallbackClient creates a FallbackClient.
func NewFallbackClient(primary, secondary Client, log *slog.Logger) *FallbackClient {
	if log == nil {
		log = slog.Default()
	}
	return &FallbackClient{primary: primary, secondary: secondary, log: log}
}

// Search implements Client.Search with fallback.
func (c *FallbackClient) Search(
	ctx context.Context,
	req SearchRequest,
) ([]domain.Item, error) {
	items, err := c.primary.Search(ctx, req)
	if err == nil {
		return items, nil
	}

	if errors.Is(err, ErrDailyLimitReached) || ctx.Err() != nil {
		return nil, err
	}

	c.log.Warn("primary search failed, falling back",
		"keyword", req.Keyword,
		"error", err,
	)
	metrics.EbayFallbacksTotal.Inc()

	return c.secondary.Search(ctx, req)
}
