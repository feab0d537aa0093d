// Package store persists seen items, Telegram subscribers, and scan run
// history in a local SQLite database.
package store

import (
	"context"
	"errors"
	"time"

	domain "github.com/skireal/ebay-tracker/pkg/types"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store is the persistence interface used by the scan engine, the Telegram
// bot, and the status server.
type Store interface {
	// AddItem inserts an item if its item ID has not been seen before.
	// It reports whether the item was new.
	AddItem(ctx context.Context, item *domain.Item) (bool, error)

	// HasItem reports whether an item ID has been seen.
	HasItem(ctx context.Context, itemID string) (bool, error)

	// MarkNotified flags an item as notified.
	MarkNotified(ctx context.Context, itemID string) error

	// RecentItems returns the most recently seen items, newest first.
	RecentItems(ctx context.Context, limit int) ([]domain.Item, error)

	// ItemsByKeyword returns the most recent items for one keyword.
	ItemsByKeyword(ctx context.Context, keyword string, limit int) ([]domain.Item, error)

	// Stats returns aggregate counts over the seen items.
	Stats(ctx context.Context) (*domain.Stats, error)

	// PruneItems deletes items first seen before the cutoff and returns
	// the number of rows removed.
	PruneItems(ctx context.Context, cutoff time.Time) (int64, error)

	// UpsertSubscriber inserts or reactivates a Telegram subscriber.
	UpsertSubscriber(ctx context.Context, sub *domain.Subscriber) error

	// DeactivateSubscriber marks a subscriber inactive. Missing chat IDs
	// return ErrNotFound.
	DeactivateSubscriber(ctx context.Context, chatID string) error

	// ActiveSubscribers returns all active subscribers.
	ActiveSubscribers(ctx context.Context) ([]domain.Subscriber, error)

	// BeginScanRun records the start of a scan cycle.
	BeginScanRun(ctx context.Context) (*domain.ScanRun, error)

	// FinishScanRun records the outcome of a scan cycle.
	FinishScanRun(ctx context.Context, run *domain.ScanRun) error

	// LastScanRun returns the most recently started scan run, or
	// ErrNotFound when no scan has run yet.
	LastScanRun(ctx context.Context) (*domain.ScanRun, error)

	// Ping verifies the database connection.
	Ping(ctx context.Context) error

	// Close releases the database connection.
	Close() error
}
