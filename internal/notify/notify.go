// Package notify delivers alerts about newly discovered items.
package notify

import (
	"context"
	"log/slog"

	domain "github.com/skireal/ebay-tracker/pkg/types"
)

// Notifier receives events from the scan engine.
type Notifier interface {
	// NewItem announces a newly discovered item.
	NewItem(ctx context.Context, item *domain.Item) error

	// Summary announces the result of a completed scan cycle. It is only
	// sent when new items were found.
	Summary(ctx context.Context, newItems int, keywords []string) error

	// Error announces a scan failure.
	Error(ctx context.Context, message string) error
}

// Noop is a Notifier that discards all events, logging each discard at
// debug level. It stands in when Telegram credentials are not configured.
type Noop struct {
	log *slog.Logger
}

// NewNoop creates a Noop that logs discarded events to log.
func NewNoop(log *slog.Logger) Noop {
	return Noop{log: log}
}

func (n Noop) debug(msg string, args ...any) {
	if n.log != nil {
		n.log.Debug(msg, args...)
	}
}

// NewItem implements Notifier.
func (n Noop) NewItem(_ context.Context, item *domain.Item) error {
	n.debug("notification discarded", "event", "new_item", "item_id", item.ItemID)
	return nil
}

// Summary implements Notifier.
func (n Noop) Summary(_ context.Context, newItems int, _ []string) error {
	n.debug("notification discarded", "event", "summary", "new_items", newItems)
	return nil
}

// Error implements Notifier.
func (n Noop) Error(_ context.Context, message string) error {
	n.debug("notification discarded", "event", "error", "message", message)
	return nil
}
