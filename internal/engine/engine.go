// Package engine orchestrates the scan cycle: search, filter, dedupe, notify.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/skireal/ebay-tracker/internal/ebay"
	"github.com/skireal/ebay-tracker/internal/metrics"
	"github.com/skireal/ebay-tracker/internal/notify"
	"github.com/skireal/ebay-tracker/internal/store"
	domain "github.com/skireal/ebay-tracker/pkg/types"
)

const defaultNotifyPace = 1 * time.Second

// Engine runs the scan cycle over the configured keywords.
type Engine struct {
	store    store.Store
	ebay     ebay.Client
	filter   *ebay.Filter
	notifier notify.Notifier
	log      *slog.Logger

	keywords []string
	template ebay.SearchRequest

	notifyPace time.Duration
	stagger    time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewEngine creates an Engine. template carries the search parameters shared
// by every keyword; the Keyword field is filled in per search.
func NewEngine(
	s store.Store,
	client ebay.Client,
	filter *ebay.Filter,
	notifier notify.Notifier,
	keywords []string,
	template ebay.SearchRequest,
	opts ...Option,
) *Engine {
	eng := &Engine{
		store:      s,
		ebay:       client,
		filter:     filter,
		notifier:   notifier,
		log:        slog.Default(),
		keywords:   keywords,
		template:   template,
		notifyPace: defaultNotifyPace,
		sleep:      sleepCtx,
	}
	for _, opt := range opts {
		opt(eng)
	}
	return eng
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// WithNotifyPace sets the delay between per-item notifications. The Telegram
// Bot API throttles bots that send faster than about one message per second.
func WithNotifyPace(d time.Duration) Option {
	return func(e *Engine) {
		e.notifyPace = d
	}
}

// WithStagger sets the delay between keyword searches.
func WithStagger(d time.Duration) Option {
	return func(e *Engine) {
		e.stagger = d
	}
}

// WithSleepFunc overrides the pacing sleeps for testing.
func WithSleepFunc(f func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Engine) {
		e.sleep = f
	}
}

// Scan executes one full scan cycle and records it as a scan run. A failing
// keyword does not abort the cycle; hitting the daily API quota does.
func (eng *Engine) Scan(ctx context.Context) error {
	start := time.Now()
	defer func() {
		metrics.ScanDuration.Observe(time.Since(start).Seconds())
	}()

	run, err := eng.store.BeginScanRun(ctx)
	if err != nil {
		return fmt.Errorf("recording scan start: %w", err)
	}

	var scanErr error

	for i, keyword := range eng.keywords {
		if ctx.Err() != nil {
			scanErr = ctx.Err()
			break
		}

		eng.log.Info("searching", "keyword", keyword)

		req := eng.template
		req.Keyword = keyword

		items, searchErr := eng.ebay.Search(ctx, req)
		if searchErr != nil {
			if errors.Is(searchErr, ebay.ErrDailyLimitReached) {
				eng.log.Warn("daily API limit reached, stopping scan",
					"keyword", keyword,
				)
				scanErr = searchErr
				break
			}
			eng.log.Error("search failed", "keyword", keyword, "error", searchErr)
			metrics.ScanErrorsTotal.Inc()
			scanErr = searchErr
			continue
		}

		run.ItemsSeen += len(items)
		metrics.ScanItemsSeenTotal.Add(float64(len(items)))

		kept := eng.filter.Apply(items)
		eng.log.Info("search complete",
			"keyword", keyword,
			"found", len(items),
			"kept", len(kept),
		)

		for j := range kept {
			if ctx.Err() != nil {
				break
			}
			if eng.processItem(ctx, &kept[j]) {
				run.NewItems++
			}
		}

		if i < len(eng.keywords)-1 && eng.stagger > 0 {
			if err := eng.sleep(ctx, eng.stagger); err != nil {
				scanErr = err
				break
			}
		}
	}

	eng.finishRun(ctx, run, scanErr)

	if run.NewItems > 0 {
		if err := eng.notifier.Summary(ctx, run.NewItems, eng.keywords); err != nil {
			eng.log.Error("summary notification failed", "error", err)
		}
	}

	eng.log.Info("scan complete",
		"items_seen", run.ItemsSeen,
		"new_items", run.NewItems,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	if scanErr != nil {
		eng.notifyError(ctx, scanErr)
	}
	return scanErr
}

// processItem stores one item and, when it is new, sends a notification.
// It reports whether the item was new.
func (eng *Engine) processItem(ctx context.Context, item *domain.Item) bool {
	isNew, err := eng.store.AddItem(ctx, item)
	if err != nil {
		eng.log.Error("storing item failed", "item_id", item.ItemID, "error", err)
		metrics.ScanErrorsTotal.Inc()
		return false
	}
	if !isNew {
		return false
	}

	metrics.ScanNewItemsTotal.Inc()
	eng.log.Info("new item",
		"item_id", item.ItemID,
		"title", item.Title,
		"price", item.Price+" "+item.Currency,
	)

	if err := eng.notifier.NewItem(ctx, item); err != nil {
		eng.log.Warn("item notification failed", "item_id", item.ItemID, "error", err)
		return true
	}

	if err := eng.store.MarkNotified(ctx, item.ItemID); err != nil {
		eng.log.Error("marking notified failed", "item_id", item.ItemID, "error", err)
	}

	if eng.notifyPace > 0 {
		_ = eng.sleep(ctx, eng.notifyPace)
	}
	return true
}

func (eng *Engine) finishRun(ctx context.Context, run *domain.ScanRun, scanErr error) {
	run.Status = domain.ScanCompleted
	if scanErr != nil {
		run.Status = domain.ScanFailed
		run.Error = scanErr.Error()
	}

	// Record the outcome even when the scan context was canceled.
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}

	if err := eng.store.FinishScanRun(ctx, run); err != nil {
		eng.log.Error("recording scan result failed", "run_id", run.ID, "error", err)
	}
}

func (eng *Engine) notifyError(ctx context.Context, scanErr error) {
	if ctx.Err() != nil {
		return
	}
	if err := eng.notifier.Error(ctx, fmt.Sprintf("Scan failed: %v", scanErr)); err != nil {
		eng.log.Error("error notification failed", "error", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
