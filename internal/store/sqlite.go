package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	domain "github.com/skireal/ebay-tracker/pkg/types"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store on a local SQLite file.
type SQLiteStore struct {
	db      *sqlx.DB
	nowFunc func() time.Time
}

// Option configures the SQLiteStore.
type Option func(*SQLiteStore)

// WithNowFunc overrides the time function for testing.
func WithNowFunc(f func() time.Time) Option {
	return func(s *SQLiteStore) {
		s.nowFunc = f
	}
}

// Open connects to the SQLite database at path, creating it if needed, and
// applies all pending migrations. WAL mode keeps the scan engine and the
// status server from blocking each other.
func Open(path string, opts ...Option) (*SQLiteStore, error) {
	db, err := sqlx.Connect(
		"sqlite",
		fmt.Sprintf("%s?_journal=WAL&_timeout=5000&_fk=true", path),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to db: %w", err)
	}

	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(string(goose.DialectSQLite3)); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting dialect for migrations: %w", err)
	}

	if err := goose.Up(db.DB, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying migrations: %w", err)
	}

	s := &SQLiteStore{db: db, nowFunc: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close terminates the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing store: %w", err)
	}
	return nil
}

// Ping verifies the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const insertItemQuery = `
	INSERT INTO seen_items (
		item_id, title, item_url, image_url,
		price, currency, shipping_cost, shipping_currency, listing_type,
		seller, condition, location, country,
		bid_count, ends_at,
		keyword, listed_at, first_seen_at, notified
	) VALUES (
		:item_id, :title, :item_url, :image_url,
		:price, :currency, :shipping_cost, :shipping_currency, :listing_type,
		:seller, :condition, :location, :country,
		:bid_count, :ends_at,
		:keyword, :listed_at, :first_seen_at, :notified
	)
	ON CONFLICT (item_id) DO NOTHING`

// AddItem inserts an item unless its ID was seen before. It stamps
// FirstSeenAt when unset and reports whether the row was new.
func (s *SQLiteStore) AddItem(ctx context.Context, item *domain.Item) (bool, error) {
	if item.ItemID == "" {
		return false, errors.New("item has no ID")
	}
	if item.FirstSeenAt.IsZero() {
		item.FirstSeenAt = s.nowFunc()
	}

	res, err := s.db.NamedExecContext(ctx, insertItemQuery, item)
	if err != nil {
		return false, fmt.Errorf("inserting item %s: %w", item.ItemID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking insert result: %w", err)
	}
	return n > 0, nil
}

// HasItem reports whether an item ID has been seen.
func (s *SQLiteStore) HasItem(ctx context.Context, itemID string) (bool, error) {
	var count int
	err := s.db.GetContext(
		ctx,
		&count,
		`SELECT COUNT(*) FROM seen_items WHERE item_id = ?`,
		itemID,
	)
	if err != nil {
		return false, fmt.Errorf("checking item %s: %w", itemID, err)
	}
	return count > 0, nil
}

// MarkNotified flags an item as notified.
func (s *SQLiteStore) MarkNotified(ctx context.Context, itemID string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE seen_items SET notified = TRUE WHERE item_id = ?`,
		itemID,
	)
	if err != nil {
		return fmt.Errorf("marking item %s notified: %w", itemID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("marking item %s notified: %w", itemID, ErrNotFound)
	}
	return nil
}

// RecentItems returns the most recently seen items, newest first.
func (s *SQLiteStore) RecentItems(ctx context.Context, limit int) ([]domain.Item, error) {
	var items []domain.Item
	err := s.db.SelectContext(
		ctx,
		&items,
		`SELECT * FROM seen_items ORDER BY first_seen_at DESC, item_id LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("fetching recent items: %w", err)
	}
	return items, nil
}

// ItemsByKeyword returns the most recent items found by one keyword.
func (s *SQLiteStore) ItemsByKeyword(
	ctx context.Context,
	keyword string,
	limit int,
) ([]domain.Item, error) {
	var items []domain.Item
	err := s.db.SelectContext(
		ctx,
		&items,
		`SELECT * FROM seen_items
		 WHERE keyword = ?
		 ORDER BY first_seen_at DESC, item_id
		 LIMIT ?`,
		keyword,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("fetching items for keyword %q: %w", keyword, err)
	}
	return items, nil
}

// Stats returns aggregate counts over the seen items.
func (s *SQLiteStore) Stats(ctx context.Context) (*domain.Stats, error) {
	stats := &domain.Stats{ItemsByKeyword: make(map[string]int)}

	err := s.db.GetContext(
		ctx,
		&stats.TotalItems,
		`SELECT COUNT(*) FROM seen_items`,
	)
	if err != nil {
		return nil, fmt.Errorf("counting items: %w", err)
	}

	now := s.nowFunc()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	err = s.db.GetContext(
		ctx,
		&stats.ItemsToday,
		`SELECT COUNT(*) FROM seen_items WHERE first_seen_at >= ?`,
		midnight,
	)
	if err != nil {
		return nil, fmt.Errorf("counting today's items: %w", err)
	}

	rows, err := s.db.QueryxContext(
		ctx,
		`SELECT keyword, COUNT(*) FROM seen_items GROUP BY keyword`,
	)
	if err != nil {
		return nil, fmt.Errorf("counting items by keyword: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var keyword string
		var count int
		if err := rows.Scan(&keyword, &count); err != nil {
			return nil, fmt.Errorf("scanning keyword count: %w", err)
		}
		stats.ItemsByKeyword[keyword] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating keyword counts: %w", err)
	}

	return stats, nil
}

// PruneItems deletes items first seen before the cutoff.
func (s *SQLiteStore) PruneItems(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM seen_items WHERE first_seen_at < ?`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("pruning items: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking prune result: %w", err)
	}
	return n, nil
}

const upsertSubscriberQuery = `
	INSERT INTO subscribers (chat_id, username, first_name, last_name, active, subscribed_at)
	VALUES (:chat_id, :username, :first_name, :last_name, TRUE, :subscribed_at)
	ON CONFLICT (chat_id) DO UPDATE SET
		username = excluded.username,
		first_name = excluded.first_name,
		last_name = excluded.last_name,
		active = TRUE`

// UpsertSubscriber inserts or reactivates a Telegram subscriber. The
// original subscription time is kept on re-subscribe.
func (s *SQLiteStore) UpsertSubscriber(ctx context.Context, sub *domain.Subscriber) error {
	if sub.SubscribedAt.IsZero() {
		sub.SubscribedAt = s.nowFunc()
	}

	if _, err := s.db.NamedExecContext(ctx, upsertSubscriberQuery, sub); err != nil {
		return fmt.Errorf("upserting subscriber %s: %w", sub.ChatID, err)
	}
	return nil
}

// DeactivateSubscriber marks a subscriber inactive.
func (s *SQLiteStore) DeactivateSubscriber(ctx context.Context, chatID string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE subscribers SET active = FALSE WHERE chat_id = ?`,
		chatID,
	)
	if err != nil {
		return fmt.Errorf("deactivating subscriber %s: %w", chatID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("deactivating subscriber %s: %w", chatID, ErrNotFound)
	}
	return nil
}

// ActiveSubscribers returns all active subscribers.
func (s *SQLiteStore) ActiveSubscribers(ctx context.Context) ([]domain.Subscriber, error) {
	var subs []domain.Subscriber
	err := s.db.SelectContext(
		ctx,
		&subs,
		`SELECT * FROM subscribers WHERE active = TRUE ORDER BY subscribed_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("fetching active subscribers: %w", err)
	}
	return subs, nil
}

// BeginScanRun records the start of a scan cycle.
func (s *SQLiteStore) BeginScanRun(ctx context.Context) (*domain.ScanRun, error) {
	run := &domain.ScanRun{
		ID:        uuid.NewString(),
		StartedAt: s.nowFunc(),
		Status:    domain.ScanRunning,
	}

	_, err := s.db.NamedExecContext(
		ctx,
		`INSERT INTO scan_runs (id, started_at, status)
		 VALUES (:id, :started_at, :status)`,
		run,
	)
	if err != nil {
		return nil, fmt.Errorf("recording scan start: %w", err)
	}
	return run, nil
}

// FinishScanRun records the outcome of a scan cycle. CompletedAt is stamped
// when the caller left it unset.
func (s *SQLiteStore) FinishScanRun(ctx context.Context, run *domain.ScanRun) error {
	if run.CompletedAt == nil {
		now := s.nowFunc()
		run.CompletedAt = &now
	}

	res, err := s.db.NamedExecContext(
		ctx,
		`UPDATE scan_runs SET
			completed_at = :completed_at,
			status = :status,
			error = :error,
			items_seen = :items_seen,
			new_items = :new_items
		 WHERE id = :id`,
		run,
	)
	if err != nil {
		return fmt.Errorf("recording scan result %s: %w", run.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("recording scan result %s: %w", run.ID, ErrNotFound)
	}
	return nil
}

// LastScanRun returns the most recently started scan run.
func (s *SQLiteStore) LastScanRun(ctx context.Context) (*domain.ScanRun, error) {
	var run domain.ScanRun
	err := s.db.GetContext(
		ctx,
		&run,
		`SELECT * FROM scan_runs ORDER BY started_at DESC LIMIT 1`,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching last scan run: %w", err)
	}
	return &run, nil
}
