package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skireal/ebay-tracker/internal/ebay"
	"github.com/skireal/ebay-tracker/internal/store"
	domain "github.com/skireal/ebay-tracker/pkg/types"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStore is an in-memory Store covering what the engine touches.
type fakeStore struct {
	items    map[string]domain.Item
	notified map[string]bool
	runs     []*domain.ScanRun

	beginErr error
	addErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		items:    make(map[string]domain.Item),
		notified: make(map[string]bool),
	}
}

func (f *fakeStore) AddItem(_ context.Context, item *domain.Item) (bool, error) {
	if f.addErr != nil {
		return false, f.addErr
	}
	if _, ok := f.items[item.ItemID]; ok {
		return false, nil
	}
	f.items[item.ItemID] = *item
	return true, nil
}

func (f *fakeStore) HasItem(_ context.Context, itemID string) (bool, error) {
	_, ok := f.items[itemID]
	return ok, nil
}

func (f *fakeStore) MarkNotified(_ context.Context, itemID string) error {
	f.notified[itemID] = true
	return nil
}

func (f *fakeStore) RecentItems(context.Context, int) ([]domain.Item, error) {
	return nil, nil
}

func (f *fakeStore) ItemsByKeyword(context.Context, string, int) ([]domain.Item, error) {
	return nil, nil
}

func (f *fakeStore) Stats(context.Context) (*domain.Stats, error) {
	return &domain.Stats{TotalItems: len(f.items)}, nil
}

func (f *fakeStore) PruneItems(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeStore) UpsertSubscriber(context.Context, *domain.Subscriber) error {
	return nil
}

func (f *fakeStore) DeactivateSubscriber(context.Context, string) error {
	return nil
}

func (f *fakeStore) ActiveSubscribers(context.Context) ([]domain.Subscriber, error) {
	return nil, nil
}

func (f *fakeStore) BeginScanRun(context.Context) (*domain.ScanRun, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	run := &domain.ScanRun{
		ID:        "run-1",
		StartedAt: time.Now(),
		Status:    domain.ScanRunning,
	}
	f.runs = append(f.runs, run)
	return run, nil
}

func (f *fakeStore) FinishScanRun(_ context.Context, run *domain.ScanRun) error {
	for i, r := range f.runs {
		if r.ID == run.ID {
			f.runs[i] = run
		}
	}
	return nil
}

func (f *fakeStore) LastScanRun(context.Context) (*domain.ScanRun, error) {
	if len(f.runs) == 0 {
		return nil, store.ErrNotFound
	}
	return f.runs[len(f.runs)-1], nil
}

func (f *fakeStore) Ping(context.Context) error { return nil }
func (f *fakeStore) Close() error               { return nil }

var _ store.Store = (*fakeStore)(nil)

// fakeSearcher serves canned results per keyword.
type fakeSearcher struct {
	results  map[string][]domain.Item
	errs     map[string]error
	searched []string
}

func (f *fakeSearcher) Search(_ context.Context, req ebay.SearchRequest) ([]domain.Item, error) {
	f.searched = append(f.searched, req.Keyword)
	if err := f.errs[req.Keyword]; err != nil {
		return nil, err
	}
	return f.results[req.Keyword], nil
}

// fakeNotifier records every event.
type fakeNotifier struct {
	items      []string
	summaries  []int
	errMsgs    []string
	newItemErr error
}

func (f *fakeNotifier) NewItem(_ context.Context, item *domain.Item) error {
	if f.newItemErr != nil {
		return f.newItemErr
	}
	f.items = append(f.items, item.ItemID)
	return nil
}

func (f *fakeNotifier) Summary(_ context.Context, newItems int, _ []string) error {
	f.summaries = append(f.summaries, newItems)
	return nil
}

func (f *fakeNotifier) Error(_ context.Context, msg string) error {
	f.errMsgs = append(f.errMsgs, msg)
	return nil
}

func newTestEngine(
	s store.Store,
	searcher ebay.Client,
	notifier *fakeNotifier,
	keywords []string,
) *Engine {
	return NewEngine(
		s,
		searcher,
		ebay.NewFilter(nil, nil, "", quietLogger()),
		notifier,
		keywords,
		ebay.SearchRequest{Limit: 50},
		WithLogger(quietLogger()),
		WithNotifyPace(0),
		WithSleepFunc(func(context.Context, time.Duration) error { return nil }),
	)
}

func TestEngine_Scan(t *testing.T) {
	t.Parallel()

	fs := newFakeStore()
	searcher := &fakeSearcher{
		results: map[string][]domain.Item{
			"thinkpad": {
				{ItemID: "1", Title: "ThinkPad X220"},
				{ItemID: "2", Title: "ThinkPad X230"},
			},
			"canon": {
				{ItemID: "3", Title: "Canon AE-1"},
			},
		},
	}
	notifier := &fakeNotifier{}

	eng := newTestEngine(fs, searcher, notifier, []string{"thinkpad", "canon"})

	require.NoError(t, eng.Scan(context.Background()))

	assert.Equal(t, []string{"thinkpad", "canon"}, searcher.searched)
	assert.Equal(t, []string{"1", "2", "3"}, notifier.items)
	assert.Equal(t, []int{3}, notifier.summaries)
	assert.True(t, fs.notified["1"])
	assert.True(t, fs.notified["3"])

	run, err := fs.LastScanRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.ScanCompleted, run.Status)
	assert.Equal(t, 3, run.ItemsSeen)
	assert.Equal(t, 3, run.NewItems)
}

func TestEngine_ScanSkipsKnownItems(t *testing.T) {
	t.Parallel()

	fs := newFakeStore()
	fs.items["1"] = domain.Item{ItemID: "1"}

	searcher := &fakeSearcher{
		results: map[string][]domain.Item{
			"thinkpad": {
				{ItemID: "1", Title: "seen before"},
				{ItemID: "2", Title: "brand new"},
			},
		},
	}
	notifier := &fakeNotifier{}

	eng := newTestEngine(fs, searcher, notifier, []string{"thinkpad"})

	require.NoError(t, eng.Scan(context.Background()))

	assert.Equal(t, []string{"2"}, notifier.items)

	run, err := fs.LastScanRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, run.ItemsSeen)
	assert.Equal(t, 1, run.NewItems)
}

func TestEngine_ScanKeywordFailureContinues(t *testing.T) {
	t.Parallel()

	fs := newFakeStore()
	searcher := &fakeSearcher{
		results: map[string][]domain.Item{
			"canon": {{ItemID: "3", Title: "Canon AE-1"}},
		},
		errs: map[string]error{
			"thinkpad": errors.New("API down"),
		},
	}
	notifier := &fakeNotifier{}

	eng := newTestEngine(fs, searcher, notifier, []string{"thinkpad", "canon"})

	err := eng.Scan(context.Background())
	require.Error(t, err)

	// The second keyword still ran and its items were stored.
	assert.Equal(t, []string{"thinkpad", "canon"}, searcher.searched)
	assert.Equal(t, []string{"3"}, notifier.items)
	require.Len(t, notifier.errMsgs, 1)
	assert.Contains(t, notifier.errMsgs[0], "API down")

	run, runErr := fs.LastScanRun(context.Background())
	require.NoError(t, runErr)
	assert.Equal(t, domain.ScanFailed, run.Status)
	assert.Equal(t, 1, run.NewItems)
}

func TestEngine_ScanDailyLimitStops(t *testing.T) {
	t.Parallel()

	fs := newFakeStore()
	searcher := &fakeSearcher{
		errs: map[string]error{
			"thinkpad": ebay.ErrDailyLimitReached,
		},
	}
	notifier := &fakeNotifier{}

	eng := newTestEngine(fs, searcher, notifier, []string{"thinkpad", "canon"})

	err := eng.Scan(context.Background())
	require.ErrorIs(t, err, ebay.ErrDailyLimitReached)

	// The remaining keywords are not searched once the quota is gone.
	assert.Equal(t, []string{"thinkpad"}, searcher.searched)

	run, runErr := fs.LastScanRun(context.Background())
	require.NoError(t, runErr)
	assert.Equal(t, domain.ScanFailed, run.Status)
}

func TestEngine_ScanAppliesFilter(t *testing.T) {
	t.Parallel()

	fs := newFakeStore()
	searcher := &fakeSearcher{
		results: map[string][]domain.Item{
			"thinkpad": {
				{ItemID: "1", Title: "ThinkPad X220 working"},
				{ItemID: "2", Title: "ThinkPad X220 faulty"},
			},
		},
	}
	notifier := &fakeNotifier{}

	eng := NewEngine(
		fs,
		searcher,
		ebay.NewFilter([]string{"faulty"}, nil, "", quietLogger()),
		notifier,
		[]string{"thinkpad"},
		ebay.SearchRequest{},
		WithLogger(quietLogger()),
		WithNotifyPace(0),
	)

	require.NoError(t, eng.Scan(context.Background()))

	assert.Equal(t, []string{"1"}, notifier.items)

	// Filtered items still count as seen, but are never stored.
	run, err := fs.LastScanRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, run.ItemsSeen)
	assert.Equal(t, 1, run.NewItems)
}

func TestEngine_ScanNotificationFailure(t *testing.T) {
	t.Parallel()

	fs := newFakeStore()
	searcher := &fakeSearcher{
		results: map[string][]domain.Item{
			"thinkpad": {{ItemID: "1", Title: "ThinkPad"}},
		},
	}
	notifier := &fakeNotifier{newItemErr: errors.New("telegram down")}

	eng := newTestEngine(fs, searcher, notifier, []string{"thinkpad"})

	require.NoError(t, eng.Scan(context.Background()))

	// The item is stored and counted, but stays unnotified so a later
	// cycle could retry.
	run, err := fs.LastScanRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, run.NewItems)
	assert.False(t, fs.notified["1"])
}

func TestEngine_ScanNoSummaryWithoutNewItems(t *testing.T) {
	t.Parallel()

	fs := newFakeStore()
	fs.items["1"] = domain.Item{ItemID: "1"}

	searcher := &fakeSearcher{
		results: map[string][]domain.Item{
			"thinkpad": {{ItemID: "1", Title: "seen"}},
		},
	}
	notifier := &fakeNotifier{}

	eng := newTestEngine(fs, searcher, notifier, []string{"thinkpad"})

	require.NoError(t, eng.Scan(context.Background()))
	assert.Empty(t, notifier.summaries)
}

func TestEngine_ScanStaggersKeywords(t *testing.T) {
	t.Parallel()

	fs := newFakeStore()
	searcher := &fakeSearcher{
		results: map[string][]domain.Item{
			"thinkpad": {{ItemID: "1", Title: "ThinkPad X220"}},
			"canon":    {{ItemID: "2", Title: "Canon AE-1"}},
			"pentax":   {{ItemID: "3", Title: "Pentax K1000"}},
		},
	}
	notifier := &fakeNotifier{}

	var sleeps []time.Duration
	eng := NewEngine(
		fs,
		searcher,
		ebay.NewFilter(nil, nil, "", quietLogger()),
		notifier,
		[]string{"thinkpad", "canon", "pentax"},
		ebay.SearchRequest{Limit: 50},
		WithLogger(quietLogger()),
		WithNotifyPace(0),
		WithStagger(2*time.Second),
		WithSleepFunc(func(_ context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			return nil
		}),
	)

	require.NoError(t, eng.Scan(context.Background()))

	// One pause between consecutive keywords, none after the last.
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, sleeps)
	assert.Equal(t, []string{"thinkpad", "canon", "pentax"}, searcher.searched)
}

func TestEngine_ScanBeginRunFailure(t *testing.T) {
	t.Parallel()

	fs := newFakeStore()
	fs.beginErr = errors.New("db locked")

	eng := newTestEngine(fs, &fakeSearcher{}, &fakeNotifier{}, []string{"k"})

	err := eng.Scan(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recording scan start")
}
