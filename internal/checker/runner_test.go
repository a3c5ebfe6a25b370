package checker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	pages map[string]fetchedPage
}

type fetchedPage struct {
	finalURL string
	html     string
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (string, string) {
	if p, ok := f.pages[url]; ok {
		return p.finalURL, p.html
	}
	// Unknown URL behaves like a navigation timeout
	return url, ""
}

type recordingStore struct {
	mu      sync.Mutex
	results map[uuid.UUID]Result
	failOn  uuid.UUID
}

func (s *recordingStore) SaveCheckResult(ctx context.Context, id uuid.UUID, res Result, checkedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == s.failOn {
		return errors.New("connection reset")
	}
	if s.results == nil {
		s.results = make(map[uuid.UUID]Result)
	}
	s.results[id] = res
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const orderablePage = `
	<span id="price_inside_buybox">$19.99</span>
	<input id="add-to-cart-button" type="submit">
`

const unavailablePage = `
	<div id="availability">Currently unavailable.</div>
`

func TestRunner_Run(t *testing.T) {
	okID := uuid.New()
	goneID := uuid.New()
	timeoutID := uuid.New()

	fetcher := &fakeFetcher{pages: map[string]fetchedPage{
		"https://www.amazon.com/dp/B0AAAAAAA1": {
			finalURL: "https://www.amazon.com/dp/B0AAAAAAA1",
			html:     orderablePage,
		},
		// Dead listing redirected to a different product
		"https://www.amazon.com/dp/B0BBBBBBB2": {
			finalURL: "https://www.amazon.com/dp/B0CCCCCCC3",
			html:     orderablePage,
		},
	}}
	store := &recordingStore{}
	runner := NewRunner(fetcher, store, nil, testLogger())

	rows := []Row{
		{ID: okID, URL: "https://www.amazon.com/dp/B0AAAAAAA1"},
		{ID: goneID, URL: "https://www.amazon.com/dp/B0BBBBBBB2"},
		{ID: timeoutID, URL: "https://www.amazon.com/dp/B0DDDDDDD4"},
	}

	var progressCalls [][2]int
	processed, err := runner.Run(context.Background(), rows, func(completed, total int) {
		progressCalls = append(progressCalls, [2]int{completed, total})
	})
	require.NoError(t, err)
	assert.Equal(t, 3, processed)

	ok := store.results[okID]
	assert.True(t, ok.Orderable)
	assert.False(t, ok.IsRedirect)
	assert.Equal(t, "19.99", ok.Price)
	assert.Equal(t, "https://www.amazon.com/dp/B0AAAAAAA1", ok.FinalURL)

	gone := store.results[goneID]
	assert.True(t, gone.IsRedirect)
	assert.True(t, gone.IsUnavailable)
	assert.False(t, gone.Orderable)
	assert.Equal(t, "https://www.amazon.com/dp/B0CCCCCCC3", gone.FinalURL)

	// Timed-out fetch keeps the original URL and degrades to unavailable
	timedOut := store.results[timeoutID]
	assert.False(t, timedOut.IsRedirect)
	assert.True(t, timedOut.IsUnavailable)
	assert.Empty(t, timedOut.Price)
	assert.Equal(t, "https://www.amazon.com/dp/B0DDDDDDD4", timedOut.FinalURL)

	assert.Equal(t, [][2]int{{1, 3}, {2, 3}, {3, 3}}, progressCalls)
}

func TestRunner_Run_UnavailablePage(t *testing.T) {
	id := uuid.New()
	fetcher := &fakeFetcher{pages: map[string]fetchedPage{
		"https://www.amazon.com/dp/B0AAAAAAA1": {
			finalURL: "https://www.amazon.com/dp/B0AAAAAAA1",
			html:     unavailablePage,
		},
	}}
	store := &recordingStore{}
	runner := NewRunner(fetcher, store, nil, testLogger())

	processed, err := runner.Run(context.Background(), []Row{
		{ID: id, URL: "https://www.amazon.com/dp/B0AAAAAAA1"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	res := store.results[id]
	assert.False(t, res.Orderable)
	assert.True(t, res.IsUnavailable)
	assert.False(t, res.IsRedirect)
}

func TestRunner_Run_PersistFailureDoesNotStopBatch(t *testing.T) {
	firstID := uuid.New()
	secondID := uuid.New()

	fetcher := &fakeFetcher{pages: map[string]fetchedPage{}}
	store := &recordingStore{failOn: firstID}
	runner := NewRunner(fetcher, store, nil, testLogger())

	processed, err := runner.Run(context.Background(), []Row{
		{ID: firstID, URL: "https://www.amazon.com/dp/B0AAAAAAA1"},
		{ID: secondID, URL: "https://www.amazon.com/dp/B0BBBBBBB2"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, processed)

	_, saved := store.results[firstID]
	assert.False(t, saved)
	_, saved = store.results[secondID]
	assert.True(t, saved)
}

func TestRunner_Run_CancelStopsEarly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := &recordingStore{}
	runner := NewRunner(&fakeFetcher{}, store, nil, testLogger())

	processed, err := runner.Run(ctx, []Row{
		{ID: uuid.New(), URL: "https://www.amazon.com/dp/B0AAAAAAA1"},
	}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, processed)
	assert.Empty(t, store.results)
}

type cancellingFetcher struct {
	cancel context.CancelFunc
}

func (f *cancellingFetcher) Fetch(ctx context.Context, url string) (string, string) {
	// Simulates a shutdown arriving while the page is settling
	f.cancel()
	return url, ""
}

func TestRunner_Run_CancelMidFetchDoesNotPersist(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := &recordingStore{}
	runner := NewRunner(&cancellingFetcher{cancel: cancel}, store, nil, testLogger())

	processed, err := runner.Run(ctx, []Row{
		{ID: uuid.New(), URL: "https://www.amazon.com/dp/B0AAAAAAA1"},
		{ID: uuid.New(), URL: "https://www.amazon.com/dp/B0BBBBBBB2"},
	}, nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, processed)
	assert.Empty(t, store.results)
}

func TestRunner_Run_EmptyBatch(t *testing.T) {
	runner := NewRunner(&fakeFetcher{}, &recordingStore{}, nil, testLogger())

	processed, err := runner.Run(context.Background(), nil, func(completed, total int) {
		t.Fatal("progress should not be reported for an empty batch")
	})
	require.NoError(t, err)
	assert.Equal(t, 0, processed)
}
