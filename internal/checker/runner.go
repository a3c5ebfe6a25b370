package checker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/homeweavers/listing-watch/internal/asin"
	"github.com/homeweavers/listing-watch/internal/ratelimit"
)

// Row is one catalog entry selected for a status check.
type Row struct {
	ID  uuid.UUID
	URL string
}

// ResultStore persists the finalized result for a single listing. Each call
// is its own atomic write; the runner never batches writes across rows.
type ResultStore interface {
	SaveCheckResult(ctx context.Context, id uuid.UUID, res Result, checkedAt time.Time) error
}

// ProgressFunc receives fractional progress after each processed row.
type ProgressFunc func(completed, total int)

// Runner walks a batch of listings strictly sequentially: fetch, classify,
// reconcile, persist. Rows are independent; a row whose fetch degrades is
// still reconciled and persisted with whatever data was obtained, and the
// batch continues.
type Runner struct {
	fetcher Fetcher
	store   ResultStore
	limiter ratelimit.RateLimiter
	logger  *slog.Logger
}

// NewRunner builds a runner. limiter may be nil to disable the polite delay
// between rows.
func NewRunner(fetcher Fetcher, store ResultStore, limiter ratelimit.RateLimiter, logger *slog.Logger) *Runner {
	return &Runner{
		fetcher: fetcher,
		store:   store,
		limiter: limiter,
		logger:  logger.With("component", "runner"),
	}
}

// Run processes every row in input order, persisting after each row and
// reporting progress. Partial completion leaves earlier rows updated and
// later rows untouched. It returns the number of rows processed; it stops
// early only when ctx is cancelled.
func (r *Runner) Run(ctx context.Context, rows []Row, progress ProgressFunc) (int, error) {
	for i, row := range rows {
		select {
		case <-ctx.Done():
			return i, ctx.Err()
		default:
		}

		if r.limiter != nil && i > 0 {
			if err := r.limiter.Wait(ctx); err != nil {
				return i, err
			}
		}

		res := r.checkRow(ctx, row)

		// A cancellation mid-fetch leaves res looking like a timed-out page.
		// Don't record that as the listing's durable status.
		if ctx.Err() != nil {
			return i, ctx.Err()
		}

		if err := r.store.SaveCheckResult(ctx, row.ID, res, time.Now()); err != nil {
			r.logger.Error("failed to persist check result",
				"id", row.ID, "url", row.URL, "error", err)
		}

		if progress != nil {
			progress(i+1, len(rows))
		}
	}

	return len(rows), nil
}

func (r *Runner) checkRow(ctx context.Context, row Row) Result {
	originalASIN := asin.FromURL(row.URL)

	finalURL, html := r.fetcher.Fetch(ctx, row.URL)
	finalASIN := asin.FromURL(finalURL)

	c := Classify(html)
	if c.UnavailablePhrase != "" {
		r.logger.Debug("unavailability phrase matched",
			"url", row.URL, "phrase", c.UnavailablePhrase)
	}

	res := Reconcile(originalASIN, finalASIN, finalURL, c.Price, c.Orderable)

	r.logger.Info("listing checked",
		"url", row.URL,
		"redirect", res.IsRedirect,
		"orderable", res.Orderable,
		"price", res.Price,
	)

	return res
}
