package checker

import (
	"context"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Fetcher loads a listing URL and reports the final URL and rendered markup.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (finalURL, html string)
}

// PageFetcher drives a single browser page. The page handles one navigation
// at a time; callers must not fetch concurrently.
type PageFetcher struct {
	page    playwright.Page
	settle  time.Duration
	timeout time.Duration
	logger  *slog.Logger
}

func NewPageFetcher(page playwright.Page, settle, timeout time.Duration, logger *slog.Logger) *PageFetcher {
	if settle <= 0 {
		settle = 8 * time.Second
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &PageFetcher{
		page:    page,
		settle:  settle,
		timeout: timeout,
		logger:  logger.With("component", "fetcher"),
	}
}

// Fetch navigates to url, waits a settling delay for client-side redirects
// and rendering, then captures the final URL and markup. Navigation failures
// degrade to the original URL with empty markup so a single slow listing
// never fails a batch; no retry is attempted.
func (f *PageFetcher) Fetch(ctx context.Context, url string) (string, string) {
	_, err := f.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(f.timeout.Milliseconds())),
	})
	if err != nil {
		f.logger.Warn("navigation failed", "url", url, "error", err)
		return url, ""
	}

	select {
	case <-ctx.Done():
		return url, ""
	case <-time.After(f.settle):
	}

	finalURL := f.page.URL()

	html, err := f.page.Content()
	if err != nil {
		f.logger.Warn("failed to capture page content", "url", url, "error", err)
		return finalURL, ""
	}

	return finalURL, html
}
