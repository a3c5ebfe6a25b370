package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/homeweavers/listing-watch/internal/checker"
	"github.com/homeweavers/listing-watch/internal/ratelimit"
)

// StartWorker polls for pending check jobs and runs them one at a time.
// The browser session is shared with nothing else; there is never more
// than one batch navigating at once.
func (m *Manager) StartWorker(ctx context.Context) {
	m.logger.Info("check worker started", "poll_interval", m.opts.PollInterval)

	ticker := time.NewTicker(m.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("check worker stopping")
			return
		case <-ticker.C:
			m.processNextJob(ctx)
		}
	}
}

func (m *Manager) processNextJob(ctx context.Context) {
	query := `
		SELECT id
		FROM check_jobs
		WHERE status = 'pending'
		ORDER BY created_at
		LIMIT 1`

	var jobID uuid.UUID
	if err := m.db.QueryRow(ctx, query).Scan(&jobID); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			m.logger.Error("failed to poll for pending jobs", "error", err)
		}
		return
	}

	job, err := m.GetJob(ctx, jobID)
	if err != nil {
		m.logger.Error("failed to load job", "id", jobID, "error", err)
		return
	}

	m.logger.Info("processing check job", "id", job.ID, "total", job.Total)

	if err := m.updateJobStatus(ctx, job.ID, StatusRunning, nil); err != nil {
		m.logger.Error("failed to update job status", "id", job.ID, "error", err)
		return
	}

	completed, err := m.runJob(ctx, job)
	if err != nil {
		m.logger.Error("check job failed", "id", job.ID, "error", err)
		m.updateJobStatus(ctx, job.ID, StatusFailed, err)
		return
	}

	if err := m.updateJobStatus(ctx, job.ID, StatusCompleted, nil); err != nil {
		m.logger.Error("failed to mark job as completed", "id", job.ID, "error", err)
	}

	m.publishJobCompleted(ctx, job, completed)
	m.logger.Info("check job completed", "id", job.ID, "completed", completed)
}

// runJob acquires one browser page for the whole batch and releases it on
// every exit path.
func (m *Manager) runJob(ctx context.Context, job *Job) (int, error) {
	listings, err := m.db.GetListingsByIDs(ctx, job.ListingIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to load listings: %w", err)
	}

	rows := make([]checker.Row, len(listings))
	for i, l := range listings {
		rows[i] = checker.Row{ID: l.ID, URL: l.URL}
	}

	page, err := m.browser.NewPage()
	if err != nil {
		return 0, fmt.Errorf("failed to acquire browser page: %w", err)
	}
	defer page.Close()

	fetcher := checker.NewPageFetcher(page, m.opts.SettleDelay, m.opts.NavigationTimeout, m.logger)

	var limiter ratelimit.RateLimiter
	if m.opts.RowDelayMin > 0 {
		limiter = ratelimit.NewSimpleRateLimiter(m.opts.RowDelayMin, m.opts.RowDelayMax)
	}

	runner := checker.NewRunner(fetcher, m.db, limiter, m.logger)

	return runner.Run(ctx, rows, func(completed, total int) {
		m.updateJobProgress(ctx, job.ID, completed)
	})
}
