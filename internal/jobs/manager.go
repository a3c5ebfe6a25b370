// Package jobs manages batch status checks: a job records which listings
// were selected, and a background worker runs them through the checker one
// row at a time.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/homeweavers/listing-watch/internal/browser"
	"github.com/homeweavers/listing-watch/internal/database"
)

const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Job is one batch status check over a set of listings.
type Job struct {
	ID          uuid.UUID   `json:"id"`
	ListingIDs  []uuid.UUID `json:"listing_ids"`
	Status      string      `json:"status"`
	Total       int         `json:"total"`
	Completed   int         `json:"completed"`
	Error       string      `json:"error,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// Options tunes how the worker drives the browser for each batch.
type Options struct {
	SettleDelay       time.Duration
	NavigationTimeout time.Duration
	RowDelayMin       time.Duration
	RowDelayMax       time.Duration
	PollInterval      time.Duration
}

type Manager struct {
	db      *database.DB
	browser *browser.Browser
	opts    Options
	logger  *slog.Logger
}

func NewManager(db *database.DB, b *browser.Browser, opts Options, logger *slog.Logger) *Manager {
	if opts.PollInterval == 0 {
		opts.PollInterval = 5 * time.Second
	}

	return &Manager{
		db:      db,
		browser: b,
		opts:    opts,
		logger:  logger.With("component", "job_manager"),
	}
}

// CreateJob queues a status check for the given listings. An empty slice
// selects the whole catalog. The job runs in the background; progress is
// visible via GetJob.
func (m *Manager) CreateJob(ctx context.Context, listingIDs []uuid.UUID) (*Job, error) {
	if len(listingIDs) == 0 {
		rows, err := m.db.Query(ctx, `SELECT id FROM listings ORDER BY created_at`)
		if err != nil {
			return nil, fmt.Errorf("failed to select listings: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var id uuid.UUID
			if err := rows.Scan(&id); err != nil {
				return nil, fmt.Errorf("failed to scan listing id: %w", err)
			}
			listingIDs = append(listingIDs, id)
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}

	job := &Job{
		ID:         uuid.New(),
		ListingIDs: listingIDs,
		Status:     StatusPending,
		Total:      len(listingIDs),
		CreatedAt:  time.Now(),
	}

	query := `
		INSERT INTO check_jobs (id, listing_ids, status, total, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := m.db.Exec(ctx, query,
		job.ID, job.ListingIDs, job.Status, job.Total, job.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create check job: %w", err)
	}

	m.logger.Info("check job created", "id", job.ID, "total", job.Total)
	return job, nil
}

// GetJob retrieves a job with its current progress.
func (m *Manager) GetJob(ctx context.Context, jobID uuid.UUID) (*Job, error) {
	query := `
		SELECT id, listing_ids, status, total, completed, error,
		       created_at, started_at, completed_at
		FROM check_jobs
		WHERE id = $1`

	job := &Job{}
	var errMsg *string
	err := m.db.QueryRow(ctx, query, jobID).Scan(
		&job.ID, &job.ListingIDs, &job.Status, &job.Total, &job.Completed,
		&errMsg, &job.CreatedAt, &job.StartedAt, &job.CompletedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("check job not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get check job: %w", err)
	}
	if errMsg != nil {
		job.Error = *errMsg
	}

	return job, nil
}

// ListJobs lists recent jobs, newest first.
func (m *Manager) ListJobs(ctx context.Context) ([]*Job, error) {
	query := `
		SELECT id, listing_ids, status, total, completed, error,
		       created_at, started_at, completed_at
		FROM check_jobs
		ORDER BY created_at DESC
		LIMIT 100`

	rows, err := m.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list check jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job := &Job{}
		var errMsg *string
		err := rows.Scan(
			&job.ID, &job.ListingIDs, &job.Status, &job.Total, &job.Completed,
			&errMsg, &job.CreatedAt, &job.StartedAt, &job.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan check job: %w", err)
		}
		if errMsg != nil {
			job.Error = *errMsg
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

func (m *Manager) updateJobStatus(ctx context.Context, jobID uuid.UUID, status string, jobErr error) error {
	var query string
	var args []interface{}

	now := time.Now()
	switch {
	case status == StatusRunning:
		query = `UPDATE check_jobs SET status = $1, started_at = $2 WHERE id = $3`
		args = []interface{}{status, now, jobID}
	case status == StatusFailed && jobErr != nil:
		query = `UPDATE check_jobs SET status = $1, completed_at = $2, error = $3 WHERE id = $4`
		args = []interface{}{status, now, jobErr.Error(), jobID}
	case status == StatusCompleted:
		query = `UPDATE check_jobs SET status = $1, completed_at = $2 WHERE id = $3`
		args = []interface{}{status, now, jobID}
	default:
		query = `UPDATE check_jobs SET status = $1 WHERE id = $2`
		args = []interface{}{status, jobID}
	}

	_, err := m.db.Exec(ctx, query, args...)
	return err
}

func (m *Manager) updateJobProgress(ctx context.Context, jobID uuid.UUID, completed int) {
	_, err := m.db.Exec(ctx,
		`UPDATE check_jobs SET completed = $1 WHERE id = $2`, completed, jobID)
	if err != nil {
		m.logger.Error("failed to update job progress", "id", jobID, "error", err)
	}
}

// publishJobCompleted records a CHECK_COMPLETED outbox event for the job.
func (m *Manager) publishJobCompleted(ctx context.Context, job *Job, completed int) {
	payload, err := json.Marshal(map[string]interface{}{
		"job_id":    job.ID.String(),
		"total":     job.Total,
		"completed": completed,
		"finished":  time.Now(),
	})
	if err != nil {
		m.logger.Error("failed to marshal job event", "id", job.ID, "error", err)
		return
	}

	err = m.db.WithTx(ctx, func(tx pgx.Tx) error {
		return database.NewOutboxRepository(m.db).InsertWithTx(ctx, tx, &database.OutboxEvent{
			AggregateType: "check_job",
			AggregateID:   job.ID.String(),
			EventType:     database.EventTypeCheckCompleted,
			Payload:       payload,
		})
	})
	if err != nil {
		m.logger.Error("failed to publish job event", "id", job.ID, "error", err)
	}
}
