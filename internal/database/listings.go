package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/homeweavers/listing-watch/internal/checker"
)

var (
	// ErrDuplicateURL is returned when inserting a listing whose URL is
	// already tracked. The catalog is left unchanged.
	ErrDuplicateURL = errors.New("listing url already exists")
	// ErrNotFound is returned when a listing id does not exist.
	ErrNotFound = errors.New("listing not found")
)

// Listing is one tracked marketplace product. The check-result fields are
// nil until the first status check and are only ever written together.
type Listing struct {
	ID             uuid.UUID `json:"id"`
	ASIN           string    `json:"asin"`
	URL            string    `json:"url"`
	CollectionName string    `json:"collection_name"`
	Size           string    `json:"size"`
	Color          string    `json:"color"`
	Customer       string    `json:"customer"`

	FinalURL      *string    `json:"final_url,omitempty"`
	Price         *string    `json:"price,omitempty"`
	IsRedirect    *bool      `json:"is_redirect,omitempty"`
	IsUnavailable *bool      `json:"is_unavailable,omitempty"`
	Orderable     *bool      `json:"orderable,omitempty"`
	LastChecked   *time.Time `json:"last_checked,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListingFilter narrows List results. Empty fields match everything.
type ListingFilter struct {
	Customer   string
	Collection string
}

// SummaryRow aggregates orderable status per collection and customer.
type SummaryRow struct {
	CollectionName string  `json:"collection_name"`
	Customer       string  `json:"customer"`
	TotalSKU       int     `json:"total_sku"`
	Orderable      int     `json:"orderable"`
	NonOrderable   int     `json:"non_orderable"`
	OnsitePercent  float64 `json:"onsite_percent"`
}

// EnsureSchema creates the listings, check job and outbox tables and adds
// the check-result columns when missing. It is idempotent and runs at
// startup; a failure here is fatal before any row write can happen.
func (db *DB) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS listings (
			id UUID PRIMARY KEY,
			asin TEXT NOT NULL DEFAULT '',
			url TEXT NOT NULL UNIQUE,
			collection_name TEXT NOT NULL DEFAULT '',
			size TEXT NOT NULL DEFAULT '',
			color TEXT NOT NULL DEFAULT '',
			customer TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`ALTER TABLE listings ADD COLUMN IF NOT EXISTS final_url TEXT`,
		`ALTER TABLE listings ADD COLUMN IF NOT EXISTS price TEXT`,
		`ALTER TABLE listings ADD COLUMN IF NOT EXISTS is_redirect BOOLEAN`,
		`ALTER TABLE listings ADD COLUMN IF NOT EXISTS is_unavailable BOOLEAN`,
		`ALTER TABLE listings ADD COLUMN IF NOT EXISTS orderable BOOLEAN`,
		`ALTER TABLE listings ADD COLUMN IF NOT EXISTS last_checked TIMESTAMPTZ`,
		`CREATE TABLE IF NOT EXISTS check_jobs (
			id UUID PRIMARY KEY,
			listing_ids UUID[] NOT NULL DEFAULT '{}',
			status TEXT NOT NULL DEFAULT 'pending',
			total INT NOT NULL DEFAULT 0,
			completed INT NOT NULL DEFAULT 0,
			error TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			started_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS outbox_event (
			id UUID PRIMARY KEY,
			aggregate_type TEXT NOT NULL,
			aggregate_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			payload JSONB NOT NULL,
			target_stream TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			retry_count INT NOT NULL DEFAULT 0,
			error_message TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			processed_at TIMESTAMPTZ,
			next_retry_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_event_status ON outbox_event (status, next_retry_at)`,
	}

	for _, stmt := range statements {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}

	return nil
}

const listingColumns = `id, asin, url, collection_name, size, color, customer,
	final_url, price, is_redirect, is_unavailable, orderable, last_checked,
	created_at, updated_at`

func scanListing(row pgx.Row) (*Listing, error) {
	l := &Listing{}
	err := row.Scan(
		&l.ID, &l.ASIN, &l.URL, &l.CollectionName, &l.Size, &l.Color, &l.Customer,
		&l.FinalURL, &l.Price, &l.IsRedirect, &l.IsUnavailable, &l.Orderable, &l.LastChecked,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// InsertListing adds a listing to the catalog. A URL already present is
// rejected with ErrDuplicateURL and nothing is mutated.
func (db *DB) InsertListing(ctx context.Context, l *Listing) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}

	query := `
		INSERT INTO listings (id, asin, url, collection_name, size, color, customer)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	err := db.pool.QueryRow(ctx, query,
		l.ID, l.ASIN, l.URL, l.CollectionName, l.Size, l.Color, l.Customer,
	).Scan(&l.CreatedAt, &l.UpdatedAt)

	if isUniqueViolation(err) {
		return ErrDuplicateURL
	}
	if err != nil {
		return fmt.Errorf("failed to insert listing: %w", err)
	}

	return nil
}

// ListListings returns all listings matching the filter, newest first.
func (db *DB) ListListings(ctx context.Context, filter ListingFilter) ([]*Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE 1=1`
	args := []interface{}{}

	if filter.Customer != "" {
		args = append(args, "%"+filter.Customer+"%")
		query += fmt.Sprintf(" AND customer ILIKE $%d", len(args))
	}
	if filter.Collection != "" {
		args = append(args, "%"+filter.Collection+"%")
		query += fmt.Sprintf(" AND collection_name ILIKE $%d", len(args))
	}

	query += " ORDER BY created_at DESC"

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	defer rows.Close()

	var listings []*Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		listings = append(listings, l)
	}

	return listings, rows.Err()
}

// GetListingsByIDs returns the listings for ids, preserving input order.
// Unknown ids are silently dropped.
func (db *DB) GetListingsByIDs(ctx context.Context, ids []uuid.UUID) ([]*Listing, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = ANY($1)`

	rows, err := db.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get listings: %w", err)
	}
	defer rows.Close()

	byID := make(map[uuid.UUID]*Listing, len(ids))
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		byID[l.ID] = l
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ordered := make([]*Listing, 0, len(byID))
	for _, id := range ids {
		if l, ok := byID[id]; ok {
			ordered = append(ordered, l)
		}
	}

	return ordered, nil
}

// UpdateListing replaces the catalog attributes of a listing. Check-result
// fields are untouched; only a status check writes those.
func (db *DB) UpdateListing(ctx context.Context, l *Listing) error {
	query := `
		UPDATE listings SET
			asin = $2, url = $3, collection_name = $4,
			size = $5, color = $6, customer = $7,
			updated_at = NOW()
		WHERE id = $1`

	tag, err := db.pool.Exec(ctx, query,
		l.ID, l.ASIN, l.URL, l.CollectionName, l.Size, l.Color, l.Customer)
	if isUniqueViolation(err) {
		return ErrDuplicateURL
	}
	if err != nil {
		return fmt.Errorf("failed to update listing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (db *DB) DeleteListing(ctx context.Context, id uuid.UUID) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM listings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete listing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// ListingCheckedPayload is the durable event emitted for every persisted
// check result, relayed to Redis for dashboard consumers.
type ListingCheckedPayload struct {
	ListingID     string    `json:"listing_id"`
	ASIN          string    `json:"asin"`
	URL           string    `json:"url"`
	FinalURL      string    `json:"final_url"`
	Price         string    `json:"price"`
	IsRedirect    bool      `json:"is_redirect"`
	IsUnavailable bool      `json:"is_unavailable"`
	Orderable     bool      `json:"orderable"`
	CheckedAt     time.Time `json:"checked_at"`
}

// SaveCheckResult writes all six result fields for one listing atomically,
// together with a LISTING_CHECKED outbox event, in a single transaction.
func (db *DB) SaveCheckResult(ctx context.Context, id uuid.UUID, res checker.Result, checkedAt time.Time) error {
	return db.WithTx(ctx, func(tx pgx.Tx) error {
		query := `
			UPDATE listings SET
				final_url = $2, price = $3, is_redirect = $4,
				is_unavailable = $5, orderable = $6, last_checked = $7,
				updated_at = NOW()
			WHERE id = $1
			RETURNING asin, url`

		var asin, url string
		err := tx.QueryRow(ctx, query,
			id, res.FinalURL, res.Price, res.IsRedirect,
			res.IsUnavailable, res.Orderable, checkedAt,
		).Scan(&asin, &url)
		if err == pgx.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to save check result: %w", err)
		}

		payload, err := json.Marshal(ListingCheckedPayload{
			ListingID:     id.String(),
			ASIN:          asin,
			URL:           url,
			FinalURL:      res.FinalURL,
			Price:         res.Price,
			IsRedirect:    res.IsRedirect,
			IsUnavailable: res.IsUnavailable,
			Orderable:     res.Orderable,
			CheckedAt:     checkedAt,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal event payload: %w", err)
		}

		return NewOutboxRepository(db).InsertWithTx(ctx, tx, &OutboxEvent{
			AggregateType: "listing",
			AggregateID:   id.String(),
			EventType:     EventTypeListingChecked,
			Payload:       payload,
		})
	})
}

// Summary aggregates orderable counts per collection and customer. A
// non-empty customer restricts the report to that customer. Listings that
// were never checked count toward the SKU total but toward neither the
// orderable nor the non-orderable column.
func (db *DB) Summary(ctx context.Context, customer string) ([]SummaryRow, error) {
	query := `
		SELECT collection_name, customer,
			COUNT(*) AS total_sku,
			COUNT(*) FILTER (WHERE orderable IS TRUE) AS orderable,
			COUNT(*) FILTER (WHERE orderable IS FALSE) AS non_orderable
		FROM listings`
	args := []interface{}{}

	if customer != "" {
		args = append(args, customer)
		query += " WHERE customer = $1"
	}

	query += `
		GROUP BY collection_name, customer
		ORDER BY collection_name, customer`

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query summary: %w", err)
	}
	defer rows.Close()

	var summary []SummaryRow
	for rows.Next() {
		var r SummaryRow
		if err := rows.Scan(&r.CollectionName, &r.Customer, &r.TotalSKU, &r.Orderable, &r.NonOrderable); err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		r.OnsitePercent = OnsitePercent(r.Orderable, r.TotalSKU)
		summary = append(summary, r)
	}

	return summary, rows.Err()
}

// OnsitePercent is the share of orderable SKUs, rounded to one decimal.
func OnsitePercent(orderable, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(orderable)/float64(total)*1000) / 10
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
