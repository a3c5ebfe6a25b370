package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/homeweavers/listing-watch/internal/asin"
	"github.com/homeweavers/listing-watch/internal/database"
	"github.com/homeweavers/listing-watch/internal/importer"
	"github.com/homeweavers/listing-watch/internal/jobs"
)

// ListingStore is the catalog surface the handlers depend on.
type ListingStore interface {
	InsertListing(ctx context.Context, l *database.Listing) error
	ListListings(ctx context.Context, filter database.ListingFilter) ([]*database.Listing, error)
	UpdateListing(ctx context.Context, l *database.Listing) error
	DeleteListing(ctx context.Context, id uuid.UUID) error
	Summary(ctx context.Context, customer string) ([]database.SummaryRow, error)
}

// JobService queues and reports batch status checks.
type JobService interface {
	CreateJob(ctx context.Context, listingIDs []uuid.UUID) (*jobs.Job, error)
	GetJob(ctx context.Context, jobID uuid.UUID) (*jobs.Job, error)
	ListJobs(ctx context.Context) ([]*jobs.Job, error)
}

type Handlers struct {
	store  ListingStore
	jobs   JobService
	logger *slog.Logger
}

func NewHandlers(store ListingStore, jobService JobService, logger *slog.Logger) *Handlers {
	return &Handlers{
		store:  store,
		jobs:   jobService,
		logger: logger.With("component", "api"),
	}
}

// ListingRequest carries the operator-supplied catalog attributes.
type ListingRequest struct {
	URL            string `json:"url"`
	CollectionName string `json:"collection_name"`
	Size           string `json:"size"`
	Color          string `json:"color"`
	Customer       string `json:"customer"`
}

// CreateListing adds one listing. The product identifier is derived from
// the URL; an unparseable URL is stored with an empty identifier rather
// than rejected.
func (h *Handlers) CreateListing(w http.ResponseWriter, r *http.Request) {
	var req ListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		h.respondError(w, http.StatusBadRequest, "url is required")
		return
	}

	listing := &database.Listing{
		ASIN:           asin.FromURL(req.URL),
		URL:            req.URL,
		CollectionName: req.CollectionName,
		Size:           req.Size,
		Color:          req.Color,
		Customer:       req.Customer,
	}

	if err := h.store.InsertListing(r.Context(), listing); err != nil {
		if errors.Is(err, database.ErrDuplicateURL) {
			h.respondError(w, http.StatusConflict, "url already exists")
			return
		}
		h.logger.Error("failed to insert listing", "url", req.URL, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to insert listing")
		return
	}

	h.respondJSON(w, http.StatusCreated, listing)
}

func (h *Handlers) ListListings(w http.ResponseWriter, r *http.Request) {
	filter := database.ListingFilter{
		Customer:   r.URL.Query().Get("customer"),
		Collection: r.URL.Query().Get("collection"),
	}

	listings, err := h.store.ListListings(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list listings", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list listings")
		return
	}
	if listings == nil {
		listings = []*database.Listing{}
	}

	h.respondJSON(w, http.StatusOK, listings)
}

func (h *Handlers) UpdateListing(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "listingID"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid listing id")
		return
	}

	var req ListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		h.respondError(w, http.StatusBadRequest, "url is required")
		return
	}

	listing := &database.Listing{
		ID:             id,
		ASIN:           asin.FromURL(req.URL),
		URL:            req.URL,
		CollectionName: req.CollectionName,
		Size:           req.Size,
		Color:          req.Color,
		Customer:       req.Customer,
	}

	if err := h.store.UpdateListing(r.Context(), listing); err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			h.respondError(w, http.StatusNotFound, "listing not found")
		case errors.Is(err, database.ErrDuplicateURL):
			h.respondError(w, http.StatusConflict, "url already exists")
		default:
			h.logger.Error("failed to update listing", "id", id, "error", err)
			h.respondError(w, http.StatusInternalServerError, "failed to update listing")
		}
		return
	}

	h.respondJSON(w, http.StatusOK, listing)
}

func (h *Handlers) DeleteListing(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "listingID"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid listing id")
		return
	}

	if err := h.store.DeleteListing(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			h.respondError(w, http.StatusNotFound, "listing not found")
			return
		}
		h.logger.Error("failed to delete listing", "id", id, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to delete listing")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetTemplate serves the blank Excel upload template.
func (h *Handlers) GetTemplate(w http.ResponseWriter, r *http.Request) {
	f, err := importer.Template()
	if err != nil {
		h.logger.Error("failed to build template", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to build template")
		return
	}

	h.serveWorkbook(w, f, "listing_upload_template.xlsx")
}

// ImportResponse summarizes a bulk upload: duplicates are skipped, not
// treated as failures.
type ImportResponse struct {
	Added   int                    `json:"added"`
	Skipped int                    `json:"skipped"`
	Errors  []importer.ImportError `json:"errors,omitempty"`
}

func (h *Handlers) ImportListings(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile("file")
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "missing file upload")
		return
	}
	defer file.Close()

	rows, importErrs, err := importer.Parse(file)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := ImportResponse{Errors: importErrs}
	for _, row := range rows {
		listing := &database.Listing{
			ASIN:           asin.FromURL(row.URL),
			URL:            row.URL,
			CollectionName: row.CollectionName,
			Size:           row.Size,
			Color:          row.Color,
			Customer:       row.Customer,
		}

		if err := h.store.InsertListing(r.Context(), listing); err != nil {
			if errors.Is(err, database.ErrDuplicateURL) {
				resp.Skipped++
				continue
			}
			h.logger.Error("failed to import row", "row", row.RowNum, "url", row.URL, "error", err)
			resp.Errors = append(resp.Errors, importer.ImportError{
				Row: row.RowNum, Error: "failed to insert",
			})
			continue
		}
		resp.Added++
	}

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *Handlers) ExportListings(w http.ResponseWriter, r *http.Request) {
	filter := database.ListingFilter{
		Customer:   r.URL.Query().Get("customer"),
		Collection: r.URL.Query().Get("collection"),
	}

	listings, err := h.store.ListListings(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list listings for export", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to export listings")
		return
	}

	f, err := importer.Export(listings)
	if err != nil {
		h.logger.Error("failed to build export", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to export listings")
		return
	}

	h.serveWorkbook(w, f, "listing_results.xlsx")
}

// CheckRequest selects the listings for a batch status check. An empty
// list checks the whole catalog.
type CheckRequest struct {
	ListingIDs []uuid.UUID `json:"listing_ids"`
}

func (h *Handlers) CreateCheck(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	job, err := h.jobs.CreateJob(r.Context(), req.ListingIDs)
	if err != nil {
		h.logger.Error("failed to create check job", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to create check job")
		return
	}

	h.respondJSON(w, http.StatusAccepted, job)
}

func (h *Handlers) GetCheck(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	job, err := h.jobs.GetJob(r.Context(), id)
	if err != nil {
		h.respondError(w, http.StatusNotFound, "check job not found")
		return
	}

	h.respondJSON(w, http.StatusOK, job)
}

func (h *Handlers) ListChecks(w http.ResponseWriter, r *http.Request) {
	jobList, err := h.jobs.ListJobs(r.Context())
	if err != nil {
		h.logger.Error("failed to list check jobs", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list check jobs")
		return
	}
	if jobList == nil {
		jobList = []*jobs.Job{}
	}

	h.respondJSON(w, http.StatusOK, jobList)
}

// GetSummary reports the orderable share per collection and customer.
func (h *Handlers) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.store.Summary(r.Context(), r.URL.Query().Get("customer"))
	if err != nil {
		h.logger.Error("failed to compute summary", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to compute summary")
		return
	}
	if summary == nil {
		summary = []database.SummaryRow{}
	}

	h.respondJSON(w, http.StatusOK, summary)
}

func (h *Handlers) serveWorkbook(w http.ResponseWriter, f *excelize.File, filename string) {
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	if err := f.Write(w); err != nil {
		h.logger.Error("failed to write workbook", "error", err)
	}
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
