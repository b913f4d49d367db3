package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/listing-scraper/pkg/export"
	"github.com/Sriram-PR/listing-scraper/pkg/models"
	"github.com/Sriram-PR/listing-scraper/pkg/storage"
	"github.com/Sriram-PR/listing-scraper/pkg/utils"
)

// RecentJobsLimit is how many jobs GET /api/jobs returns
const RecentJobsLimit = 10

const defaultMaxPages = 3

// Submitter starts jobs; *jobs.Manager satisfies it
type Submitter interface {
	Submit(ctx context.Context, searchTerm string, maxPages int) (*models.Job, error)
	Cancel(jobID string) bool
}

// Handler serves the JSON API over the store and the job manager
type Handler struct {
	store storage.Store
	jobs  Submitter
	log   *logrus.Entry
	now   func() time.Time
}

// NewHandler creates a Handler
func NewHandler(store storage.Store, jobs Submitter, log *logrus.Entry) *Handler {
	return &Handler{store: store, jobs: jobs, log: log, now: time.Now}
}

type searchRequest struct {
	Query    string `json:"query"`
	MaxPages *int   `json:"max_pages"`
}

type searchResponse struct {
	Message    string `json:"message"`
	JobID      string `json:"job_id"`
	StatusURL  string `json:"status_url"`
	ResultsURL string `json:"results_url"`
}

// HandleSearch handles POST /api/search
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	maxPages := defaultMaxPages
	if req.MaxPages != nil {
		maxPages = *req.MaxPages
	}

	job, err := h.jobs.Submit(r.Context(), req.Query, maxPages)
	if err != nil {
		if errors.Is(err, utils.ErrInvalidRequest) {
			h.writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Errorf("Error in API search: %v", err)
		h.writeJSONError(w, "Something went wrong", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, searchResponse{
		Message:    fmt.Sprintf("Scraping started for %q", job.SearchTerm),
		JobID:      job.ID,
		StatusURL:  "/api/job/" + job.ID + "/status",
		ResultsURL: "/api/products/" + job.ID,
	})
}

// HandleListJobs handles GET /api/jobs
func (h *Handler) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.store.ListJobs(r.Context(), RecentJobsLimit)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	for _, job := range jobs {
		if job.ProductCount, err = h.store.CountProducts(r.Context(), job.ID); err != nil {
			h.writeStoreError(w, err)
			return
		}
	}
	if jobs == nil {
		jobs = []*models.Job{}
	}
	h.writeJSON(w, http.StatusOK, jobs)
}

// HandleJobStatus handles GET /api/job/{id}/status
func (h *Handler) HandleJobStatus(w http.ResponseWriter, r *http.Request) {
	job, err := h.store.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if job.ProductCount, err = h.store.CountProducts(r.Context(), job.ID); err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, job)
}

// HandleProducts handles GET /api/products/{id}. Unknown jobs have no products.
func (h *Handler) HandleProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.store.ListProducts(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if products == nil {
		products = []models.Product{}
	}
	h.writeJSON(w, http.StatusOK, products)
}

// HandleExport handles GET /api/job/{id}/export
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	job, err := h.store.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	products, err := h.store.ListProducts(r.Context(), job.ID)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if len(products) == 0 {
		h.writeJSONError(w, "No products found to export", http.StatusNotFound)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, products); err != nil {
		h.log.WithField("job_id", job.ID).Errorf("Error exporting CSV: %v", err)
		h.writeJSONError(w, "An error occurred while exporting data", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(job.SearchTerm, h.now())))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.log.Warnf("Failed to write CSV response: %v", err)
	}
}

// HandleDeleteJob handles DELETE /api/job/{id}, stopping a local run first
func (h *Handler) HandleDeleteJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if h.jobs.Cancel(id) {
		h.log.WithField("job_id", id).Info("Cancelled running job before delete")
	}
	if err := h.store.DeleteJob(r.Context(), id); err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Job deleted successfully"})
}

// HandleHealthCheck handles GET /api/health
func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, utils.ErrJobNotFound) {
		h.writeJSONError(w, "Job not found", http.StatusNotFound)
		return
	}
	h.log.Errorf("Store error: %v", err)
	h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Errorf("Failed to write JSON response: %v", err)
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
