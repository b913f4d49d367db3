package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/Sriram-PR/listing-scraper/pkg/utils"
)

const (
	MinPagesPerJob = 1  // Smallest page count a job may request
	MaxPagesPerJob = 10 // Largest page count a job may request
)

// Job is one scraping run for a search term over a bounded number of pages
type Job struct {
	ID           string     `json:"id"`
	SearchTerm   string     `json:"search_term"` // Immutable once created
	Status       JobStatus  `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at"`
	TotalPages   int        `json:"total_pages"`  // Pages requested
	CurrentPage  int        `json:"current_page"` // Progress cursor, 0 <= CurrentPage <= TotalPages
	ErrorMessage string     `json:"error_message,omitempty"`
	ProductCount int        `json:"product_count"` // Derived on read, never persisted by the driver
}

// NewJob returns a pending job for searchTerm
func NewJob(id, searchTerm string, totalPages int) *Job {
	return &Job{
		ID:         id,
		SearchTerm: searchTerm,
		Status:     JobStatusPending,
		CreatedAt:  time.Now().UTC(),
		TotalPages: totalPages,
	}
}

// Transition moves the job to next, refusing backward or sideways moves.
// Entering a terminal state stamps CompletedAt.
func (j *Job) Transition(next JobStatus) error {
	if !j.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", utils.ErrInvalidTransition, j.Status, next)
	}
	j.Status = next
	if next.IsTerminal() {
		now := time.Now().UTC()
		j.CompletedAt = &now
	}
	return nil
}

// Product is one persisted listing belonging to exactly one job
type Product struct {
	ID                 string    `json:"id"`
	JobID              string    `json:"job_id"`
	Title              string    `json:"title"`
	Price              string    `json:"price,omitempty"`
	OriginalPrice      string    `json:"original_price,omitempty"`
	Rating             *float64  `json:"rating"`
	ReviewCount        *int      `json:"review_count"`
	SellerName         string    `json:"seller_name,omitempty"`
	ProductURL         string    `json:"product_url,omitempty"`
	ImageURL           string    `json:"image_url,omitempty"`
	ShippingInfo       string    `json:"shipping_info,omitempty"`
	DiscountPercentage string    `json:"discount_percentage,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// Record is the best-effort field mapping pulled out of one listing element
type Record struct {
	Title              string   `json:"title"`
	Price              string   `json:"price,omitempty"`
	OriginalPrice      string   `json:"original_price,omitempty"`
	Rating             *float64 `json:"rating,omitempty"`
	ReviewCount        *int     `json:"review_count,omitempty"`
	SellerName         string   `json:"seller_name,omitempty"`
	ProductURL         string   `json:"product_url,omitempty"`
	ImageURL           string   `json:"image_url,omitempty"`
	ShippingInfo       string   `json:"shipping_info,omitempty"`
	DiscountPercentage string   `json:"discount_percentage,omitempty"`
}

// ToProduct binds the record to a job. Callers must only convert titled records.
func (r Record) ToProduct(id, jobID string, createdAt time.Time) Product {
	return Product{
		ID:                 id,
		JobID:              jobID,
		Title:              r.Title,
		Price:              r.Price,
		OriginalPrice:      r.OriginalPrice,
		Rating:             r.Rating,
		ReviewCount:        r.ReviewCount,
		SellerName:         r.SellerName,
		ProductURL:         r.ProductURL,
		ImageURL:           r.ImageURL,
		ShippingInfo:       r.ShippingInfo,
		DiscountPercentage: r.DiscountPercentage,
		CreatedAt:          createdAt,
	}
}

// ValidateSearchRequest checks the caller-facing bounds of a job request
// and returns the trimmed search term.
func ValidateSearchRequest(searchTerm string, maxPages int) (string, error) {
	term := strings.TrimSpace(searchTerm)
	if term == "" {
		return "", fmt.Errorf("%w: search term is required", utils.ErrInvalidRequest)
	}
	if maxPages < MinPagesPerJob || maxPages > MaxPagesPerJob {
		return "", fmt.Errorf("%w: max_pages must be between %d and %d", utils.ErrInvalidRequest, MinPagesPerJob, MaxPagesPerJob)
	}
	return term, nil
}
