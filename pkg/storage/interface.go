package storage

import (
	"context"

	"github.com/Sriram-PR/listing-scraper/pkg/models"
)

// JobStore persists scraping jobs
type JobStore interface {
	// CreateJob inserts a new job. The ID must be unused.
	CreateJob(ctx context.Context, job *models.Job) error

	// GetJob returns the job or an error wrapping utils.ErrJobNotFound
	GetJob(ctx context.Context, id string) (*models.Job, error)

	// UpdateJob overwrites status, progress, error and completion fields of an existing job
	UpdateJob(ctx context.Context, job *models.Job) error

	// ListJobs returns up to limit jobs, newest first. limit <= 0 means no limit.
	ListJobs(ctx context.Context, limit int) ([]*models.Job, error)

	// DeleteJob removes the job and every product belonging to it
	DeleteJob(ctx context.Context, id string) error
}

// ProductStore persists products extracted for a job
type ProductStore interface {
	// AddProducts commits products for jobID in one transaction: all or none are stored
	AddProducts(ctx context.Context, jobID string, products []models.Product) error

	// ListProducts returns a job's products in insertion order
	ListProducts(ctx context.Context, jobID string) ([]models.Product, error)

	// CountProducts returns how many products a job owns
	CountProducts(ctx context.Context, jobID string) (int, error)
}

// Store combines all store interfaces for components that need full access
type Store interface {
	JobStore
	ProductStore

	// Close cleanly closes the underlying database
	Close() error
}
