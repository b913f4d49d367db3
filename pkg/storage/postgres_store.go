package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/listing-scraper/pkg/models"
	"github.com/Sriram-PR/listing-scraper/pkg/utils"
)

// schema is applied by Migrate; statements are idempotent
const schema = `
CREATE TABLE IF NOT EXISTS scraping_jobs (
	id            TEXT PRIMARY KEY,
	search_term   TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'pending',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	completed_at  TIMESTAMPTZ,
	total_pages   INTEGER NOT NULL DEFAULT 0,
	current_page  INTEGER NOT NULL DEFAULT 0,
	error_message TEXT
);

CREATE TABLE IF NOT EXISTS products (
	seq                 BIGSERIAL PRIMARY KEY,
	id                  TEXT NOT NULL UNIQUE,
	job_id              TEXT NOT NULL REFERENCES scraping_jobs(id) ON DELETE CASCADE,
	title               TEXT NOT NULL,
	price               TEXT,
	original_price      TEXT,
	rating              DOUBLE PRECISION,
	review_count        INTEGER,
	seller_name         VARCHAR(200),
	product_url         TEXT,
	image_url           TEXT,
	shipping_info       VARCHAR(200),
	discount_percentage TEXT,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_products_job_id ON products(job_id);
CREATE INDEX IF NOT EXISTS idx_scraping_jobs_created_at ON scraping_jobs(created_at DESC);
`

// PostgresStore implements Store on PostgreSQL
type PostgresStore struct {
	db  *pgxpool.Pool
	log *logrus.Entry
}

// NewPostgresStore connects to dsn and verifies the connection
func NewPostgresStore(ctx context.Context, dsn string, logger *logrus.Entry) (*PostgresStore, error) {
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to connect to database: %w", utils.ErrDatabase, err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping database: %w", utils.ErrDatabase, err)
	}
	logger.Info("Connected to PostgreSQL")
	return &PostgresStore{db: db, log: logger}, nil
}

// Migrate creates the tables if they do not exist
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("%w: migrate: %w", utils.ErrDatabase, err)
	}
	return nil
}

// CreateJob implements Store
func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO scraping_jobs (id, search_term, status, created_at, completed_at, total_pages, current_page, error_message)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		job.ID, job.SearchTerm, string(job.Status), job.CreatedAt, job.CompletedAt,
		job.TotalPages, job.CurrentPage, nullString(job.ErrorMessage),
	)
	if err != nil {
		return fmt.Errorf("%w: create job %s: %w", utils.ErrDatabase, job.ID, err)
	}
	return nil
}

const jobColumns = `id, search_term, status, created_at, completed_at, total_pages, current_page, error_message`

func scanJob(row pgx.Row) (*models.Job, error) {
	var (
		job    models.Job
		status string
		errMsg *string
	)
	if err := row.Scan(&job.ID, &job.SearchTerm, &status, &job.CreatedAt, &job.CompletedAt,
		&job.TotalPages, &job.CurrentPage, &errMsg); err != nil {
		return nil, err
	}
	job.Status = models.JobStatus(status)
	if errMsg != nil {
		job.ErrorMessage = *errMsg
	}
	return &job, nil
}

// GetJob implements Store
func (s *PostgresStore) GetJob(ctx context.Context, id string) (*models.Job, error) {
	job, err := scanJob(s.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM scraping_jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", utils.ErrJobNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get job %s: %w", utils.ErrDatabase, id, err)
	}
	return job, nil
}

// UpdateJob implements Store
func (s *PostgresStore) UpdateJob(ctx context.Context, job *models.Job) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE scraping_jobs
		 SET status = $2, completed_at = $3, total_pages = $4, current_page = $5, error_message = $6
		 WHERE id = $1`,
		job.ID, string(job.Status), job.CompletedAt, job.TotalPages, job.CurrentPage, nullString(job.ErrorMessage),
	)
	if err != nil {
		return fmt.Errorf("%w: update job %s: %w", utils.ErrDatabase, job.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", utils.ErrJobNotFound, job.ID)
	}
	return nil
}

// ListJobs implements Store
func (s *PostgresStore) ListJobs(ctx context.Context, limit int) ([]*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM scraping_jobs ORDER BY created_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list jobs: %w", utils.ErrDatabase, err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan job: %w", utils.ErrDatabase, err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list jobs: %w", utils.ErrDatabase, err)
	}
	return jobs, nil
}

// DeleteJob implements Store. The foreign key cascades to products.
func (s *PostgresStore) DeleteJob(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM scraping_jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: delete job %s: %w", utils.ErrDatabase, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", utils.ErrJobNotFound, id)
	}
	return nil
}

// AddProducts implements Store with one batch inside one transaction
func (s *PostgresStore) AddProducts(ctx context.Context, jobID string, products []models.Product) error {
	if len(products) == 0 {
		return nil
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", utils.ErrDatabase, err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, p := range products {
		batch.Queue(
			`INSERT INTO products (id, job_id, title, price, original_price, rating, review_count,
			   seller_name, product_url, image_url, shipping_info, discount_percentage, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			p.ID, jobID, p.Title, nullString(p.Price), nullString(p.OriginalPrice), p.Rating, p.ReviewCount,
			nullString(p.SellerName), nullString(p.ProductURL), nullString(p.ImageURL),
			nullString(p.ShippingInfo), nullString(p.DiscountPercentage), p.CreatedAt,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		s.log.WithField("job_id", jobID).Errorf("Product batch insert failed: %v", err)
		return fmt.Errorf("%w: insert %d products for job %s: %w", utils.ErrDatabase, len(products), jobID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit products for job %s: %w", utils.ErrDatabase, jobID, err)
	}
	return nil
}

// ListProducts implements Store
func (s *PostgresStore) ListProducts(ctx context.Context, jobID string) ([]models.Product, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, job_id, title, price, original_price, rating, review_count, seller_name,
		        product_url, image_url, shipping_info, discount_percentage, created_at
		 FROM products WHERE job_id = $1 ORDER BY seq`, jobID)
	if err != nil {
		return nil, fmt.Errorf("%w: list products for job %s: %w", utils.ErrDatabase, jobID, err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var (
			p                                    models.Product
			price, origPrice, seller, productURL *string
			imageURL, shipping, discount         *string
		)
		if err := rows.Scan(&p.ID, &p.JobID, &p.Title, &price, &origPrice, &p.Rating, &p.ReviewCount,
			&seller, &productURL, &imageURL, &shipping, &discount, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan product: %w", utils.ErrDatabase, err)
		}
		p.Price = derefString(price)
		p.OriginalPrice = derefString(origPrice)
		p.SellerName = derefString(seller)
		p.ProductURL = derefString(productURL)
		p.ImageURL = derefString(imageURL)
		p.ShippingInfo = derefString(shipping)
		p.DiscountPercentage = derefString(discount)
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list products for job %s: %w", utils.ErrDatabase, jobID, err)
	}
	return products, nil
}

// CountProducts implements Store
func (s *PostgresStore) CountProducts(ctx context.Context, jobID string) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE job_id = $1`, jobID).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count products for job %s: %w", utils.ErrDatabase, jobID, err)
	}
	return n, nil
}

// Close implements Store
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

// nullString maps "" to SQL NULL so optional columns stay NULL rather than empty
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
