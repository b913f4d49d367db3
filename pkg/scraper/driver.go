package scraper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/listing-scraper/pkg/config"
	"github.com/Sriram-PR/listing-scraper/pkg/extract"
	"github.com/Sriram-PR/listing-scraper/pkg/fetch"
	"github.com/Sriram-PR/listing-scraper/pkg/metrics"
	"github.com/Sriram-PR/listing-scraper/pkg/models"
	"github.com/Sriram-PR/listing-scraper/pkg/parse"
	"github.com/Sriram-PR/listing-scraper/pkg/storage"
	"github.com/Sriram-PR/listing-scraper/pkg/utils"
)

// Driver runs one job at a time through its pages: fetch, parse, persist,
// pause. Pages within a job are strictly sequential.
type Driver struct {
	cfg     config.ScraperConfig
	fetcher fetch.PageFetcher
	parser  *extract.Parser
	store   storage.Store // nil only for runs without a job
	delay   *fetch.Delay
	wait    func(ctx context.Context) error // inter-page pause; delay.Wait unless replaced
	newID   func() string
	log     *logrus.Entry
}

// NewDriver wires a Driver from an already validated scraper config
func NewDriver(cfg config.ScraperConfig, fetcher fetch.PageFetcher, store storage.Store, log *logrus.Entry) *Driver {
	set := extract.DefaultSelectors().WithOverrides(cfg.Selectors)
	extractor := extract.NewExtractor(set, cfg.BaseURL, log.WithField("component", "extract"))
	d := &Driver{
		cfg:     cfg,
		fetcher: fetcher,
		parser:  extract.NewParser(extractor, set, cfg.ElementCap, log.WithField("component", "parser")),
		store:   store,
		delay:   fetch.NewDelay(cfg.MinDelay, cfg.MaxDelay, log),
		newID:   uuid.NewString,
		log:     log,
	}
	d.wait = d.delay.Wait
	return d
}

// Run scrapes up to maxPages result pages for searchTerm.
//
// With a jobID the job row is moved pending -> running -> completed, progress
// and page-level errors are written as it goes, and each page's products are
// committed in one batch. Any other error marks the job failed and is returned.
// With an empty jobID nothing is persisted and the records are only returned.
func (d *Driver) Run(ctx context.Context, searchTerm string, maxPages int, jobID string) (records []models.Record, err error) {
	runLog := d.log.WithField("search_term", searchTerm)

	var job *models.Job
	if jobID != "" {
		if d.store == nil {
			return nil, fmt.Errorf("%w: job %s given but driver has no store", utils.ErrDatabase, jobID)
		}
		runLog = runLog.WithField("job_id", jobID)
		job, err = d.store.GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if err := job.Transition(models.JobStatusRunning); err != nil {
			return nil, err
		}
	}

	metrics.JobsRunning.Inc()
	defer metrics.JobsRunning.Dec()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during job run: %v", r)
		}
		if err != nil {
			runLog.Errorf("Job failed: %v", err)
			d.fail(ctx, job, err, runLog)
		}
	}()

	if job != nil {
		job.TotalPages = maxPages
		if err := d.store.UpdateJob(ctx, job); err != nil {
			return nil, err
		}
	}

	searchURL, err := parse.BuildSearchURL(d.cfg.BaseURL, d.cfg.SearchPath, nil)
	if err != nil {
		return nil, err
	}

	for page := 1; page <= maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return records, err
		}
		pageLog := runLog.WithField("page", page)
		pageLog.Infof("Scraping page %d for search term: %s", page, searchTerm)

		if job != nil {
			job.CurrentPage = page
			if err := d.store.UpdateJob(ctx, job); err != nil {
				return records, err
			}
		}

		pageRecords, err := d.scrapePage(ctx, searchURL, searchTerm, page, pageLog)
		if err != nil {
			if !utils.IsPageLevel(err) && !errors.Is(err, utils.ErrParsing) {
				return records, err
			}
			pageLog.Errorf("Error scraping page %d: %v", page, err)
			metrics.PagesFetched.WithLabelValues("error").Inc()
			metrics.PageErrors.WithLabelValues(utils.CategorizeError(err)).Inc()
			if job != nil {
				job.ErrorMessage = fmt.Sprintf("Error on page %d: %v", page, err)
				if err := d.store.UpdateJob(ctx, job); err != nil {
					return records, err
				}
			}
			continue
		}

		if len(pageRecords) == 0 {
			metrics.PagesFetched.WithLabelValues("empty").Inc()
			pageLog.Warnf("No products found on page %d", page)
			break
		}
		metrics.PagesFetched.WithLabelValues("ok").Inc()

		if job != nil {
			if err := d.persist(ctx, job.ID, pageRecords); err != nil {
				return records, err
			}
		}
		records = append(records, pageRecords...)
		pageLog.Infof("Found %d products on page %d", len(pageRecords), page)

		if page < maxPages {
			if err := d.wait(ctx); err != nil {
				return records, err
			}
		}
	}

	if job != nil {
		// job stays running until the completed row is stored, so fail() can still act
		done := *job
		if err := done.Transition(models.JobStatusCompleted); err != nil {
			return records, err
		}
		if err := d.store.UpdateJob(ctx, &done); err != nil {
			return records, err
		}
		*job = done
		metrics.JobsFinished.WithLabelValues(string(models.JobStatusCompleted)).Inc()
	}
	runLog.Infof("Scraping completed. Total products found: %d", len(records))
	return records, nil
}

// scrapePage fetches and parses one page. Returned errors are page-level
// unless the fetcher reports something outside the fetch family.
func (d *Driver) scrapePage(ctx context.Context, searchURL, searchTerm string, page int, pageLog *logrus.Entry) ([]models.Record, error) {
	params := parse.SearchParams(searchTerm, page, d.cfg.PageSize)

	start := time.Now()
	body, err := d.fetcher.Fetch(ctx, searchURL, params)
	metrics.FetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	if page == 1 && d.cfg.DebugDumpDir != "" {
		d.dumpPage(searchTerm, body, pageLog)
	}

	return d.parser.ParseHTML(body)
}

// persist converts one page of records into products and commits them as a batch
func (d *Driver) persist(ctx context.Context, jobID string, records []models.Record) error {
	now := time.Now().UTC()
	products := make([]models.Product, 0, len(records))
	for _, rec := range records {
		products = append(products, rec.ToProduct(d.newID(), jobID, now))
	}
	if err := d.store.AddProducts(ctx, jobID, products); err != nil {
		return err
	}
	metrics.ProductsPersisted.Add(float64(len(products)))
	return nil
}

// fail records err on the job and moves it to failed. The write is detached
// from ctx so a cancelled run still leaves a terminal status behind.
func (d *Driver) fail(ctx context.Context, job *models.Job, err error, runLog *logrus.Entry) {
	if job == nil {
		return
	}
	if !job.Status.CanTransitionTo(models.JobStatusFailed) {
		runLog.Warnf("Job is already %s; not marking failed", job.Status)
		return
	}
	_ = job.Transition(models.JobStatusFailed)
	job.ErrorMessage = err.Error()
	metrics.JobsFinished.WithLabelValues(string(models.JobStatusFailed)).Inc()

	if updErr := d.store.UpdateJob(context.WithoutCancel(ctx), job); updErr != nil {
		runLog.Errorf("Could not record job failure: %v", updErr)
	}
}

// dumpPage writes the first results page to DebugDumpDir for selector debugging
func (d *Driver) dumpPage(searchTerm string, body []byte, pageLog *logrus.Entry) {
	if err := os.MkdirAll(d.cfg.DebugDumpDir, 0755); err != nil {
		pageLog.Warnf("Cannot create debug dump dir: %v", err)
		return
	}
	name := filepath.Join(d.cfg.DebugDumpDir, "debug_page_"+utils.SanitizeFilename(searchTerm)+".html")
	if err := os.WriteFile(name, body, 0644); err != nil {
		pageLog.Warnf("Cannot write debug dump: %v", err)
		return
	}
	pageLog.Infof("Saved HTML content to %s", name)
}
