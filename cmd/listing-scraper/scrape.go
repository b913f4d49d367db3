package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/Sriram-PR/listing-scraper/pkg/export"
	"github.com/Sriram-PR/listing-scraper/pkg/models"
	"github.com/Sriram-PR/listing-scraper/pkg/scraper"
)

type scrapeOptions struct {
	configPath string
	logLevel   string
	query      string
	maxPages   int
	dryRun     bool
	csvPath    string
}

// runScrape handles the scrape subcommand
func runScrape(args []string) {
	var opts scrapeOptions
	fs := flag.NewFlagSet("scrape", flag.ExitOnError)
	fs.StringVar(&opts.configPath, "config", "", "Path to config file (built-in defaults when empty)")
	fs.StringVar(&opts.logLevel, "loglevel", "", "Log level (debug, info, warn, error); defaults to log_level from config")
	fs.StringVar(&opts.query, "query", "", "Search term (required)")
	fs.IntVar(&opts.maxPages, "pages", 3, "Result pages to scrape (1-10)")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "Print records without creating a job or touching storage")
	fs.StringVar(&opts.csvPath, "csv", "", "Also write the products to this CSV file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: listing-scraper scrape [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  listing-scraper scrape -query \"usb hub\" -pages 2\n")
		fmt.Fprintf(os.Stderr, "  listing-scraper scrape -query \"usb hub\" -dry-run -csv hubs.csv\n")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(doScrape(ctx, opts, os.Stdout, os.Stderr))
}

// doScrape runs one search in the foreground. With a store the run is a
// regular job; a dry run prints the records as JSON instead.
// Returns exit code (0 = success, 1 = error).
func doScrape(ctx context.Context, opts scrapeOptions, stdout, stderr io.Writer) int {
	term, err := models.ValidateSearchRequest(opts.query, opts.maxPages)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	cfg, log, err := loadForCommand(opts.configPath, opts.logLevel, stderr)
	if err != nil {
		log.Errorf("Config error: %v", err)
		return 1
	}

	fetcher, closeFetcher := buildFetcher(cfg, log.WithField("component", "fetch"))
	defer closeFetcher()

	if opts.dryRun {
		driver := scraper.NewDriver(cfg.Scraper, fetcher, nil, log.WithField("component", "driver"))
		records, err := driver.Run(ctx, term, opts.maxPages, "")
		if err != nil {
			log.Errorf("Scrape failed: %v", err)
			return 1
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(records); err != nil {
			log.Errorf("Cannot print records: %v", err)
			return 1
		}
		if opts.csvPath != "" {
			now := time.Now().UTC()
			products := make([]models.Product, 0, len(records))
			for _, rec := range records {
				products = append(products, rec.ToProduct(uuid.NewString(), "", now))
			}
			if err := writeCSVFile(opts.csvPath, products); err != nil {
				log.Errorf("CSV export failed: %v", err)
				return 1
			}
		}
		return 0
	}

	store, err := openStore(ctx, cfg.Storage, log.WithField("component", "storage"))
	if err != nil {
		log.Errorf("Startup failed: %v", err)
		return 1
	}
	defer store.Close()

	job := models.NewJob(uuid.NewString(), term, opts.maxPages)
	if err := store.CreateJob(ctx, job); err != nil {
		log.Errorf("Cannot create job: %v", err)
		return 1
	}

	driver := scraper.NewDriver(cfg.Scraper, fetcher, store, log.WithField("component", "driver"))
	_, runErr := driver.Run(ctx, term, opts.maxPages, job.ID)

	// Report from the stored row, which also carries failures
	statusCtx := context.WithoutCancel(ctx)
	final, err := store.GetJob(statusCtx, job.ID)
	if err != nil {
		log.Errorf("Cannot read job: %v", err)
		return 1
	}
	products, err := store.ListProducts(statusCtx, job.ID)
	if err != nil {
		log.Errorf("Cannot read products: %v", err)
		return 1
	}
	fmt.Fprintf(stdout, "Job %s %s: %d products from %d/%d pages\n",
		final.ID, final.Status, len(products), final.CurrentPage, final.TotalPages)
	if final.ErrorMessage != "" {
		fmt.Fprintf(stdout, "Last error: %s\n", final.ErrorMessage)
	}

	if opts.csvPath != "" && len(products) > 0 {
		if err := writeCSVFile(opts.csvPath, products); err != nil {
			log.Errorf("CSV export failed: %v", err)
			return 1
		}
		fmt.Fprintf(stdout, "Wrote %s\n", opts.csvPath)
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			log.Warn("Scrape cancelled.")
		}
		return 1
	}
	return 0
}

func writeCSVFile(path string, products []models.Product) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.WriteCSV(f, products); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
