package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Sriram-PR/listing-scraper/pkg/api"
	"github.com/Sriram-PR/listing-scraper/pkg/config"
)

// shutdownGrace bounds how long running jobs may finish after a stop signal
const shutdownGrace = 30 * time.Second

// runServe handles the serve subcommand
func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configFile := fs.String("config", "", "Path to config file (built-in defaults when empty)")
	addr := fs.String("addr", "", "Listen address, overrides server.addr")
	logLevel := fs.String("loglevel", "", "Log level (debug, info, warn, error); defaults to log_level from config")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: listing-scraper serve [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  listing-scraper serve -config config.yaml\n")
		fmt.Fprintf(os.Stderr, "  listing-scraper serve -addr :8080 -loglevel debug\n")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(doServe(ctx, *configFile, *addr, *logLevel, os.Stderr))
}

// doServe runs the API until ctx ends, then drains running jobs.
// Returns exit code (0 = success, 1 = error).
func doServe(ctx context.Context, configPath, addr, logLevel string, stderr io.Writer) int {
	cfg, log, err := loadForCommand(configPath, logLevel, stderr)
	if err != nil {
		log.Errorf("Config error: %v", err)
		return 1
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	deps, err := buildRuntime(ctx, cfg, log)
	if err != nil {
		log.Errorf("Startup failed: %v", err)
		return 1
	}
	defer deps.close()

	handler := api.NewHandler(deps.store, deps.manager, log.WithField("component", "api"))
	srv := api.NewServer(cfg.Server, api.NewRouter(handler, log.WithField("component", "http")))

	g, gCtx := errgroup.WithContext(ctx)
	startGC(gCtx, deps.store, cfg.Storage.GCInterval)

	g.Go(func() error {
		log.Infof("HTTP API listening on %s (dispatch: %s)", srv.Addr, cfg.Jobs.Dispatch)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		log.Info("Shutting down HTTP API...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return errors.Join(srv.Shutdown(shutdownCtx), deps.manager.Shutdown(shutdownCtx))
	})

	if err := g.Wait(); err != nil {
		log.Errorf("Server stopped with error: %v", err)
		return 1
	}
	log.Info("Server stopped.")
	return 0
}

// runWorker handles the worker subcommand
func runWorker(args []string) {
	fs := flag.NewFlagSet("worker", flag.ExitOnError)
	configFile := fs.String("config", "", "Path to config file (built-in defaults when empty)")
	logLevel := fs.String("loglevel", "", "Log level (debug, info, warn, error); defaults to log_level from config")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: listing-scraper worker [options]\n\nRuns jobs that 'serve' queued in Redis (jobs.dispatch: redis).\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(doWorker(ctx, *configFile, *logLevel, os.Stderr))
}

// doWorker consumes the job queue until ctx ends.
// Returns exit code (0 = success, 1 = error).
func doWorker(ctx context.Context, configPath, logLevel string, stderr io.Writer) int {
	cfg, log, err := loadForCommand(configPath, logLevel, stderr)
	if err != nil {
		log.Errorf("Config error: %v", err)
		return 1
	}
	if cfg.Jobs.Dispatch != config.DispatchRedis {
		log.Errorf("worker needs jobs.dispatch: %s (got %s)", config.DispatchRedis, cfg.Jobs.Dispatch)
		return 1
	}

	deps, err := buildRuntime(ctx, cfg, log)
	if err != nil {
		log.Errorf("Startup failed: %v", err)
		return 1
	}
	defer deps.close()
	startGC(ctx, deps.store, cfg.Storage.GCInterval)

	runErr := deps.manager.RunWorker(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := errors.Join(runErr, deps.manager.Shutdown(shutdownCtx)); err != nil {
		log.Errorf("Worker stopped with error: %v", err)
		return 1
	}
	log.Info("Worker stopped.")
	return 0
}
