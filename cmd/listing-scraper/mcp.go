package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Sriram-PR/listing-scraper/pkg/mcp"
)

// runMcpServer handles the mcp-server subcommand
func runMcpServer(args []string) {
	fs := flag.NewFlagSet("mcp-server", flag.ExitOnError)
	configFile := fs.String("config", "", "Path to config file (built-in defaults when empty)")
	transport := fs.String("transport", "stdio", "Transport type (stdio, sse)")
	port := fs.Int("port", 8080, "HTTP port (for sse transport)")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: listing-scraper mcp-server [options]

Start an MCP (Model Context Protocol) server for AI tool integration.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Start with stdio transport
  listing-scraper mcp-server -config config.yaml

  # Start with SSE transport on port 8080
  listing-scraper mcp-server -config config.yaml -transport sse -port 8080

Available MCP Tools:
  start_search    Start a background scraping job
  get_job_status  Check progress of a job
  list_products   List products scraped by a job
  list_jobs       List recent jobs
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	exitCode := doMcpServer(*configFile, *transport, *port, *logLevel, os.Stdout, os.Stderr)
	os.Exit(exitCode)
}

// doMcpServer is the testable implementation of the MCP server.
// MCP uses stdout for the protocol, so logs go to stderr.
func doMcpServer(configPath, transport string, port int, logLevel string, stdout, stderr io.Writer) int {
	if transport != "stdio" && transport != "sse" {
		fmt.Fprintf(stderr, "Unknown transport: %s (supported: stdio, sse)\n", transport)
		return 1
	}

	cfg, log, err := loadForCommand(configPath, logLevel, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps, err := buildRuntime(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error initializing: %v\n", err)
		return 1
	}
	defer deps.close()
	startGC(ctx, deps.store, cfg.Storage.GCInterval)

	server, err := mcp.NewServer(&mcp.ServerConfig{
		Store:     deps.store,
		Jobs:      deps.manager,
		Transport: transport,
		Port:      port,
		Logger:    log,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error creating MCP server: %v\n", err)
		return 1
	}

	log.Infof("Starting MCP server (transport: %s)", transport)
	runErr := server.Run()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnf("MCP shutdown: %v", err)
	}

	if runErr != nil {
		fmt.Fprintf(stderr, "MCP server error: %v\n", runErr)
		return 1
	}
	return 0
}
