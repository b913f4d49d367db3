package main

import (
	"flag"
	"fmt"
	"io"
	"os"
)

// runValidate handles the validate subcommand
func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: listing-scraper validate [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	exitCode := doValidate(*configFile, os.Stdout, os.Stderr)
	os.Exit(exitCode)
}

// doValidate performs validation and writes output to provided writers.
// Environment overrides are applied first, as every other command does.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath string, stdout, stderr io.Writer) int {
	cfg, warnings, err := prepareConfig(configPath, os.Getenv)
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	sc := cfg.Scraper
	fmt.Fprintf(stdout, "OK: scraper %s%s (fetch: %s, pages of %d, delay %v-%v)\n",
		sc.BaseURL, sc.SearchPath, sc.FetchMode, sc.PageSize, sc.MinDelay, sc.MaxDelay)
	fmt.Fprintf(stdout, "OK: storage %s\n", cfg.Storage.Backend)
	fmt.Fprintf(stdout, "OK: jobs dispatch %s (max %d concurrent)\n", cfg.Jobs.Dispatch, cfg.Jobs.MaxConcurrent)

	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return 0
}
