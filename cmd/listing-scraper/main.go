package main

import (
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/listing-scraper/pkg/config"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// A missing .env is normal outside development
	_ = godotenv.Load()

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "scrape":
		runScrape(os.Args[2:])
	case "worker":
		runWorker(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "mcp-server":
		runMcpServer(os.Args[2:])
	case "version":
		fmt.Printf("listing-scraper %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `listing-scraper - Search result scraper with a job API

Usage:
  listing-scraper <command> [options]

Commands:
  serve       Run the HTTP API and execute submitted jobs
  scrape      Run one search in the foreground
  worker      Run jobs queued in Redis by 'serve'
  validate    Validate configuration file
  mcp-server  Start MCP server for AI tool integration
  version     Show version info

Run 'listing-scraper <command> -h' for command-specific help.`)
}

// loadConfig loads and parses the config file. An empty path yields an empty
// config that Validate fills with defaults.
func loadConfig(path string) (*config.AppConfig, error) {
	var cfg config.AppConfig
	if path == "" {
		return &cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// prepareConfig loads the file, applies environment overrides and validates.
// Warnings are returned for the caller to log.
func prepareConfig(path string, getenv func(string) string) (*config.AppConfig, []string, error) {
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, nil, err
	}
	cfg.ApplyEnvOverrides(getenv)
	warnings, err := cfg.Validate()
	if err != nil {
		return nil, warnings, err
	}
	return cfg, warnings, nil
}

// setupLogger creates a configured logrus.Logger with the given log level.
func setupLogger(logLevelStr string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", logLevelStr, err)
	} else {
		log.SetLevel(level)
	}
	return log
}

// loadForCommand is the shared prologue of the long-running commands: config,
// then a logger at the flag level or, when the flag is empty, the config level.
func loadForCommand(configPath, logLevelFlag string, stderr io.Writer) (*config.AppConfig, *logrus.Logger, error) {
	cfg, warnings, err := prepareConfig(configPath, os.Getenv)
	level := logLevelFlag
	if level == "" {
		level = "info"
		if cfg != nil {
			level = cfg.LogLevel
		}
	}
	log := setupLogger(level, stderr)
	for _, w := range warnings {
		log.Warn(w)
	}
	if err != nil {
		return nil, log, err
	}
	logAppConfig(cfg, log)
	return cfg, log, nil
}

// logAppConfig logs the effective configuration
func logAppConfig(cfg *config.AppConfig, log *logrus.Logger) {
	sc := cfg.Scraper
	log.Infof("Scraper Config: Base:%s%s, FetchMode:%s, PageSize:%d, ElementCap:%d, Robots:%t",
		sc.BaseURL, sc.SearchPath, sc.FetchMode, sc.PageSize, sc.ElementCap, sc.RespectRobots)
	log.Infof("Scraper Config: Delay:%v-%v, FetchTimeout:%v", sc.MinDelay, sc.MaxDelay, sc.FetchTimeout)
	log.Infof("Storage Config: Backend:%s, StateDir:%s", cfg.Storage.Backend, cfg.Storage.StateDir)
	log.Infof("Jobs Config: Dispatch:%s, MaxConcurrent:%d", cfg.Jobs.Dispatch, cfg.Jobs.MaxConcurrent)
}
