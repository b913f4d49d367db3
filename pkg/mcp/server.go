package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/listing-scraper/pkg/models"
	"github.com/Sriram-PR/listing-scraper/pkg/storage"
)

const (
	serverName    = "listing-scraper"
	serverVersion = "1.0.0"
)

// JobSubmitter starts and stops background jobs; *jobs.Manager satisfies it
type JobSubmitter interface {
	Submit(ctx context.Context, searchTerm string, maxPages int) (*models.Job, error)
	Shutdown(ctx context.Context) error
}

// ServerConfig holds configuration for the MCP server
type ServerConfig struct {
	Store     storage.Store
	Jobs      JobSubmitter
	Transport string // "stdio" or "sse"
	Port      int
	Logger    *logrus.Logger
}

// Server exposes scraping jobs and their products as MCP tools
type Server struct {
	mcpServer *server.MCPServer
	cfg       *ServerConfig
	log       *logrus.Entry
}

// NewServer creates a new MCP server instance
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.Store == nil || cfg.Jobs == nil {
		return nil, fmt.Errorf("store and job submitter are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithLogging(),
	)

	s := &Server{
		mcpServer: mcpServer,
		cfg:       cfg,
		log:       cfg.Logger.WithField("component", "mcp"),
	}
	s.registerTools()
	return s, nil
}

// registerTools adds the four job tools to the MCP server
func (s *Server) registerTools() {
	startSearchTool := mcp.NewTool("start_search",
		mcp.WithDescription("Start a background scraping job for a search term. Returns immediately with a job ID."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search term to look up on the listing site"),
		),
		mcp.WithNumber("max_pages",
			mcp.Description("Result pages to scrape (1-10, default: 3)"),
		),
	)
	s.mcpServer.AddTool(startSearchTool, s.handleStartSearch)

	// Read-only tools below

	getJobStatusTool := mcp.NewTool("get_job_status",
		mcp.WithDescription("Get the status and progress of a scraping job"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job ID returned by start_search"),
		),
	)
	s.mcpServer.AddTool(getJobStatusTool, s.handleGetJobStatus)

	listProductsTool := mcp.NewTool("list_products",
		mcp.WithDescription("List products scraped by a job, in page order"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job ID returned by start_search"),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum number of products to return (default: 20, max: 100)"),
		),
	)
	s.mcpServer.AddTool(listProductsTool, s.handleListProducts)

	listJobsTool := mcp.NewTool("list_jobs",
		mcp.WithDescription("List recent scraping jobs, newest first"),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of jobs to return (default: 10, max: 100)"),
		),
	)
	s.mcpServer.AddTool(listJobsTool, s.handleListJobs)

	s.log.Infof("Registered %d MCP tools", 4)
}

// Run starts the MCP server with the configured transport
func (s *Server) Run() error {
	switch s.cfg.Transport {
	case "stdio":
		s.log.Info("Starting MCP server with stdio transport")
		return server.ServeStdio(s.mcpServer) // Blocks until stdin closes
	case "sse":
		addr := fmt.Sprintf(":%d", s.cfg.Port)
		s.log.Infof("Starting MCP server with SSE transport on %s", addr)
		sseServer := server.NewSSEServer(s.mcpServer)
		return sseServer.Start(addr) // Blocks until the listener fails
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, sse)", s.cfg.Transport)
	}
}

// Shutdown stops running jobs started through this server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down MCP server...")
	return s.cfg.Jobs.Shutdown(ctx)
}
