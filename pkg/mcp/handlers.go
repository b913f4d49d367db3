package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Sriram-PR/listing-scraper/pkg/utils"
)

const (
	defaultMaxPages    = 3   // Same default as POST /api/search
	defaultMaxProducts = 20  // list_products without max_results
	defaultJobsLimit   = 10  // list_jobs without limit
	maxResultsCap      = 100 // Keeps tool output small
)

// handleStartSearch handles the start_search tool
func (s *Server) handleStartSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := request.GetString("query", "")
	maxPages := request.GetInt("max_pages", defaultMaxPages)

	// Validation happens in Submit; the job runs detached from this call
	job, err := s.cfg.Jobs.Submit(ctx, query, maxPages)
	if err != nil {
		if errors.Is(err, utils.ErrInvalidRequest) {
			return mcp.NewToolResultError(err.Error()), nil // Caller mistake, no log
		}
		s.log.Errorf("start_search failed: %v", err)
		return mcp.NewToolResultError(fmt.Sprintf("failed to start job: %v", err)), nil
	}

	result := map[string]interface{}{
		"status":      "started",
		"job_id":      job.ID,
		"search_term": job.SearchTerm,
		"max_pages":   job.TotalPages,
		"message":     "Scraping started. Use get_job_status to check progress.",
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleGetJobStatus handles the get_job_status tool
func (s *Server) handleGetJobStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}

	job, err := s.cfg.Store.GetJob(ctx, jobID)
	if err != nil {
		return toolStoreError(err, jobID), nil
	}
	count, err := s.cfg.Store.CountProducts(ctx, jobID)
	if err != nil {
		return toolStoreError(err, jobID), nil
	}

	result := map[string]interface{}{
		"job_id":        job.ID,
		"search_term":   job.SearchTerm,
		"status":        string(job.Status),
		"current_page":  job.CurrentPage,
		"total_pages":   job.TotalPages,
		"product_count": count,
		"created_at":    job.CreatedAt,
	}
	if job.CompletedAt != nil { // Terminal jobs only
		result["completed_at"] = *job.CompletedAt
		result["duration"] = job.CompletedAt.Sub(job.CreatedAt).String()
	}
	if job.ErrorMessage != "" {
		result["error_message"] = job.ErrorMessage
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleListProducts handles the list_products tool
func (s *Server) handleListProducts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}
	maxResults := clampLimit(request.GetInt("max_results", defaultMaxProducts), defaultMaxProducts)

	// Unknown job is an error here, unlike the HTTP API's empty list
	if _, err := s.cfg.Store.GetJob(ctx, jobID); err != nil {
		return toolStoreError(err, jobID), nil
	}
	products, err := s.cfg.Store.ListProducts(ctx, jobID)
	if err != nil {
		return toolStoreError(err, jobID), nil
	}

	total := len(products) // Reported before truncation
	if total > maxResults {
		products = products[:maxResults]
	}
	result := map[string]interface{}{
		"job_id":   jobID,
		"total":    total,
		"returned": len(products),
		"products": products,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleListJobs handles the list_jobs tool
func (s *Server) handleListJobs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := clampLimit(request.GetInt("limit", defaultJobsLimit), defaultJobsLimit)

	jobs, err := s.cfg.Store.ListJobs(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list jobs: %v", err)), nil
	}

	summaries := make([]map[string]interface{}, 0, len(jobs))
	for _, job := range jobs {
		summaries = append(summaries, map[string]interface{}{
			"job_id":       job.ID,
			"search_term":  job.SearchTerm,
			"status":       string(job.Status),
			"current_page": job.CurrentPage,
			"total_pages":  job.TotalPages,
			"created_at":   job.CreatedAt,
		})
	}
	result := map[string]interface{}{
		"jobs":  summaries,
		"count": len(summaries),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// clampLimit maps non-positive values to def and caps the rest at maxResultsCap
func clampLimit(n, def int) int {
	if n <= 0 {
		return def
	}
	if n > maxResultsCap {
		return maxResultsCap
	}
	return n
}

// toolStoreError turns a store error into a tool-level error result
func toolStoreError(err error, jobID string) *mcp.CallToolResult {
	if errors.Is(err, utils.ErrJobNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID))
	}
	return mcp.NewToolResultError(fmt.Sprintf("store error: %v", err))
}

// formatJSON formats data as an indented JSON string
func formatJSON(data map[string]interface{}) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("{\"error\": %q}", err.Error())
	}
	return string(b)
}
