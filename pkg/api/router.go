package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/listing-scraper/pkg/config"
)

// NewRouter mounts the API and /metrics behind the logging and metrics middleware
func NewRouter(h *Handler, log *logrus.Entry) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", h.HandleHealthCheck)
	mux.HandleFunc("POST /api/search", h.HandleSearch)
	mux.HandleFunc("GET /api/jobs", h.HandleListJobs)
	mux.HandleFunc("GET /api/job/{id}/status", h.HandleJobStatus)
	mux.HandleFunc("GET /api/job/{id}/export", h.HandleExport)
	mux.HandleFunc("DELETE /api/job/{id}", h.HandleDeleteJob)
	mux.HandleFunc("GET /api/products/{id}", h.HandleProducts)

	mux.Handle("GET /metrics", promhttp.Handler())

	var chained http.Handler = mux
	chained = Metrics(chained)
	chained = Logging(log, chained)
	return chained
}

// NewServer wraps handler in an http.Server using the configured address and timeouts
func NewServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}
