package routes

import (
	"net/http"

	"framecheck/internal/config"
	"framecheck/internal/handlers"
	"framecheck/internal/logger"
	"framecheck/internal/metrics"
	"framecheck/internal/middleware"
	"framecheck/internal/repository"
	"framecheck/internal/services/verify"
	"framecheck/internal/services/websocket"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Services are the dependencies the HTTP API is built on.
type Services struct {
	Hub      *websocket.HubService
	Reports  repository.ReportRepository
	Verifier *verify.Verifier
	Metrics  *metrics.Metrics
}

// SetupRoutes registers the preview, report, log and metrics endpoints and
// wraps the mux with the logging and authentication middleware.
func SetupRoutes(svc *Services, cfg *config.Config, logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Preview
	mux.HandleFunc("/api/view", handlers.ViewWebsocketHandler(svc.Hub, logger))

	// Reports
	mux.HandleFunc("/api/reports", handlers.ListReportsHandler(svc.Reports, logger))
	mux.HandleFunc("/api/reports/files", handlers.ReportFilesHandler(svc.Reports, logger))
	mux.HandleFunc("/api/verify", handlers.VerifyHandler(svc.Verifier, svc.Reports, cfg.OutputDirectory, logger))

	// Logs
	mux.HandleFunc("/logs", handlers.ShowLogsHandler(cfg.LogDirectory))
	mux.HandleFunc("/logs/clear", handlers.ClearLogsHandler(logger))

	// Metrics
	if registry := svc.Metrics.Registry(); registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	var handler http.Handler = mux
	handler = middleware.AuthMiddleware(cfg.APIToken)(handler)
	handler = middleware.LoggingMiddleware(logger)(handler)
	return handler
}
