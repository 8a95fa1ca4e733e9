// Package httpapi wires the ingest protocol's external interface: the
// HTTP handlers for health, config, and the five upload endpoints, and
// the mux/middleware chain that serves them.
package httpapi

import (
	"net/http"

	"github.com/abdul-hamid-achik/ingestd/internal/config"
	"github.com/abdul-hamid-achik/ingestd/internal/health"
	"github.com/abdul-hamid-achik/ingestd/internal/metrics"
	"github.com/abdul-hamid-achik/ingestd/internal/upload"
	"github.com/abdul-hamid-achik/ingestd/internal/web"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config wires the dependencies NewRouter needs to build handlers.
type Config struct {
	Manager *upload.Manager
	Checker *health.Checker
	Config  *config.Config
}

// NewRouter builds the complete HTTP handler: the middleware chain
// wrapping a method+path mux covering every endpoint of the external
// interface, plus /metrics for scraping.
func NewRouter(cfg Config) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", health.LivenessHandler())
	mux.HandleFunc("GET /health/ready", health.ReadinessHandler(cfg.Checker))
	mux.HandleFunc("GET /config", configHandler(cfg.Config))

	mux.HandleFunc("POST /initiate", initiateHandler(cfg.Manager))
	mux.HandleFunc("POST /chunk", chunkHandler(cfg.Manager))
	mux.HandleFunc("POST /finalize", finalizeHandler(cfg.Manager))
	mux.HandleFunc("GET /status/{uploadId}", statusHandler(cfg.Manager))
	mux.HandleFunc("POST /cancel/{uploadId}", cancelHandler(cfg.Manager))

	mux.Handle("GET /metrics", promhttp.Handler())

	return web.RequestID(web.RequestLogger(web.Recovery(web.OwnerToken(metrics.HTTPMetricsMiddleware(mux)))))
}
