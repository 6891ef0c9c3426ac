package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// HubMetricsSource exposes the WebSocket hub's internal counters.
type HubMetricsSource interface {
	GetHubMetrics() map[string]interface{}
}

// MetricsHandler serves JSON snapshots of in-process metrics. The
// Prometheus scrape endpoint lives at /metrics outside the API group;
// these routes exist for quick inspection without a scraper.
type MetricsHandler struct {
	hub HubMetricsSource
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(hub HubMetricsSource) *MetricsHandler {
	return &MetricsHandler{hub: hub}
}

// Routes sets up the metrics routes
func (h *MetricsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/websocket", h.GetWebSocketMetrics)
	return r
}

// GetWebSocketMetrics returns hub connection and subscription counters
func (h *MetricsHandler) GetWebSocketMetrics(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"websocket": h.hub.GetHubMetrics(),
	}
	render.JSON(w, r, response)
}
