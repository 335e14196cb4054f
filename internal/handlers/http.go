package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/engclin/melwatch/internal/api"
	"github.com/engclin/melwatch/internal/services"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// PassStatus reports the outcome of the most recent scheduled pass
type PassStatus interface {
	Last() (result *services.ReconcileResult, at time.Time, err error)
}

// HTTPHandler handles health and metrics endpoints
type HTTPHandler struct {
	ping    func(ctx context.Context) error
	passes  PassStatus
	metrics http.Handler
}

// NewHTTPHandler creates a new HTTP handler. ping checks the database; passes
// and metrics may be nil.
func NewHTTPHandler(ping func(ctx context.Context) error, passes PassStatus, metrics http.Handler) *HTTPHandler {
	return &HTTPHandler{
		ping:    ping,
		passes:  passes,
		metrics: metrics,
	}
}

// SetupRoutes configures all HTTP routes
func (h *HTTPHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.handleHealth)
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics)
	}
}

// handleHealth reports liveness, database reachability and the last pass.
// An unreachable database turns the response into 503.
func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":   "ok",
		"version":  Version,
		"database": "ok",
	}
	status := http.StatusOK

	if h.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			response["status"] = "degraded"
			response["database"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}

	if h.passes != nil {
		result, at, err := h.passes.Last()
		if !at.IsZero() {
			last := map[string]interface{}{"at": at}
			if err != nil {
				last["error"] = err.Error()
			} else if result != nil {
				last["result"] = result
			}
			response["last_reconcile"] = last
		}
	}

	api.RespondJSON(w, status, response)
}
