package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// healthTimeout bounds the database ping behind /healthz.
const healthTimeout = 2 * time.Second

// HealthHandler reports database reachability.
type HealthHandler struct {
	DB Pinger
}

// Check handles GET /healthz.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := h.DB.PingContext(ctx); err != nil {
		slog.ErrorContext(ctx, "health check failed", "request_id", RequestID(ctx), "error", err)
		jsonError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}
