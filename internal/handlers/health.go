package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// HealthChecker is implemented by every attempt store
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler reports whether the active attempt store is reachable
type HealthHandler struct {
	store   HealthChecker
	backend string
	logger  *slog.Logger
}

func NewHealthHandler(store HealthChecker, backend string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{store: store, backend: backend, logger: logger}
}

type healthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "healthy", http.StatusOK
	if err := h.store.HealthCheck(ctx); err != nil {
		h.logger.WarnContext(ctx, "health check failed",
			slog.String("store", h.backend),
			slog.Any("error", err))
		// The gate fails open, so logins keep working while the store is down
		status, code = "degraded", http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(healthResponse{Status: status, Store: h.backend})
}
