package handler

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"
)

const serviceVersion = "1.0.0"

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type HealthHandler struct {
	checks []ReadinessCheck
}

// NewHealthHandler always checks the database; extra checks are reported
// alongside it.
func NewHealthHandler(db *sql.DB, extra ...ReadinessCheck) *HealthHandler {
	checks := append([]ReadinessCheck{{Name: "database", Check: db.PingContext}}, extra...)
	return &HealthHandler{checks: checks}
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"version":   serviceVersion,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	overall, httpStatus := "ok", http.StatusOK
	results := make(map[string]string, len(h.checks))
	for _, c := range h.checks {
		if err := c.Check(ctx); err != nil {
			slog.Warn("readiness check failed", "check", c.Name, "error", err)
			results[c.Name] = "down"
			overall, httpStatus = "down", http.StatusServiceUnavailable
			continue
		}
		results[c.Name] = "ok"
	}

	RespondJSON(w, httpStatus, map[string]any{
		"status":    overall,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    results,
	})
}
