package api

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker reports reachability of one dependency.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	db        Pinger
	providers map[string]HealthChecker
	timeout   time.Duration
}

// NewHealthHandler creates a health handler. Providers are optional.
func NewHealthHandler(db Pinger, providers map[string]HealthChecker, timeout time.Duration) *HealthHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthHandler{db: db, providers: providers, timeout: timeout}
}

// Health returns the health status of the API and its dependencies. An
// unreachable database is fatal (503); unreachable providers only degrade the
// service because the chain falls through to the next one.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	var mu sync.Mutex
	providerDown := 0

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		result := "ok"
		if err := h.db.Ping(gctx); err != nil {
			slog.Error("Health check failed", "check", "database", "error", err)
			result = "unreachable"
		}
		mu.Lock()
		checks["database"] = result
		mu.Unlock()
		return nil
	})
	for id, hc := range h.providers {
		g.Go(func() error {
			result := "ok"
			if err := hc.Health(gctx); err != nil {
				slog.Warn("Health check failed", "check", "provider", "provider", id, "error", err)
				result = "unreachable"
			}
			mu.Lock()
			checks["provider:"+id] = result
			if result != "ok" {
				providerDown++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	status := "healthy"
	code := http.StatusOK
	switch {
	case checks["database"] != "ok":
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	case providerDown > 0:
		status = "degraded"
	}

	JSON(w, code, map[string]any{
		"status":    status,
		"checks":    checks,
		"providers": sortedProviderIDs(h.providers),
	})
}

func sortedProviderIDs(m map[string]HealthChecker) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/api/health", h.Health)
}
