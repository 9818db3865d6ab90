package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"
)

// Health 健康检查
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"store": "ok"}
	healthy := true

	if h.deps.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.deps.Store.Ping(ctx); err != nil {
			checks["store"] = err.Error()
			healthy = false
		}
	}
	if h.deps.Assigner != nil {
		checks["assignment_breaker"] = h.deps.Assigner.BreakerState()
	}

	status := http.StatusOK
	state := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "unhealthy"
	}
	respondJSON(w, status, map[string]interface{}{
		"status": state,
		"checks": checks,
		"uptime": time.Since(h.startedAt).Round(time.Second).String(),
	})
}

// Version 版本信息
func (h *Handler) Version(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"version":    h.deps.Version,
		"go_version": runtime.Version(),
	})
}
