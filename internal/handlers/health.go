package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/eldtechnologies/aidesk/internal/token"
)

const version = "0.1.0"

// Check represents the status of a health check.
type Check struct {
	Status  string `json:"status"`            // "pass" or "fail"
	Latency string `json:"latency,omitempty"` // e.g., "2ms"
	Message string `json:"message,omitempty"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string           `json:"status"` // "healthy" or "degraded"
	Version   string           `json:"version"`
	Checks    map[string]Check `json:"checks"`
	Timestamp string           `json:"timestamp"`
}

// Health reports whether the bridge can act for the operator: a session
// token is stored and the realtime channel is connected.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]Check)
	allHealthy := true

	start := time.Now()
	tok, ok, err := h.tokens.Read(ctx)
	switch {
	case err != nil:
		checks["token"] = Check{Status: "fail", Message: "token store unavailable"}
		allHealthy = false
	case !ok:
		checks["token"] = Check{Status: "fail", Message: "not authenticated"}
		allHealthy = false
	default:
		c := Check{Status: "pass", Latency: time.Since(start).String()}
		if exp, ok := token.ExpiresAt(tok); ok {
			c.Message = "expires " + exp.UTC().Format(time.RFC3339)
		}
		checks["token"] = c
	}

	if h.realtime == nil {
		checks["realtime"] = Check{Status: "fail", Message: "not configured"}
		allHealthy = false
	} else if !h.realtime.Connected() {
		checks["realtime"] = Check{Status: "fail", Message: "disconnected"}
		allHealthy = false
	} else {
		checks["realtime"] = Check{Status: "pass"}
	}

	status := "healthy"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	h.JSON(w, statusCode, HealthResponse{
		Status:    status,
		Version:   version,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// RootResponse represents the root endpoint response.
type RootResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Root handles the root endpoint.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, RootResponse{Name: "aidesk bridge", Version: version})
}
