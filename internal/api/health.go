package api

import (
	"context"
	"net/http"
	"time"
)

// Checker pings one dependency.
type Checker func(ctx context.Context) error

type HealthHandler struct {
	postgres Checker
	redis    Checker
	env      string
	version  string
}

// NewHealthHandler takes nil checkers for dependencies that are not wired;
// they are reported as "disabled".
func NewHealthHandler(env, version string, postgres, redis Checker) *HealthHandler {
	return &HealthHandler{
		postgres: postgres,
		redis:    redis,
		env:      env,
		version:  version,
	}
}

type LivenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Env     string `json:"env,omitempty"`
}

type ReadinessResponse struct {
	Status       string            `json:"status"`
	Version      string            `json:"version,omitempty"`
	Env          string            `json:"env,omitempty"`
	Dependencies map[string]string `json:"dependencies"`
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LivenessResponse{
		Status:  "ok",
		Version: h.version,
		Env:     h.env,
	})
}

// Readiness fails when Postgres is down. Redis only guards locking and the
// doctor cache, so losing it degrades the service without taking it out.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	deps := make(map[string]string)
	status := "ok"

	deps["postgres"] = ping(ctx, h.postgres)
	if deps["postgres"] == "down" {
		status = "error"
	}

	deps["redis"] = ping(ctx, h.redis)
	if deps["redis"] == "down" && status == "ok" {
		status = "degraded"
	}

	httpStatus := http.StatusOK
	if status == "error" {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, ReadinessResponse{
		Status:       status,
		Version:      h.version,
		Env:          h.env,
		Dependencies: deps,
	})
}

func ping(ctx context.Context, check Checker) string {
	if check == nil {
		return "disabled"
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := check(ctx); err != nil {
		return "down"
	}
	return "ok"
}
