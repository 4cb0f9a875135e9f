package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"modelproxy-http/internal/client"
	"modelproxy-http/internal/engine"
	"modelproxy-http/internal/service"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	manager  *service.Manager
	pool     *client.Pool
	registry *engine.Registry
	version  Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(m *service.Manager, pool *client.Pool, registry *engine.Registry, v Version) *HealthHandler {
	return &HealthHandler{manager: m, pool: pool, registry: registry, version: v}
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Status returns proxy status information.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":      "ok",
		"version":     string(h.version),
		"interfaces":  h.manager.Len(),
		"engines":     h.registry.Names(),
		"max_sockets": h.pool.MaxSockets(),
	})
}
