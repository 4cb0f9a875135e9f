package handler

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
func RegisterRoutes(e *echo.Echo, interfaces *InterfaceHandler, health *HealthHandler) {
	e.GET("/healthz", health.Healthz)
	e.GET("/proxy/status", health.Status)

	e.GET("/interfaces", interfaces.List)
	e.POST("/interfaces/:id", interfaces.Call)
	e.Any("/model/:id", interfaces.Relay)
}
