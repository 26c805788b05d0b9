package handler

import (
	"net/http"

	"userapi/config"
	"userapi/internal/delivery/http/response"

	"github.com/labstack/echo/v4"
)

// RootHandler serves the service banner and the liveness check.
type RootHandler struct {
	name    string
	version string
}

func NewRootHandler(cfg *config.Config) *RootHandler {
	return &RootHandler{
		name:    cfg.App.Name,
		version: cfg.App.Version,
	}
}

// Welcome handles GET /.
func (h *RootHandler) Welcome(c echo.Context) error {
	return response.Success(c, http.StatusOK, map[string]string{
		"message": "Welcome to " + h.name,
		"version": h.version,
	})
}

// HealthCheck handles GET /health.
func HealthCheck(c echo.Context) error {
	return response.Success(c, http.StatusOK, map[string]string{"status": "healthy"})
}
