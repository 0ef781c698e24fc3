package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string            `json:"status"`
	Services  map[string]string `json:"services"`
	Timestamp string            `json:"timestamp"`
}

// health checks every backing service with a 3 second budget. Any failure
// makes the whole service unhealthy.
func (s *Server) health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:    "healthy",
		Services:  map[string]string{},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if s.cfg.Health == nil {
		return c.JSON(http.StatusOK, resp)
	}

	code := http.StatusOK
	for name, err := range s.cfg.Health(ctx) {
		if err != nil {
			s.logger.Warn("Health check failed", "service", name, "error", err)
			resp.Services[name] = "disconnected"
			resp.Status = "unhealthy"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Services[name] = "connected"
	}
	return c.JSON(code, resp)
}
