package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthHandler serves GET /health
type HealthHandler struct {
	logger  *slog.Logger
	service string
	checker HealthChecker
}

// NewHealthHandler creates a HealthHandler; a nil checker always reports healthy
func NewHealthHandler(service string, deps *Dependencies) *HealthHandler {
	return &HealthHandler{
		logger:  deps.Logger,
		service: service,
		checker: deps.Health,
	}
}

// Health pings the database
func (h *HealthHandler) Health(c *gin.Context) {
	if h.checker != nil {
		if err := h.checker.HealthCheck(c.Request.Context()); err != nil {
			h.logger.Warn("Health check failed", slog.String("error", err.Error()))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unhealthy",
				"service": h.service,
				"error":   err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": h.service,
	})
}
