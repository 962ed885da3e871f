package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/authz/internal/application/dto"
	"github.com/turtacn/authz/internal/infrastructure/monitoring"
)

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	checker *monitoring.HealthChecker
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(checker *monitoring.HealthChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// Live reports that the process is up. It never touches dependencies.
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, dto.HealthResponse{Status: "ok", Timestamp: time.Now().UTC()})
}

// Ready runs every registered dependency check.
func (h *HealthHandler) Ready(c *gin.Context) {
	report := h.checker.Check(c.Request.Context())
	status := http.StatusOK
	if !report.Healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, dto.HealthResponse{Status: report.Status, Timestamp: report.Timestamp, Checks: report.Checks})
}
