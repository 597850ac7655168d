package handlers

import (
	"net/http"
	"time"

	"billing-api/internal/services"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	health *services.HealthService
}

func NewHealthHandler(health *services.HealthService) *HealthHandler {
	return &HealthHandler{health: health}
}

// Healthz handles GET /healthz
func (h *HealthHandler) Healthz() gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := h.health.CheckOverall(c.Request.Context())

		status := "healthy"
		code := http.StatusOK
		for _, check := range checks {
			if check.Status != "ok" {
				status = "degraded"
				code = http.StatusServiceUnavailable
				break
			}
		}

		c.JSON(code, gin.H{
			"status":    status,
			"timestamp": time.Now().UTC(),
			"checks":    checks,
		})
	}
}
