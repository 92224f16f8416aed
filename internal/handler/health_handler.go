package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"ledgerlens/internal/domain"
	"ledgerlens/internal/service"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	svc    service.CategorizationService
	dbPing func(ctx context.Context) error
}

// NewHealthHandler creates a new HealthHandler. dbPing may be nil when no database is used.
func NewHealthHandler(svc service.CategorizationService, dbPing func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{svc: svc, dbPing: dbPing}
}

// Liveness handles GET /healthz
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness handles GET /readyz. It fails while the model is missing or the database
// is unreachable.
func (h *HealthHandler) Readiness(c *gin.Context) {
	if h.dbPing != nil {
		if err := h.dbPing(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "database not reachable"})
			return
		}
	}
	health := h.svc.Health(c.Request.Context())
	if health.Status != domain.HealthStatusOK {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": health.Status, "health": health})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Health handles GET /api/v1/health
func (h *HealthHandler) Health(c *gin.Context) {
	RespondOK(c, h.svc.Health(c.Request.Context()))
}
