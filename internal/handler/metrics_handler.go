package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edt-scheduler/internal/models"
	"github.com/noah-isme/edt-scheduler/internal/service"
)

type healthSource interface {
	Term() models.Term
	Revision() uint64
}

// MetricsHandler exposes observability endpoints.
type MetricsHandler struct {
	metrics *service.MetricsService
	health  healthSource
}

// NewMetricsHandler constructs a metrics handler.
func NewMetricsHandler(metrics *service.MetricsService, ws *service.Workspace) *MetricsHandler {
	h := &MetricsHandler{metrics: metrics}
	if ws != nil {
		h.health = ws
	}
	return h
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health responds with the active term for readiness/liveness usage.
func (h *MetricsHandler) Health(c *gin.Context) {
	payload := gin.H{"status": "ok"}
	if h.health != nil {
		payload["term"] = h.health.Term()
		payload["revision"] = h.health.Revision()
	}
	c.JSON(http.StatusOK, payload)
}
