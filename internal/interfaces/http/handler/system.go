package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/propbill/backend/internal/infrastructure/docstore"
	"github.com/propbill/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

const healthCheckTimeout = 2 * time.Second

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Store   string `json:"store"`
	Uptime  string `json:"uptime"`
}

// SystemHandler serves liveness and readiness information
type SystemHandler struct {
	service string
	store   docstore.Store
	started time.Time
}

// NewSystemHandler creates a new SystemHandler. store may be nil.
func NewSystemHandler(service string, store docstore.Store) *SystemHandler {
	return &SystemHandler{
		service: service,
		store:   store,
		started: time.Now(),
	}
}

// Health godoc
//
//	@Summary		Health check
//	@Description	Reports service status and, for remote stores, whether the store answers a ping
//	@Tags			system
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Failure		503	{object}	HealthResponse
//	@Router			/health [get]
func (h *SystemHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:  "healthy",
		Service: h.service,
		Store:   "ok",
		Uptime:  time.Since(h.started).Truncate(time.Second).String(),
	}

	if pinger, ok := h.store.(docstore.Pinger); ok {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()
		if err := pinger.Ping(ctx); err != nil {
			logger.GetGinLogger(c).Warn("Health check failed", zap.Error(err))
			resp.Status = "unhealthy"
			resp.Store = err.Error()
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
	}

	c.JSON(http.StatusOK, resp)
}

// RegisterRoutes registers the system routes at the root of rg
func (h *SystemHandler) RegisterRoutes(rg gin.IRoutes) {
	rg.GET("/health", h.Health)
}
