package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthResponse is the /health and /healthz payload, grounded in the
// teacher's cmd/tarsy/main.go health handler and pkg/queue.PoolHealth.
type HealthResponse struct {
	Status     string          `json:"status"`
	DBHealthy  bool            `json:"db_healthy"`
	DBError    string          `json:"db_error,omitempty"`
	WorkerPool any             `json:"worker_pool,omitempty"`
}

// healthHandler handles GET /health and GET /healthz (SPEC_FULL §4:
// supplemented feature, mirroring the teacher's health endpoint plus its
// own DB ping).
func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	poolHealth := s.pool.Health(ctx)

	resp := HealthResponse{
		Status:     "healthy",
		DBHealthy:  poolHealth.DBReachable,
		DBError:    poolHealth.DBError,
		WorkerPool: poolHealth,
	}
	status := http.StatusOK
	if !poolHealth.IsHealthy {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}
