package api

import (
	"github.com/gin-gonic/gin"

	"github.com/sessionwave/orchestrator/internal/events"
)

// sseHandler handles GET /sse/events/{patient_id}?since_id= (spec §4.7,
// §6): delegates entirely to events.SSEHandler, which polls the durable
// pipeline_events table rather than any in-process channel, since the
// scheduler may be running in a separate process (spec §9).
func (s *Server) sseHandler(c *gin.Context) {
	patientID := c.Param("patient_id")
	sinceID := events.ParseSinceID(c.Query("since_id"))

	if err := s.sse.Stream(c.Request.Context(), c.Writer, patientID, sinceID); err != nil {
		s.log.Warn("sse stream ended", "error", err, "patient_id", patientID)
	}
}
