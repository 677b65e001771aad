package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sessionwave/orchestrator/internal/store"
)

// ingestSessionHandler handles POST /ingest/session (spec §6): registers a
// new session in processing_status=pending, which the wave scheduler's
// worker pool picks up on its next poll — enqueueing Wave 1 is implicit in
// the row's initial status, not a separate call.
func (s *Server) ingestSessionHandler(c *gin.Context) {
	var req IngestSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sessionDate, err := time.Parse(time.RFC3339, req.SessionDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_date must be RFC3339"})
		return
	}

	if err := s.patients.EnsureExists(c.Request.Context(), req.PatientID); err != nil {
		respondError(c, err)
		return
	}

	transcriptJSON, err := json.Marshal(req.Transcript)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transcript"})
		return
	}

	sessionID := uuid.NewString()
	err = s.sessions.Create(c.Request.Context(), store.NewSessionInput{
		ID:              sessionID,
		PatientID:       req.PatientID,
		SessionDate:     sessionDate,
		DurationMinutes: req.DurationMinutes,
		TranscriptJSON:  transcriptJSON,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	s.publisher.Publish(c.Request.Context(), req.PatientID, store.PhaseTranscript,
		"transcript.ingested", &sessionID, "completed", nil)

	c.JSON(http.StatusAccepted, gin.H{"session_id": sessionID})
}

// getSessionHandler handles GET /sessions/{id}.
func (s *Server) getSessionHandler(c *gin.Context) {
	ctx := c.Request.Context()
	session, err := s.sessions.Get(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := sessionToResponse(session)
	entries, err := s.logs.ListBySession(ctx, session.ID)
	if err != nil {
		s.log.Error("list processing log entries", "error", err, "session_id", session.ID)
	} else {
		resp.ProcessingLog = processingLogToResponse(entries)
	}

	c.JSON(http.StatusOK, resp)
}

// listPatientSessionsHandler handles GET /patients/{id}/sessions.
func (s *Server) listPatientSessionsHandler(c *gin.Context) {
	sessions, err := s.sessions.ListByPatient(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]SessionResponse, len(sessions))
	for i, sess := range sessions {
		out[i] = sessionToResponse(sess)
	}
	c.JSON(http.StatusOK, out)
}
