package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sessionwave/orchestrator/internal/store"
)

// getJourneyHandler handles GET /patients/{id}/journey (spec §6): 404 if
// no Journey has ever been generated for the patient.
func (s *Server) getJourneyHandler(c *gin.Context) {
	journey, err := s.versions.GetJourneyLatest(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", journey.DataJSON)
}

// getBridgeHandler handles GET /patients/{id}/bridge.
func (s *Server) getBridgeHandler(c *gin.Context) {
	bridge, err := s.versions.GetBridgeLatest(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", bridge.DataJSON)
}

// statusHandler handles GET /patients/{id}/status, implementing the
// derivation rule of spec §4.9: join Session analysis timestamps with the
// current set of in-flight processes (here: the worker pool's active-session
// registry) to report a signal set sufficient for adaptive client polling.
func (s *Server) statusHandler(c *gin.Context) {
	ctx := c.Request.Context()
	patientID := c.Param("id")

	sessions, err := s.sessions.ListByPatient(ctx, patientID)
	if err != nil {
		respondError(c, err)
		return
	}

	wave1Count, err := s.sessions.CountWave1Complete(ctx, patientID)
	if err != nil {
		respondError(c, err)
		return
	}
	wave2Count, err := s.sessions.CountWave2Complete(ctx, patientID)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := StatusResponse{
		Wave1CompleteCount: wave1Count,
		Wave2CompleteCount: wave2Count,
		TotalSessions:      len(sessions),
	}

	if journey, err := s.versions.GetJourneyLatest(ctx, patientID); err == nil {
		resp.RoadmapUpdatedAt = &journey.UpdatedAt
	} else if err != store.ErrNotFound {
		respondError(c, err)
		return
	}

	stopped, err := s.sessions.FindStoppedSession(ctx, patientID)
	switch {
	case err == nil:
		resp.StoppedAtSessionID = &stopped.ID
		resp.CanResume = true
	case err != store.ErrNotFound:
		respondError(c, err)
		return
	}

	resp.AnalysisStatus, resp.ProcessingState = derivePatientState(sessions, resp, wave1Count, wave2Count)

	c.JSON(http.StatusOK, resp)
}

// derivePatientState implements the state machine of spec §4.9:
// not_started -> running -> (stopped <-> running) -> complete.
func derivePatientState(sessions []*store.Session, resp StatusResponse, wave1Count, wave2Count int) (analysisStatus, processingState string) {
	total := len(sessions)
	if total == 0 {
		return "not_started", "idle"
	}
	if resp.StoppedAtSessionID != nil {
		return "stopped", "stopped"
	}
	for _, sess := range sessions {
		if sess.ProcessingStatus == store.ProcessingRunning || sess.ProcessingStatus == store.ProcessingPending {
			return "running", "running"
		}
	}
	// Every session has reached a terminal processing state. Completion
	// additionally requires Wave 3 to have regenerated at least once after
	// the last Wave-2 completion (spec §4.9): approximated here as "a
	// Journey document exists" since Wave-3 always attempts both documents
	// together (spec §9 open question #2).
	if wave1Count == total && wave2Count == total && resp.RoadmapUpdatedAt != nil {
		return "complete", "idle"
	}
	return "running", "idle"
}

// stopHandler handles POST /patients/{id}/stop (spec §4.9): cancels every
// in-flight session of the patient, waits up to the configured graceful
// window, and marks the affected (session, wave) rows stopped.
func (s *Server) stopHandler(c *gin.Context) {
	ctx := c.Request.Context()
	patientID := c.Param("id")

	// Idempotent (spec §7): calling stop with nothing in-flight cancels zero
	// sessions and still returns 200. The returned list names every session
	// of the patient that carries a stop marker, including sessions stopped
	// by an earlier call; it is empty when there are none.
	s.pool.CancelPatient(patientID)

	waitCtx, cancel := context.WithTimeout(ctx, s.shutdownTO)
	defer cancel()
	s.waitForStopped(waitCtx, patientID)

	sessions, err := s.sessions.ListByPatient(ctx, patientID)
	if err != nil {
		respondError(c, err)
		return
	}
	abortedIDs := []string{}
	for _, sess := range sessions {
		if sess.StoppedAt != nil {
			abortedIDs = append(abortedIDs, sess.ID)
			// Closes out any processing_log row still marked "started" for
			// this session (e.g. the worker was force-killed mid-attempt
			// rather than cleanly cancelled), so the partial unique index on
			// (session_id, wave) WHERE status='started' doesn't block resume.
			if _, err := s.logs.StopRunning(ctx, sess.ID); err != nil {
				s.log.Error("stop running log entries", "error", err, "session_id", sess.ID)
			}
		}
	}

	c.JSON(http.StatusOK, StopResponse{AbortedSessions: abortedIDs})
}

// waitForStopped polls until every running session of the patient reaches
// a terminal processing state or the deadline expires, bounding /stop's
// response latency to s.shutdownTO (spec §4.9: "waits up to 5s; force-kills
// after that" — the force-kill is the worker's own context-cancellation
// path; this just bounds how long the HTTP handler waits to report it).
func (s *Server) waitForStopped(ctx context.Context, patientID string) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		sessions, err := s.sessions.ListByPatient(ctx, patientID)
		if err == nil {
			stillRunning := false
			for _, sess := range sessions {
				if sess.ProcessingStatus == store.ProcessingRunning {
					stillRunning = true
					break
				}
			}
			if !stillRunning {
				return
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// resumeHandler handles POST /patients/{id}/resume (spec §4.9): clears stop
// markers and requeues every stopped/failed session, so the worker pool's
// normal claim loop picks each one back up — wave1_completed_at having
// survived the requeue is what lets it resume at Wave 2 instead of
// repeating Wave 1 (spec §4.9, S5).
func (s *Server) resumeHandler(c *gin.Context) {
	ids, err := s.sessions.RequeueStoppedForPatient(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ResumeResponse{RequeuedSessions: ids})
}
